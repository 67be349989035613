// Package pipeline turns raw posts into export records and owns the
// output collection until it is handed to a writer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pbarros/go-watchex-export/config"
	"github.com/pbarros/go-watchex-export/models"
	"github.com/pbarros/go-watchex-export/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.Record) error
	Close() error
	Validate() error
}

// Pipeline coordinates de-duplication, record building, and the final
// ordered write. Records accumulate in memory and are only written at
// Close, after the date sort.
type Pipeline struct {
	writer    OutputWriter
	ctx       context.Context
	postCh    chan *models.RawPost
	batchSize int

	wg sync.WaitGroup

	// Listing pagination can re-serve a post when the listing shifts
	// between page fetches; seen caps memory on long scans.
	seen *lru.Cache[string, struct{}]

	recordsMu sync.Mutex
	records   []*models.Record

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline with a modest in-memory buffer.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		// Only possible with a non-positive size, which Validate rejects.
		panic(fmt.Sprintf("pipeline: dedupe cache: %v", err))
	}
	return &Pipeline{
		writer:    writer,
		ctx:       ctx,
		postCh:    make(chan *models.RawPost, cfg.PipelineBufferSize),
		batchSize: cfg.BatchSize,
		seen:      seen,
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines. The exporter runs with a single
// worker; record building is pure, so more are safe but unnecessary.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues posts for record building.
func (p *Pipeline) Process(posts ...*models.RawPost) error {
	if len(posts) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, post := range posts {
		if post == nil {
			continue
		}
		if err := p.enqueue(post); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the workers, sorts the collected records by listing date
// descending, and writes them out in batches.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.postCh)
	})

	p.wg.Wait()

	if err := p.Err(); err != nil {
		return err
	}
	if err := p.flushSorted(); err != nil {
		p.setErr(err)
	}
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				snapshot := p.GetMetrics()
				log.Printf("pipeline: processed=%d duplicates=%d unmatched=%d",
					snapshot["processed_posts"], snapshot["duplicate_posts"], snapshot["unmatched_records"])
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for post := range p.postCh {
		record := p.prepare(post)
		if record == nil {
			continue
		}
		p.recordsMu.Lock()
		p.records = append(p.records, record)
		p.recordsMu.Unlock()
	}
}

// prepare drops re-served duplicates and builds the record. Extraction
// never drops a post: a record with nothing matched is still exported.
func (p *Pipeline) prepare(post *models.RawPost) *models.Record {
	if post.ID != "" {
		if _, dup := p.seen.Get(post.ID); dup {
			p.metrics.incrementDuplicates()
			return nil
		}
		p.seen.Add(post.ID, struct{}{})
	}

	record := parser.BuildRecord(post)
	if parser.Unmatched(record) {
		p.metrics.incrementUnmatched()
	}

	p.metrics.incrementProcessed()
	return record
}

// flushSorted re-asserts the intended newest-first order regardless of
// input order. Records with a zero listing date sort last.
func (p *Pipeline) flushSorted() error {
	p.recordsMu.Lock()
	records := p.records
	p.records = nil
	p.recordsMu.Unlock()

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].DateListed, records[j].DateListed
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})

	for start := 0; start < len(records); start += p.batchSize {
		end := start + p.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := p.writer.Write(records[start:end]); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) enqueue(post *models.RawPost) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return ErrPipelineClosed
	case p.postCh <- post:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.postCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	duplicates int64
	unmatched  int64
}

func newMetrics() metrics {
	return metrics{}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) incrementDuplicates() {
	m.mu.Lock()
	m.duplicates++
	m.mu.Unlock()
}

func (m *metrics) incrementUnmatched() {
	m.mu.Lock()
	m.unmatched++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]interface{}{
		"processed_posts":   m.processed,
		"duplicate_posts":   m.duplicates,
		"unmatched_records": m.unmatched,
	}
}
