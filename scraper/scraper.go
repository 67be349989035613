// Package scraper fetches reverse-chronological listing pages from
// Reddit's public JSON API and feeds raw posts into the pipeline.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/pbarros/go-watchex-export/config"
	"github.com/pbarros/go-watchex-export/models"
	"github.com/pbarros/go-watchex-export/pipeline"
)

// Scraper wraps the colly collector, pagination, and retry logic for
// the listing source. Requests run one at a time: the cutoff
// short-circuit assumes pages arrive newest-first, in order.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	Metrics   *Metrics

	cutoff time.Time

	requestCount int64
	pageCount    int64
	errorCount   int64
	postCount    int64

	stopped atomic.Bool

	mu            sync.Mutex
	failedURLs    []string
	errorsByType  map[string]int
	cutoffReached bool

	handlersOnce sync.Once
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	// Parallelism is pinned to 1: the short-circuit in processPage is
	// only correct when listing pages are fetched in order.
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	s.retry = newRetryManager(collector, cfg, s.Metrics)
	return s, nil
}

// Run scans the listing newest-first until it sees a post created
// strictly before cutoff or reaches the MaxPosts bound, streaming posts
// through the pipeline. Any page that stays failed after retries makes
// the whole run fail.
func (s *Scraper) Run(ctx context.Context, cutoff time.Time, p *pipeline.Pipeline) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.cutoff = cutoff.UTC()
	s.retry.SetContext(ctx)
	s.configureHandlers(ctx, p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.stopped.Store(true)
			s.collector.Wait()
			s.retry.Stop()
		case <-done:
		}
	}()

	if err := s.collector.Visit(s.listingURL("")); err != nil {
		return nil, fmt.Errorf("initial visit: %w", err)
	}

	s.collector.Wait()
	for s.retry.Pending() > 0 {
		time.Sleep(50 * time.Millisecond)
		s.collector.Wait()
	}
	// A timer fires its Visit before it is removed from the pending set,
	// so Pending can hit zero with that request still in flight. One more
	// Wait before snapshotting the counters.
	s.collector.Wait()
	s.retry.Stop()

	s.mu.Lock()
	cutoffReached := s.cutoffReached
	s.mu.Unlock()

	result := &models.RunResult{
		StartTime:     start,
		EndTime:       time.Now(),
		ErrorCount:    int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:    s.snapshotFailedURLs(),
		ErrorsByType:  s.snapshotErrors(),
		RetryCount:    s.retry.TotalRetries(),
		RequestCount:  int(atomic.LoadInt64(&s.requestCount)),
		PageCount:     int(atomic.LoadInt64(&s.pageCount)),
		PostCount:     int(atomic.LoadInt64(&s.postCount)),
		CutoffReached: cutoffReached,
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("scan interrupted: %w", err)
	}
	if len(result.FailedURLs) > 0 {
		return result, fmt.Errorf("listing fetch failed for %d page(s) after retries", len(result.FailedURLs))
	}
	return result, nil
}

func (s *Scraper) listingURL(after string) string {
	base := strings.TrimSuffix(s.cfg.BaseURL, "/")
	u := fmt.Sprintf("%s/r/%s/new.json?limit=%d&raw_json=1", base, s.cfg.Subreddit, s.cfg.PageSize)
	if after != "" {
		u += "&after=" + url.QueryEscape(after)
	}
	return u
}

func (s *Scraper) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest("started")
			slog.Debug("listing request",
				slog.Int64("requests", atomic.LoadInt64(&s.requestCount)),
				slog.String("url", r.URL.String()),
			)
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
			if s.stopped.Load() || ctx.Err() != nil {
				return
			}

			var listing listingResponse
			if err := json.Unmarshal(r.Body, &listing); err != nil {
				s.recordFailure(r.Request.URL.String(), fmt.Errorf("decode listing: %w", err), "decode")
				return
			}

			s.processPage(&listing, p)
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errorCount, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()

			pageURL := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				pageURL = r.Request.URL.String()
			}
			slog.Error("listing request error",
				slog.String("url", pageURL),
				slog.String("category", category),
				slog.Any("error", err),
			)
			s.Metrics.IncError(category)

			if !s.retry.Schedule(pageURL) {
				s.mu.Lock()
				s.failedURLs = append(s.failedURLs, pageURL)
				s.mu.Unlock()
			}
		})
	})
}

// processPage walks one listing page newest-first. The first post
// created strictly before the cutoff ends the scan without being
// emitted; everything after it on the page is skipped too.
func (s *Scraper) processPage(listing *listingResponse, p *pipeline.Pipeline) {
	atomic.AddInt64(&s.pageCount, 1)
	fetchedAt := time.Now().UTC()

	var batch []*models.RawPost
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		post := toRawPost(child.Data, fetchedAt)
		if post.CreatedUTC.Before(s.cutoff) {
			s.stopped.Store(true)
			s.mu.Lock()
			s.cutoffReached = true
			s.mu.Unlock()
			slog.Info("cutoff reached",
				slog.Time("post_created", post.CreatedUTC),
				slog.Time("cutoff", s.cutoff),
			)
			break
		}
		batch = append(batch, post)
		if atomic.AddInt64(&s.postCount, 1) >= int64(s.cfg.MaxPosts) {
			s.stopped.Store(true)
			slog.Info("max posts reached", slog.Int("max_posts", s.cfg.MaxPosts))
			break
		}
	}

	if len(batch) > 0 {
		s.Metrics.IncPosts(len(batch))
		if err := p.Process(batch...); err != nil && err != pipeline.ErrPipelineClosed {
			slog.Error("pipeline process error", slog.Any("error", err))
		}
	}

	if s.stopped.Load() || listing.Data.After == "" {
		return
	}
	if err := s.collector.Visit(s.listingURL(listing.Data.After)); err != nil {
		slog.Error("visit next page", slog.Any("error", err))
	}
}

func (s *Scraper) recordFailure(pageURL string, err error, category string) {
	atomic.AddInt64(&s.errorCount, 1)
	s.mu.Lock()
	s.errorsByType[category]++
	s.failedURLs = append(s.failedURLs, pageURL)
	s.mu.Unlock()
	s.Metrics.IncError(category)
	slog.Error("listing page unusable",
		slog.String("url", pageURL),
		slog.Any("error", err),
	)
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
