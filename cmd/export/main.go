package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pbarros/go-watchex-export/config"
	"github.com/pbarros/go-watchex-export/models"
	"github.com/pbarros/go-watchex-export/pipeline"
	"github.com/pbarros/go-watchex-export/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaultCfg := config.DefaultConfig()
	monthsDefault := defaultCfg.LookbackMonths
	if value, ok, err := config.EnvInt("WATCHEX_MONTHS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid WATCHEX_MONTHS: %v\n", err)
		os.Exit(1)
	} else if ok {
		monthsDefault = value
	}
	maxPostsDefault := defaultCfg.MaxPosts
	if value, ok, err := config.EnvInt("WATCHEX_MAX_POSTS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid WATCHEX_MAX_POSTS: %v\n", err)
		os.Exit(1)
	} else if ok {
		maxPostsDefault = value
	}
	subredditDefault := defaultCfg.Subreddit
	if value, ok := config.EnvString("WATCHEX_SUBREDDIT"); ok {
		subredditDefault = value
	}
	outputDefault := ""
	if value, ok := config.EnvString("WATCHEX_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("WATCHEX_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	subreddit := flag.String("subreddit", subredditDefault, "Subreddit to scan")
	months := flag.Int("months", monthsDefault, "Lookback window in months")
	maxPosts := flag.Int("max-posts", maxPostsDefault, "Maximum posts to fetch; must cover the lookback window")
	pageSize := flag.Int("page-size", defaultCfg.PageSize, "Listing page size (max 100)")
	delayMs := flag.Int("delay", int(defaultCfg.Delay.Milliseconds()), "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", int(defaultCfg.RandomDelay.Milliseconds()), "Random jitter added to delay (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per page")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff.Milliseconds()), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax.Milliseconds()), "Maximum retry backoff (milliseconds)")
	outputFile := flag.String("output", outputDefault, "Output file path (default derives from the lookback window)")
	outputFormat := flag.String("format", "csv", "Output format: csv, jsonl, or dual")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Listing source base URL")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.Subreddit = *subreddit
	cfg.LookbackMonths = *months
	cfg.MaxPosts = *maxPosts
	cfg.PageSize = *pageSize
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.Verbose = *verbose
	cfg.BaseURL = *baseURL
	cfg.MetricsAddr = *metricsAddr
	cfg.OutputFile = *outputFile
	if cfg.OutputFile == "" {
		cfg.OutputFile = cfg.DefaultOutputFile()
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	cutoff := cfg.Cutoff(time.Now())
	slog.Info("starting export",
		slog.String("subreddit", cfg.Subreddit),
		slog.Int("lookback_months", cfg.LookbackMonths),
		slog.Time("cutoff", cutoff),
		slog.Int("max_posts", cfg.MaxPosts),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, outputs, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := s.Run(ctx, cutoff, p)
	if err != nil {
		slog.Error("listing scan failed", slog.Any("error", err))
		abort(writer, outputs)
	}

	if err := p.Close(); err != nil {
		slog.Error("export write failed", slog.Any("error", err))
		abort(writer, outputs)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		abort(writer, outputs)
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime), cfg.OutputFile, p.GetMetrics())
}

// abort removes partially written output so a failed run leaves
// nothing behind, then exits non-zero.
func abort(writer pipeline.OutputWriter, outputs []string) {
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
	}
	for _, path := range outputs {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Error("remove partial output", slog.String("path", path), slog.Any("error", err))
		}
	}
	os.Exit(1)
}

func createWriter(format, filename string) (pipeline.OutputWriter, []string, error) {
	switch format {
	case "jsonl":
		w, err := pipeline.NewJSONWriter(filename)
		return w, []string{filename}, err
	case "csv":
		w, err := pipeline.NewCSVWriter(filename)
		return w, []string{filename}, err
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		w, err := pipeline.NewDualWriter(filename, jsonFilename)
		return w, []string{filename, jsonFilename}, err
	default:
		return nil, nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.RunResult, duration time.Duration, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Export complete")

	totalRecords := int64(0)
	if processed, ok := metrics["processed_posts"].(int64); ok {
		totalRecords = processed
	}

	fmt.Printf("  Records:       %d\n", totalRecords)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Posts fetched: %d\n", result.PostCount)
	if duplicates, ok := metrics["duplicate_posts"].(int64); ok && duplicates > 0 {
		fmt.Printf("  Duplicates:    %d\n", duplicates)
	}
	if unmatched, ok := metrics["unmatched_records"].(int64); ok && unmatched > 0 {
		fmt.Printf("  Unmatched:     %d\n", unmatched)
	}
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if !result.CutoffReached {
		fmt.Println("  Note: hit the max-posts bound before the cutoff; window may be incomplete")
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
