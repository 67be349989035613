package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds exporter configuration.
type Config struct {
	BaseURL        string // listing source host
	Subreddit      string
	LookbackMonths int
	MaxPosts       int
	PageSize       int

	Delay           time.Duration
	RandomDelay     time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int

	OutputFile   string
	OutputFormat string // csv, jsonl, or dual
	UserAgent    string
	MetricsAddr  string
	Verbose      bool
}

// DefaultConfig returns conservative defaults for the public listing API.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://www.reddit.com",
		Subreddit:          "watchexchange",
		LookbackMonths:     6,
		MaxPosts:           5000,
		PageSize:           100,
		Delay:              2 * time.Second,
		RandomDelay:        500 * time.Millisecond,
		Timeout:            30 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       1 * time.Second,
		RetryBackoffMax:    30 * time.Second,
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      8192,
		OutputFormat:       "csv",
		UserAgent:          "watchex-export/1.0 (marketplace listing exporter)",
	}
}

// DefaultOutputFile derives the output path from the lookback window.
func (c *Config) DefaultOutputFile() string {
	ext := "csv"
	if c.OutputFormat == "jsonl" {
		ext = "jsonl"
	}
	return fmt.Sprintf("output/listings_last_%d_months.%s", c.LookbackMonths, ext)
}

// Cutoff returns the oldest creation instant still included in a run
// started at now.
func (c *Config) Cutoff(now time.Time) time.Time {
	return now.UTC().AddDate(0, -c.LookbackMonths, 0)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Subreddit == "" {
		return fmt.Errorf("subreddit cannot be empty")
	}
	if c.LookbackMonths <= 0 {
		return fmt.Errorf("lookback months must be positive")
	}
	if c.MaxPosts <= 0 {
		return fmt.Errorf("max posts must be positive")
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "jsonl" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, jsonl, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
