// Package models defines data structures for the exporter.
package models

import "time"

// RawPost is a single forum post as served by the listing source.
type RawPost struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Author     string    `json:"author"` // empty when the account is deleted
	CreatedUTC time.Time `json:"created_utc"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// LabelPolicy says who is expected to provide the shipping label.
type LabelPolicy string

const (
	// LabelUnknown means neither phrase set matched. It is a valid
	// terminal value, not an error.
	LabelUnknown LabelPolicy = ""
	LabelYes     LabelPolicy = "yes"
	LabelNo      LabelPolicy = "no"
)

// Record is one normalized marketplace listing. Nil pointer fields mean
// "no pattern matched", which is distinct from a present empty string.
// Records are not mutated after the builder returns them.
type Record struct {
	Brand            *string     `json:"brand"`
	Model            *string     `json:"model"`
	Price            *string     `json:"price"`
	BuyerLabel       LabelPolicy `json:"buyer_label,omitempty"`
	SellerLocation   *string     `json:"seller_location"`
	ShipDestinations *string     `json:"ship_destinations"`
	PosterHandle     *string     `json:"poster_handle"`
	DateListed       time.Time   `json:"date_listed"` // UTC, day precision
	FetchedAt        time.Time   `json:"fetched_at"`
}

// RunResult holds the overall result of one export run.
type RunResult struct {
	StartTime    time.Time
	EndTime      time.Time
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
	PostCount    int
	// CutoffReached is true when the scan stopped because it saw a post
	// older than the cutoff, rather than exhausting MaxPosts.
	CutoffReached bool
}
