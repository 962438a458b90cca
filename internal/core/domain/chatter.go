package domain

import (
	"encoding/json"
	"time"
)

// RawFeedItem is the common shape every origin-specific fetcher normalizes
// to before merging. ProviderID, when set, is the provider-assigned post id;
// otherwise the URL serves as the origin-local identity. Identity is never
// derived from mutable content such as the title.
type RawFeedItem struct {
	ProviderID  string          `json:"provider_id,omitempty"`
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	URL         string          `json:"url"`
	PublishedAt time.Time       `json:"published_at"`
	Sentiment   *float64        `json:"sentiment_score,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// ChatterRecord is one externally-sourced textual item.
// Uniqueness key: (origin, origin_local_id).
type ChatterRecord struct {
	ID            string          `json:"id"`
	Ticker        string          `json:"ticker"`
	Origin        string          `json:"origin"`
	OriginLocalID string          `json:"origin_local_id"`
	Title         string          `json:"title"`
	Summary       string          `json:"summary"`
	URL           string          `json:"url"`
	PublishedAt   time.Time       `json:"published_at"`
	Sentiment     *float64        `json:"sentiment_score,omitempty"`
	RawPayload    json.RawMessage `json:"raw_payload,omitempty"`
	IngestedAt    time.Time       `json:"ingested_at"`
}

// OriginBatch groups the feed items fetched from one origin. Origins are
// merged in isolation: one origin's failure never blocks another's items.
type OriginBatch struct {
	Origin string        `json:"origin"`
	Ticker string        `json:"ticker"`
	Items  []RawFeedItem `json:"items"`
}

// ItemError describes one feed item that could not be normalized or stored.
type ItemError struct {
	Origin string `json:"origin"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// MergeSummary reports per-batch counts: conflicting inserts are skipped,
// not failures.
type MergeSummary struct {
	Inserted int         `json:"inserted"`
	Skipped  int         `json:"skipped"`
	Errors   []ItemError `json:"errors,omitempty"`
}
