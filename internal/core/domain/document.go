package domain

import "time"

type DocClass string

const (
	DocClassAnnual    DocClass = "annual"
	DocClassQuarterly DocClass = "quarterly"
)

func (c DocClass) Valid() bool {
	return c == DocClassAnnual || c == DocClassQuarterly
}

// SourceDocument is the immutable descriptor of one ingested raw document.
// Identity is (ticker, doc_class, content_hash): identical bytes for the same
// ticker and class are the same document regardless of filename or attempt.
type SourceDocument struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	DocClass    DocClass  `json:"doc_class"`
	Period      string    `json:"period"`
	Origin      string    `json:"origin"`
	ContentHash string    `json:"content_hash"`
	Locator     string    `json:"locator"`
	AsOf        time.Time `json:"as_of"`
	IngestedAt  time.Time `json:"ingested_at"`
}

type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeChart AssetType = "chart"
)

// DocumentAsset is an opaque binary region (chart, image) captured from a
// source document. Interpreted is always false: asset bytes are archived,
// never parsed into records.
type DocumentAsset struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	AssetType   AssetType `json:"asset_type"`
	Locator     string    `json:"locator"`
	Interpreted bool      `json:"interpreted"`
	CreatedAt   time.Time `json:"created_at"`
}

// IngestReceipt reports the outcome of a document ingestion attempt.
// A duplicate is a receipt with IsNew=false, not an error.
type IngestReceipt struct {
	Document *SourceDocument `json:"document"`
	IsNew    bool            `json:"is_new"`
}
