package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedRecord is one structured datum derived from a SourceDocument.
// Uniqueness key: (ticker, period, table, metric, as_of).
type ExtractedRecord struct {
	ID         string          `json:"id"`
	Ticker     string          `json:"ticker"`
	DocClass   DocClass        `json:"doc_class"`
	Period     string          `json:"period"`
	Table      string          `json:"table"`
	Metric     string          `json:"metric"`
	Value      decimal.Decimal `json:"value"`
	Origin     string          `json:"origin"`
	AsOf       time.Time       `json:"as_of"`
	DocumentID string          `json:"document_id"`
}

// CandidateRecord is a record proposed by the extraction engine before it has
// passed source validation and been persisted. Period is set only when the
// table region carries its own period label; otherwise the document's period
// applies.
type CandidateRecord struct {
	Table  string
	Metric string
	Value  decimal.Decimal
	Period string
}

type RejectionCode string

const (
	RejectAmbiguousLayout RejectionCode = "AMBIGUOUS_LAYOUT"
	RejectNonNumericCell  RejectionCode = "NON_NUMERIC_CELL"
	RejectMissingPeriod   RejectionCode = "MISSING_PERIOD"
)

// Rejection records one region or row the extraction engine refused to
// interpret. Rejections are surfaced to the audit trail, never dropped.
type Rejection struct {
	Code   RejectionCode `json:"code"`
	Table  string        `json:"table"`
	Region string        `json:"region"`
	Detail string        `json:"detail"`
}

// Extraction is the full deterministic output for one document: accepted
// candidate rows, per-row rejections, and opaque binary regions.
type Extraction struct {
	Records    []CandidateRecord
	Rejections []Rejection
	Assets     []OpaqueAsset
}

// OpaqueAsset carries raw bytes of a chart/image region. It is stored and
// linked to the document but explicitly not interpreted.
type OpaqueAsset struct {
	Name  string
	Type  AssetType
	Bytes []byte
}

// ExtractionSummary reports counts for one processed document. Every
// ingestion run reports all four counters, never a bare success flag.
type ExtractionSummary struct {
	DocumentID string      `json:"document_id"`
	Inserted   int         `json:"inserted"`
	Skipped    int         `json:"skipped"`
	Rejected   int         `json:"rejected"`
	Errored    int         `json:"errored"`
	Rejections []Rejection `json:"rejections,omitempty"`
}
