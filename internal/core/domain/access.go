package domain

import "time"

// AccessStatus is the closed status set every read resolves to. Callers never
// observe a payload without a status and attribution, and no other status
// values exist.
type AccessStatus string

const (
	StatusFresh  AccessStatus = "FRESH"
	StatusAbsent AccessStatus = "ABSENT"
	StatusStale  AccessStatus = "STALE"
	StatusError  AccessStatus = "ERROR"
)

// RecordClass selects the per-class staleness threshold for a query.
type RecordClass string

const (
	RecordClassAnnual    RecordClass = "annual"
	RecordClassQuarterly RecordClass = "quarterly"
	RecordClassChatter   RecordClass = "chatter"
)

func (c RecordClass) Valid() bool {
	switch c {
	case RecordClassAnnual, RecordClassQuarterly, RecordClassChatter:
		return true
	}
	return false
}

// Attribution names the provenance of returned data.
type Attribution struct {
	Origin string    `json:"origin"`
	AsOf   time.Time `json:"as_of"`
}

// AccessResult is the single result shape for every read. Payload is present
// for FRESH and STALE, empty otherwise. AgeDays is set for STALE only, and
// Reason for ERROR only. Stale payloads are returned, never withheld.
type AccessResult struct {
	Status      AccessStatus      `json:"status"`
	Records     []ExtractedRecord `json:"records,omitempty"`
	Chatter     []ChatterRecord   `json:"chatter,omitempty"`
	Attribution *Attribution      `json:"attribution,omitempty"`
	AgeDays     int               `json:"age_days,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}
