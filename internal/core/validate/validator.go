// Package validate implements the source validator shared by every writer.
// It is pure: no side effects, no storage access.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

// Accepted period labels carry an explicit fiscal-year qualifier:
// "FY2024", "FY24", "Q1 FY2024", "Q3FY24". A bare year or quarter number is
// ambiguous and rejected.
var periodPattern = regexp.MustCompile(`^(Q[1-4][ ]?)?FY\d{2}(\d{2})?$`)

// PeriodLabelValid reports whether s carries an explicit fiscal-year
// qualifier. Extraction uses it for per-row period overrides.
func PeriodLabelValid(s string) bool {
	return periodPattern.MatchString(strings.TrimSpace(s))
}

type Validator struct {
	allowed map[string]struct{}
}

// New builds a validator over a fixed origin whitelist. The whitelist is
// configuration; the validator never mutates it.
func New(origins []string) *Validator {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return &Validator{allowed: allowed}
}

// OriginAllowed reports whether origin is a member of the whitelist.
func (v *Validator) OriginAllowed(origin string) bool {
	_, ok := v.allowed[strings.TrimSpace(origin)]
	return ok
}

// Validate rejects writes whose provenance or labeling is incomplete. The
// as-of date must be present and not in the future relative to now.
func (v *Validator) Validate(origin, ticker, period string, asOf, now time.Time) error {
	if !v.OriginAllowed(origin) {
		return domain.WrapError(domain.ErrValidation, "validate origin",
			fmt.Errorf("origin %q is not whitelisted", origin))
	}
	if strings.TrimSpace(ticker) == "" {
		return domain.WrapError(domain.ErrValidation, "validate ticker",
			errors.New("ticker is empty"))
	}
	if !periodPattern.MatchString(strings.TrimSpace(period)) {
		return domain.WrapError(domain.ErrValidation, "validate period",
			fmt.Errorf("period %q is not an explicit fiscal-year label", period))
	}
	if asOf.IsZero() {
		return domain.WrapError(domain.ErrValidation, "validate as-of",
			errors.New("as-of date is absent"))
	}
	if asOf.After(now) {
		return domain.WrapError(domain.ErrValidation, "validate as-of",
			fmt.Errorf("as-of date %s is in the future", asOf.Format("2006-01-02")))
	}
	return nil
}
