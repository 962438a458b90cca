// Package pdftext extracts tabular records from PDF filings using text
// positions only. Lines are rebuilt from glyph coordinates and a line counts
// as a table row solely by columnar shape: a labelled left field and a
// digit-bearing right field. Narrative prose never yields records, and chart
// or image regions are out of reach by construction.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/core/validate"
)

// columnGap is the horizontal whitespace, in points, that separates two
// fields on the same line.
const columnGap = 12.0

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, _ *domain.SourceDocument, data io.Reader) (*domain.Extraction, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "open pdf", err)
	}

	out := &domain.Extraction{}
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		table := fmt.Sprintf("page_%d", pageNum)

		for lineNum, fields := range pageLines(page.Content().Text) {
			region := fmt.Sprintf("page %d line %d", pageNum, lineNum+1)
			rec, rej := parseLine(table, region, fields)
			if rej != nil {
				out.Rejections = append(out.Rejections, *rej)
				continue
			}
			if rec != nil {
				out.Records = append(out.Records, *rec)
			}
		}
	}
	return out, nil
}

// parseLine classifies one rebuilt line. A nil record with a nil rejection
// means narrative text, which is ignored.
func parseLine(table, region string, fields []string) (*domain.CandidateRecord, *domain.Rejection) {
	if len(fields) < 2 {
		return nil, nil
	}
	first, last := fields[0], fields[len(fields)-1]
	if !containsLetter(first) || !containsDigit(last) {
		return nil, nil
	}
	if len(fields) > 3 {
		return nil, &domain.Rejection{
			Code:   domain.RejectAmbiguousLayout,
			Table:  table,
			Region: region,
			Detail: fmt.Sprintf("%d columns cannot be mapped to metric and value", len(fields)),
		}
	}

	value, err := parseNumeric(last)
	if err != nil {
		return nil, &domain.Rejection{
			Code:   domain.RejectNonNumericCell,
			Table:  table,
			Region: region,
			Detail: fmt.Sprintf("value field %q is not numeric", last),
		}
	}

	period := ""
	if len(fields) == 3 {
		period = strings.TrimSpace(fields[1])
		if !validate.PeriodLabelValid(period) {
			return nil, &domain.Rejection{
				Code:   domain.RejectMissingPeriod,
				Table:  table,
				Region: region,
				Detail: fmt.Sprintf("middle field %q lacks an explicit fiscal-year label", period),
			}
		}
	}

	return &domain.CandidateRecord{
		Table:  table,
		Metric: normalizeMetric(first),
		Value:  value,
		Period: period,
	}, nil
}

func parseNumeric(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + strings.Trim(cleaned, "()")
	}
	return decimal.NewFromString(cleaned)
}

func normalizeMetric(metric string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(metric)), " ", "_")
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// pageLines rebuilds lines from positioned glyphs: glyphs sharing a baseline
// belong to one line, and a horizontal gap wider than columnGap starts a new
// field. Lines come back top to bottom, fields left to right.
func pageLines(texts []pdf.Text) [][]string {
	if len(texts) == 0 {
		return nil
	}

	byLine := make(map[int][]pdf.Text)
	var baselines []int
	for _, t := range texts {
		y := int(math.Round(t.Y))
		if _, seen := byLine[y]; !seen {
			baselines = append(baselines, y)
		}
		byLine[y] = append(byLine[y], t)
	}
	// PDF y grows upward; the top line has the largest baseline.
	sort.Sort(sort.Reverse(sort.IntSlice(baselines)))

	var lines [][]string
	for _, y := range baselines {
		glyphs := byLine[y]
		sort.Slice(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

		var fields []string
		var field strings.Builder
		prevEnd := math.Inf(-1)
		for _, g := range glyphs {
			if field.Len() > 0 && g.X-prevEnd > columnGap {
				fields = append(fields, strings.TrimSpace(field.String()))
				field.Reset()
			}
			field.WriteString(g.S)
			prevEnd = g.X + g.W
		}
		if f := strings.TrimSpace(field.String()); f != "" {
			fields = append(fields, f)
		}
		if len(fields) > 0 {
			lines = append(lines, fields)
		}
	}
	return lines
}
