// Package workbook extracts tabular records from XLSX filings. Every sheet is
// one table: column A holds the metric name, column B the numeric value, and
// an optional column C a per-row fiscal-period label. Anything the layout
// rules cannot map unambiguously is rejected row by row, never guessed at.
package workbook

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/core/validate"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.SourceDocument, data io.Reader) (*domain.Extraction, error) {
	f, err := excelize.OpenReader(data)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "open workbook", err)
	}
	defer f.Close()

	out := &domain.Extraction{}
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table := tableName(sheet)

		merged, err := f.GetMergeCells(sheet)
		if err != nil {
			return nil, fmt.Errorf("read merge cells %q: %w", sheet, err)
		}
		mergedRows := rowsCoveredByMerges(merged)

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read rows %q: %w", sheet, err)
		}

		for i, row := range rows {
			rowNum := i + 1
			region := fmt.Sprintf("%s!row %d", sheet, rowNum)

			if isBlank(row) {
				continue
			}
			if i == 0 && isHeader(row) {
				continue
			}
			if mergedRows[rowNum] {
				out.Rejections = append(out.Rejections, domain.Rejection{
					Code:   domain.RejectAmbiguousLayout,
					Table:  table,
					Region: region,
					Detail: "row intersects merged cells",
				})
				continue
			}

			rec, rej := parseRow(table, region, row)
			if rej != nil {
				out.Rejections = append(out.Rejections, *rej)
				continue
			}
			out.Records = append(out.Records, *rec)
		}

		assets, err := sheetPictures(f, sheet)
		if err != nil {
			return nil, fmt.Errorf("read pictures %q: %w", sheet, err)
		}
		out.Assets = append(out.Assets, assets...)
	}
	return out, nil
}

// parseRow maps one sheet row onto (metric, value[, period]). It returns
// either a candidate record or a rejection, never both.
func parseRow(table, region string, row []string) (*domain.CandidateRecord, *domain.Rejection) {
	metric := ""
	if len(row) > 0 {
		metric = strings.TrimSpace(row[0])
	}
	if metric == "" {
		return nil, &domain.Rejection{
			Code:   domain.RejectAmbiguousLayout,
			Table:  table,
			Region: region,
			Detail: "metric cell is empty",
		}
	}

	raw := ""
	if len(row) > 1 {
		raw = strings.TrimSpace(row[1])
	}
	value, err := parseNumeric(raw)
	if err != nil {
		return nil, &domain.Rejection{
			Code:   domain.RejectNonNumericCell,
			Table:  table,
			Region: region,
			Detail: fmt.Sprintf("value cell %q is not numeric", raw),
		}
	}

	period := ""
	if len(row) > 2 {
		period = strings.TrimSpace(row[2])
	}
	if period != "" && !validate.PeriodLabelValid(period) {
		return nil, &domain.Rejection{
			Code:   domain.RejectMissingPeriod,
			Table:  table,
			Region: region,
			Detail: fmt.Sprintf("period cell %q lacks an explicit fiscal-year label", period),
		}
	}

	return &domain.CandidateRecord{
		Table:  table,
		Metric: normalizeMetric(metric),
		Value:  value,
		Period: period,
	}, nil
}

func parseNumeric(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("empty cell")
	}
	cleaned := strings.ReplaceAll(raw, ",", "")
	// Accounting notation wraps negatives in parentheses.
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + strings.Trim(cleaned, "()")
	}
	return decimal.NewFromString(cleaned)
}

func tableName(sheet string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(sheet)), " ", "_")
}

func normalizeMetric(metric string) string {
	return strings.ReplaceAll(strings.ToLower(metric), " ", "_")
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// isHeader detects the conventional first row ("Metric", "Value", ...) so it
// does not surface as a spurious non-numeric rejection.
func isHeader(row []string) bool {
	if len(row) < 2 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(row[0]), "metric") &&
		strings.EqualFold(strings.TrimSpace(row[1]), "value")
}

// rowsCoveredByMerges expands merge ranges into the set of row numbers they
// touch.
func rowsCoveredByMerges(merges []excelize.MergeCell) map[int]bool {
	covered := make(map[int]bool)
	for _, m := range merges {
		_, top, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			continue
		}
		_, bottom, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			continue
		}
		for r := top; r <= bottom; r++ {
			covered[r] = true
		}
	}
	return covered
}

// sheetPictures captures embedded images as opaque assets. Chart and image
// regions are archived verbatim and never parsed for values.
func sheetPictures(f *excelize.File, sheet string) ([]domain.OpaqueAsset, error) {
	cells, err := f.GetPictureCells(sheet)
	if err != nil {
		return nil, err
	}
	var assets []domain.OpaqueAsset
	for _, cell := range cells {
		pics, err := f.GetPictures(sheet, cell)
		if err != nil {
			return nil, err
		}
		for i, pic := range pics {
			assets = append(assets, domain.OpaqueAsset{
				Name:  fmt.Sprintf("%s_%s_%d%s", tableName(sheet), strings.ToLower(cell), i, pic.Extension),
				Type:  domain.AssetTypeImage,
				Bytes: pic.File,
			})
		}
	}
	return assets, nil
}
