package pdftext

import (
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

func glyph(s string, x, y, w float64) pdf.Text {
	return pdf.Text{S: s, X: x, Y: y, W: w}
}

func TestPageLinesRebuildsColumnsFromPositions(t *testing.T) {
	texts := []pdf.Text{
		// Top line: "Total Assets" then a value in a far column.
		glyph("Total ", 50, 700, 30),
		glyph("Assets", 80, 700, 30),
		glyph("1,234.50", 400, 700, 40),
		// Lower line: narrative without columnar gaps.
		glyph("See ", 50, 680, 20),
		glyph("notes ", 70, 680, 28),
		glyph("below", 98, 680, 25),
	}

	lines := pageLines(texts)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if len(lines[0]) != 2 || lines[0][0] != "Total Assets" || lines[0][1] != "1,234.50" {
		t.Fatalf("unexpected first line fields: %v", lines[0])
	}
	if len(lines[1]) != 1 {
		t.Fatalf("narrative line must stay one field, got %v", lines[1])
	}
}

func TestParseLineClassification(t *testing.T) {
	table := "page_1"

	rec, rej := parseLine(table, "page 1 line 1", []string{"Total Assets", "1,234.50"})
	if rej != nil || rec == nil {
		t.Fatalf("expected record, got rejection %+v", rej)
	}
	if rec.Metric != "total_assets" || rec.Value.String() != "1234.5" {
		t.Fatalf("unexpected record %+v", rec)
	}

	rec, rej = parseLine(table, "page 1 line 2", []string{"Revenue", "Q1FY24", "10"})
	if rej != nil || rec == nil {
		t.Fatalf("expected record with period, got rejection %+v", rej)
	}
	if rec.Period != "Q1FY24" {
		t.Fatalf("expected period Q1FY24, got %q", rec.Period)
	}

	rec, rej = parseLine(table, "page 1 line 3", []string{"Revenue", "2024", "10"})
	if rej == nil || rej.Code != domain.RejectMissingPeriod {
		t.Fatalf("bare year must be MISSING_PERIOD, got rec=%+v rej=%+v", rec, rej)
	}

	rec, rej = parseLine(table, "page 1 line 4", []string{"Net Debt", "12.3.4"})
	if rej == nil || rej.Code != domain.RejectNonNumericCell {
		t.Fatalf("expected NON_NUMERIC_CELL, got rec=%+v rej=%+v", rec, rej)
	}

	rec, rej = parseLine(table, "page 1 line 5", []string{"A", "B", "C", "9"})
	if rej == nil || rej.Code != domain.RejectAmbiguousLayout {
		t.Fatalf("four columns must be AMBIGUOUS_LAYOUT, got rec=%+v rej=%+v", rec, rej)
	}
}

func TestParseLineIgnoresNarrative(t *testing.T) {
	cases := [][]string{
		{"Standalone heading"},
		{"See notes below"},
		{"Revenue grew strongly", "this year"},
		{"2024", "2025"},
	}
	for _, fields := range cases {
		rec, rej := parseLine("page_1", "region", fields)
		if rec != nil || rej != nil {
			t.Fatalf("narrative %v must yield neither record nor rejection, got rec=%+v rej=%+v", fields, rec, rej)
		}
	}
}
