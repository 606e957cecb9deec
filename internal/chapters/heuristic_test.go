package chapters

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func title(page int, text string) textLine {
	return textLine{page: page, text: text, fontSize: 16, x0: 72, x1: 300, y: 700}
}

func body(page int, text string) textLine {
	return textLine{page: page, text: text, fontSize: 10, x0: 72, x1: 520, y: 500}
}

func TestDetectChapters_TwoChapters(t *testing.T) {
	lines := []textLine{
		title(2, "1. Confidentiality"),
		body(2, "The parties shall keep all confidential information secret."),
		body(3, "This obligation survives termination."),
		title(4, "2. Payment"),
		body(4, "Invoices are due within thirty days."),
		body(5, "Late payments accrue interest."),
	}

	got := detectChapters(lines, 5, Options{MinTitleFontSize: 14})

	want := []Chapter{
		{
			Title:     "1. Confidentiality",
			PageStart: 2,
			PageEnd:   3,
			Body:      "The parties shall keep all confidential information secret.\nThis obligation survives termination.",
		},
		{
			Title:     "2. Payment",
			PageStart: 4,
			PageEnd:   5,
			Body:      "Invoices are due within thirty days.\nLate payments accrue interest.",
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Chapter{}, "Anchor")); diff != "" {
		t.Errorf("chapters mismatch (-want +got):\n%s", diff)
	}
	if err := Validate(got, 5); err != nil {
		t.Errorf("invariants violated: %v", err)
	}
}

func TestDetectChapters_NoTitlesYieldsNil(t *testing.T) {
	lines := []textLine{
		body(1, "just some body text"),
		body(2, "more body text"),
	}
	if got := detectChapters(lines, 2, Options{}); got != nil {
		t.Errorf("expected nil for zero title candidates, got %v", got)
	}
}

func TestDetectChapters_TextBeforeFirstTitleIgnored(t *testing.T) {
	lines := []textLine{
		body(1, "cover page noise"),
		title(2, "Introduction"),
		body(2, "actual content"),
	}
	got := detectChapters(lines, 2, Options{})
	if len(got) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(got))
	}
	if strings.Contains(got[0].Body, "cover page noise") {
		t.Errorf("preamble leaked into chapter body: %q", got[0].Body)
	}
}

func TestDetectChapters_SameTitlePageSharesPage(t *testing.T) {
	lines := []textLine{
		title(3, "A"),
		body(3, "short section"),
		title(3, "B"),
		body(3, "another section"),
	}
	got := detectChapters(lines, 4, Options{})
	if len(got) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(got))
	}
	if got[0].PageStart != 3 || got[0].PageEnd != 3 {
		t.Errorf("chapter A range = %s, want 3-3", got[0].Pages())
	}
	if got[1].PageStart != 3 || got[1].PageEnd != 4 {
		t.Errorf("chapter B range = %s, want 3-4", got[1].Pages())
	}
	if err := Validate(got, 4); err != nil {
		t.Errorf("shared-page chapters must pass validation: %v", err)
	}
}

func TestDetectChapters_TitleExcludedFromBody(t *testing.T) {
	lines := []textLine{
		title(1, "Heading"),
		body(1, "content"),
	}
	got := detectChapters(lines, 1, Options{})
	if len(got) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(got))
	}
	if strings.Contains(got[0].Body, "Heading") {
		t.Errorf("title text must not appear in body: %q", got[0].Body)
	}
}

func TestDetectChapters_LastChapterRunsToLastPage(t *testing.T) {
	lines := []textLine{
		title(1, "Only Chapter"),
		body(1, "text"),
	}
	got := detectChapters(lines, 9, Options{})
	if got[0].PageEnd != 9 {
		t.Errorf("final chapter must end on the last page, got %d", got[0].PageEnd)
	}
}

func TestIsTitle_ToleranceAndLength(t *testing.T) {
	opts := Options{MinTitleFontSize: 14}.withDefaults()

	near := textLine{text: "Heading", fontSize: 13.6}
	if !isTitle(near, opts) {
		t.Error("13.6pt should clear a 14pt threshold within tolerance")
	}

	small := textLine{text: "Heading", fontSize: 12}
	if isTitle(small, opts) {
		t.Error("12pt must not qualify as a title")
	}

	paragraph := textLine{text: strings.Repeat("long paragraph text ", 20), fontSize: 16}
	if isTitle(paragraph, opts) {
		t.Error("a long line is a paragraph, not a title")
	}
}

func TestValidate_RejectsGapsAndOverlaps(t *testing.T) {
	gap := []Chapter{
		{Title: "A", PageStart: 1, PageEnd: 2},
		{Title: "B", PageStart: 5, PageEnd: 6},
	}
	if err := Validate(gap, 6); err == nil {
		t.Error("expected error for a page gap between chapters")
	}

	overlap := []Chapter{
		{Title: "A", PageStart: 1, PageEnd: 4},
		{Title: "B", PageStart: 2, PageEnd: 6},
	}
	if err := Validate(overlap, 6); err == nil {
		t.Error("expected error for overlapping chapters")
	}

	shortEnd := []Chapter{
		{Title: "A", PageStart: 1, PageEnd: 3},
	}
	if err := Validate(shortEnd, 5); err == nil {
		t.Error("expected error when the last chapter stops before the last page")
	}
}
