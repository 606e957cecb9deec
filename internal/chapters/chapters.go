// Package chapters turns a PDF contract into an ordered list of chapters.
//
// Chapter boundaries come from the document's outline when one is embedded;
// otherwise a typographic heuristic promotes short large-font lines to
// chapter titles. Both strategies produce the same Chapter values, so the
// rest of the pipeline does not care which one ran.
package chapters

import "fmt"

// Chapter is a contiguous, page-bounded section of the source document.
// Pages are 1-based and inclusive.
type Chapter struct {
	Title     string
	PageStart int
	PageEnd   int
	Body      string
	Anchor    Anchor
}

// Anchor is the point on the chapter's starting page where an annotation
// should be attached, in PDF user space (origin bottom-left). When Known is
// false the annotator falls back to a fixed position near the top of the
// page.
type Anchor struct {
	X, Y  float64
	Known bool
}

// Pages renders the chapter's page range as "start-end".
func (c Chapter) Pages() string {
	return fmt.Sprintf("%d-%d", c.PageStart, c.PageEnd)
}

// StructuralError reports a PDF that cannot be read at all. It is fatal to
// the run, unlike per-chapter conditions which are absorbed downstream.
type StructuralError struct {
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unreadable pdf: %s: %v", e.Reason, e.Err)
	}
	return "unreadable pdf: " + e.Reason
}

func (e *StructuralError) Unwrap() error { return e.Err }

// Validate checks the chapter list invariants: ordered by PageStart, each
// range well-formed, and ranges contiguous from the first chapter to
// lastPage. Two titles on the same page produce adjacent chapters that share
// that page, so a successor may start on its predecessor's final page but
// never before it.
func Validate(chapters []Chapter, lastPage int) error {
	for i, c := range chapters {
		if c.PageStart < 1 || c.PageEnd < c.PageStart {
			return fmt.Errorf("chapter %d (%q): bad page range %d-%d", i, c.Title, c.PageStart, c.PageEnd)
		}
		if i == 0 {
			continue
		}
		prev := chapters[i-1]
		if c.PageStart < prev.PageEnd || c.PageStart > prev.PageEnd+1 {
			return fmt.Errorf("chapter %d (%q): starts on page %d, predecessor ends on %d", i, c.Title, c.PageStart, prev.PageEnd)
		}
	}
	if n := len(chapters); n > 0 && chapters[n-1].PageEnd != lastPage {
		return fmt.Errorf("last chapter ends on page %d, document has %d pages", chapters[n-1].PageEnd, lastPage)
	}
	return nil
}
