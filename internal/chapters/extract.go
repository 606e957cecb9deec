package chapters

import (
	"bytes"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// Extract parses the PDF and returns its chapters in page order.
//
// The embedded outline is authoritative when present; the font-size
// heuristic only runs when the document has no usable outline. An empty
// result with a nil error means the document has pages but no detectable
// chapters. A *StructuralError means the bytes are not a readable PDF.
func Extract(data []byte, opts Options) ([]Chapter, error) {
	reader, pageCount, err := open(data)
	if err != nil {
		return nil, err
	}
	if pageCount == 0 {
		return nil, &StructuralError{Reason: "document has no pages"}
	}

	chapters, err := fromOutline(data, reader, pageCount)
	if err == nil && chapters == nil {
		chapters, err = fromHeuristic(reader, pageCount, opts)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(chapters, pageCount); err != nil {
		return nil, &StructuralError{Reason: "inconsistent chapter boundaries", Err: err}
	}
	return chapters, nil
}

// PageCount returns the number of pages in the document.
func PageCount(data []byte) (int, error) {
	_, n, err := open(data)
	return n, err
}

// PreviewItem is one row of the read-only chapter preview.
type PreviewItem struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// Preview lists detected chapter titles and their starting pages without
// building body text consumers.
func Preview(data []byte, opts Options) ([]PreviewItem, int, error) {
	chapters, err := Extract(data, opts)
	if err != nil {
		return nil, 0, err
	}
	pageCount, err := PageCount(data)
	if err != nil {
		return nil, 0, err
	}
	items := make([]PreviewItem, len(chapters))
	for i, c := range chapters {
		items[i] = PreviewItem{Title: c.Title, Page: c.PageStart}
	}
	return items, pageCount, nil
}

// open wraps the reader construction. The underlying library panics on some
// malformed inputs; those become StructuralErrors like ordinary parse
// failures.
func open(data []byte) (reader *pdflib.Reader, pageCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader, pageCount = nil, 0
			err = &StructuralError{Reason: fmt.Sprintf("parse failure: %v", r)}
		}
	}()

	reader, err = pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, &StructuralError{Reason: "parse failure", Err: err}
	}
	return reader, reader.NumPage(), nil
}

// fromOutline builds chapters from the embedded outline. A nil, nil return
// means no usable outline was found.
func fromOutline(data []byte, reader *pdflib.Reader, pageCount int) ([]Chapter, error) {
	entries, err := readOutlineEntries(data)
	if err != nil || len(entries) == 0 {
		// Outline trouble is never fatal on its own; the heuristic
		// still gets its chance.
		return nil, nil
	}

	// Outline order and page order are expected to coincide; drop any
	// entry that would go backwards rather than produce an unordered
	// chapter list.
	kept := entries[:0]
	lastPage := 0
	for _, e := range entries {
		if e.page >= lastPage && e.page <= pageCount {
			kept = append(kept, e)
			lastPage = e.page
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	pageTexts, err := plainTextPages(reader, pageCount)
	if err != nil {
		return nil, err
	}

	chapters := make([]Chapter, 0, len(kept))
	for i, e := range kept {
		end := pageCount
		nextTitle := ""
		if i+1 < len(kept) {
			end = kept[i+1].page - 1
			if end < e.page {
				end = e.page
			}
			nextTitle = kept[i+1].title
		}
		chapters = append(chapters, Chapter{
			Title:     e.title,
			PageStart: e.page,
			PageEnd:   end,
			Body:      chapterBody(pageTexts, e.page, end, e.title, nextTitle),
			Anchor:    e.anchor,
		})
	}
	return chapters, nil
}

// chapterBody joins the chapter's page texts and trims it to the text
// strictly between the chapter's own title and the next one. Page text is
// whole-page, so without the trim the title line (and, on a shared page, the
// neighboring chapter's text) would leak into the body. Titles that cannot
// be located in the page text are left uncut; the trim is best effort.
func chapterBody(pageTexts []string, start, end int, title, nextTitle string) string {
	text := strings.Join(pageTexts[start-1:end], "\n")
	if t := strings.TrimSpace(title); t != "" {
		if idx := strings.Index(text, t); idx >= 0 {
			text = text[idx+len(t):]
		}
	}
	if t := strings.TrimSpace(nextTitle); t != "" {
		if idx := strings.Index(text, t); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// fromHeuristic assembles lines for every page and runs the font-size
// strategy over them.
func fromHeuristic(reader *pdflib.Reader, pageCount int, opts Options) (chapters []Chapter, err error) {
	defer func() {
		if r := recover(); r != nil {
			chapters = nil
			err = &StructuralError{Reason: fmt.Sprintf("content extraction failure: %v", r)}
		}
	}()

	var lines []textLine
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, pageLines(page, pageNum)...)
	}

	return detectChapters(lines, pageCount, opts), nil
}

// plainTextPages extracts each page's text. Pages that fail individually
// yield an empty string instead of failing the document.
func plainTextPages(reader *pdflib.Reader, pageCount int) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts = nil
			err = &StructuralError{Reason: fmt.Sprintf("text extraction failure: %v", r)}
		}
	}()

	texts = make([]string, pageCount)
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[pageNum-1] = strings.TrimSpace(text)
	}
	return texts, nil
}
