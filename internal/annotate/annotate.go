// Package annotate writes sticky-note annotations into a PDF without
// disturbing the rest of the document. The source file is copied object by
// object; only the pages that receive notes are rewritten.
package annotate

import (
	"bytes"
	"context"
	"fmt"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"
	"seehuhn.de/go/pdf/pdfcopy"
)

// Note is one sticky note to place in the document.
type Note struct {
	Page    int // 1-based
	Title   string
	Comment string

	// X, Y is the note's position in PDF user space (top of the icon).
	// When HasPos is false the note goes to the page's top-right corner.
	X, Y   float64
	HasPos bool
}

// Skip records a note that could not be placed.
type Skip struct {
	Page   int    `json:"page"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Result summarises an annotation run.
type Result struct {
	Added   int    `json:"added"`
	Skipped []Skip `json:"skipped,omitempty"`
}

// WriteError means the annotated document could not be produced at all.
type WriteError struct {
	Reason string
	Err    error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("annotation write failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("annotation write failed: %s", e.Reason)
}

func (e *WriteError) Unwrap() error { return e.Err }

const (
	iconWidth  = 20.0
	iconHeight = 20.0
	edgeMargin = 8.0
)

// Annotate copies the document and adds one Text annotation per note.
// Notes that cannot be placed (page out of range) are skipped and reported
// in the Result rather than failing the run. The rewrite stops early when
// ctx ends.
func Annotate(ctx context.Context, src []byte, notes []Note) ([]byte, Result, error) {
	var result Result

	if err := ctx.Err(); err != nil {
		return nil, result, &WriteError{Reason: "cancelled", Err: err}
	}

	r, err := pdf.NewReader(bytes.NewReader(src), nil)
	if err != nil {
		return nil, result, &WriteError{Reason: "open source document", Err: err}
	}

	pageRefs, err := pagetree.FindPages(r)
	if err != nil {
		return nil, result, &WriteError{Reason: "walk page tree", Err: err}
	}

	perPage := make(map[int][]Note)
	for _, n := range notes {
		if n.Page < 1 || n.Page > len(pageRefs) {
			result.Skipped = append(result.Skipped, Skip{
				Page:   n.Page,
				Title:  n.Title,
				Reason: fmt.Sprintf("page out of range (document has %d pages)", len(pageRefs)),
			})
			continue
		}
		perPage[n.Page] = append(perPage[n.Page], n)
	}

	var buf bytes.Buffer
	w, err := pdf.NewWriter(&buf, r.GetMeta().Version, nil)
	if err != nil {
		return nil, result, &WriteError{Reason: "create writer", Err: err}
	}

	copier := pdfcopy.NewCopier(w, r)

	// Pre-allocate replacements for the pages we modify, so that the page
	// tree copy points at our rewritten dictionaries instead of the
	// originals.
	newPageRef := make(map[int]pdf.Reference, len(perPage))
	for pageNum := range perPage {
		ref := w.Alloc()
		newPageRef[pageNum] = ref
		copier.Redirect(pageRefs[pageNum-1], ref)
	}

	for pageNum, pageNotes := range perPage {
		if err := ctx.Err(); err != nil {
			return nil, result, &WriteError{Reason: "cancelled", Err: err}
		}
		if err := annotatePage(r, w, copier, pageRefs[pageNum-1], newPageRef[pageNum], pageNotes); err != nil {
			return nil, result, &WriteError{Reason: fmt.Sprintf("rewrite page %d", pageNum), Err: err}
		}
		result.Added += len(pageNotes)
	}

	catalog := r.GetMeta().Catalog
	newCatDict, err := copier.CopyDict(pdf.AsDict(catalog))
	if err != nil {
		return nil, result, &WriteError{Reason: "copy catalog", Err: err}
	}
	if err := pdf.DecodeDict(r, catalog, newCatDict); err != nil {
		return nil, result, &WriteError{Reason: "decode catalog", Err: err}
	}
	w.GetMeta().Info = r.GetMeta().Info
	w.GetMeta().Catalog = catalog

	if err := w.Close(); err != nil {
		return nil, result, &WriteError{Reason: "finalize document", Err: err}
	}

	return buf.Bytes(), result, nil
}

// annotatePage copies one page dictionary, appends the new annotation
// references to its Annots array, and stores it under newRef.
func annotatePage(r *pdf.Reader, w *pdf.Writer, copier *pdfcopy.Copier, origRef, newRef pdf.Reference, notes []Note) error {
	srcDict, err := pdf.GetDictTyped(r, origRef, "Page")
	if err != nil {
		return err
	}

	pageDict, err := copier.CopyDict(srcDict)
	if err != nil {
		return err
	}

	box := mediaBox(r, srcDict)

	var annots pdf.Array
	if srcDict["Annots"] != nil {
		existing, err := pdf.GetArray(r, srcDict["Annots"])
		if err == nil && existing != nil {
			annots, err = copier.CopyArray(existing)
			if err != nil {
				return err
			}
		}
	}

	for _, n := range notes {
		annotRef := w.Alloc()
		if err := w.Put(annotRef, noteDict(n, box)); err != nil {
			return err
		}
		annots = append(annots, annotRef)
	}
	pageDict["Annots"] = annots

	return w.Put(newRef, pageDict)
}

// noteDict builds the Text annotation dictionary for one note, clamping the
// icon rectangle to the page box.
func noteDict(n Note, box *pdf.Rectangle) pdf.Dict {
	x, y := n.X, n.Y
	if !n.HasPos {
		x = box.URx - iconWidth - 2*edgeMargin
		y = box.URy - 2*edgeMargin
	}
	if x < box.LLx+edgeMargin {
		x = box.LLx + edgeMargin
	}
	if x > box.URx-iconWidth-edgeMargin {
		x = box.URx - iconWidth - edgeMargin
	}
	if y > box.URy-edgeMargin {
		y = box.URy - edgeMargin
	}
	if y < box.LLy+iconHeight+edgeMargin {
		y = box.LLy + iconHeight + edgeMargin
	}

	return pdf.Dict{
		"Type":     pdf.Name("Annot"),
		"Subtype":  pdf.Name("Text"),
		"Rect":     pdf.Array{pdf.Number(x), pdf.Number(y - iconHeight), pdf.Number(x + iconWidth), pdf.Number(y)},
		"Contents": pdf.TextString(n.Comment),
		"T":        pdf.TextString(n.Title),
		"Name":     pdf.Name("Note"),
		"Open":     pdf.Boolean(false),
	}
}

// mediaBox resolves the page's MediaBox, walking up the page tree for
// inherited values. US Letter is the fallback when nothing is declared.
func mediaBox(r *pdf.Reader, pageDict pdf.Dict) *pdf.Rectangle {
	dict := pageDict
	for i := 0; i < 32 && dict != nil; i++ {
		if dict["MediaBox"] != nil {
			if box, err := pdf.GetRectangle(r, dict["MediaBox"]); err == nil && box != nil {
				return box
			}
		}
		parent, err := pdf.GetDict(r, dict["Parent"])
		if err != nil {
			break
		}
		dict = parent
	}
	return &pdf.Rectangle{URx: 612, URy: 792}
}
