package chapters

import (
	"bytes"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"
)

// outlineEntry is one bookmark that resolved to a page.
type outlineEntry struct {
	title  string
	page   int // 1-based
	anchor Anchor
}

// maxOutlineItems bounds the traversal so a cyclic or absurd outline cannot
// run away.
const maxOutlineItems = 4096

// readOutlineEntries walks the document's embedded outline, if any, and
// returns the top-level items that resolve to a page, in outline order.
// A document without an outline (or whose items never resolve) returns nil;
// callers then fall back to the typographic heuristic.
func readOutlineEntries(data []byte) ([]outlineEntry, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, err
	}

	catalog := r.GetMeta().Catalog
	if catalog == nil || catalog.Outlines == 0 {
		return nil, nil
	}

	pageRefs, err := pagetree.FindPages(r)
	if err != nil {
		return nil, err
	}
	pageNumber := make(map[pdf.Reference]int, len(pageRefs))
	for i, ref := range pageRefs {
		if ref != 0 {
			pageNumber[ref] = i + 1
		}
	}

	root, err := pdf.GetDictTyped(r, catalog.Outlines, "Outlines")
	if err != nil {
		return nil, err
	}

	seen := map[pdf.Reference]bool{catalog.Outlines: true}
	var entries []outlineEntry

	ref, _ := root["First"].(pdf.Reference)
	for ref != 0 && len(seen) < maxOutlineItems {
		if seen[ref] {
			break // outline contains a loop
		}
		seen[ref] = true

		dict, err := pdf.GetDict(r, ref)
		if err != nil {
			return nil, err
		}

		title, err := pdf.GetTextString(r, dict["Title"])
		if err != nil {
			title = ""
		}

		if entry, ok := resolveEntry(r, dict, pageNumber, seen); ok && string(title) != "" {
			entry.title = string(title)
			entries = append(entries, entry)
		}

		ref, _ = dict["Next"].(pdf.Reference)
	}

	return entries, nil
}

// resolveEntry finds the page an outline item points at, descending into the
// item's first child when the item itself has no destination.
func resolveEntry(r pdf.Getter, dict pdf.Dict, pageNumber map[pdf.Reference]int, seen map[pdf.Reference]bool) (outlineEntry, bool) {
	for dict != nil && len(seen) < maxOutlineItems {
		if entry, ok := destEntry(r, destArray(r, dict), pageNumber); ok {
			return entry, true
		}
		childRef, _ := dict["First"].(pdf.Reference)
		if childRef == 0 || seen[childRef] {
			return outlineEntry{}, false
		}
		seen[childRef] = true
		child, err := pdf.GetDict(r, childRef)
		if err != nil {
			return outlineEntry{}, false
		}
		dict = child
	}
	return outlineEntry{}, false
}

// destArray extracts the explicit destination array from an outline item,
// looking at /Dest first and then at a GoTo action's /D. Named destinations
// are not resolved.
func destArray(r pdf.Getter, dict pdf.Dict) pdf.Array {
	if dict["Dest"] != nil {
		if arr, err := pdf.GetArray(r, dict["Dest"]); err == nil && len(arr) > 0 {
			return arr
		}
		return nil
	}
	action, err := pdf.GetDict(r, dict["A"])
	if err != nil || action == nil {
		return nil
	}
	if name, err := pdf.GetName(r, action["S"]); err != nil || name != "GoTo" {
		return nil
	}
	arr, err := pdf.GetArray(r, action["D"])
	if err != nil {
		return nil
	}
	return arr
}

// destEntry maps an explicit destination array to a page number and, for XYZ
// destinations, the target point on that page.
func destEntry(r pdf.Getter, dest pdf.Array, pageNumber map[pdf.Reference]int) (outlineEntry, bool) {
	if len(dest) == 0 {
		return outlineEntry{}, false
	}
	pageRef, ok := dest[0].(pdf.Reference)
	if !ok {
		return outlineEntry{}, false
	}
	page, ok := pageNumber[pageRef]
	if !ok {
		return outlineEntry{}, false
	}

	entry := outlineEntry{page: page}
	if len(dest) >= 4 {
		if kind, err := pdf.GetName(r, dest[1]); err == nil && kind == "XYZ" {
			left, errL := pdf.GetNumber(r, dest[2])
			top, errT := pdf.GetNumber(r, dest[3])
			if errL == nil && errT == nil && (left != 0 || top != 0) {
				entry.anchor = Anchor{X: float64(left), Y: float64(top), Known: true}
			}
		}
	}
	return entry, true
}
