package chapters

import (
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// textLine is one visual line of text with its position and dominant font
// size. The heuristic strategy works entirely on these.
type textLine struct {
	page     int // 1-based
	text     string
	fontSize float64
	x0, x1   float64 // horizontal extent
	y        float64 // baseline, PDF user space
}

// yTolerance is how far apart two span baselines may be while still being
// treated as the same visual line.
const yTolerance = 2.0

// pageLines assembles the positioned text spans of one page into lines in
// reading order (top to bottom, left to right).
func pageLines(page pdflib.Page, pageNum int) []textLine {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	// Sort spans top-to-bottom, then left-to-right. PDF Y grows upward.
	spans := make([]pdflib.Text, len(content.Text))
	copy(spans, content.Text)
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Y != spans[j].Y {
			return spans[i].Y > spans[j].Y
		}
		return spans[i].X < spans[j].X
	})

	var lines []textLine
	var cur *textLine
	var sb strings.Builder

	flush := func() {
		if cur == nil {
			return
		}
		cur.text = strings.TrimSpace(sb.String())
		if cur.text != "" {
			lines = append(lines, *cur)
		}
		cur = nil
		sb.Reset()
	}

	for _, span := range spans {
		if span.S == "" {
			continue
		}
		if cur == nil || span.Y < cur.y-yTolerance || span.Y > cur.y+yTolerance {
			flush()
			cur = &textLine{
				page:     pageNum,
				fontSize: span.FontSize,
				x0:       span.X,
				x1:       span.X + span.W,
				y:        span.Y,
			}
			sb.WriteString(span.S)
			continue
		}
		// Same line: keep the largest font size, widen the extent.
		if span.FontSize > cur.fontSize {
			cur.fontSize = span.FontSize
		}
		if span.X < cur.x0 {
			cur.x0 = span.X
		}
		if span.X+span.W > cur.x1 {
			cur.x1 = span.X + span.W
		}
		sb.WriteString(span.S)
	}
	flush()

	return lines
}
