package chapters

import (
	"strings"
	"unicode/utf8"
)

// Options control the typographic fallback strategy.
type Options struct {
	// MinTitleFontSize is the smallest font size treated as a chapter
	// title. Zero means DefaultMinTitleFontSize.
	MinTitleFontSize float64

	// SizeTolerance treats nearly-equal sizes as the same visual size, so
	// a 13.98pt heading still clears a 14pt threshold.
	SizeTolerance float64

	// MaxTitleRunes rejects long lines: a title is a short standalone
	// line, not a paragraph that happens to be set large.
	MaxTitleRunes int
}

const (
	DefaultMinTitleFontSize = 14.0
	defaultSizeTolerance    = 0.5
	defaultMaxTitleRunes    = 120
)

func (o Options) withDefaults() Options {
	if o.MinTitleFontSize <= 0 {
		o.MinTitleFontSize = DefaultMinTitleFontSize
	}
	if o.SizeTolerance <= 0 {
		o.SizeTolerance = defaultSizeTolerance
	}
	if o.MaxTitleRunes <= 0 {
		o.MaxTitleRunes = defaultMaxTitleRunes
	}
	return o
}

// isTitle reports whether a line qualifies as a chapter title candidate.
func isTitle(line textLine, opts Options) bool {
	if line.fontSize < opts.MinTitleFontSize-opts.SizeTolerance {
		return false
	}
	if line.text == "" || utf8.RuneCountInString(line.text) > opts.MaxTitleRunes {
		return false
	}
	return true
}

// detectChapters runs the font-size heuristic over the document's lines
// (already in reading order across all pages). Every title candidate opens a
// chapter that ends on the page before the next candidate, or on lastPage
// for the final chapter. Text before the first title is ignored. A document
// with no title candidates yields nil, which is a defined outcome rather
// than an error.
func detectChapters(lines []textLine, lastPage int, opts Options) []Chapter {
	opts = opts.withDefaults()

	var titleIdx []int
	for i, line := range lines {
		if isTitle(line, opts) {
			titleIdx = append(titleIdx, i)
		}
	}
	if len(titleIdx) == 0 {
		return nil
	}

	chapters := make([]Chapter, 0, len(titleIdx))
	for n, ti := range titleIdx {
		title := lines[ti]

		end := lastPage
		bodyUntil := len(lines)
		if n+1 < len(titleIdx) {
			next := lines[titleIdx[n+1]]
			bodyUntil = titleIdx[n+1]
			end = next.page - 1
			if end < title.page {
				// Two titles on the same page: adjacent chapters
				// sharing that page.
				end = title.page
			}
		}

		var body strings.Builder
		for _, line := range lines[ti+1 : bodyUntil] {
			if body.Len() > 0 {
				body.WriteByte('\n')
			}
			body.WriteString(line.text)
		}

		chapters = append(chapters, Chapter{
			Title:     title.text,
			PageStart: title.page,
			PageEnd:   end,
			Body:      body.String(),
			Anchor: Anchor{
				X:     title.x1,
				Y:     title.y + title.fontSize,
				Known: true,
			},
		})
	}

	return chapters
}
