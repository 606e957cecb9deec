package chapters

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"
)

// SizeBucket aggregates every span set at one font size.
type SizeBucket struct {
	Size     float64  `json:"size"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

// FontAnalysis summarises the font sizes used in a document, to help an
// operator pick the title threshold.
type FontAnalysis struct {
	Sizes              []SizeBucket `json:"font_sizes"`
	MinSize            float64      `json:"min_size"`
	MaxSize            float64      `json:"max_size"`
	SuggestedTitleSize float64      `json:"suggested_title_size"`
}

const maxExamplesPerSize = 3

// AnalyzeFontSizes scans all text lines and histograms their font sizes,
// keeping a few example strings per size. The suggested title size is the
// smallest size at or above the 90th percentile of line count: body text
// dominates by volume, so the top decile is where headings live.
func AnalyzeFontSizes(data []byte) (FontAnalysis, error) {
	reader, pageCount, err := open(data)
	if err != nil {
		return FontAnalysis{}, err
	}

	buckets := map[float64]*SizeBucket{}
	if err := collectSizes(reader, pageCount, buckets); err != nil {
		return FontAnalysis{}, err
	}

	if len(buckets) == 0 {
		return FontAnalysis{SuggestedTitleSize: DefaultMinTitleFontSize}, nil
	}

	analysis := FontAnalysis{Sizes: make([]SizeBucket, 0, len(buckets))}
	for _, b := range buckets {
		analysis.Sizes = append(analysis.Sizes, *b)
	}
	sort.Slice(analysis.Sizes, func(i, j int) bool {
		return analysis.Sizes[i].Size < analysis.Sizes[j].Size
	})

	analysis.MinSize = analysis.Sizes[0].Size
	analysis.MaxSize = analysis.Sizes[len(analysis.Sizes)-1].Size
	analysis.SuggestedTitleSize = suggestTitleSize(analysis.Sizes)

	return analysis, nil
}

func collectSizes(reader *pdflib.Reader, pageCount int, buckets map[float64]*SizeBucket) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StructuralError{Reason: fmt.Sprintf("content extraction failure: %v", r)}
		}
	}()

	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		for _, line := range pageLines(page, pageNum) {
			size := roundSize(line.fontSize)
			if size <= 0 {
				continue
			}
			b := buckets[size]
			if b == nil {
				b = &SizeBucket{Size: size}
				buckets[size] = b
			}
			b.Count++
			if len(b.Examples) < maxExamplesPerSize {
				example := exampleOf(line.text)
				if !slices.Contains(b.Examples, example) {
					b.Examples = append(b.Examples, example)
				}
			}
		}
	}
	return nil
}

// suggestTitleSize picks the smallest size whose cumulative share of lines
// reaches 90%.
func suggestTitleSize(sizes []SizeBucket) float64 {
	total := 0
	for _, b := range sizes {
		total += b.Count
	}
	cumulative := 0
	for _, b := range sizes {
		cumulative += b.Count
		if float64(cumulative)/float64(total) >= 0.90 {
			return b.Size
		}
	}
	return sizes[len(sizes)-1].Size
}

func roundSize(size float64) float64 {
	return math.Round(size*10) / 10
}

func exampleOf(text string) string {
	const limit = 50
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return fmt.Sprintf("%s...", string(runes[:limit]))
}
