package chapters

import (
	"strings"
	"testing"
)

func TestSuggestTitleSize(t *testing.T) {
	tests := []struct {
		name  string
		sizes []SizeBucket
		want  float64
	}{
		{
			name: "body dominates",
			sizes: []SizeBucket{
				{Size: 10, Count: 95},
				{Size: 14, Count: 3},
				{Size: 18, Count: 2},
			},
			want: 10,
		},
		{
			name: "headings in the top decile",
			sizes: []SizeBucket{
				{Size: 10, Count: 80},
				{Size: 12, Count: 9},
				{Size: 16, Count: 11},
			},
			want: 16,
		},
		{
			name:  "single size",
			sizes: []SizeBucket{{Size: 11, Count: 40}},
			want:  11,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := suggestTitleSize(tt.sizes); got != tt.want {
				t.Errorf("suggestTitleSize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoundSize(t *testing.T) {
	if got := roundSize(13.97); got != 14.0 {
		t.Errorf("roundSize(13.97) = %v, want 14.0", got)
	}
	if got := roundSize(10.04); got != 10.0 {
		t.Errorf("roundSize(10.04) = %v, want 10.0", got)
	}
}

func TestExampleOf_Truncates(t *testing.T) {
	long := strings.Repeat("é", 60)
	got := exampleOf(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long example should end in ellipsis, got %q", got)
	}
	if got != strings.Repeat("é", 50)+"..." {
		t.Errorf("truncation must count runes, got %q", got)
	}

	short := "Heading"
	if got := exampleOf(short); got != short {
		t.Errorf("short text must pass through unchanged, got %q", got)
	}
}
