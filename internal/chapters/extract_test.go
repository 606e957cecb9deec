package chapters

import "testing"

func TestChapterBody(t *testing.T) {
	pages := []string{
		"Preamble.\n1. Confidentiality\nAll information is secret.",
		"Still secret on page two.",
		"End of secrecy.\n2. Payment\nInvoices are due net-30.\n3. Delivery\nShip within ten days.",
	}
	tests := []struct {
		name             string
		start, end       int
		title, nextTitle string
		want             string
	}{
		{"own title and preamble cut", 1, 2, "1. Confidentiality", "",
			"All information is secret.\nStill secret on page two."},
		{"next title cuts the tail", 1, 3, "1. Confidentiality", "2. Payment",
			"All information is secret.\nStill secret on page two.\nEnd of secrecy."},
		{"shared page keeps only own text", 3, 3, "2. Payment", "3. Delivery",
			"Invoices are due net-30."},
		{"last chapter on shared page", 3, 3, "3. Delivery", "",
			"Ship within ten days."},
		{"unlocatable title leaves text whole", 2, 2, "Chapter II", "",
			"Still secret on page two."},
	}
	for _, tt := range tests {
		if got := chapterBody(pages, tt.start, tt.end, tt.title, tt.nextTitle); got != tt.want {
			t.Errorf("%s: chapterBody = %q, want %q", tt.name, got, tt.want)
		}
	}
}
