package pipeline

import (
	"encoding/json"
	"strings"
	"testing"
)

// The event payloads are consumed by external clients; the field names are
// part of the contract.
func TestEventJSONFieldNames(t *testing.T) {
	subject := "Confidentiality"
	comment := "Check duration (5y)"
	analysis := Analysis{
		ChapterTitle:   "1. Confidentiality",
		ChapterPages:   "2-3",
		Matched:        true,
		MatchedSubject: &subject,
		CommentAdded:   &comment,
		Explanation:    "covers secrecy",
	}

	tests := []struct {
		ev   Event
		want []string
	}{
		{StartEvent{TotalChapters: 3}, []string{`"total_chapters":3`}},
		{ProgressEvent{Index: 1, Total: 3, Percent: 0, ChapterTitle: "1. Confidentiality"},
			[]string{`"chapter_title":"1. Confidentiality"`, `"progress_percent":0`}},
		{ChapterDoneEvent{Analysis: analysis},
			[]string{`"chapter_pages":"2-3"`, `"matched_subject":"Confidentiality"`, `"comment_added":"Check duration (5y)"`}},
		{CompleteEvent{PDFFilename: "contract_annotated.pdf", TotalChapters: 3, MatchedChapters: 1, Analyses: []Analysis{analysis}},
			[]string{`"pdf_filename":"contract_annotated.pdf"`, `"total_chapters":3`, `"matched_chapters":1`, `"analyses":[`}},
		{ErrorEvent{Stage: "chapters", Message: "boom"}, []string{`"message":"boom"`}},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.ev)
		if err != nil {
			t.Fatalf("marshal %s: %v", tt.ev.Kind(), err)
		}
		for _, want := range tt.want {
			if !strings.Contains(string(data), want) {
				t.Errorf("%s event %s is missing %s", tt.ev.Kind(), data, want)
			}
		}
	}
}
