// Package subjects loads and validates the subject/comment table that drives
// the annotation run.
package subjects

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Subject pairs a label to search for in the contract with the comment to
// insert when a chapter matches it.
type Subject struct {
	Label   string `json:"label"`
	Comment string `json:"comment"`
}

// ValidationError reports a subject file that cannot be used. Loads are
// atomic: a ValidationError means no subjects at all were produced.
type ValidationError struct {
	Missing []string // required columns that were not found
	Reason  string   // set when the columns were present but the rows unusable
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("subject file is missing required column(s): %s", strings.Join(e.Missing, ", "))
	}
	return "invalid subject file: " + e.Reason
}

// Accepted header spellings, matched case-insensitively.
var (
	labelHeaders   = []string{"subject", "sujet", "clause", "topic"}
	commentHeaders = []string{"comment", "commentaire", "annotation", "note"}
)

// Load parses a delimited subject table. The first row must be a header row
// containing a subject column and a comment column (synonyms above). Rows
// with an empty label or comment are skipped; if every row is skipped the
// load fails rather than returning an empty list. Row order is preserved and
// duplicate labels are kept as distinct entries.
//
// Both comma- and tab-separated input are accepted; the delimiter is chosen
// by inspecting the header line.
func Load(data []byte) ([]Subject, error) {
	text := decode(data)

	reader := csv.NewReader(strings.NewReader(text))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	if delim := detectDelimiter(text); delim != 0 {
		reader.Comma = delim
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("parse error: %v", err)}
	}
	if len(records) == 0 {
		return nil, &ValidationError{Missing: []string{labelHeaders[0], commentHeaders[0]}}
	}

	header := records[0]
	labelCol := findColumn(header, labelHeaders)
	commentCol := findColumn(header, commentHeaders)

	var missing []string
	if labelCol < 0 {
		missing = append(missing, labelHeaders[0])
	}
	if commentCol < 0 {
		missing = append(missing, commentHeaders[0])
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	var subjects []Subject
	for _, row := range records[1:] {
		if labelCol >= len(row) || commentCol >= len(row) {
			continue
		}
		label := strings.TrimSpace(row[labelCol])
		comment := strings.TrimSpace(row[commentCol])
		if label == "" || comment == "" {
			continue
		}
		subjects = append(subjects, Subject{Label: label, Comment: comment})
	}

	if len(subjects) == 0 {
		return nil, &ValidationError{Reason: "no valid rows (every row has an empty subject or comment)"}
	}
	return subjects, nil
}

// LoadReader is a convenience wrapper around Load for streaming callers.
func LoadReader(r io.Reader) ([]Subject, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read subject file: %w", err)
	}
	return Load(data)
}

// Labels returns the subject labels in input order.
func Labels(subjects []Subject) []string {
	labels := make([]string, len(subjects))
	for i, s := range subjects {
		labels[i] = s.Label
	}
	return labels
}

// Find returns the subject whose label equals the given string exactly, or
// nil if no loaded subject carries that label.
func Find(subjects []Subject, label string) *Subject {
	for i := range subjects {
		if subjects[i].Label == label {
			return &subjects[i]
		}
	}
	return nil
}

// Preview is the read-only payload served to UI callers that want to inspect
// a subject file before starting a run.
type Preview struct {
	Valid         bool      `json:"valid"`
	SubjectsCount int       `json:"subjects_count"`
	Subjects      []Subject `json:"subjects,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Inspect runs Load and folds the outcome into a Preview instead of an error.
func Inspect(data []byte) Preview {
	subjects, err := Load(data)
	if err != nil {
		return Preview{Valid: false, Error: err.Error()}
	}
	return Preview{Valid: true, SubjectsCount: len(subjects), Subjects: subjects}
}

func findColumn(header []string, accepted []string) int {
	for i, cell := range header {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\uFEFF")))
		for _, want := range accepted {
			if normalized == want {
				return i
			}
		}
	}
	return -1
}

// detectDelimiter picks tab over comma when the header line is tab-separated.
func detectDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.ContainsRune(line, '\t') && !strings.ContainsRune(line, ',') {
		return '\t'
	}
	return 0
}

// decode interprets the raw bytes as UTF-8, falling back to Latin-1 for
// legacy exports.
func decode(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
