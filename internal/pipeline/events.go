package pipeline

// Event is one entry in a processing session's ordered progress stream.
type Event interface {
	Kind() string
}

// StartEvent opens the stream once extraction has succeeded.
type StartEvent struct {
	SessionID     string `json:"session_id"`
	Filename      string `json:"filename"`
	PageCount     int    `json:"page_count"`
	TotalChapters int    `json:"total_chapters"`
	SubjectsCount int    `json:"subjects_count"`
}

func (StartEvent) Kind() string { return "start" }

// ProgressEvent announces that chapter Index of Total is being examined.
type ProgressEvent struct {
	Index        int    `json:"index"`
	Total        int    `json:"total"`
	Percent      int    `json:"progress_percent"`
	ChapterTitle string `json:"chapter_title"`
}

func (ProgressEvent) Kind() string { return "progress" }

// Analysis is the verdict for one chapter. CommentAdded carries the matched
// subject's comment verbatim; it is never generated text.
type Analysis struct {
	ChapterTitle   string  `json:"chapter_title"`
	ChapterPages   string  `json:"chapter_pages"`
	Matched        bool    `json:"matched"`
	MatchedSubject *string `json:"matched_subject,omitempty"`
	CommentAdded   *string `json:"comment_added,omitempty"`
	Explanation    string  `json:"explanation"`
}

// ChapterDoneEvent carries the analysis for one finished chapter.
type ChapterDoneEvent struct {
	Analysis Analysis `json:"analysis"`
}

func (ChapterDoneEvent) Kind() string { return "chapter_done" }

// AnnotatingEvent signals that matching is over and notes are being written.
type AnnotatingEvent struct {
	Notes int `json:"notes"`
}

func (AnnotatingEvent) Kind() string { return "annotating" }

// Summary aggregates a finished session.
type Summary struct {
	Chapters     int   `json:"chapters"`
	Matched      int   `json:"matched"`
	Downgraded   int   `json:"downgraded"`
	NotesAdded   int   `json:"notes_added"`
	NotesSkipped int   `json:"notes_skipped"`
	DurationMs   int64 `json:"duration_ms"`
}

// CompleteEvent terminates a successful stream. The annotated document is
// available from the session under PDFFilename.
type CompleteEvent struct {
	SessionID       string     `json:"session_id"`
	PDFFilename     string     `json:"pdf_filename"`
	TotalChapters   int        `json:"total_chapters"`
	MatchedChapters int        `json:"matched_chapters"`
	Analyses        []Analysis `json:"analyses"`
	Summary         Summary    `json:"summary"`
}

func (CompleteEvent) Kind() string { return "complete" }

// ErrorEvent terminates a failed stream. Exactly one terminal event is
// emitted per session, either this or CompleteEvent.
type ErrorEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (ErrorEvent) Kind() string { return "error" }

// Drain forwards events to sink until the stream closes. After the first
// sink failure remaining events are discarded instead of delivered, so the
// producing session can still send its terminal event and finish; the first
// sink error is returned.
func Drain(events <-chan Event, sink func(Event) error) error {
	var sinkErr error
	for ev := range events {
		if sinkErr != nil {
			continue
		}
		if err := sink(ev); err != nil {
			sinkErr = err
		}
	}
	return sinkErr
}
