package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ndelvaux/jurisnote/internal/annotate"
	"github.com/ndelvaux/jurisnote/internal/chapters"
	"github.com/ndelvaux/jurisnote/internal/match"
	"github.com/ndelvaux/jurisnote/internal/subjects"
)

// Matcher decides whether a chapter addresses one of the subjects.
type Matcher interface {
	MatchChapter(ctx context.Context, chapter chapters.Chapter, subs []subjects.Subject) (match.Decision, error)
}

// AnnotateFunc writes sticky notes into a document.
type AnnotateFunc func(ctx context.Context, src []byte, notes []annotate.Note) ([]byte, annotate.Result, error)

// Config tunes the orchestrator.
type Config struct {
	// SessionTTL is how long finished sessions (and their output bytes)
	// stay available.
	SessionTTL time.Duration

	// SessionDeadline bounds one full processing run.
	SessionDeadline time.Duration

	// ExtractOptions tune chapter detection.
	ExtractOptions chapters.Options
}

// Orchestrator runs the extract-match-annotate pipeline and publishes each
// session's progress as an ordered event stream.
// MatcherFactory builds the matcher for one session. The model argument is
// empty unless the request overrides the configured model.
type MatcherFactory func(model string) Matcher

type Orchestrator struct {
	newMatcher MatcherFactory
	annotate   AnnotateFunc
	extract    func(data []byte, opts chapters.Options) ([]chapters.Chapter, error)
	pageCount  func(data []byte) (int, error)
	sessions   *SessionStore
	log        *slog.Logger
	cfg        Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(cfg Config, newMatcher MatcherFactory, log *slog.Logger) *Orchestrator {
	if cfg.SessionDeadline <= 0 {
		cfg.SessionDeadline = 15 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		newMatcher: newMatcher,
		annotate:   annotate.Annotate,
		extract:    chapters.Extract,
		pageCount:  chapters.PageCount,
		sessions:   NewSessionStore(cfg.SessionTTL),
		log:        log,
		cfg:        cfg,
	}
}

// Start launches the session cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				o.sessions.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the orchestrator.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// GetSession returns a session by ID.
func (o *Orchestrator) GetSession(id string) *Session {
	return o.sessions.Get(id)
}

// Request is one document plus its subject list.
type Request struct {
	Filename string
	PDF      []byte
	Subjects []byte

	// MinTitleFontSize overrides the configured title threshold when
	// positive.
	MinTitleFontSize float64

	// Model overrides the configured model when non-empty.
	Model string
}

// Run starts processing and returns the session together with its event
// stream. Events arrive in order and the channel is closed when the session
// ends. The caller must read the channel to closure (Drain does this even
// when its sink fails); a consumer that keeps reading sees exactly one
// terminal event (complete or error).
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Session, <-chan Event) {
	session := o.sessions.New(req.Filename)
	events := make(chan Event)

	go func() {
		defer close(events)

		runCtx, cancel := context.WithTimeout(ctx, o.cfg.SessionDeadline)
		defer cancel()

		o.process(runCtx, session, req, events)
	}()

	return session, events
}

func (o *Orchestrator) process(ctx context.Context, session *Session, req Request, events chan<- Event) {
	log := o.log.With("session_id", session.ID, "filename", req.Filename)
	started := time.Now()

	// Terminal events are sent unconditionally: consumers drain the stream
	// until it closes, even after cancellation.
	fail := func(stage, msg string) {
		log.Error("session failed", "stage", stage, "error", msg)
		session.Fail(msg)
		events <- ErrorEvent{Stage: stage, Message: msg}
	}

	subs, err := subjects.Load(req.Subjects)
	if err != nil {
		fail("subjects", err.Error())
		return
	}

	opts := o.cfg.ExtractOptions
	if req.MinTitleFontSize > 0 {
		opts.MinTitleFontSize = req.MinTitleFontSize
	}

	chs, err := o.extract(req.PDF, opts)
	if err != nil {
		fail("chapters", err.Error())
		return
	}
	if len(chs) == 0 {
		fail("chapters", "no chapters detected in document")
		return
	}

	pageCount, err := o.pageCount(req.PDF)
	if err != nil {
		fail("chapters", err.Error())
		return
	}

	log.Info("extraction complete", "chapters", len(chs), "pages", pageCount, "subjects", len(subs))
	session.SetStatus(StatusMatching)
	if !o.emit(ctx, events, StartEvent{
		SessionID:     session.ID,
		Filename:      req.Filename,
		PageCount:     pageCount,
		TotalChapters: len(chs),
		SubjectsCount: len(subs),
	}) {
		return
	}

	matcher := o.newMatcher(req.Model)

	var notes []annotate.Note
	analyses := make([]Analysis, 0, len(chs))
	summary := Summary{Chapters: len(chs)}

	for i, chapter := range chs {
		if err := ctx.Err(); err != nil {
			fail("matching", fmt.Sprintf("session aborted: %v", err))
			return
		}

		if !o.emit(ctx, events, ProgressEvent{
			Index:        i + 1,
			Total:        len(chs),
			Percent:      i * 100 / len(chs),
			ChapterTitle: chapter.Title,
		}) {
			return
		}

		decision, err := matcher.MatchChapter(ctx, chapter, subs)
		if err != nil {
			fail("matching", fmt.Sprintf("session aborted: %v", err))
			return
		}
		if decision.Downgraded {
			summary.Downgraded++
		}

		analysis := Analysis{
			ChapterTitle: chapter.Title,
			ChapterPages: chapter.Pages(),
			Matched:      decision.Matched,
			Explanation:  decision.Explanation,
		}
		if decision.Matched {
			summary.Matched++
			label := decision.Subject.Label
			comment := decision.Subject.Comment
			analysis.MatchedSubject = &label
			analysis.CommentAdded = &comment
			notes = append(notes, annotate.Note{
				Page:    chapter.PageStart,
				Title:   decision.Subject.Label,
				Comment: decision.Subject.Comment,
				X:       chapter.Anchor.X,
				Y:       chapter.Anchor.Y,
				HasPos:  chapter.Anchor.Known,
			})
		}

		analyses = append(analyses, analysis)
		if !o.emit(ctx, events, ChapterDoneEvent{Analysis: analysis}) {
			return
		}
	}

	// Cancellation observed during matching means annotation never starts.
	if err := ctx.Err(); err != nil {
		fail("annotating", fmt.Sprintf("session aborted: %v", err))
		return
	}

	session.SetStatus(StatusAnnotating)
	if !o.emit(ctx, events, AnnotatingEvent{Notes: len(notes)}) {
		return
	}

	output, result, err := o.annotate(ctx, req.PDF, notes)
	if err != nil {
		fail("annotating", err.Error())
		return
	}
	summary.NotesAdded = result.Added
	summary.NotesSkipped = len(result.Skipped)
	for _, skip := range result.Skipped {
		log.Warn("note skipped", "page", skip.Page, "title", skip.Title, "reason", skip.Reason)
	}

	summary.DurationMs = time.Since(started).Milliseconds()
	outputName := OutputName(req.Filename)
	session.Complete(summary, output, outputName)
	log.Info("session complete",
		"chapters", summary.Chapters,
		"matched", summary.Matched,
		"notes_added", summary.NotesAdded,
		"duration_ms", summary.DurationMs)

	events <- CompleteEvent{
		SessionID:       session.ID,
		PDFFilename:     outputName,
		TotalChapters:   summary.Chapters,
		MatchedChapters: summary.Matched,
		Analyses:        analyses,
		Summary:         summary,
	}
}

// emit delivers one event, giving up when the session context ends.
func (o *Orchestrator) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// OutputName derives the annotated document's filename.
func OutputName(filename string) string {
	base := path.Base(filename)
	if strings.EqualFold(path.Ext(base), ".pdf") {
		base = base[:len(base)-4]
	}
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	return base + "_annotated.pdf"
}
