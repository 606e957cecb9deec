package match

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ndelvaux/jurisnote/internal/chapters"
	"github.com/ndelvaux/jurisnote/internal/subjects"
)

// Generator produces one model completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Decision is the verdict for one chapter.
type Decision struct {
	Matched     bool
	Subject     *subjects.Subject
	Explanation string

	// Downgraded records that a defective or failed model response was
	// folded into a non-match instead of aborting the run.
	Downgraded bool
}

// Config tunes the matching engine.
type Config struct {
	Model           string
	MaxRetries      int
	AttemptTimeout  time.Duration
	BodyPrefixRunes int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "llama3"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = MaxRetries
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 120 * time.Second
	}
	if c.BodyPrefixRunes <= 0 {
		c.BodyPrefixRunes = 4000
	}
	return c
}

// Engine matches chapters against a subject list through an LLM, with
// bounded retries. A chapter never fails the run: when the model cannot be
// made to answer sensibly, the chapter is downgraded to a non-match with an
// explanation saying why.
type Engine struct {
	client Generator
	cfg    Config
	stats  *LLMStats
	logger *slog.Logger
}

func NewEngine(client Generator, cfg Config, stats *LLMStats, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client: client,
		cfg:    cfg.withDefaults(),
		stats:  stats,
		logger: logger,
	}
}

// Model returns the configured model name.
func (e *Engine) Model() string {
	return e.cfg.Model
}

type modelReply struct {
	Matched        bool    `json:"matched"`
	MatchedSubject *string `json:"matched_subject"`
	Explanation    string  `json:"explanation"`
}

// MatchChapter asks the model whether the chapter addresses one of the
// subjects. The returned error is non-nil only when ctx ends; every other
// failure becomes a downgraded Decision.
func (e *Engine) MatchChapter(ctx context.Context, chapter chapters.Chapter, subs []subjects.Subject) (Decision, error) {
	prompt := BuildMatchPrompt(chapter.Title, chapter.Body, subjects.Labels(subs), e.cfg.BodyPrefixRunes)

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		if attempt > 0 {
			if err := sleepCtx(ctx, Backoff(attempt-1)); err != nil {
				return Decision{}, err
			}
		}

		reply, err := e.generateOnce(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return Decision{}, ctx.Err()
			}
			lastErr = err
			if !IsRetryable(err) {
				break
			}
			e.logger.Warn("match attempt failed",
				"chapter", chapter.Title,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		decision, ok := e.interpret(chapter, subs, reply)
		if ok {
			return decision, nil
		}
		lastErr = fmt.Errorf("defective model response")
		e.logger.Warn("defective model response",
			"chapter", chapter.Title,
			"attempt", attempt+1)
	}

	e.logger.Error("matching gave up", "chapter", chapter.Title, "error", lastErr)
	return Decision{
		Matched:     false,
		Explanation: fmt.Sprintf("Matching service unavailable for this chapter: %v", lastErr),
		Downgraded:  true,
	}, nil
}

func (e *Engine) generateOnce(ctx context.Context, prompt string) (*modelReply, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	started := time.Now()
	raw, err := e.client.Generate(attemptCtx, e.cfg.Model, prompt)
	if e.stats != nil {
		e.stats.Record(time.Since(started))
	}
	if err != nil {
		return nil, err
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, &RetryableError{Message: fmt.Sprintf("parse reply: %v (raw: %s)", err, truncate(raw, 200))}
	}
	return &reply, nil
}

// interpret validates a structurally sound reply. A reply claiming a match
// must name a loaded subject verbatim; one that names an unknown subject is
// downgraded rather than retried, since the model already answered and
// merely answered outside the list.
func (e *Engine) interpret(chapter chapters.Chapter, subs []subjects.Subject, reply *modelReply) (Decision, bool) {
	explanation := strings.TrimSpace(reply.Explanation)
	if explanation == "" {
		return Decision{}, false
	}

	if !reply.Matched {
		return Decision{Matched: false, Explanation: explanation}, true
	}

	if reply.MatchedSubject == nil || strings.TrimSpace(*reply.MatchedSubject) == "" {
		return Decision{}, false
	}

	label := strings.TrimSpace(*reply.MatchedSubject)
	subject := subjects.Find(subs, label)
	if subject == nil {
		e.logger.Warn("model proposed unknown subject",
			"chapter", chapter.Title,
			"subject", label)
		return Decision{
			Matched:     false,
			Explanation: fmt.Sprintf("Model proposed a subject outside the provided list (%q). %s", label, explanation),
			Downgraded:  true,
		}, true
	}

	return Decision{
		Matched:     true,
		Subject:     subject,
		Explanation: explanation,
	}, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
