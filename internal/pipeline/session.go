package pipeline

import (
	"sync"
	"time"
)

// Status represents the state of a processing session.
type Status string

const (
	StatusExtracting Status = "extracting"
	StatusMatching   Status = "matching"
	StatusAnnotating Status = "annotating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Session tracks one document's trip through the pipeline and holds the
// annotated output until it is fetched or expires.
type Session struct {
	mu sync.Mutex

	ID       string `json:"session_id"`
	Filename string `json:"filename"`

	Status  Status  `json:"status"`
	Summary Summary `json:"summary"`
	Error   string  `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Not serialized.
	output     []byte
	outputName string
}

func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.UpdatedAt = time.Now()
}

func (s *Session) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusFailed
	s.Error = msg
	s.UpdatedAt = time.Now()
}

func (s *Session) Complete(summary Summary, output []byte, outputName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusCompleted
	s.Summary = summary
	s.output = output
	s.outputName = outputName
	s.UpdatedAt = time.Now()
}

// Output returns the annotated document and its suggested filename, or nil
// when the session has not completed.
func (s *Session) Output() ([]byte, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output, s.outputName
}

// Snapshot is a read-only, JSON-safe copy of session state.
type Snapshot struct {
	ID       string  `json:"session_id"`
	Filename string  `json:"filename"`
	Status   Status  `json:"status"`
	Summary  Summary `json:"summary"`
	Error    string  `json:"error,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:       s.ID,
		Filename: s.Filename,
		Status:   s.Status,
		Summary:  s.Summary,
		Error:    s.Error,
	}
}

// SessionStore is a thread-safe in-memory session registry with TTL
// eviction.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

func (s *SessionStore) New(filename string) *Session {
	now := time.Now()
	session := &Session{
		ID:        newSessionID(),
		Filename:  filename,
		Status:    StatusExtracting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session
}

func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Cleanup removes expired sessions.
func (s *SessionStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, session := range s.sessions {
		session.mu.Lock()
		expired := now.Sub(session.UpdatedAt) > s.ttl
		session.mu.Unlock()
		if expired {
			delete(s.sessions, id)
		}
	}
}
