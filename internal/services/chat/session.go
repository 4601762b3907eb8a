// Package chat keeps follow-up chat sessions: one analysis, one chat handle
// and one transcript per browser session.
package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/models"
)

// Session is the server-side state behind one session ID.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	handle      interfaces.ChatHandle
	transcript  []models.ChatMessage
	analysisID  string
	companyName string
	lastActive  time.Time
	generation  uint64

	// sendMu serializes chat turns; a handle has one sender at a time
	sendMu sync.Mutex

	analyzing atomic.Bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		lastActive: now,
		transcript: []models.ChatMessage{},
	}
}

// TryBeginAnalysis claims the session's in-flight analysis slot.
// It returns false when another analysis is already running.
func (s *Session) TryBeginAnalysis() bool {
	return s.analyzing.CompareAndSwap(false, true)
}

// EndAnalysis releases the in-flight analysis slot
func (s *Session) EndAnalysis() {
	s.analyzing.Store(false)
}

// Analyzing reports whether an analysis is in flight
func (s *Session) Analyzing() bool {
	return s.analyzing.Load()
}

// AnalysisID returns the ID of the analysis the chat is bound to, if any
func (s *Session) AnalysisID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysisID
}

// CompanyName returns the company of the current analysis, if any
func (s *Session) CompanyName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.companyName
}

// HasChat reports whether a chat handle is open
func (s *Session) HasChat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// Transcript returns a copy of the messages in order
func (s *Session) Transcript() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// LastActive returns the time of the last session activity
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// appendIfCurrent adds msg only when the session has not been reset since gen
func (s *Session) appendIfCurrent(gen uint64, msg models.ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.transcript = append(s.transcript, msg)
	s.lastActive = msg.CreatedAt
	return true
}
