package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/models"
)

// ApologyMessage replaces a reply when the chat stream fails
const ApologyMessage = "죄송합니다, 오류가 발생했습니다. 다시 시도해 주세요."

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrChatNotInitialized = errors.New("채팅이 초기화되지 않았습니다.")
	ErrEmptyMessage       = errors.New("메시지를 입력해주세요.")
	ErrMessageTooLong     = errors.New("메시지가 너무 깁니다.")
)

// EventType names a chat stream event
type EventType string

const (
	EventFragment EventType = "fragment"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one item of a chat reply stream.
// A stream is zero or more fragments followed by exactly one done or error event;
// done carries the assembled reply and error carries the apology.
type Event struct {
	Type EventType `json:"type"`
	Text string    `json:"text"`
}

// Manager owns all live sessions
type Manager struct {
	transcripts      interfaces.TranscriptStorage
	idleTimeout      time.Duration
	sweepSchedule    string
	maxMessageLength int
	logger           arbor.ILogger
	now              func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	cron    *cron.Cron
	running bool
}

// NewManager creates a session manager. transcripts may be nil.
func NewManager(cfg *common.ChatConfig, transcripts interfaces.TranscriptStorage, logger arbor.ILogger) *Manager {
	return &Manager{
		transcripts:      transcripts,
		idleTimeout:      common.ParseDuration(cfg.SessionIdleTimeout, 2*time.Hour),
		sweepSchedule:    cfg.SweepSchedule,
		maxMessageLength: cfg.MaxMessageLength,
		logger:           logger,
		now:              time.Now,
		sessions:         make(map[string]*Session),
	}
}

// Create registers a new empty session
func (m *Manager) Create() *Session {
	s := newSession(common.NewSessionID(), m.now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug().Str("session_id", s.ID).Msg("Session created")
	return s
}

// Get returns the session with the given ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reset drops the session's chat handle and transcript and binds a new chat.
// A nil handle leaves the session without chat. A non-empty greeting becomes
// the first model message of the new transcript.
func (m *Manager) Reset(ctx context.Context, id string, handle interfaces.ChatHandle, analysisID, companyName, greeting string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}

	now := m.now()
	s.mu.Lock()
	s.generation++
	s.handle = handle
	s.analysisID = analysisID
	s.companyName = companyName
	s.transcript = []models.ChatMessage{}
	s.lastActive = now
	var greetingMsg *models.ChatMessage
	if greeting != "" {
		msg := models.ChatMessage{Role: models.ChatRoleModel, Text: greeting, CreatedAt: now}
		s.transcript = append(s.transcript, msg)
		greetingMsg = &msg
	}
	s.mu.Unlock()

	if m.transcripts != nil {
		if err := m.transcripts.DeleteTranscript(ctx, id); err != nil {
			m.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to delete stored transcript")
		}
	}
	if greetingMsg != nil {
		m.mirror(ctx, id, *greetingMsg)
	}
	return nil
}

// Transcript returns the session's messages in order. Sessions no longer in
// memory are served from the transcript store until their entries expire.
func (m *Manager) Transcript(ctx context.Context, id string) ([]models.ChatMessage, error) {
	if s, err := m.Get(id); err == nil {
		return s.Transcript(), nil
	}
	if m.transcripts == nil {
		return nil, ErrSessionNotFound
	}

	msgs, err := m.transcripts.LoadTranscript(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrSessionNotFound
	}
	return msgs, nil
}

// Send validates a chat message and returns the reply stream.
//
// The user message is recorded when iteration starts. Fragments are emitted as
// they arrive, then the assembled reply is recorded and emitted as done. A
// stream failure is recorded and emitted as the apology message instead.
func (m *Manager) Send(ctx context.Context, id, text string) (iter.Seq[Event], error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if m.maxMessageLength > 0 && utf8.RuneCountInString(text) > m.maxMessageLength {
		return nil, ErrMessageTooLong
	}
	if !s.HasChat() {
		return nil, ErrChatNotInitialized
	}

	return func(yield func(Event) bool) {
		s.sendMu.Lock()
		defer s.sendMu.Unlock()
		s.touch(m.now())

		s.mu.Lock()
		handle := s.handle
		gen := s.generation
		s.mu.Unlock()

		if handle == nil {
			yield(Event{Type: EventError, Text: ErrChatNotInitialized.Error()})
			return
		}

		m.record(ctx, s, gen, models.ChatRoleUser, text)

		var reply strings.Builder
		var streamErr error
		for fragment, err := range handle.SendMessageStream(ctx, text) {
			if err != nil {
				streamErr = err
				break
			}
			reply.WriteString(fragment)
			if !yield(Event{Type: EventFragment, Text: fragment}) {
				// Consumer went away; keep what was received
				m.record(ctx, s, gen, models.ChatRoleModel, reply.String())
				return
			}
		}

		if streamErr != nil {
			m.logger.Warn().
				Err(streamErr).
				Str("session_id", id).
				Int("received", reply.Len()).
				Msg("Chat stream failed")
			m.record(ctx, s, gen, models.ChatRoleModel, ApologyMessage)
			yield(Event{Type: EventError, Text: ApologyMessage})
			return
		}

		m.record(ctx, s, gen, models.ChatRoleModel, reply.String())
		yield(Event{Type: EventDone, Text: reply.String()})
	}, nil
}

func (m *Manager) record(ctx context.Context, s *Session, gen uint64, role models.ChatRole, text string) {
	msg := models.ChatMessage{Role: role, Text: text, CreatedAt: m.now()}
	if !s.appendIfCurrent(gen, msg) {
		m.logger.Debug().Str("session_id", s.ID).Msg("Session reset during chat turn, message dropped")
		return
	}
	m.mirror(ctx, s.ID, msg)
}

func (m *Manager) mirror(ctx context.Context, id string, msg models.ChatMessage) {
	if m.transcripts == nil {
		return
	}
	if err := m.transcripts.AppendMessage(context.WithoutCancel(ctx), id, msg); err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to store transcript message")
	}
}

// Sweep drops sessions idle longer than the idle timeout and returns how many
// were removed. Sessions with an analysis in flight are kept.
func (m *Manager) Sweep(now time.Time) int {
	var expired []string

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Analyzing() {
			continue
		}
		if now.Sub(s.LastActive()) > m.idleTimeout {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	if len(expired) > 0 {
		m.logger.Info().
			Int("expired", len(expired)).
			Int("remaining", m.Count()).
			Msg("Idle chat sessions swept")
	}
	return len(expired)
}

// Start schedules the idle sweep
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("session sweeper already running")
	}

	schedule := m.sweepSchedule
	if schedule == "" {
		schedule = "*/10 * * * *"
	}

	m.cron = cron.New()
	if _, err := m.cron.AddFunc(schedule, func() { m.Sweep(m.now()) }); err != nil {
		return fmt.Errorf("failed to add sweep schedule: %w", err)
	}
	m.cron.Start()
	m.running = true

	m.logger.Info().
		Str("schedule", schedule).
		Dur("idle_timeout", m.idleTimeout).
		Msg("Session sweeper started")
	return nil
}

// Stop halts the idle sweep and waits for a running sweep to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	c := m.cron
	m.running = false
	m.mu.Unlock()

	<-c.Stop().Done()
	m.logger.Info().Msg("Session sweeper stopped")
}
