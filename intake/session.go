package intake

import (
	"sync"

	"github.com/m3rciful/intakebot/convo"
)

// Session is the in-memory dialog state for one chat. The transcript it holds
// is the authoritative copy between persists; QuestionIndex counts how many
// scripted questions have been answered and never exceeds the script length.
type Session struct {
	ChatID int64

	mu            sync.Mutex
	hydrated      bool
	transcript    convo.Transcript
	questionIndex int
}

// lock takes the per-session mutex; updates for one chat are serialized.
func (s *Session) lock()   { s.mu.Lock() }
func (s *Session) unlock() { s.mu.Unlock() }

// openEnded reports whether the scripted part of the dialog is finished.
func (s *Session) openEnded(script *Script) bool {
	return s.questionIndex >= len(script.Questions)
}

// hydrate seeds the session from a stored transcript. The question index is
// derived: each user turn answered one scripted question, capped at the
// script length.
func (s *Session) hydrate(script *Script, transcript convo.Transcript) {
	s.transcript = transcript
	idx := transcript.CountRole(convo.RoleUser)
	if max := len(script.Questions); idx > max {
		idx = max
	}
	s.questionIndex = idx
	s.hydrated = true
}

// sessions is a lazy per-chat session map.
type sessions struct {
	mu   sync.Mutex
	byID map[int64]*Session
}

func newSessions() *sessions {
	return &sessions{byID: make(map[int64]*Session)}
}

// acquire returns the session for chatID, creating it on first use.
func (m *sessions) acquire(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[chatID]
	if !ok {
		s = &Session{ChatID: chatID}
		m.byID[chatID] = s
	}
	return s
}

// len reports how many chats currently hold a session.
func (m *sessions) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
