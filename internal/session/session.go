// Package session holds per-chat conversational state.
//
// A Session lives in process memory only. It is mutated solely by the
// orchestrator and the selection handler for its own chat, which process
// turns strictly one at a time, so no locking is needed beyond the manager's
// map guard.
package session

import (
	"sync"

	"github.com/bborn/jarvis/internal/db"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryLimit bounds the rolling history to the most recent 20 entries
// (10 exchanges).
const HistoryLimit = 20

// Message is one turn of the rolling history.
type Message struct {
	Role    string
	Content string
}

// Session is the mutable context for one authorized chat.
type Session struct {
	// CurrentProject is the last selected project snapshot. It is not
	// re-validated against the remote service and may go stale.
	CurrentProject *db.Project

	waitingForSelection bool
	projectList         []*db.Project
	history             []Message
}

// Append adds a history entry, evicting the oldest beyond HistoryLimit.
func (s *Session) Append(role, content string) {
	s.history = append(s.history, Message{Role: role, Content: content})
	if len(s.history) > HistoryLimit {
		s.history = s.history[len(s.history)-HistoryLimit:]
	}
}

// History returns a copy of the rolling history.
func (s *Session) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// ContextWindow returns up to the last n history entries.
func (s *Session) ContextWindow(n int) []Message {
	if n <= 0 || len(s.history) == 0 {
		return nil
	}
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// Reset clears history and forgets the current project and any pending
// selection.
func (s *Session) Reset() {
	s.history = nil
	s.CurrentProject = nil
	s.waitingForSelection = false
	s.projectList = nil
}

// BeginSelection snapshots a project list and enters selection mode. An empty
// list is ignored: selection mode requires something to select from.
func (s *Session) BeginSelection(projects []*db.Project) {
	if len(projects) == 0 {
		return
	}
	s.projectList = projects
	s.waitingForSelection = true
}

// InSelection reports whether the session is waiting for a numeric pick.
func (s *Session) InSelection() bool {
	return s.waitingForSelection
}

// SelectionSize returns the number of snapshotted choices.
func (s *Session) SelectionSize() int {
	return len(s.projectList)
}

// Select picks the 1-based entry n from the snapshot, stores it as the
// current project, and leaves selection mode. Out-of-range picks leave all
// state untouched and return false.
func (s *Session) Select(n int) (*db.Project, bool) {
	if !s.waitingForSelection || n < 1 || n > len(s.projectList) {
		return nil, false
	}
	s.CurrentProject = s.projectList[n-1]
	s.waitingForSelection = false
	return s.CurrentProject, true
}

// Manager hands out sessions keyed by chat ID.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*Session)}
}

// Get returns the session for a chat, creating it on first use.
func (m *Manager) Get(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		s = &Session{}
		m.sessions[chatID] = s
	}
	return s
}
