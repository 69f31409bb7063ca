package session

import (
	"fmt"
	"testing"

	"github.com/bborn/jarvis/internal/db"
)

func TestHistoryBound(t *testing.T) {
	s := &Session{}

	// 11 exchanges = 22 entries; only the last 20 survive.
	for i := 0; i < 11; i++ {
		s.Append(RoleUser, fmt.Sprintf("question %d", i))
		s.Append(RoleAssistant, fmt.Sprintf("answer %d", i))
	}

	h := s.History()
	if len(h) != HistoryLimit {
		t.Fatalf("len = %d, want %d", len(h), HistoryLimit)
	}
	// Oldest entries evicted first: the window now starts at exchange 1.
	if h[0].Content != "question 1" {
		t.Errorf("h[0] = %q, want question 1", h[0].Content)
	}
	if h[len(h)-1].Content != "answer 10" {
		t.Errorf("last = %q, want answer 10", h[len(h)-1].Content)
	}
}

func TestContextWindowCap(t *testing.T) {
	s := &Session{}
	for i := 0; i < 10; i++ {
		s.Append(RoleUser, fmt.Sprintf("u%d", i))
		s.Append(RoleAssistant, fmt.Sprintf("a%d", i))
	}

	win := s.ContextWindow(6)
	if len(win) != 6 {
		t.Fatalf("len = %d, want 6", len(win))
	}
	if win[0].Content != "u7" {
		t.Errorf("win[0] = %q, want u7", win[0].Content)
	}

	if got := s.ContextWindow(100); len(got) != HistoryLimit {
		t.Errorf("oversized window len = %d, want %d", len(got), HistoryLimit)
	}
}

func TestSelection(t *testing.T) {
	s := &Session{}
	projects := []*db.Project{
		{ID: 1, Name: "alpha", Path: "/opt/alpha"},
		{ID: 2, Name: "beta", Path: "/opt/beta"},
	}
	s.BeginSelection(projects)

	if !s.InSelection() {
		t.Fatal("expected selection mode")
	}

	// Out-of-range pick mutates nothing.
	if _, ok := s.Select(3); ok {
		t.Error("Select(3) should fail with 2 entries")
	}
	if s.CurrentProject != nil {
		t.Error("CurrentProject should be untouched after failed pick")
	}
	if !s.InSelection() {
		t.Error("selection mode should persist after failed pick")
	}

	p, ok := s.Select(2)
	if !ok {
		t.Fatal("Select(2) should succeed")
	}
	if p.Name != "beta" {
		t.Errorf("selected %q, want beta", p.Name)
	}
	if s.InSelection() {
		t.Error("selection mode should clear after a pick")
	}
}

func TestBeginSelectionEmptyList(t *testing.T) {
	s := &Session{}
	s.BeginSelection(nil)
	if s.InSelection() {
		t.Error("empty list must not enter selection mode")
	}
}

func TestReset(t *testing.T) {
	s := &Session{}
	s.Append(RoleUser, "hello")
	s.CurrentProject = &db.Project{ID: 1, Name: "alpha"}
	s.BeginSelection([]*db.Project{{ID: 1, Name: "alpha"}})

	s.Reset()

	if len(s.History()) != 0 || s.CurrentProject != nil || s.InSelection() {
		t.Error("Reset should clear history, project, and selection state")
	}
}

func TestManagerReusesSession(t *testing.T) {
	m := NewManager()
	a := m.Get(42)
	a.Append(RoleUser, "hi")
	b := m.Get(42)
	if len(b.History()) != 1 {
		t.Error("Get should return the same session for a chat")
	}
	if c := m.Get(43); len(c.History()) != 0 {
		t.Error("distinct chats get distinct sessions")
	}
}
