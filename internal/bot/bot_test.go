package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bborn/jarvis/internal/ccm"
	"github.com/bborn/jarvis/internal/config"
	"github.com/bborn/jarvis/internal/db"
	"github.com/bborn/jarvis/internal/session"
	"github.com/charmbracelet/log"
)

type recordingSender struct {
	sent []string
}

func (r *recordingSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	r.sent = append(r.sent, text)
	return nil
}

type scriptedResponder struct {
	reply string
	err   error
	calls []string
}

func (s *scriptedResponder) Respond(ctx context.Context, sess *session.Session, text string) (string, error) {
	s.calls = append(s.calls, text)
	return s.reply, s.err
}

type scriptedRunner struct {
	out  string
	err  error
	dirs []string
}

func (s *scriptedRunner) Run(ctx context.Context, prompt, dir string, onChunk func(string)) (string, error) {
	s.dirs = append(s.dirs, dir)
	return s.out, s.err
}

func testBot(t *testing.T, responder Responder, runner AgentRunner) (*Bot, *recordingSender, *db.DB) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	sender := &recordingSender{}
	b := &Bot{
		sender:    sender,
		chatID:    1,
		sessions:  session.NewManager(),
		responder: responder,
		runner:    runner,
		db:        database,
		ccm:       ccm.NewClient("http://127.0.0.1:0"),
		cfg:       config.DefaultConfig(),
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "bot"}),
	}
	return b, sender, database
}

func seedProjects(t *testing.T, database *db.DB, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		p := &db.Project{
			Name: fmt.Sprintf("proj-%d", i),
			Path: fmt.Sprintf("/srv/proj-%d", i),
		}
		if err := database.CreateProject(p); err != nil {
			t.Fatalf("seed project %d: %v", i, err)
		}
	}
}

func TestProjectsEntersSelectionMode(t *testing.T) {
	b, sender, database := testBot(t, &scriptedResponder{}, &scriptedRunner{})
	seedProjects(t, database, 2)

	b.handleMessage(context.Background(), 1, "/projects")

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0], "proj-1") || !strings.Contains(sender.sent[0], "proj-2") {
		t.Errorf("listing missing projects: %q", sender.sent[0])
	}
	if !b.sessions.Get(1).InSelection() {
		t.Error("expected session in selection mode")
	}
}

func TestSelectionOutOfRangeRepromptsWithoutMutation(t *testing.T) {
	responder := &scriptedResponder{reply: "hi"}
	b, sender, database := testBot(t, responder, &scriptedRunner{})
	seedProjects(t, database, 2)

	ctx := context.Background()
	b.handleMessage(ctx, 1, "/projects")
	b.handleMessage(ctx, 1, "3")

	sess := b.sessions.Get(1)
	if sess.CurrentProject != nil {
		t.Errorf("out-of-range pick mutated current project: %+v", sess.CurrentProject)
	}
	if !sess.InSelection() {
		t.Error("out-of-range pick should keep selection mode active")
	}
	last := sender.sent[len(sender.sent)-1]
	if !strings.Contains(last, "between 1 and 2") {
		t.Errorf("expected re-prompt citing range, got %q", last)
	}
	if len(responder.calls) != 0 {
		t.Errorf("numeric pick must not reach the orchestrator, got %v", responder.calls)
	}
}

func TestSelectionPicksProjectAndClearsMode(t *testing.T) {
	b, sender, database := testBot(t, &scriptedResponder{}, &scriptedRunner{})
	seedProjects(t, database, 2)

	listed, err := database.ListProjects()
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}

	ctx := context.Background()
	b.handleMessage(ctx, 1, "/projects")
	b.handleMessage(ctx, 1, "2")

	sess := b.sessions.Get(1)
	if sess.InSelection() {
		t.Error("selection mode should be cleared after a valid pick")
	}
	want := listed[1]
	if sess.CurrentProject == nil || sess.CurrentProject.Name != want.Name {
		t.Errorf("expected %s selected, got %+v", want.Name, sess.CurrentProject)
	}
	last := sender.sent[len(sender.sent)-1]
	if !strings.Contains(last, want.Name) {
		t.Errorf("confirmation should name the project, got %q", last)
	}
}

func TestSelectionNonNumericRepromptsAndStaysPending(t *testing.T) {
	responder := &scriptedResponder{reply: "sure"}
	b, sender, database := testBot(t, responder, &scriptedRunner{})
	seedProjects(t, database, 2)

	ctx := context.Background()
	b.handleMessage(ctx, 1, "/projects")
	b.handleMessage(ctx, 1, "what's new?")

	sess := b.sessions.Get(1)
	if !sess.InSelection() {
		t.Error("selection mode must persist on non-numeric input")
	}
	if len(responder.calls) != 0 {
		t.Errorf("no other intent processing may happen while selecting, got %v", responder.calls)
	}
	last := sender.sent[len(sender.sent)-1]
	if !strings.Contains(last, "between 1 and 2") {
		t.Errorf("expected re-prompt citing range, got %q", last)
	}

	// A valid pick still works afterwards.
	b.handleMessage(ctx, 1, "1")
	if sess.InSelection() {
		t.Error("valid pick should clear selection mode")
	}
	if sess.CurrentProject == nil {
		t.Error("valid pick should set the current project")
	}
}

func TestPlainTextSendsThinkingAckThenReply(t *testing.T) {
	responder := &scriptedResponder{reply: "the answer"}
	b, sender, _ := testBot(t, responder, &scriptedRunner{})

	b.handleMessage(context.Background(), 1, "hello there")

	if len(sender.sent) != 2 {
		t.Fatalf("expected ack + reply, got %d messages: %v", len(sender.sent), sender.sent)
	}
	if !strings.Contains(sender.sent[0], "Thinking") {
		t.Errorf("first message should be the ack, got %q", sender.sent[0])
	}
	if sender.sent[1] != "the answer" {
		t.Errorf("reply = %q", sender.sent[1])
	}
}

func TestResponderErrorIsReportedVerbatim(t *testing.T) {
	responder := &scriptedResponder{err: fmt.Errorf("anthropic api status 503")}
	b, sender, _ := testBot(t, responder, &scriptedRunner{})

	b.handleMessage(context.Background(), 1, "hello")

	last := sender.sent[len(sender.sent)-1]
	if last != "Error: anthropic api status 503" {
		t.Errorf("error line = %q", last)
	}
}

func TestLongReplyIsChunked(t *testing.T) {
	responder := &scriptedResponder{reply: strings.Repeat("x", ChunkSize+100)}
	b, sender, _ := testBot(t, responder, &scriptedRunner{})

	b.handleMessage(context.Background(), 1, "dump it")

	// ack + 2 chunks
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sender.sent))
	}
	if len(sender.sent[1]) != ChunkSize || len(sender.sent[2]) != 100 {
		t.Errorf("chunk sizes = %d, %d", len(sender.sent[1]), len(sender.sent[2]))
	}
}

func TestRunUsesCurrentProjectDir(t *testing.T) {
	runner := &scriptedRunner{out: "done"}
	b, sender, database := testBot(t, &scriptedResponder{}, runner)
	seedProjects(t, database, 1)

	ctx := context.Background()
	b.handleMessage(ctx, 1, "/projects")
	b.handleMessage(ctx, 1, "1")
	b.handleMessage(ctx, 1, "/run fix the tests")

	if len(runner.dirs) != 1 || runner.dirs[0] != "/srv/proj-1" {
		t.Errorf("run dirs = %v", runner.dirs)
	}
	last := sender.sent[len(sender.sent)-1]
	if last != "done" {
		t.Errorf("run output = %q", last)
	}
}

func TestRunWithoutPromptShowsUsage(t *testing.T) {
	b, sender, _ := testBot(t, &scriptedResponder{}, &scriptedRunner{})

	b.handleMessage(context.Background(), 1, "/run")

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Usage") {
		t.Errorf("expected usage message, got %v", sender.sent)
	}
}

func TestClearResetsSession(t *testing.T) {
	responder := &scriptedResponder{reply: "ok"}
	b, sender, _ := testBot(t, responder, &scriptedRunner{})

	ctx := context.Background()
	sess := b.sessions.Get(1)
	sess.Append(session.RoleUser, "hello")
	b.handleMessage(ctx, 1, "/clear")

	if len(sess.History()) != 0 {
		t.Error("history should be empty after /clear")
	}
	last := sender.sent[len(sender.sent)-1]
	if last != "Context cleared." {
		t.Errorf("clear reply = %q", last)
	}
}

func TestUnknownCommand(t *testing.T) {
	b, sender, _ := testBot(t, &scriptedResponder{}, &scriptedRunner{})

	b.handleMessage(context.Background(), 1, "/frobnicate")

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "/frobnicate") {
		t.Errorf("expected unknown-command reply, got %v", sender.sent)
	}
}
