package bot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bborn/jarvis/internal/ccm"
	"github.com/bborn/jarvis/internal/chunk"
	"github.com/bborn/jarvis/internal/config"
	"github.com/bborn/jarvis/internal/db"
	"github.com/bborn/jarvis/internal/session"
	"github.com/charmbracelet/log"
)

// ChunkSize is the per-message ceiling for outbound text. Telegram caps
// messages at 4096 characters.
const ChunkSize = 4000

const helpText = `Jarvis commands:
/projects - list registered projects, pick one by number
/status - host and service status
/inventory - discovered assets on this host
/run <prompt> - run claude in the current project directory
/clear - clear conversation context
/help - this message

Anything else is treated as a request in plain language.`

// Sender delivers text to a chat. *API satisfies it; tests substitute a
// recorder.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Responder turns a user utterance into a reply. Satisfied by
// *ai.Orchestrator.
type Responder interface {
	Respond(ctx context.Context, sess *session.Session, text string) (string, error)
}

// AgentRunner streams a claude run. Satisfied by *agent.Runner.
type AgentRunner interface {
	Run(ctx context.Context, prompt, dir string, onChunk func(string)) (string, error)
}

// Bot wires the Telegram transport to sessions, the orchestrator, the
// local inventory, and the agent runner. Only the configured chat is
// served; everything else is dropped.
type Bot struct {
	api       *API
	sender    Sender
	chatID    int64
	sessions  *session.Manager
	responder Responder
	runner    AgentRunner
	db        *db.DB
	ccm       *ccm.Client
	cfg       *config.Config
	logger    *log.Logger

	// OnTurn, when set, is called after each completed conversational turn.
	OnTurn func(userText, reply string)
}

// New builds a bot from the loaded config.
func New(cfg *config.Config, database *db.DB, ccmClient *ccm.Client, responder Responder, runner AgentRunner) *Bot {
	api := NewAPI(cfg.Telegram.BotToken)
	return &Bot{
		api:       api,
		sender:    api,
		chatID:    cfg.Telegram.ChatID,
		sessions:  session.NewManager(),
		responder: responder,
		runner:    runner,
		db:        database,
		ccm:       ccmClient,
		cfg:       cfg,
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "bot"}),
	}
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started", "chat_id", b.chatID)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.api.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("poll failed", "error", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			if u.Message.Chat.ID != b.chatID {
				b.logger.Warn("ignoring message from unauthorized chat", "chat_id", u.Message.Chat.ID)
				continue
			}
			b.handleMessage(ctx, u.Message.Chat.ID, u.Message.Text)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, chatID, text)
		return
	}
	b.handleText(ctx, chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, text string) {
	cmd, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/start", "/help":
		b.send(ctx, chatID, helpText)
	case "/projects":
		b.cmdProjects(ctx, chatID)
	case "/status":
		b.cmdStatus(ctx, chatID)
	case "/inventory":
		b.cmdInventory(ctx, chatID)
	case "/run":
		b.cmdRun(ctx, chatID, rest)
	case "/clear":
		b.sessions.Get(chatID).Reset()
		b.send(ctx, chatID, "Context cleared.")
	default:
		b.send(ctx, chatID, fmt.Sprintf("Unknown command %s. Try /help.", cmd))
	}
}

// handleText routes plain text: a pending project selection wins over the
// orchestrator.
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	sess := b.sessions.Get(chatID)

	if sess.InSelection() {
		b.handleSelection(ctx, chatID, sess, text)
		return
	}

	b.send(ctx, chatID, "🤖 Thinking...")

	reply, err := b.responder.Respond(ctx, sess, text)
	if err != nil {
		b.send(ctx, chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.send(ctx, chatID, reply)

	if b.OnTurn != nil {
		b.OnTurn(text, reply)
	}
}

// handleSelection consumes every plain-text message while a selection is
// pending. Nothing reaches the orchestrator until a valid pick is made;
// anything but an in-range number re-prompts.
func (b *Bot) handleSelection(ctx context.Context, chatID int64, sess *session.Session, text string) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		b.send(ctx, chatID, fmt.Sprintf("Please pick a number between 1 and %d.", sess.SelectionSize()))
		return
	}

	proj, ok := sess.Select(n)
	if !ok {
		b.send(ctx, chatID, fmt.Sprintf("Please pick a number between 1 and %d.", sess.SelectionSize()))
		return
	}
	b.send(ctx, chatID, fmt.Sprintf("Current project: %s (%s)", proj.Name, proj.Path))
}

func (b *Bot) cmdProjects(ctx context.Context, chatID int64) {
	projects, err := b.db.ListProjects()
	if err != nil {
		b.send(ctx, chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(projects) == 0 {
		b.send(ctx, chatID, "No projects registered yet.")
		return
	}

	sess := b.sessions.Get(chatID)
	sess.BeginSelection(projects)

	var sb strings.Builder
	sb.WriteString("Projects:\n")
	for i, p := range projects {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, p.Name, p.Path)
	}
	sb.WriteString("\nReply with a number to select one.")
	b.send(ctx, chatID, sb.String())
}

func (b *Bot) cmdStatus(ctx context.Context, chatID int64) {
	var sb strings.Builder
	sb.WriteString("📊 Status\n\n")

	host, _ := os.Hostname()
	fmt.Fprintf(&sb, "Host: %s (%s/%s, %d CPUs)\n", host, runtime.GOOS, runtime.GOARCH, runtime.NumCPU())

	if total, avail, ok := readMemInfo(); ok {
		fmt.Fprintf(&sb, "Memory: %s free of %s\n", formatMiB(avail), formatMiB(total))
	}

	if out, err := exec.CommandContext(ctx, "df", "-h", "/").Output(); err == nil {
		lines := strings.Split(strings.TrimSpace(string(out)), "\n")
		if len(lines) > 1 {
			fmt.Fprintf(&sb, "Disk: %s\n", strings.Join(strings.Fields(lines[len(lines)-1]), " "))
		}
	}

	if services, err := b.db.ListAssets(db.AssetService); err == nil && len(services) > 0 {
		fmt.Fprintf(&sb, "Services: %d supervised\n", len(services))
	}

	if n, err := b.ccm.Healthy(ctx); err == nil {
		fmt.Fprintf(&sb, "CCM: reachable, %d projects\n", n)
	} else {
		sb.WriteString("CCM: unreachable\n")
	}

	sess := b.sessions.Get(chatID)
	if p := sess.CurrentProject; p != nil {
		fmt.Fprintf(&sb, "Current project: %s (%s)\n", p.Name, p.Path)
	} else {
		sb.WriteString("Current project: none\n")
	}

	b.send(ctx, chatID, sb.String())
}

func (b *Bot) cmdInventory(ctx context.Context, chatID int64) {
	assets, err := b.db.ListAssets("")
	if err != nil {
		b.send(ctx, chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(assets) == 0 {
		b.send(ctx, chatID, "Inventory is empty. Run a scan first.")
		return
	}

	byType := map[string][]*db.Asset{}
	for _, a := range assets {
		byType[a.Type] = append(byType[a.Type], a)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var sb strings.Builder
	sb.WriteString("📦 Inventory\n")
	for _, t := range types {
		fmt.Fprintf(&sb, "\n%s (%d):\n", t, len(byType[t]))
		for _, a := range byType[t] {
			fmt.Fprintf(&sb, "  %s\n", a.Path)
		}
	}
	b.send(ctx, chatID, sb.String())
}

func (b *Bot) cmdRun(ctx context.Context, chatID int64, prompt string) {
	if prompt == "" {
		b.send(ctx, chatID, "Usage: /run <prompt>")
		return
	}

	sess := b.sessions.Get(chatID)
	dir := b.cfg.Agent.DefaultDir
	if sess.CurrentProject != nil {
		dir = sess.CurrentProject.Path
	}

	b.send(ctx, chatID, fmt.Sprintf("🔧 Running in %s...", dir))

	out, err := b.runner.Run(ctx, prompt, dir, nil)
	if err != nil {
		b.send(ctx, chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if strings.TrimSpace(out) == "" {
		out = "(no output)"
	}
	b.send(ctx, chatID, out)
}

// readMemInfo reads total and available memory in KiB from /proc/meminfo.
func readMemInfo() (total, avail int64, ok bool) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			avail = v
		}
	}
	return total, avail, total > 0
}

func formatMiB(kib int64) string {
	return fmt.Sprintf("%d MiB", kib/1024)
}

// Notify delivers an unsolicited message to the authorized chat, chunked
// like any other reply.
func (b *Bot) Notify(ctx context.Context, text string) {
	b.send(ctx, b.chatID, text)
}

// send splits text into Telegram-sized chunks and delivers them in order.
func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	for _, part := range chunk.Split(text, ChunkSize) {
		if err := b.sender.SendMessage(ctx, chatID, part); err != nil {
			b.logger.Error("send failed", "error", err)
			return
		}
	}
}
