// Package agent runs the claude CLI over a project working directory,
// locally or on a configured remote host.
package agent

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bborn/jarvis/internal/config"
)

// allowedTools is the claude CLI tool allowlist for /run executions.
const allowedTools = "Bash,Read,Write,Edit,Glob,Grep"

// Runner executes coding-agent prompts. The backend is picked from
// configuration: a Fly.io sprite when one is named, SSH when a host is set,
// the local claude binary otherwise.
type Runner struct {
	cfg    config.AgentConfig
	logger *log.Logger
}

// NewRunner creates a runner from configuration.
func NewRunner(cfg config.AgentConfig) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "agent"}),
	}
}

// Run executes the prompt with workDir as the working directory and returns
// the full captured output. onChunk, when non-nil, receives stdout
// incrementally. A non-zero exit surfaces as an error carrying the
// accumulated cleaned output.
func (r *Runner) Run(ctx context.Context, prompt, workDir string, onChunk func(string)) (string, error) {
	switch {
	case r.cfg.SpriteName != "":
		r.logger.Info("running agent on sprite", "sprite", r.cfg.SpriteName, "dir", workDir)
		return r.runSprite(ctx, prompt, workDir, onChunk)
	case r.cfg.SSHHost != "":
		r.logger.Info("running agent over ssh", "host", r.cfg.SSHHost, "dir", workDir)
		return r.runSSH(ctx, prompt, workDir, onChunk)
	default:
		r.logger.Info("running agent locally", "dir", workDir)
		return r.runLocal(ctx, prompt, workDir, onChunk)
	}
}

func (r *Runner) runLocal(ctx context.Context, prompt, workDir string, onChunk func(string)) (string, error) {
	cmd := exec.CommandContext(ctx, "claude", "--print", "--allowedTools", allowedTools, prompt)
	cmd.Dir = workDir
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start claude: %w", err)
	}

	var mu sync.Mutex
	var output strings.Builder

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text() + "\n"
			mu.Lock()
			output.WriteString(line)
			mu.Unlock()
			if onChunk != nil {
				onChunk(line)
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			mu.Lock()
			output.WriteString(scanner.Text() + "\n")
			mu.Unlock()
		}
	}()

	wg.Wait()
	err = cmd.Wait()

	mu.Lock()
	result := output.String()
	mu.Unlock()

	if err != nil {
		return "", fmt.Errorf("claude exited: %w: %s", err, result)
	}
	return result, nil
}

// remoteCommand builds the shell line executed on the remote side. The
// prompt rides inside single quotes, so embedded single quotes are rewritten
// to the '\'' form.
func remoteCommand(prompt, workDir string) string {
	escaped := strings.ReplaceAll(prompt, "'", `'\''`)
	return fmt.Sprintf("source ~/.bashrc 2>/dev/null; cd '%s' && claude --print --allowedTools '%s' '%s'",
		workDir, allowedTools, escaped)
}

// chunkWriter forwards writes to an accumulator and an optional callback.
type chunkWriter struct {
	mu      sync.Mutex
	buf     strings.Builder
	onChunk func(string)
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf.WriteString(string(p))
	w.mu.Unlock()
	if w.onChunk != nil {
		w.onChunk(string(p))
	}
	return len(p), nil
}

func (w *chunkWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
