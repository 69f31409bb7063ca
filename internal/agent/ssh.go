package agent

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const sshDialTimeout = 10 * time.Second

// runSSH executes the agent on the configured remote host. The session gets
// a forced PTY since the claude CLI produces no output without one, which is
// also why the captured output needs escape-sequence stripping.
func (r *Runner) runSSH(ctx context.Context, prompt, workDir string, onChunk func(string)) (string, error) {
	client, err := r.dialSSH(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh session: %w", err)
	}
	defer sess.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm", 80, 200, modes); err != nil {
		return "", fmt.Errorf("request pty: %w", err)
	}

	out := &chunkWriter{onChunk: onChunk}
	sess.Stdout = out
	sess.Stderr = out

	// Cancel the session if the context dies while the command runs.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sess.Close()
		case <-done:
		}
	}()

	runErr := sess.Run(remoteCommand(prompt, workDir))
	clean := strings.TrimSpace(StripANSI(out.String()))

	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			return "", fmt.Errorf("claude exited with code %d: %s", exitErr.ExitStatus(), clean)
		}
		return "", fmt.Errorf("ssh run: %w: %s", runErr, clean)
	}
	return clean, nil
}

func (r *Runner) dialSSH(ctx context.Context) (*ssh.Client, error) {
	signers, err := r.loadSigners()
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            r.cfg.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signers...)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sshDialTimeout,
	}

	addr := r.cfg.SSHHost
	if !strings.Contains(addr, ":") {
		addr += ":22"
	}

	dialer := net.Dialer{Timeout: sshDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// loadSigners reads the configured key, or the usual defaults.
func (r *Runner) loadSigners() ([]ssh.Signer, error) {
	paths := []string{r.cfg.SSHKey}
	if r.cfg.SSHKey == "" {
		home, _ := os.UserHomeDir()
		paths = []string{
			filepath.Join(home, ".ssh", "id_ed25519"),
			filepath.Join(home, ".ssh", "id_rsa"),
		}
	}

	var signers []ssh.Signer
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			r.logger.Warn("unusable ssh key", "path", path, "error", err)
			continue
		}
		signers = append(signers, signer)
	}

	if len(signers) == 0 {
		return nil, fmt.Errorf("no usable ssh key found")
	}
	return signers, nil
}
