package agent

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/superfly/sprites-go"
)

// runSprite executes the agent on a Fly.io sprite. Sprite commands run
// through a TTY for the same reason the SSH path forces one, so the output
// gets the same cleanup.
func (r *Runner) runSprite(ctx context.Context, prompt, workDir string, onChunk func(string)) (string, error) {
	if r.cfg.SpriteToken == "" {
		return "", fmt.Errorf("no sprite token configured")
	}

	client := sdk.New(r.cfg.SpriteToken)
	sprite := client.Sprite(r.cfg.SpriteName)

	cmd := sprite.CommandContext(ctx, "sh", "-c", remoteCommand(prompt, workDir))
	cmd.SetTTY(true)

	out := &chunkWriter{onChunk: onChunk}
	cmd.Stdout = out
	cmd.Stderr = out

	runErr := cmd.Run()
	clean := strings.TrimSpace(StripANSI(out.String()))

	if runErr != nil {
		return "", fmt.Errorf("sprite run: %w: %s", runErr, clean)
	}
	return clean, nil
}
