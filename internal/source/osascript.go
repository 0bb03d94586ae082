// Package source reads what the user is doing right now: the
// frontmost application, its focused window title, the active browser
// tab, and the time since the last user input. Every read is bounded
// by a hard timeout and degrades to "no data" on denial or failure.
package source

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an AppleScript snippet and returns its trimmed
// stdout. Implementations must honor context cancellation.
type Runner interface {
	Run(ctx context.Context, script string) (string, error)
}

// OsascriptRunner shells out to /usr/bin/osascript. Automation and
// accessibility permission failures surface as non-zero exits with a
// stderr message.
type OsascriptRunner struct{}

func (OsascriptRunner) Run(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "/usr/bin/osascript", "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("osascript: %s", msg)
		}
		return "", fmt.Errorf("osascript: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
