package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes an external program. Components that shell out
// (download helper, ffmpeg) take one so tests never spawn processes.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ExecCommand runs the program and folds a tail of its combined output into the error.
func ExecCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, TruncateRunes(strings.TrimSpace(string(out)), 300, "..."))
	}
	return nil
}
