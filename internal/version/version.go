// Package version reports the code version recorded in run outputs.
package version

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Unknown is reported when the version cannot be determined.
const Unknown = "Unknown"

// Describe returns `git describe` for the repository at dir: the latest tag,
// plus commit count and hash when HEAD is past it. Any failure yields Unknown.
func Describe(ctx context.Context, dir string) string {
	cmd := exec.CommandContext(ctx, "git", "describe", "--tags", "--always")
	cmd.Dir = dir
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return Unknown
	}
	if v := strings.TrimSpace(stdout.String()); v != "" {
		return v
	}
	return Unknown
}
