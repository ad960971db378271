package version

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe_NotARepository(t *testing.T) {
	assert.Equal(t, Unknown, Describe(context.Background(), t.TempDir()))
}

func TestDescribe_MissingDirectory(t *testing.T) {
	assert.Equal(t, Unknown, Describe(context.Background(), "/does/not/exist"))
}

func TestDescribe_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Unknown, Describe(ctx, "."))
}

func TestDescribe_TaggedRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(cmd.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	git("init", "-q")
	git("-c", "commit.gpgsign=false", "commit", "-q", "--allow-empty", "-m", "initial")
	git("tag", "v1.0.0")

	assert.Equal(t, "v1.0.0", Describe(context.Background(), dir))
}
