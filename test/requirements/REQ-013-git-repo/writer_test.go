// These tests validate the git-writing side of a migration: repository
// creation and commit emission, both of which go entirely through a
// `git fast-import` subprocess (internal/vcs/git.Streamer) rather than
// a go-git working-tree writer.
package requirements

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/afobsidian/cvs2gitfi/internal/vcs/git"
)

func lookGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// TestGitStreamerInitializesRepo tests that NewStreamer creates the
// target repository on first use.
func TestGitStreamerInitializesRepo(t *testing.T) {
	lookGit(t)

	dir := t.TempDir()
	repoPath := filepath.Join(dir, "test-repo")
	marksPath := filepath.Join(dir, "marks")

	s, err := git.NewStreamer(repoPath, marksPath)
	require.NoError(t, err)

	gitDir := filepath.Join(repoPath, ".git")
	_, err = os.Stat(gitDir)
	require.NoError(t, err, "expected .git directory to exist")

	_, err = s.Close()
	require.NoError(t, err)
}

// TestGitStreamerCommitEmitsMarks tests that a blob+commit sequence
// produces an exported mark for the commit.
func TestGitStreamerCommitEmitsMarks(t *testing.T) {
	lookGit(t)

	dir := t.TempDir()
	repoPath := filepath.Join(dir, "test-repo")
	marksPath := filepath.Join(dir, "marks")

	s, err := git.NewStreamer(repoPath, marksPath)
	require.NoError(t, err)

	require.NoError(t, s.Blob(1, []byte("hello\n")))
	require.NoError(t, s.Reset("refs/heads/main", ""))
	require.NoError(t, s.Commit(git.CommitSpec{
		Ref:       "refs/heads/main",
		Mark:      2,
		Author:    git.Identity{Name: "CVS Import", Email: "cvs@example.org", When: time.Unix(1000, 0)},
		Committer: git.Identity{Name: "CVS Import", Email: "cvs@example.org", When: time.Unix(1000, 0)},
		Message:   "initial import",
		Files: []git.FileOp{
			{Path: "hello.txt", Mode: "100644", DataRef: ":1"},
		},
	}))

	marks, err := s.Close()
	require.NoError(t, err)
	require.Contains(t, marks, int64(2))
}

// TestGitStreamerReusesExistingRepo tests that NewStreamer against an
// already-initialized repository does not fail or reinitialize it.
func TestGitStreamerReusesExistingRepo(t *testing.T) {
	lookGit(t)

	dir := t.TempDir()
	repoPath := filepath.Join(dir, "test-repo")

	s1, err := git.NewStreamer(repoPath, filepath.Join(dir, "marks1"))
	require.NoError(t, err)
	_, err = s1.Close()
	require.NoError(t, err)

	s2, err := git.NewStreamer(repoPath, filepath.Join(dir, "marks2"))
	require.NoError(t, err)
	_, err = s2.Close()
	require.NoError(t, err)
}
