package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnsureTrailingNewline(t *testing.T) {
	require.Equal(t, "hello\n", ensureTrailingNewline("hello"))
	require.Equal(t, "hello\n", ensureTrailingNewline("hello\n"))
	require.Equal(t, "", ensureTrailingNewline(""))
}

func TestLastNBytes(t *testing.T) {
	require.Equal(t, []byte("abc"), lastNBytes([]byte("abc"), 10))
	require.Equal(t, []byte("xyz"), lastNBytes([]byte("wxyz"), 3))
}

func TestReadMarksFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marks")
	content := ":1 aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n" +
		":2 bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb\n" +
		"garbage line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	marks, err := readMarksFile(path)
	require.NoError(t, err)
	require.Len(t, marks, 2)
	require.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", marks[1])
	require.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", marks[2])
}

func TestReadMarksFileMissing(t *testing.T) {
	marks, err := readMarksFile(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.Empty(t, marks)
}

func TestIdentityFastImport(t *testing.T) {
	id := Identity{Name: "Alice", Email: "alice@example.com", When: time.Unix(1000, 0)}
	fi := id.fastImport()
	require.Equal(t, "Alice", fi.Name)
	require.Equal(t, "alice@example.com", fi.Email)
	require.True(t, fi.When.Equal(time.Unix(1000, 0)))
}

func TestNewStreamerRequiresGitBinary(t *testing.T) {
	if _, err := lookGit(); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	repoPath := filepath.Join(dir, "repo")
	marksPath := filepath.Join(dir, "marks")

	s, err := NewStreamer(repoPath, marksPath)
	require.NoError(t, err)

	require.NoError(t, s.Blob(1, []byte("hello\n")))
	require.NoError(t, s.Reset("refs/heads/main", ""))
	require.NoError(t, s.Commit(CommitSpec{
		Ref:       "refs/heads/main",
		Mark:      2,
		Author:    Identity{Name: "CVS Import", Email: "cvs@example.org", When: time.Unix(1000, 0)},
		Committer: Identity{Name: "CVS Import", Email: "cvs@example.org", When: time.Unix(1000, 0)},
		Message:   "initial import",
		Files: []FileOp{
			{Path: "hello.txt", Mode: "100644", DataRef: ":1"},
		},
	}))

	marks, err := s.Close()
	require.NoError(t, err)
	require.Contains(t, marks, int64(2))
}
