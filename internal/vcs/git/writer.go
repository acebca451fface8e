// Package git provides Git repository reading and writing capabilities
// for cvs2gitfi. Writing goes entirely through a `git fast-import`
// subprocess (Streamer); go-git is kept only for the read side
// (Reader, in reader.go) used for restart reconciliation against an
// already-imported repository.
package git

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	libfastimport "github.com/rcowham/go-libgitfastimport"
)

// Identity is a commit author/committer/tagger identity, rendered on
// the wire as "Name <email> <unix-time> <+0000>".
type Identity struct {
	Name  string
	Email string
	When  time.Time
}

func (id Identity) fastImport() *libfastimport.Identity {
	return &libfastimport.Identity{
		Name:  id.Name,
		Email: id.Email,
		When:  id.When,
	}
}

// FileOp is one file-level change inside a commit: either a modify
// (Mode+DataRef to a previously-emitted blob mark) or a delete.
type FileOp struct {
	Path    string
	Delete  bool
	Mode    string // "100644", "100755", "120000"
	DataRef string // ":<mark>" referencing a prior Blob call
}

// CommitSpec is everything needed to emit one fast-import commit.
type CommitSpec struct {
	Ref       string // e.g. "refs/heads/main"
	Mark      int64
	Author    Identity
	Committer Identity
	Message   string
	From      string // ":<mark>" or a sha1, "" for the branch's first commit
	Merge     []string
	Files     []FileOp
}

// TagSpec describes an annotated tag to emit.
type TagSpec struct {
	Name    string
	From    string // ":<mark>" or sha1 of the tagged commit
	Tagger  Identity
	Message string
}

// Streamer drives a `git fast-import` subprocess over the
// go-libgitfastimport wire protocol: blob/commit/reset/tag/progress/
// checkpoint/done, per the fast-import stream format.
type Streamer struct {
	repoPath  string
	marksPath string

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	backend *libfastimport.Backend

	stderrMu  sync.Mutex
	stderrBuf bytes.Buffer
	stderrDone chan struct{}
}

// NewStreamer initializes repoPath as a bare-or-working git repository
// (if it isn't one already) and launches `git fast-import` against it,
// exporting marks to marksPath on completion.
func NewStreamer(repoPath, marksPath string) (*Streamer, error) {
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(repoPath, 0o755); err != nil {
			return nil, fmt.Errorf("create repo dir %s: %w", repoPath, err)
		}
		initCmd := exec.Command("git", "init", "--quiet", repoPath)
		if out, err := initCmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("git init %s: %w: %s", repoPath, err, out)
		}
	}

	// Marks allocated by a prior run live only in marksPath: a bare
	// mark number like ":42" means nothing to a fresh fast-import
	// subprocess unless we hand it back the same file to import from,
	// so a resumed migration's From/Tagger references resolve instead
	// of fataling on an unknown mark.
	args := []string{"-C", repoPath, "fast-import", "--export-marks=" + marksPath, "--quiet"}
	if _, err := os.Stat(marksPath); err == nil {
		args = append(args, "--import-marks="+marksPath)
	}
	cmd := exec.Command("git", args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open fast-import stdin: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("open fast-import stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start git fast-import: %w", err)
	}

	s := &Streamer{
		repoPath:   repoPath,
		marksPath:  marksPath,
		cmd:        cmd,
		stdin:      stdin,
		backend:    libfastimport.NewBackend(stdin, nil, nil),
		stderrDone: make(chan struct{}),
	}

	// git fast-import writes progress/error text to stderr as it goes;
	// draining it concurrently with our writes to stdin avoids the
	// classic pipe deadlock where both sides block on a full buffer.
	go func() {
		defer close(s.stderrDone)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			s.stderrMu.Lock()
			s.stderrBuf.WriteString(scanner.Text())
			s.stderrBuf.WriteByte('\n')
			s.stderrMu.Unlock()
		}
	}()

	return s, nil
}

// Blob emits a blob with the given mark and content.
func (s *Streamer) Blob(mark int64, data []byte) error {
	return s.backend.Do(libfastimport.CmdBlob{
		Mark: int(mark),
		Data: string(data),
	})
}

// Reset points ref at from (a mark reference ":<n>" or a sha1, or ""
// to leave the ref unborn until the next commit on it).
func (s *Streamer) Reset(ref, from string) error {
	return s.backend.Do(libfastimport.CmdReset{
		RefName: ref,
		From:    from,
	})
}

// Commit emits one commit: the CmdCommit header, its file operations,
// then an end marker.
func (s *Streamer) Commit(spec CommitSpec) error {
	if err := s.backend.Do(libfastimport.CmdCommit{
		Ref:       spec.Ref,
		Mark:      int(spec.Mark),
		Author:    spec.Author.fastImport(),
		Committer: spec.Committer.fastImport(),
		Msg:       ensureTrailingNewline(spec.Message),
		From:      spec.From,
		Merge:     spec.Merge,
	}); err != nil {
		return fmt.Errorf("commit :%d: %w", spec.Mark, err)
	}

	for _, f := range spec.Files {
		if f.Delete {
			if err := s.backend.Do(libfastimport.FileDelete{
				Path: libfastimport.Path(f.Path),
			}); err != nil {
				return fmt.Errorf("commit :%d: delete %s: %w", spec.Mark, f.Path, err)
			}
			continue
		}
		if err := s.backend.Do(libfastimport.FileModify{
			Path:    libfastimport.Path(f.Path),
			Mode:    libfastimport.Mode(f.Mode),
			DataRef: f.DataRef,
		}); err != nil {
			return fmt.Errorf("commit :%d: modify %s: %w", spec.Mark, f.Path, err)
		}
	}

	return s.backend.Do(libfastimport.CmdCommitEnd{})
}

// Tag emits an annotated tag.
func (s *Streamer) Tag(spec TagSpec) error {
	return s.backend.Do(libfastimport.CmdTag{
		RefName: spec.Name,
		From:    spec.From,
		Tagger:  spec.Tagger.fastImport(),
		Data:    ensureTrailingNewline(spec.Message),
	})
}

// Progress emits a `progress` command; git fast-import echoes msg back
// on stdout, which callers can tee for the live web progress surface.
func (s *Streamer) Progress(msg string) error {
	return s.backend.Do(libfastimport.CmdProgress{Str: msg})
}

// Checkpoint forces a packfile/marks flush without ending the stream,
// used between restart-safe batches of commits.
func (s *Streamer) Checkpoint() error {
	return s.backend.Do(libfastimport.CmdCheckpoint{})
}

// Close sends `done`, closes stdin, waits for the subprocess to exit,
// and reads back the exported marks file. On non-zero exit the error
// is annotated with the trailing stderr output.
func (s *Streamer) Close() (map[int64]string, error) {
	doneErr := s.backend.Do(libfastimport.CmdDone{})
	closeErr := s.stdin.Close()
	waitErr := s.cmd.Wait()
	<-s.stderrDone

	if doneErr != nil || waitErr != nil {
		s.stderrMu.Lock()
		tail := lastNBytes(s.stderrBuf.Bytes(), 8*1024)
		s.stderrMu.Unlock()
		if waitErr != nil {
			return nil, fmt.Errorf("git fast-import exited with error: %w\n%s", waitErr, tail)
		}
		return nil, fmt.Errorf("sending done command: %w\n%s", doneErr, tail)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("closing fast-import stdin: %w", closeErr)
	}

	return readMarksFile(s.marksPath)
}

func readMarksFile(path string) (map[int64]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int64]string{}, nil
		}
		return nil, fmt.Errorf("read marks file %s: %w", path, err)
	}
	defer f.Close()

	marks := make(map[int64]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] != ':' {
			continue
		}
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			continue
		}
		mark, err := strconv.ParseInt(line[1:sp], 10, 64)
		if err != nil {
			continue
		}
		marks[mark] = line[sp+1:]
	}
	return marks, scanner.Err()
}

func ensureTrailingNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}

func lastNBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}

// lookGit reports whether a git binary is on PATH, so tests that need
// to actually launch `git fast-import` can skip cleanly where it isn't.
func lookGit() (string, error) {
	return exec.LookPath("git")
}
