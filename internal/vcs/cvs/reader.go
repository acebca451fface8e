// Package cvs provides CVS repository reading and RCS file parsing capabilities.
package cvs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/alitto/pond"

	"github.com/afobsidian/cvs2gitfi/internal/vcs"
)

// ValidationMessage represents a validation message
type ValidationMessage struct {
	Field   string
	Message string
}

// ValidationResult represents the result of CVS repository validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationMessage
	Warnings []ValidationMessage
	Infos    []ValidationMessage
}

// parsedFile pairs a parsed RCS delta chain with the repository-
// relative path it was read from (not the ,v path on disk).
type parsedFile struct {
	relPath string
	rcs     *RCSFile
}

// Reader implements vcs.Reader for CVS repositories, walking a CVSROOT
// module directory and lexing every ,v file it finds.
type Reader struct {
	path             string
	IgnoreFileErrors bool

	files    []parsedFile
	Warnings []error
}

// NewReader creates a new CVS repository reader.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Validate checks if the repository is valid and accessible
func (r *Reader) Validate() error {
	result := NewValidator().Validate(r.path)
	if !result.Valid {
		if len(result.Errors) > 0 {
			return fmt.Errorf("validation failed: %s", result.Errors[0].Message)
		}
		return fmt.Errorf("validation failed")
	}
	return nil
}

// FileRevisions returns every revision of every file in the
// repository, reconstructed to its full content, unsorted. The
// patchset reconstructor (internal/core) is responsible for ordering
// and grouping these into commits.
func (r *Reader) FileRevisions() ([]vcsFileRevision, error) {
	if err := r.loadRCSFiles(); err != nil {
		return nil, err
	}

	pool := pond.New(runtime.NumCPU(), 0, pond.MinWorkers(2))
	var mu sync.Mutex
	var out []vcsFileRevision
	var firstErr error

	for _, pf := range r.files {
		pf := pf
		pool.Submit(func() {
			revs, errs := fileRevisionsOf(pf)

			mu.Lock()
			defer mu.Unlock()
			if firstErr != nil {
				return
			}
			for _, werr := range errs {
				if !r.IgnoreFileErrors {
					firstErr = werr
					return
				}
				r.Warnings = append(r.Warnings, werr)
			}
			out = append(out, revs...)
		})
	}
	pool.StopAndWait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// fileRevisionsOf reconstructs every revision of a single parsed file.
// Reconstruction errors are returned rather than handled here so the
// caller can decide, under its own lock, whether IgnoreFileErrors
// turns them into warnings.
func fileRevisionsOf(pf parsedFile) ([]vcsFileRevision, []error) {
	rcs := pf.rcs
	var out []vcsFileRevision
	var errs []error
	for rev, delta := range rcs.Deltas {
		content, err := rcs.Reconstruct(rev)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s revision %s: %w", pf.relPath, rev, err))
			continue
		}
		out = append(out, vcsFileRevision{
			Path:     []byte(pf.relPath),
			Revision: rev,
			Time:     delta.Date,
			Author:   delta.Author,
			Log:      delta.Log,
			Branches: rcs.BranchesOf(rev),
			State:    delta.State,
			Content:  content,
		})
	}
	return out, errs
}

// vcsFileRevision is an alias of FileRevision, so its Path is the same
// []byte value; callers that need a string path convert it themselves.
type vcsFileRevision = FileRevision

// GetCommits returns an iterator over all commits, one per RCS delta,
// in chronological order. This is the simple per-revision view used
// by `analyze`; the `migrate` pipeline uses FileRevisions directly and
// groups them into cross-file patchsets itself.
func (r *Reader) GetCommits() (vcs.CommitIterator, error) {
	revs, err := r.FileRevisions()
	if err != nil {
		return nil, err
	}

	commits := make([]*vcs.Commit, 0, len(revs))
	for _, fr := range revs {
		commits = append(commits, &vcs.Commit{
			Revision: fr.Revision,
			Author:   fr.Author,
			Date:     fr.Time,
			Message:  fr.Log,
			Branch:   primaryBranch(fr.Branches),
			Files:    []vcs.FileChange{{Path: string(fr.Path), Action: vcs.ActionModify, Content: fr.Content}},
		})
	}
	sortCommitsByDate(commits)

	return &cvsCommitIterator{commits: commits}, nil
}

// sortCommitsByDate orders commits oldest first, the chronological view
// GetCommits promises its callers.
func sortCommitsByDate(commits []*vcs.Commit) {
	sort.Slice(commits, func(i, j int) bool { return commits[i].Date.Before(commits[j].Date) })
}

// primaryBranch picks the single branch name to report for a
// FileRevision's branch set, for the simple per-revision commit view:
// the non-trunk branch if the revision forks one, else trunk.
func primaryBranch(branches []string) string {
	for _, b := range branches {
		if b != "" {
			return b
		}
	}
	return ""
}

// GetBranches returns a list of branch names
func (r *Reader) GetBranches() ([]string, error) {
	if err := r.loadRCSFiles(); err != nil {
		return nil, err
	}

	branchSet := make(map[string]bool)
	for _, pf := range r.files {
		for _, branch := range pf.rcs.GetBranches() {
			branchSet[branch] = true
		}
	}

	var branches []string
	for b := range branchSet {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	return branches, nil
}

// GetTags returns a map of tag names to revision identifiers
func (r *Reader) GetTags() (map[string]string, error) {
	if err := r.loadRCSFiles(); err != nil {
		return nil, err
	}

	allTags := make(map[string]string)
	for _, pf := range r.files {
		for name, rev := range pf.rcs.GetTags() {
			allTags[name] = rev
		}
	}
	return allTags, nil
}

// TaggedFile is one (path, revision) member of a CVS tag.
type TaggedFile struct {
	Path     string
	Revision string
}

// GetTaggedFiles returns, for every CVS tag, the full set of
// (path, revision) tuples it designates across the repository. `cvs
// tag` stamps each file independently, so a tag is a set of tuples,
// not a single pointer - unlike GetTags' flat name->revision map
// (kept for the simpler analyze-command view), this is what
// migration's tag re-materialization needs to build a tag's synthetic
// commit tree.
func (r *Reader) GetTaggedFiles() (map[string][]TaggedFile, error) {
	if err := r.loadRCSFiles(); err != nil {
		return nil, err
	}

	tagged := make(map[string][]TaggedFile)
	for _, pf := range r.files {
		for name, rev := range pf.rcs.GetTags() {
			tagged[name] = append(tagged[name], TaggedFile{Path: pf.relPath, Revision: rev})
		}
	}
	return tagged, nil
}

// Close releases any resources
func (r *Reader) Close() error {
	return nil
}

// loadRCSFiles discovers every ,v file under the repository and parses
// them concurrently with a worker pool sized to the machine, since
// lexing and delta-chain parsing is CPU-bound and embarrassingly
// parallel across files.
func (r *Reader) loadRCSFiles() error {
	if r.files != nil {
		return nil
	}

	var paths []string
	walkErr := filepath.Walk(r.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if filepath.Base(path) == "CVSROOT" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ",v") {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	pool := pond.New(runtime.NumCPU(), 0, pond.MinWorkers(2))
	var mu sync.Mutex
	var firstErr error

	for _, path := range paths {
		path := path
		pool.Submit(func() {
			pf, werr, fatal := r.parseOne(path)

			mu.Lock()
			defer mu.Unlock()
			if fatal != nil {
				if firstErr == nil {
					firstErr = fatal
				}
				return
			}
			if werr != nil {
				r.Warnings = append(r.Warnings, werr)
				return
			}
			r.files = append(r.files, pf)
		})
	}
	pool.StopAndWait()

	if firstErr != nil {
		r.files = nil
		return firstErr
	}

	sort.Slice(r.files, func(i, j int) bool { return r.files[i].relPath < r.files[j].relPath })
	return nil
}

// parseOne opens and parses a single ,v file. It returns a non-nil
// fatal error only when IgnoreFileErrors is false; otherwise failures
// are reported as a warning and the file is skipped.
func (r *Reader) parseOne(path string) (parsedFile, error, error) {
	file, err := os.Open(path)
	if err != nil {
		werr := fmt.Errorf("open %s: %w", path, err)
		if !r.IgnoreFileErrors {
			return parsedFile{}, nil, werr
		}
		return parsedFile{}, werr, nil
	}
	defer file.Close()

	relPath := strings.TrimSuffix(strings.TrimPrefix(path, r.path+string(filepath.Separator)), ",v")
	relPath = strings.TrimSuffix(relPath, "Attic"+string(filepath.Separator))

	parser := NewRCSParserPath(file, path)
	rcs, perr := parser.Parse()
	if perr != nil {
		werr := fmt.Errorf("parse %s: %w", path, perr)
		if !r.IgnoreFileErrors {
			return parsedFile{}, nil, werr
		}
		return parsedFile{}, werr, nil
	}

	return parsedFile{relPath: relPath, rcs: rcs}, nil, nil
}

// cvsCommitIterator implements vcs.CommitIterator for CVS
type cvsCommitIterator struct {
	commits []*vcs.Commit
	index   int
}

func (i *cvsCommitIterator) Next() bool {
	i.index++
	return i.index <= len(i.commits)
}

func (i *cvsCommitIterator) Commit() *vcs.Commit {
	if i.index < 1 || i.index > len(i.commits) {
		return nil
	}
	return i.commits[i.index-1]
}

func (i *cvsCommitIterator) Err() error {
	return nil
}

// Validator validates CVS repositories
type Validator struct{}

// NewValidator creates a new CVS repository validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a CVS repository at the given path
func (v *Validator) Validate(path string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	info, err := os.Stat(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationMessage{
			Field:   "path",
			Message: "Path does not exist: " + path,
		})
		return result
	}

	if !info.IsDir() {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationMessage{
			Field:   "path",
			Message: "Path is not a directory: " + path,
		})
		return result
	}

	cvsroot := filepath.Join(path, "CVSROOT")
	if _, err := os.Stat(cvsroot); os.IsNotExist(err) {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationMessage{
			Field:   "CVSROOT",
			Message: "CVSROOT directory not found",
		})
		return result
	}

	result.Infos = append(result.Infos, ValidationMessage{
		Field:   "repository",
		Message: "Repository structure is valid",
	})

	requiredFiles := []string{"history", "val-tags"}
	for _, file := range requiredFiles {
		filePath := filepath.Join(cvsroot, file)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			result.Warnings = append(result.Warnings, ValidationMessage{
				Field:   "CVSROOT/" + file,
				Message: "Optional file not found",
			})
		}
	}

	return result
}
