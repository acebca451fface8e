// Package core provides migration orchestration for cvs2gitfi: turning
// a CVS repository's RCS history into a git repository via patchset
// reconstruction and a git fast-import stream.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/afobsidian/cvs2gitfi/internal/mapping"
	"github.com/afobsidian/cvs2gitfi/internal/progress"
	"github.com/afobsidian/cvs2gitfi/internal/storage"
	"github.com/afobsidian/cvs2gitfi/internal/vcs/cvs"
	"github.com/afobsidian/cvs2gitfi/internal/vcs/git"
)

// defaultBranch is the git ref CVS trunk revisions land on.
const defaultBranch = "main"

// MigrationConfig holds migration configuration.
type MigrationConfig struct {
	SourcePath     string            // CVSROOT module directory
	TargetPath     string            // Target git repository path
	AuthorMap      map[string]string // CVS user -> "Name <email>"
	BranchMap      map[string]string // CVS branch -> git ref
	TagMap         map[string]string // CVS tag -> git tag
	PatchsetWindow time.Duration     // Grouping window, 0 = default (5m)
	DryRun         bool              // Reconstruct patchsets but write nothing
	IgnoreErrors   bool              // Skip unparsable ,v files instead of aborting
	StateFile      string            // Path to the SQLite state DB
}

// Migrator orchestrates one CVS-to-git migration run: it reconstructs
// every file revision, groups them into patchsets, and streams them to
// git fast-import, recording progress in a StateDB so an interrupted
// run can resume without reimporting work already committed.
type Migrator struct {
	config    *MigrationConfig
	authorMap *mapping.AuthorMap
	reporter  *progress.Reporter
	log       *logrus.Logger
	db        *storage.StateDB
}

// NewMigrator creates a new migrator.
func NewMigrator(config *MigrationConfig) *Migrator {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Migrator{
		config:    config,
		authorMap: mapping.NewAuthorMap(config.AuthorMap),
		reporter:  progress.NewReporter(0),
		log:       log,
	}
}

// ProgressReporter returns the progress reporter for subscribing to updates.
func (m *Migrator) ProgressReporter() *progress.Reporter {
	return m.reporter
}

// Run executes the migration end to end.
func (m *Migrator) Run() error {
	source := cvs.NewReader(m.config.SourcePath)
	source.IgnoreFileErrors = m.config.IgnoreErrors
	if err := source.Validate(); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"source": m.config.SourcePath,
		"run_id": migrationID(m.config.SourcePath, m.config.TargetPath),
	}).Info("reading CVS revision history")
	revisions, err := source.FileRevisions()
	if err != nil {
		return fmt.Errorf("failed to read CVS history: %w", err)
	}
	for _, w := range source.Warnings {
		m.reporter.Warn(w.Error())
		m.log.WithError(w).Warn("skipped unparsable file")
	}

	patchsets := ReconstructPatchsets(revisions, m.config.PatchsetWindow)
	m.log.WithFields(logrus.Fields{
		"file_revisions": len(revisions),
		"patchsets":      len(patchsets),
	}).Info("reconstructed patchsets")

	if err := m.initState(); err != nil {
		return fmt.Errorf("failed to init state: %w", err)
	}
	defer func() {
		if err := m.db.Close(); err != nil {
			m.log.WithError(err).Warn("failed to close state database")
		}
	}()

	if err := m.reconcileRestart(); err != nil {
		return fmt.Errorf("failed to reconcile restart state: %w", err)
	}

	var streamer *git.Streamer
	if !m.config.DryRun {
		marksPath := m.config.StateFile + ".marks"
		streamer, err = git.NewStreamer(m.config.TargetPath, marksPath)
		if err != nil {
			return fmt.Errorf("failed to start fast-import stream: %w", err)
		}
	}

	m.reporter = progress.NewReporter(len(patchsets))
	m.reporter.Start()
	m.reporter.SetOperation("Starting migration")

	// revByKey indexes every reconstructed revision by (path, revision),
	// a unique pair (fileRevisionsOf emits one entry per RCS delta
	// regardless of how many branches it's live on): tag materialization
	// below needs this to fetch a tagged file's content independent of
	// whichever patchset(s) it ended up committed in.
	revByKey := make(map[string]cvs.FileRevision, len(revisions))
	for _, fr := range revisions {
		revByKey[string(fr.Path)+"\x00"+fr.Revision] = fr
	}

	branchHeads := make(map[string]int64) // git ref -> commit mark
	blobMarks := make(map[string]int64)   // "path\x00revision" -> blob mark
	newBranches := make(map[string]bool)
	var committed []committedPatchset

	for _, ps := range patchsets {
		ref := m.gitRef(ps.Branch)
		m.reporter.SetOperation(fmt.Sprintf("Processing patchset on %s by %s", ref, ps.Author))

		skip, err := m.alreadyImported(ps)
		if err != nil {
			return fmt.Errorf("failed to check import state: %w", err)
		}
		if skip {
			mark, err := m.db.LatestPatchsetMark(ps.Branch)
			if err != nil {
				return fmt.Errorf("failed to resume branch head: %w", err)
			}
			if mark > 0 {
				branchHeads[ref] = mark
			}
			m.reporter.Increment()
			continue
		}

		if m.config.DryRun {
			m.reporter.Increment()
			continue
		}

		mark, err := m.db.NextMark()
		if err != nil {
			return fmt.Errorf("failed to allocate commit mark: %w", err)
		}

		var fileRevisionIDs []int64
		var ops []git.FileOp
		for _, fr := range ps.Members {
			blobMark, err := m.resolveBlobMark(blobMarks, string(fr.Path), fr.Revision)
			if err != nil {
				return err
			}
			if blobMark == 0 {
				blobMark, err = m.db.NextMark()
				if err != nil {
					return err
				}
				if err := streamer.Blob(blobMark, fr.Content); err != nil {
					return fmt.Errorf("failed to emit blob for %s %s: %w", fr.Path, fr.Revision, err)
				}
				blobMarks[string(fr.Path)+"\x00"+fr.Revision] = blobMark
			}

			mode := "100644"
			ops = append(ops, git.FileOp{
				Path:    string(fr.Path),
				Mode:    mode,
				DataRef: fmt.Sprintf(":%d", blobMark),
			})

			frID, inserted, err := m.db.UpsertFileRevision(storage.FileRevisionRow{
				Path: string(fr.Path), Revision: fr.Revision, Time: fr.Time,
				Author: fr.Author, Log: fr.Log, Branch: ps.Branch, State: fr.State,
			})
			if err != nil {
				return err
			}
			if inserted {
				if err := m.db.SetFileRevisionMark(frID, blobMark); err != nil {
					return err
				}
			}
			if err := m.db.SetFileRevisionBranches(frID, fr.Branches); err != nil {
				return err
			}
			fileRevisionIDs = append(fileRevisionIDs, frID)
		}

		name, email := m.authorMap.Get(ps.Author)
		identity := git.Identity{Name: name, Email: email, When: ps.Time}

		from := ""
		var merge []string
		if head, ok := branchHeads[ref]; ok {
			from = fmt.Sprintf(":%d", head)
		} else if ps.Branch != "" {
			from = m.branchPoint(ref, ps)
			newBranches[ref] = true
		}

		if err := streamer.Commit(git.CommitSpec{
			Ref: ref, Mark: mark,
			Author: identity, Committer: identity,
			Message: ps.Log,
			From:    from, Merge: merge,
			Files: ops,
		}); err != nil {
			return fmt.Errorf("failed to emit commit for patchset at %s: %w", ps.Time, err)
		}

		parentRef := from
		psID, err := m.db.InsertPatchset(ps.Branch, ps.Author, ps.Log, ps.Time, mark, fileRevisionIDs, parentRef)
		if err != nil {
			return fmt.Errorf("failed to record patchset: %w", err)
		}
		committed = append(committed, committedPatchset{id: psID, mark: mark})

		branchHeads[ref] = mark
		m.reporter.Increment()
	}

	if !m.config.DryRun {
		if err := m.createTags(source, streamer, branchHeads, blobMarks, revByKey); err != nil {
			return fmt.Errorf("failed to create tags: %w", err)
		}

		marks, err := streamer.Close()
		if err != nil {
			return fmt.Errorf("fast-import stream failed: %w", err)
		}
		if err := m.resolveMarks(marks); err != nil {
			return fmt.Errorf("failed to record resolved shas: %w", err)
		}
		for _, pr := range committed {
			sha, ok := marks[pr.mark]
			if !ok {
				continue
			}
			if err := m.db.RecordCommitSHA(pr.id, sha); err != nil {
				return fmt.Errorf("failed to record commit sha: %w", err)
			}
		}
	}

	m.reporter.SetOperation("Migration complete")
	if warnings := m.reporter.Warnings(); len(warnings) > 0 {
		m.log.WithField("count", len(warnings)).Warn("migration completed with warnings")
	}
	return nil
}

// committedPatchset pairs a patchset's state-DB id with the commit mark
// its fast-import commit was emitted under, so the resolved sha from
// streamer.Close() can be written back once the stream finishes.
type committedPatchset struct {
	id   int64
	mark int64
}

// alreadyImported reports whether every member of ps was imported on
// ps.Branch in a prior run, making this patchset safe to skip on
// resume. A revision live on several branches gets one patchset per
// branch sharing the same file_revisions row, so the check must be
// scoped to this branch specifically: a plain HasFileRevision check
// would wrongly skip a branch's patchset just because some other
// branch already committed the same revision. A partially imported
// patchset (some but not all members present) is re-emitted in full:
// ON CONFLICT DO NOTHING on the file_revisions table makes that
// idempotent.
func (m *Migrator) alreadyImported(ps Patchset) (bool, error) {
	for _, fr := range ps.Members {
		has, err := m.db.HasFileRevisionOnBranch(string(fr.Path), fr.Revision, ps.Branch)
		if err != nil {
			return false, err
		}
		if !has {
			return false, nil
		}
	}
	return true, nil
}

// resolveBlobMark returns the mark a (path, revision) blob was already
// streamed under, checking this run's in-memory cache first and then
// the state DB for a mark persisted by an earlier, interrupted run. A
// return of 0 means the blob has never been streamed and the caller
// must allocate a fresh mark.
func (m *Migrator) resolveBlobMark(cache map[string]int64, path, revision string) (int64, error) {
	key := path + "\x00" + revision
	if mark, ok := cache[key]; ok {
		return mark, nil
	}
	mark, ok, err := m.db.FileRevisionMark(path, revision)
	if err != nil {
		return 0, err
	}
	if ok {
		cache[key] = mark
		return mark, nil
	}
	return 0, nil
}

// branchPoint finds the `from` parent for a branch's first commit: the
// most recent trunk patchset committed at or before this patchset's
// time, per the branch-ancestry decision (a branch forks from wherever
// trunk stood at the moment CVS recorded the first commit on it).
func (m *Migrator) branchPoint(ref string, ps Patchset) string {
	// Trunk patchsets are recorded under the CVS branch name "", not
	// under the git ref they land on.
	mark, err := m.db.LatestPatchsetMarkBefore("", ps.Time)
	if err != nil || mark == 0 {
		return ""
	}
	return fmt.Sprintf(":%d", mark)
}

// createTags re-materializes every CVS tag as a synthetic commit whose
// tree holds exactly the (path, revision) set the tag designates,
// parented from the current trunk tip so history stays connected, then
// points a git tag at it. A CVS tag stamps each file independently, so
// unlike a git tag (which always names an existing commit) it rarely
// corresponds to any single patchset already committed - building a
// dedicated commit is the only way to reproduce its exact tree.
func (m *Migrator) createTags(source *cvs.Reader, streamer *git.Streamer, branchHeads map[string]int64, blobMarks map[string]int64, revByKey map[string]cvs.FileRevision) error {
	tagged, err := source.GetTaggedFiles()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(tagged))
	for name := range tagged {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		gitTag := name
		if mapped, ok := m.config.TagMap[name]; ok {
			gitTag = mapped
		}

		members := tagged[name]
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })

		var ops []git.FileOp
		var missing []string
		for _, tf := range members {
			fr, ok := revByKey[tf.Path+"\x00"+tf.Revision]
			if !ok {
				missing = append(missing, fmt.Sprintf("%s@%s", tf.Path, tf.Revision))
				continue
			}
			blobMark, err := m.resolveBlobMark(blobMarks, tf.Path, tf.Revision)
			if err != nil {
				return err
			}
			if blobMark == 0 {
				blobMark, err = m.db.NextMark()
				if err != nil {
					return err
				}
				if err := streamer.Blob(blobMark, fr.Content); err != nil {
					return fmt.Errorf("tag %s: failed to emit blob for %s %s: %w", name, tf.Path, tf.Revision, err)
				}
				blobMarks[tf.Path+"\x00"+tf.Revision] = blobMark
			}
			ops = append(ops, git.FileOp{Path: tf.Path, Mode: "100644", DataRef: fmt.Sprintf(":%d", blobMark)})
		}
		if len(missing) > 0 {
			m.reporter.Warn(fmt.Sprintf("tag %s: could not resolve content for %v, tagging anyway with what was found", name, missing))
		}
		if len(ops) == 0 {
			m.reporter.Warn(fmt.Sprintf("tag %s: no resolvable file content, skipped", name))
			continue
		}

		from := ""
		if head, ok := branchHeads[defaultBranch]; ok {
			from = fmt.Sprintf(":%d", head)
		}

		mark, err := m.db.NextMark()
		if err != nil {
			return err
		}
		tagger := git.Identity{Name: "cvs2gitfi", Email: "cvs2gitfi@localhost", When: time.Now()}
		ref := "refs/cvs2gitfi/tags/" + gitTag

		m.reporter.SetOperation(fmt.Sprintf("Creating tag %s", gitTag))
		if err := streamer.Commit(git.CommitSpec{
			Ref: ref, Mark: mark,
			Author: tagger, Committer: tagger,
			Message: fmt.Sprintf("Tag %s", name),
			From:    from,
			Files:   ops,
		}); err != nil {
			return fmt.Errorf("tag %s: failed to emit synthetic commit: %w", name, err)
		}

		if err := streamer.Tag(git.TagSpec{
			Name:    gitTag,
			From:    fmt.Sprintf(":%d", mark),
			Tagger:  tagger,
			Message: "",
		}); err != nil {
			return fmt.Errorf("tag %s: %w", gitTag, err)
		}
		if err := m.db.UpsertTag(gitTag, 0, mark, ""); err != nil {
			return err
		}
	}
	return nil
}

// reconcileRestart compares this run's recorded branch heads against
// the actual state of the target git repository, warning (not
// failing) when they disagree - e.g. a prior run's fast-import process
// was killed after updating refs but before its marks file was synced
// to disk, or the repository was touched outside this tool. On a fresh
// target with no commits yet, Validate fails and reconciliation is a
// no-op.
func (m *Migrator) reconcileRestart() error {
	reader := git.NewReader(m.config.TargetPath)
	defer reader.Close()
	if err := reader.Validate(); err != nil {
		return nil
	}

	branches, err := m.db.Branches()
	if err != nil {
		return err
	}
	for _, branch := range branches {
		mark, err := m.db.LatestPatchsetMark(branch)
		if err != nil || mark == 0 {
			continue
		}
		recorded, ok, err := m.db.ShaForMark(mark)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		actual, err := reader.BranchHeadSHA(m.gitRef(branch))
		if err != nil {
			m.log.WithError(err).WithField("branch", branch).Warn("could not read branch head for restart reconciliation")
			continue
		}
		if actual == "" {
			m.log.WithField("branch", branch).Warn("recorded branch head missing from target repository; prior run may not have finished writing refs")
			continue
		}
		if actual != recorded {
			m.log.WithFields(logrus.Fields{
				"branch":   branch,
				"recorded": recorded,
				"actual":   actual,
			}).Warn("target repository branch head does not match state database; continuing from recorded state")
		}
	}
	return nil
}

func (m *Migrator) resolveMarks(marks map[int64]string) error {
	for mark, sha := range marks {
		if err := m.db.RecordMark(mark, "commit", sha); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) gitRef(cvsBranch string) string {
	if cvsBranch == "" {
		return defaultBranch
	}
	if mapped, ok := m.config.BranchMap[cvsBranch]; ok {
		return mapped
	}
	return cvsBranch
}

func (m *Migrator) initState() error {
	if m.config.StateFile == "" {
		m.config.StateFile = m.config.TargetPath + "/.cvs2gitfi-state.db"
	}
	db, err := storage.NewStateDB(m.config.StateFile)
	if err != nil {
		return err
	}
	m.db = db
	return nil
}

// migrationID identifies a (source, target) pair for logging purposes.
func migrationID(source, target string) string {
	hash := sha256.Sum256([]byte(source + ":" + target))
	return hex.EncodeToString(hash[:8])
}
