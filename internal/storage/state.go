// Package storage provides the persistent state store for a CVS-to-git
// migration run: every reconstructed file revision, the patchsets they
// were grouped into, tags, and the fast-import mark allocator, so a
// run can restart without re-walking history it already committed.
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is the highest schema this binary knows how to use.
// StateDB refuses to open a database stamped with a newer version,
// since that means it was written by a later release of this tool.
const schemaVersion = 1

// StateDB is the SQLite-backed state store described in SPEC_FULL.md
// §5: file_revisions, file_revision_branches, tags, patchsets,
// patchset_file_revisions and marks. Each multi-row write (a patchset
// with its member links, a revision's branch set, a mark reservation)
// runs in its own transaction, so a crash never leaves half a patchset
// on disk; no transaction spans a whole run.
type StateDB struct {
	db *sql.DB
}

// NewStateDB opens (creating if necessary) the state database at path.
func NewStateDB(path string) (*StateDB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeWarn(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// A migration run is single-writer by design (see DESIGN.md, state
	// store module): one connection avoids SQLite's writer-starves-
	// readers surprises entirely instead of tuning around them.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			closeWarn(db)
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	sdb := &StateDB{db: db}
	if err := sdb.migrate(); err != nil {
		closeWarn(db)
		return nil, err
	}

	return sdb, nil
}

func closeWarn(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("Warning: failed to close database: %v", err)
	}
}

// migrate runs forward-only, numbered schema migrations, refusing to
// proceed if the database was stamped by a newer version of this tool.
func (sdb *StateDB) migrate() error {
	if _, err := sdb.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	row := sdb.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than this binary supports (%d)", current, schemaVersion)
	}

	for v := current + 1; v <= schemaVersion; v++ {
		stmts, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration registered for schema version %d", v)
		}
		tx, err := sdb.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", v, err)
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to apply migration %d: %w", v, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, v, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to stamp migration %d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", v, err)
		}
	}
	return nil
}

var migrations = map[int][]string{
	1: {
		`CREATE TABLE file_revisions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			path        TEXT    NOT NULL,
			revision    TEXT    NOT NULL,
			time        TIMESTAMP NOT NULL,
			author      TEXT    NOT NULL,
			log         TEXT    NOT NULL,
			branch      TEXT    NOT NULL DEFAULT '',
			state       TEXT    NOT NULL DEFAULT '',
			mark        INTEGER,
			patchset_id INTEGER REFERENCES patchsets(id),
			UNIQUE(path, revision)
		)`,
		`CREATE INDEX idx_file_revisions_time ON file_revisions(time)`,
		`CREATE INDEX idx_file_revisions_branch ON file_revisions(branch)`,
		`CREATE INDEX idx_file_revisions_path ON file_revisions(path)`,

		`CREATE TABLE file_revision_branches (
			file_revision_id INTEGER NOT NULL REFERENCES file_revisions(id),
			branch           TEXT NOT NULL,
			PRIMARY KEY (file_revision_id, branch)
		)`,

		`CREATE TABLE patchsets (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			branch     TEXT NOT NULL,
			author     TEXT NOT NULL,
			log        TEXT NOT NULL,
			time       TIMESTAMP NOT NULL,
			mark       INTEGER,
			commit_sha TEXT,
			parent_ref TEXT
		)`,
		`CREATE INDEX idx_patchsets_branch_time ON patchsets(branch, time)`,

		`CREATE TABLE patchset_file_revisions (
			patchset_id     INTEGER NOT NULL REFERENCES patchsets(id),
			file_revision_id INTEGER NOT NULL REFERENCES file_revisions(id),
			PRIMARY KEY (patchset_id, file_revision_id)
		)`,

		`CREATE TABLE tags (
			name       TEXT PRIMARY KEY,
			patchset_id INTEGER REFERENCES patchsets(id),
			mark       INTEGER,
			message    TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE marks (
			mark INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			sha  TEXT
		)`,

		`CREATE TABLE mark_counter (
			id   INTEGER PRIMARY KEY CHECK (id = 1),
			next INTEGER NOT NULL
		)`,
		`INSERT INTO mark_counter (id, next) VALUES (1, 1)`,
	},
}

// NextMark atomically reserves and returns the next fast-import mark,
// persisting the new high-water value so a restart never reuses one.
func (sdb *StateDB) NextMark() (int64, error) {
	tx, err := sdb.db.Begin()
	if err != nil {
		return 0, err
	}
	var next int64
	if err := tx.QueryRow(`SELECT next FROM mark_counter WHERE id = 1`).Scan(&next); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if _, err := tx.Exec(`UPDATE mark_counter SET next = ? WHERE id = 1`, next+1); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// PeekMark returns the next mark that would be allocated, without
// reserving it.
func (sdb *StateDB) PeekMark() (int64, error) {
	var next int64
	err := sdb.db.QueryRow(`SELECT next FROM mark_counter WHERE id = 1`).Scan(&next)
	return next, err
}

// RecordMark remembers what sha1 (if any) a mark resolved to once the
// fast-import stream completed and its marks file was read back.
func (sdb *StateDB) RecordMark(mark int64, kind, sha string) error {
	_, err := sdb.db.Exec(`INSERT OR REPLACE INTO marks (mark, kind, sha) VALUES (?, ?, ?)`, mark, kind, sha)
	return err
}

// UpsertFileRevision persists one reconstructed FileRevision, keyed by
// (path, revision). Re-running over an already-imported file is a
// no-op thanks to the UNIQUE constraint plus ON CONFLICT DO NOTHING:
// restart reconciliation relies on this idempotency.
func (sdb *StateDB) UpsertFileRevision(fr FileRevisionRow) (int64, bool, error) {
	res, err := sdb.db.Exec(`
		INSERT INTO file_revisions (path, revision, time, author, log, branch, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, revision) DO NOTHING
	`, fr.Path, fr.Revision, fr.Time, fr.Author, fr.Log, fr.Branch, fr.State)
	if err != nil {
		return 0, false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var id int64
		err := sdb.db.QueryRow(`SELECT id FROM file_revisions WHERE path = ? AND revision = ?`, fr.Path, fr.Revision).Scan(&id)
		return id, false, err
	}
	id, err := res.LastInsertId()
	return id, true, err
}

// FileRevisionRow is the on-disk shape of a file_revisions row.
type FileRevisionRow struct {
	Path     string
	Revision string
	Time     time.Time
	Author   string
	Log      string
	Branch   string
	State    string
}

// HasFileRevision reports whether (path, revision) was already
// imported in a prior run, for restart skip-logic.
func (sdb *StateDB) HasFileRevision(path, revision string) (bool, error) {
	var n int
	err := sdb.db.QueryRow(`SELECT COUNT(1) FROM file_revisions WHERE path = ? AND revision = ?`, path, revision).Scan(&n)
	return n > 0, err
}

// HasFileRevisionOnBranch reports whether (path, revision) was already
// committed as part of a patchset on branch specifically. A revision
// live on several branches gets one patchset per branch sharing the
// same file_revisions row (see SetFileRevisionBranches), so resume
// skip-logic must check per branch: HasFileRevision alone would wrongly
// skip the remaining branches' patchsets once any one of them lands.
func (sdb *StateDB) HasFileRevisionOnBranch(path, revision, branch string) (bool, error) {
	var n int
	err := sdb.db.QueryRow(`
		SELECT COUNT(1)
		FROM patchset_file_revisions pfr
		JOIN file_revisions fr ON fr.id = pfr.file_revision_id
		JOIN patchsets p ON p.id = pfr.patchset_id
		WHERE fr.path = ? AND fr.revision = ? AND p.branch = ?
	`, path, revision, branch).Scan(&n)
	return n > 0, err
}

// FileRevisionMark returns the blob mark previously persisted for
// (path, revision), if the blob has already been streamed in this or a
// prior run - so a resumed run reuses it instead of emitting a
// duplicate blob under a new mark number.
func (sdb *StateDB) FileRevisionMark(path, revision string) (int64, bool, error) {
	var mark sql.NullInt64
	err := sdb.db.QueryRow(`SELECT mark FROM file_revisions WHERE path = ? AND revision = ?`, path, revision).Scan(&mark)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !mark.Valid {
		return 0, false, nil
	}
	return mark.Int64, true, nil
}

// SetFileRevisionMark persists the blob mark a FileRevision's content
// was streamed under. Called once, right after the blob is emitted -
// not deferred to patchset commit time - so a crash between streaming
// the blob and committing its patchset still leaves the mark
// recoverable on restart instead of orphaned.
func (sdb *StateDB) SetFileRevisionMark(fileRevisionID, mark int64) error {
	_, err := sdb.db.Exec(`UPDATE file_revisions SET mark = ? WHERE id = ?`, mark, fileRevisionID)
	return err
}

// InsertPatchset records a patchset and its member file revisions,
// and assigns it a fast-import commit mark, all in one transaction.
func (sdb *StateDB) InsertPatchset(branch, author, log string, at time.Time, mark int64, fileRevisionIDs []int64, parentRef string) (int64, error) {
	tx, err := sdb.db.Begin()
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(`INSERT INTO patchsets (branch, author, log, time, mark, parent_ref) VALUES (?, ?, ?, ?, ?, ?)`,
		branch, author, log, at, mark, parentRef)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	for _, frID := range fileRevisionIDs {
		if _, err := tx.Exec(`INSERT INTO patchset_file_revisions (patchset_id, file_revision_id) VALUES (?, ?)`, id, frID); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		// Only patchset_id moves here: mark is the blob mark set once by
		// SetFileRevisionMark at blob-emission time and must never be
		// overwritten with the commit mark of whichever patchset happens
		// to reference this file revision.
		if _, err := tx.Exec(`UPDATE file_revisions SET patchset_id = ? WHERE id = ?`, id, frID); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// RecordCommitSHA stores the resolved commit sha for a patchset once
// the fast-import marks file has been read back.
func (sdb *StateDB) RecordCommitSHA(patchsetID int64, sha string) error {
	_, err := sdb.db.Exec(`UPDATE patchsets SET commit_sha = ? WHERE id = ?`, sha, patchsetID)
	return err
}

// UpsertTag records a tag and the mark/patchset it targets. A
// patchsetID of 0 (a tag with no patchset of its own) is stored as NULL.
func (sdb *StateDB) UpsertTag(name string, patchsetID int64, mark int64, message string) error {
	var ps interface{}
	if patchsetID != 0 {
		ps = patchsetID
	}
	_, err := sdb.db.Exec(`INSERT OR REPLACE INTO tags (name, patchset_id, mark, message) VALUES (?, ?, ?, ?)`,
		name, ps, mark, message)
	return err
}

// SetFileRevisionBranches records the full set of branch names a file
// revision is live on, replacing whatever set was previously recorded
// for it. This is the file_revision_branches membership table: a
// revision live on several branches gets one row per branch here, not
// a single "latest head" pointer.
func (sdb *StateDB) SetFileRevisionBranches(fileRevisionID int64, branches []string) error {
	tx, err := sdb.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM file_revision_branches WHERE file_revision_id = ?`, fileRevisionID); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, b := range branches {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO file_revision_branches (file_revision_id, branch) VALUES (?, ?)`, fileRevisionID, b); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// FileRevisionBranches returns the full set of branch names previously
// recorded as live for a file revision.
func (sdb *StateDB) FileRevisionBranches(fileRevisionID int64) ([]string, error) {
	rows, err := sdb.db.Query(`SELECT branch FROM file_revision_branches WHERE file_revision_id = ?`, fileRevisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Branches returns every distinct branch a patchset has been committed
// on, for restart reconciliation to check each one's recorded head
// against the target repository.
func (sdb *StateDB) Branches() ([]string, error) {
	rows, err := sdb.db.Query(`SELECT DISTINCT branch FROM patchsets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ShaForMark returns the commit sha previously recorded for mark via
// RecordMark, if any.
func (sdb *StateDB) ShaForMark(mark int64) (string, bool, error) {
	var sha sql.NullString
	err := sdb.db.QueryRow(`SELECT sha FROM marks WHERE mark = ?`, mark).Scan(&sha)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !sha.Valid || sha.String == "" {
		return "", false, nil
	}
	return sha.String, true, nil
}

// LatestPatchsetMark returns the fast-import mark of the most recent
// patchset committed on branch, or 0 if the branch has no commits yet.
func (sdb *StateDB) LatestPatchsetMark(branch string) (int64, error) {
	var mark sql.NullInt64
	err := sdb.db.QueryRow(`SELECT mark FROM patchsets WHERE branch = ? ORDER BY time DESC, id DESC LIMIT 1`, branch).Scan(&mark)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return mark.Int64, nil
}

// LatestPatchsetMarkBefore returns the mark of the most recent patchset
// on branch committed at or before at, used to find a branch's parent
// commit at the moment it forked from the trunk or another branch.
func (sdb *StateDB) LatestPatchsetMarkBefore(branch string, at time.Time) (int64, error) {
	var mark sql.NullInt64
	err := sdb.db.QueryRow(
		`SELECT mark FROM patchsets WHERE branch = ? AND time <= ? ORDER BY time DESC, id DESC LIMIT 1`,
		branch, at,
	).Scan(&mark)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return mark.Int64, nil
}

// Close closes the database connection.
func (sdb *StateDB) Close() error {
	sdb.db.SetMaxIdleConns(0)
	return sdb.db.Close()
}
