package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/afobsidian/cvs2gitfi/internal/vcs/cvs"
)

// defaultPatchsetWindow is how far apart two FileRevisions can be in
// time and still join the same patchset, measured as the distance
// from a candidate to the patchset's current latest member (not to
// its first member), so a patchset can legitimately span longer than
// the window if commits trickle in steadily.
const defaultPatchsetWindow = 5 * time.Minute

// Patchset is a group of FileRevisions from possibly many files that
// share an author, a byte-exact log message, and a branch, all
// committed close enough together in time to be the same logical
// change - the unit that becomes one git commit.
type Patchset struct {
	Branch  string
	Author  string
	Log     string
	Time    time.Time // max member time
	Members []cvs.FileRevision
}

// candidate pairs a FileRevision with one branch it is live on.
// ReconstructPatchsets expands each FileRevision's full Branches set
// into one candidate per branch before grouping, so a revision live on
// several branches (see cvs.RCSFile.BranchesOf) lands in one patchset
// per branch - sharing the same reconstructed content but getting its
// own commit - instead of being forced onto a single branch.
type candidate struct {
	fr     cvs.FileRevision
	branch string
}

// ReconstructPatchsets groups revisions into patchsets per
// SPEC_FULL.md §3: candidates are sorted by (branch, author, log hash,
// time) so same-author-same-message revisions land adjacent, then
// swept in that order, closing the current patchset and opening a new
// one whenever the next candidate's time is further than window from
// the patchset's current latest member, or whenever the candidate's
// path already has a member in the open group (a patchset never holds
// two revisions of the same file). The returned patchsets are ordered
// for commit emission: per branch, chronologically by Time, ties
// broken by the lexicographically-sorted (path, revision) pairs of
// their members.
func ReconstructPatchsets(revisions []cvs.FileRevision, window time.Duration) []Patchset {
	if window <= 0 {
		window = defaultPatchsetWindow
	}

	var candidates []candidate
	for _, fr := range revisions {
		branches := fr.Branches
		if len(branches) == 0 {
			branches = []string{""}
		}
		for _, b := range branches {
			candidates = append(candidates, candidate{fr: fr, branch: b})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.branch != b.branch {
			return a.branch < b.branch
		}
		if a.fr.Author != b.fr.Author {
			return a.fr.Author < b.fr.Author
		}
		ha, hb := logHash(a.fr.Log), logHash(b.fr.Log)
		if ha != hb {
			return ha < hb
		}
		return a.fr.Time.Before(b.fr.Time)
	})

	var patchsets []Patchset
	var current *Patchset
	var currentPaths map[string]bool
	for _, c := range candidates {
		if current != nil &&
			current.Branch == c.branch &&
			current.Author == c.fr.Author &&
			current.Log == c.fr.Log &&
			c.fr.Time.Sub(current.Time) <= window &&
			!currentPaths[string(c.fr.Path)] {
			current.Members = append(current.Members, c.fr)
			currentPaths[string(c.fr.Path)] = true
			if c.fr.Time.After(current.Time) {
				current.Time = c.fr.Time
			}
			continue
		}
		if current != nil {
			patchsets = append(patchsets, *current)
		}
		current = &Patchset{Branch: c.branch, Author: c.fr.Author, Log: c.fr.Log, Time: c.fr.Time, Members: []cvs.FileRevision{c.fr}}
		currentPaths = map[string]bool{string(c.fr.Path): true}
	}
	if current != nil {
		patchsets = append(patchsets, *current)
	}

	sort.SliceStable(patchsets, func(i, j int) bool {
		a, b := patchsets[i], patchsets[j]
		if a.Branch != b.Branch {
			return a.Branch < b.Branch
		}
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		return memberKey(a) < memberKey(b)
	})

	return patchsets
}

// logHash gives candidates with a byte-identical log message the same
// sort key without comparing the (possibly large) message text itself
// on every comparison in the sort.
func logHash(log string) string {
	sum := sha256.Sum256([]byte(log))
	return hex.EncodeToString(sum[:])
}

// memberKey is the deterministic tie-breaker for two patchsets that
// land on the same branch at the same Time: the lexicographically
// smallest sorted (path, revision) pair among their members.
func memberKey(p Patchset) string {
	keys := make([]string, len(p.Members))
	for i, m := range p.Members {
		keys[i] = string(m.Path) + "\x00" + m.Revision
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
