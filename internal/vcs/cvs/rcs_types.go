package cvs

import (
	"sort"
	"time"
)

// RCSFile represents a parsed RCS ,v file's admin block and delta chain.
type RCSFile struct {
	Head        string
	Branch      string
	Access      []string
	Symbols     map[string]string
	Locks       map[string]string
	StrictLocks bool
	Comment     string
	Expand      string
	Description string
	Deltas      map[string]*Delta
	DeltaOrder  []string // order deltas appear in the admin block

	recon *reconCache
}

// Delta represents a single revision node in an RCS file's delta
// chain. Text holds the stored payload exactly as found in the
// ,v file: full content for the head revision, an ed-subset diff
// for every other revision. It is never the reconstructed content
// of that revision - use RCSFile.Reconstruct for that.
type Delta struct {
	Revision string
	Date     time.Time
	Author   string
	State    string
	Branches []string
	Next     string
	Log      string
	Text     []byte
}

// FileRevision is one reconstructed, fully-materialized revision of a
// tracked file: the unit the patchset reconstructor groups into commits.
type FileRevision struct {
	Path     []byte
	Revision string
	Time     time.Time
	Author   string
	Log      string
	Branches []string // the set of branch names this revision is live on; "" denotes trunk
	State    string
	Content  []byte
	Mark     *int64
}

// GetBranches returns the symbol names that denote branches (as
// opposed to tags): symbols whose revision number has 4 or more
// dot-separated components, whether the RCS magic form with an
// inserted "0" (e.g. "1.2.0.2") or a concrete commit on that branch
// (e.g. "1.2.2.1"). A plain 2-component number ("1.5") is a trunk tag.
func (r *RCSFile) GetBranches() []string {
	var branches []string
	for sym, rev := range r.Symbols {
		if isBranchNumber(rev) {
			branches = append(branches, sym)
		}
	}
	return branches
}

// GetTags returns tag-name -> revision for every symbol that is not a
// branch number.
func (r *RCSFile) GetTags() map[string]string {
	tags := make(map[string]string)
	for sym, rev := range r.Symbols {
		if !isBranchNumber(rev) {
			tags[sym] = rev
		}
	}
	return tags
}

// BranchOf returns the branch symbol that owns revision rev, or "" if
// rev lies on the trunk. It walks the symbol table looking for a
// branch magic number (x.y.0.z) whose prefix x.y matches the revision
// that forked rev, or a literal branch-rooted prefix.
func (r *RCSFile) BranchOf(rev string) string {
	root, onBranch := r.branchRoot(rev)
	if !onBranch {
		return ""
	}
	for sym, symRev := range r.Symbols {
		if isBranchNumber(symRev) && branchPrefixOf(symRev) == root {
			return sym
		}
	}
	return ""
}

// BranchesOf returns the set of branch names revision rev is live on.
// A branch revision belongs only to the branch it was committed on. A
// trunk revision belongs to trunk ("") plus every branch that forks
// from exactly that revision (its magic symbol's x.y prefix matches
// rev): checking out such a branch before it has a commit of its own
// yields rev's content, so rev is live there too until the branch
// gets its own delta. This is what makes "one patchset per branch,
// sharing content but distinct marks" possible for a revision live on
// several branches at once.
func (r *RCSFile) BranchesOf(rev string) []string {
	if root, onBranch := r.branchRoot(rev); onBranch {
		for sym, symRev := range r.Symbols {
			if isBranchNumber(symRev) && branchPrefixOf(symRev) == root {
				return []string{sym}
			}
		}
		return []string{""}
	}

	branches := []string{""}
	for sym, symRev := range r.Symbols {
		if isBranchNumber(symRev) && branchForkRevision(symRev) == rev {
			branches = append(branches, sym)
		}
	}
	sort.Strings(branches[1:])
	return branches
}

// branchForkRevision returns the trunk revision a branch's magic
// symbol number forks from: the x.y prefix before the inserted "0"
// (e.g. "1.3" for "1.3.0.2").
func branchForkRevision(branchSymRev string) string {
	parts := splitRevision(branchSymRev)
	if len(parts) < 4 {
		return branchSymRev
	}
	return joinRevision(parts[:len(parts)-2])
}

// branchRoot returns the family prefix identifying the branch that
// owns rev - the revision number with its final per-branch counter
// dropped (e.g. "1.3.2" for rev "1.3.2.4") - comparable against
// branchPrefixOf's normalization of a symbol table's magic branch
// number. Returns false if rev is not on a branch at all (a
// 2-component trunk revision "x.y").
func (r *RCSFile) branchRoot(rev string) (string, bool) {
	parts := splitRevision(rev)
	if len(parts) <= 2 {
		return "", false
	}
	return joinRevision(parts[:len(parts)-1]), true
}

func isBranchNumber(rev string) bool {
	dots := 0
	for _, c := range rev {
		if c == '.' {
			dots++
		}
	}
	return dots >= 3
}

// branchPrefixOf normalizes a symbol table's magic branch number
// ("1.3.0.2", with the inserted "0" marking where the fork happened)
// into the same family-prefix form branchRoot produces for an actual
// committed revision on that branch ("1.3.2"), so the two are directly
// comparable in BranchOf.
func branchPrefixOf(branchSymRev string) string {
	parts := splitRevision(branchSymRev)
	if len(parts) < 4 {
		return branchSymRev
	}
	// x.y.0.z -> x.y.z
	out := append([]int{}, parts[:len(parts)-2]...)
	out = append(out, parts[len(parts)-1])
	return joinRevision(out)
}
