package cvs

import (
	"container/list"
	"fmt"
	"sync"
)

// defaultReconCacheSize bounds how many materialized revisions an
// RCSFile keeps around at once. Sized for a delta chain with a few
// long-lived branches open concurrently; full files are rebuilt from
// their nearest cached ancestor on eviction, not reparsed.
const defaultReconCacheSize = 64

// reconCache is a bounded LRU of revision -> materialized content. It
// exists because the patchset reconstructor and the fast-import
// streamer both walk revisions in roughly commit order, and siblings
// on the same branch share the same backward/forward chain prefix.
type reconCache struct {
	mu    sync.Mutex
	cap   int
	order *list.List
	index map[string]*list.Element
}

type reconEntry struct {
	rev     string
	content []byte
}

func newReconCache(capacity int) *reconCache {
	return &reconCache{
		cap:   capacity,
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

func (c *reconCache) get(rev string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[rev]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*reconEntry).content, true
}

func (c *reconCache) put(rev string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[rev]; ok {
		el.Value.(*reconEntry).content = content
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&reconEntry{rev: rev, content: content})
	c.index[rev] = el
	if c.order.Len() > c.cap {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*reconEntry).rev)
		}
	}
}

// Reconstruct materializes the full content of revision rev by
// walking the delta chain from the head revision (stored in full)
// down the trunk, and forward along any branch, applying ed-subset
// diffs along the way. Results are memoized in a bounded LRU so that
// reconstructing sibling revisions on the same branch doesn't re-walk
// shared chain prefixes.
func (r *RCSFile) Reconstruct(rev string) ([]byte, error) {
	if r.recon == nil {
		r.recon = newReconCache(defaultReconCacheSize)
	}
	return r.reconstruct(rev, make(map[string]bool))
}

func (r *RCSFile) reconstruct(rev string, visiting map[string]bool) ([]byte, error) {
	if content, ok := r.recon.get(rev); ok {
		return content, nil
	}
	if visiting[rev] {
		return nil, fmt.Errorf("rcs: cyclic delta chain detected at revision %s", rev)
	}
	visiting[rev] = true
	defer delete(visiting, rev)

	delta, ok := r.Deltas[rev]
	if !ok {
		return nil, fmt.Errorf("rcs: revision %s not found in delta chain", rev)
	}

	if rev == r.Head {
		content := append([]byte(nil), delta.Text...)
		r.recon.put(rev, content)
		return content, nil
	}

	pred, err := r.predecessorOf(rev)
	if err != nil {
		return nil, err
	}
	predContent, err := r.reconstruct(pred, visiting)
	if err != nil {
		return nil, err
	}

	// rev's own Text field holds the diff, whichever side of the chain
	// it came from: for a trunk revision it is the reverse delta
	// transforming the newer trunk revision's content into rev's; for a
	// later revision on a branch it is the forward delta transforming the
	// previous branch revision's content into rev's; for a branch root it
	// is the forward delta transforming the
	// branch point's content into rev's. Only the head revision (above)
	// stores full content instead of a diff.
	content, err := applyEdScript(predContent, delta.Text)
	if err != nil {
		return nil, fmt.Errorf("rcs: reconstructing %s from %s: %w", rev, pred, err)
	}
	r.recon.put(rev, content)
	return content, nil
}

// predecessorOf finds the revision whose content, plus rev's own
// ed-script diff, yields rev's content:
//   - some delta P has P.Next == rev; P is the revision rev's diff is
//     applied to. On trunk P is the newer revision (closer to head); on
//     a branch P is the older revision on the same branch.
//   - branch root: rev is the first delta on a branch forked from some
//     trunk (or parent-branch) revision P via P.Branches; P is the
//     branch point rev's diff is applied to.
func (r *RCSFile) predecessorOf(rev string) (pred string, err error) {
	for candRev, d := range r.Deltas {
		if d.Next == rev {
			return candRev, nil
		}
	}
	for candRev, d := range r.Deltas {
		for _, b := range d.Branches {
			if b == rev {
				return candRev, nil
			}
		}
	}
	return "", fmt.Errorf("rcs: no predecessor found for revision %s", rev)
}
