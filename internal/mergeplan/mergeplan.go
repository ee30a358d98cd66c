// Package mergeplan implements the lock-step trie walk that turns a table's
// segment tries (plus the live index) into merge tasks at shared trie paths
// (§4.F), applying metadata-pushdown pruning and the iid-bloom
// ceiling-completing-contributor rule before a task is handed to the scan
// cursor.
package mergeplan

import (
	"github.com/xtdb-go/bitemporal/internal/bloomfilter"
	"github.com/xtdb-go/bitemporal/internal/iid"
	"github.com/xtdb-go/bitemporal/internal/segment"
	"github.com/xtdb-go/bitemporal/internal/trie"
)

// LiveSource is the live-index collaborator a merge task can draw rows
// from. Satisfied by *liveindex.Snapshot.
type LiveSource interface {
	Rows(path iid.Path) *segment.Page
}

// Predicate is the pushdown the merge planner can use to prune whole pages
// before a task is ever opened (§4.F "path-predicate... and the
// metadata-pushdown predicate for each segment").
type Predicate struct {
	// IIDEq, if set, restricts the walk and per-page pruning to rows whose
	// iid equals this value (the "iid selector from an equality predicate
	// on xt/id").
	IIDEq *iid.IID

	// ColumnEq are column-name -> equality-value predicates the per-page
	// min/max and bloom stats can reject a page against, without opening
	// its data.
	ColumnEq map[string]any
}

// Task is one unit of work at a shared trie path: the contributing leaf
// from each segment (nil where pruned or absent) plus the live index's
// rows on that path (nil if empty).
type Task struct {
	Path          iid.Path
	SegmentLeaves []*trie.Leaf // aligned with the Plan call's roots slice
	Live          *segment.Page
}

// Plan walks roots (one trie root per contributing segment, in current-set
// order; entries may be nil for a table with fewer segments at some level)
// and live in lock-step, emitting one Task per shared leaf-level path.
//
// roots must already have any KindBranchRecency node resolved down to a
// plain branch-iid/leaf shape for the query's system-time bound (via
// trie.ResolveRecency) — the merge planner itself only ever walks
// branch-iid/leaf nodes (§4.F "If every non-nil entry is a branch with the
// same branching type, recurse into children positionally").
func Plan(roots []*trie.Node, live LiveSource, pred Predicate) []Task {
	var out []Task
	walk(nil, roots, live, pred, &out)
	return out
}

func walk(path iid.Path, nodes []*trie.Node, live LiveSource, pred Predicate, out *[]Task) {
	if !trie.AnyNonNil(nodes) {
		emitIfLiveOnly(path, nodes, live, out)
		return
	}
	if trie.AnyBranchIID(nodes) {
		for c := byte(0); c < trie.BranchFactor; c++ {
			if pred.IIDEq != nil && iid.CompareToPath((*pred.IIDEq), path.Child(c)) != 0 {
				continue
			}
			walk(path.Child(c), trie.ChildrenOrSelfAt(nodes, c), live, pred, out)
		}
		return
	}

	// Every non-nil node here is a KindLeaf (AnyBranchIID was false): the
	// walk has bottomed out on every side for this path.
	leaves := make([]*trie.Leaf, len(nodes))
	for i, n := range nodes {
		if n != nil && n.Kind == trie.KindLeaf {
			leaves[i] = n.Leaf
		}
	}
	if t := buildTask(path, leaves, live, pred); t != nil {
		*out = append(*out, *t)
	}
}

// emitIfLiveOnly handles the case where every segment is exhausted (nil) on
// path but the live index may still hold rows there — e.g. a brand new
// table with no segments yet, or an iid range only the live index covers.
func emitIfLiveOnly(path iid.Path, nodes []*trie.Node, live LiveSource, out *[]Task) {
	if live == nil {
		return
	}
	rows := live.Rows(path)
	if rows == nil || rows.RowCount() == 0 {
		return
	}
	*out = append(*out, Task{Path: append(iid.Path{}, path...), SegmentLeaves: make([]*trie.Leaf, len(nodes)), Live: rows})
}

func buildTask(path iid.Path, leaves []*trie.Leaf, live LiveSource, pred Predicate) *Task {
	taken := make([]bool, len(leaves))
	var takenIidBlooms [][]byte

	for i, l := range leaves {
		if l == nil {
			continue
		}
		if leafMayMatch(l, pred) {
			taken[i] = true
			if b := iidBloomOf(l); b != nil {
				takenIidBlooms = append(takenIidBlooms, b)
			}
		}
	}

	// Ceiling-completing contributors (§4.F): a page not directly selected
	// by the predicate may still hold an earlier/later event for an iid a
	// taken page matches, and that event is needed to compute the taken
	// row's correct system_to.
	for i, l := range leaves {
		if l == nil || taken[i] {
			continue
		}
		b := iidBloomOf(l)
		if b == nil {
			continue
		}
		for _, tb := range takenIidBlooms {
			if ok, _ := bloomfilter.MaybeIntersects(b, tb); ok {
				taken[i] = true
				break
			}
		}
	}

	out := &Task{Path: append(iid.Path{}, path...), SegmentLeaves: make([]*trie.Leaf, len(leaves))}
	anyTaken := false
	for i, l := range leaves {
		if taken[i] {
			out.SegmentLeaves[i] = l
			anyTaken = true
		}
	}

	if live != nil {
		rows := live.Rows(path)
		if rows != nil && rows.RowCount() > 0 {
			out.Live = rows
			anyTaken = true
		}
	}

	if !anyTaken {
		return nil
	}
	return out
}

func leafMayMatch(l *trie.Leaf, pred Predicate) bool {
	if pred.IIDEq != nil {
		c, ok := findColumn(l, "xt$iid")
		if ok {
			match, err := segment.MayContainEqual(c, pred.IIDEq.Bytes())
			if err == nil && !match {
				return false
			}
		}
	}
	for name, want := range pred.ColumnEq {
		c, ok := findColumn(l, segment.Normalize(name))
		if !ok {
			continue
		}
		match, err := segment.MayContainValue(c, want)
		if err == nil && !match {
			return false
		}
	}
	return true
}

func findColumn(l *trie.Leaf, name string) (trie.ColumnStats, bool) {
	for _, c := range l.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return trie.ColumnStats{}, false
}

func iidBloomOf(l *trie.Leaf) []byte {
	c, ok := findColumn(l, "xt$iid")
	if !ok {
		return nil
	}
	return c.IidBloom
}
