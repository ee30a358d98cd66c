// Package trie implements the iid-addressed hash trie of the on-disk segment
// meta format (§4.B); the in-memory live index (§4.C) keeps a flat ordered
// set instead. It is a
// Go-native adaptation of the teacher's `urkle` append-only binary trie:
// same idea (branch nodes partition a sorted key space, leaves terminate it),
// generalized from a 2-way crit-bit branch to the spec's fixed 4-way
// (2-bit-nibble) branch, and built from a dense union of struct variants
// instead of urkle's flat byte-region node store, since our tries are
// rebuilt wholesale at flush/compaction time rather than appended to
// one key at a time under an MMR's streaming constraint.
package trie

import "github.com/xtdb-go/bitemporal/internal/iid"

// Kind tags the dense-union node variant.
type Kind uint8

const (
	// KindNil marks an absent child (a branch slot with no rows under it).
	KindNil Kind = iota
	// KindBranchIID fans out 4-ways on the next nibble of the iid path.
	KindBranchIID
	// KindBranchRecency fans out by a `_recency` cut timestamp, separating
	// rows that are still "live" (recency == +inf) from rows superseded
	// before the cut. Only compaction output trees carry this variant
	// (§4.H); it lets time-travel reads prune whole subtrees.
	KindBranchRecency
	// KindLeaf terminates the trie at a data page.
	KindLeaf
)

// BranchFactor is the trie's fan-out: 2-bit nibbles, so 4 children per
// branch-iid node (§3 "Entity id").
const BranchFactor = 4

// Node is one dense-union trie node. Only the fields relevant to Kind are
// meaningful.
type Node struct {
	Kind Kind

	// KindBranchIID
	Children [BranchFactor]*Node

	// KindBranchRecency: rows with recency >= Cut go to Live, the rest to
	// Superseded. Cut is a µs-since-epoch system-time; +inf is represented
	// by MaxRecency.
	Cut        int64
	Live       *Node
	Superseded *Node

	// KindLeaf
	Leaf *Leaf
}

// MaxRecency encodes "+infinity" for a row never superseded.
const MaxRecency = int64(1<<63 - 1)

// Leaf points at one data page and carries the column metadata the scan
// cursor and merge planner need without opening the page itself.
type Leaf struct {
	DataPageIdx uint32
	TrieKey     iid.Path
	Columns     []ColumnStats
	RowCount    uint32
}

// ColumnStats is the per-column, per-page metadata carried in the meta file
// (§4.B): name, whether it's a root (top-level document) column, count, a
// min/max pair (opaque comparable encoding), and a bloom-filter region. iid
// and system_from columns additionally carry an iid-bloom region.
type ColumnStats struct {
	Name       string
	RootCol    bool
	Count      uint32
	Min        []byte
	Max        []byte
	Bloom      []byte
	IidBloom   []byte // non-nil only for iid / system_from columns
}

// WalkLeaves visits every reachable leaf in the subtree rooted at n,
// depth-first, left to right. A nil n visits nothing.
func WalkLeaves(n *Node, visit func(*Leaf)) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindLeaf:
		visit(n.Leaf)
	case KindBranchIID:
		for _, c := range n.Children {
			WalkLeaves(c, visit)
		}
	case KindBranchRecency:
		WalkLeaves(n.Live, visit)
		WalkLeaves(n.Superseded, visit)
	}
}

// ChildAt resolves the child of a branch-iid node for nibble value v,
// returning nil if n isn't a branch-iid node or the slot is empty.
func ChildAt(n *Node, v byte) *Node {
	if n == nil || n.Kind != KindBranchIID {
		return nil
	}
	return n.Children[v&0x3]
}
