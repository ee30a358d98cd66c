package trie

import "github.com/xtdb-go/bitemporal/internal/iid"

// Keyed is anything the builder can partition by iid: a row, a row range, or
// a pointer to one.
type Keyed interface {
	IID() iid.IID
}

// NewLeaf materializes the leaf node for the rows on path. The caller (the
// segment writer) decides the data-page representation and returns a
// KindLeaf; any recency split is made before Build is called.
type NewLeaf func(path iid.Path, rows []int) (*Node, error)

// Build partitions rows (already sorted by iid ascending; indices 0..len-1
// refer into some caller-owned slice) into a 4-ary trie, splitting any group
// larger than pageSize on the next iid nibble, and stopping at a leaf once a
// group is small enough, all of its rows share one iid, or the iid nibble
// space is exhausted (duplicate iids, e.g. multiple events for one entity,
// always end up in one leaf).
//
// keys[r] is the iid of row r for every row index r in indices; keys must be
// indexed the same way as the original slice the caller's NewLeaf closes over.
func Build(indices []int, keys []iid.IID, pageSize int, newLeaf NewLeaf) (*Node, error) {
	return build(indices, keys, nil, pageSize, newLeaf)
}

func build(indices []int, keys []iid.IID, path iid.Path, pageSize int, newLeaf NewLeaf) (*Node, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	if len(indices) <= pageSize || len(path) >= iid.MaxNibbles {
		return newLeaf(path, indices)
	}
	sameKey := true
	for _, idx := range indices[1:] {
		if keys[idx].Compare(keys[indices[0]]) != 0 {
			sameKey = false
			break
		}
	}
	if sameKey {
		return newLeaf(path, indices)
	}

	var buckets [BranchFactor][]int
	nibbleAt := len(path)
	for _, idx := range indices {
		n := keys[idx].Nibble(nibbleAt)
		buckets[n] = append(buckets[n], idx)
	}

	branch := &Node{Kind: KindBranchIID}
	for n := 0; n < BranchFactor; n++ {
		if len(buckets[n]) == 0 {
			continue
		}
		child, err := build(buckets[n], keys, path.Child(byte(n)), pageSize, newLeaf)
		if err != nil {
			return nil, err
		}
		branch.Children[n] = child
	}
	return branch, nil
}

// Lookup descends the trie for iid key, returning the leaf that would
// contain it, or nil if the trie has no leaf on that path.
func Lookup(root *Node, key iid.IID) *Leaf {
	n := root
	depth := 0
	for n != nil {
		switch n.Kind {
		case KindLeaf:
			return n.Leaf
		case KindBranchIID:
			n = n.Children[key.Nibble(depth)]
			depth++
		case KindBranchRecency:
			// Recency branches don't partition by iid; descend both only
			// the caller distinguishing live-vs-superseded cares to pick a
			// side up front, so generic iid lookup treats it as opaque and
			// stops here.
			return nil
		default:
			return nil
		}
	}
	return nil
}
