package trie

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xtdb-go/bitemporal/internal/iid"
)

func asLeaf(rows []int) (*Node, error) {
	return &Node{Kind: KindLeaf, Leaf: &Leaf{RowCount: uint32(len(rows))}}, nil
}

func TestBuild_SmallGroupIsSingleLeaf(t *testing.T) {
	keys := []iid.IID{iid.OfInt(1), iid.OfInt(2), iid.OfInt(3)}
	root, err := Build([]int{0, 1, 2}, keys, 10, func(path iid.Path, rows []int) (*Node, error) {
		return asLeaf(rows)
	})
	require.NoError(t, err)
	require.Equal(t, KindLeaf, root.Kind)
	require.Equal(t, uint32(3), root.Leaf.RowCount)
}

func TestBuild_SplitsOnOverflow(t *testing.T) {
	var keys []iid.IID
	var idxs []int
	for i := 0; i < 100; i++ {
		keys = append(keys, iid.OfInt(int64(i)))
		idxs = append(idxs, i)
	}
	leafCount := 0
	root, err := Build(idxs, keys, 4, func(path iid.Path, rows []int) (*Node, error) {
		leafCount++
		require.LessOrEqual(t, len(rows), 4)
		return asLeaf(rows)
	})
	require.NoError(t, err)
	require.Equal(t, KindBranchIID, root.Kind)
	require.Greater(t, leafCount, 1)

	var total uint32
	WalkLeaves(root, func(l *Leaf) { total += l.RowCount })
	require.EqualValues(t, 100, total)
}

func TestLookup(t *testing.T) {
	keys := []iid.IID{iid.OfInt(1), iid.OfInt(2)}
	root, err := Build([]int{0, 1}, keys, 1, func(path iid.Path, rows []int) (*Node, error) {
		return &Node{Kind: KindLeaf, Leaf: &Leaf{TrieKey: append(iid.Path{}, path...), RowCount: uint32(len(rows))}}, nil
	})
	require.NoError(t, err)

	leaf := Lookup(root, keys[0])
	require.NotNil(t, leaf)
}
