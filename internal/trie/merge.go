package trie

// AnyBranchIID reports whether at least one non-nil node in nodes is a
// KindBranchIID node, i.e. whether the lock-step walk must still recurse one
// more nibble (§4.F "If every non-nil entry is a branch with the same
// branching type, recurse into children positionally"). Segments are built
// independently, so two roots at the same path routinely differ in depth —
// a leaf sitting next to a still-splitting branch must keep descending with
// it rather than forcing an early leaf-emit that would drop the branch's
// subtree.
func AnyBranchIID(nodes []*Node) bool {
	for _, n := range nodes {
		if n != nil && n.Kind == KindBranchIID {
			return true
		}
	}
	return false
}

// ChildrenOrSelfAt returns, for child slot c, the corresponding child of
// each branch node in nodes. A non-branch node (a leaf whose own path is
// shallower than a sibling's) is carried down unchanged into every child
// slot, since its rows span the sibling branch's whole nibble range at this
// depth and must keep contributing until the walk bottoms out on its side
// too.
func ChildrenOrSelfAt(nodes []*Node, c byte) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		if n.Kind == KindBranchIID {
			out[i] = ChildAt(n, c)
			continue
		}
		out[i] = n
	}
	return out
}

// AnyNonNil reports whether at least one entry in nodes is non-nil.
func AnyNonNil(nodes []*Node) bool {
	for _, n := range nodes {
		if n != nil {
			return true
		}
	}
	return false
}

// ResolveRecency resolves a KindBranchRecency root n into the sides a read
// must walk: only Live when needSuperseded is false (a pure as-of-latest
// read), otherwise both Live and Superseded. Any other node is returned
// as is. The caller walks each returned node independently.
func ResolveRecency(n *Node, needSuperseded bool) []*Node {
	if n == nil {
		return nil
	}
	if n.Kind != KindBranchRecency {
		return []*Node{n}
	}
	if !needSuperseded {
		return []*Node{n.Live}
	}
	return []*Node{n.Live, n.Superseded}
}
