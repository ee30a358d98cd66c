package iid

// Path is a trie path: a sequence of 2-bit nibbles, each in [0,3], identifying
// a node in the iid-addressed hash trie. A path is a prefix of some iid's
// nibble sequence.
type Path []byte

// CompareToPath returns the sign of the lexicographic comparison of id's
// leading nibbles against path. A prefix match (every nibble in path agrees
// with id's prefix) yields 0, regardless of how much of id's path remains
// beyond len(path).
func CompareToPath(id IID, path Path) int {
	for i, want := range path {
		if i >= MaxNibbles {
			return 0
		}
		got := id.Nibble(i)
		if got != want {
			if got < want {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Child returns the path extended by one nibble, selecting child branch n
// (n in [0,3]).
func (p Path) Child(n byte) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = n & 0x3
	return out
}

// Floor returns the smallest IID whose leading nibbles equal path (every
// nibble beyond path is zero), i.e. the lower bound of the iid range path
// addresses.
func (p Path) Floor() IID {
	var id IID
	for i, n := range p {
		byteIdx := i / 4
		shift := 6 - 2*(i%4)
		id[byteIdx] |= (n & 0x3) << shift
	}
	return id
}

// Equal reports whether two paths have identical nibble sequences.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}
