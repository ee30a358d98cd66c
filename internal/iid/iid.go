// Package iid derives the 16-byte internal entity id ("iid") used for all
// segment sorting and trie partitioning, and the nibble-path comparisons the
// trie walk and merge-scan need.
package iid

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Size is the width, in bytes, of an iid.
const Size = 16

// IID is the 128-bit hash of the canonical byte form of a user-supplied id.
type IID [Size]byte

// Kind identifies the canonical encoding used to produce an IID, so that
// equal user ids of differing surface types still map to equal IIDs.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindUUID
	KindKeyword
)

// Of hashes x (the canonical byte form of a user id, per kind) into an IID.
//
// The domain byte keeps e.g. the string "1" and the integer 1 from ever
// colliding, while still being deterministic across runs and processes.
func Of(kind Kind, canonical []byte) IID {
	h := sha256.New()
	h.Write([]byte{byte(kind)})
	h.Write(canonical)
	sum := h.Sum(nil)
	var out IID
	copy(out[:], sum[:Size])
	return out
}

// OfString derives the iid for a UTF-8 string id.
func OfString(s string) IID {
	return Of(KindString, []byte(s))
}

// OfInt derives the iid for an integer id, encoded fixed-width big-endian.
func OfInt(v int64) IID {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return Of(KindInt, b[:])
}

// OfUUID derives the iid for a UUID id, using its 16 raw bytes.
func OfUUID(u uuid.UUID) IID {
	return Of(KindUUID, u[:])
}

// OfKeyword derives the iid for a keyword id, using its qualified UTF-8 form
// (e.g. "ns/name").
func OfKeyword(qualified string) IID {
	return Of(KindKeyword, []byte(qualified))
}

// OfAny derives the iid for any supported user id value. Unsupported types
// return an error rather than silently hashing a Go-internal representation,
// since on-disk iids must be bit-stable across processes.
func OfAny(x any) (IID, error) {
	switch v := x.(type) {
	case string:
		return OfString(v), nil
	case int:
		return OfInt(int64(v)), nil
	case int32:
		return OfInt(int64(v)), nil
	case int64:
		return OfInt(v), nil
	case uint64:
		return OfInt(int64(v)), nil
	case uuid.UUID:
		return OfUUID(v), nil
	default:
		return IID{}, fmt.Errorf("iid: unsupported id type %T", x)
	}
}

// Nibble returns the 2-bit-pair "nibble" (0..3) at position i (0-based) of
// the iid's path. The trie branches 4 ways per nibble, so each byte yields 4
// nibbles, most significant pair first.
func (id IID) Nibble(i int) byte {
	byteIdx := i / 4
	shift := 6 - 2*(i%4)
	return (id[byteIdx] >> shift) & 0x3
}

// MaxNibbles is the number of addressable nibbles in an iid (4 per byte).
const MaxNibbles = Size * 4

// Bytes returns the raw 16-byte value.
func (id IID) Bytes() []byte { return id[:] }

// Less reports whether id sorts strictly before other, as required by the
// segment sort order (iid asc, system_from desc).
func (id IID) Less(other IID) bool {
	for i := 0; i < Size; i++ {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Compare returns -1, 0 or 1 comparing id to other lexicographically.
func (id IID) Compare(other IID) int {
	for i := 0; i < Size; i++ {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
