package segment

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/xtdb-go/bitemporal/internal/bloomfilter"
	"github.com/xtdb-go/bitemporal/internal/trie"
)

// MayContainValue reports whether a page's column c could hold a row equal
// to want, by checking want's encoded form against c's min/max range and
// bloom filter (§4.F "use the per-column bloom/min-max to decide whether
// this page may contribute rows matching the predicate"). A false result is
// conclusive; true only means the page was not ruled out.
func MayContainValue(c trie.ColumnStats, want any) (bool, error) {
	enc, err := cbor.Marshal(want)
	if err != nil {
		return true, err
	}
	return mayContainEncoded(c, enc)
}

// MayContainEqual is MayContainValue specialized for raw byte keys (iid
// equality pushdown), which are not CBOR scalars.
func MayContainEqual(c trie.ColumnStats, rawKey []byte) (bool, error) {
	enc, err := cbor.Marshal(rawKey)
	if err != nil {
		return true, err
	}
	return mayContainEncoded(c, enc)
}

func mayContainEncoded(c trie.ColumnStats, enc []byte) (bool, error) {
	if c.Min != nil && c.Max != nil {
		if compareEncoded(enc, c.Min) < 0 || compareEncoded(enc, c.Max) > 0 {
			return false, nil
		}
	}
	if c.Bloom != nil {
		ok, err := bloomfilter.MaybeContains(c.Bloom, enc)
		if err != nil {
			return true, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
