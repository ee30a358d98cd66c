package segment

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/xtdb-go/bitemporal/internal/trie"
)

// Meta is the decoded contents of a segment's meta file (§3 "Segment", §4.B):
// the trie (each leaf pointing to a data page) and, via the trie leaves'
// ColumnStats, the per-page column statistics and bloom filters.
//
// Side-table records (column stats, bloom headers) are CBOR-encoded rather
// than hand-rolled binary, per SPEC_FULL's domain-stack note: the teacher's
// bloom bitset region itself stays raw bytes (bloomfilter.Init/Insert work
// directly on []byte), but everything structured around it rides CBOR.
type Meta struct {
	Level    uint8
	FirstRow uint64
	NextRow  uint64
	Root     *trie.Node
}

// EncodeMeta serializes m for storage.
func EncodeMeta(m *Meta) ([]byte, error) {
	return cbor.Marshal(m)
}

// DecodeMeta deserializes a meta file previously written by EncodeMeta.
func DecodeMeta(b []byte) (*Meta, error) {
	var m Meta
	if err := cbor.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// dataFile is the on-disk shape of a segment's data file: its pages, in
// data_page_idx order.
type dataFile struct {
	Pages []*Page
}

// EncodeData serializes pages for storage.
func EncodeData(pages []*Page) ([]byte, error) {
	return cbor.Marshal(&dataFile{Pages: pages})
}

// DecodeData deserializes a data file previously written by EncodeData.
func DecodeData(b []byte) ([]*Page, error) {
	var df dataFile
	if err := cbor.Unmarshal(b, &df); err != nil {
		return nil, err
	}
	return df.Pages, nil
}
