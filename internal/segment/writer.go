package segment

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/xtdb-go/bitemporal/internal/bloomfilter"
	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/iid"
	"github.com/xtdb-go/bitemporal/internal/trie"
)

// DefaultPageSize is the default rows-per-leaf page size (§6).
const DefaultPageSize = 256

// Build partitions rows (already sorted by iid asc, system_from desc) into
// pages of at most pageSize rows, builds the iid trie over them, and
// computes per-page column stats and bloom filters (§4.B, §4.H "Output").
// recency, if non-nil, supplies the compactor's per-row `_recency` column
// (§4.H); flush output (L0) passes nil.
//
// When recency is supplied, Build splits the rows into a live set
// (recency == trie.MaxRecency) and a superseded set (recency <
// trie.MaxRecency) before building the trie, each getting its own iid trie
// over its own pages, and returns the two wired together under a single
// root KindBranchRecency node (§4.H). A later as-of-latest read of this
// segment (scan.Options.AsOfLatestOnly) can then skip the Superseded side
// entirely via trie.ResolveRecency, instead of walking every row. If one side is empty
// the result is just the other side's plain trie: there is nothing to
// prune, so the branch would add a hop for no benefit.
func Build(rows []events.Event, pageSize int, recency []int64) (*Meta, []*Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	keys := make([]iid.IID, len(rows))
	for i, r := range rows {
		keys[i] = r.IID
	}

	var pages []*Page

	if recency == nil {
		all := make([]int, len(rows))
		for i := range rows {
			all[i] = i
		}
		root, err := buildSubtrie(rows, keys, nil, all, pageSize, &pages)
		if err != nil {
			return nil, nil, err
		}
		return &Meta{Root: root}, pages, nil
	}

	var live, superseded []int
	for i, r := range recency {
		if r >= trie.MaxRecency {
			live = append(live, i)
		} else {
			superseded = append(superseded, i)
		}
	}

	liveRoot, err := buildSubtrie(rows, keys, recency, live, pageSize, &pages)
	if err != nil {
		return nil, nil, err
	}
	supersededRoot, err := buildSubtrie(rows, keys, recency, superseded, pageSize, &pages)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case liveRoot == nil:
		return &Meta{Root: supersededRoot}, pages, nil
	case supersededRoot == nil:
		return &Meta{Root: liveRoot}, pages, nil
	default:
		return &Meta{Root: &trie.Node{
			Kind:       trie.KindBranchRecency,
			Cut:        trie.MaxRecency,
			Live:       liveRoot,
			Superseded: supersededRoot,
		}}, pages, nil
	}
}

// buildSubtrie builds the iid trie over the rows at indices (a subset of
// 0..len(rows)-1, keys indexed the same way as rows), or returns a nil root
// for an empty subset.
func buildSubtrie(rows []events.Event, keys []iid.IID, recency []int64, indices []int, pageSize int, pages *[]*Page) (*trie.Node, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	return trie.Build(indices, keys, pageSize, func(path iid.Path, members []int) (*trie.Node, error) {
		return leafNode(path, members, rows, recency, pages)
	})
}

// leafNode builds one data page for members (guaranteed non-empty by
// trie.Build) and wraps it in a KindLeaf node.
func leafNode(path iid.Path, members []int, rows []events.Event, recency []int64, pages *[]*Page) (*trie.Node, error) {
	page := &Page{}
	for _, idx := range members {
		var rec *int64
		if recency != nil {
			rec = &recency[idx]
		}
		page.Append(rows[idx], rec)
	}
	pageIdx := uint32(len(*pages))
	*pages = append(*pages, page)

	cols, err := columnStats(page)
	if err != nil {
		return nil, err
	}

	return &trie.Node{
		Kind: trie.KindLeaf,
		Leaf: &trie.Leaf{
			DataPageIdx: pageIdx,
			TrieKey:     append(iid.Path{}, path...),
			Columns:     cols,
			RowCount:    uint32(page.RowCount()),
		},
	}, nil
}

// columnStats computes the fixed event-schema columns' stats plus one set of
// stats per distinct document column observed in page. iid and system_from
// additionally carry an iid-bloom (§4.B).
func columnStats(page *Page) ([]trie.ColumnStats, error) {
	n := page.RowCount()
	if n == 0 {
		return nil, nil
	}

	iidBloomRegion := make([]byte, bloomfilter.RegionBytes(uint64(n)))
	if err := bloomfilter.Init(iidBloomRegion, uint64(n)); err != nil {
		return nil, err
	}
	for _, id := range page.IID {
		if err := bloomfilter.Insert(iidBloomRegion, id.Bytes()); err != nil {
			return nil, err
		}
	}

	sysFromCol, err := buildColumn("xt$system_from", true, int64Values(page.SystemFrom), n)
	if err != nil {
		return nil, err
	}
	sysFromCol.IidBloom = iidBloomRegion

	iidCol, err := buildColumn("xt$iid", true, iidValues(page.IID), n)
	if err != nil {
		return nil, err
	}
	iidCol.IidBloom = iidBloomRegion

	cols := []trie.ColumnStats{iidCol, sysFromCol}

	docCols := make(map[string][]any)
	var order []string
	for _, doc := range page.Doc {
		for k, v := range doc {
			if _, ok := docCols[k]; !ok {
				order = append(order, k)
			}
			docCols[k] = append(docCols[k], v)
		}
	}
	for _, name := range order {
		c, err := buildColumn(Normalize(name), true, docCols[name], len(docCols[name]))
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}

	return cols, nil
}

func int64Values(vs []int64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func iidValues(vs []iid.IID) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v.Bytes()
	}
	return out
}

// buildColumn computes min/max (by cbor-encoded value ordering, see
// compareEncoded) and a value-equality bloom filter over values.
func buildColumn(name string, rootCol bool, values []any, count int) (trie.ColumnStats, error) {
	region := make([]byte, bloomfilter.RegionBytes(uint64(len(values))))
	if err := bloomfilter.Init(region, uint64(len(values))); err != nil {
		return trie.ColumnStats{}, err
	}

	var min, max []byte
	for _, v := range values {
		enc, err := cbor.Marshal(v)
		if err != nil {
			return trie.ColumnStats{}, fmt.Errorf("segment: encoding column %s value: %w", name, err)
		}
		if err := bloomfilter.Insert(region, enc); err != nil {
			return trie.ColumnStats{}, err
		}
		if min == nil || compareEncoded(enc, min) < 0 {
			min = enc
		}
		if max == nil || compareEncoded(enc, max) > 0 {
			max = enc
		}
	}

	return trie.ColumnStats{
		Name:    name,
		RootCol: rootCol,
		Count:   uint32(count),
		Min:     min,
		Max:     max,
		Bloom:   region,
	}, nil
}

// compareEncoded orders two cbor-encoded scalar values. It decodes both into
// `any` and compares by dynamic type; values of differing decoded type
// compare by their encoded byte form, which is a stable (if arbitrary)
// total order sufficient for min/max bookkeeping without needing the full
// type-unification the query evaluator owns.
func compareEncoded(a, b []byte) int {
	var av, bv any
	if cbor.Unmarshal(a, &av) != nil || cbor.Unmarshal(b, &bv) != nil {
		return compareBytes(a, b)
	}
	switch x := av.(type) {
	case int64:
		if y, ok := bv.(int64); ok {
			return compareInt64(x, y)
		}
	case uint64:
		if y, ok := bv.(uint64); ok {
			return compareUint64(x, y)
		}
	case float64:
		if y, ok := bv.(float64); ok {
			return compareFloat64(x, y)
		}
	case string:
		if y, ok := bv.(string); ok {
			return compareBytes([]byte(x), []byte(y))
		}
	}
	return compareBytes(a, b)
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
