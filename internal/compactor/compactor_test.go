package compactor

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/require"
	"github.com/veraison/go-cose"
	"github.com/xtdb-go/bitemporal/internal/bufferpool"
	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/iid"
	"github.com/xtdb-go/bitemporal/internal/objectstore"
	"github.com/xtdb-go/bitemporal/internal/segment"
	"github.com/xtdb-go/bitemporal/internal/trie"
)

func init() {
	logger.New("NOOP")
}

func idOf(lead byte) iid.IID {
	var id iid.IID
	id[0] = lead
	return id
}

func newStore(t *testing.T) *segment.Store {
	t.Helper()
	fs := objectstore.NewLocalFS(t.TempDir())
	pool := bufferpool.New(logger.Sugar.WithServiceName("compactor_test"), fs, 1<<20)
	return segment.NewStore("docs", pool, fs)
}

// fakeCatalog is a Catalog over a fixed universe of candidate descriptors,
// reporting only the ones still actually published in store — i.e. it
// tracks retirement the way a real listing-backed catalog would, without
// needing a hook into Compact/Retire.
type fakeCatalog struct {
	store      *segment.Store
	candidates []segment.Descriptor
}

func (c *fakeCatalog) Descriptors(table string) []segment.Descriptor {
	var out []segment.Descriptor
	for _, d := range c.candidates {
		_, pin, err := c.store.Open(context.Background(), d)
		if err != nil {
			continue
		}
		pin.Release()
		out = append(out, d)
	}
	return out
}

func publishSegment(t *testing.T, store *segment.Store, d segment.Descriptor, rows []events.Event) {
	t.Helper()
	meta, pages, err := segment.Build(rows, 1, nil)
	require.NoError(t, err)
	require.NoError(t, store.Publish(context.Background(), d, meta, pages))
}

func TestSelect_GroupsFourConsecutiveByLevel(t *testing.T) {
	var descs []segment.Descriptor
	for i := uint64(0); i < 9; i++ {
		descs = append(descs, segment.Descriptor{Level: 0, FirstRow: i, NextRow: i + 1})
	}

	groups := Select("docs", descs)

	require.Len(t, groups, 2, "9 L0 segments make two groups of four, with one left over")
	require.Equal(t, uint8(1), groups[0].Output.Level)
	require.Equal(t, uint64(0), groups[0].Output.FirstRow)
	require.Equal(t, uint64(4), groups[0].Output.NextRow)
	require.Equal(t, uint64(4), groups[1].Output.FirstRow)
	require.Equal(t, uint64(8), groups[1].Output.NextRow)
}

func TestSelect_NoGroupBelowFanIn(t *testing.T) {
	descs := []segment.Descriptor{
		{Level: 0, FirstRow: 0, NextRow: 1},
		{Level: 0, FirstRow: 1, NextRow: 2},
	}
	require.Empty(t, Select("docs", descs))
}

func TestCompact_MergesRowsAcrossFourSegments(t *testing.T) {
	store := newStore(t)
	var descs []segment.Descriptor
	for i := uint64(0); i < 4; i++ {
		d := segment.Descriptor{Level: 0, FirstRow: i, NextRow: i + 1}
		publishSegment(t, store, d, []events.Event{
			{IID: idOf(byte(0x10 * (i + 1))), SystemFrom: 100, Op: events.OpPut,
				Doc: map[string]any{"n": i}, ValidFrom: 0, ValidTo: events.MaxTime},
		})
		descs = append(descs, d)
	}

	groups := Select("docs", descs)
	require.Len(t, groups, 1)

	require.NoError(t, Compact(context.Background(), store, groups[0]))

	meta, metaPin, err := store.Open(context.Background(), groups[0].Output)
	require.NoError(t, err)
	defer metaPin.Release()

	var leaves []*trie.Leaf
	trie.WalkLeaves(meta.Root, func(l *trie.Leaf) { leaves = append(leaves, l) })
	var total uint32
	for _, l := range leaves {
		total += l.RowCount
	}
	require.EqualValues(t, 4, total, "every input row survives the merge")
}

func TestCompact_RecencyMarksSupersededPut(t *testing.T) {
	store := newStore(t)
	id := idOf(0x20)

	var descs []segment.Descriptor
	rows := [][]events.Event{
		{{IID: id, SystemFrom: 200, Op: events.OpPut, Doc: map[string]any{"v": "new"}, ValidFrom: 0, ValidTo: events.MaxTime}},
		{{IID: id, SystemFrom: 100, Op: events.OpPut, Doc: map[string]any{"v": "old"}, ValidFrom: 0, ValidTo: events.MaxTime}},
		{{IID: idOf(0x30), SystemFrom: 1, Op: events.OpPut, Doc: map[string]any{"v": "x"}, ValidFrom: 0, ValidTo: events.MaxTime}},
		{{IID: idOf(0x40), SystemFrom: 1, Op: events.OpPut, Doc: map[string]any{"v": "y"}, ValidFrom: 0, ValidTo: events.MaxTime}},
	}
	for i, r := range rows {
		d := segment.Descriptor{Level: 0, FirstRow: uint64(i), NextRow: uint64(i + 1)}
		publishSegment(t, store, d, r)
		descs = append(descs, d)
	}

	groups := Select("docs", descs)
	require.Len(t, groups, 1)
	require.NoError(t, Compact(context.Background(), store, groups[0]))

	meta, metaPin, err := store.Open(context.Background(), groups[0].Output)
	require.NoError(t, err)
	defer metaPin.Release()

	pages, dataPin, err := store.OpenPages(context.Background(), groups[0].Output)
	require.NoError(t, err)
	defer dataPin.Release()

	var leaves []*trie.Leaf
	trie.WalkLeaves(meta.Root, func(l *trie.Leaf) { leaves = append(leaves, l) })

	found := map[string]int64{}
	for _, l := range leaves {
		page := pages[l.DataPageIdx]
		for i := 0; i < page.RowCount(); i++ {
			if page.IID[i] == id {
				found[page.Doc[i]["v"].(string)] = page.Recency[i]
			}
		}
	}
	require.Equal(t, int64(200), found["old"], "the superseded put's recency is the system_from of the row that overrides it")
	require.Equal(t, trie.MaxRecency, found["new"], "the newest put for this iid is never superseded")
}

func TestCompactAll_DrainsMultipleLevels(t *testing.T) {
	store := newStore(t)
	catalog := &fakeCatalog{store: store}
	for i := uint64(0); i < 8; i++ {
		d := segment.Descriptor{Level: 0, FirstRow: i, NextRow: i + 1}
		publishSegment(t, store, d, []events.Event{
			{IID: idOf(byte(i + 1)), SystemFrom: 1, Op: events.OpPut, Doc: map[string]any{"n": i}, ValidFrom: 0, ValidTo: events.MaxTime},
		})
		catalog.candidates = append(catalog.candidates, d)
	}
	// The two L1 outputs this run will produce, so the fake catalog (which
	// only reports descriptors it can confirm are actually published) picks
	// them up once Compact publishes them.
	catalog.candidates = append(catalog.candidates,
		segment.Descriptor{Level: 1, FirstRow: 0, NextRow: 4},
		segment.Descriptor{Level: 1, FirstRow: 4, NextRow: 8},
	)

	n, err := CompactAll(context.Background(), store, catalog, "docs")
	require.NoError(t, err)
	require.Equal(t, 2, n, "8 L0 segments compact in two FanIn=4 jobs, producing two L1 outputs; 2 < FanIn so no further L2 compaction runs")

	require.Empty(t, Select("docs", catalog.Descriptors("docs")), "fully drained: no group of four remains at any level")
}

func TestCompact_SealsOutputWhenSealerGiven(t *testing.T) {
	store := newStore(t)
	var descs []segment.Descriptor
	for i := uint64(0); i < 4; i++ {
		d := segment.Descriptor{Level: 0, FirstRow: i, NextRow: i + 1}
		publishSegment(t, store, d, []events.Event{
			{IID: idOf(byte(0x10 * (i + 1))), SystemFrom: 1, Op: events.OpPut,
				Doc: map[string]any{"n": i}, ValidFrom: 0, ValidTo: events.MaxTime},
		})
		descs = append(descs, d)
	}
	groups := Select("docs", descs)
	require.Len(t, groups, 1)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	sealer, err := NewSealer(cose.AlgorithmES256, key)
	require.NoError(t, err)

	require.NoError(t, Compact(context.Background(), store, groups[0], WithSealer(sealer)))

	meta, metaPin, err := store.Open(context.Background(), groups[0].Output)
	require.NoError(t, err)
	defer metaPin.Release()

	metaBytes, err := segment.EncodeMeta(meta)
	require.NoError(t, err)

	sealPath := segment.SealPath("docs", groups[0].Output.Level, groups[0].Output.FirstRow, groups[0].Output.NextRow)
	raw, ok, err := store.ReadSeal(context.Background(), sealPath)
	require.NoError(t, err)
	require.True(t, ok)

	claims, err := VerifySeal(raw, cose.AlgorithmES256, key.Public())
	require.NoError(t, err)
	require.Equal(t, "docs", claims.Table)
	require.Equal(t, groups[0].Output.Level, claims.Level)
	require.Equal(t, metaBytes, claims.MetaDigest)
}

func TestCompactAll_NoGroupsIsANoop(t *testing.T) {
	store := newStore(t)
	catalog := &fakeCatalog{store: store}
	n, err := CompactAll(context.Background(), store, catalog, "docs")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
