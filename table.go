package bitemporal

import (
	"context"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/xtdb-go/bitemporal/internal/compactor"
	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/liveindex"
	"github.com/xtdb-go/bitemporal/internal/segment"
)

// Table holds one table's mutable state: the live index accepting new
// events, its current committed segment set, and the store collaborator a
// cursor or the compactor reads through (§3 "Ownership & lifecycle").
//
// A Table's own mutex serializes its indexer and compactor work, which is
// how this implements §5's "at most one indexer and at most one compactor"
// per table without a separate scheduler: appendAndMaybeFlush and
// runCompaction both hold it for their full duration.
type Table struct {
	name string
	cfg  Config
	log  logger.Logger

	store *segment.Store

	mu          sync.Mutex
	live        *liveindex.Index
	descriptors []segment.Descriptor
	nextRow     uint64
}

func newTable(name string, cfg Config, log logger.Logger, store *segment.Store) *Table {
	return &Table{
		name:  name,
		cfg:   cfg,
		log:   log,
		store: store,
		live:  liveindex.New(),
	}
}

// Descriptors implements compactor.Catalog over this table's own in-memory
// bookkeeping. The core has no durable segment-listing collaborator (no
// pack file provides one; see DESIGN.md), so a single-process Node tracks
// its own current set directly rather than re-deriving it from a storage
// listing on every call.
func (t *Table) Descriptors(table string) []segment.Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]segment.Descriptor, len(t.descriptors))
	copy(out, t.descriptors)
	return out
}

// currentSet returns every published segment of the table (each flushed or
// compacted segment not yet retired by a compaction) plus a live-index
// snapshot, the full watermark a query pins (§3).
func (t *Table) currentSet() ([]segment.Descriptor, *liveindex.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ds := make([]segment.Descriptor, len(t.descriptors))
	copy(ds, t.descriptors)
	return ds, t.live.Snapshot()
}

// append adds evs to the live index and, once it has accumulated
// cfg.ChunkRows events, flushes it to a new L0 segment (§3 "Chunk": "a
// chunk flush produces one L0 segment", "a flush transfers ownership into
// a new L0 segment atomically: the live index is reset").
func (t *Table) append(ctx context.Context, evs []events.Event) error {
	t.mu.Lock()
	for _, ev := range evs {
		t.live.Append(ev)
	}
	shouldFlush := t.live.Len() >= t.cfg.ChunkRows
	t.mu.Unlock()

	if shouldFlush {
		return t.flush(ctx)
	}
	return nil
}

// flush materializes the live index as a new L0 segment and atomically
// swaps in a fresh, empty index (§4.C "Flush").
func (t *Table) flush(ctx context.Context) error {
	t.mu.Lock()
	if t.live.Len() == 0 {
		t.mu.Unlock()
		return nil
	}
	snap := t.live.Snapshot()
	d := segment.Descriptor{Level: 0, FirstRow: t.nextRow, NextRow: t.nextRow + snap.RowCount()}
	t.mu.Unlock()

	meta, pages, err := liveindex.Flush(snap, t.cfg.PageSize)
	if err != nil {
		return err
	}
	if err := t.store.Publish(ctx, d, meta, pages); err != nil {
		return err
	}

	t.mu.Lock()
	t.live = liveindex.New()
	t.descriptors = append(t.descriptors, d)
	t.nextRow = d.NextRow
	t.mu.Unlock()

	t.log.Infof("flushed chunk rows=%d -> L0 [%d,%d)", snap.RowCount(), d.FirstRow, d.NextRow)
	return nil
}

// Compact drives this table's segment tree to a fixed point (§4.H
// "compactAll repeatedly selects-and-runs until no group of four remains
// at any level"), folding newly published outputs into the table's own
// descriptor bookkeeping and dropping retired inputs from it.
func (t *Table) Compact(ctx context.Context, opts ...compactor.Option) (int, error) {
	n := 0
	for {
		current := t.Descriptors(t.name)
		groups := compactor.Select(t.name, current)
		if len(groups) == 0 {
			return n, nil
		}
		g := groups[0]
		if err := compactor.Compact(ctx, t.store, g, opts...); err != nil {
			return n, err
		}

		t.mu.Lock()
		var kept []segment.Descriptor
		retired := make(map[segment.Descriptor]bool, len(g.Inputs))
		for _, d := range g.Inputs {
			retired[d] = true
		}
		for _, d := range t.descriptors {
			if !retired[d] {
				kept = append(kept, d)
			}
		}
		t.descriptors = append(kept, g.Output)
		t.mu.Unlock()

		t.log.Infof("compacted level=%d [%d,%d) from %d inputs", g.Output.Level, g.Output.FirstRow, g.Output.NextRow, len(g.Inputs))
		n++
	}
}
