// Package liveindex implements the in-memory hash trie of uncommitted events
// (§4.C): the indexer appends events under a write latch; readers take a
// point-in-time snapshot under that same exclusive latch (only Len takes the
// shared read latch) and then walk the snapshot lock-free.
//
// Rather than materializing an explicit 4-ary trie of Go pointers for an
// unflushed, frequently-mutated chunk, the index keeps one flat ordered set
// (google/btree, as the teacher's pack uses for in-memory ordered indices —
// see polarsignals-frostdb's TableBlock.index) sorted the same way a segment
// is: (iid asc, system_from desc). A "trie leaf at path" is simply the
// contiguous sub-range of that order whose iid has path as a prefix — the
// ordering already encodes nibble-prefix grouping, so no tree of branch
// nodes needs to be built and kept in sync on every append.
package liveindex

import (
	"sync"

	"github.com/google/btree"
	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/iid"
	"github.com/xtdb-go/bitemporal/internal/segment"
)

const defaultDegree = 32

// entry adapts an events.Event to btree.Item, ordered (iid asc, system_from
// desc) to match the on-disk segment invariant (§3).
type entry struct {
	ev  events.Event
	seq uint64 // append sequence, breaks ties when iid and system_from are both equal (shouldn't happen per §3, but keeps Less a strict weak order)
}

func (a entry) Less(than btree.Item) bool {
	b := than.(entry)
	if cmp := a.ev.IID.Compare(b.ev.IID); cmp != 0 {
		return cmp < 0
	}
	if a.ev.SystemFrom != b.ev.SystemFrom {
		return a.ev.SystemFrom > b.ev.SystemFrom
	}
	return a.seq < b.seq
}

// Index is the live index for one table's current chunk.
type Index struct {
	mu   sync.RWMutex
	tree *btree.BTree
	n    uint64
	next uint64
}

// New constructs an empty live index.
func New() *Index {
	return &Index{tree: btree.New(defaultDegree)}
}

// Append adds one event under the write latch (§5: "the indexer holds a
// write latch while appending events").
func (idx *Index) Append(ev events.Event) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree.ReplaceOrInsert(entry{ev: ev, seq: idx.next})
	idx.next++
	idx.n++
}

// Len reports the number of unflushed events currently held.
func (idx *Index) Len() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.n
}

// Snapshot takes the exclusive latch just long enough to clone the
// underlying tree (a lazy, copy-on-write operation per google/btree's
// Clone; snapshots are not taken concurrently with each other) and returns an immutable handle a cursor can walk without holding any latch
// across I/O (§5).
func (idx *Index) Snapshot() *Snapshot {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return &Snapshot{tree: idx.tree.Clone(), n: idx.n}
}

// Snapshot is a point-in-time, immutable view of the live index, indistin-
// guishable to the merge planner/event-row pointer from an on-disk trie
// leaf apart from its source tag (§4.C).
type Snapshot struct {
	tree *btree.BTree
	n    uint64
}

// RowCount reports the total number of events in the snapshot.
func (s *Snapshot) RowCount() uint64 { return s.n }

// Rows materializes every event on path, in (iid asc, system_from desc)
// order, as a segment.Page — the same shape a merge task's on-disk leaves
// carry, so eventrow.Pointer and the merge planner treat it identically.
func (s *Snapshot) Rows(path iid.Path) *segment.Page {
	page := &segment.Page{}
	probe := entry{ev: events.Event{IID: path.Floor(), SystemFrom: events.MaxTime}}
	s.tree.AscendGreaterOrEqual(probe, func(i btree.Item) bool {
		e := i.(entry)
		if iid.CompareToPath(e.ev.IID, path) != 0 {
			return false
		}
		page.Append(e.ev, nil)
		return true
	})
	return page
}

// All materializes every event in the snapshot, in (iid asc, system_from
// desc) order — the shape segment.Build needs for a chunk flush (§4.C
// "a chunk flush materializes [the live index] as an L0 segment").
func (s *Snapshot) All() []events.Event {
	out := make([]events.Event, 0, s.n)
	s.tree.Ascend(func(i btree.Item) bool {
		out = append(out, i.(entry).ev)
		return true
	})
	return out
}

// Flush builds an L0 segment from the snapshot's events (§3 "Chunk": "a
// chunk flush produces one L0 segment"). It does not mutate the live
// index; the caller (the single indexer, per §5) is responsible for
// atomically swapping in a fresh Index once the new segment is published.
func Flush(s *Snapshot, pageSize int) (*segment.Meta, []*segment.Page, error) {
	return segment.Build(s.All(), pageSize, nil)
}
