// Package eventrow implements the per-source row cursor and merge-ordering
// comparator the merge-scan (§4.E/§4.F) drives across every live segment
// page and the live index simultaneously.
package eventrow

import (
	"sort"

	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/iid"
)

// Source is anything eventrow can position and step through: a segment
// page's columns or the live index's sorted row buffer, already ordered
// (iid asc, system_from desc) per §3's segment invariant.
type Source interface {
	RowCount() int
	IIDAt(i int) iid.IID
	Event(i int) events.Event
}

// Pointer is a cursor into one Source, binary-search positioned at
// construction to the first row on or after a trie path, mirroring
// xtdb.trie.EventRowPointer: each merge task starts every contributing
// source's pointer at the task's path rather than scanning from row 0.
type Pointer struct {
	src Source
	idx int
}

// New constructs a Pointer on src, positioned via binary search at the
// first row whose iid does not sort strictly before path.
func New(src Source, path iid.Path) *Pointer {
	n := src.RowCount()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if iid.CompareToPath(src.IIDAt(mid), path) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return &Pointer{src: src, idx: lo}
}

// Index returns the current row index.
func (p *Pointer) Index() int { return p.idx }

// Advance moves the pointer to the next row.
func (p *Pointer) Advance() { p.idx++ }

// IID returns the iid at the current row.
func (p *Pointer) IID() iid.IID { return p.src.IIDAt(p.idx) }

// SystemFrom returns the system_from at the current row.
func (p *Pointer) SystemFrom() int64 { return p.Event().SystemFrom }

// Event reconstructs the full event at the current row.
func (p *Pointer) Event() events.Event { return p.src.Event(p.idx) }

// Valid reports whether the pointer still has rows remaining whose iid has
// not sorted past path, i.e. whether it still belongs to the current merge
// task (§4.F: a pointer exhausted or past its task's path is dropped from
// the merge queue).
func (p *Pointer) Valid(path iid.Path) bool {
	return p.idx < p.src.RowCount() && iid.CompareToPath(p.IID(), path) <= 0
}

// Less orders two pointers (iid asc, system_from desc) — the merge order
// every contributing source must already satisfy and the output stream
// preserves (§3, §4.E).
func Less(a, b *Pointer) bool {
	cmp := a.IID().Compare(b.IID())
	if cmp != 0 {
		return cmp < 0
	}
	return a.SystemFrom() > b.SystemFrom()
}

// Queue is a priority queue of Pointers ordered by Less, kept as a sorted
// slice, used to drive the
// fan-in merge across every contributing source for one merge task (§4.F).
type Queue struct {
	items []*Pointer
	path  iid.Path
}

// NewQueue builds a Queue from the given pointers, dropping any already
// invalid for path.
func NewQueue(path iid.Path, ptrs []*Pointer) *Queue {
	q := &Queue{path: path}
	for _, p := range ptrs {
		if p.Valid(path) {
			q.items = append(q.items, p)
		}
	}
	sort.Sort(byLess(q.items))
	return q
}

// Len reports the number of live pointers remaining.
func (q *Queue) Len() int { return len(q.items) }

// Next pops the lowest-ordered pointer's current event, advances it, and
// re-inserts it into the queue if it's still valid for the task's path.
func (q *Queue) Next() (events.Event, bool) {
	if len(q.items) == 0 {
		return events.Event{}, false
	}
	top := q.items[0]
	ev := top.Event()

	top.Advance()
	q.items = q.items[1:]
	if top.Valid(q.path) {
		q.insert(top)
	}
	return ev, true
}

func (q *Queue) insert(p *Pointer) {
	i := sort.Search(len(q.items), func(i int) bool { return Less(p, q.items[i]) })
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = p
}

type byLess []*Pointer

func (b byLess) Len() int           { return len(b) }
func (b byLess) Less(i, j int) bool { return Less(b[i], b[j]) }
func (b byLess) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
