// Package polygon implements the bitemporal polygon engine (§4.D):
// reconstructing per-put (valid_from, valid_to, system_from, system_to)
// rectangles from an (iid asc, system_from desc) ordered event stream, via a
// piecewise-constant "ceiling" over the valid-time axis.
package polygon

import (
	"sort"

	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/iid"
)

// Slice is one polygon rectangle (§3 "Polygon"): (valid_from, valid_to,
// system_from, system_to). system_to is events.MaxTime ("+inf") for a put
// never yet superseded.
type Slice struct {
	ValidFrom  int64
	ValidTo    int64
	SystemFrom int64
	SystemTo   int64
}

// ceilSeg is one piece of the ceiling's piecewise-constant function: on
// [From, To) valid-time, the system_from of the nearest later put/delete
// already observed (i.e. the system_to any earlier put on that slice gets).
type ceilSeg struct {
	From, To   int64
	SystemFrom int64
}

// Engine holds per-entity mutable state, owned exclusively by one
// merge-task cursor (§9 "Shared ceiling state"): no cross-task sharing is
// needed because the merge planner isolates tasks by trie path.
type Engine struct {
	ceiling    []ceilSeg // kept sorted, disjoint, by From
	currentIID iid.IID
	haveIID    bool
	skipIID    iid.IID
	skipping   bool
}

// New constructs an empty engine.
func New() *Engine {
	return &Engine{}
}

// Feed processes one event, which must arrive in (iid asc, system_from
// desc) order, and returns the polygon slices to emit for it. sysFromHi is
// the query's commit watermark: an event at or after it has not committed
// as of this query's basis, so it is invisible end to end — it neither
// emits a slice, nor raises the ceiling, nor (if an erase) triggers the
// rest-of-entity skip. An in-range delete or erase never emits a slice
// itself, but still affects the ceiling/skip state an earlier (smaller
// system_from, so processed next) event will see.
func (e *Engine) Feed(ev events.Event, sysFromHi int64) []Slice {
	if !e.haveIID || ev.IID != e.currentIID {
		e.ceiling = nil
		e.currentIID = ev.IID
		e.haveIID = true
		e.skipping = false
	}

	if e.skipping && ev.IID == e.skipIID {
		return nil
	}

	if ev.SystemFrom >= sysFromHi {
		return nil
	}

	if ev.Op == events.OpErase {
		e.ceiling = nil
		e.skipIID = ev.IID
		e.skipping = true
		return nil
	}

	var out []Slice
	if ev.Op == events.OpPut {
		out = e.polygon(ev.ValidFrom, ev.ValidTo, ev.SystemFrom)
	}

	e.raiseCeiling(ev.ValidFrom, ev.ValidTo, ev.SystemFrom)

	return out
}

// polygon partitions [vf, vt) by the ceiling's current coverage: a
// sub-range already covered by a ceiling segment is superseded at that
// segment's SystemFrom; an uncovered sub-range (a gap) is not yet
// superseded (system_to = +inf), since no later event has touched it.
func (e *Engine) polygon(vf, vt, systemFrom int64) []Slice {
	var out []Slice
	cursor := vf
	for _, s := range e.ceiling {
		if s.To <= cursor {
			continue
		}
		if s.From >= vt {
			break
		}
		if s.From > cursor {
			out = append(out, Slice{ValidFrom: cursor, ValidTo: s.From, SystemFrom: systemFrom, SystemTo: events.MaxTime})
		}
		lo, hi := max64(s.From, cursor), min64(s.To, vt)
		out = append(out, Slice{ValidFrom: lo, ValidTo: hi, SystemFrom: systemFrom, SystemTo: s.SystemFrom})
		cursor = hi
		if cursor >= vt {
			break
		}
	}
	if cursor < vt {
		out = append(out, Slice{ValidFrom: cursor, ValidTo: vt, SystemFrom: systemFrom, SystemTo: events.MaxTime})
	}
	return out
}

// raiseCeiling sets the whole of [vf, vt) to systemFrom, clipping or
// splitting any existing segment that overlaps it (§4.D "Apply the log: set
// ceiling on [valid_from, valid_to] to system_from, covering previous
// higher values"). Events arrive in system_from-descending order, so this
// event is chronologically *earlier* than anything already on the ceiling:
// it is the nearest superseder for every still-earlier event the engine
// will see next on this range, and so must overwrite whatever boundary is
// there now, not just fill the gaps around it.
func (e *Engine) raiseCeiling(vf, vt, systemFrom int64) {
	kept := e.ceiling[:0:0]
	for _, s := range e.ceiling {
		if s.To <= vf || s.From >= vt {
			kept = append(kept, s)
			continue
		}
		if s.From < vf {
			kept = append(kept, ceilSeg{From: s.From, To: vf, SystemFrom: s.SystemFrom})
		}
		if s.To > vt {
			kept = append(kept, ceilSeg{From: vt, To: s.To, SystemFrom: s.SystemFrom})
		}
	}
	kept = append(kept, ceilSeg{From: vf, To: vt, SystemFrom: systemFrom})
	e.ceiling = mergeAdjacent(kept)
}

func mergeAdjacent(segs []ceilSeg) []ceilSeg {
	if len(segs) == 0 {
		return segs
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].From < segs[j].From })
	out := segs[:1:1]
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if last.To == s.From && last.SystemFrom == s.SystemFrom {
			last.To = s.To
			continue
		}
		out = append(out, s)
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
