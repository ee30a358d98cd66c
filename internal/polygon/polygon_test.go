package polygon

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/iid"
)

func day(n int64) int64 { return n * 86_400_000_000 }

func put(id iid.IID, sysFrom, vf, vt int64) events.Event {
	return events.Event{IID: id, SystemFrom: sysFrom, Op: events.OpPut, ValidFrom: vf, ValidTo: vt}
}

func del(id iid.IID, sysFrom, vf, vt int64) events.Event {
	return events.Event{IID: id, SystemFrom: sysFrom, Op: events.OpDelete, ValidFrom: vf, ValidTo: vt}
}

func erase(id iid.IID, sysFrom int64) events.Event {
	return events.Event{IID: id, SystemFrom: sysFrom, Op: events.OpErase}
}

// A single put with nothing superseding it stays open-ended.
func TestFeed_SinglePut(t *testing.T) {
	e := New()
	id := iid.OfInt(1)
	out := e.Feed(put(id, day(2020), day(2020), events.MaxTime), events.MaxTime)
	require.Equal(t, []Slice{{ValidFrom: day(2020), ValidTo: events.MaxTime, SystemFrom: day(2020), SystemTo: events.MaxTime}}, out)
}

// A second put, fully overlapping the first and processed earlier (smaller
// system_from, since the stream is system_from-descending), is superseded
// across the whole overlap.
func TestFeed_FullOverlap_Supersedes(t *testing.T) {
	e := New()
	id := iid.OfInt(1)

	out1 := e.Feed(put(id, day(2022), day(2020), events.MaxTime), events.MaxTime)
	require.Equal(t, []Slice{{ValidFrom: day(2020), ValidTo: events.MaxTime, SystemFrom: day(2022), SystemTo: events.MaxTime}}, out1)

	out2 := e.Feed(put(id, day(2020), day(2020), events.MaxTime), events.MaxTime)
	require.Equal(t, []Slice{{ValidFrom: day(2020), ValidTo: events.MaxTime, SystemFrom: day(2020), SystemTo: day(2022)}}, out2)
}

// The S4 "Delete overlaps" shape with a put in the delete's place: a put for
// [2020, +inf), then a later-valid-time put for [2022, 2023) that is chronologically later too (bigger system_from,
// so processed first), carves a hole: the earlier put's polygon splits into
// two slices either side of the hole, each superseded at the later put's
// system_from where they abut it.
func TestFeed_LaterPutCarvesHole(t *testing.T) {
	e := New()
	id := iid.OfInt(1)

	out1 := e.Feed(put(id, day(2023), day(2022), day(2023)), events.MaxTime)
	require.Equal(t, []Slice{{ValidFrom: day(2022), ValidTo: day(2023), SystemFrom: day(2023), SystemTo: events.MaxTime}}, out1)

	out2 := e.Feed(put(id, day(2020), day(2020), events.MaxTime), events.MaxTime)
	require.Equal(t, []Slice{
		{ValidFrom: day(2020), ValidTo: day(2022), SystemFrom: day(2020), SystemTo: events.MaxTime},
		{ValidFrom: day(2022), ValidTo: day(2023), SystemFrom: day(2020), SystemTo: day(2023)},
		{ValidFrom: day(2023), ValidTo: events.MaxTime, SystemFrom: day(2020), SystemTo: events.MaxTime},
	}, out2)
}

// A delete never emits a slice itself, but still raises the ceiling for the
// put that follows it (smaller system_from, processed next).
func TestFeed_Delete_NoEmit_ButRaisesCeiling(t *testing.T) {
	e := New()
	id := iid.OfInt(1)

	out1 := e.Feed(del(id, day(2023), day(2020), events.MaxTime), events.MaxTime)
	require.Empty(t, out1)

	out2 := e.Feed(put(id, day(2020), day(2020), events.MaxTime), events.MaxTime)
	require.Equal(t, []Slice{{ValidFrom: day(2020), ValidTo: events.MaxTime, SystemFrom: day(2020), SystemTo: day(2023)}}, out2)
}

// An erase wipes the ceiling and every subsequent event for the same iid
// (at any system_from <= the erase's) is dropped entirely: no slices, no
// ceiling effect (§8 property 4, erase semantics).
func TestFeed_Erase_SkipsRestOfEntity(t *testing.T) {
	e := New()
	id := iid.OfInt(1)

	out1 := e.Feed(erase(id, day(2024)), events.MaxTime)
	require.Empty(t, out1)

	out2 := e.Feed(put(id, day(2020), day(2020), events.MaxTime), events.MaxTime)
	require.Empty(t, out2)

	out3 := e.Feed(del(id, day(2019), day(2020), events.MaxTime), events.MaxTime)
	require.Empty(t, out3)
}

// A system_from at or after the query's commit-watermark hasn't happened
// yet from that query's point of view: it is skipped entirely, with no
// effect on the ceiling and no erase-skip trigger, so an earlier put the
// window does admit is unaffected by it.
func TestFeed_AfterWatermark_NoEffectAtAll(t *testing.T) {
	e := New()
	id := iid.OfInt(1)

	out1 := e.Feed(put(id, day(2025), day(2020), events.MaxTime), day(2024))
	require.Empty(t, out1)

	out2 := e.Feed(put(id, day(2020), day(2020), events.MaxTime), day(2024))
	require.Equal(t, []Slice{{ValidFrom: day(2020), ValidTo: events.MaxTime, SystemFrom: day(2020), SystemTo: events.MaxTime}}, out2)
}

// An erase at or after the watermark has not happened yet either: an
// earlier put the window admits still surfaces normally.
func TestFeed_EraseAfterWatermark_DoesNotSkip(t *testing.T) {
	e := New()
	id := iid.OfInt(1)

	out1 := e.Feed(erase(id, day(2025)), day(2024))
	require.Empty(t, out1)

	out2 := e.Feed(put(id, day(2020), day(2020), events.MaxTime), day(2024))
	require.Equal(t, []Slice{{ValidFrom: day(2020), ValidTo: events.MaxTime, SystemFrom: day(2020), SystemTo: events.MaxTime}}, out2)
}

// Moving to a new iid resets all state, including any pending erase-skip.
func TestFeed_IIDChange_ResetsState(t *testing.T) {
	e := New()
	id1, id2 := iid.OfInt(1), iid.OfInt(2)

	e.Feed(erase(id1, day(2024)), events.MaxTime)
	out := e.Feed(put(id2, day(2020), day(2020), events.MaxTime), events.MaxTime)
	require.Equal(t, []Slice{{ValidFrom: day(2020), ValidTo: events.MaxTime, SystemFrom: day(2020), SystemTo: events.MaxTime}}, out)
}

// Three puts on the exact same valid-time range, fed in system_from-
// descending order: each is superseded only by its immediate successor, not
// by whichever put happened to arrive first (§8 property 3, no two rows
// live at the same system instant).
func TestFeed_ThreeOverlappingPuts_EachSupersededByNearestOnly(t *testing.T) {
	e := New()
	id := iid.OfInt(1)

	out3 := e.Feed(put(id, day(30), day(0), day(100)), events.MaxTime)
	require.Equal(t, []Slice{{ValidFrom: day(0), ValidTo: day(100), SystemFrom: day(30), SystemTo: events.MaxTime}}, out3)

	out2 := e.Feed(put(id, day(20), day(0), day(100)), events.MaxTime)
	require.Equal(t, []Slice{{ValidFrom: day(0), ValidTo: day(100), SystemFrom: day(20), SystemTo: day(30)}}, out2)

	out1 := e.Feed(put(id, day(10), day(0), day(100)), events.MaxTime)
	require.Equal(t, []Slice{{ValidFrom: day(0), ValidTo: day(100), SystemFrom: day(10), SystemTo: day(20)}}, out1,
		"v1's system_to must be v2 (the nearest superseder), not v3")
}

// Two disjoint later puts leave a middle gap open-ended while each bound
// touches its own superseding slice.
func TestFeed_TwoDisjointCeilingSegments(t *testing.T) {
	e := New()
	id := iid.OfInt(1)

	e.Feed(put(id, day(2023), day(2019), day(2020)), events.MaxTime)
	e.Feed(put(id, day(2024), day(2025), day(2026)), events.MaxTime)

	out := e.Feed(put(id, day(2010), day(2015), day(2030)), events.MaxTime)
	require.Equal(t, []Slice{
		{ValidFrom: day(2015), ValidTo: day(2019), SystemFrom: day(2010), SystemTo: events.MaxTime},
		{ValidFrom: day(2019), ValidTo: day(2020), SystemFrom: day(2010), SystemTo: day(2023)},
		{ValidFrom: day(2020), ValidTo: day(2025), SystemFrom: day(2010), SystemTo: events.MaxTime},
		{ValidFrom: day(2025), ValidTo: day(2026), SystemFrom: day(2010), SystemTo: day(2024)},
		{ValidFrom: day(2026), ValidTo: day(2030), SystemFrom: day(2010), SystemTo: events.MaxTime},
	}, out)
}
