// Package scan implements the scan cursor (§4.G): it drives the merge
// planner, feeds each task's events through the event-row merge queue and
// the polygon engine, applies the query's temporal rectangles and
// row-level predicates, and projects surviving polygon slices into output
// rows carrying the four temporal columns.
package scan

import (
	"context"

	"github.com/xtdb-go/bitemporal/internal/bufferpool"
	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/eventrow"
	"github.com/xtdb-go/bitemporal/internal/liveindex"
	"github.com/xtdb-go/bitemporal/internal/mergeplan"
	"github.com/xtdb-go/bitemporal/internal/polygon"
	"github.com/xtdb-go/bitemporal/internal/segment"
	"github.com/xtdb-go/bitemporal/internal/temporal"
	"github.com/xtdb-go/bitemporal/internal/trie"
)

// temporal column names, keyFn-rendered per row (§4.G step 2, §6 key_fn).
const (
	colValidFrom  = "_valid_from"
	colValidTo    = "_valid_to"
	colSystemFrom = "_system_from"
	colSystemTo   = "_system_to"
)

// KeyFn renders a projected column name back to the caller's preferred
// surface form (§6 "key_fn"). A nil KeyFn is the identity function.
type KeyFn func(string) string

// Options configures one Cursor (§6 "open_query").
type Options struct {
	Predicate mergeplan.Predicate
	Bounds    temporal.Bounds
	RowFilter func(row map[string]any) bool // non-iid row predicates (§4.G step 5)
	KeyFn     KeyFn

	// AsOfLatestOnly lets the caller assert it only needs rows never
	// superseded, letting a compacted segment's branch-recency root prune
	// its Superseded side entirely (§4.H). Leaving it false is always
	// correct, just unable to take that shortcut.
	AsOfLatestOnly bool
}

// Cursor is a lazy, pull-based scan over one table's current watermark
// (current segment set + live-index snapshot), per §5 "one owning thread
// per cursor, which internally may pin multiple pages". Close must be
// called to release every pinned page; calling it again is a no-op.
type Cursor struct {
	ctx     context.Context
	store   *segment.Store
	pins    []*bufferpool.Pin
	roots   []*trie.Node
	live    *liveindex.Snapshot
	tasks   []mergeplan.Task
	taskIdx int
	opts    Options
	closed  bool

	// descriptors/rootDesc/pageCache defer each segment's data-file fetch
	// until a task actually references one of its leaves (§4.G step 1, §8
	// S6): rootDesc[i] names the descriptor c.roots[i] came from (a
	// branch-recency root contributes two resolved roots sharing one
	// descriptor), and pageCache holds each descriptor's pages once opened,
	// so a segment already fetched for an earlier task isn't reopened.
	descriptors []segment.Descriptor
	rootDesc    []int
	pageCache   [][]*segment.Page
	pageOpened  []bool
}

// Open builds a Cursor over the given descriptors (the table's current
// segment set, e.g. from segment.CurrentSet) and a live-index snapshot
// (the rest of the query's pinned watermark, §3 "Ownership & lifecycle").
// Only segment meta is fetched here; data pages are fetched lazily by Next
// on first reference, so a query mergeplan.Plan prunes entirely touches no
// data files at all.
func Open(ctx context.Context, store *segment.Store, descriptors []segment.Descriptor, live *liveindex.Snapshot, opts Options) (*Cursor, error) {
	c := &Cursor{
		ctx:         ctx,
		store:       store,
		live:        live,
		opts:        opts,
		descriptors: descriptors,
		pageCache:   make([][]*segment.Page, len(descriptors)),
		pageOpened:  make([]bool, len(descriptors)),
	}

	for i, d := range descriptors {
		meta, metaPin, err := store.Open(ctx, d)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.pins = append(c.pins, metaPin)

		// A compacted segment's root may be a branch-recency node (§4.H);
		// resolve it to the plain branch-iid/leaf shape the merge planner
		// walks, contributing one roots entry per resolved side.
		for _, root := range trie.ResolveRecency(meta.Root, !opts.AsOfLatestOnly) {
			c.roots = append(c.roots, root)
			c.rootDesc = append(c.rootDesc, i)
		}
	}

	var liveSrc mergeplan.LiveSource
	if live != nil {
		liveSrc = live
	}
	c.tasks = mergeplan.Plan(c.roots, liveSrc, opts.Predicate)
	return c, nil
}

// pagesFor returns descriptors[descIdx]'s data pages, fetching and pinning
// them on first reference and reusing the pin for every later task that
// touches the same segment.
func (c *Cursor) pagesFor(descIdx int) ([]*segment.Page, error) {
	if c.pageOpened[descIdx] {
		return c.pageCache[descIdx], nil
	}
	pages, dataPin, err := c.store.OpenPages(c.ctx, c.descriptors[descIdx])
	if err != nil {
		return nil, err
	}
	c.pins = append(c.pins, dataPin)
	c.pageCache[descIdx] = pages
	c.pageOpened[descIdx] = true
	return pages, nil
}

// Next runs the next merge task to completion and returns its output
// batch (§4.G step 5: "hand the batch to the caller"). ok is false once
// every task has been consumed.
func (c *Cursor) Next() (rows []map[string]any, ok bool, err error) {
	if c.closed || c.taskIdx >= len(c.tasks) {
		return nil, false, nil
	}
	task := c.tasks[c.taskIdx]
	c.taskIdx++

	var ptrs []*eventrow.Pointer
	for segIdx, leaf := range task.SegmentLeaves {
		if leaf == nil {
			continue
		}
		pages, err := c.pagesFor(c.rootDesc[segIdx])
		if err != nil {
			return nil, false, err
		}
		ptrs = append(ptrs, eventrow.New(pages[leaf.DataPageIdx], task.Path))
	}
	if task.Live != nil {
		ptrs = append(ptrs, eventrow.New(task.Live, task.Path))
	}

	queue := eventrow.NewQueue(task.Path, ptrs)
	engine := polygon.New()

	for {
		ev, more := queue.Next()
		if !more {
			break
		}
		if c.opts.Predicate.IIDEq != nil && ev.IID != *c.opts.Predicate.IIDEq {
			continue
		}

		// The engine must still walk every event committed up to the
		// query's upper system-time bound to reconstruct a correct ceiling
		// (an event the query's own window excludes on its lower bound can
		// still be the one superseding an earlier put's system_to), so the
		// engine only ever gates on Hi, its own commit-watermark cutoff; the
		// query's actual (possibly point-in-time) lower bound is enforced
		// below, against the emitted slice rather than the raw event.
		slices := engine.Feed(ev, c.opts.Bounds.SystemTime.Hi)
		for _, s := range slices {
			if s.ValidFrom >= s.ValidTo || s.SystemFrom >= s.SystemTo {
				continue // degenerate after ceiling reconstruction
			}
			if !c.opts.Bounds.ValidTime.Overlaps(s.ValidFrom, s.ValidTo) {
				continue
			}
			if !c.opts.Bounds.SystemTime.Overlaps(s.SystemFrom, s.SystemTo) {
				continue
			}
			rows = append(rows, c.project(ev, s))
		}
	}

	if c.opts.RowFilter != nil {
		filtered := rows[:0]
		for _, r := range rows {
			if c.opts.RowFilter(r) {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	return rows, true, nil
}

func (c *Cursor) project(ev events.Event, s polygon.Slice) map[string]any {
	key := func(name string) string {
		if c.opts.KeyFn != nil {
			return c.opts.KeyFn(name)
		}
		return name
	}

	row := make(map[string]any, len(ev.Doc)+4)
	for k, v := range ev.Doc {
		row[key(k)] = v
	}
	row[key(colValidFrom)] = s.ValidFrom
	row[key(colValidTo)] = s.ValidTo
	row[key(colSystemFrom)] = s.SystemFrom
	row[key(colSystemTo)] = s.SystemTo
	return row
}

// All drains every remaining task and concatenates their rows. Convenience
// for callers that don't need per-task batching.
func (c *Cursor) All() ([]map[string]any, error) {
	var out []map[string]any
	for {
		rows, ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rows...)
	}
}

// Close releases every pinned page. Safe to call more than once (§5
// "Cursors support close-at-any-time").
func (c *Cursor) Close() {
	if c.closed {
		return
	}
	for _, p := range c.pins {
		if p != nil {
			p.Release()
		}
	}
	c.closed = true
}
