// Package compactor implements the level compactor (§4.H): selecting
// groups of four consecutive same-level segments, merging them in
// lock-step exactly as the scan cursor's merge planner does (but without
// pushdown pruning, since every row must be kept), and writing the merged
// output one level up with a `_recency` column that lets future queries
// prune superseded rows via a branch-recency trie node.
package compactor

import (
	"context"
	"sort"

	"github.com/xtdb-go/bitemporal/internal/bufferpool"
	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/eventrow"
	"github.com/xtdb-go/bitemporal/internal/mergeplan"
	"github.com/xtdb-go/bitemporal/internal/polygon"
	"github.com/xtdb-go/bitemporal/internal/segment"
	"github.com/xtdb-go/bitemporal/internal/trie"
)

// FanIn is the number of same-level segments one compaction merges (§4.H).
const FanIn = 4

// PageSize is the compactor's output page size, rows per leaf (§4.H). It is
// fixed here; Config.PageSize does not change it.
const PageSize = 256

// Catalog lists a table's published segment descriptors at every level.
// The core has no opinion on how this is backed (an object-store listing,
// a metadata table, ...); it only needs a current view to select from.
type Catalog interface {
	Descriptors(table string) []segment.Descriptor
}

// Group is one selected compaction job: FanIn consecutive same-level
// inputs and the L+1 descriptor their merge will publish.
type Group struct {
	Table  string
	Output segment.Descriptor
	Inputs []segment.Descriptor
}

// Select groups table's current descriptors into compaction jobs: within
// each level, consecutive (by next_row ascending) runs of FanIn segments
// become one job producing an L+1 output spanning the run (§4.H
// "Selection"). Levels with fewer than FanIn leftover segments contribute
// no job. Output order is deterministic: by level ascending, then by
// first_row ascending.
func Select(table string, descriptors []segment.Descriptor) []Group {
	byLevel := map[uint8][]segment.Descriptor{}
	for _, d := range descriptors {
		byLevel[d.Level] = append(byLevel[d.Level], d)
	}

	var groups []Group
	for level, ds := range byLevel {
		sorted := append([]segment.Descriptor{}, ds...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].NextRow < sorted[j].NextRow })
		for i := 0; i+FanIn <= len(sorted); i += FanIn {
			chunk := sorted[i : i+FanIn]
			groups = append(groups, Group{
				Table:  table,
				Inputs: append([]segment.Descriptor{}, chunk...),
				Output: segment.Descriptor{
					Level:    level + 1,
					FirstRow: chunk[0].FirstRow,
					NextRow:  chunk[len(chunk)-1].NextRow,
				},
			})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Output.Level != groups[j].Output.Level {
			return groups[i].Output.Level < groups[j].Output.Level
		}
		return groups[i].Output.FirstRow < groups[j].Output.FirstRow
	})
	return groups
}

// Option configures an optional Compact behavior.
type Option func(*options)

type options struct {
	sealer *Sealer
}

// WithSealer has Compact sign its published output's meta with s as an
// integrity seal (§9 domain-stack note). Omitted by default: sealing is an
// optional attestation layer, not required for the merge itself.
func WithSealer(s *Sealer) Option {
	return func(o *options) { o.sealer = s }
}

// Compact runs one merge job: opens g's inputs, merges them in lock-step
// (§4.H "Merge"), and publishes the merged output. It then retires the
// inputs — safe because any cursor already pinned to them holds its own
// buffer-pool Pin over already-fetched bytes, and no new cursor should
// still be addressing descriptors this compaction has just superseded
// (§5 "predecessors are retained long enough for in-flight readers ... to
// finish" is satisfied by pin reference-counting rather than a separate
// grace period; see DESIGN.md).
func Compact(ctx context.Context, store *segment.Store, g Group, opts ...Option) error {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	var pins []*bufferpool.Pin
	defer func() {
		for _, p := range pins {
			p.Release()
		}
	}()

	var roots []*trie.Node
	var pages [][]*segment.Page
	for _, d := range g.Inputs {
		meta, metaPin, err := store.Open(ctx, d)
		if err != nil {
			return err
		}
		pins = append(pins, metaPin)

		p, dataPin, err := store.OpenPages(ctx, d)
		if err != nil {
			return err
		}
		pins = append(pins, dataPin)

		// Compaction must see every row, live or already superseded, so it
		// always resolves both sides of a branch-recency root.
		for _, root := range trie.ResolveRecency(meta.Root, true) {
			roots = append(roots, root)
			pages = append(pages, p)
		}
	}

	rows, recency := merge(roots, pages)

	meta, outPages, err := segment.Build(rows, PageSize, recency)
	if err != nil {
		return err
	}
	if err := store.Publish(ctx, g.Output, meta, outPages); err != nil {
		return err
	}

	if o.sealer != nil {
		metaBytes, err := segment.EncodeMeta(meta)
		if err != nil {
			return err
		}
		sealed, err := o.sealer.Seal(sealClaimsFor(g.Table, g.Output, metaBytes))
		if err != nil {
			return err
		}
		if err := store.WriteSeal(ctx, g.Output, sealed); err != nil {
			return err
		}
	}

	// Drop this job's own pins first: the buffer pool skips invalidating a
	// pinned entry, which would leave the retired inputs readable from cache.
	for _, p := range pins {
		p.Release()
	}
	pins = nil

	for _, d := range g.Inputs {
		if err := store.Retire(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// merge walks every leaf task (no predicate, so mergeplan.Plan takes
// every leaf directly) and copies its rows in (iid asc, system_from desc)
// order, annotating each put with its recency: the latest system_to among
// the polygon slices computed for that row, which is trie.MaxRecency as
// long as any part of its valid-time extent is still current. A row thus
// lands on the superseded side of the output only once every slice of it
// has been superseded, so an as-of-latest read that skips that side drops
// no row it still needs (§4.H).
func merge(roots []*trie.Node, pages [][]*segment.Page) ([]events.Event, []int64) {
	tasks := mergeplan.Plan(roots, nil, mergeplan.Predicate{})

	var rows []events.Event
	var recency []int64

	for _, task := range tasks {
		var ptrs []*eventrow.Pointer
		for segIdx, leaf := range task.SegmentLeaves {
			if leaf == nil {
				continue
			}
			ptrs = append(ptrs, eventrow.New(pages[segIdx][leaf.DataPageIdx], task.Path))
		}

		queue := eventrow.NewQueue(task.Path, ptrs)
		engine := polygon.New()

		for {
			ev, ok := queue.Next()
			if !ok {
				break
			}

			rec := trie.MaxRecency
			if ev.Op == events.OpPut {
				slices := engine.Feed(ev, events.MaxTime)
				if len(slices) > 0 {
					rec = slices[0].SystemTo
					for _, s := range slices[1:] {
						if s.SystemTo > rec {
							rec = s.SystemTo
						}
					}
				}
			} else {
				engine.Feed(ev, events.MaxTime)
			}

			rows = append(rows, ev)
			recency = append(recency, rec)
		}
	}

	return rows, recency
}

// CompactAll drives Select/Compact to a fixed point for one table,
// running one job at a time (§4.H "Only one compaction job runs at a time
// per table; compactAll repeatedly selects-and-runs until no group of
// four remains at any level"). It returns the number of jobs run.
func CompactAll(ctx context.Context, store *segment.Store, catalog Catalog, table string) (int, error) {
	n := 0
	for {
		groups := Select(table, catalog.Descriptors(table))
		if len(groups) == 0 {
			return n, nil
		}
		if err := Compact(ctx, store, groups[0]); err != nil {
			return n, err
		}
		n++
	}
}
