package bitemporal

import (
	"context"
	"time"

	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/mergeplan"
	"github.com/xtdb-go/bitemporal/internal/scan"
	"github.com/xtdb-go/bitemporal/internal/temporal"
)

// Basis fixes a query's logical snapshot (§4.I, §6 "basis = {at_tx?,
// current_time?}"). A zero Basis resolves to "as of the node's current
// commit watermark, as of wall-clock now".
type Basis struct {
	AtTx        *int64 // system time to query as-of; nil means the node's current commit watermark (wall-clock now before any commit)
	CurrentTime *int64 // wall-clock instant valid-time defaults resolve against; nil means "now"
}

// QueryOptions configures one open_query call (§6). SystemTime/ValidTime
// left nil take the §4.I defaults; an explicit clause (including an
// explicit ALL TIME) overrides the default for that axis.
type QueryOptions struct {
	Basis Basis

	// AfterTx/TxTimeout implement "awaiting the indexer to catch up to the
	// query's requested after-tx" (§5). AfterTx <= 0 skips the wait.
	AfterTx   int64
	TxTimeout time.Duration

	DefaultTZ           string
	DefaultAllValidTime bool
	Explain             bool
	KeyFn               scan.KeyFn
	Predicate           mergeplan.Predicate
	SystemTime          *temporal.Clause
	ValidTime           *temporal.Clause
	RowFilter           func(row map[string]any) bool
}

// OpenQuery resolves table's current watermark under opts' basis and
// returns a pull-based cursor over it (§6 "open_query(q, {...}) -> cursor
// of rows"). The caller must Close the cursor.
func (n *Node) OpenQuery(ctx context.Context, table string, opts QueryOptions) (*scan.Cursor, error) {
	if opts.AfterTx > 0 {
		if err := n.AwaitTx(ctx, opts.AfterTx, opts.TxTimeout); err != nil {
			return nil, err
		}
	}

	t := n.Table(table)
	descriptors, live := t.currentSet()

	now := time.Now().UnixMicro()
	basisTxTime := n.CurrentTx()
	if opts.Basis.AtTx != nil {
		basisTxTime = *opts.Basis.AtTx
	} else if basisTxTime == 0 {
		basisTxTime = now
	}
	validNow := now
	if opts.Basis.CurrentTime != nil {
		validNow = *opts.Basis.CurrentTime
	}

	bounds := temporal.Bounds{
		SystemTime: temporal.DefaultSystemTime(basisTxTime),
		ValidTime:  temporal.DefaultValidTime(validNow),
	}
	if opts.DefaultAllValidTime {
		bounds.ValidTime = temporal.Bound{Lo: temporal.MinTime, Hi: events.MaxTime}
	}
	if opts.SystemTime != nil {
		bounds.SystemTime = temporal.Resolve(*opts.SystemTime, events.MaxTime)
	}
	if opts.ValidTime != nil {
		bounds.ValidTime = temporal.Resolve(*opts.ValidTime, events.MaxTime)
	}

	return scan.Open(ctx, t.store, descriptors, live, scan.Options{
		Predicate: opts.Predicate,
		Bounds:    bounds,
		RowFilter: opts.RowFilter,
		KeyFn:     opts.KeyFn,
	})
}
