package bitemporal

import (
	"context"
	"sync"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/xtdb-go/bitemporal/internal/bufferpool"
	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/objectstore"
	"github.com/xtdb-go/bitemporal/internal/segment"
)

// Node is the storage core's top-level entry point: one shared buffer pool
// and object store backing any number of lazily-created Tables, one
// commit watermark spanning all of them (§5 "a single node may have many
// concurrent readers but only one indexer and at most one compactor"),
// following MassifCommitter's plain-Config-plus-collaborators shape.
type Node struct {
	cfg  Config
	log  logger.Logger
	opts nodeOptions

	store objectstore.ReaderWriter
	pool  *bufferpool.Pool

	mu     sync.Mutex
	tables map[string]*Table

	wm *watermark
}

// NewNode constructs a Node over store, sharing one buffer pool across
// every table it serves (§5 "The buffer pool is shared across all cursors
// and the compactor").
func NewNode(cfg Config, log logger.Logger, store objectstore.ReaderWriter, opts ...Option) *Node {
	var o nodeOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Node{
		cfg:    cfg,
		log:    log,
		opts:   o,
		store:  store,
		pool:   bufferpool.New(log, store, cfg.BufferPoolBytes),
		tables: make(map[string]*Table),
		wm:     newWatermark(),
	}
}

// Table returns the named table, creating it (with an empty live index and
// no committed segments) on first use.
func (n *Node) Table(name string) *Table {
	normalized := segment.Normalize(name)

	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.tables[normalized]
	if !ok {
		t = newTable(normalized, n.cfg, n.log, segment.NewStore(normalized, n.pool, n.store))
		n.tables[normalized] = t
	}
	return t
}

// SubmitAt commits ops as one transaction at system time at (µs since epoch),
// appending each op's event(s) to its table's live index and advancing the
// node's commit watermark (§6 "put/delete/erase", §5 "Write -> read: a
// transaction submitted before the query's after-tx bound is observable by
// the query"). System time must not regress relative to the last commit
// (§7 ConflictError).
func (n *Node) SubmitAt(ctx context.Context, at int64, ops []TxOp) (int64, error) {
	if at <= n.wm.current() {
		return 0, conflictErr()
	}

	byTable := make(map[string][]events.Event)
	for _, op := range ops {
		ev, err := op.toEvent(at)
		if err != nil {
			return 0, err
		}
		table := segment.Normalize(op.Table)
		byTable[table] = append(byTable[table], ev)
	}

	for name, evs := range byTable {
		if err := n.Table(name).append(ctx, evs); err != nil {
			return 0, err
		}
	}

	n.wm.advance(at)
	return at, nil
}

// Submit is SubmitAt using the wall clock as the transaction's system time.
func (n *Node) Submit(ctx context.Context, ops []TxOp) (int64, error) {
	return n.SubmitAt(ctx, time.Now().UnixMicro(), ops)
}

// AwaitTx blocks until the node's commit watermark reaches afterTx, ctx is
// cancelled, or timeout elapses (0 disables the timeout) — the "await-tx"
// suspension point named in §5.
func (n *Node) AwaitTx(ctx context.Context, afterTx int64, timeout time.Duration) error {
	return n.wm.await(ctx, afterTx, timeout)
}

// CurrentTx reports the node's most recently committed system time.
func (n *Node) CurrentTx() int64 {
	return n.wm.current()
}

// Compact drives every table this node has served to its own compaction
// fixed point, using the sealer given via WithCompactionSealer if any.
func (n *Node) Compact(ctx context.Context) (int, error) {
	n.mu.Lock()
	tables := make([]*Table, 0, len(n.tables))
	for _, t := range n.tables {
		tables = append(tables, t)
	}
	n.mu.Unlock()

	total := 0
	for _, t := range tables {
		k, err := t.Compact(ctx, n.opts.compactOpts()...)
		total += k
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
