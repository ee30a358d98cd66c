package bitemporal

import (
	"context"
	"sync"
	"time"

	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/iid"
	"github.com/xtdb-go/bitemporal/internal/xtdberrors"
)

// OpKind tags one transaction operation (§6 "Transaction operations").
type OpKind uint8

const (
	OpPut OpKind = iota
	OpDelete
	OpErase
)

// TxOp is one operation in a submitted transaction. sql/xtql/call (§6) are
// an external planner's concern: they are expected to already have been
// translated into a stream of these before reaching Submit.
type TxOp struct {
	Kind      OpKind
	Table     string
	Doc       map[string]any // OpPut only; must contain "xt/id" or "xt$id"
	ID        any            // OpDelete/OpErase: the entity id, any iid.OfAny-supported type
	ValidFrom *int64         // OpPut/OpDelete; nil defaults to [system_time, +inf)
	ValidTo   *int64
}

// Put builds a put operation.
func Put(table string, doc map[string]any, validFrom, validTo *int64) TxOp {
	return TxOp{Kind: OpPut, Table: table, Doc: doc, ValidFrom: validFrom, ValidTo: validTo}
}

// Delete builds a delete operation.
func Delete(table string, id any, validFrom, validTo *int64) TxOp {
	return TxOp{Kind: OpDelete, Table: table, ID: id, ValidFrom: validFrom, ValidTo: validTo}
}

// Erase builds an erase operation — irreversibly redacts all history for id.
func Erase(table string, id any) TxOp {
	return TxOp{Kind: OpErase, Table: table, ID: id}
}

func conflictErr() error {
	return xtdberrors.New(xtdberrors.KindConflict, "Node.Submit", xtdberrors.ErrSystemTimeRegression, nil)
}

const idKey = "xt/id"
const idKeyNormalized = "xt$id"

func docID(doc map[string]any) (any, bool) {
	if v, ok := doc[idKey]; ok {
		return v, true
	}
	v, ok := doc[idKeyNormalized]
	return v, ok
}

func (op TxOp) toEvent(systemTime int64) (events.Event, error) {
	validFrom, validTo := events.MaxTime, events.MaxTime
	if op.ValidFrom != nil {
		validFrom = *op.ValidFrom
	} else {
		validFrom = systemTime
	}
	if op.ValidTo != nil {
		validTo = *op.ValidTo
	}
	if op.Kind != OpErase && validFrom >= validTo {
		return events.Event{}, xtdberrors.New(xtdberrors.KindInvalidArgument, "TxOp.toEvent",
			xtdberrors.ErrInvalidValidRange, nil)
	}

	switch op.Kind {
	case OpPut:
		raw, ok := docID(op.Doc)
		if !ok {
			return events.Event{}, xtdberrors.New(xtdberrors.KindInvalidArgument, "TxOp.toEvent",
				xtdberrors.ErrMissingID, nil)
		}
		id, err := iid.OfAny(raw)
		if err != nil {
			return events.Event{}, xtdberrors.New(xtdberrors.KindInvalidArgument, "TxOp.toEvent",
				xtdberrors.ErrMalformedID, err)
		}
		return events.Event{IID: id, SystemFrom: systemTime, Op: events.OpPut,
			Doc: op.Doc, ValidFrom: validFrom, ValidTo: validTo}, nil

	case OpDelete:
		id, err := iid.OfAny(op.ID)
		if err != nil {
			return events.Event{}, xtdberrors.New(xtdberrors.KindInvalidArgument, "TxOp.toEvent",
				xtdberrors.ErrMalformedID, err)
		}
		return events.Event{IID: id, SystemFrom: systemTime, Op: events.OpDelete,
			ValidFrom: validFrom, ValidTo: validTo}, nil

	case OpErase:
		id, err := iid.OfAny(op.ID)
		if err != nil {
			return events.Event{}, xtdberrors.New(xtdberrors.KindInvalidArgument, "TxOp.toEvent",
				xtdberrors.ErrMalformedID, err)
		}
		return events.Event{IID: id, SystemFrom: systemTime, Op: events.OpErase,
			ValidFrom: events.MaxTime, ValidTo: events.MaxTime}, nil

	default:
		return events.Event{}, xtdberrors.New(xtdberrors.KindInvalidArgument, "TxOp.toEvent",
			xtdberrors.ErrUnknownQueryType, nil)
	}
}

// watermark tracks the node's last-committed system_time and lets AwaitTx
// block a reader until the indexer catches up to a requested after_tx (§5
// "awaiting the indexer to catch up to the query's requested after-tx"),
// without polling: each advance closes the channel every current waiter is
// blocked on, waking them all to recheck.
type watermark struct {
	mu   sync.Mutex
	tx   int64
	wake chan struct{}
}

func newWatermark() *watermark {
	return &watermark{wake: make(chan struct{})}
}

func (w *watermark) advance(tx int64) {
	w.mu.Lock()
	if tx <= w.tx {
		w.mu.Unlock()
		return
	}
	w.tx = tx
	ch := w.wake
	w.wake = make(chan struct{})
	w.mu.Unlock()
	close(ch)
}

func (w *watermark) current() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tx
}

// await blocks until tx >= afterTx, ctx is done, or timeout elapses (0
// means no timeout). A zero/negative afterTx is already satisfied.
func (w *watermark) await(ctx context.Context, afterTx int64, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		w.mu.Lock()
		if w.tx >= afterTx {
			w.mu.Unlock()
			return nil
		}
		ch := w.wake
		w.mu.Unlock()

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return xtdberrors.New(xtdberrors.KindTimeout, "watermark.await", xtdberrors.ErrAwaitTxTimeout, nil)
		}
	}
}
