// Package xtdberrors defines the core's error taxonomy (§7) as sentinel
// errors, in the same style as the teacher's massifs/errors.go: one
// package-level var per condition, wrapped in an *Error (see New) at the
// point of detection so errors.Is still matches the sentinel.
package xtdberrors

import "errors"

// Kind classifies a core error per §7, for callers that need to branch on
// the taxonomy rather than a specific sentinel (e.g. deciding whether a
// StorageError read should be retried).
type Kind uint8

const (
	KindInvalidArgument Kind = iota
	KindRuntime
	KindConflict
	KindTimeout
	KindStorage
)

var (
	// InvalidArgument: malformed id, missing xt/id, unknown query type,
	// valid_from >= valid_to, invalid temporal literal.
	ErrMalformedID       = errors.New("xtdb: malformed entity id")
	ErrMissingID         = errors.New("xtdb: put document is missing xt/id")
	ErrUnknownQueryType  = errors.New("xtdb: unknown query type")
	ErrInvalidValidRange = errors.New("xtdb: valid_from must be strictly before valid_to")
	ErrInvalidTemporal   = errors.New("xtdb: invalid temporal literal")

	// RuntimeError: arithmetic overflow, type conflict, eval failure.
	ErrTemporalOverflow = errors.New("xtdb: arithmetic overflow during temporal coercion")
	ErrTypeConflict     = errors.New("xtdb: type conflict during merge")
	ErrEvalFailed       = errors.New("xtdb: expression evaluation failed")

	// ConflictError: system_time would go backwards.
	ErrSystemTimeRegression = errors.New("xtdb: transaction system_time would go backwards")

	// TimeoutError: await-tx exceeded tx_timeout.
	ErrAwaitTxTimeout = errors.New("xtdb: await-tx exceeded tx_timeout")

	// StorageError: buffer pool / object store read failure.
	ErrStorageRead  = errors.New("xtdb: storage read failed")
	ErrStorageWrite = errors.New("xtdb: storage write failed")

	// Cursor/cancellation.
	ErrCursorClosed = errors.New("xtdb: cursor closed")
)

// Error wraps a sentinel with its taxonomy Kind and an optional cause, so a
// single type assertion recovers both "which category" and "why" without
// peeling wrapper layers — errors inside an async future are unwrapped and
// re-raised with the original cause (§7 "Propagation").
type Error struct {
	Kind    Kind
	Op      string
	Sentinel error
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Op + ": " + e.Sentinel.Error() + ": " + e.Cause.Error()
	}
	return e.Op + ": " + e.Sentinel.Error()
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Sentinel
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Sentinel, target)
}

// New constructs a taxonomy error for op, wrapping sentinel (and optionally
// cause).
func New(kind Kind, op string, sentinel error, cause error) *Error {
	return &Error{Kind: kind, Op: op, Sentinel: sentinel, Cause: cause}
}

// IsRetryable reports whether a StorageError read failure should be retried
// transparently (§7: "Retried transparently for idempotent reads; otherwise
// fails the operation").
func IsRetryable(err error, idempotentRead bool) bool {
	var xerr *Error
	if !errors.As(err, &xerr) {
		return false
	}
	return xerr.Kind == KindStorage && idempotentRead
}
