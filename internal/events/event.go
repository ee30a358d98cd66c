// Package events defines the atomic storage unit (§3 "Event") shared by the
// live index, the segment format and the polygon engine.
package events

import "github.com/xtdb-go/bitemporal/internal/iid"

// Op tags the event's payload kind. Represented as an integer tag per row
// rather than a Go interface so the polygon engine (§4.D) switches once per
// row instead of paying a dynamic dispatch per field access (§9 "Dynamic
// dispatch over op kind").
type Op uint8

const (
	OpPut Op = iota
	OpDelete
	OpErase
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpErase:
		return "erase"
	default:
		return "unknown"
	}
}

// Event is the atomic unit in storage (§3).
type Event struct {
	IID         iid.IID
	SystemFrom  int64 // µs since epoch, UTC
	Op          Op
	Doc         map[string]any // only meaningful for OpPut
	ValidFrom   int64          // µs since epoch, UTC; only for put/delete
	ValidTo     int64          // µs since epoch, UTC; only for put/delete
}

// MaxTime represents "+infinity" on either time axis.
const MaxTime = int64(1<<63 - 1)
