// Package temporal parses `for-valid-time` / `for-system-time` query
// clauses into the numeric rectangles (§4.I) the scan cursor uses both to
// restrict which events the polygon engine even considers (a system-time
// pushdown) and to filter the polygon engine's emitted slices on both time
// axes before they are projected and returned.
package temporal

// MinTime represents "-infinity" on either time axis.
const MinTime = int64(-1 << 63)

// Bound is a half-open interval [Lo, Hi) on one time axis.
type Bound struct {
	Lo, Hi int64
}

// Overlaps reports whether the row interval [lo, hi) intersects b — the
// test applied to a polygon slice's (valid_from, valid_to) or
// (system_from, system_to) pair (§4.I).
func (b Bound) Overlaps(lo, hi int64) bool {
	return lo < b.Hi && hi > b.Lo
}

// ClauseKind tags which temporal clause form produced a Bound.
type ClauseKind uint8

const (
	ClauseAllTime ClauseKind = iota
	ClauseAt
	ClauseIn
	ClauseBetween
)

// Clause is a parsed `for-valid-time`/`for-system-time` clause, prior to
// being resolved into a Bound (§4.I):
//   - AT t            -> ClauseAt{At: t}
//   - IN [f, t)        -> ClauseIn{From: f, To: t}
//   - BETWEEN [f, t]  -> ClauseBetween{From: f, To: t}
//   - ALL TIME        -> ClauseAllTime
type Clause struct {
	Kind       ClauseKind
	At         int64
	From, To   int64
}

// AllTime builds the ALL TIME clause.
func AllTime() Clause { return Clause{Kind: ClauseAllTime} }

// At builds the `AT t` clause.
func At(t int64) Clause { return Clause{Kind: ClauseAt, At: t} }

// In builds the `IN [from, to)` clause (half-open).
func In(from, to int64) Clause { return Clause{Kind: ClauseIn, From: from, To: to} }

// Between builds the `BETWEEN [from, to]` clause (inclusive of to).
func Between(from, to int64) Clause { return Clause{Kind: ClauseBetween, From: from, To: to} }

// Resolve turns a parsed clause into its numeric rectangle (§4.I):
//   - AT t            -> [t, t] on start-col, t< on end-col: represented as
//     the half-open bound [t, t+1), whose Overlaps test is exactly
//     "start <= t && end > t".
//   - IN [f, t)        -> start < t, end > f: the bound [f, t) directly.
//   - BETWEEN [f, t]  -> inclusive of t, so the bound [f, t+1).
//   - ALL TIME        -> unbounded, [MinTime, MaxTime).
func Resolve(c Clause, maxTime int64) Bound {
	switch c.Kind {
	case ClauseAt:
		return Bound{Lo: c.At, Hi: c.At + 1}
	case ClauseIn:
		return Bound{Lo: c.From, Hi: c.To}
	case ClauseBetween:
		return Bound{Lo: c.From, Hi: c.To + 1}
	default:
		return Bound{Lo: MinTime, Hi: maxTime}
	}
}

// Bounds is the pair of rectangles one query resolves its clauses to
// (§4.I, §6 "open_query").
type Bounds struct {
	SystemTime Bound
	ValidTime  Bound
}

// DefaultSystemTime is the as-of bound implied when no explicit
// for-system-time clause is given: "system_from ≤ basis_tx.system_time <
// system_to" (§4.I). Overlaps(rowFrom, rowTo) against this bound is a
// point-containment test at basisTxTime — equivalent to the AT clause at
// the basis — so a row already superseded before the basis (rowTo <=
// basisTxTime) correctly fails to overlap even though its own system_from
// may be far in the past.
func DefaultSystemTime(basisTxTime int64) Bound {
	return Bound{Lo: basisTxTime, Hi: basisTxTime + 1}
}

// DefaultValidTime is the as-of-now bound implied when no explicit
// for-valid-time clause is given and default-all-valid-time? is false: the
// wall-clock instant fixed at query start (§4.I).
func DefaultValidTime(queryStartTime int64) Bound {
	return Bound{Lo: queryStartTime, Hi: queryStartTime + 1}
}
