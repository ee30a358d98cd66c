package segment

import (
	"github.com/xtdb-go/bitemporal/internal/events"
	"github.com/xtdb-go/bitemporal/internal/iid"
)

// Page is one data page: a columnar relation with the event schema (§3) plus
// whatever document columns were present on the put events it holds. Rows
// within a page are sorted (iid asc, system_from desc) per §3's segment
// invariant. Columns are parallel slices rather than an Arrow RecordBatch —
// see DESIGN.md for why the core carries its own minimal columnar
// representation instead of a vendored Arrow dependency.
type Page struct {
	IID        []iid.IID
	SystemFrom []int64
	Op         []events.Op
	ValidFrom  []int64
	ValidTo    []int64
	Doc        []map[string]any

	// Recency is set only on compactor output (§4.H): the largest sys_to
	// among the row's polygon slices, trie.MaxRecency encoding +inf.
	Recency []int64
}

func (p *Page) RowCount() int { return len(p.IID) }

// IIDAt returns the iid at row i, satisfying eventrow.Source.
func (p *Page) IIDAt(i int) iid.IID { return p.IID[i] }

// Append adds one row to the page.
func (p *Page) Append(e events.Event, recency *int64) {
	p.IID = append(p.IID, e.IID)
	p.SystemFrom = append(p.SystemFrom, e.SystemFrom)
	p.Op = append(p.Op, e.Op)
	p.ValidFrom = append(p.ValidFrom, e.ValidFrom)
	p.ValidTo = append(p.ValidTo, e.ValidTo)
	p.Doc = append(p.Doc, e.Doc)
	if recency != nil {
		p.Recency = append(p.Recency, *recency)
	}
}

// Event reconstructs the event at row i.
func (p *Page) Event(i int) events.Event {
	return events.Event{
		IID:        p.IID[i],
		SystemFrom: p.SystemFrom[i],
		Op:         p.Op[i],
		Doc:        p.Doc[i],
		ValidFrom:  p.ValidFrom[i],
		ValidTo:    p.ValidTo[i],
	}
}
