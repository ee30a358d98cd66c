// Package bitemporal is the storage core's external interface (§6): tables
// accept put/delete/erase transactions, a pull-based cursor answers
// open_query against a chosen basis. A table flushes its live index to a new
// L0 segment during the Submit that brings it to ChunkRows events; the
// segment tree is compacted only when Compact is called.
//
// It wires the internal/ packages the way MassifCommitter wires the teacher's
// massifs/ primitives: plain-field Config passed by value at construction,
// functional options for the knobs that are genuinely optional.
package bitemporal

import (
	"github.com/xtdb-go/bitemporal/internal/compactor"
)

// Config holds the environment/config knobs named in §6.
type Config struct {
	// PageSize is the number of rows per data page for chunk flushes
	// (default 256). Compactor output always uses compactor.PageSize; this
	// field does not change it.
	PageSize int

	// CompactorFanIn records the number of same-level segments one
	// compaction merges (default 4). Compaction always uses compactor.FanIn;
	// nothing reads this field.
	CompactorFanIn int

	// BufferPoolBytes is the shared buffer pool's capacity.
	BufferPoolBytes int64

	// ChunkRows is the live-index row count at which a table's next Submit
	// triggers a chunk flush to a new L0 segment. Not named directly in §6
	// ("environment / config"), but implied by §3's "Chunk" and needed to
	// turn the always-correct "flush after every commit" into the teacher's
	// batched-flush texture.
	ChunkRows uint64

	// DefaultTimeZone names the IANA zone for query literals that don't
	// specify one (default "UTC"). It is carried as a config knob only:
	// nothing in this core parses time literals or reads this field.
	DefaultTimeZone string

	// SuppressLiteralPrinters turns off the wire codec's domain-literal
	// print hooks (§9 "Global print/read hooks for domain literals... out
	// of core"); carried here only as the config knob §6 names, since the
	// hooks themselves live in an external wire-codec layer this core
	// doesn't implement.
	SuppressLiteralPrinters bool
}

// DefaultConfig returns the config §6 describes as defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:        256,
		CompactorFanIn:  compactor.FanIn,
		BufferPoolBytes: 256 << 20,
		ChunkRows:       4096,
		DefaultTimeZone: "UTC",
	}
}

// Option configures optional Node behavior beyond Config's plain fields,
// following massifs/options.go's WithXxx(...) Option pattern.
type Option func(*nodeOptions)

type nodeOptions struct {
	sealer *compactor.Sealer
}

// WithCompactionSealer has every compaction run by this node sign its
// published output with s as an integrity seal (§9 domain-stack note).
func WithCompactionSealer(s *compactor.Sealer) Option {
	return func(o *nodeOptions) { o.sealer = s }
}

// compactOpts translates the node's sealing option into the compactor's own
// functional options, re-evaluated per Compact call since a Sealer carries
// no other per-call state.
func (o nodeOptions) compactOpts() []compactor.Option {
	if o.sealer == nil {
		return nil
	}
	return []compactor.Option{compactor.WithSealer(o.sealer)}
}
