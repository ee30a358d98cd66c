// Package bufferpool implements the shared page cache named in §1/§5: LRU
// eviction with pinned pages exempt, shared across all cursors and the
// compactor, blocking I/O through the objectstore collaborator with no lock
// held across that I/O. Structurally this is the teacher's logdircache.go
// idea (a directory/entry cache keyed by path, populated lazily on miss)
// narrowed to byte-range page fetches instead of whole massif contexts.
package bufferpool

import (
	"container/list"
	"context"
	"os"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/xtdb-go/bitemporal/internal/objectstore"
	"github.com/xtdb-go/bitemporal/internal/xtdberrors"
)

// MmapReader is an optional capability of the underlying objectstore.Reader
// (LocalFS implements it on unix, mirroring the teacher's mmap_unix.go): a
// store that can map a file read-only instead of copying it into a heap
// buffer. The pool prefers it for data-file fetches (FetchData), since
// segment data pages are addressed by random trie offset rather than read
// sequentially end to end.
type MmapReader interface {
	MmapReadOnly(path string) ([]byte, func() error, error)
}

// Pin is a caller's claim on a cached page; while held the page is exempt
// from eviction. Release must be called exactly once.
type Pin struct {
	pool  *Pool
	entry *entry
}

// Release unpins the page, making it eligible for LRU eviction again.
func (p *Pin) Release() {
	p.pool.unpin(p.entry)
}

// Bytes returns the pinned page's contents. Valid only between Fetch and
// Release.
func (p *Pin) Bytes() []byte {
	return p.entry.data
}

type entry struct {
	path    string
	data    []byte
	pins    int
	lruElem *list.Element

	// unmap releases data back to the OS when the entry leaves the cache.
	// Non-nil only for entries fetched via MmapReader.
	unmap func() error
}

// Pool is an LRU cache of whole objects fronting an objectstore.Reader. Capacity
// is expressed in bytes (§6 "buffer-pool capacity (bytes)").
type Pool struct {
	log       logger.Logger
	store     objectstore.Reader
	capacity  int64
	mu        sync.Mutex
	size      int64
	entries   map[string]*entry
	lru       *list.List // front = most recently used
	evictions int64
	hits      int64
	misses    int64
}

func New(log logger.Logger, store objectstore.Reader, capacityBytes int64) *Pool {
	return &Pool{
		log:      log,
		store:    store,
		capacity: capacityBytes,
		entries:  make(map[string]*entry),
		lru:      list.New(),
	}
}

// Fetch returns a pinned page for path, reading through to the object store
// on a cache miss. No lock is held across the I/O (§5 "No lock is held
// across I/O"): the store read happens outside the pool's mutex, and a
// concurrent fetch of the same path is allowed to race the read (the loser
// simply discards its copy and reuses the winner's cached entry).
func (p *Pool) Fetch(ctx context.Context, path string) (*Pin, bool, error) {
	p.mu.Lock()
	if e, ok := p.entries[path]; ok {
		e.pins++
		p.lru.MoveToFront(e.lruElem)
		p.hits++
		p.mu.Unlock()
		return &Pin{pool: p, entry: e}, true, nil
	}
	p.misses++
	p.mu.Unlock()

	data, ok, err := p.store.Read(ctx, path)
	if err != nil {
		return nil, false, xtdberrors.WrapStorage("bufferpool.Fetch", err, false)
	}
	if !ok {
		return nil, false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[path]; ok {
		// Lost the race to a concurrent fetch; reuse their entry.
		e.pins++
		p.lru.MoveToFront(e.lruElem)
		return &Pin{pool: p, entry: e}, true, nil
	}
	e := &entry{path: path, data: data, pins: 1}
	e.lruElem = p.lru.PushFront(e)
	p.entries[path] = e
	p.size += int64(len(data))
	p.evictLocked()
	return &Pin{pool: p, entry: e}, true, nil
}

// FetchData is Fetch specialized for segment data-file pages: when the pool
// was built over a store implementing MmapReader, it maps the file
// read-only instead of reading it into a heap buffer, trading a page-fault
// on each random access for never copying the page the query doesn't touch.
// Meta files stay on Fetch, since they're decoded whole, sequentially, on
// every open.
func (p *Pool) FetchData(ctx context.Context, path string) (*Pin, bool, error) {
	p.mu.Lock()
	if e, ok := p.entries[path]; ok {
		e.pins++
		p.lru.MoveToFront(e.lruElem)
		p.hits++
		p.mu.Unlock()
		return &Pin{pool: p, entry: e}, true, nil
	}
	p.misses++
	p.mu.Unlock()

	data, unmap, ok, err := p.readData(ctx, path)
	if err != nil {
		return nil, false, xtdberrors.WrapStorage("bufferpool.FetchData", err, false)
	}
	if !ok {
		return nil, false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[path]; ok {
		// Lost the race to a concurrent fetch; reuse their entry and drop
		// our own mapping.
		if unmap != nil {
			_ = unmap()
		}
		e.pins++
		p.lru.MoveToFront(e.lruElem)
		return &Pin{pool: p, entry: e}, true, nil
	}
	e := &entry{path: path, data: data, pins: 1, unmap: unmap}
	e.lruElem = p.lru.PushFront(e)
	p.entries[path] = e
	p.size += int64(len(data))
	p.evictLocked()
	return &Pin{pool: p, entry: e}, true, nil
}

func (p *Pool) readData(ctx context.Context, path string) ([]byte, func() error, bool, error) {
	if mr, ok := p.store.(MmapReader); ok {
		data, unmap, err := mr.MmapReadOnly(path)
		if err == nil {
			return data, unmap, true, nil
		}
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	data, ok, err := p.store.Read(ctx, path)
	return data, nil, ok, err
}

func (p *Pool) unpin(e *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e.pins--
	p.evictLocked()
}

// evictLocked drops least-recently-used, unpinned entries until the pool is
// back under capacity or nothing more can be evicted. Must be called with
// p.mu held.
func (p *Pool) evictLocked() {
	if p.capacity <= 0 {
		return
	}
	elem := p.lru.Back()
	for p.size > p.capacity && elem != nil {
		prev := elem.Prev()
		e := elem.Value.(*entry)
		if e.pins == 0 {
			p.lru.Remove(elem)
			delete(p.entries, e.path)
			p.size -= int64(len(e.data))
			p.evictions++
			if e.unmap != nil {
				_ = e.unmap()
			}
		}
		elem = prev
	}
}

// Stats exposes counters used by §8 S6's pushdown-pruning observability
// check ("observable via buffer-pool counters").
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Bytes     int64
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Hits: p.hits, Misses: p.misses, Evictions: p.evictions, Bytes: p.size}
}

// Invalidate drops path from the cache unconditionally, used once a
// compaction's predecessor segments are retired (§5 "predecessors are
// retained long enough for in-flight readers ... to finish").
func (p *Pool) Invalidate(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[path]
	if !ok {
		return
	}
	if e.pins > 0 {
		return
	}
	p.lru.Remove(e.lruElem)
	delete(p.entries, path)
	p.size -= int64(len(e.data))
	if e.unmap != nil {
		_ = e.unmap()
	}
}
