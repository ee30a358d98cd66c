package segment

import (
	"context"
	"fmt"

	"github.com/xtdb-go/bitemporal/internal/bufferpool"
	"github.com/xtdb-go/bitemporal/internal/objectstore"
	"github.com/xtdb-go/bitemporal/internal/xtdberrors"
)

// Store reads and publishes segment files for one table through the shared
// buffer pool (§5 "The buffer pool is shared across all cursors and the
// compactor").
type Store struct {
	table string
	pool  *bufferpool.Pool
	store objectstore.Writer
}

func NewStore(table string, pool *bufferpool.Pool, store objectstore.Writer) *Store {
	return &Store{table: table, pool: pool, store: store}
}

// Open fetches and decodes a segment's meta file. The returned Pin must be
// released by the caller once the segment is no longer needed by the
// cursor (§5 "readers pin a watermark").
func (s *Store) Open(ctx context.Context, d Descriptor) (*Meta, *bufferpool.Pin, error) {
	path := MetaPath(s.table, d.Level, d.FirstRow, d.NextRow)
	pin, ok, err := s.pool.Fetch(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, xtdberrors.New(xtdberrors.KindStorage, "segment.Open",
			xtdberrors.ErrStorageRead, fmt.Errorf("meta file not found: %s", path))
	}
	m, err := DecodeMeta(pin.Bytes())
	if err != nil {
		pin.Release()
		return nil, nil, xtdberrors.New(xtdberrors.KindStorage, "segment.Open", xtdberrors.ErrStorageRead, err)
	}
	m.Level, m.FirstRow, m.NextRow = d.Level, d.FirstRow, d.NextRow
	return m, pin, nil
}

// OpenPages fetches and decodes a segment's data file (all of its pages).
// The returned Pin must be released once the pages are no longer referenced.
func (s *Store) OpenPages(ctx context.Context, d Descriptor) ([]*Page, *bufferpool.Pin, error) {
	path := DataPath(s.table, d.Level, d.FirstRow, d.NextRow)
	pin, ok, err := s.pool.FetchData(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, xtdberrors.New(xtdberrors.KindStorage, "segment.OpenPages",
			xtdberrors.ErrStorageRead, fmt.Errorf("data file not found: %s", path))
	}
	pages, err := DecodeData(pin.Bytes())
	if err != nil {
		pin.Release()
		return nil, nil, xtdberrors.New(xtdberrors.KindStorage, "segment.OpenPages", xtdberrors.ErrStorageRead, err)
	}
	return pages, pin, nil
}

// Publish writes a newly built segment's meta and data files atomically
// (failIfExists=true: segment names are derived from next_row, which is
// monotonic per table, so a name collision means a racing writer and must
// fail rather than silently overwrite, §5).
func (s *Store) Publish(ctx context.Context, d Descriptor, meta *Meta, pages []*Page) error {
	meta.Level, meta.FirstRow, meta.NextRow = d.Level, d.FirstRow, d.NextRow

	metaBytes, err := EncodeMeta(meta)
	if err != nil {
		return xtdberrors.New(xtdberrors.KindRuntime, "segment.Publish", xtdberrors.ErrTypeConflict, err)
	}
	dataBytes, err := EncodeData(pages)
	if err != nil {
		return xtdberrors.New(xtdberrors.KindRuntime, "segment.Publish", xtdberrors.ErrTypeConflict, err)
	}

	if err := s.store.Write(ctx, DataPath(s.table, d.Level, d.FirstRow, d.NextRow), dataBytes, true); err != nil {
		return xtdberrors.WrapStorage("segment.Publish(data)", err, true)
	}
	if err := s.store.Write(ctx, MetaPath(s.table, d.Level, d.FirstRow, d.NextRow), metaBytes, true); err != nil {
		return xtdberrors.WrapStorage("segment.Publish(meta)", err, true)
	}
	return nil
}

// WriteSeal publishes an optional integrity seal alongside a segment's meta
// file (§9 domain-stack note). Unlike Publish, it does not fail on an
// existing file: re-sealing an already-published segment (e.g. with a
// rotated key) is expected to overwrite.
func (s *Store) WriteSeal(ctx context.Context, d Descriptor, sealed []byte) error {
	if err := s.store.Write(ctx, SealPath(s.table, d.Level, d.FirstRow, d.NextRow), sealed, false); err != nil {
		return xtdberrors.WrapStorage("segment.WriteSeal", err, true)
	}
	return nil
}

// ReadSeal fetches a previously written seal by its path (segment.SealPath),
// returning (nil, false, nil) if no seal was ever written for it.
func (s *Store) ReadSeal(ctx context.Context, path string) ([]byte, bool, error) {
	pin, ok, err := s.pool.Fetch(ctx, path)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	defer pin.Release()
	out := make([]byte, len(pin.Bytes()))
	copy(out, pin.Bytes())
	return out, true, nil
}

// Retire deletes a superseded segment's files and invalidates its buffer
// pool entries, once no in-flight reader can still be pinned to it (§5).
func (s *Store) Retire(ctx context.Context, d Descriptor) error {
	metaPath := MetaPath(s.table, d.Level, d.FirstRow, d.NextRow)
	dataPath := DataPath(s.table, d.Level, d.FirstRow, d.NextRow)
	sealPath := SealPath(s.table, d.Level, d.FirstRow, d.NextRow)
	s.pool.Invalidate(metaPath)
	s.pool.Invalidate(dataPath)

	if err := s.store.Delete(ctx, metaPath); err != nil {
		return xtdberrors.WrapStorage("segment.Retire(meta)", err, true)
	}
	if err := s.store.Delete(ctx, dataPath); err != nil {
		return xtdberrors.WrapStorage("segment.Retire(data)", err, true)
	}
	if err := s.store.Delete(ctx, sealPath); err != nil {
		return xtdberrors.WrapStorage("segment.Retire(seal)", err, true)
	}
	return nil
}
