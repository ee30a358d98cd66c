//go:build unix

package objectstore

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// MmapReadOnly maps path read-only for random access, mirroring the
// teacher's `mmap/mmap_unix.go` use of unix.Mmap with MADV_RANDOM: segment
// data pages are fetched by random trie-directed offset, never
// sequentially, so the buffer pool prefers random-access advice over the
// OS's default readahead.
func (l *LocalFS) MmapReadOnly(path string) ([]byte, func() error, error) {
	f, err := os.Open(l.abs(path))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if fi.Size() == 0 {
		return []byte{}, func() error { return nil }, nil
	}

	b, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	if err := unix.Madvise(b, syscall.MADV_RANDOM); err != nil && err != syscall.ENOSYS {
		_ = unix.Munmap(b)
		return nil, nil, err
	}
	return b, func() error { return unix.Munmap(b) }, nil
}
