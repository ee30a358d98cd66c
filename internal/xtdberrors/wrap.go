package xtdberrors

import "errors"

// WrapStorage translates a collaborator (object store / buffer pool) read or
// write failure into the §7 StorageError taxonomy, in the same
// WrapBlobNotFound style the teacher uses in massifs/blobnotfounderr.go: the
// original error is preserved as Cause so nothing is lost, but callers that
// only care about the taxonomy can match with errors.Is(err, ErrStorageRead).
func WrapStorage(op string, err error, write bool) error {
	if err == nil {
		return nil
	}
	sentinel := ErrStorageRead
	if write {
		sentinel = ErrStorageWrite
	}
	return New(KindStorage, op, sentinel, err)
}

// IsStorageError reports whether err is, or wraps, a StorageError.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageRead) || errors.Is(err, ErrStorageWrite)
}
