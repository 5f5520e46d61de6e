package checker

import (
	"fmt"

	"github.com/cairn-backup/cairn/internal/cairn"
)

// Error is a diagnostic for a problem found while traversing the snapshot and
// tree graph.
type Error struct {
	TreeID cairn.ID
	Err    error
}

func (e *Error) Error() string {
	if !e.TreeID.IsNull() {
		return "tree " + e.TreeID.String() + ": " + e.Err.Error()
	}

	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PackError describes a problem with a pack file: missing from the backend,
// not referenced by any index, or with contents that do not match the index.
type PackError struct {
	ID        cairn.ID
	Orphaned  bool
	Truncated bool
	Err       error
}

func (e *PackError) Error() string {
	return "pack " + e.ID.String() + ": " + e.Err.Error()
}

func (e *PackError) Unwrap() error {
	return e.Err
}

// ErrCacheMismatch is reported when the cached copy of a file differs from
// the copy stored in the backend.
type ErrCacheMismatch struct {
	Type cairn.FileType
	ID   cairn.ID
}

func (e *ErrCacheMismatch) Error() string {
	return fmt.Sprintf("cached copy of %v file %v does not match the backend", e.Type, e.ID)
}

// ErrPackOffset is reported when the blobs of a pack descriptor, sorted by
// offset, are not exactly contiguous from offset zero.
type ErrPackOffset struct {
	PackID   cairn.ID
	BlobID   cairn.ID
	Recorded uint32
	Expected uint32
}

func (e *ErrPackOffset) Error() string {
	return fmt.Sprintf("pack %v: blob %v: offset mismatch: recorded %d, expected %d",
		e.PackID.Str(), e.BlobID.Str(), e.Recorded, e.Expected)
}

// ErrPackKind is reported when a blob's type differs from the type the pack
// descriptor declares. All blobs of a pack must share one type.
type ErrPackKind struct {
	PackID   cairn.ID
	BlobID   cairn.ID
	Declared cairn.BlobType
	Found    cairn.BlobType
}

func (e *ErrPackKind) Error() string {
	return fmt.Sprintf("pack %v: blob %v has type %v, pack is declared as %v",
		e.PackID.Str(), e.BlobID.Str(), e.Found, e.Declared)
}

// ErrDuplicatePacks is reported when a pack is referenced by more than one
// index file. This is not an inconsistency, just an optimization opportunity.
type ErrDuplicatePacks struct {
	PackID  cairn.ID
	Indexes cairn.IDSet
}

func (e *ErrDuplicatePacks) Error() string {
	return fmt.Sprintf("pack %v contained in several indexes: %v", e.PackID, e.Indexes)
}
