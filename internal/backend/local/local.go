// Package local implements a read-only backend for a repository stored in a
// local directory. Pack files live in data/<prefix>/, snapshot and index
// files in flat subdirectories.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
)

// Local is a read-only backend in a local directory.
type Local struct {
	path string
}

// make sure that Local implements the read surface
var _ cairn.ReadBackend = &Local{}

const connectionCount = 2

// Open opens the local backend at dir.
func Open(dir string) (*Local, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, "Stat")
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("%v is not a directory", dir)
	}

	debug.Log("opened local backend at %v", dir)
	return &Local{path: dir}, nil
}

func (b *Local) basedir(t cairn.FileType) string {
	switch t {
	case cairn.PackFile:
		return filepath.Join(b.path, "data")
	case cairn.SnapshotFile:
		return filepath.Join(b.path, "snapshots")
	case cairn.IndexFile:
		return filepath.Join(b.path, "index")
	}

	panic("invalid file type")
}

func (b *Local) filename(h cairn.Handle) string {
	if h.Type == cairn.PackFile {
		// pack files are spread over 256 prefix directories
		return filepath.Join(b.basedir(h.Type), h.Name[:2], h.Name)
	}

	return filepath.Join(b.basedir(h.Type), h.Name)
}

// Location returns the location of the backend.
func (b *Local) Location() string {
	return b.path
}

// Connections returns the maximum number of concurrent backend operations.
func (b *Local) Connections() uint {
	return connectionCount
}

// IsNotExist returns true if the error is caused by a missing file.
func (b *Local) IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// Load runs fn with a reader for the file at h.
func (b *Local) Load(ctx context.Context, h cairn.Handle, length int, offset int64, fn func(rd io.Reader) error) error {
	if err := h.Valid(); err != nil {
		return err
	}

	f, err := os.Open(b.filename(h))
	if err != nil {
		return errors.Wrap(err, "Open")
	}
	defer func() {
		_ = f.Close()
	}()

	if offset > 0 {
		if _, err = f.Seek(offset, io.SeekStart); err != nil {
			return errors.Wrap(err, "Seek")
		}
	}

	var rd io.Reader = f
	if length > 0 {
		rd = io.LimitReader(f, int64(length))
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return fn(rd)
}

// List runs fn for each file of type t.
func (b *Local) List(ctx context.Context, t cairn.FileType, fn func(cairn.ID, int64) error) error {
	basedir := b.basedir(t)

	return filepath.WalkDir(basedir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// an empty repository has no data dir yet
			if path == basedir && errors.Is(err, os.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}

		if d.IsDir() {
			return nil
		}

		id, err := cairn.ParseID(d.Name())
		if err != nil {
			debug.Log("ignoring file %v: %v", path, err)
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return errors.Wrap(err, "Info")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fn(id, fi.Size())
	})
}

// Close closes the backend.
func (b *Local) Close() error {
	return nil
}
