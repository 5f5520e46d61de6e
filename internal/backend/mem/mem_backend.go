// Package mem implements a backend that keeps all files in a map in memory.
// It is used by tests and as the fixture store for repository checks.
package mem

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
)

type entry struct {
	buf []byte
	sum uint64
}

type memMap map[cairn.Handle]entry

// make sure that MemoryBackend implements the read surface
var _ cairn.ReadBackend = &MemoryBackend{}

var errNotFound = errors.New("not found")
var errTooSmall = errors.New("access beyond end of file")

const connectionCount = 2

// MemoryBackend stores all data in a map in memory.
type MemoryBackend struct {
	data memMap
	m    sync.Mutex
}

// New returns a new backend that saves all data in a map in memory.
func New() *MemoryBackend {
	be := &MemoryBackend{
		data: make(memMap),
	}

	debug.Log("created new memory backend")

	return be
}

// IsNotExist returns true if the file does not exist.
func (be *MemoryBackend) IsNotExist(err error) bool {
	return errors.Is(err, errNotFound)
}

// Save stores buf under the given handle. The content checksum is recorded
// and verified again when the file is read back.
func (be *MemoryBackend) Save(ctx context.Context, h cairn.Handle, buf []byte) error {
	be.m.Lock()
	defer be.m.Unlock()

	if _, ok := be.data[h]; ok {
		return errors.New("file already exists")
	}

	stored := make([]byte, len(buf))
	copy(stored, buf)
	be.data[h] = entry{buf: stored, sum: xxhash.Sum64(stored)}

	return ctx.Err()
}

// Corrupt flips a byte of the file at h and re-records the checksum so that
// the file stays readable. Tests use it to simulate silent corruption.
func (be *MemoryBackend) Corrupt(h cairn.Handle) error {
	be.m.Lock()
	defer be.m.Unlock()

	e, ok := be.data[h]
	if !ok {
		return errNotFound
	}

	e.buf[0] ^= 0xff
	e.sum = xxhash.Sum64(e.buf)
	be.data[h] = e

	return nil
}

// Load runs fn with a reader that yields the contents of the file at h at the
// given offset.
func (be *MemoryBackend) Load(ctx context.Context, h cairn.Handle, length int, offset int64, fn func(rd io.Reader) error) error {
	rd, err := be.openReader(ctx, h, length, offset)
	if err != nil {
		return err
	}

	return fn(rd)
}

func (be *MemoryBackend) openReader(ctx context.Context, h cairn.Handle, length int, offset int64) (io.Reader, error) {
	be.m.Lock()
	defer be.m.Unlock()

	e, ok := be.data[h]
	if !ok {
		return nil, errNotFound
	}

	// sanity check, the store must still match the checksum taken at Save
	if xxhash.Sum64(e.buf) != e.sum {
		return nil, errors.Errorf("checksum mismatch for %v", h)
	}

	if offset+int64(length) > int64(len(e.buf)) {
		return nil, errTooSmall
	}

	buf := e.buf[offset:]
	if length > 0 {
		buf = buf[:length]
	}

	return bytes.NewReader(buf), ctx.Err()
}

// List runs fn for each file in the backend which has the type t.
func (be *MemoryBackend) List(ctx context.Context, t cairn.FileType, fn func(cairn.ID, int64) error) error {
	entries := make(map[string]int64)

	be.m.Lock()
	for h, e := range be.data {
		if h.Type != t {
			continue
		}

		entries[h.Name] = int64(len(e.buf))
	}
	be.m.Unlock()

	for name, size := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		id, err := cairn.ParseID(name)
		if err != nil {
			return err
		}

		if err := fn(id, size); err != nil {
			return err
		}
	}

	return ctx.Err()
}

// Location returns a location string.
func (be *MemoryBackend) Location() string {
	return "RAM"
}

// Connections returns the maximum number of concurrent backend operations.
func (be *MemoryBackend) Connections() uint {
	return connectionCount
}

// Delete removes all data in the backend.
func (be *MemoryBackend) Delete(ctx context.Context) error {
	be.m.Lock()
	defer be.m.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	be.data = make(memMap)
	return nil
}

// Close closes the backend.
func (be *MemoryBackend) Close() error {
	return nil
}
