package cairn

import (
	"context"
	"io"
)

// Lister lists files of a given type together with their size.
type Lister interface {
	// List runs fn for each file in the backend which has the type t. When
	// an error occurs (or fn returns an error), List stops and returns it.
	List(ctx context.Context, t FileType, fn func(id ID, size int64) error) error
}

// Loader loads (parts of) files from a backend.
type Loader interface {
	// Load runs fn with a reader that yields the contents of the file at h
	// at the given offset. If length is larger than zero, only a portion of
	// the file is read.
	//
	// The function fn may be called multiple times during the same Load
	// invocation and therefore must be idempotent.
	Load(ctx context.Context, h Handle, length int, offset int64, fn func(rd io.Reader) error) error
}

// ReadBackend is the read surface of the authoritative store. Implementations
// may be slow or remote; they are expected to enforce their own timeouts.
type ReadBackend interface {
	Lister
	Loader

	// Location returns a string that describes the type and location of the
	// repository.
	Location() string

	// Connections returns the maximum number of concurrent backend
	// operations.
	Connections() uint

	// IsNotExist returns true if the error was caused by a non-existing
	// file in the backend. The argument may be a wrapped error.
	IsNotExist(err error) bool

	// Close the backend.
	Close() error
}

// Cache mirrors the read surface of a ReadBackend with a local, byte-identical
// copy of selected files. A nil Cache is legal and means "no cache
// configured".
type Cache interface {
	Lister
	Loader
}

// LoadAll reads the complete file referenced by h into a new byte slice.
func LoadAll(ctx context.Context, be Loader, h Handle) ([]byte, error) {
	var buf []byte

	err := be.Load(ctx, h, 0, 0, func(rd io.Reader) error {
		var err error
		// Load may call the function multiple times, reset the buffer
		buf = buf[:0]
		buf, err = appendAll(buf, rd)
		return err
	})
	if err != nil {
		return nil, err
	}

	return buf, nil
}

func appendAll(buf []byte, rd io.Reader) ([]byte, error) {
	for {
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
		n, err := rd.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return buf, err
		}
	}
}
