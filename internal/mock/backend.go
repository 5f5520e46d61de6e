// Package mock provides a configurable read backend for tests.
package mock

import (
	"context"
	"io"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/errors"
)

// Backend implements a mock backend whose behavior is defined by the Fn
// fields. Every operation without a configured function returns "not
// implemented".
type Backend struct {
	CloseFn       func() error
	IsNotExistFn  func(err error) bool
	OpenReaderFn  func(ctx context.Context, h cairn.Handle, length int, offset int64) (io.Reader, error)
	ListFn        func(ctx context.Context, t cairn.FileType, fn func(cairn.ID, int64) error) error
	LocationFn    func() string
	ConnectionsFn func() uint
}

// make sure that Backend implements the read surface
var _ cairn.ReadBackend = &Backend{}

// NewBackend returns a new mock Backend instance.
func NewBackend() *Backend {
	return &Backend{}
}

// Close the backend.
func (m *Backend) Close() error {
	if m.CloseFn == nil {
		return nil
	}

	return m.CloseFn()
}

// Location returns a location string.
func (m *Backend) Location() string {
	if m.LocationFn == nil {
		return ""
	}

	return m.LocationFn()
}

// Connections returns the maximum number of concurrent backend operations.
func (m *Backend) Connections() uint {
	if m.ConnectionsFn == nil {
		return 2
	}

	return m.ConnectionsFn()
}

// IsNotExist returns true if the error is caused by a missing file.
func (m *Backend) IsNotExist(err error) bool {
	if m.IsNotExistFn == nil {
		return false
	}

	return m.IsNotExistFn(err)
}

// Load runs fn with a reader that yields the contents of the file at h at the
// given offset.
func (m *Backend) Load(ctx context.Context, h cairn.Handle, length int, offset int64, fn func(rd io.Reader) error) error {
	if m.OpenReaderFn == nil {
		return errors.New("not implemented")
	}

	rd, err := m.OpenReaderFn(ctx, h, length, offset)
	if err != nil {
		return err
	}

	return fn(rd)
}

// List runs fn for each file of type t.
func (m *Backend) List(ctx context.Context, t cairn.FileType, fn func(cairn.ID, int64) error) error {
	if m.ListFn == nil {
		return errors.New("not implemented")
	}

	return m.ListFn(ctx, t, fn)
}
