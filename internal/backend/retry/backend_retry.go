// Package retry wraps a read backend and retries failing operations with an
// exponential backoff.
package retry

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
)

// Backend retries operations on the wrapped backend in case of an error with
// a backoff.
type Backend struct {
	cairn.ReadBackend
	MaxElapsedTime time.Duration
	Report         func(msg string, err error, d time.Duration)
}

// statically ensure that Backend implements the read surface.
var _ cairn.ReadBackend = &Backend{}

// New wraps be with a backend that retries operations after a backoff.
// report is called with a description and the error, if one occurred.
func New(be cairn.ReadBackend, maxElapsedTime time.Duration, report func(string, error, time.Duration)) *Backend {
	return &Backend{
		ReadBackend:    be,
		MaxElapsedTime: maxElapsedTime,
		Report:         report,
	}
}

func (be *Backend) retry(ctx context.Context, msg string, f func() error) error {
	// Don't do anything when called with an already cancelled context. There
	// would be no retries in that case either.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = be.MaxElapsedTime

	err := backoff.RetryNotify(
		func() error {
			err := f()
			// a file that does not exist cannot appear by retrying
			if err != nil && be.ReadBackend.IsNotExist(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(bo, 10), ctx),
		func(err error, d time.Duration) {
			debug.Log("%v failed: %v, retrying in %v", msg, err, d)
			if be.Report != nil {
				be.Report(msg, err, d)
			}
		},
	)

	return err
}

// Load retries the wrapped Load.
func (be *Backend) Load(ctx context.Context, h cairn.Handle, length int, offset int64, fn func(rd io.Reader) error) error {
	return be.retry(ctx, "Load("+h.String()+")", func() error {
		return be.ReadBackend.Load(ctx, h, length, offset, fn)
	})
}

// List retries the wrapped List. The callback fn may be invoked for the same
// file multiple times when a listing is retried; callers must deduplicate by
// ID if that matters to them.
func (be *Backend) List(ctx context.Context, t cairn.FileType, fn func(cairn.ID, int64) error) error {
	// extra error variable to distinguish between a broken listing and an
	// aborting callback
	var consumerErr error

	err := be.retry(ctx, "List("+t.String()+")", func() error {
		return be.ReadBackend.List(ctx, t, func(id cairn.ID, size int64) error {
			if err := fn(id, size); err != nil {
				consumerErr = err
				return backoff.Permanent(err)
			}
			return nil
		})
	})

	if consumerErr != nil {
		return consumerErr
	}

	return err
}
