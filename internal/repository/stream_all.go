package repository

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/errors"
	"github.com/cairn-backup/cairn/internal/ui/progress"
)

// StreamAll decodes all files of type t into values of type T and calls fn
// for each of them. Files are loaded with as many goroutines as the backend
// has connections; it is guaranteed that fn is not run concurrently. If fn
// returns an error, StreamAll is cancelled and returns this error.
func StreamAll[T any](ctx context.Context, r *Repository, t cairn.FileType, p *progress.Counter, fn func(id cairn.ID, v T) error) error {
	var m sync.Mutex

	wg, ctx := errgroup.WithContext(ctx)
	ch := make(chan cairn.ID)

	wg.Go(func() error {
		defer close(ch)
		return r.be.List(ctx, t, func(id cairn.ID, _ int64) error {
			select {
			case ch <- id:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	})

	for i := uint(0); i < r.Connections(); i++ {
		wg.Go(func() error {
			for id := range ch {
				buf, err := r.LoadUnpacked(ctx, t, id)
				if err != nil {
					return err
				}

				var v T
				if err := json.Unmarshal(buf, &v); err != nil {
					return errors.Wrapf(err, "unmarshal %v", cairn.Handle{Type: t, Name: id.String()})
				}

				m.Lock()
				err = fn(id, v)
				p.Add(1)
				m.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	return wg.Wait()
}
