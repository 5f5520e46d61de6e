package mem_test

import (
	"context"
	"io"
	"testing"

	"github.com/cairn-backup/cairn/internal/backend/mem"
	"github.com/cairn-backup/cairn/internal/cairn"
	rtest "github.com/cairn-backup/cairn/internal/test"
)

func TestMemBackend(t *testing.T) {
	be := mem.New()
	ctx := context.Background()

	buf := rtest.Random(23, 200)
	id := cairn.Hash(buf)
	h := cairn.Handle{Type: cairn.PackFile, Name: id.String()}

	rtest.OK(t, be.Save(ctx, h, buf))

	// whole file
	data, err := cairn.LoadAll(ctx, be, h)
	rtest.OK(t, err)
	rtest.Equals(t, buf, data)

	// ranged read
	err = be.Load(ctx, h, 50, 100, func(rd io.Reader) error {
		part, err := io.ReadAll(rd)
		if err != nil {
			return err
		}
		rtest.Equals(t, buf[100:150], part)
		return nil
	})
	rtest.OK(t, err)

	// read beyond end of file
	err = be.Load(ctx, h, 100, 150, func(rd io.Reader) error { return nil })
	rtest.Assert(t, err != nil, "read beyond end of file succeeded")

	// list
	var listed []cairn.ID
	rtest.OK(t, be.List(ctx, cairn.PackFile, func(id cairn.ID, size int64) error {
		listed = append(listed, id)
		rtest.Equals(t, int64(len(buf)), size)
		return nil
	}))
	rtest.Equals(t, []cairn.ID{id}, listed)

	// missing file
	missing := cairn.Handle{Type: cairn.PackFile, Name: cairn.NewRandomID().String()}
	_, err = cairn.LoadAll(ctx, be, missing)
	rtest.Assert(t, be.IsNotExist(err), "expected not-exist error, got %v", err)
}

func TestMemBackendCorrupt(t *testing.T) {
	be := mem.New()
	ctx := context.Background()

	buf := rtest.Random(42, 100)
	h := cairn.Handle{Type: cairn.SnapshotFile, Name: cairn.Hash(buf).String()}
	rtest.OK(t, be.Save(ctx, h, buf))
	rtest.OK(t, be.Corrupt(h))

	data, err := cairn.LoadAll(ctx, be, h)
	rtest.OK(t, err)
	rtest.Assert(t, data[0] != buf[0], "content was not corrupted")
	rtest.Equals(t, buf[1:], data[1:])
}
