package checker

import (
	"bytes"
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
	"github.com/cairn-backup/cairn/internal/pack"
)

// ReadData loads every pack file referenced by the index and verifies its
// contents: the file hash must match the pack ID, every indexed blob must
// decode to plaintext matching its blob ID, and the pack header must agree
// with the index. Packs are checked with as many workers as the backend has
// connections. Findings are sent to errChan, which is closed when done.
func (c *Checker) ReadData(ctx context.Context, errChan chan<- error) {
	defer close(errChan)

	packBlobs := make(map[cairn.ID][]cairn.Blob)
	c.masterIndex.Each(func(pb cairn.PackedBlob) {
		packBlobs[pb.PackID] = append(packBlobs[pb.PackID], pb.Blob)
	})

	debug.Log("reading %d packs", len(packBlobs))

	wg, wgCtx := errgroup.WithContext(ctx)
	wg.SetLimit(int(c.repo.Connections()))

	for packID, blobs := range packBlobs {
		packID, blobs := packID, blobs
		wg.Go(func() error {
			return c.checkPack(wgCtx, packID, blobs, errChan)
		})
	}

	if err := wg.Wait(); err != nil && ctx.Err() == nil {
		_ = sendError(ctx, errChan, errors.Fatalf("reading pack files failed: %v", err))
	}
}

// checkPack verifies one pack file against its index entries. Findings about
// the pack are diagnostics; only broken I/O is returned as an error.
func (c *Checker) checkPack(ctx context.Context, id cairn.ID, blobs []cairn.Blob, errChan chan<- error) error {
	debug.Log("check pack %v, %d blobs", id.Str(), len(blobs))

	h := cairn.Handle{Type: cairn.PackFile, Name: id.String()}
	buf, err := cairn.LoadAll(ctx, c.repo.Backend(), h)
	if err != nil {
		return errors.Wrapf(err, "load %v", h)
	}

	if hash := cairn.Hash(buf); !hash.Equal(id) {
		if err := sendError(ctx, errChan, &PackError{ID: id,
			Err: errors.Errorf("file content does not match its ID, got %v", hash.Str())}); err != nil {
			return err
		}
	}

	sort.Slice(blobs, func(i, j int) bool {
		return blobs[i].Offset < blobs[j].Offset
	})

	for _, blob := range blobs {
		if int64(blob.Offset)+int64(blob.Length) > int64(len(buf)) {
			if err := sendError(ctx, errChan, &PackError{ID: id, Truncated: true,
				Err: errors.Errorf("blob %v extends beyond end of file", blob.ID.Str())}); err != nil {
				return err
			}
			continue
		}

		ciphertext := buf[blob.Offset : blob.Offset+blob.Length]
		if _, err := c.repo.DecodeBlob(ciphertext, blob.BlobHandle); err != nil {
			if err := sendError(ctx, errChan, &PackError{ID: id,
				Err: errors.Wrapf(err, "blob %v", blob.ID.Str())}); err != nil {
				return err
			}
		}
	}

	// the trailing header must parse and list every indexed blob
	hdr, err := pack.List(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return sendError(ctx, errChan, &PackError{ID: id, Err: errors.Wrap(err, "parse header")})
	}

	inHeader := cairn.NewIDSet()
	for _, entry := range hdr {
		inHeader.Insert(entry.ID)
	}

	for _, blob := range blobs {
		if !inHeader.Has(blob.ID) {
			if err := sendError(ctx, errChan, &PackError{ID: id,
				Err: errors.Errorf("blob %v not listed in pack header", blob.ID.Str())}); err != nil {
				return err
			}
		}
	}

	return nil
}
