package vfs

import (
	"context"
	"sort"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
)

// openFile is one entry of the handle table: the immutable content blob list
// of a file, prepared for random access.
type openFile struct {
	blobs cairn.IDs

	// cumsize[i] is the size of the first i blobs, so cumsize[len(blobs)]
	// is the file size
	cumsize []uint64
}

func (f *openFile) size() uint64 {
	return f.cumsize[len(f.cumsize)-1]
}

// Open prepares the node's content for reading and returns a fresh file
// handle. Only regular files can be opened; everything else returns
// ErrUnsupported. Handle identifiers are reused after release.
func (fs *FS) Open(_ context.Context, node *cairn.Node) (uint64, error) {
	if node.Type != cairn.NodeTypeFile {
		return 0, ErrUnsupported
	}

	var bytes uint64
	cumsize := make([]uint64, 1, len(node.Content)+1)
	for _, id := range node.Content {
		size, ok := fs.repo.LookupBlobSize(cairn.BlobHandle{ID: id, Type: cairn.DataBlob})
		if !ok {
			return 0, errors.Errorf("blob %v not found in index", id.Str())
		}
		bytes += uint64(size)
		cumsize = append(cumsize, bytes)
	}

	if bytes != node.Size {
		debug.Log("sizes do not match: node %d, blobs %d", node.Size, bytes)
	}

	f := &openFile{
		blobs:   node.Content,
		cumsize: cumsize,
	}

	fs.m.Lock()
	defer fs.m.Unlock()

	var fh uint64
	if n := len(fs.freeHandles); n > 0 {
		fh = fs.freeHandles[n-1]
		fs.freeHandles = fs.freeHandles[:n-1]
	} else {
		fh = fs.nextHandle
		fs.nextHandle++
	}
	fs.handles[fh] = f

	debug.Log("open %v, handle %d, %d blobs", node.Name, fh, len(f.blobs))

	return fh, nil
}

// Read returns up to size bytes of the file at fh, starting at offset. Only
// the blobs overlapping the requested window are fetched. An offset at or
// beyond the end of the file yields an empty result. Reads on distinct
// handles run concurrently; an unknown or released handle returns
// ErrNotFound.
func (fs *FS) Read(ctx context.Context, fh uint64, offset int64, size int) ([]byte, error) {
	fs.m.RLock()
	defer fs.m.RUnlock()

	f, ok := fs.handles[fh]
	if !ok {
		return nil, ErrNotFound
	}

	if offset < 0 {
		return nil, errors.New("negative offset")
	}
	if uint64(offset) >= f.size() {
		return []byte{}, nil
	}
	if uint64(offset)+uint64(size) > f.size() {
		size = int(f.size() - uint64(offset))
	}

	// first blob overlapping the window
	i := sort.Search(len(f.blobs), func(i int) bool {
		return f.cumsize[i+1] > uint64(offset)
	})
	off := offset - int64(f.cumsize[i])

	dst := make([]byte, 0, size)
	remaining := size
	for ; remaining > 0 && i < len(f.blobs); i++ {
		blob, err := fs.getBlobAt(ctx, f.blobs[i])
		if err != nil {
			return nil, err
		}

		part := blob[off:]
		if len(part) > remaining {
			part = part[:remaining]
		}
		dst = append(dst, part...)
		remaining -= len(part)
		off = 0
	}

	return dst, nil
}

func (fs *FS) getBlobAt(ctx context.Context, id cairn.ID) ([]byte, error) {
	if blob, ok := fs.blobCache.Get(id); ok {
		return blob, nil
	}

	blob, err := fs.repo.LoadBlob(ctx, cairn.DataBlob, id)
	if err != nil {
		debug.Log("LoadBlob(%v) failed: %v", id, err)
		return nil, err
	}
	fs.blobCache.Add(id, blob)

	return blob, nil
}

// Release removes the handle from the table and recycles its identifier.
// Releasing an unknown handle returns ErrNotFound.
func (fs *FS) Release(fh uint64) error {
	fs.m.Lock()
	defer fs.m.Unlock()

	if _, ok := fs.handles[fh]; !ok {
		return ErrNotFound
	}

	delete(fs.handles, fh)
	fs.freeHandles = append(fs.freeHandles, fh)

	debug.Log("release handle %d", fh)

	return nil
}
