//go:build darwin || freebsd || linux

package fuse

import (
	"context"

	"github.com/anacrolix/fuse"
	"github.com/anacrolix/fuse/fs"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/vfs"
)

// statically ensure that *file and *fileHandle implement those interfaces
var _ = fs.NodeOpener(&file{})
var _ = fs.HandleReader(&fileHandle{})
var _ = fs.HandleReleaser(&fileHandle{})

type file struct {
	vfs   *vfs.FS
	node  *cairn.Node
	inode uint64
}

func (f *file) Attr(_ context.Context, a *fuse.Attr) error {
	applyAttr(a, f.vfs.Attr(f.node), f.inode)
	return nil
}

func (f *file) Open(ctx context.Context, _ *fuse.OpenRequest, _ *fuse.OpenResponse) (fs.Handle, error) {
	debug.Log("Open(%v)", f.node.Name)

	fh, err := f.vfs.Open(ctx, f.node)
	if err != nil {
		return nil, mapError(err)
	}

	return &fileHandle{vfs: f.vfs, fh: fh}, nil
}

func (f *file) Listxattr(_ context.Context, req *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	return listxattr(f.vfs, f.node, req, resp)
}

func (f *file) Getxattr(_ context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	return getxattr(f.vfs, f.node, req, resp)
}

type fileHandle struct {
	vfs *vfs.FS
	fh  uint64
}

func (h *fileHandle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf, err := h.vfs.Read(ctx, h.fh, req.Offset, req.Size)
	if err != nil {
		debug.Log("Read(%d, %d, %d) failed: %v", h.fh, req.Offset, req.Size, err)
		return mapError(err)
	}

	resp.Data = buf
	return nil
}

func (h *fileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	return mapError(h.vfs.Release(h.fh))
}
