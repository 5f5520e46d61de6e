//go:build darwin || freebsd || linux

package fuse

import (
	"context"

	"github.com/anacrolix/fuse"
	"github.com/anacrolix/fuse/fs"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/vfs"
)

// statically ensure that *link implements the required interface
var _ = fs.NodeReadlinker(&link{})

type link struct {
	vfs   *vfs.FS
	node  *cairn.Node
	inode uint64
}

func (l *link) Attr(_ context.Context, a *fuse.Attr) error {
	applyAttr(a, l.vfs.Attr(l.node), l.inode)
	return nil
}

func (l *link) Readlink(_ context.Context, _ *fuse.ReadlinkRequest) (string, error) {
	target, err := l.vfs.Readlink(l.node)
	if err != nil {
		return "", mapError(err)
	}
	return target, nil
}

func (l *link) Listxattr(_ context.Context, req *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	return listxattr(l.vfs, l.node, req, resp)
}

func (l *link) Getxattr(_ context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	return getxattr(l.vfs, l.node, req, resp)
}
