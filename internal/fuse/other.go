//go:build darwin || freebsd || linux

package fuse

import (
	"context"

	"github.com/anacrolix/fuse"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/vfs"
)

// other covers the node types without readable content: devices, fifos and
// sockets. They only carry attributes.
type other struct {
	vfs   *vfs.FS
	node  *cairn.Node
	inode uint64
}

func (o *other) Attr(_ context.Context, a *fuse.Attr) error {
	applyAttr(a, o.vfs.Attr(o.node), o.inode)
	return nil
}
