//go:build darwin || freebsd || linux

package fuse

import (
	"github.com/anacrolix/fuse"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/vfs"
)

func listxattr(v *vfs.FS, node *cairn.Node, req *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	buf, _ := v.ListXattr(node, false)
	resp.Xattr = buf
	return nil
}

func getxattr(v *vfs.FS, node *cairn.Node, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	value, _, err := v.GetXattr(node, req.Name, false)
	if err != nil {
		return fuse.ErrNoXattr
	}
	resp.Xattr = value
	return nil
}
