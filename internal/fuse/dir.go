//go:build darwin || freebsd || linux

package fuse

import (
	"context"
	"os"

	"github.com/anacrolix/fuse"
	"github.com/anacrolix/fuse/fs"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/vfs"
)

// statically ensure that *dir implements those interfaces
var _ = fs.HandleReadDirAller(&dir{})
var _ = fs.NodeStringLookuper(&dir{})

type dir struct {
	vfs   *vfs.FS
	node  *cairn.Node
	inode uint64
}

func newDir(v *vfs.FS, node *cairn.Node, inode uint64) *dir {
	return &dir{vfs: v, node: node, inode: inode}
}

// newFSNode wraps a tree node in the matching FUSE node type.
func newFSNode(v *vfs.FS, node *cairn.Node, inode uint64) fs.Node {
	switch node.Type {
	case cairn.NodeTypeDir:
		return newDir(v, node, inode)
	case cairn.NodeTypeFile:
		return &file{vfs: v, node: node, inode: inode}
	case cairn.NodeTypeSymlink:
		return &link{vfs: v, node: node, inode: inode}
	default:
		return &other{vfs: v, node: node, inode: inode}
	}
}

func (d *dir) Attr(_ context.Context, a *fuse.Attr) error {
	applyAttr(a, d.vfs.Attr(d.node), d.inode)
	a.Mode = os.ModeDir | a.Mode
	return nil
}

func (d *dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	debug.Log("Lookup(%v) in %v", name, d.node.Name)

	entries, err := d.vfs.ReadDir(ctx, d.node)
	if err != nil {
		return nil, mapError(err)
	}

	for _, node := range entries {
		if node.Name == name {
			return newFSNode(d.vfs, node, inodeFromNode(d.inode, node)), nil
		}
	}

	return nil, fuse.ENOENT
}

func (d *dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	debug.Log("ReadDirAll(%v)", d.node.Name)

	entries, err := d.vfs.ReadDir(ctx, d.node)
	if err != nil {
		return nil, mapError(err)
	}

	ret := make([]fuse.Dirent, 0, len(entries)+2)
	ret = append(ret,
		fuse.Dirent{Inode: d.inode, Name: ".", Type: fuse.DT_Dir},
		fuse.Dirent{Inode: d.inode, Name: "..", Type: fuse.DT_Dir},
	)

	for _, node := range entries {
		ret = append(ret, fuse.Dirent{
			Inode: inodeFromNode(d.inode, node),
			Name:  node.Name,
			Type:  direntType(node),
		})
	}

	return ret, nil
}

func (d *dir) Listxattr(_ context.Context, req *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	return listxattr(d.vfs, d.node, req, resp)
}

func (d *dir) Getxattr(_ context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	return getxattr(d.vfs, d.node, req, resp)
}
