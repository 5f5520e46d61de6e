//go:build darwin || freebsd || linux

package fuse

import (
	"testing"

	"github.com/anacrolix/fuse"

	"github.com/cairn-backup/cairn/internal/cairn"
	rtest "github.com/cairn-backup/cairn/internal/test"
	"github.com/cairn-backup/cairn/internal/vfs"
)

func TestInodeFromNode(t *testing.T) {
	a := &cairn.Node{Name: "foo"}
	b := &cairn.Node{Name: "bar"}

	rtest.Assert(t, inodeFromNode(1, a) != inodeFromNode(1, b),
		"inodes for different names must differ")
	rtest.Assert(t, inodeFromNode(1, a) != inodeFromNode(2, a),
		"inodes for different parents must differ")
	rtest.Equals(t, inodeFromNode(1, a), inodeFromNode(1, a))
	rtest.Assert(t, inodeFromNode(1, a) != 0, "inode must not be zero")
}

func TestMapError(t *testing.T) {
	rtest.OK(t, mapError(nil))
	rtest.Equals(t, fuse.ENOENT, mapError(vfs.ErrNotFound))
}

func TestDirentType(t *testing.T) {
	rtest.Equals(t, fuse.DT_Dir, direntType(&cairn.Node{Type: cairn.NodeTypeDir}))
	rtest.Equals(t, fuse.DT_File, direntType(&cairn.Node{Type: cairn.NodeTypeFile}))
	rtest.Equals(t, fuse.DT_Link, direntType(&cairn.Node{Type: cairn.NodeTypeSymlink}))
	rtest.Equals(t, fuse.DT_FIFO, direntType(&cairn.Node{Type: cairn.NodeTypeFifo}))
}
