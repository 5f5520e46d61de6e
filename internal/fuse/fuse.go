//go:build darwin || freebsd || linux

// Package fuse maps the virtual filesystem onto the kernel FUSE protocol.
// All filesystem semantics live in internal/vfs; this package only adapts
// node types, attributes and the error taxonomy to the mount facility.
package fuse

import (
	"encoding/binary"
	"hash/fnv"
	"syscall"

	"github.com/anacrolix/fuse"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/errors"
	"github.com/cairn-backup/cairn/internal/vfs"
)

// inodeFromNode derives a stable inode number from the parent inode and the
// node name.
func inodeFromNode(parent uint64, node *cairn.Node) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], parent)

	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(node.Name))
	inode := h.Sum64()
	if inode == 0 {
		inode = 1
	}
	return inode
}

// mapError translates the vfs error taxonomy to FUSE errnos.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, vfs.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, vfs.ErrUnsupported):
		return fuse.Errno(syscall.ENOTSUP)
	default:
		return err
	}
}

// applyAttr fills a FUSE attribute record from a vfs attribute record.
func applyAttr(a *fuse.Attr, attr vfs.Attr, inode uint64) {
	a.Inode = inode
	a.Mode = attr.Mode
	a.Size = attr.Size
	a.Uid = attr.UID
	a.Gid = attr.GID
	a.Atime = attr.Atime
	a.Mtime = attr.Mtime
	a.Ctime = attr.Ctime
	a.Nlink = uint32(attr.Nlink)
	a.Rdev = uint32(attr.Rdev)
	a.Blocks = (attr.Size + 511) / 512
}

func direntType(node *cairn.Node) fuse.DirentType {
	switch node.Type {
	case cairn.NodeTypeDir:
		return fuse.DT_Dir
	case cairn.NodeTypeFile:
		return fuse.DT_File
	case cairn.NodeTypeSymlink:
		return fuse.DT_Link
	case cairn.NodeTypeDev:
		return fuse.DT_Block
	case cairn.NodeTypeCharDev:
		return fuse.DT_Char
	case cairn.NodeTypeFifo:
		return fuse.DT_FIFO
	case cairn.NodeTypeSocket:
		return fuse.DT_Socket
	}
	return fuse.DT_Unknown
}
