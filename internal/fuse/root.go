//go:build darwin || freebsd || linux

package fuse

import (
	"github.com/anacrolix/fuse/fs"

	"github.com/cairn-backup/cairn/internal/vfs"
)

// Root is the entry point the FUSE server serves from.
type Root struct {
	vfs *vfs.FS
}

// statically ensure that Root implements the required interface
var _ = fs.FS(&Root{})

// NewRoot returns a FUSE filesystem serving the given virtual filesystem.
func NewRoot(v *vfs.FS) *Root {
	return &Root{vfs: v}
}

func (r *Root) Root() (fs.Node, error) {
	return newDir(r.vfs, r.vfs.Root(), 1), nil
}
