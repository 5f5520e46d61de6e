// Package vfs exposes the tree of a repository snapshot as a read-only
// virtual filesystem: path resolution, POSIX style attributes, directory
// listings, extended attributes and random-access reads over the content
// blobs of a file. The fuse layer maps this API onto the kernel protocol.
package vfs

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cairn-backup/cairn/internal/bloblru"
	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
	"github.com/cairn-backup/cairn/internal/repository"
)

// ErrNotFound is returned for a path component, file handle or extended
// attribute that does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnsupported is returned when an operation is requested on a node type
// that cannot support it, e.g. reading the content of a directory.
var ErrUnsupported = errors.New("operation not supported")

const blobCacheSize = 64 << 20

// FS serves the contents of one snapshot root tree.
type FS struct {
	repo  *repository.Repository
	root  cairn.ID
	start time.Time

	blobCache *bloblru.Cache

	m           sync.RWMutex
	handles     map[uint64]*openFile
	nextHandle  uint64
	freeHandles []uint64
}

// New returns a filesystem serving the tree with the given root ID.
func New(repo *repository.Repository, root cairn.ID) *FS {
	return &FS{
		repo:       repo,
		root:       root,
		start:      time.Now(),
		blobCache:  bloblru.New(blobCacheSize),
		handles:    make(map[uint64]*openFile),
		nextHandle: 1,
	}
}

// Root returns a synthetic directory node for the root tree.
func (fs *FS) Root() *cairn.Node {
	root := fs.root
	return &cairn.Node{
		Name:    "/",
		Type:    cairn.NodeTypeDir,
		Mode:    os.ModeDir | 0555,
		Subtree: &root,
	}
}

// Resolve descends from the root tree one path component per level and
// returns the node the path names. A path all of whose components exist but
// whose prefix is not a chain of directories is treated as absent.
func (fs *FS) Resolve(ctx context.Context, p string) (*cairn.Node, error) {
	node := fs.Root()

	for _, name := range strings.Split(p, "/") {
		if name == "" {
			continue
		}

		if node.Type != cairn.NodeTypeDir || node.Subtree == nil {
			return nil, ErrNotFound
		}

		tree, err := fs.repo.LoadTree(ctx, *node.Subtree)
		if err != nil {
			return nil, err
		}

		node = tree.Find(name)
		if node == nil {
			debug.Log("%v not found in %v", name, p)
			return nil, ErrNotFound
		}
	}

	return node, nil
}

// ReadDir returns the children of a directory node in the stored tree order.
func (fs *FS) ReadDir(ctx context.Context, node *cairn.Node) ([]*cairn.Node, error) {
	if node.Type != cairn.NodeTypeDir {
		return nil, ErrUnsupported
	}
	if node.Subtree == nil || node.Subtree.IsNull() {
		return nil, ErrNotFound
	}

	tree, err := fs.repo.LoadTree(ctx, *node.Subtree)
	if err != nil {
		return nil, err
	}

	return tree.Nodes, nil
}

// Readlink returns the target of a symlink node.
func (fs *FS) Readlink(node *cairn.Node) (string, error) {
	if node.Type != cairn.NodeTypeSymlink {
		return "", ErrUnsupported
	}

	return node.LinkTarget, nil
}

// Attr is a POSIX style attribute record.
type Attr struct {
	Size  uint64
	Mode  os.FileMode
	UID   uint32
	GID   uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	Nlink uint64
	Rdev  uint64
}

// Attr maps the stored metadata of a node to an attribute record. All "field
// absent" defaulting happens here: missing timestamps become the filesystem
// start time, a missing link count becomes 1, missing mode/uid/gid stay 0 and
// only device nodes carry a device number.
func (fs *FS) Attr(node *cairn.Node) Attr {
	attr := Attr{
		Size:  node.Size,
		Mode:  node.Mode,
		UID:   node.UID,
		GID:   node.GID,
		Atime: node.AccessTime,
		Mtime: node.ModTime,
		Ctime: node.ChangeTime,
		Nlink: node.Links,
	}

	if attr.Atime.IsZero() {
		attr.Atime = fs.start
	}
	if attr.Mtime.IsZero() {
		attr.Mtime = fs.start
	}
	if attr.Ctime.IsZero() {
		attr.Ctime = fs.start
	}
	if attr.Nlink == 0 {
		attr.Nlink = 1
	}

	switch node.Type {
	case cairn.NodeTypeDev, cairn.NodeTypeCharDev:
		attr.Rdev = node.Device
	}

	return attr
}

// ListXattr returns the extended attribute names of the node, each terminated
// by a null byte, plus the total length. With sizeOnly only the length is
// computed and the returned buffer is nil.
func (fs *FS) ListXattr(node *cairn.Node, sizeOnly bool) ([]byte, int) {
	size := 0
	for _, attr := range node.ExtendedAttributes {
		size += len(attr.Name) + 1
	}
	if sizeOnly {
		return nil, size
	}

	buf := make([]byte, 0, size)
	for _, attr := range node.ExtendedAttributes {
		buf = append(buf, attr.Name...)
		buf = append(buf, 0)
	}
	return buf, size
}

// GetXattr returns the raw value of the named extended attribute, or
// ErrNotFound if the node has no attribute with that name. With sizeOnly the
// returned buffer is nil and only the length is reported.
func (fs *FS) GetXattr(node *cairn.Node, name string, sizeOnly bool) ([]byte, int, error) {
	value := node.GetExtendedAttribute(name)
	if value == nil {
		return nil, 0, ErrNotFound
	}
	if sizeOnly {
		return nil, len(value), nil
	}
	return value, len(value), nil
}
