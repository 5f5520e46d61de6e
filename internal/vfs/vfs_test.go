package vfs_test

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/repository"
	rtest "github.com/cairn-backup/cairn/internal/test"
	"github.com/cairn-backup/cairn/internal/vfs"
)

// fileFixture builds a repository holding a single regular file assembled
// from the given blobs and returns a filesystem for it.
func fileFixture(t *testing.T, name string, blobs ...[]byte) (*vfs.FS, *cairn.Node) {
	b := repository.NewTestRepoBuilder(t)

	_, ids := b.AddPack(cairn.DataBlob, blobs...)

	var size uint64
	for _, blob := range blobs {
		size += uint64(len(blob))
	}

	tree := cairn.NewTree(1)
	tree.Nodes = append(tree.Nodes, &cairn.Node{
		Name:    name,
		Type:    cairn.NodeTypeFile,
		Size:    size,
		Content: ids,
	})
	treeID := b.AddTree(tree)

	fs := vfs.New(b.Repository(), treeID)

	node, err := fs.Resolve(context.TODO(), "/"+name)
	rtest.OK(t, err)

	return fs, node
}

func TestResolve(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)

	_, ids := b.AddPack(cairn.DataBlob, rtest.Random(1, 64))

	inner := cairn.NewTree(1)
	inner.Nodes = append(inner.Nodes, &cairn.Node{
		Name:    "file",
		Type:    cairn.NodeTypeFile,
		Size:    64,
		Content: ids,
	})
	innerID := b.AddTree(inner)

	outer := cairn.NewTree(1)
	outer.Nodes = append(outer.Nodes, &cairn.Node{
		Name:    "sub",
		Type:    cairn.NodeTypeDir,
		Subtree: &innerID,
	})
	outerID := b.AddTree(outer)

	fs := vfs.New(b.Repository(), outerID)

	node, err := fs.Resolve(context.TODO(), "/sub/file")
	rtest.OK(t, err)
	rtest.Equals(t, "file", node.Name)
	rtest.Equals(t, cairn.NodeTypeFile, node.Type)

	node, err = fs.Resolve(context.TODO(), "/")
	rtest.OK(t, err)
	rtest.Equals(t, cairn.NodeTypeDir, node.Type)

	_, err = fs.Resolve(context.TODO(), "/sub/missing")
	rtest.Equals(t, vfs.ErrNotFound, err)

	// a file cannot be descended into
	_, err = fs.Resolve(context.TODO(), "/sub/file/deeper")
	rtest.Equals(t, vfs.ErrNotFound, err)
}

func TestReadAcrossBlobBoundary(t *testing.T) {
	blob1 := rtest.Random(11, 400)
	blob2 := rtest.Random(12, 300)

	fs, node := fileFixture(t, "file", blob1, blob2)

	fh, err := fs.Open(context.TODO(), node)
	rtest.OK(t, err)

	// the window covers the last 50 bytes of the first blob and the first
	// 50 bytes of the second
	buf, err := fs.Read(context.TODO(), fh, 350, 100)
	rtest.OK(t, err)

	want := append(append([]byte{}, blob1[350:]...), blob2[:50]...)
	rtest.Equals(t, 100, len(buf))
	rtest.Equals(t, want, buf)

	rtest.OK(t, fs.Release(fh))
}

func TestReadWholeFile(t *testing.T) {
	blob1 := rtest.Random(21, 400)
	blob2 := rtest.Random(22, 300)

	fs, node := fileFixture(t, "file", blob1, blob2)

	fh, err := fs.Open(context.TODO(), node)
	rtest.OK(t, err)
	defer func() { rtest.OK(t, fs.Release(fh)) }()

	buf, err := fs.Read(context.TODO(), fh, 0, 700)
	rtest.OK(t, err)
	rtest.Equals(t, append(append([]byte{}, blob1...), blob2...), buf)

	// inside a single blob
	buf, err = fs.Read(context.TODO(), fh, 10, 20)
	rtest.OK(t, err)
	rtest.Equals(t, blob1[10:30], buf)

	// crossing the end of the file truncates
	buf, err = fs.Read(context.TODO(), fh, 650, 100)
	rtest.OK(t, err)
	rtest.Equals(t, blob2[250:], buf)

	// at or beyond the end of the file the result is empty, not an error
	buf, err = fs.Read(context.TODO(), fh, 700, 10)
	rtest.OK(t, err)
	rtest.Equals(t, 0, len(buf))

	buf, err = fs.Read(context.TODO(), fh, 9000, 10)
	rtest.OK(t, err)
	rtest.Equals(t, 0, len(buf))
}

func TestReadCompressedBlob(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)

	// highly repetitive content, stored far smaller than its plaintext
	content := bytes.Repeat([]byte("cairn"), 200)
	id := b.AddCompressedBlob(cairn.DataBlob, content)

	tree := cairn.NewTree(1)
	tree.Nodes = append(tree.Nodes, &cairn.Node{
		Name:    "file",
		Type:    cairn.NodeTypeFile,
		Size:    uint64(len(content)),
		Content: cairn.IDs{id},
	})
	treeID := b.AddTree(tree)

	fs := vfs.New(b.Repository(), treeID)
	node, err := fs.Resolve(context.TODO(), "/file")
	rtest.OK(t, err)

	fh, err := fs.Open(context.TODO(), node)
	rtest.OK(t, err)
	defer func() { rtest.OK(t, fs.Release(fh)) }()

	// the full plaintext is served, not just the stored size
	buf, err := fs.Read(context.TODO(), fh, 0, len(content))
	rtest.OK(t, err)
	rtest.Equals(t, len(content), len(buf))
	rtest.Equals(t, content, buf)

	// windows past the stored size resolve against the plaintext size
	buf, err = fs.Read(context.TODO(), fh, 900, 200)
	rtest.OK(t, err)
	rtest.Equals(t, content[900:], buf)
}

func TestReleasedHandle(t *testing.T) {
	fs, node := fileFixture(t, "file", rtest.Random(31, 128))

	fh, err := fs.Open(context.TODO(), node)
	rtest.OK(t, err)
	rtest.OK(t, fs.Release(fh))

	_, err = fs.Read(context.TODO(), fh, 0, 16)
	rtest.Equals(t, vfs.ErrNotFound, err)
	rtest.Equals(t, vfs.ErrNotFound, fs.Release(fh))

	// the identifier is recycled for the next open
	fh2, err := fs.Open(context.TODO(), node)
	rtest.OK(t, err)
	rtest.Equals(t, fh, fh2)
	rtest.OK(t, fs.Release(fh2))
}

func TestOpenUnsupported(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)

	sub := b.AddTree(cairn.NewTree(0))
	tree := cairn.NewTree(1)
	tree.Nodes = append(tree.Nodes, &cairn.Node{
		Name:    "sub",
		Type:    cairn.NodeTypeDir,
		Subtree: &sub,
	})
	treeID := b.AddTree(tree)

	fs := vfs.New(b.Repository(), treeID)

	node, err := fs.Resolve(context.TODO(), "/sub")
	rtest.OK(t, err)

	_, err = fs.Open(context.TODO(), node)
	rtest.Equals(t, vfs.ErrUnsupported, err)
}

func TestConcurrentReads(t *testing.T) {
	blob := rtest.Random(41, 1024)
	fs, node := fileFixture(t, "file", blob)

	fh1, err := fs.Open(context.TODO(), node)
	rtest.OK(t, err)
	fh2, err := fs.Open(context.TODO(), node)
	rtest.OK(t, err)
	rtest.Assert(t, fh1 != fh2, "handles must be distinct")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		fh := fh1
		if i%2 == 1 {
			fh = fh2
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				buf, err := fs.Read(context.TODO(), fh, 100, 200)
				rtest.OK(t, err)
				rtest.Assert(t, bytes.Equal(blob[100:300], buf), "wrong data read")
			}
		}()
	}
	wg.Wait()

	rtest.OK(t, fs.Release(fh1))
	rtest.OK(t, fs.Release(fh2))
}

func TestAttrDefaults(t *testing.T) {
	fs, node := fileFixture(t, "file", rtest.Random(51, 64))

	attr := fs.Attr(node)
	rtest.Equals(t, uint64(64), attr.Size)
	rtest.Equals(t, uint64(1), attr.Nlink)
	rtest.Equals(t, uint32(0), attr.UID)
	rtest.Equals(t, uint32(0), attr.GID)
	rtest.Equals(t, uint64(0), attr.Rdev)
	rtest.Assert(t, !attr.Mtime.IsZero(), "mtime must default to the filesystem start time")
	rtest.Assert(t, !attr.Atime.IsZero(), "atime must default to the filesystem start time")
	rtest.Assert(t, !attr.Ctime.IsZero(), "ctime must default to the filesystem start time")
}

func TestAttrStored(t *testing.T) {
	fs, _ := fileFixture(t, "file", rtest.Random(61, 16))

	mtime := time.Date(2019, 11, 27, 12, 30, 0, 0, time.UTC)
	node := &cairn.Node{
		Name:    "dev",
		Type:    cairn.NodeTypeDev,
		Mode:    0640,
		UID:     1000,
		GID:     100,
		Links:   3,
		Device:  0x0801,
		ModTime: mtime,
	}

	attr := fs.Attr(node)
	rtest.Equals(t, os.FileMode(0640), attr.Mode)
	rtest.Equals(t, uint32(1000), attr.UID)
	rtest.Equals(t, uint32(100), attr.GID)
	rtest.Equals(t, uint64(3), attr.Nlink)
	rtest.Equals(t, uint64(0x0801), attr.Rdev)
	rtest.Equals(t, mtime, attr.Mtime)
}

func TestReadDirOrder(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)

	_, ids := b.AddPack(cairn.DataBlob, rtest.Random(71, 10))

	// stored order is not sorted and must be preserved
	tree := cairn.NewTree(3)
	for _, name := range []string{"zebra", "alpha", "mango"} {
		tree.Nodes = append(tree.Nodes, &cairn.Node{
			Name:    name,
			Type:    cairn.NodeTypeFile,
			Size:    10,
			Content: ids,
		})
	}
	treeID := b.AddTree(tree)

	fs := vfs.New(b.Repository(), treeID)

	entries, err := fs.ReadDir(context.TODO(), fs.Root())
	rtest.OK(t, err)
	rtest.Equals(t, 3, len(entries))
	rtest.Equals(t, "zebra", entries[0].Name)
	rtest.Equals(t, "alpha", entries[1].Name)
	rtest.Equals(t, "mango", entries[2].Name)

	_, err = fs.ReadDir(context.TODO(), entries[0])
	rtest.Equals(t, vfs.ErrUnsupported, err)
}

func TestReadlink(t *testing.T) {
	fs, fileNode := fileFixture(t, "file", rtest.Random(81, 16))

	link := &cairn.Node{
		Name:       "link",
		Type:       cairn.NodeTypeSymlink,
		LinkTarget: "/target/path",
	}

	target, err := fs.Readlink(link)
	rtest.OK(t, err)
	rtest.Equals(t, "/target/path", target)

	_, err = fs.Readlink(fileNode)
	rtest.Equals(t, vfs.ErrUnsupported, err)
}

func TestXattr(t *testing.T) {
	fs, _ := fileFixture(t, "file", rtest.Random(91, 16))

	node := &cairn.Node{
		Name: "file",
		Type: cairn.NodeTypeFile,
		ExtendedAttributes: []cairn.ExtendedAttribute{
			{Name: "user.foo", Value: []byte("bar")},
			{Name: "security.selinux", Value: []byte("system_u")},
		},
	}

	buf, size := fs.ListXattr(node, false)
	rtest.Equals(t, []byte("user.foo\x00security.selinux\x00"), buf)
	rtest.Equals(t, len(buf), size)

	// size probe returns the length without the names
	buf, size = fs.ListXattr(node, true)
	rtest.Assert(t, buf == nil, "expected no buffer for a size probe")
	rtest.Equals(t, len("user.foo\x00security.selinux\x00"), size)

	value, n, err := fs.GetXattr(node, "user.foo", false)
	rtest.OK(t, err)
	rtest.Equals(t, []byte("bar"), value)
	rtest.Equals(t, 3, n)

	_, n, err = fs.GetXattr(node, "user.foo", true)
	rtest.OK(t, err)
	rtest.Equals(t, 3, n)

	_, _, err = fs.GetXattr(node, "user.absent", false)
	rtest.Equals(t, vfs.ErrNotFound, err)
}
