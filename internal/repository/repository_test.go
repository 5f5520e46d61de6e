package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/repository"
	rtest "github.com/cairn-backup/cairn/internal/test"
)

func TestLoadUnpacked(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)
	repo := b.Repository()

	buf := rtest.Random(23, 517)
	id := cairn.Hash(buf)
	h := cairn.Handle{Type: cairn.SnapshotFile, Name: id.String()}
	rtest.OK(t, b.Backend().Save(context.TODO(), h, buf))

	loaded, err := repo.LoadUnpacked(context.TODO(), cairn.SnapshotFile, id)
	rtest.OK(t, err)
	rtest.Equals(t, buf, loaded)

	// a flipped byte must be detected by the content hash check
	rtest.OK(t, b.Backend().Corrupt(h))
	_, err = repo.LoadUnpacked(context.TODO(), cairn.SnapshotFile, id)
	rtest.Assert(t, err != nil, "expected error for corrupted file")
}

func TestLoadUnpackedCompressed(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)
	repo := b.Repository()

	plain := rtest.Random(42, 4096)
	enc, err := zstd.NewWriter(nil)
	rtest.OK(t, err)
	comp := enc.EncodeAll(plain, nil)
	rtest.OK(t, enc.Close())

	id := cairn.Hash(comp)
	h := cairn.Handle{Type: cairn.SnapshotFile, Name: id.String()}
	rtest.OK(t, b.Backend().Save(context.TODO(), h, comp))

	loaded, err := repo.LoadUnpacked(context.TODO(), cairn.SnapshotFile, id)
	rtest.OK(t, err)
	rtest.Equals(t, plain, loaded)
}

func TestLoadBlob(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)

	bufs := [][]byte{
		rtest.Random(1, 100),
		rtest.Random(2, 200),
		rtest.Random(3, 50),
	}
	_, ids := b.AddPack(cairn.DataBlob, bufs...)
	repo := b.Repository()

	for i, id := range ids {
		rtest.Assert(t, repo.HasBlob(cairn.BlobHandle{ID: id, Type: cairn.DataBlob}),
			"blob %v not in index", id)

		size, found := repo.LookupBlobSize(cairn.BlobHandle{ID: id, Type: cairn.DataBlob})
		rtest.Assert(t, found, "size for blob %v not found", id)
		rtest.Equals(t, uint32(len(bufs[i])), size)

		buf, err := repo.LoadBlob(context.TODO(), cairn.DataBlob, id)
		rtest.OK(t, err)
		rtest.Equals(t, bufs[i], buf)
	}

	_, err := repo.LoadBlob(context.TODO(), cairn.DataBlob, cairn.NewRandomID())
	rtest.Assert(t, err != nil, "expected error for unknown blob")
}

func TestLoadBlobCompressed(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)

	// the blob is stored compressed, its ID is the hash of the plaintext
	plain := rtest.Random(23, 2048)
	id := b.AddCompressedBlob(cairn.DataBlob, plain)

	repo := b.Repository()

	// the index answers with the plaintext size, not the stored size
	size, found := repo.LookupBlobSize(cairn.BlobHandle{ID: id, Type: cairn.DataBlob})
	rtest.Assert(t, found, "size for blob %v not found", id)
	rtest.Equals(t, uint32(len(plain)), size)

	buf, err := repo.LoadBlob(context.TODO(), cairn.DataBlob, id)
	rtest.OK(t, err)
	rtest.Equals(t, plain, buf)
}

func TestLoadTree(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)

	tree := cairn.NewTree(1)
	tree.Nodes = append(tree.Nodes, &cairn.Node{
		Name: "foo",
		Type: cairn.NodeTypeFile,
		Size: 123,
	})
	id := b.AddTree(tree)

	repo := b.Repository()
	loaded, err := repo.LoadTree(context.TODO(), id)
	rtest.OK(t, err)
	rtest.Equals(t, 1, len(loaded.Nodes))
	rtest.Equals(t, "foo", loaded.Nodes[0].Name)
}

func TestLoadSnapshot(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)

	treeID := b.AddTree(cairn.NewTree(0))
	sn := &cairn.Snapshot{
		Time:     time.Now().Round(time.Second),
		Tree:     &treeID,
		Paths:    []string{"/home/user"},
		Hostname: "example",
	}
	id := b.AddSnapshot(sn)

	repo := b.Repository()
	loaded, err := repo.LoadSnapshot(context.TODO(), id)
	rtest.OK(t, err)
	rtest.Equals(t, treeID, *loaded.Tree)
	rtest.Equals(t, id, *loaded.ID())

	_, err = repo.LoadSnapshot(context.TODO(), cairn.NewRandomID())
	rtest.Assert(t, err != nil, "expected error for unknown snapshot")
}

func TestStreamAll(t *testing.T) {
	b := repository.NewTestRepoBuilder(t)

	treeID := b.AddTree(cairn.NewTree(0))
	want := cairn.NewIDSet()
	for i := 0; i < 3; i++ {
		sn := &cairn.Snapshot{
			Time:     time.Now().Add(time.Duration(i) * time.Hour).Round(time.Second),
			Tree:     &treeID,
			Hostname: "example",
		}
		want.Insert(b.AddSnapshot(sn))
	}

	repo := b.Repository()
	seen := cairn.NewIDSet()
	err := repository.StreamAll(context.TODO(), repo, cairn.SnapshotFile, nil,
		func(id cairn.ID, sn cairn.Snapshot) error {
			rtest.Equals(t, treeID, *sn.Tree)
			seen.Insert(id)
			return nil
		})
	rtest.OK(t, err)
	rtest.Assert(t, want.Equals(seen), "wrong snapshots streamed: want %v, got %v", want, seen)
}
