package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/cairn-backup/cairn/internal/backend/mem"
	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/index"
	"github.com/cairn-backup/cairn/internal/pack"
	rtest "github.com/cairn-backup/cairn/internal/test"
)

// TestRepoBuilder assembles repository fixtures in a memory backend: pack
// files, index files and snapshots. Tests may modify the pending index file
// through Index() before flushing it, e.g. to record wrong offsets.
type TestRepoBuilder struct {
	t   testing.TB
	be  *mem.MemoryBackend
	idx index.File
}

// NewTestRepoBuilder returns a builder writing to a fresh memory backend.
func NewTestRepoBuilder(t testing.TB) *TestRepoBuilder {
	return &TestRepoBuilder{t: t, be: mem.New()}
}

// Backend returns the backend the builder writes to.
func (b *TestRepoBuilder) Backend() *mem.MemoryBackend {
	return b.be
}

// Index returns the pending index file. It is saved by FlushIndex.
func (b *TestRepoBuilder) Index() *index.File {
	return &b.idx
}

// AddPack writes a pack file containing the given blobs and records it in the
// pending index file. It returns the pack descriptor and the blob IDs.
func (b *TestRepoBuilder) AddPack(tpe cairn.BlobType, bufs ...[]byte) (index.Pack, []cairn.ID) {
	p := b.buildPack(tpe, bufs...)
	b.idx.Packs = append(b.idx.Packs, p)

	ids := make([]cairn.ID, 0, len(p.Blobs))
	for _, blob := range p.Blobs {
		ids = append(ids, blob.ID)
	}
	return p, ids
}

// AddPackToDelete writes a pack file like AddPack, but records it in the
// packs_to_delete section of the pending index file.
func (b *TestRepoBuilder) AddPackToDelete(tpe cairn.BlobType, bufs ...[]byte) (index.Pack, []cairn.ID) {
	p := b.buildPack(tpe, bufs...)
	b.idx.PacksToDelete = append(b.idx.PacksToDelete, p)

	ids := make([]cairn.ID, 0, len(p.Blobs))
	for _, blob := range p.Blobs {
		ids = append(ids, blob.ID)
	}
	return p, ids
}

func (b *TestRepoBuilder) buildPack(tpe cairn.BlobType, bufs ...[]byte) index.Pack {
	var wr bytes.Buffer
	packer := pack.NewPacker(&wr)

	for _, buf := range bufs {
		_, err := packer.Add(tpe, cairn.Hash(buf), buf)
		rtest.OK(b.t, err)
	}
	_, err := packer.Finalize()
	rtest.OK(b.t, err)

	packID := cairn.Hash(wr.Bytes())
	h := cairn.Handle{Type: cairn.PackFile, Name: packID.String()}
	rtest.OK(b.t, b.be.Save(context.TODO(), h, wr.Bytes()))

	p := index.Pack{ID: packID}
	for _, blob := range packer.Blobs() {
		p.Blobs = append(p.Blobs, index.Blob{
			ID:     blob.ID,
			Type:   blob.Type,
			Offset: blob.Offset,
			Length: blob.Length,
		})
	}
	return p
}

// AddCompressedBlob compresses buf with zstd, stores it as a single-blob pack
// file and records it in the pending index file with the uncompressed length.
// The blob ID is the hash of the plaintext.
func (b *TestRepoBuilder) AddCompressedBlob(tpe cairn.BlobType, buf []byte) cairn.ID {
	enc, err := zstd.NewWriter(nil)
	rtest.OK(b.t, err)
	compressed := enc.EncodeAll(buf, nil)
	rtest.OK(b.t, enc.Close())

	id := cairn.Hash(buf)

	var wr bytes.Buffer
	packer := pack.NewPacker(&wr)
	_, err = packer.Add(tpe, id, compressed)
	rtest.OK(b.t, err)
	_, err = packer.Finalize()
	rtest.OK(b.t, err)

	packID := cairn.Hash(wr.Bytes())
	h := cairn.Handle{Type: cairn.PackFile, Name: packID.String()}
	rtest.OK(b.t, b.be.Save(context.TODO(), h, wr.Bytes()))

	b.idx.Packs = append(b.idx.Packs, index.Pack{
		ID: packID,
		Blobs: []index.Blob{{
			ID:                 id,
			Type:               tpe,
			Offset:             0,
			Length:             uint32(len(compressed)),
			UncompressedLength: uint32(len(buf)),
		}},
	})

	return id
}

// AddTree saves the tree as a single tree blob in its own pack file and
// returns the tree ID.
func (b *TestRepoBuilder) AddTree(tree *cairn.Tree) cairn.ID {
	buf, err := json.Marshal(tree)
	rtest.OK(b.t, err)

	_, ids := b.AddPack(cairn.TreeBlob, buf)
	return ids[0]
}

// AddSnapshot saves the snapshot under its content hash and returns its ID.
func (b *TestRepoBuilder) AddSnapshot(sn *cairn.Snapshot) cairn.ID {
	buf, err := json.Marshal(sn)
	rtest.OK(b.t, err)

	id := cairn.Hash(buf)
	h := cairn.Handle{Type: cairn.SnapshotFile, Name: id.String()}
	rtest.OK(b.t, b.be.Save(context.TODO(), h, buf))

	sn.SetID(id)
	return id
}

// FlushIndex saves the pending index file under its content hash and resets
// the builder for the next index file.
func (b *TestRepoBuilder) FlushIndex() cairn.ID {
	buf, err := json.Marshal(&b.idx)
	rtest.OK(b.t, err)

	id := cairn.Hash(buf)
	h := cairn.Handle{Type: cairn.IndexFile, Name: id.String()}
	rtest.OK(b.t, b.be.Save(context.TODO(), h, buf))

	b.idx = index.File{}
	return id
}

// Repository returns a repository for the backend, with an in-memory index
// built from all pack descriptors added so far, including unflushed ones.
// Packs pending removal are not indexed.
func (b *TestRepoBuilder) Repository() *Repository {
	mi := index.NewMasterIndex()
	for _, p := range b.idx.Packs {
		mi.Insert(p)
	}

	err := b.be.List(context.TODO(), cairn.IndexFile, func(id cairn.ID, _ int64) error {
		buf, lerr := cairn.LoadAll(context.TODO(), b.be, cairn.Handle{Type: cairn.IndexFile, Name: id.String()})
		if lerr != nil {
			return lerr
		}

		var idx index.File
		if lerr := json.Unmarshal(buf, &idx); lerr != nil {
			return lerr
		}

		for _, p := range idx.Packs {
			mi.Insert(p)
		}
		return nil
	})
	rtest.OK(b.t, err)

	repo := New(b.be, NopDecrypter{})
	repo.SetIndex(mi)
	return repo
}
