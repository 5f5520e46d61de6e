package index_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/index"
	"github.com/cairn-backup/cairn/internal/pack"
	rtest "github.com/cairn-backup/cairn/internal/test"
)

func testPack(t cairn.BlobType, lengths ...uint32) index.Pack {
	p := index.Pack{ID: cairn.NewRandomID()}
	var offset uint32
	for _, l := range lengths {
		p.Blobs = append(p.Blobs, index.Blob{
			ID:     cairn.NewRandomID(),
			Type:   t,
			Offset: offset,
			Length: l,
		})
		offset += l
	}
	return p
}

func TestPackSize(t *testing.T) {
	p := testPack(cairn.DataBlob, 100, 200, 50)
	rtest.Equals(t, int64(350)+int64(pack.CalculateHeaderSize(3)), p.Size())
}

func TestPackBlobType(t *testing.T) {
	rtest.Equals(t, cairn.DataBlob, testPack(cairn.DataBlob, 10).BlobType())
	rtest.Equals(t, cairn.TreeBlob, testPack(cairn.TreeBlob, 10).BlobType())
	rtest.Equals(t, cairn.InvalidBlob, index.Pack{}.BlobType())
}

func TestFileJSON(t *testing.T) {
	f := index.File{
		Packs:         []index.Pack{testPack(cairn.DataBlob, 10, 20)},
		PacksToDelete: []index.Pack{testPack(cairn.TreeBlob, 5)},
	}

	buf, err := json.Marshal(f)
	rtest.OK(t, err)

	var f2 index.File
	rtest.OK(t, json.Unmarshal(buf, &f2))
	if diff := cmp.Diff(f, f2); diff != "" {
		t.Fatalf("unexpected difference after round trip:\n%v", diff)
	}

	// packs_to_delete is optional
	var f3 index.File
	rtest.OK(t, json.Unmarshal([]byte(`{"packs":[]}`), &f3))
	rtest.Equals(t, 0, len(f3.PacksToDelete))
}

func TestMasterIndex(t *testing.T) {
	mi := index.NewMasterIndex()

	p := testPack(cairn.DataBlob, 100, 200)
	mi.Insert(p)

	rtest.Equals(t, 2, mi.Len())

	bh := cairn.BlobHandle{ID: p.Blobs[1].ID, Type: cairn.DataBlob}
	pb, ok := mi.Lookup(bh)
	rtest.Assert(t, ok, "blob %v not found", bh)
	rtest.Equals(t, p.ID, pb.PackID)
	rtest.Equals(t, uint32(100), pb.Offset)
	rtest.Equals(t, uint32(200), pb.Length)

	size, ok := mi.LookupSize(bh)
	rtest.Assert(t, ok, "blob %v not found", bh)
	rtest.Equals(t, uint32(200), size)

	// for a compressed blob the size lookup answers with the plaintext size
	comp := testPack(cairn.DataBlob, 30)
	comp.Blobs[0].UncompressedLength = 120
	mi.Insert(comp)

	size, ok = mi.LookupSize(cairn.BlobHandle{ID: comp.Blobs[0].ID, Type: cairn.DataBlob})
	rtest.Assert(t, ok, "compressed blob not found")
	rtest.Equals(t, uint32(120), size)

	rtest.Assert(t, mi.HasData(p.Blobs[0].ID), "HasData is false for indexed blob")
	rtest.Assert(t, !mi.HasData(cairn.NewRandomID()), "HasData is true for unknown blob")

	// a tree blob with the same ID is a different handle
	rtest.Assert(t, !mi.Has(cairn.BlobHandle{ID: p.Blobs[0].ID, Type: cairn.TreeBlob}),
		"tree handle found for data blob")
}
