// Package repository implements the decrypting read layer on top of a raw
// backend: it loads repository files, transparently decrypts and decompresses
// them, and resolves blobs through the index.
package repository

import (
	"context"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
	"github.com/cairn-backup/cairn/internal/index"
)

// Decrypter decrypts repository files and blobs. The concrete cipher and key
// handling live outside of this module.
type Decrypter interface {
	Decrypt(buf []byte) ([]byte, error)
}

// NopDecrypter is the Decrypter of an unencrypted repository.
type NopDecrypter struct{}

// Decrypt returns buf unmodified.
func (NopDecrypter) Decrypt(buf []byte) ([]byte, error) {
	return buf, nil
}

// zstd frame magic, stored files and blobs may be compressed.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Repository reads typed records and blobs from a backend.
type Repository struct {
	be  cairn.ReadBackend
	dec Decrypter
	idx *index.MasterIndex

	zdec *zstd.Decoder
}

// New returns a new repository reading from be. A nil decrypter means the
// repository is not encrypted.
func New(be cairn.ReadBackend, dec Decrypter) *Repository {
	if dec == nil {
		dec = NopDecrypter{}
	}

	zdec, err := zstd.NewReader(nil)
	if err != nil {
		// only happens for invalid options
		panic(err)
	}

	return &Repository{
		be:   be,
		dec:  dec,
		zdec: zdec,
	}
}

// Backend returns the backend of the repository.
func (r *Repository) Backend() cairn.ReadBackend {
	return r.be
}

// Connections returns the maximum number of concurrent backend operations.
func (r *Repository) Connections() uint {
	return r.be.Connections()
}

// SetIndex assigns the blob lookup index used by LoadBlob.
func (r *Repository) SetIndex(idx *index.MasterIndex) {
	r.idx = idx
}

// Index returns the current blob lookup index.
func (r *Repository) Index() *index.MasterIndex {
	return r.idx
}

// LookupBlobSize returns the plaintext size of the blob identified by bh.
func (r *Repository) LookupBlobSize(bh cairn.BlobHandle) (uint32, bool) {
	if r.idx == nil {
		return 0, false
	}
	return r.idx.LookupSize(bh)
}

// HasBlob returns true iff the blob identified by bh is known to the index.
func (r *Repository) HasBlob(bh cairn.BlobHandle) bool {
	return r.idx != nil && r.idx.Has(bh)
}

// decode decrypts and, if necessary, decompresses buf.
func (r *Repository) decode(buf []byte) ([]byte, error) {
	buf, err := r.dec.Decrypt(buf)
	if err != nil {
		return nil, errors.Wrap(err, "Decrypt")
	}

	if len(buf) >= len(zstdMagic) &&
		buf[0] == zstdMagic[0] && buf[1] == zstdMagic[1] &&
		buf[2] == zstdMagic[2] && buf[3] == zstdMagic[3] {
		buf, err = r.zdec.DecodeAll(buf, nil)
		if err != nil {
			return nil, errors.Wrap(err, "DecodeAll")
		}
	}

	return buf, nil
}

// LoadUnpacked loads and decodes the file of type t with the given ID, stored
// outside a pack (snapshot and index files). The raw file content must match
// the ID.
func (r *Repository) LoadUnpacked(ctx context.Context, t cairn.FileType, id cairn.ID) ([]byte, error) {
	debug.Log("load %v with id %v", t, id)

	h := cairn.Handle{Type: t, Name: id.String()}
	buf, err := cairn.LoadAll(ctx, r.be, h)
	if err != nil {
		return nil, err
	}

	if hash := cairn.Hash(buf); !hash.Equal(id) {
		debug.Log("want hash %v, got %v", id, hash)
		return nil, errors.Errorf("load %v: invalid data returned", h)
	}

	return r.decode(buf)
}

// LoadBlob loads the blob identified by t and id from a pack file, checks the
// plaintext hash and returns the contents.
func (r *Repository) LoadBlob(ctx context.Context, t cairn.BlobType, id cairn.ID) ([]byte, error) {
	if r.idx == nil {
		return nil, errors.New("repository has no index")
	}

	bh := cairn.BlobHandle{ID: id, Type: t}
	pb, ok := r.idx.Lookup(bh)
	if !ok {
		return nil, errors.Errorf("blob %v not found in index", bh)
	}

	debug.Log("load blob %v from pack %v, offset %v, length %v",
		bh, pb.PackID.Str(), pb.Offset, pb.Length)

	h := cairn.Handle{Type: cairn.PackFile, Name: pb.PackID.String()}
	buf, err := loadRange(ctx, r.be, h, int(pb.Length), int64(pb.Offset))
	if err != nil {
		return nil, err
	}

	return r.DecodeBlob(buf, bh)
}

// DecodeBlob decrypts and decompresses the raw contents of a blob as stored
// inside a pack file and verifies that the plaintext matches the blob ID.
func (r *Repository) DecodeBlob(buf []byte, bh cairn.BlobHandle) ([]byte, error) {
	plaintext, err := r.decode(buf)
	if err != nil {
		return nil, err
	}

	if hash := cairn.Hash(plaintext); !hash.Equal(bh.ID) {
		return nil, errors.Errorf("blob %v returned invalid data", bh)
	}

	return plaintext, nil
}

func loadRange(ctx context.Context, be cairn.Loader, h cairn.Handle, length int, offset int64) ([]byte, error) {
	var buf []byte

	err := be.Load(ctx, h, length, offset, func(rd io.Reader) error {
		buf = buf[:0]
		var err error
		buf, err = io.ReadAll(rd)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(buf) != length {
		return nil, errors.Errorf("load %v: short read, got %d of %d bytes", h, len(buf), length)
	}

	return buf, nil
}

// LoadTree loads the tree blob with the given ID.
func (r *Repository) LoadTree(ctx context.Context, id cairn.ID) (*cairn.Tree, error) {
	buf, err := r.LoadBlob(ctx, cairn.TreeBlob, id)
	if err != nil {
		return nil, err
	}

	return cairn.ParseTree(buf)
}

// LoadSnapshot loads the snapshot with the given ID.
func (r *Repository) LoadSnapshot(ctx context.Context, id cairn.ID) (*cairn.Snapshot, error) {
	buf, err := r.LoadUnpacked(ctx, cairn.SnapshotFile, id)
	if err != nil {
		return nil, err
	}

	sn := &cairn.Snapshot{}
	if err := json.Unmarshal(buf, sn); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot")
	}
	sn.SetID(id)

	return sn, nil
}
