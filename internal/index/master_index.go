package index

import (
	"sync"

	"github.com/cairn-backup/cairn/internal/cairn"
)

// MasterIndex is the in-memory union of all index files: it resolves a blob
// handle to the pack and offset the blob is stored at. It is built fresh per
// run by streaming all index files and safe for concurrent lookups.
type MasterIndex struct {
	m     sync.RWMutex
	blobs map[cairn.BlobHandle]cairn.PackedBlob
}

// NewMasterIndex creates a new, empty master index.
func NewMasterIndex() *MasterIndex {
	return &MasterIndex{
		blobs: make(map[cairn.BlobHandle]cairn.PackedBlob),
	}
}

// Insert adds all blobs of the pack descriptor p to the index.
func (mi *MasterIndex) Insert(p Pack) {
	mi.m.Lock()
	defer mi.m.Unlock()

	for _, b := range p.Blobs {
		bh := cairn.BlobHandle{ID: b.ID, Type: b.Type}
		mi.blobs[bh] = cairn.PackedBlob{
			Blob: cairn.Blob{
				BlobHandle:         bh,
				Length:             b.Length,
				Offset:             b.Offset,
				UncompressedLength: b.UncompressedLength,
			},
			PackID: p.ID,
		}
	}
}

// Lookup returns the pack location of the blob identified by bh.
func (mi *MasterIndex) Lookup(bh cairn.BlobHandle) (cairn.PackedBlob, bool) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	pb, ok := mi.blobs[bh]
	return pb, ok
}

// Has returns true iff the blob identified by bh is known.
func (mi *MasterIndex) Has(bh cairn.BlobHandle) bool {
	mi.m.RLock()
	defer mi.m.RUnlock()

	_, ok := mi.blobs[bh]
	return ok
}

// HasData returns true iff a data blob with the given ID is known.
func (mi *MasterIndex) HasData(id cairn.ID) bool {
	return mi.Has(cairn.BlobHandle{ID: id, Type: cairn.DataBlob})
}

// LookupSize returns the plaintext length of the blob identified by bh.
func (mi *MasterIndex) LookupSize(bh cairn.BlobHandle) (uint32, bool) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	pb, ok := mi.blobs[bh]
	return pb.DataLength(), ok
}

// Len returns the number of blobs in the index.
func (mi *MasterIndex) Len() int {
	mi.m.RLock()
	defer mi.m.RUnlock()

	return len(mi.blobs)
}

// Each runs fn for all blobs known to the index.
func (mi *MasterIndex) Each(fn func(cairn.PackedBlob)) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	for _, pb := range mi.blobs {
		fn(pb)
	}
}
