// Package index implements the index of a repository: the mapping from blob
// ID to the pack file and offset the blob is stored at. The full index is the
// union of all index files stored in the backend.
package index

import (
	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/pack"
)

// Blob is one blob entry of a pack descriptor. For a compressed blob, length
// is the stored size and uncompressed_length the size of the content.
type Blob struct {
	ID                 cairn.ID       `json:"id"`
	Type               cairn.BlobType `json:"type"`
	Offset             uint32         `json:"offset"`
	Length             uint32         `json:"length"`
	UncompressedLength uint32         `json:"uncompressed_length,omitempty"`
}

// Pack describes the contents of one pack file as recorded in an index file.
type Pack struct {
	ID    cairn.ID `json:"id"`
	Blobs []Blob   `json:"blobs"`
}

// BlobType returns the declared blob type of the pack. All blobs of a pack
// share one type; the descriptor declares it through its first blob.
func (p Pack) BlobType() cairn.BlobType {
	if len(p.Blobs) == 0 {
		return cairn.InvalidBlob
	}
	return p.Blobs[0].Type
}

// Size returns the pack file size computed from the index entries, including
// the header overhead.
func (p Pack) Size() int64 {
	var size int64
	for _, b := range p.Blobs {
		size += int64(b.Length)
	}
	return size + int64(pack.CalculateHeaderSize(len(p.Blobs)))
}

// File is the wire format of one index file: a batch of pack descriptors,
// split into live packs and packs that are pending removal. Multiple index
// files compose the full index by union.
type File struct {
	Packs         []Pack `json:"packs"`
	PacksToDelete []Pack `json:"packs_to_delete,omitempty"`
}
