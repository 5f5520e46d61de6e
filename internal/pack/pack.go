// Package pack implements the binary layout of pack files: the blobs of one
// pack are stored back to back starting at offset 0, followed by a header
// listing each blob, followed by the header length.
package pack

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/errors"
)

// headerEntry describes one blob in the pack header.
type headerEntry struct {
	Type   uint8
	Length uint32
	ID     cairn.ID
}

const (
	// size of one header entry: type (1) + length (4) + id (32)
	entrySize = 37

	// size of the header-length field at the end of the pack
	headerLengthSize = 4

	// MaxHeaderSize is the max size of header including header-length field
	MaxHeaderSize = 16*1024*1024 + headerLengthSize
)

// CalculateHeaderSize returns the size of the pack header for n blobs.
func CalculateHeaderSize(n int) uint32 {
	return headerLengthSize + uint32(n)*entrySize
}

// Packer is used to create a new pack file.
type Packer struct {
	blobs []cairn.Blob

	bytes uint32
	wr    io.Writer

	m sync.Mutex
}

// NewPacker returns a new Packer writing to wr.
func NewPacker(wr io.Writer) *Packer {
	return &Packer{wr: wr}
}

// Add appends data as a new blob to the packer.
func (p *Packer) Add(t cairn.BlobType, id cairn.ID, data []byte) (int, error) {
	p.m.Lock()
	defer p.m.Unlock()

	c := cairn.Blob{BlobHandle: cairn.BlobHandle{Type: t, ID: id}}

	n, err := p.wr.Write(data)
	c.Length = uint32(n)
	c.Offset = p.bytes
	p.bytes += uint32(n)
	p.blobs = append(p.blobs, c)

	return n, errors.Wrap(err, "Write")
}

// Blobs returns the blobs added so far.
func (p *Packer) Blobs() []cairn.Blob {
	p.m.Lock()
	defer p.m.Unlock()

	return p.blobs
}

// Finalize writes the header for all added blobs and finalizes the pack.
// Returned is the total number of bytes written, including the header.
func (p *Packer) Finalize() (uint32, error) {
	p.m.Lock()
	defer p.m.Unlock()

	hdrBuf := new(bytes.Buffer)
	for _, b := range p.blobs {
		entry := headerEntry{Length: b.Length, ID: b.ID}

		switch b.Type {
		case cairn.DataBlob:
			entry.Type = 0
		case cairn.TreeBlob:
			entry.Type = 1
		default:
			return 0, errors.Errorf("invalid blob type %v", b.Type)
		}

		if err := binary.Write(hdrBuf, binary.LittleEndian, entry); err != nil {
			return 0, errors.Wrap(err, "binary.Write")
		}
	}

	if _, err := p.wr.Write(hdrBuf.Bytes()); err != nil {
		return 0, errors.Wrap(err, "Write")
	}

	err := binary.Write(p.wr, binary.LittleEndian, uint32(hdrBuf.Len()))
	if err != nil {
		return 0, errors.Wrap(err, "binary.Write")
	}

	p.bytes += uint32(hdrBuf.Len()) + headerLengthSize
	return p.bytes, nil
}

// List returns the blobs of the pack file read from rd with total size.
func List(rd io.ReaderAt, size int64) ([]cairn.Blob, error) {
	if size < headerLengthSize {
		return nil, errors.New("file is too small")
	}

	var lenBuf [headerLengthSize]byte
	if _, err := rd.ReadAt(lenBuf[:], size-headerLengthSize); err != nil {
		return nil, errors.Wrap(err, "ReadAt")
	}

	hlen := binary.LittleEndian.Uint32(lenBuf[:])
	if hlen == 0 || hlen%entrySize != 0 {
		return nil, errors.Errorf("invalid header length %d", hlen)
	}
	if int64(hlen)+headerLengthSize > size || hlen > MaxHeaderSize {
		return nil, errors.Errorf("header is larger than file: %d", hlen)
	}

	hdr := make([]byte, hlen)
	if _, err := rd.ReadAt(hdr, size-headerLengthSize-int64(hlen)); err != nil {
		return nil, errors.Wrap(err, "ReadAt")
	}

	blobs := make([]cairn.Blob, 0, hlen/entrySize)
	dec := bytes.NewReader(hdr)
	var offset uint32
	for dec.Len() > 0 {
		var entry headerEntry
		if err := binary.Read(dec, binary.LittleEndian, &entry); err != nil {
			return nil, errors.Wrap(err, "binary.Read")
		}

		b := cairn.Blob{
			Length: entry.Length,
			Offset: offset,
		}
		b.ID = entry.ID

		switch entry.Type {
		case 0:
			b.Type = cairn.DataBlob
		case 1:
			b.Type = cairn.TreeBlob
		default:
			return nil, errors.Errorf("invalid blob type %d in header", entry.Type)
		}

		offset += entry.Length
		blobs = append(blobs, b)
	}

	return blobs, nil
}
