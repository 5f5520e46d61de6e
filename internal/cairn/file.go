package cairn

import "fmt"

// FileType is the type of a file stored in the backend.
type FileType uint8

// These are the different file categories a repository consists of.
const (
	PackFile FileType = 1 + iota
	SnapshotFile
	IndexFile
)

func (t FileType) String() string {
	switch t {
	case PackFile:
		return "pack"
	case SnapshotFile:
		return "snapshot"
	case IndexFile:
		return "index"
	}

	return fmt.Sprintf("<FileType %d>", t)
}

// Handle is used to store and access data in a backend.
type Handle struct {
	Type FileType
	Name string
}

func (h Handle) String() string {
	name := h.Name
	if len(name) > 10 {
		name = name[:10]
	}
	return fmt.Sprintf("<%s/%s>", h.Type, name)
}

// Valid returns an error if h is not valid.
func (h Handle) Valid() error {
	switch h.Type {
	case PackFile, SnapshotFile, IndexFile:
	default:
		return fmt.Errorf("invalid type %q", h.Type)
	}

	if h.Name == "" {
		return fmt.Errorf("invalid name %q", h.Name)
	}

	return nil
}
