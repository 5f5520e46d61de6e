package cairn

import (
	"os"
	"time"
)

// ExtendedAttribute is a tuple storing the xattr name and value of a node.
type ExtendedAttribute struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// NodeType is the type of a node in a tree.
type NodeType string

var (
	NodeTypeFile    = NodeType("file")
	NodeTypeDir     = NodeType("dir")
	NodeTypeSymlink = NodeType("symlink")
	NodeTypeDev     = NodeType("dev")
	NodeTypeCharDev = NodeType("chardev")
	NodeTypeFifo    = NodeType("fifo")
	NodeTypeSocket  = NodeType("socket")
	NodeTypeInvalid = NodeType("")
)

// Node is one filesystem entry (file, directory or other item) in a backup.
// A file node carries the ordered list of content blob IDs, a dir node the ID
// of its subtree.
type Node struct {
	Name               string              `json:"name"`
	Type               NodeType            `json:"type"`
	Mode               os.FileMode         `json:"mode,omitempty"`
	ModTime            time.Time           `json:"mtime,omitempty"`
	AccessTime         time.Time           `json:"atime,omitempty"`
	ChangeTime         time.Time           `json:"ctime,omitempty"`
	UID                uint32              `json:"uid"`
	GID                uint32              `json:"gid"`
	Size               uint64              `json:"size,omitempty"`
	Links              uint64              `json:"links,omitempty"`
	LinkTarget         string              `json:"linktarget,omitempty"`
	ExtendedAttributes []ExtendedAttribute `json:"extended_attributes,omitempty"`
	Device             uint64              `json:"device,omitempty"` // stat.st_rdev for dev and chardev nodes
	Content            IDs                 `json:"content"`
	Subtree            *ID                 `json:"subtree,omitempty"`
}

// GetExtendedAttribute gets the extended attribute, nil if none exists with
// that name.
func (node Node) GetExtendedAttribute(a string) []byte {
	for _, attr := range node.ExtendedAttributes {
		if attr.Name == a {
			return attr.Value
		}
	}
	return nil
}
