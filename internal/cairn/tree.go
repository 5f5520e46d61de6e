package cairn

import (
	"encoding/json"

	"github.com/cairn-backup/cairn/internal/errors"
)

// Tree is an ordered list of nodes, itself stored as a content-addressed tree
// blob.
type Tree struct {
	Nodes []*Node `json:"nodes"`
}

// NewTree creates a new tree object with the given initial capacity.
func NewTree(capacity int) *Tree {
	return &Tree{
		Nodes: make([]*Node, 0, capacity),
	}
}

// ParseTree decodes a tree blob.
func ParseTree(buf []byte) (*Tree, error) {
	tree := &Tree{}
	if err := json.Unmarshal(buf, tree); err != nil {
		return nil, errors.Wrap(err, "unmarshal tree")
	}

	return tree, nil
}

// Find returns a named node, or nil if it is not present.
func (t *Tree) Find(name string) *Node {
	if t == nil {
		return nil
	}

	for _, node := range t.Nodes {
		if node.Name == name {
			return node
		}
	}

	return nil
}

// Subtrees returns a slice of all subtree IDs of the tree. Null subtree IDs
// of broken dir nodes are skipped, they are reported by the checker when the
// node itself is inspected.
func (t *Tree) Subtrees() (trees IDs) {
	for _, node := range t.Nodes {
		if node.Type == NodeTypeDir && node.Subtree != nil && !node.Subtree.IsNull() {
			trees = append(trees, *node.Subtree)
		}
	}

	return trees
}
