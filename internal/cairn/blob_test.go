package cairn

import (
	"encoding/json"
	"testing"
)

var blobTypeJSON = []struct {
	t   BlobType
	res string
}{
	{DataBlob, `"data"`},
	{TreeBlob, `"tree"`},
}

func TestBlobTypeJSON(t *testing.T) {
	for _, test := range blobTypeJSON {
		// test serialize
		buf, err := json.Marshal(test.t)
		if err != nil {
			t.Error(err)
			continue
		}

		if test.res != string(buf) {
			t.Errorf("want %q, got %q", test.res, string(buf))
			continue
		}

		// test deserialize
		var v BlobType
		err = json.Unmarshal([]byte(test.res), &v)
		if err != nil {
			t.Error(err)
			continue
		}

		if test.t != v {
			t.Errorf("want %v, got %v", test.t, v)
			continue
		}
	}

	var v BlobType
	if err := json.Unmarshal([]byte(`"chunk"`), &v); err == nil {
		t.Error("unknown blob type accepted")
	}
}

func TestTreeSubtrees(t *testing.T) {
	sub := NewRandomID()
	var null ID

	tree := &Tree{Nodes: []*Node{
		{Name: "a", Type: NodeTypeFile},
		{Name: "b", Type: NodeTypeDir, Subtree: &sub},
		{Name: "c", Type: NodeTypeDir, Subtree: &null},
		{Name: "d", Type: NodeTypeDir},
	}}

	trees := tree.Subtrees()
	if len(trees) != 1 || !trees[0].Equal(sub) {
		t.Errorf("unexpected subtree list: %v", trees)
	}
}
