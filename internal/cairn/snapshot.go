package cairn

import (
	"fmt"
	"time"
)

// Snapshot is the state of a resource at one point in time, pointing at the
// root tree of one backup run.
type Snapshot struct {
	Time     time.Time `json:"time"`
	Parent   *ID       `json:"parent,omitempty"`
	Tree     *ID       `json:"tree"`
	Paths    []string  `json:"paths"`
	Hostname string    `json:"hostname,omitempty"`
	Username string    `json:"username,omitempty"`
	Tags     []string  `json:"tags,omitempty"`

	id *ID // plaintext ID, set when the snapshot is loaded
}

// ID returns the snapshot's ID.
func (sn Snapshot) ID() *ID {
	return sn.id
}

// SetID records the ID the snapshot was loaded under.
func (sn *Snapshot) SetID(id ID) {
	sn.id = &id
}

func (sn Snapshot) String() string {
	return fmt.Sprintf("<Snapshot %s of %v at %s by %s@%s>",
		sn.id.Str(), sn.Paths, sn.Time, sn.Username, sn.Hostname)
}
