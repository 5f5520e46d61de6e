// Package bloblru implements a size-bounded LRU cache for blob contents,
// keyed by blob ID. The virtual filesystem uses it to avoid re-reading data
// blobs from the backend on every file read.
package bloblru

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
)

// Crude estimate of the per-entry bookkeeping overhead: the key plus slice
// and map internals.
const overhead = len(cairn.ID{}) + 64

// Cache is a blob cache that discards the least recently used blobs once the
// total size of cached blobs exceeds its capacity.
type Cache struct {
	mu sync.Mutex
	c  *simplelru.LRU[cairn.ID, []byte]

	free, size int // in bytes
}

// New constructs a cache that holds at most size bytes of blob data.
func New(size int) *Cache {
	c := &Cache{
		free: size,
		size: size,
	}

	// The LRU needs an entry bound. The size bound keeps us well below it,
	// since every entry costs at least the overhead.
	maxEntries := size / overhead
	lru, err := simplelru.NewLRU[cairn.ID, []byte](maxEntries, c.evict)
	if err != nil {
		panic(err) // only possible for maxEntries <= 0
	}
	c.c = lru
	return c
}

// Add stores blob under id. Blobs larger than the cache capacity are
// silently dropped. Add may return a buffer evicted to make room, which the
// caller can reuse. Accounting uses cap, since that is the amount of memory
// a cached blob keeps alive.
func (c *Cache) Add(id cairn.ID, blob []byte) (old []byte) {
	debug.Log("add %v, %d bytes", id, cap(blob))

	size := cap(blob) + overhead
	if size > c.size {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.c.Contains(id) { // without updating the recency list
		return
	}

	for size > c.free {
		_, old, _ = c.c.RemoveOldest()
	}

	c.c.Add(id, blob)
	c.free -= size

	return old
}

// Get returns the blob stored under id, if present.
func (c *Cache) Get(id cairn.ID) ([]byte, bool) {
	c.mu.Lock()
	blob, ok := c.c.Get(id)
	c.mu.Unlock()

	debug.Log("get %v, hit %v", id, ok)

	return blob, ok
}

func (c *Cache) evict(key cairn.ID, blob []byte) {
	debug.Log("evict %v, %d bytes", key, cap(blob))
	c.free += cap(blob) + overhead
}
