package progress_test

import (
	"testing"
	"time"

	"github.com/cairn-backup/cairn/internal/ui/progress"
	rtest "github.com/cairn-backup/cairn/internal/test"
)

func TestCounter(t *testing.T) {
	const N = 100

	var finalSeen bool
	var lastValue uint64

	c := progress.NewCounter(0, N, func(value uint64, total uint64, _ time.Duration, final bool) {
		if final {
			finalSeen = true
		}
		lastValue = value
		rtest.Equals(t, uint64(N), total)
	})

	for i := 0; i < N; i++ {
		c.Add(1)
	}
	c.Done()

	rtest.Assert(t, finalSeen, "final report not seen")
	rtest.Equals(t, uint64(N), lastValue)

	// Done is idempotent
	c.Done()
}

func TestCounterNil(t *testing.T) {
	// A nil counter must be usable.
	var c *progress.Counter
	c.Add(1)
	c.SetMax(42)
	c.Done()
}
