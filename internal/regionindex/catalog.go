package regionindex

import (
	"sync"
	"sync/atomic"
	"time"

	"regionmap/internal/metrics"
	"regionmap/internal/regionsrc"
)

// Snapshot is the outcome of one load as seen by read-only consumers.
type Snapshot struct {
	Status   regionsrc.Status
	Source   regionsrc.SourceDescriptor
	Index    *Index
	Stats    Stats
	LoadedAt time.Time
}

// Catalog publishes the most recent snapshot process-wide. Reads never block;
// publishers are serialized so the loaded check and the store are one step.
type Catalog struct {
	mu sync.Mutex
	v  atomic.Value
}

// Publish replaces the current snapshot. Pending snapshots are ignored, and an
// unavailable one does not replace a loaded one, so a view that gave up or
// failed cannot wipe a finished load.
func (c *Catalog) Publish(s Snapshot) {
	if s.Status == regionsrc.StatusPending {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.Current(); ok && cur.Status == regionsrc.StatusLoaded && s.Status != regionsrc.StatusLoaded {
		return
	}
	if s.LoadedAt.IsZero() {
		s.LoadedAt = time.Now()
	}
	n := 0
	if s.Index != nil {
		n = s.Index.Len()
	}
	metrics.FeaturesIndexed.Set(float64(n))
	c.v.Store(s)
}

// Current returns the latest snapshot; ok is false before the first Publish.
func (c *Catalog) Current() (Snapshot, bool) {
	s, ok := c.v.Load().(Snapshot)
	return s, ok
}
