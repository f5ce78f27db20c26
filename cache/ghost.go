package cache

import (
	"sync"

	"github.com/steffenkarlsson/bdae-storage/cmn"
	"github.com/steffenkarlsson/bdae-storage/store"
)

// GhostEntry holds whichever edge slices have arrived so far for a
// job: per-block left ghost (received from the left neighbor) and/or
// right ghost (received from the right neighbor). Created by the
// first incoming edge slice for a job, consumed once at execution
// start, then discarded (SPEC_FULL §3 lifecycle).
type GhostEntry struct {
	Left     []store.Block // per-block slice, nil entries mean "no slice for this block"
	Right    []store.Block
	HasLeft  bool
	HasRight bool
}

// GhostCache is single-producer-per-side, single-consumer (the
// execute path), keyed by job id.
type GhostCache struct {
	mu      sync.Mutex
	entries map[cmn.FIdentifier]*GhostEntry
}

func NewGhostCache() *GhostCache {
	return &GhostCache{entries: make(map[cmn.FIdentifier]*GhostEntry)}
}

// PutLeft records the left-side ghost slices for fid, creating the
// entry if this is the first side to arrive. Returns the entry so the
// caller can immediately check readiness.
func (c *GhostCache) PutLeft(fid cmn.FIdentifier, left []store.Block) *GhostEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[fid]
	if e == nil {
		e = &GhostEntry{}
		c.entries[fid] = e
	}
	e.Left = left
	e.HasLeft = true
	return e
}

// PutRight is PutLeft's mirror for the right-side ghost.
func (c *GhostCache) PutRight(fid cmn.FIdentifier, right []store.Block) *GhostEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[fid]
	if e == nil {
		e = &GhostEntry{}
		c.entries[fid] = e
	}
	e.Right = right
	e.HasRight = true
	return e
}

// Get returns the ghost entry for fid without consuming it.
func (c *GhostCache) Get(fid cmn.FIdentifier) (*GhostEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fid]
	return e, ok
}

// Consume removes and returns the ghost entry for fid: execution
// consumes it exactly once at start.
func (c *GhostCache) Consume(fid cmn.FIdentifier) (*GhostEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fid]
	if ok {
		delete(c.entries, fid)
	}
	return e, ok
}
