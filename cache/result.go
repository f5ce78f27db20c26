// Package cache holds the two in-memory, non-persisted caches the
// job coordinator and ghost-exchange protocol depend on: the result
// cache (duplicate-job admission, partial/final values) and the ghost
// cache (received edge slices awaiting a local execution start).
// Neither survives a restart (SPEC_FULL Non-goals).
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package cache

import (
	"sync"

	"github.com/steffenkarlsson/bdae-storage/cmn"
)

// ResultEntry is the result-cache slot addressed by (did, fid): a
// partial or final value, whether the slot is reserved (placeholder
// written but no value yet), whether the job is still in flight, and
// — root nodes only — the originating gateway address to report to.
type ResultEntry struct {
	Partial  interface{}
	Reserved bool
	Working  bool
	Gateway  string
}

type resultKey struct {
	did cmn.DIdentifier
	fid cmn.FIdentifier
}

// ResultCache is a single mutex-guarded map, matching the teacher's
// lomAcks/errCache shape (SPEC_FULL §9: "a single lock per dataset id
// is acceptable").
type ResultCache struct {
	mu      sync.Mutex
	entries map[resultKey]*ResultEntry
}

func NewResultCache() *ResultCache {
	return &ResultCache{entries: make(map[resultKey]*ResultEntry)}
}

// Get returns the entry for (did, fid), if any.
func (c *ResultCache) Get(did cmn.DIdentifier, fid cmn.FIdentifier) (*ResultEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[resultKey{did, fid}]
	return e, ok
}

// PutPlaceholder atomically inserts an in-flight placeholder entry
// for (did, fid) if none already exists, returning the existing entry
// and false if one was already present (the caller uses this to
// detect duplicate submits, SPEC_FULL §4.6 step 2-3).
func (c *ResultCache) PutPlaceholder(did cmn.DIdentifier, fid cmn.FIdentifier, gateway string) (*ResultEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := resultKey{did, fid}
	if e, ok := c.entries[k]; ok {
		return e, false
	}
	e := &ResultEntry{Reserved: true, Working: true, Gateway: gateway}
	c.entries[k] = e
	return e, true
}

// Set replaces the entry for (did, fid) wholesale.
func (c *ResultCache) Set(did cmn.DIdentifier, fid cmn.FIdentifier, e *ResultEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[resultKey{did, fid}] = e
}

// Delete removes the entry for (did, fid), used to roll back a
// placeholder when submission aborts before broadcast.
func (c *ResultCache) Delete(did cmn.DIdentifier, fid cmn.FIdentifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, resultKey{did, fid})
}

// ResultSnapshot is a point-in-time copy of one cache entry, keyed,
// for read-only inspection (admincli's `show jobs`).
type ResultSnapshot struct {
	DIdentifier cmn.DIdentifier
	FIdentifier cmn.FIdentifier
	Working     bool
	Gateway     string
}

// Snapshot copies every entry out of the cache for inspection. Never
// used on a hot path: the lock is held for the whole copy.
func (c *ResultCache) Snapshot() []ResultSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ResultSnapshot, 0, len(c.entries))
	for k, e := range c.entries {
		out = append(out, ResultSnapshot{DIdentifier: k.did, FIdentifier: k.fid, Working: e.Working, Gateway: e.Gateway})
	}
	return out
}

// InFlightJobCount returns the number of jobs currently marked
// working, satisfying health.Prober for the heartbeat snapshot.
func (c *ResultCache) InFlightJobCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.Working {
			n++
		}
	}
	return n
}

// InvalidateDataset clears every cached result for did: an append
// changed the dataset's contents, so any previously-computed result
// for it is stale (SPEC_FULL §4.2/§8 property 4). This also drops the
// placeholder of any in-flight job for did — that job still completes
// and reports to its gateway independently, but its stored result is
// gone and will not be served to duplicate submits (SPEC_FULL §5).
func (c *ResultCache) InvalidateDataset(did cmn.DIdentifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.did == did {
			delete(c.entries, k)
		}
	}
}
