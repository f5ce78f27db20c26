package cache

import (
	"testing"

	"github.com/steffenkarlsson/bdae-storage/cmn"
	"github.com/steffenkarlsson/bdae-storage/store"
)

func TestGhostCacheGatingNeedsBoth(t *testing.T) {
	c := NewGhostCache()
	const fid = cmn.FIdentifier(9)

	e := c.PutLeft(fid, []store.Block{{1, 2}})
	if e.HasLeft == e.HasRight {
		t.Fatalf("expected only left to be present")
	}

	e = c.PutRight(fid, []store.Block{{3, 4}})
	if !e.HasLeft || !e.HasRight {
		t.Fatalf("expected both sides present after second put")
	}
}

func TestGhostCacheConsumeOnce(t *testing.T) {
	c := NewGhostCache()
	const fid = cmn.FIdentifier(1)
	c.PutLeft(fid, []store.Block{{1}})

	e, ok := c.Consume(fid)
	if !ok || e == nil {
		t.Fatalf("expected entry on first consume")
	}
	if _, ok := c.Consume(fid); ok {
		t.Fatalf("expected entry gone after consume")
	}
}
