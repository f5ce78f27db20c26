package ghost

import (
	"testing"

	"github.com/steffenkarlsson/bdae-storage/cache"
	"github.com/steffenkarlsson/bdae-storage/operation"
	"github.com/steffenkarlsson/bdae-storage/store"
)

func bothSidesCtx(count int) *operation.Context {
	return &operation.Context{GhostLeft: true, GhostRight: true, GhostCount: count}
}

func TestExtractRootZeroesLeadingRightGhost(t *testing.T) {
	ctx := bothSidesCtx(2)
	blocks := []store.Block{{1, 2, 3, 4}, {5, 6, 7}}
	ex := Extract(ctx, blocks, true, false)

	if ex.RightGhost[0] != nil {
		t.Fatalf("expected root's leading right ghost slot to be nil, got %v", ex.RightGhost[0])
	}
	if len(ex.RightGhost[1]) != 2 {
		t.Fatalf("expected 2 leading records, got %v", ex.RightGhost[1])
	}
	if len(ex.LeftGhost[0]) != 2 || ex.LeftGhost[0][0] != 3 {
		t.Fatalf("expected trailing 2 records from block 0, got %v", ex.LeftGhost[0])
	}
}

func TestExtractSingleSidedOnlyPopulatesTheRequestedGhost(t *testing.T) {
	blocks := []store.Block{{1, 2, 3, 4}, {5, 6, 7}}

	rightOnly := Extract(&operation.Context{GhostRight: true, GhostCount: 2}, blocks, false, false)
	if rightOnly.LeftGhost != nil {
		t.Fatalf("expected no left ghost when only GhostRight is set, got %v", rightOnly.LeftGhost)
	}
	if len(rightOnly.RightGhost) != 2 || len(rightOnly.RightGhost[0]) != 2 || rightOnly.RightGhost[0][0] != 1 {
		t.Fatalf("expected leading records sent as right ghost, got %v", rightOnly.RightGhost)
	}

	leftOnly := Extract(&operation.Context{GhostLeft: true, GhostCount: 2}, blocks, false, false)
	if leftOnly.RightGhost != nil {
		t.Fatalf("expected no right ghost when only GhostLeft is set, got %v", leftOnly.RightGhost)
	}
	if len(leftOnly.LeftGhost) != 2 || len(leftOnly.LeftGhost[0]) != 2 || leftOnly.LeftGhost[0][1] != 4 {
		t.Fatalf("expected trailing records sent as left ghost, got %v", leftOnly.LeftGhost)
	}
}

func TestExtractCountExceedsBlockLength(t *testing.T) {
	ctx := bothSidesCtx(10)
	blocks := []store.Block{{1, 2}}
	ex := Extract(ctx, blocks, false, false)
	if len(ex.RightGhost[0]) != 2 || len(ex.LeftGhost[0]) != 2 {
		t.Fatalf("expected whole block returned when count exceeds length")
	}
}

func TestMergeConcatenatesAroundBlock(t *testing.T) {
	blocks := []store.Block{{10, 11}}
	entry := &cache.GhostEntry{Left: []store.Block{{1, 2}}, Right: []store.Block{{20}}, HasLeft: true, HasRight: true}

	merged := Merge(blocks, entry)
	want := store.Block{1, 2, 10, 11, 20}
	if len(merged[0]) != len(want) {
		t.Fatalf("unexpected merge length: %v", merged[0])
	}
	for i, v := range want {
		if merged[0][i] != v {
			t.Fatalf("merge[%d] = %v, want %v", i, merged[0][i], v)
		}
	}
}

func TestMergeHandlesMissingEntry(t *testing.T) {
	blocks := []store.Block{{1, 2}}
	merged := Merge(blocks, nil)
	if len(merged[0]) != 2 {
		t.Fatalf("expected block unchanged when no ghost entry present, got %v", merged[0])
	}
}
