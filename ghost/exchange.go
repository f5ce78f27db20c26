// Package ghost implements the ghost-exchange protocol that stitches
// cross-block context between neighboring shards before a pipeline
// that needs it runs (SPEC_FULL §4.4).
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package ghost

import (
	"github.com/golang/glog"

	"github.com/steffenkarlsson/bdae-storage/cache"
	"github.com/steffenkarlsson/bdae-storage/cmn"
	"github.com/steffenkarlsson/bdae-storage/operation"
	"github.com/steffenkarlsson/bdae-storage/store"
)

// Message is what travels over the wire (or, single-node, loops back
// to the sender directly) between neighboring storage nodes.
// function_args carries everything the receiver needs to resume
// execution once it's gated in (SPEC_FULL §4.4).
type Message struct {
	Left         []store.Block
	Right        []store.Block
	NeedsBoth    bool
	DIdentifier  cmn.DIdentifier
	FIdentifier  cmn.FIdentifier
	FunctionName string
	Meta         store.Metadata
	Root         int
	Query        string
}

// Extracted holds the edge slices a node computes from its own block
// list, ready to send to its neighbors.
type Extracted struct {
	// RightGhost is sent to the LEFT neighbor: the FIRST GhostCount
	// records of each block (the left neighbor needs this node's
	// leading context).
	RightGhost []store.Block
	// LeftGhost is sent to the RIGHT neighbor: the LAST GhostCount
	// records of each block.
	LeftGhost []store.Block
}

// Extract builds the edge slices from a node's own blocks per
// SPEC_FULL §4.4. A node sends its leading edge (RightGhost) to the
// LEFT neighbor when the *right* side of the pipeline's context needs
// it, and its trailing edge (LeftGhost) to the RIGHT neighbor when the
// *left* side needs it (original_source storage.py:77-78: `send_left =
// ghost_right`, `send_right = ghost_left` — gated on the far side's
// requirement, not this node's own). isRoot zeroes RightGhost[0] (no
// wrap-around before the first block); local (single-node deployment,
// no peers) also zeroes it, since the "previous node" is this same
// node's own first block.
func Extract(ctx *operation.Context, blocks []store.Block, isRoot, local bool) Extracted {
	var ex Extracted
	count := ctx.GhostCount

	if ctx.GhostRight {
		ex.RightGhost = make([]store.Block, len(blocks))
		for i, b := range blocks {
			ex.RightGhost[i] = firstN(b, count)
		}
		if (isRoot || local) && len(ex.RightGhost) > 0 {
			ex.RightGhost[0] = nil
		}
	}
	if ctx.GhostLeft {
		ex.LeftGhost = make([]store.Block, len(blocks))
		for i, b := range blocks {
			ex.LeftGhost[i] = lastN(b, count)
		}
	}
	return ex
}

func firstN(b store.Block, n int) store.Block {
	if n >= len(b) {
		return append(store.Block{}, b...)
	}
	return append(store.Block{}, b[:n]...)
}

func lastN(b store.Block, n int) store.Block {
	if n >= len(b) {
		return append(store.Block{}, b...)
	}
	return append(store.Block{}, b[len(b)-n:]...)
}

// Decision records whether a node must wait for ghost exchange before
// it may start local pipeline execution.
type Decision struct {
	Needed    bool
	NeedsBoth bool
}

// Decide consults the operation context: no exchange is needed at
// all when neither side is configured (SPEC_FULL §4.4 first rule).
func Decide(ctx *operation.Context) Decision {
	return Decision{Needed: ctx.NeedsGhost(), NeedsBoth: ctx.NeedsBothGhosts()}
}

// Receive applies an incoming ghost message to the local ghost cache
// and reports whether execution may now start: immediately if the
// message doesn't need both sides, or once the other side is already
// present if it does (SPEC_FULL §4.4 receipt/gating).
//
// Single-node loopback correction (SPEC_FULL §7): when the received
// left ghost has as many block slots as a non-root block list (i.e.
// it wasn't trimmed the way a root's right_ghost[0] is), a nil slot is
// prepended and the last slot is dropped — this only ever fires
// on the local, single-node path where a node hands its own slices
// to its own cache.
func Receive(gc *cache.GhostCache, msg Message, localBlockCount int) (startNow bool) {
	left, right := msg.Left, msg.Right

	if left != nil && len(left) == localBlockCount {
		shifted := make([]store.Block, len(left))
		copy(shifted[1:], left[:len(left)-1])
		left = shifted
	}

	var entry *cache.GhostEntry
	if left != nil {
		glog.V(3).Infof("ghost: storing left ghost for job %d", msg.FIdentifier)
		entry = gc.PutLeft(msg.FIdentifier, left)
	}
	if right != nil {
		glog.V(3).Infof("ghost: storing right ghost for job %d", msg.FIdentifier)
		entry = gc.PutRight(msg.FIdentifier, right)
	}
	if entry == nil {
		// Assertion per SPEC_FULL §4.4: at least one side must be non-nil.
		panic("ghost: received message with both sides nil")
	}

	if !msg.NeedsBoth {
		return true
	}
	return entry.HasLeft && entry.HasRight
}

// Merge concatenates left[i] ++ block[i] ++ right[i] for every block
// index, treating a missing side as empty, replacing the block list
// before the pipeline runs (SPEC_FULL §4.4 "Merging at execution").
func Merge(blocks []store.Block, entry *cache.GhostEntry) []store.Block {
	out := make([]store.Block, len(blocks))
	for i, b := range blocks {
		var left, right store.Block
		if entry != nil && i < len(entry.Left) {
			left = entry.Left[i]
		}
		if entry != nil && i < len(entry.Right) {
			right = entry.Right[i]
		}
		merged := make(store.Block, 0, len(left)+len(b)+len(right))
		merged = append(merged, left...)
		merged = append(merged, b...)
		merged = append(merged, right...)
		out[i] = merged
	}
	return out
}
