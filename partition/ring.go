// Package partition maps dataset ids to their single responsible
// storage node and locates ring neighbors for ghost exchange.
//
// A dataset id has exactly one owner node cluster-wide; every other
// node that receives a request addressed by that id must forward it,
// at most one hop, to the owner (SPEC_FULL §4.1).
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package partition

import (
	"github.com/steffenkarlsson/bdae-storage/cmn"
)

// Ring answers responsibility and neighbor queries for one node's
// view of the cluster. It holds no mutable state; node membership is
// fixed for the lifetime of a process (SPEC_FULL Non-goals: no
// rebalancing when the node set changes at runtime).
type Ring struct {
	nodeIdx int
	peers   []string // peer addresses, excluding self, ring order
	space   uint64
}

// New builds a Ring from a config.
func New(cfg *cmn.Config) *Ring {
	return &Ring{
		nodeIdx: cfg.NodeIdx,
		peers:   cfg.Peers,
		space:   cfg.SpaceSize(),
	}
}

// Responsibility is the result of resolving a dataset id's owner: the
// local node ("self" via IsSelf) or a peer to forward to.
type Responsibility struct {
	IsSelf bool
	Peer   string
}

// FindResponsibility returns the node responsible for did. If it is
// this node, IsSelf is true and Peer is empty; otherwise Peer holds
// the address to forward the operation to, verbatim, at most one hop
// (the owner is authoritative and never forwards further).
func (r *Ring) FindResponsibility(did cmn.DIdentifier) Responsibility {
	responsible := int(uint64(did) / r.space)
	if responsible == r.nodeIdx {
		return Responsibility{IsSelf: true}
	}
	// Self is excluded from r.peers, so a node before this one keeps its
	// global index in r.peers and a node after it sits one slot earlier.
	if responsible < r.nodeIdx {
		return Responsibility{Peer: r.peers[responsible]}
	}
	return Responsibility{Peer: r.peers[responsible-1]}
}

// Neighbors returns the ring predecessor and successor used for ghost
// exchange, irrespective of dataset ownership. Returns ok=false when
// there are no peers (single-node deployment).
func (r *Ring) Neighbors() (left, right string, ok bool) {
	n := len(r.peers)
	if n == 0 {
		return "", "", false
	}
	left = r.peers[((r.nodeIdx-1)%n+n)%n]
	right = r.peers[r.nodeIdx%n]
	return left, right, true
}

// NodeIdx is this node's index in the ring.
func (r *Ring) NodeIdx() int { return r.nodeIdx }

// IsRoot reports whether this node is the dataset's creating
// ("root") node, identified by the node index stamped into the
// dataset's metadata at creation time.
func (r *Ring) IsRoot(rootIdx int) bool { return r.nodeIdx == rootIdx }
