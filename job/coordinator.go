// Package job implements the job coordinator: admission, peer
// fan-out, the ghost-gated and tree-barrier-reduced execution
// pipeline, and termination reporting (SPEC_FULL §4.6), plus the
// forwarding wrappers for the block-store's externally invoked
// operations (SPEC_FULL §4.1/§6.1).
//
// Grounded on reb/global.go's RunGlobalReb orchestration shape: one
// long-lived coordinator object threading a fixed peer set through a
// staged, round-numbered protocol, reporting completion back to a
// caller-supplied address.
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package job

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/steffenkarlsson/bdae-storage/barrier"
	"github.com/steffenkarlsson/bdae-storage/cache"
	"github.com/steffenkarlsson/bdae-storage/cmn"
	"github.com/steffenkarlsson/bdae-storage/ghost"
	"github.com/steffenkarlsson/bdae-storage/operation"
	"github.com/steffenkarlsson/bdae-storage/partition"
	"github.com/steffenkarlsson/bdae-storage/pipeline"
	"github.com/steffenkarlsson/bdae-storage/store"
	"github.com/steffenkarlsson/bdae-storage/transport"
)

// ProgramResolver turns a dataset's stored metadata into the
// deserialized user program. How the program's "source" blob becomes
// a Program — trust, sandboxing, class lookup — is a hook this
// package only consumes (SPEC_FULL §9); it never deserializes
// anything itself.
type ProgramResolver func(meta store.Metadata) (operation.Program, error)

// RPC is the outbound surface the coordinator needs from transport:
// a synchronous call and a fire-and-forget broadcast. transport.Client
// satisfies this; tests substitute a fake.
type RPC interface {
	Call(ctx context.Context, addr string, path transport.Path, body cmn.Envelope) (cmn.Envelope, error)
	Broadcast(ctx context.Context, peers []string, path transport.Path, body cmn.Envelope)
}

type jobKey struct {
	did cmn.DIdentifier
	fid cmn.FIdentifier
}

// jobState tracks whether this node's own round-0 partial is ready
// yet, closing ready exactly once. Callers that must not apply a
// received partial before their own is computed block on ready
// (SPEC_FULL §5's flagged ordering gap, §9). It also tracks the
// highest tree-barrier round this node has finished combining:
// inbound reduce messages carry no network ordering guarantee, so a
// later round's message must wait for an earlier round still in
// flight rather than let Round(itr) race ahead to RoleDone and drop
// the earlier partial (§8 property 7).
type jobState struct {
	ready  chan struct{}
	closed bool

	nextRound  int
	roundReady chan struct{}
}

// Coordinator is one storage node's job coordinator: it owns no
// network listener itself (that's cmd/storagenode's concern) but
// implements every operation an inbound RPC handler delegates to.
type Coordinator struct {
	cfg     *cmn.Config
	ring    *partition.Ring
	blocks  *store.Store
	results *cache.ResultCache
	ghosts  *cache.GhostCache
	client  RPC
	resolve ProgramResolver

	mu     sync.Mutex
	states map[jobKey]*jobState
	merged map[jobKey][]store.Block // ghost-merged blocks staged for round-0 execution
}

// New builds a Coordinator over the given node's components.
func New(cfg *cmn.Config, ring *partition.Ring, blocks *store.Store, results *cache.ResultCache, ghosts *cache.GhostCache, client RPC, resolve ProgramResolver) *Coordinator {
	return &Coordinator{
		cfg: cfg, ring: ring, blocks: blocks, results: results, ghosts: ghosts,
		client: client, resolve: resolve,
		states: make(map[jobKey]*jobState),
		merged: make(map[jobKey][]store.Block),
	}
}

func (co *Coordinator) state(k jobKey) *jobState {
	co.mu.Lock()
	defer co.mu.Unlock()
	st, ok := co.states[k]
	if !ok {
		st = &jobState{ready: make(chan struct{}), roundReady: make(chan struct{})}
		co.states[k] = st
	}
	return st
}

func (co *Coordinator) markSelfReady(k jobKey) {
	st := co.state(k)
	co.mu.Lock()
	if !st.closed {
		st.closed = true
		close(st.ready)
	}
	co.mu.Unlock()
}

func (co *Coordinator) waitSelfReady(ctx context.Context, k jobKey) {
	st := co.state(k)
	select {
	case <-st.ready:
	case <-ctx.Done():
	}
}

// waitForRound blocks until round itr-1 (the round immediately before
// itr) has been combined for k, so an out-of-order inbound reduce
// message never jumps ahead of one still in flight.
func (co *Coordinator) waitForRound(ctx context.Context, k jobKey, itr int) error {
	for {
		st := co.state(k)
		co.mu.Lock()
		done := st.nextRound >= itr-1
		wait := st.roundReady
		co.mu.Unlock()
		if done {
			return nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// advanceRound records that round itr has been fully combined for k,
// releasing any goroutine waiting on a later round.
func (co *Coordinator) advanceRound(k jobKey, itr int) {
	st := co.state(k)
	co.mu.Lock()
	if itr > st.nextRound {
		st.nextRound = itr
		close(st.roundReady)
		st.roundReady = make(chan struct{})
	}
	co.mu.Unlock()
}

func rootIdxFromMeta(meta store.Metadata) int {
	switch v := meta["root-idx"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// ---- §4.1/§6.1 forwarding wrappers ----

// Create admits a new dataset, forwarding to the responsible node
// when this one isn't it.
func (co *Coordinator) Create(ctx context.Context, did cmn.DIdentifier, meta store.Metadata) (cmn.Status, error) {
	resp := co.ring.FindResponsibility(did)
	if !resp.IsSelf {
		return co.forwardUnit(ctx, resp.Peer, transport.PathForward, cmn.MustEncode(struct {
			Op   string
			Did  cmn.DIdentifier
			Meta store.Metadata
		}{"create", did, meta}))
	}
	if err := co.blocks.Create(did, meta); err != nil {
		return cmn.StatusFromErr(err), err
	}
	return cmn.StatusSuccess, nil
}

// Append adds a block to a dataset, forwarding when needed, and
// invalidates any cached result for the dataset on success
// (SPEC_FULL §4.2).
func (co *Coordinator) Append(ctx context.Context, did cmn.DIdentifier, block store.Block) (cmn.Status, error) {
	resp := co.ring.FindResponsibility(did)
	if !resp.IsSelf {
		return co.forwardUnit(ctx, resp.Peer, transport.PathForward, cmn.MustEncode(struct {
			Op    string
			Did   cmn.DIdentifier
			Block store.Block
		}{"append", did, block}))
	}
	if err := co.blocks.Append(did, block); err != nil {
		return cmn.StatusFromErr(err), err
	}
	co.results.InvalidateDataset(did)
	return cmn.StatusSuccess, nil
}

// GetMeta reads a dataset's metadata, forwarding when needed.
func (co *Coordinator) GetMeta(ctx context.Context, did cmn.DIdentifier) (store.Metadata, cmn.Status, error) {
	resp := co.ring.FindResponsibility(did)
	if !resp.IsSelf {
		env, err := co.client.Call(ctx, resp.Peer, transport.PathForward, cmn.MustEncode(struct {
			Op  string
			Did cmn.DIdentifier
		}{"get_meta", did}))
		if err != nil {
			return nil, cmn.StatusNotFound, err
		}
		var meta store.Metadata
		if err := env.Decode(&meta); err != nil {
			return nil, cmn.StatusInvalidData, err
		}
		return meta, cmn.StatusSuccess, nil
	}
	meta, err := co.blocks.GetMeta(did)
	if err != nil {
		return nil, cmn.StatusFromErr(err), err
	}
	return meta, cmn.StatusSuccess, nil
}

func (co *Coordinator) forwardUnit(ctx context.Context, peer string, path transport.Path, body cmn.Envelope) (cmn.Status, error) {
	env, err := co.client.Call(ctx, peer, path, body)
	if err != nil {
		return cmn.StatusNotFound, err
	}
	var v struct{ Status cmn.Status }
	if err := env.Decode(&v); err != nil {
		return cmn.StatusInvalidData, err
	}
	return v.Status, nil
}

// ---- §4.6 job coordinator ----

// initEnvelope is the payload initialize_execution broadcasts to
// every peer, and InitializeExecution's own parameter set.
type initEnvelope struct {
	DIdentifier  cmn.DIdentifier
	FIdentifier  cmn.FIdentifier
	FunctionName string
	Meta         store.Metadata
	Root         int
	Query        string
}

// RoundMessage is what a sender transmits to its tree-barrier round
// partner: its own partial plus enough context for the receiver to
// resume (SPEC_FULL §4.5).
type RoundMessage struct {
	Itr          int
	DIdentifier  cmn.DIdentifier
	FIdentifier  cmn.FIdentifier
	FunctionName string
	Meta         store.Metadata
	Root         int
	Query        string
	Partial      interface{}
}

// Submit admits a job: forward if this node isn't the dataset owner,
// absorb duplicates via the result cache, else reserve a placeholder
// and kick off cluster-wide execution (SPEC_FULL §4.6).
func (co *Coordinator) Submit(ctx context.Context, did cmn.DIdentifier, fid cmn.FIdentifier, funcName, query, gateway string) error {
	resp := co.ring.FindResponsibility(did)
	if !resp.IsSelf {
		_, err := co.forwardUnit(ctx, resp.Peer, transport.PathForward, cmn.MustEncode(struct {
			Op                       string
			Did                      cmn.DIdentifier
			Fid                      cmn.FIdentifier
			FuncName, Query, Gateway string
		}{"submit", did, fid, funcName, query, gateway}))
		return err
	}

	if entry, ok := co.results.Get(did, fid); ok {
		return co.reportAdmission(ctx, entry, fid, gateway)
	}
	if entry, inserted := co.results.PutPlaceholder(did, fid, gateway); !inserted {
		return co.reportAdmission(ctx, entry, fid, gateway)
	}

	meta, err := co.blocks.GetMeta(did)
	if err != nil {
		co.results.Delete(did, fid)
		return err
	}
	root := rootIdxFromMeta(meta)

	env := cmn.MustEncode(initEnvelope{DIdentifier: did, FIdentifier: fid, FunctionName: funcName, Meta: meta, Root: root, Query: query})
	co.client.Broadcast(ctx, co.cfg.Peers, transport.PathInitializeExec, env)
	return co.InitializeExecution(ctx, did, fid, funcName, meta, root, query)
}

func (co *Coordinator) reportAdmission(ctx context.Context, entry *cache.ResultEntry, fid cmn.FIdentifier, gateway string) error {
	if entry.Working {
		return co.reportStatus(ctx, gateway, fid, cmn.StatusProcessing, nil)
	}
	return co.reportStatus(ctx, gateway, fid, cmn.StatusSuccess, entry.Partial)
}

// InitializeExecution runs the ghost decision for funcName's pipeline
// and either starts execution immediately or triggers an exchange
// (SPEC_FULL §4.4/§4.6).
func (co *Coordinator) InitializeExecution(ctx context.Context, did cmn.DIdentifier, fid cmn.FIdentifier, funcName string, meta store.Metadata, root int, query string) error {
	opCtx, err := co.lookupContext(meta, funcName)
	if err != nil {
		return err
	}

	decision := ghost.Decide(opCtx)
	if !decision.Needed {
		return co.ExecuteFunction(ctx, 0, did, fid, funcName, meta, root, query, nil, false)
	}

	isRoot := co.ring.IsRoot(root)
	blocks, err := co.blocks.Blocks(did, isRoot)
	if err != nil {
		return err
	}

	left, right, ok := co.ring.Neighbors()
	ex := ghost.Extract(opCtx, blocks, isRoot, !ok)
	if !ok {
		// Single-node deployment: hand both edge slices to our own
		// ghost cache directly, no network round trip (SPEC_FULL §4.4).
		msg := ghost.Message{Left: ex.LeftGhost, Right: ex.RightGhost, NeedsBoth: decision.NeedsBoth, FIdentifier: fid}
		if !ghost.Receive(co.ghosts, msg, len(blocks)) {
			return nil
		}
		entry, _ := co.ghosts.Consume(fid)
		return co.startAfterGhost(ctx, did, fid, funcName, meta, root, query, blocks, entry)
	}

	if ex.RightGhost != nil {
		co.sendGhost(ctx, left, ghost.Message{Right: ex.RightGhost, NeedsBoth: decision.NeedsBoth, DIdentifier: did, FIdentifier: fid, FunctionName: funcName, Meta: meta, Root: root, Query: query})
	}
	if ex.LeftGhost != nil {
		co.sendGhost(ctx, right, ghost.Message{Left: ex.LeftGhost, NeedsBoth: decision.NeedsBoth, DIdentifier: did, FIdentifier: fid, FunctionName: funcName, Meta: meta, Root: root, Query: query})
	}
	return nil
}

func (co *Coordinator) sendGhost(ctx context.Context, peer string, msg ghost.Message) {
	if _, err := co.client.Call(ctx, peer, transport.PathGhost, cmn.MustEncode(msg)); err != nil {
		glog.Warningf("job: ghost send to %s failed: %v", peer, err)
	}
}

// ReceiveGhost is the inbound counterpart of sendGhost: apply the
// incoming edge slice and, once gating is satisfied, start round-0
// execution on the merged block list.
func (co *Coordinator) ReceiveGhost(ctx context.Context, msg ghost.Message) error {
	isRoot := co.ring.IsRoot(msg.Root)
	blocks, err := co.blocks.Blocks(msg.DIdentifier, isRoot)
	if err != nil {
		return err
	}
	if !ghost.Receive(co.ghosts, msg, len(blocks)) {
		return nil
	}
	entry, _ := co.ghosts.Consume(msg.FIdentifier)
	return co.startAfterGhost(ctx, msg.DIdentifier, msg.FIdentifier, msg.FunctionName, msg.Meta, msg.Root, msg.Query, blocks, entry)
}

func (co *Coordinator) startAfterGhost(ctx context.Context, did cmn.DIdentifier, fid cmn.FIdentifier, funcName string, meta store.Metadata, root int, query string, blocks []store.Block, entry *cache.GhostEntry) error {
	merged := ghost.Merge(blocks, entry)
	k := jobKey{did, fid}
	co.mu.Lock()
	co.merged[k] = merged
	co.mu.Unlock()
	return co.ExecuteFunction(ctx, 0, did, fid, funcName, meta, root, query, nil, false)
}

// ExecuteFunction computes this node's partial if it hasn't already,
// combines it with an incoming recvValue (waiting for its own
// partial first, closing the ordering gap flagged in SPEC_FULL §5/§9),
// then advances the tree barrier: forward, report, or wait for the
// next inbound round message.
func (co *Coordinator) ExecuteFunction(ctx context.Context, itr int, did cmn.DIdentifier, fid cmn.FIdentifier, funcName string, meta store.Metadata, root int, query string, recvValue interface{}, hasRecv bool) error {
	k := jobKey{did, fid}

	entry, ok := co.results.Get(did, fid)
	if !ok {
		// Only the root reserves a placeholder at Submit; any other node
		// starts its own gateway-less entry here.
		entry = &cache.ResultEntry{}
		co.results.Set(did, fid, entry)
	}

	opCtx, err := co.lookupContext(meta, funcName)
	if err != nil {
		return err
	}

	if entry.Partial == nil {
		blocks, err := co.blockListFor(did, k, co.ring.IsRoot(root))
		if err != nil {
			return err
		}
		value := pipeline.InitialValue(blocks, opCtx, query)
		partial, err := pipeline.Run(opCtx.Pipeline, value)
		if err != nil {
			return err
		}
		entry.Partial = partial
		co.results.Set(did, fid, entry)
	}
	co.markSelfReady(k)

	if hasRecv {
		if err := co.waitForRound(ctx, k, itr); err != nil {
			return err
		}
		co.waitSelfReady(ctx, k)
		entry, _ = co.results.Get(did, fid)
		terminal := pipeline.Terminal(opCtx.Pipeline)
		combined, err := pipeline.Reduce(terminal, recvValue, entry.Partial)
		if err != nil {
			return err
		}
		entry.Partial = combined
		co.results.Set(did, fid, entry)
		co.advanceRound(k, itr)
	}

	n := co.cfg.NumPeers() + 1
	tree := barrier.New(co.cfg.NodeIdx, root, n)
	for {
		role, partnerIdx := tree.Round(itr)
		switch role {
		case barrier.RoleIdle:
			itr++
			continue
		case barrier.RoleSend:
			return co.forwardRound(ctx, partnerIdx, itr+1, did, fid, funcName, meta, root, query, entry.Partial)
		case barrier.RoleDone:
			entry.Working = false
			co.results.Set(did, fid, entry)
			return co.reportStatus(ctx, entry.Gateway, fid, cmn.StatusSuccess, entry.Partial)
		default: // barrier.RoleReceive
			return nil
		}
	}
}

func (co *Coordinator) forwardRound(ctx context.Context, nodeIdx, itr int, did cmn.DIdentifier, fid cmn.FIdentifier, funcName string, meta store.Metadata, root int, query string, partial interface{}) error {
	addr, isSelf := barrier.PeerAddress(co.cfg.Peers, co.cfg.NodeIdx, nodeIdx)
	msg := RoundMessage{Itr: itr, DIdentifier: did, FIdentifier: fid, FunctionName: funcName, Meta: meta, Root: root, Query: query, Partial: partial}
	if isSelf {
		return co.HandleRoundMessage(ctx, msg)
	}
	_, err := co.client.Call(ctx, addr, transport.PathReduce, cmn.MustEncode(msg))
	return err
}

// HandleRoundMessage is the inbound counterpart of forwardRound.
func (co *Coordinator) HandleRoundMessage(ctx context.Context, msg RoundMessage) error {
	return co.ExecuteFunction(ctx, msg.Itr, msg.DIdentifier, msg.FIdentifier, msg.FunctionName, msg.Meta, msg.Root, msg.Query, msg.Partial, true)
}

// blockListFor returns ghost-merged blocks staged for this job's
// round-0 execution if any were staged, else the plain block list.
func (co *Coordinator) blockListFor(did cmn.DIdentifier, k jobKey, isRoot bool) ([]store.Block, error) {
	co.mu.Lock()
	if merged, ok := co.merged[k]; ok {
		delete(co.merged, k)
		co.mu.Unlock()
		return merged, nil
	}
	co.mu.Unlock()
	return co.blocks.Blocks(did, isRoot)
}

func (co *Coordinator) lookupContext(meta store.Metadata, funcName string) (*operation.Context, error) {
	prog, err := co.resolve(meta)
	if err != nil {
		return nil, err
	}
	ctx, ok := operation.Lookup(prog, funcName)
	if !ok {
		return nil, cmn.ErrNotFound
	}
	return ctx, nil
}

// TerminateJob locates the cached result and reports it to the
// stored gateway (SPEC_FULL §4.6 terminate_job).
func (co *Coordinator) TerminateJob(ctx context.Context, did cmn.DIdentifier, fid cmn.FIdentifier, status cmn.Status) error {
	entry, ok := co.results.Get(did, fid)
	if !ok {
		return cmn.ErrNotFound
	}
	return co.reportStatus(ctx, entry.Gateway, fid, status, entry.Partial)
}

type statusReport struct {
	FIdentifier cmn.FIdentifier
	Status      cmn.Status
	Result      interface{}
}

func (co *Coordinator) reportStatus(ctx context.Context, gateway string, fid cmn.FIdentifier, status cmn.Status, result interface{}) error {
	if gateway == "" {
		return nil
	}
	_, err := co.client.Call(ctx, gateway, transport.PathReportStatus, cmn.MustEncode(statusReport{FIdentifier: fid, Status: status, Result: result}))
	return err
}
