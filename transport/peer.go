// Package transport is this node's outbound RPC surface to its peer
// storage nodes and to gateways: dataset forwarding (§4.1), the
// initialize_execution broadcast and ghost-exchange sends (§4.4/§4.6),
// tree-barrier round forwarding (§4.5), and the terminate_job status
// callback. Synchronous calls return a result; broadcasts are
// fire-and-forget, following the teacher's bcastPost/results-channel
// idiom from ais/prxtxn.go, bounded with the same
// golang.org/x/sync/errgroup pool used by the pipeline interpreter.
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/steffenkarlsson/bdae-storage/cmn"
)

// broadcastWorkers bounds how many peer calls run concurrently during
// a fan-out, matching the pipeline's fixed worker-pool sizing idiom.
const broadcastWorkers = 8

// Path is the HTTP endpoint this node exposes for a given RPC, shared
// between client and server so both sides agree on routing.
type Path string

const (
	PathForward        Path = "/v1/forward"
	PathInitializeExec Path = "/v1/initialize-execution"
	PathGhost          Path = "/v1/ghost"
	PathReduce         Path = "/v1/reduce"
	PathReportStatus   Path = "/v1/report-status"
)

// Client issues RPCs to other storage nodes and to gateways. A single
// Client instance is shared process-wide; callers pass the target
// address per call since the peer set is fixed for the process
// lifetime (SPEC_FULL Non-goals: no membership changes at runtime).
type Client struct {
	http *http.Client
}

// New builds a Client with a bounded per-call timeout, matching the
// teacher's client construction in ais/client.go (a shared
// *http.Client, never one-per-request).
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Call issues a synchronous POST of body to addr+path and returns the
// raw response envelope.
func (c *Client) Call(ctx context.Context, addr string, path Path, body cmn.Envelope) (cmn.Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, string(addr)+string(path), bytes.NewReader(body.Body))
	if err != nil {
		return cmn.Envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return cmn.Envelope{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return cmn.Envelope{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return cmn.Envelope{}, fmt.Errorf("transport: %s %s: status %d", path, addr, resp.StatusCode)
	}
	return cmn.NewEnvelope(data), nil
}

// Broadcast fires body at path on every peer in parallel and returns
// only after every call has finished (or timed out); it does not
// return early and leave the calls running. Responses are not
// inspected. Failures are logged, not returned — a peer that's
// unreachable for one broadcast does not fail the initiating node's
// own execution.
func (c *Client) Broadcast(ctx context.Context, peers []string, path Path, body cmn.Envelope) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastWorkers)
	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			if _, err := c.Call(ctx, peer, path, body); err != nil {
				glog.Warningf("transport: broadcast %s to %s failed: %v", path, peer, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
