package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/steffenkarlsson/bdae-storage/cmn"
)

func TestCallRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != string(PathForward) {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(time.Second)
	resp, err := c.Call(context.Background(), srv.URL, PathForward, cmn.NewEnvelope([]byte(`{}`)))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var v struct{ Ok bool }
	if err := resp.Decode(&v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !v.Ok {
		t.Fatalf("expected ok=true")
	}
}

func TestCallSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(time.Second)
	_, err := c.Call(context.Background(), srv.URL, PathForward, cmn.NewEnvelope([]byte(`{}`)))
	if err == nil {
		t.Fatalf("expected error on 404 response")
	}
}

func TestBroadcastReachesEveryPeerDespiteFailures(t *testing.T) {
	var hits int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := New(time.Second)
	c.Broadcast(context.Background(), []string{ok.URL, bad.URL, ok.URL}, PathInitializeExec, cmn.NewEnvelope([]byte(`{}`)))

	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 hits on the healthy peer, got %d", hits)
	}
}
