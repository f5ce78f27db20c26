package barrier

import "testing"

func TestTreeReductionSingleNode(t *testing.T) {
	tree := New(0, 0, 1)
	role, _ := tree.Round(0)
	if role != RoleDone {
		t.Fatalf("expected a lone node to be immediately done, got %v", role)
	}
}

func TestRelativeWrapsAroundRoot(t *testing.T) {
	tree := New(1, 3, 4)
	if got := tree.Relative(); got != 2 {
		t.Fatalf("relative = %d, want 2", got)
	}
}

func TestIsRoot(t *testing.T) {
	if !New(2, 2, 4).IsRoot() {
		t.Fatalf("expected node 2 to be root")
	}
	if New(1, 2, 4).IsRoot() {
		t.Fatalf("expected node 1 to not be root")
	}
}

func TestPeerAddressSelfVsOther(t *testing.T) {
	peers := []string{"node1", "node2", "node3"}
	if _, isSelf := PeerAddress(peers, 0, 0); !isSelf {
		t.Fatalf("expected self to be reported for matching index")
	}
	addr, isSelf := PeerAddress(peers, 0, 2)
	if isSelf || addr != "node2" {
		t.Fatalf("expected peers[1]=node2, got addr=%q isSelf=%v", addr, isSelf)
	}
}
