package barrier

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestBarrier(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Tree Barrier Reduction Suite")
}

// traceReduction drives every node's Tree through successive rounds
// until all have reached RoleDone or RoleSend, returning how many
// times each node sent (should be exactly once per non-root node).
func traceReduction(n, root int) map[int]int {
	sentOnce := make(map[int]int)
	active := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		active[i] = true
	}

	for itr := 0; itr < 32 && len(active) > 0; itr++ {
		for node := range active {
			tree := New(node, root, n)
			role, partner := tree.Round(itr)
			switch role {
			case RoleSend:
				sentOnce[node]++
				Expect(partner).To(BeNumerically(">=", 0), "node %d sent to invalid partner at round %d", node, itr)
				Expect(partner).To(BeNumerically("<", n), "node %d sent to invalid partner at round %d", node, itr)
				delete(active, node)
			case RoleDone:
				Expect(node).To(Equal(root), "a non-root node signaled done")
				delete(active, node)
			case RoleReceive, RoleIdle:
				// still active next round
			}
		}
	}
	Expect(active).To(BeEmpty(), "every node must terminate within 32 rounds")
	return sentOnce
}

var _ = Describe("binomial tree reduction", func() {
	It("reaches every non-root node exactly once, for a power-of-two cluster", func() {
		const n, root = 8, 0

		By("tracing every node's rounds to termination")
		sentOnce := traceReduction(n, root)

		By("checking each non-root node sent exactly once")
		for node, count := range sentOnce {
			Expect(count).To(Equal(1), "node %d sent %d times", node, count)
		}
		Expect(sentOnce).To(HaveLen(n-1), "expected n-1 distinct senders")
	})

	It("still terminates cleanly for a non-power-of-two cluster", func() {
		const n, root = 5, 2

		sentOnce := traceReduction(n, root)

		for node, count := range sentOnce {
			Expect(count).To(Equal(1), "node %d sent %d times", node, count)
		}
		Expect(sentOnce).To(HaveLen(n-1), "expected n-1 distinct senders")
	})
})
