package ghost

import (
	"testing"

	"github.com/steffenkarlsson/bdae-storage/cache"
	"github.com/steffenkarlsson/bdae-storage/cmn"
	"github.com/steffenkarlsson/bdae-storage/operation"
	"github.com/steffenkarlsson/bdae-storage/store"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestGhost(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ghost Exchange Suite")
}

var _ = Describe("ghost exchange admission", func() {
	It("needs no exchange when the pipeline never touches a neighbor", func() {
		d := Decide(&operation.Context{})
		Expect(d.Needed).To(BeFalse())
	})

	It("needs both sides when the pipeline reaches left and right", func() {
		d := Decide(bothSidesCtx(2))
		Expect(d.Needed).To(BeTrue())
		Expect(d.NeedsBoth).To(BeTrue())
	})

	It("needs exactly one side when only one neighbor is touched", func() {
		d := Decide(&operation.Context{GhostLeft: true, GhostCount: 1})
		Expect(d.Needed).To(BeTrue())
		Expect(d.NeedsBoth).To(BeFalse())
	})
})

var _ = Describe("ghost cache admission gate", func() {
	It("starts immediately when only one side is ever needed", func() {
		gc := cache.NewGhostCache()
		msg := Message{Left: []store.Block{{1}}, NeedsBoth: false, FIdentifier: cmn.FIdentifier(1)}
		Expect(Receive(gc, msg, 1)).To(BeTrue())
	})

	It("holds the receiver until both ghost slices have arrived", func() {
		gc := cache.NewGhostCache()
		const fid = cmn.FIdentifier(7)

		By("the left side arriving alone")
		start := Receive(gc, Message{Left: []store.Block{{1}}, NeedsBoth: true, FIdentifier: fid}, 5)
		Expect(start).To(BeFalse(), "must keep waiting for the right side")

		By("the right side arriving to complete the pair")
		start = Receive(gc, Message{Right: []store.Block{{2}}, NeedsBoth: true, FIdentifier: fid}, 5)
		Expect(start).To(BeTrue())
	})

	It("panics on a malformed message carrying neither side", func() {
		gc := cache.NewGhostCache()
		call := func() {
			Receive(gc, Message{NeedsBoth: false, FIdentifier: cmn.FIdentifier(3)}, 1)
		}
		Expect(call).To(Panic())
	})
})
