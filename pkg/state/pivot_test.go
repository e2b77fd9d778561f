package state

import (
	"github.com/deniswernert/go-fstab"
	"github.com/ephroot/takeover/pkg/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("pivot state machine", func() {
	var s *State

	BeforeEach(func() {
		s = New(config.Default())
	})

	It("advances one step at a time", func() {
		Expect(s.transition(SessionEstablished)).ToNot(HaveOccurred())
		Expect(s.transition(Prepared)).ToNot(HaveOccurred())
		Expect(s.transition(Committed)).ToNot(HaveOccurred())
		Expect(s.transition(ReexecTriggered)).ToNot(HaveOccurred())
		Expect(s.PivotStatus()).To(Equal(ReexecTriggered))
	})

	It("refuses to skip states", func() {
		Expect(s.transition(Prepared)).To(HaveOccurred())
		Expect(s.transition(Committed)).To(HaveOccurred())
		Expect(s.PivotStatus()).To(Equal(AwaitingOperator))
	})

	It("refuses to move backwards", func() {
		Expect(s.transition(SessionEstablished)).ToNot(HaveOccurred())
		Expect(s.transition(AwaitingOperator)).To(HaveOccurred())
		Expect(s.PivotStatus()).To(Equal(SessionEstablished))
	})

	It("refuses to stand still", func() {
		Expect(s.transition(AwaitingOperator)).To(HaveOccurred())
	})

	It("names every state", func() {
		for _, p := range []PivotState{AwaitingOperator, SessionEstablished, Prepared, Committed, ReexecTriggered} {
			Expect(p.String()).ToNot(ContainSubstring("PivotState("))
		}
	})
})

var _ = Describe("fstab accumulation", func() {
	It("skips duplicated entries", func() {
		s := New(config.Default())
		s.AddToFstab(&fstab.Mount{Spec: "proc", File: "/proc", VfsType: "proc"})
		s.AddToFstab(&fstab.Mount{Spec: "proc", File: "/proc", VfsType: "proc"})
		s.AddToFstab(&fstab.Mount{Spec: "tmpfs", File: "/tmp", VfsType: "tmpfs"})
		Expect(s.fstabs).To(HaveLen(2))
	})
})
