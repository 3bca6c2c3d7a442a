package state_test

import (
	"worklog/domain/state"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("StateMachine", func() {
	var (
		stateMachine *state.StateMachine

		saved     = state.State{Name: "Saved", Category: state.Draft}
		submitted = state.State{Name: "Submitted", Category: state.InReview}
		approved  = state.State{Name: "Approved", Category: state.Done}
		rejected  = state.State{Name: "Rejected", Category: state.Returned}
	)

	BeforeEach(func() {
		stateMachine = state.NewStateMachine(
			[]state.State{saved, submitted, approved, rejected},
			[]state.Transition{
				{Name: "submit", From: saved, To: submitted},
				{Name: "approve", From: submitted, To: approved},
				{Name: "reject", From: submitted, To: rejected},
				{Name: "reopen", From: rejected, To: saved},
			})
	})

	Describe("FindState", func() {
		It("should find states by name", func() {
			s, found := stateMachine.FindState("Submitted")
			Expect(found).To(BeTrue())
			Expect(s).To(Equal(submitted))

			_, found = stateMachine.FindState("UNKNOWN")
			Expect(found).To(BeFalse())
		})
	})

	Describe("FindTransition", func() {
		It("should find transitions by action name", func() {
			t, found := stateMachine.FindTransition("reject")
			Expect(found).To(BeTrue())
			Expect(t.From).To(Equal(submitted))
			Expect(t.To).To(Equal(rejected))

			_, found = stateMachine.FindTransition("archive")
			Expect(found).To(BeFalse())
		})
	})

	Describe("AvailableTransitions", func() {
		It("should return available transitions as expected", func() {
			Ω(stateMachine.AvailableTransitions("Saved", "")).Should(Equal([]state.Transition{
				{Name: "submit", From: saved, To: submitted},
			}))

			Ω(stateMachine.AvailableTransitions("Submitted", "")).Should(Equal([]state.Transition{
				{Name: "approve", From: submitted, To: approved},
				{Name: "reject", From: submitted, To: rejected},
			}))

			// Approved is terminal
			Ω(len(stateMachine.AvailableTransitions("Approved", ""))).Should(Equal(0))

			Ω(stateMachine.AvailableTransitions("", "Approved")).Should(Equal([]state.Transition{
				{Name: "approve", From: submitted, To: approved},
			}))

			Ω(len(stateMachine.AvailableTransitions("UNKNOWN", ""))).Should(Equal(0))
		})
	})

	Describe("Category", func() {
		It("should only allow edits in draft and returned categories", func() {
			Expect(state.Draft.Editable()).To(BeTrue())
			Expect(state.Returned.Editable()).To(BeTrue())
			Expect(state.InReview.Editable()).To(BeFalse())
			Expect(state.Done.Editable()).To(BeFalse())
		})
	})
})
