package queue_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"quidque.com/discord-jukebox/internal/queue"
)

var _ = Describe("VoteGroup", func() {
	var group *queue.VoteGroup

	BeforeEach(func() {
		group = queue.NewVoteGroup()
	})

	It("deduplicates supporters", func() {
		Expect(group.Add("a")).To(BeTrue())
		Expect(group.Add("a")).To(BeFalse())
		Expect(group.Len()).To(Equal(1))
	})

	It("removes supporters", func() {
		group.Add("a")
		Expect(group.Remove("a")).To(BeTrue())
		Expect(group.Remove("a")).To(BeFalse())
		Expect(group.Len()).To(BeZero())
	})

	It("requires supporters to strictly exceed the proportional threshold", func() {
		for _, id := range []string{"a", "b", "c"} {
			group.Add(id)
		}
		Expect(group.Passes(5, 0.6)).To(BeFalse())

		group.Add("d")
		Expect(group.Passes(5, 0.6)).To(BeTrue())
	})

	DescribeTable("Required",
		func(live int, pct float64, want int) {
			Expect(queue.Required(live, pct)).To(Equal(want))
		},
		Entry("five members at 60%", 5, 0.6, 4),
		Entry("four members at 60%", 4, 0.6, 3),
		Entry("three members at half", 3, 0.5, 2),
		Entry("ten members at half", 10, 0.5, 6),
	)

	It("empties on Clear", func() {
		group.Add("a")
		group.Add("b")
		group.Clear()
		Expect(group.Len()).To(BeZero())
		Expect(group.Has("a")).To(BeFalse())
	})
})
