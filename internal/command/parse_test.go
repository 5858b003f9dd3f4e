package command_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"quidque.com/discord-jukebox/internal/command"
)

var _ = Describe("Parse", func() {
	DescribeTable("control verbs",
		func(body string, want command.Verb) {
			Expect(command.Parse(body).Verb).To(Equal(want))
		},
		Entry("empty", "", command.VerbNone),
		Entry("blank", "   ", command.VerbNone),
		Entry("destroy", "destroy", command.VerbDestroy),
		Entry("leave", "leave", command.VerbDestroy),
		Entry("kill", "kill", command.VerbDestroy),
		Entry("stop", "stop", command.VerbDestroy),
		Entry("skip", "skip", command.VerbNext),
		Entry("next upper case", "NEXT", command.VerbNext),
		Entry("s", "s", command.VerbNext),
		Entry("previous", "prev", command.VerbPrevious),
		Entry("back", "back", command.VerbPrevious),
		Entry("help", "help", command.VerbHelp),
		Entry("question mark", "?", command.VerbHelp),
		Entry("pause", "pause", command.VerbPause),
		Entry("resume", "resume", command.VerbResume),
		Entry("unpause", "unpause", command.VerbResume),
		Entry("replay", "replay", command.VerbReplay),
		Entry("rewind", "rewind", command.VerbReplay),
		Entry("loop", "loop", command.VerbLoop),
		Entry("repeat", "repeat", command.VerbLoop),
		Entry("shuffle", "shuffle", command.VerbShuffle),
		Entry("mix", "mix", command.VerbShuffle),
		Entry("queue", "q", command.VerbQueue),
		Entry("now", "np", command.VerbNow),
	)

	It("collects YouTube links", func() {
		cmd := command.Parse("https://youtu.be/dQw4w9WgXcQ <https://www.youtube.com/watch?v=9bZkp7q19f0>")
		Expect(cmd.Verb).To(Equal(command.VerbAdd))
		Expect(cmd.URLs).To(Equal([]string{
			"https://youtu.be/dQw4w9WgXcQ",
			"https://www.youtube.com/watch?v=9bZkp7q19f0",
		}))
		Expect(cmd.Rejected).To(BeEmpty())
	})

	It("keeps other links aside when YouTube links are present", func() {
		cmd := command.Parse("https://youtu.be/dQw4w9WgXcQ https://soundcloud.com/a/b")
		Expect(cmd.Verb).To(Equal(command.VerbAdd))
		Expect(cmd.URLs).To(HaveLen(1))
		Expect(cmd.Rejected).To(Equal([]string{"https://soundcloud.com/a/b"}))
	})

	It("rejects links to other sites", func() {
		Expect(command.Parse("https://soundcloud.com/a/b").Verb).To(Equal(command.VerbUnsupported))
	})

	It("treats free text as a search", func() {
		cmd := command.Parse("  never gonna   give you up ")
		Expect(cmd.Verb).To(Equal(command.VerbSearch))
		Expect(cmd.Query).To(Equal("never gonna give you up"))
	})

	It("only takes aliases on their own", func() {
		cmd := command.Parse("stop crying your heart out")
		Expect(cmd.Verb).To(Equal(command.VerbSearch))
	})
})
