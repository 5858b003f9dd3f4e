package discord

import (
	"io"

	"github.com/bwmarrin/discordgo"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"quidque.com/discord-jukebox/internal/audio"
	"quidque.com/discord-jukebox/internal/chat"
	"quidque.com/discord-jukebox/internal/queue"
)

type stubConnection struct{ channelID string }

func (c *stubConnection) ChannelID() string                                 { return c.channelID }
func (c *stubConnection) Play(io.ReadCloser, audio.Events) audio.Dispatcher { return nil }
func (c *stubConnection) Disconnect() error                                 { return nil }

type recordingTeardowner struct{ torn []*queue.Session }

func (t *recordingTeardowner) Teardown(s *queue.Session) {
	t.torn = append(t.torn, s)
	s.Destroy()
}

var _ = Describe("CommandBody", func() {
	DescribeTable("extraction",
		func(content string, shortAlias bool, body string, ok bool) {
			got, matched := CommandBody(content, "!", "music", shortAlias)
			Expect(matched).To(Equal(ok))
			Expect(got).To(Equal(body))
		},
		Entry("keyword with a verb", "!music skip", true, "skip", true),
		Entry("keyword in capitals", "!MUSIC skip", true, "skip", true),
		Entry("surrounding whitespace", "  !music   some song  ", true, "some song", true),
		Entry("keyword alone", "!music", true, "", true),
		Entry("short alias", "!m pause", true, "pause", true),
		Entry("short alias disabled", "!m pause", false, "", false),
		Entry("glued to the keyword", "!musicskip", true, "", false),
		Entry("other command", "!ping", true, "", false),
		Entry("no prefix", "music skip", true, "", false),
		Entry("newline separator", "!music\nskip", true, "skip", true),
	)
})

var _ = Describe("toEmbed", func() {
	It("carries every card part", func() {
		embed := toEmbed(chat.Card{
			Title:       "Now playing",
			URL:         "https://youtu.be/x",
			Description: "desc",
			Thumbnail:   "https://img/x.jpg",
			Color:       0x00ff00,
			Fields:      []chat.Field{{Name: "Views", Value: "12", Inline: true}},
			Footer:      "Looping",
		})

		Expect(embed.Title).To(Equal("Now playing"))
		Expect(embed.URL).To(Equal("https://youtu.be/x"))
		Expect(embed.Color).To(Equal(0x00ff00))
		Expect(embed.Thumbnail.URL).To(Equal("https://img/x.jpg"))
		Expect(embed.Footer.Text).To(Equal("Looping"))
		Expect(embed.Fields).To(HaveLen(1))
		Expect(*embed.Fields[0]).To(Equal(discordgo.MessageEmbedField{Name: "Views", Value: "12", Inline: true}))
	})

	It("leaves empty parts out", func() {
		embed := toEmbed(chat.Card{Title: "Queue"})
		Expect(embed.Thumbnail).To(BeNil())
		Expect(embed.Footer).To(BeNil())
		Expect(embed.Fields).To(BeEmpty())
	})
})

var _ = Describe("displayName", func() {
	user := &discordgo.User{Username: "name", GlobalName: "Global"}

	It("prefers the nickname", func() {
		Expect(displayName(&discordgo.Member{Nick: "nick"}, user)).To(Equal("nick"))
	})

	It("falls back to the global name", func() {
		Expect(displayName(&discordgo.Member{}, user)).To(Equal("Global"))
	})

	It("falls back to the username", func() {
		Expect(displayName(nil, &discordgo.User{Username: "name"})).To(Equal("name"))
	})
})

var _ = Describe("handleBotVoiceUpdate", func() {
	var (
		player  *recordingTeardowner
		client  *Client
		session *queue.Session
	)

	disconnect := func(before string) *discordgo.VoiceStateUpdate {
		return &discordgo.VoiceStateUpdate{
			VoiceState:   &discordgo.VoiceState{GuildID: "guild", UserID: "bot"},
			BeforeUpdate: &discordgo.VoiceState{GuildID: "guild", UserID: "bot", ChannelID: before},
		}
	}

	BeforeEach(func() {
		player = &recordingTeardowner{}
		client = &Client{player: player}
		session = queue.NewSession("guild", queue.Options{})
		session.SetVoiceChannelID("room")
	})

	It("tears down when the bot is kicked from its channel", func() {
		session.SetConnection(&stubConnection{channelID: "room"})
		client.handleBotVoiceUpdate(session, disconnect("room"))
		Expect(player.torn).To(ConsistOf(session))
	})

	It("leaves a session that is still joining alone", func() {
		client.handleBotVoiceUpdate(session, disconnect("room"))
		Expect(player.torn).To(BeEmpty())
		Expect(session.Destroyed()).To(BeFalse())
	})

	It("ignores a late disconnect from another channel", func() {
		session.SetConnection(&stubConnection{channelID: "room"})
		client.handleBotVoiceUpdate(session, disconnect("old"))
		Expect(player.torn).To(BeEmpty())
	})

	It("follows a move to another channel", func() {
		session.SetConnection(&stubConnection{channelID: "room"})
		update := disconnect("room")
		update.ChannelID = "stage"

		client.handleBotVoiceUpdate(session, update)
		Expect(session.VoiceChannelID()).To(Equal("stage"))
		Expect(player.torn).To(BeEmpty())
	})
})
