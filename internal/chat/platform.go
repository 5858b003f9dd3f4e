package chat

import (
	"context"
	"errors"

	"quidque.com/discord-jukebox/internal/audio"
)

var ErrNotInVoice = errors.New("user is not in a voice channel")

// Message is an incoming chat command.
type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
}

type MessageRef struct {
	ChannelID string
	MessageID string
}

func (r MessageRef) IsZero() bool {
	return r.MessageID == ""
}

type Member struct {
	ID  string
	Bot bool
}

// CountHumans returns the number of non-bot members.
func CountHumans(members []Member) int {
	n := 0
	for _, m := range members {
		if !m.Bot {
			n++
		}
	}
	return n
}

// Platform is what the queue needs from the chat service.
type Platform interface {
	SendCard(channelID string, card Card) (MessageRef, error)
	SendText(channelID, content string) (MessageRef, error)
	EditCard(ref MessageRef, card Card) error
	DeleteMessage(ref MessageRef) error

	IsModerator(guildID, channelID, userID string) bool
	UserVoiceChannel(guildID, userID string) (string, error)
	VoiceMembers(guildID, channelID string) []Member
	JoinVoice(ctx context.Context, guildID, channelID string) (audio.Connection, error)
}
