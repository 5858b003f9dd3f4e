package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"quidque.com/discord-jukebox/internal/audio"
	"quidque.com/discord-jukebox/internal/chat"
	"quidque.com/discord-jukebox/internal/logger"
	"quidque.com/discord-jukebox/internal/permissions"
)

const (
	maxJoinRetries = 3
	joinRetryDelay = 500 * time.Millisecond
)

// Platform implements chat.Platform on top of a discordgo session.
type Platform struct {
	session *discordgo.Session
	perms   *permissions.Manager
}

func NewPlatform(session *discordgo.Session, perms *permissions.Manager) *Platform {
	return &Platform{
		session: session,
		perms:   perms,
	}
}

func (p *Platform) SendCard(channelID string, card chat.Card) (chat.MessageRef, error) {
	msg, err := p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{toEmbed(card)},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("failed to send embed: %w", err)
	}
	return chat.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (p *Platform) SendText(channelID, content string) (chat.MessageRef, error) {
	msg, err := p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("failed to send message: %w", err)
	}
	return chat.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (p *Platform) EditCard(ref chat.MessageRef, card chat.Card) error {
	if _, err := p.session.ChannelMessageEditEmbed(ref.ChannelID, ref.MessageID, toEmbed(card)); err != nil {
		return fmt.Errorf("failed to edit embed: %w", err)
	}
	return nil
}

func (p *Platform) DeleteMessage(ref chat.MessageRef) error {
	if err := p.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (p *Platform) IsModerator(guildID, channelID, userID string) bool {
	ok, err := p.perms.IsModerator(p.session, guildID, channelID, userID)
	if err != nil {
		logger.WarnLogger.Printf("Moderator check for %s in guild %s failed: %v", userID, guildID, err)
		return false
	}
	return ok
}

func (p *Platform) UserVoiceChannel(guildID, userID string) (string, error) {
	vs, err := p.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", chat.ErrNotInVoice
	}
	return vs.ChannelID, nil
}

func (p *Platform) VoiceMembers(guildID, channelID string) []chat.Member {
	guild, err := p.session.State.Guild(guildID)
	if err != nil {
		logger.ErrorLogger.Printf("Error getting guild %s: %v", guildID, err)
		return nil
	}

	p.session.State.RLock()
	states := make([]*discordgo.VoiceState, 0, len(guild.VoiceStates))
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			states = append(states, vs)
		}
	}
	p.session.State.RUnlock()

	members := make([]chat.Member, 0, len(states))
	for _, vs := range states {
		members = append(members, chat.Member{ID: vs.UserID, Bot: p.isBot(vs)})
	}
	return members
}

func (p *Platform) isBot(vs *discordgo.VoiceState) bool {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	if p.session.State.User != nil && vs.UserID == p.session.State.User.ID {
		return true
	}
	if member, err := p.session.State.Member(vs.GuildID, vs.UserID); err == nil && member.User != nil {
		return member.User.Bot
	}
	return false
}

// JoinVoice joins channelID, retrying with a growing delay until ctx ends.
func (p *Platform) JoinVoice(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= maxJoinRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logger.InfoLogger.Printf("Joining voice channel %s (attempt %d/%d)", channelID, attempt, maxJoinRetries)

		vc, err := p.session.ChannelVoiceJoin(guildID, channelID, false, true)
		if err == nil {
			logger.InfoLogger.Printf("Successfully joined voice channel %s in guild %s", channelID, guildID)
			return audio.NewVoiceConnection(vc), nil
		}

		lastErr = err
		logger.ErrorLogger.Printf("Join attempt %d failed: %v", attempt, err)

		if attempt < maxJoinRetries {
			select {
			case <-time.After(joinRetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("failed to join voice channel after %d attempts: %w", maxJoinRetries, lastErr)
}

func toEmbed(card chat.Card) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       card.Title,
		URL:         card.URL,
		Description: card.Description,
		Color:       card.Color,
	}

	if card.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: card.Thumbnail}
	}
	if card.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: card.Footer}
	}

	for _, f := range card.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return embed
}
