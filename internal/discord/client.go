package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/bwmarrin/discordgo"

	"quidque.com/discord-jukebox/internal/chat"
	"quidque.com/discord-jukebox/internal/config"
	"quidque.com/discord-jukebox/internal/logger"
	"quidque.com/discord-jukebox/internal/permissions"
	"quidque.com/discord-jukebox/internal/queue"
)

const shortKeyword = "m"

// CommandHandler executes a command body for a message.
type CommandHandler interface {
	HandleCommand(ctx context.Context, msg chat.Message, body string)
}

// Teardowner ends a guild's session.
type Teardowner interface {
	Teardown(s *queue.Session)
}

type Client struct {
	Token    string
	Session  *discordgo.Session
	Platform *Platform

	registry *queue.Registry
	handler  CommandHandler
	player   Teardowner

	prefix     string
	keyword    string
	shortAlias bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(cfg config.Config) (*Client, error) {
	if cfg.DISCORD_TOKEN == "" {
		return nil, errors.New("discord token is required")
	}

	session, err := discordgo.New("Bot " + cfg.DISCORD_TOKEN)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		Token:      cfg.DISCORD_TOKEN,
		Session:    session,
		Platform:   NewPlatform(session, permissions.NewManager(permissions.Config{ModeratorRole: cfg.MODERATOR_ROLE})),
		prefix:     cfg.COMMAND_PREFIX,
		keyword:    cfg.COMMAND_KEYWORD,
		shortAlias: cfg.SHORT_ALIAS,
		ctx:        ctx,
		cancel:     cancel,
	}

	session.AddHandler(client.handleReady)
	session.AddHandler(client.handleVoiceStateUpdate)
	session.AddHandler(client.handleMessageCreate)

	session.Identify.Intents = discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuilds | discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return client, nil
}

// Bind wires the client to the rest of the bot. It must be called before Connect.
func (c *Client) Bind(registry *queue.Registry, handler CommandHandler, player Teardowner) {
	c.registry = registry
	c.handler = handler
	c.player = player
}

func (c *Client) Connect() error {
	if c.handler == nil || c.registry == nil || c.player == nil {
		return errors.New("client is not bound")
	}

	if err := c.Session.Open(); err != nil {
		return fmt.Errorf("failed to connect to Discord: %w", err)
	}
	return nil
}

// Usage is the invocation shown in usage hints.
func (c *Client) Usage() string {
	return c.prefix + c.keyword
}

func (c *Client) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	logger.InfoLogger.Printf("Logged in as: %s", s.State.User.Username)
	logger.InfoLogger.Printf("Bot is in %d servers", len(r.Guilds))

	if err := s.UpdateGameStatus(0, c.Usage()+" help"); err != nil {
		logger.WarnLogger.Printf("Failed to update status: %v", err)
	}
}

func (c *Client) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	body, ok := CommandBody(m.Content, c.prefix, c.keyword, c.shortAlias)
	if !ok {
		return
	}

	c.handler.HandleCommand(c.ctx, chat.Message{
		ID:          m.ID,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		AuthorID:    m.Author.ID,
		AuthorName:  displayName(m.Member, m.Author),
		AuthorIsBot: m.Author.Bot,
	}, body)
}

func (c *Client) handleVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	session, ok := c.registry.Get(v.GuildID)
	if !ok {
		return
	}

	if s.State.User != nil && v.UserID == s.State.User.ID {
		c.handleBotVoiceUpdate(session, v)
		return
	}

	channelID := session.VoiceChannelID()
	if v.BeforeUpdate == nil || v.BeforeUpdate.ChannelID != channelID || v.ChannelID == channelID {
		return
	}

	session.RetractAll(v.UserID)

	if chat.CountHumans(c.Platform.VoiceMembers(v.GuildID, channelID)) == 0 {
		logger.InfoLogger.Printf("Bot is alone in voice channel %s in guild %s", channelID, v.GuildID)
		c.player.Teardown(session)
	}
}

func (c *Client) handleBotVoiceUpdate(session *queue.Session, v *discordgo.VoiceStateUpdate) {
	switch {
	case v.ChannelID == "":
		// A session still joining has no connection; the event belongs to
		// an earlier one.
		if session.Destroyed() || session.Connection() == nil {
			return
		}
		if v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID != "" && v.BeforeUpdate.ChannelID != session.VoiceChannelID() {
			logger.DebugLogger.Printf("Ignoring stale disconnect from channel %s in guild %s", v.BeforeUpdate.ChannelID, v.GuildID)
			return
		}
		logger.InfoLogger.Printf("Bot was disconnected from voice in guild %s", v.GuildID)
		c.player.Teardown(session)

	case v.ChannelID != session.VoiceChannelID():
		logger.InfoLogger.Printf("Bot was moved from channel %s to channel %s", session.VoiceChannelID(), v.ChannelID)
		session.SetVoiceChannelID(v.ChannelID)
	}
}

func (c *Client) Shutdown(ctx context.Context) error {
	logger.InfoLogger.Println("Closing Discord session...")
	c.cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Session.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to close Discord session: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Name() string {
	return "DiscordClient"
}

// CommandBody returns the text after the prefix and keyword of content.
// With shortAlias the single letter "m" stands in for the keyword.
func CommandBody(content, prefix, keyword string, shortAlias bool) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(content), prefix)
	if !ok || prefix == "" {
		return "", false
	}

	word, body := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		word, body = rest[:i], rest[i:]
	}

	if !strings.EqualFold(word, keyword) && !(shortAlias && strings.EqualFold(word, shortKeyword)) {
		return "", false
	}
	return strings.TrimSpace(body), true
}

func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
