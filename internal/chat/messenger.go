package chat

import (
	"quidque.com/discord-jukebox/internal/logger"
)

// Messenger delivers messages on a best-effort basis. Failed rich sends
// fall back to plain text; failures of the fallback are logged and dropped.
type Messenger struct {
	platform Platform
}

func NewMessenger(platform Platform) *Messenger {
	return &Messenger{platform: platform}
}

// Say sends plain text. The zero ref is returned on failure.
func (m *Messenger) Say(channelID, content string) MessageRef {
	if channelID == "" || content == "" {
		return MessageRef{}
	}

	ref, err := m.platform.SendText(channelID, content)
	if err != nil {
		logger.ErrorLogger.Printf("Failed to send message to channel %s: %v", channelID, err)
		return MessageRef{}
	}
	return ref
}

// Post sends a card, falling back to its plain rendering.
func (m *Messenger) Post(channelID string, card Card) MessageRef {
	if channelID == "" {
		return MessageRef{}
	}

	ref, err := m.platform.SendCard(channelID, card)
	if err == nil {
		return ref
	}

	logger.WarnLogger.Printf("Failed to send card to channel %s, falling back to text: %v", channelID, err)
	return m.Say(channelID, card.Plain())
}

// Update edits the card behind ref. If the edit fails the card is posted
// again and the new ref returned.
func (m *Messenger) Update(channelID string, ref MessageRef, card Card) MessageRef {
	if ref.IsZero() {
		return m.Post(channelID, card)
	}

	if err := m.platform.EditCard(ref, card); err != nil {
		logger.WarnLogger.Printf("Failed to edit message %s: %v", ref.MessageID, err)
		m.Remove(ref)
		return m.Post(channelID, card)
	}
	return ref
}

func (m *Messenger) Remove(ref MessageRef) {
	if ref.IsZero() {
		return
	}

	if err := m.platform.DeleteMessage(ref); err != nil {
		logger.WarnLogger.Printf("Failed to delete message %s: %v", ref.MessageID, err)
	}
}
