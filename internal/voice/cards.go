package voice

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"quidque.com/discord-jukebox/internal/audio"
	"quidque.com/discord-jukebox/internal/chat"
	"quidque.com/discord-jukebox/internal/queue"
)

const progressWidth = 18

// PlayerCard renders the status of the session's current entry.
func PlayerCard(s *queue.Session, phrases chat.Phrases, color chat.RGB) chat.Card {
	entry := s.Current()
	if entry == nil || entry.Track == nil {
		return chat.Card{Title: phrases.NothingPlaying, Color: color.Int()}
	}
	track := entry.Track

	title := phrases.NowPlayingTitle
	if s.IsPaused() {
		title = phrases.PausedTitle
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "**[%s](%s)**", chat.Escape(track.Title), track.URL)

	if elapsed, ok := s.Elapsed(); ok && !track.IsLive && track.Duration > 0 {
		fmt.Fprintf(&desc, "\n%s `%s / %s`",
			chat.ProgressBar(elapsed.Seconds(), track.Duration.Seconds(), progressWidth),
			audio.FormatDuration(elapsed), track.GetDurationString())
	}

	fields := []chat.Field{
		{Name: phrases.RequestedBy, Value: chat.Escape(entry.SubmitterName), Inline: true},
	}
	if track.Channel.Name != "" {
		fields = append(fields, chat.Field{
			Name:   phrases.Channel,
			Value:  fmt.Sprintf("[%s](%s)", chat.Escape(track.Channel.Name), track.Channel.URL),
			Inline: true,
		})
	}
	if track.Stats != nil {
		fields = append(fields, chat.Field{
			Name:   phrases.Views,
			Value:  humanize.Comma(int64(track.Stats.Views)),
			Inline: true,
		})
	}
	if next := s.Queue(); len(next) > 0 {
		fields = append(fields, chat.Field{Name: phrases.UpNext, Value: chat.Escape(next[0].Title())})
	}

	card := chat.Card{
		Title:       title,
		URL:         track.URL,
		Description: desc.String(),
		Thumbnail:   track.ThumbnailURL,
		Color:       color.Int(),
		Fields:      fields,
	}
	if s.Looping() {
		card.Footer = phrases.Looping
	}
	return card
}
