package chat

import (
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Phrases holds every user-facing string. Values are resolved once at
// startup and never mutated afterwards.
type Phrases struct {
	NotInVoice      string `yaml:"not_in_voice"`
	CannotJoin      string `yaml:"cannot_join"`
	WrongChannel    string `yaml:"wrong_channel"`
	OnlyYouTube     string `yaml:"only_youtube"`
	IncorrectUsage  string `yaml:"incorrect_usage"`
	NotFound        string `yaml:"not_found"`
	SearchEmpty     string `yaml:"search_empty"`
	Added           string `yaml:"added"`
	Duplicate       string `yaml:"duplicate"`
	BrokenLink      string `yaml:"broken_link"`
	StreamError     string `yaml:"stream_error"`
	NothingPlaying  string `yaml:"nothing_playing"`
	NoPermission    string `yaml:"no_permission"`
	AlreadyVoted    string `yaml:"already_voted"`
	VoteRecorded    string `yaml:"vote_recorded"`
	Skipped         string `yaml:"skipped"`
	WentBack        string `yaml:"went_back"`
	Replaying       string `yaml:"replaying"`
	Paused          string `yaml:"paused"`
	Resumed         string `yaml:"resumed"`
	AlreadyPaused   string `yaml:"already_paused"`
	NotPaused       string `yaml:"not_paused"`
	NotStarted      string `yaml:"not_started"`
	LoopOn          string `yaml:"loop_on"`
	LoopOff         string `yaml:"loop_off"`
	Shuffled        string `yaml:"shuffled"`
	ShuffleTooShort string `yaml:"shuffle_too_short"`
	Destroyed       string `yaml:"destroyed"`
	SlowDown        string `yaml:"slow_down"`
	QueueEmpty      string `yaml:"queue_empty"`
	QueueTitle      string `yaml:"queue_title"`
	NowPlayingTitle string `yaml:"now_playing_title"`
	PausedTitle     string `yaml:"paused_title"`
	RequestedBy     string `yaml:"requested_by"`
	Channel         string `yaml:"channel"`
	Views           string `yaml:"views"`
	Looping         string `yaml:"looping"`
	UpNext          string `yaml:"up_next"`
	HelpTitle       string `yaml:"help_title"`
	HelpBody        string `yaml:"help_body"`
}

func DefaultPhrases() Phrases {
	return Phrases{
		NotInVoice:      "❌ You need to be in a voice channel to use this command.",
		CannotJoin:      "❌ I can't join your voice channel.",
		WrongChannel:    "❌ You need to be in my voice channel to do that.",
		OnlyYouTube:     "❌ Only YouTube links are supported.",
		IncorrectUsage:  "❌ Incorrect usage. Try `%s help`.",
		NotFound:        "❌ Nothing found for %s.",
		SearchEmpty:     "❌ No search results for **%s**.",
		Added:           "✅ Added to queue: **%s**",
		Duplicate:       "⚠️ **%s** is already queued.",
		BrokenLink:      "❌ Broken link, skipping **%s**.",
		StreamError:     "❌ Playback of **%s** failed: %s",
		NothingPlaying:  "❌ Nothing is playing right now.",
		NoPermission:    "❌ You can't vote on that.",
		AlreadyVoted:    "⚠️ You already voted.",
		VoteRecorded:    "🗳️ Vote recorded (%d/%d).",
		Skipped:         "⏭️ Skipped.",
		WentBack:        "⏮️ Going back.",
		Replaying:       "🔁 Replaying.",
		Paused:          "⏸️ Paused.",
		Resumed:         "▶️ Resumed.",
		AlreadyPaused:   "⚠️ Already paused.",
		NotPaused:       "⚠️ Playback isn't paused.",
		NotStarted:      "⏳ The track hasn't started yet.",
		LoopOn:          "🔂 Loop enabled.",
		LoopOff:         "➡️ Loop disabled.",
		Shuffled:        "🔀 Queue shuffled.",
		ShuffleTooShort: "⚠️ Need at least three queued tracks to shuffle.",
		Destroyed:       "👋 Bye!",
		SlowDown:        "⏳ Slow down a little.",
		QueueEmpty:      "The queue is empty.",
		QueueTitle:      "Queue",
		NowPlayingTitle: "🎵 Now playing",
		PausedTitle:     "⏸️ Paused",
		RequestedBy:     "Requested by",
		Channel:         "Channel",
		Views:           "Views",
		Looping:         "🔂 Looping",
		UpNext:          "Up next",
		HelpTitle:       "Music commands",
		HelpBody: "`<url or search>` add to queue\n" +
			"`skip` `previous` `replay` vote on track changes\n" +
			"`pause` `resume` `loop` vote on playback\n" +
			"`shuffle` mix the queue\n" +
			"`queue` `now` show the queue and the player\n" +
			"`leave` stop and disconnect",
	}
}

// With returns p with every non-empty field of overrides applied.
func (p Phrases) With(overrides Phrases) Phrases {
	out := p
	dst := reflect.ValueOf(&out).Elem()
	src := reflect.ValueOf(overrides)

	for i := 0; i < src.NumField(); i++ {
		if v := src.Field(i).String(); v != "" {
			dst.Field(i).SetString(v)
		}
	}
	return out
}

// LoadPhrases reads YAML overrides from path on top of the defaults.
// An empty path yields the defaults.
func LoadPhrases(path string) (Phrases, error) {
	defaults := DefaultPhrases()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("failed to read phrases file: %w", err)
	}

	var overrides Phrases
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return defaults, fmt.Errorf("failed to parse phrases file: %w", err)
	}

	return defaults.With(overrides), nil
}
