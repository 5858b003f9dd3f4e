package audio

import (
	"fmt"
	"time"
)

type Channel struct {
	ID   string
	Name string
	URL  string
}

type Stats struct {
	Views int
}

// Track is the normalized metadata of a resolved media item.
type Track struct {
	ID           string
	Title        string
	URL          string
	Duration     time.Duration
	ThumbnailURL string
	Channel      Channel
	Stats        *Stats
	IsLive       bool
}

func (t *Track) GetDurationString() string {
	if t.IsLive || t.Duration <= 0 {
		return "live"
	}
	return FormatDuration(t.Duration)
}

// FormatDuration renders d as M:SS, or H:MM:SS past the hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
