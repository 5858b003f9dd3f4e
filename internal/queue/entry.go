package queue

import (
	"io"
	"sync"
	"time"

	"quidque.com/discord-jukebox/internal/audio"
)

// Entry binds a resolved track to whoever asked for it. Only the stream
// handle changes after creation.
type Entry struct {
	Track         *audio.Track
	SubmitterID   string
	SubmitterName string
	SubmittedAt   time.Time

	mu     sync.Mutex
	stream io.ReadCloser
}

func NewEntry(track *audio.Track, submitterID, submitterName string, at time.Time) *Entry {
	return &Entry{
		Track:         track,
		SubmitterID:   submitterID,
		SubmitterName: submitterName,
		SubmittedAt:   at,
	}
}

func (e *Entry) ID() string {
	if e == nil || e.Track == nil {
		return ""
	}
	return e.Track.ID
}

func (e *Entry) Title() string {
	if e == nil || e.Track == nil {
		return ""
	}
	return e.Track.Title
}

func (e *Entry) SetStream(stream io.ReadCloser) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stream = stream
}

func (e *Entry) Stream() io.ReadCloser {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream
}

// ReleaseStream drops the handle once the stream has finished.
func (e *Entry) ReleaseStream() {
	e.SetStream(nil)
}
