package audio

import "io"

// Events are the callbacks a Dispatcher fires over the life of one stream.
// OnStart fires once, when the first frame goes out. Exactly one of OnEnd
// or OnError fires after that, or without it if the stream never produced
// a frame.
type Events struct {
	OnStart func()
	OnEnd   func()
	OnError func(err error)
}

func (e Events) start() {
	if e.OnStart != nil {
		e.OnStart()
	}
}

func (e Events) end() {
	if e.OnEnd != nil {
		e.OnEnd()
	}
}

func (e Events) fail(err error) {
	if e.OnError != nil {
		e.OnError(err)
	} else {
		e.end()
	}
}

// Dispatcher controls one playing stream.
type Dispatcher interface {
	Pause()
	Resume()
	// End stops the stream. It fires OnEnd, like a natural completion.
	End()
}

// Connection is a joined voice channel that can play one stream at a time.
type Connection interface {
	ChannelID() string
	Play(stream io.ReadCloser, events Events) Dispatcher
	Disconnect() error
}
