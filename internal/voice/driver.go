package voice

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"quidque.com/discord-jukebox/internal/audio"
	"quidque.com/discord-jukebox/internal/chat"
	"quidque.com/discord-jukebox/internal/logger"
	"quidque.com/discord-jukebox/internal/queue"
)

const (
	DefaultTrackGap       = 2 * time.Second
	DefaultStatusInterval = 10 * time.Second
)

// Opener turns a resolved track into a PCM stream ready for a Connection.
type Opener interface {
	OpenAudioStream(ctx context.Context, track *audio.Track) (io.ReadCloser, error)
}

type Options struct {
	TrackGap       time.Duration
	StatusInterval time.Duration
	Phrases        chat.Phrases
}

// Driver moves sessions through start, play, advance and teardown.
type Driver struct {
	registry  *queue.Registry
	platform  chat.Platform
	messenger *chat.Messenger
	opener    Opener
	phrases   chat.Phrases

	gap            time.Duration
	statusInterval time.Duration
	after          func(d time.Duration, f func())

	ctx    context.Context
	cancel context.CancelFunc

	colors   map[string]chat.RGB
	renderMu sync.Mutex
	mu       sync.Mutex
}

func NewDriver(registry *queue.Registry, platform chat.Platform, opener Opener, opts Options) *Driver {
	if opts.TrackGap <= 0 {
		opts.TrackGap = DefaultTrackGap
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Driver{
		registry:       registry,
		platform:       platform,
		messenger:      chat.NewMessenger(platform),
		opener:         opener,
		phrases:        opts.Phrases,
		gap:            opts.TrackGap,
		statusInterval: opts.StatusInterval,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		ctx:    ctx,
		cancel: cancel,
		colors: make(map[string]chat.RGB),
	}

	registry.SetHooks(queue.Hooks{
		OnStart: func(s *queue.Session) { go d.Start(s) },
	})

	return d
}

// SetAfter replaces the scheduler used for the gap between tracks.
func (d *Driver) SetAfter(after func(time.Duration, func())) {
	d.after = after
}

// playback tracks one stream so that a late attach never resurrects a
// dispatcher whose stream already finished.
type playback struct {
	session    *queue.Session
	entry      *queue.Entry
	mu         sync.Mutex
	dispatcher audio.Dispatcher
	finished   bool
}

// Start plays the session's current entry, advancing first if there is
// none. Entries whose stream can't be opened are reported and dropped.
func (d *Driver) Start(s *queue.Session) {
	for {
		if s.Destroyed() || s.Dispatcher() != nil {
			return
		}

		entry := s.Current()
		if entry == nil {
			entry = s.AdvanceForward()
		}
		if entry == nil {
			logger.InfoLogger.Printf("Queue finished in guild %s", s.GuildID())
			d.Teardown(s)
			return
		}

		conn := s.Connection()
		if conn == nil {
			logger.ErrorLogger.Printf("No voice connection for guild %s", s.GuildID())
			d.Teardown(s)
			return
		}

		stream, err := d.opener.OpenAudioStream(d.ctx, entry.Track)
		if err != nil {
			logger.WarnLogger.Printf("Failed to open stream for %s in guild %s: %v", entry.ID(), s.GuildID(), err)
			d.messenger.Say(s.TextChannelID(), fmt.Sprintf(d.phrases.BrokenLink, chat.Escape(entry.Title())))
			s.DiscardCurrent()
			continue
		}

		if s.Destroyed() {
			logger.DebugLogger.Printf("Guild %s torn down while opening %s", s.GuildID(), entry.ID())
			if err := stream.Close(); err != nil {
				logger.WarnLogger.Printf("Failed to close stream for %s: %v", entry.ID(), err)
			}
			return
		}

		entry.SetStream(stream)
		d.play(s, conn, entry, stream)
		return
	}
}

func (d *Driver) play(s *queue.Session, conn audio.Connection, entry *queue.Entry, stream io.ReadCloser) {
	p := &playback{session: s, entry: entry}

	logger.InfoLogger.Printf("Starting playback of %q in guild %s", entry.Title(), s.GuildID())

	dispatcher := conn.Play(stream, audio.Events{
		OnStart: func() { d.onStart(p) },
		OnEnd:   func() { d.onEnd(p) },
		OnError: func(err error) { d.onError(p, err) },
	})

	p.mu.Lock()
	p.dispatcher = dispatcher
	attached := p.finished || s.AttachDispatcher(dispatcher)
	p.mu.Unlock()

	// Refused streams still run onEnd, which advances past a pending skip.
	if !attached {
		dispatcher.End()
	}
}

func (d *Driver) onStart(p *playback) {
	s := p.session
	s.MarkStarted()
	s.StartStatusTimer(d.statusInterval, func() { d.tick(s) })
	d.Refresh(s)
}

func (d *Driver) onError(p *playback, err error) {
	logger.ErrorLogger.Printf("Stream error for %s in guild %s: %v", p.entry.ID(), p.session.GuildID(), err)
	d.messenger.Say(p.session.TextChannelID(),
		fmt.Sprintf(d.phrases.StreamError, chat.Escape(p.entry.Title()), err))
	d.onEnd(p)
}

func (d *Driver) onEnd(p *playback) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	if p.dispatcher != nil {
		p.session.DetachDispatcher(p.dispatcher)
	}
	p.mu.Unlock()

	p.entry.ReleaseStream()
	p.session.StopStatusTimer()

	s := p.session
	d.after(d.gap, func() { d.advance(s) })
}

func (d *Driver) advance(s *queue.Session) {
	if s.Destroyed() {
		return
	}

	if s.TakeRestart() {
		d.Start(s)
		return
	}

	if s.AdvanceForward() == nil {
		logger.InfoLogger.Printf("Queue finished in guild %s", s.GuildID())
		d.Teardown(s)
		return
	}
	d.Start(s)
}

func (d *Driver) tick(s *queue.Session) {
	if s.Destroyed() {
		return
	}

	members := d.platform.VoiceMembers(s.GuildID(), s.VoiceChannelID())
	if chat.CountHumans(members) == 0 {
		logger.InfoLogger.Printf("Voice channel empty in guild %s, leaving", s.GuildID())
		d.Teardown(s)
		return
	}

	d.Refresh(s)
}

// Refresh renders the player card in place, posting it if needed.
func (d *Driver) Refresh(s *queue.Session) {
	if s.Destroyed() || s.Current() == nil {
		return
	}

	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	card := PlayerCard(s, d.phrases, d.nextColor(s.GuildID()))
	ref := d.messenger.Update(s.TextChannelID(), s.PlayerMessage(), card)
	s.SetPlayerMessage(ref)
}

// Repost moves the player card to the bottom of the text channel.
func (d *Driver) Repost(s *queue.Session) {
	d.renderMu.Lock()
	ref := s.PlayerMessage()
	s.SetPlayerMessage(chat.MessageRef{})
	d.renderMu.Unlock()

	d.messenger.Remove(ref)
	d.Refresh(s)
}

func (d *Driver) nextColor(guildID string) chat.RGB {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := chat.NextColor(d.colors[guildID])
	d.colors[guildID] = c
	return c
}

// Teardown destroys s, removes its player card and forgets it. The session
// leaves the registry even if the voice disconnect fails.
func (d *Driver) Teardown(s *queue.Session) {
	s.Destroy()

	ref := s.PlayerMessage()
	s.SetPlayerMessage(chat.MessageRef{})
	d.messenger.Remove(ref)

	d.registry.Release(s)

	d.mu.Lock()
	delete(d.colors, s.GuildID())
	d.mu.Unlock()
}

func (d *Driver) Shutdown(ctx context.Context) error {
	logger.InfoLogger.Println("Shutting down playback driver...")
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.registry.Each(d.Teardown)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) Name() string {
	return "PlaybackDriver"
}
