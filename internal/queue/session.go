package queue

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"quidque.com/discord-jukebox/internal/audio"
	"quidque.com/discord-jukebox/internal/chat"
	"quidque.com/discord-jukebox/internal/logger"
)

var (
	ErrDuplicate = errors.New("track is already queued")
	ErrDestroyed = errors.New("session is destroyed")
)

const (
	DefaultVotePercentage = 0.6
	DefaultHistoryLimit   = 50
)

type Hooks struct {
	// OnStart fires when an entry lands in a suspended session.
	OnStart func(s *Session)
}

type Options struct {
	VotePercentage float64
	HistoryLimit   int
	Now            func() time.Time
	Hooks          Hooks
}

func (o Options) withDefaults() Options {
	if o.VotePercentage <= 0 {
		o.VotePercentage = DefaultVotePercentage
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Session is the playback state of one guild.
type Session struct {
	guildID string
	opts    Options

	mu        sync.Mutex
	queue     []*Entry
	history   []*Entry
	current   *Entry
	looping   bool
	suspended bool
	destroyed bool
	restart   bool
	skip      bool

	trackStartedAt time.Time
	pausedElapsed  time.Duration
	paused         bool

	votes map[VoteKind]*VoteGroup

	textChannelID  string
	voiceChannelID string
	playerMessage  chat.MessageRef

	conn       audio.Connection
	dispatcher audio.Dispatcher

	tickInterval time.Duration
	tickFn       func()
	tickStop     chan struct{}
}

func NewSession(guildID string, opts Options) *Session {
	s := &Session{
		guildID:   guildID,
		opts:      opts.withDefaults(),
		suspended: true,
		votes:     make(map[VoteKind]*VoteGroup, len(voteKinds)),
	}
	for _, kind := range voteKinds {
		s.votes[kind] = NewVoteGroup()
	}
	return s
}

func (s *Session) GuildID() string {
	return s.guildID
}

func (s *Session) VotePercentage() float64 {
	return s.opts.VotePercentage
}

// Enqueue appends entry unless a track with the same ID is queued or
// playing. A destroyed session accepts nothing and returns ErrDestroyed.
func (s *Session) Enqueue(entry *Entry) error {
	s.mu.Lock()

	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.containsLocked(entry.ID()) {
		s.mu.Unlock()
		return ErrDuplicate
	}

	s.history = removeByID(s.history, entry.ID())
	s.queue = append(s.queue, entry)

	start := s.suspended
	s.suspended = false
	s.mu.Unlock()

	logger.DebugLogger.Printf("Queued %q in guild %s", entry.Title(), s.guildID)

	if start && s.opts.Hooks.OnStart != nil {
		s.opts.Hooks.OnStart(s)
	}
	return nil
}

func (s *Session) containsLocked(id string) bool {
	if s.current != nil && s.current.ID() == id {
		return true
	}
	for _, e := range s.queue {
		if e.ID() == id {
			return true
		}
	}
	return false
}

// AdvanceForward moves to the next queued entry, or redelivers the current
// one while looping.
func (s *Session) AdvanceForward() *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearVotesLocked()
	s.resetTimingLocked()
	s.skip = false

	if s.looping && s.current != nil {
		return s.current
	}

	previous := s.current
	s.current = nil
	if len(s.queue) > 0 {
		s.current = s.queue[0]
		s.queue = s.queue[1:]
	}

	if previous != nil {
		s.pushHistoryLocked(previous)
	}

	return s.current
}

// AdvanceBackward moves to the last played entry. The entry that was
// playing goes back to the front of the queue.
func (s *Session) AdvanceBackward() *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearVotesLocked()
	s.resetTimingLocked()
	s.skip = false

	if s.looping && s.current != nil {
		return s.current
	}

	previous := s.current
	s.current = nil
	if n := len(s.history); n > 0 {
		s.current = s.history[n-1]
		s.history = s.history[:n-1]
	}

	if previous != nil {
		s.queue = append([]*Entry{previous}, s.queue...)
	}

	return s.current
}

func (s *Session) pushHistoryLocked(e *Entry) {
	s.history = append(s.history, e)
	if over := len(s.history) - s.opts.HistoryLimit; over > 0 {
		s.history = append([]*Entry(nil), s.history[over:]...)
	}
}

// DiscardCurrent drops the current entry without recording it in history.
// Used for entries whose stream can't be opened.
func (s *Session) DiscardCurrent() *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := s.current
	s.current = nil
	s.skip = false
	s.resetTimingLocked()
	return dropped
}

func (s *Session) resetTimingLocked() {
	s.trackStartedAt = time.Time{}
	s.pausedElapsed = 0
	s.paused = false
}

// MarkStarted records that the current track just started streaming.
func (s *Session) MarkStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trackStartedAt = s.opts.Now()
	s.pausedElapsed = 0
	s.paused = false
}

// Pause freezes the elapsed time and stops the status timer.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked()
}

func (s *Session) pauseLocked() bool {
	if s.trackStartedAt.IsZero() || s.paused {
		return false
	}

	s.pausedElapsed = s.opts.Now().Sub(s.trackStartedAt)
	s.paused = true
	s.stopTickerLocked()
	return true
}

// Resume shifts the start time so the frozen elapsed time carries over.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeLocked()
}

func (s *Session) resumeLocked() bool {
	if !s.paused || s.trackStartedAt.IsZero() {
		return false
	}

	s.trackStartedAt = s.opts.Now().Add(-s.pausedElapsed)
	s.pausedElapsed = 0
	s.paused = false
	s.startTickerLocked()
	return true
}

func (s *Session) Elapsed() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trackStartedAt.IsZero() {
		return 0, false
	}
	if s.paused {
		return s.pausedElapsed, true
	}
	return s.opts.Now().Sub(s.trackStartedAt), true
}

// Shuffle permutes the queue. Fewer than three entries are left alone.
func (s *Session) Shuffle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) <= 2 {
		return false
	}

	rand.Shuffle(len(s.queue), func(i, j int) {
		s.queue[i], s.queue[j] = s.queue[j], s.queue[i]
	})
	return true
}

func (s *Session) ToggleLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.looping = !s.looping
	return s.looping
}

// TogglePause flips the session and the active stream together and
// reports whether playback is now paused.
func (s *Session) TogglePause() bool {
	s.mu.Lock()
	d := s.dispatcher

	if s.paused {
		s.resumeLocked()
		s.mu.Unlock()
		if d != nil {
			d.Resume()
		}
		return false
	}

	paused := s.pauseLocked()
	s.mu.Unlock()
	if paused && d != nil {
		d.Pause()
	}
	return paused
}

// CastVote records voter's support for kind and runs the action once it
// has enough backing.
func (s *Session) CastVote(kind VoteKind, voter Voter, liveMembers int) VoteResult {
	if voter.Bot {
		return VoteNoPermission
	}

	s.mu.Lock()
	group, ok := s.votes[kind]
	if !ok || s.destroyed {
		s.mu.Unlock()
		return VoteNoPermission
	}

	if kind == VotePause && s.trackStartedAt.IsZero() {
		s.mu.Unlock()
		return VoteNotStarted
	}

	if group.Has(voter.ID) {
		s.mu.Unlock()
		return VoteAlreadyVoted
	}

	if !voter.Moderator && liveMembers > 2 {
		group.Add(voter.ID)
		if !group.Passes(liveMembers, s.opts.VotePercentage) {
			s.mu.Unlock()
			return VoteRecorded
		}
	}

	group.Clear()
	s.mu.Unlock()

	logger.InfoLogger.Printf("Vote %s executed in guild %s", kind, s.guildID)
	s.execute(kind)
	return VoteExecuted
}

func (s *Session) execute(kind VoteKind) {
	switch kind {
	case VoteNext:
		s.skipCurrent()
	case VotePrevious:
		s.AdvanceBackward()
		s.markRestart()
		s.endStream()
	case VoteReplay:
		s.markRestart()
		s.endStream()
	case VotePause:
		s.TogglePause()
	case VoteLoop:
		s.ToggleLoop()
	}
}

func (s *Session) RetractVote(kind VoteKind, voter Voter) bool {
	if voter.Bot {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.votes[kind]
	if !ok {
		return false
	}
	return group.Remove(voter.ID)
}

// RetractAll removes voterID from every group.
func (s *Session) RetractAll(voterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, group := range s.votes {
		group.Remove(voterID)
	}
}

// VoteCount returns the current supporters of kind.
func (s *Session) VoteCount(kind VoteKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if group, ok := s.votes[kind]; ok {
		return group.Len()
	}
	return 0
}

func (s *Session) clearVotesLocked() {
	for _, group := range s.votes {
		group.Clear()
	}
}

func (s *Session) markRestart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restart = true
}

// TakeRestart reports and clears a pending request to replay the current
// entry instead of advancing when the stream ends.
func (s *Session) TakeRestart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	restart := s.restart
	s.restart = false
	return restart
}

// skipCurrent ends the active stream. Without one, the skip is held until a
// stream is attached.
func (s *Session) skipCurrent() {
	s.mu.Lock()
	d := s.dispatcher
	if d == nil {
		s.skip = true
	}
	s.mu.Unlock()

	if d != nil {
		d.End()
	}
}

func (s *Session) endStream() {
	s.mu.Lock()
	d := s.dispatcher
	s.mu.Unlock()

	if d != nil {
		d.End()
	}
}

// AttachDispatcher makes d the active stream. It returns false, leaving d
// detached, if the session is destroyed or a skip arrived before the stream
// was attached; the caller must then end d itself.
func (s *Session) AttachDispatcher(d audio.Dispatcher) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return false
	}
	if s.skip {
		s.skip = false
		return false
	}
	s.dispatcher = d
	return true
}

// DetachDispatcher forgets d if it is still the active one.
func (s *Session) DetachDispatcher(d audio.Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dispatcher == d {
		s.dispatcher = nil
	}
}

func (s *Session) Dispatcher() audio.Dispatcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatcher
}

func (s *Session) SetConnection(conn audio.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

func (s *Session) Connection() audio.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// StartStatusTimer calls fn every interval until paused or destroyed.
func (s *Session) StartStatusTimer(interval time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.tickInterval = interval
	s.tickFn = fn
	if !s.paused {
		s.startTickerLocked()
	}
}

func (s *Session) StopStatusTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTickerLocked()
}

func (s *Session) StatusTimerRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickStop != nil
}

func (s *Session) startTickerLocked() {
	s.stopTickerLocked()
	if s.tickFn == nil || s.tickInterval <= 0 || s.destroyed {
		return
	}

	ticker := time.NewTicker(s.tickInterval)
	stop := make(chan struct{})
	fn := s.tickFn
	s.tickStop = stop

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				return
			}
		}
	}()
}

func (s *Session) stopTickerLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}

// Destroy stops the timer and the stream and releases the voice
// connection. Calling it again does nothing.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}

	s.destroyed = true
	s.stopTickerLocked()
	s.tickFn = nil

	d, conn := s.dispatcher, s.conn
	s.dispatcher, s.conn = nil, nil
	s.current = nil
	s.queue = nil
	s.restart = false
	s.skip = false
	s.clearVotesLocked()
	s.resetTimingLocked()
	s.mu.Unlock()

	if d != nil {
		d.End()
	}
	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			logger.ErrorLogger.Printf("Failed to disconnect in guild %s: %v", s.guildID, err)
		}
	}

	logger.InfoLogger.Printf("Session destroyed for guild %s", s.guildID)
}

func (s *Session) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func (s *Session) Current() *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Queue() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Entry(nil), s.queue...)
}

func (s *Session) History() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Entry(nil), s.history...)
}

func (s *Session) Looping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.looping
}

func (s *Session) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Session) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

func (s *Session) TextChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textChannelID
}

func (s *Session) SetTextChannelID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textChannelID = id
}

func (s *Session) VoiceChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceChannelID
}

func (s *Session) SetVoiceChannelID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceChannelID = id
}

func (s *Session) PlayerMessage() chat.MessageRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerMessage
}

func (s *Session) SetPlayerMessage(ref chat.MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerMessage = ref
}

func removeByID(entries []*Entry, id string) []*Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.ID() != id {
			out = append(out, e)
		}
	}
	return out
}
