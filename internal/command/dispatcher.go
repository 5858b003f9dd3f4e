package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"quidque.com/discord-jukebox/internal/audio"
	"quidque.com/discord-jukebox/internal/chat"
	"quidque.com/discord-jukebox/internal/downloader"
	"quidque.com/discord-jukebox/internal/logger"
	"quidque.com/discord-jukebox/internal/queue"
)

const (
	DefaultCommandRate  = 1.0
	DefaultCommandBurst = 3

	queuePageSize = 10
)

// Resolver turns links and search terms into tracks.
type Resolver interface {
	ResolveByURL(ctx context.Context, url string) (*audio.Track, error)
	SearchTopResult(ctx context.Context, query string) (*audio.Track, error)
}

// Player is the part of the playback driver commands reach into.
type Player interface {
	Refresh(s *queue.Session)
	Repost(s *queue.Session)
	Teardown(s *queue.Session)
}

type Options struct {
	// Usage is the invocation shown in usage hints, e.g. "!music".
	Usage        string
	Phrases      chat.Phrases
	CommandRate  float64
	CommandBurst int
	Now          func() time.Time
}

// Dispatcher executes command bodies against guild sessions.
type Dispatcher struct {
	registry  *queue.Registry
	platform  chat.Platform
	messenger *chat.Messenger
	resolver  Resolver
	player    Player
	phrases   chat.Phrases
	usage     string
	now       func() time.Time

	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex

	joinMu sync.Mutex
}

func NewDispatcher(registry *queue.Registry, platform chat.Platform, resolver Resolver, player Player, opts Options) *Dispatcher {
	if opts.CommandRate <= 0 {
		opts.CommandRate = DefaultCommandRate
	}
	if opts.CommandBurst <= 0 {
		opts.CommandBurst = DefaultCommandBurst
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Dispatcher{
		registry:  registry,
		platform:  platform,
		messenger: chat.NewMessenger(platform),
		resolver:  resolver,
		player:    player,
		phrases:   opts.Phrases,
		usage:     opts.Usage,
		now:       opts.Now,
		limit:     rate.Limit(opts.CommandRate),
		burst:     opts.CommandBurst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// HandleCommand runs body, the message text after the prefix and keyword.
// Every outcome is reported to the message's channel.
func (d *Dispatcher) HandleCommand(ctx context.Context, msg chat.Message, body string) {
	if msg.AuthorIsBot || msg.GuildID == "" {
		return
	}

	if !d.allow(msg.GuildID, msg.AuthorID) {
		d.reply(msg, d.phrases.SlowDown)
		return
	}

	cmd := Parse(body)
	logger.DebugLogger.Printf("Command %s from %s in guild %s", cmd.Verb, msg.AuthorID, msg.GuildID)

	switch cmd.Verb {
	case VerbNone:
		d.reply(msg, fmt.Sprintf(d.phrases.IncorrectUsage, d.usage))
	case VerbHelp:
		d.help(msg)
	case VerbUnsupported:
		d.reply(msg, d.phrases.OnlyYouTube)
	case VerbAdd, VerbSearch:
		d.add(ctx, msg, cmd)
	case VerbDestroy:
		d.destroy(msg)
	case VerbNext:
		d.vote(msg, queue.VoteNext)
	case VerbPrevious:
		d.vote(msg, queue.VotePrevious)
	case VerbReplay:
		d.vote(msg, queue.VoteReplay)
	case VerbLoop:
		d.vote(msg, queue.VoteLoop)
	case VerbPause, VerbResume:
		d.pauseOrResume(msg, cmd.Verb)
	case VerbShuffle:
		d.shuffle(msg)
	case VerbQueue:
		d.showQueue(msg)
	case VerbNow:
		d.showNow(msg)
	}
}

func (d *Dispatcher) allow(guildID, userID string) bool {
	key := guildID + ":" + userID

	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[key]
	if !ok {
		l = rate.NewLimiter(d.limit, d.burst)
		d.limiters[key] = l
	}
	return l.Allow()
}

func (d *Dispatcher) reply(msg chat.Message, content string) {
	d.messenger.Say(msg.ChannelID, content)
}

func (d *Dispatcher) help(msg chat.Message) {
	d.messenger.Post(msg.ChannelID, chat.Card{
		Title:       d.phrases.HelpTitle,
		Description: d.phrases.HelpBody,
		Footer:      d.usage,
	})
}

func (d *Dispatcher) add(ctx context.Context, msg chat.Message, cmd Command) {
	channelID, err := d.platform.UserVoiceChannel(msg.GuildID, msg.AuthorID)
	if err != nil {
		d.reply(msg, d.phrases.NotInVoice)
		return
	}

	s, err := d.bind(ctx, msg, channelID)
	if err != nil {
		return
	}

	if len(cmd.Rejected) > 0 {
		d.reply(msg, d.phrases.OnlyYouTube)
	}

	if cmd.Verb == VerbSearch {
		track, err := d.resolver.SearchTopResult(ctx, cmd.Query)
		if err != nil {
			logger.WarnLogger.Printf("Search %q failed: %v", cmd.Query, err)
			d.reply(msg, fmt.Sprintf(d.phrases.SearchEmpty, chat.Escape(cmd.Query)))
			return
		}
		d.enqueue(ctx, msg, s, track)
		return
	}

	for _, url := range cmd.URLs {
		track, err := d.resolver.ResolveByURL(ctx, url)
		if err != nil {
			logger.WarnLogger.Printf("Resolve %s failed: %v", url, err)
			if errors.Is(err, downloader.ErrUnsupported) {
				d.reply(msg, d.phrases.OnlyYouTube)
			} else {
				d.reply(msg, fmt.Sprintf(d.phrases.NotFound, "<"+url+">"))
			}
			continue
		}
		if s = d.enqueue(ctx, msg, s, track); s == nil {
			return
		}
	}
}

// bind returns the guild's session, joining channelID if the session has
// no voice connection yet. Failures are reported before returning.
func (d *Dispatcher) bind(ctx context.Context, msg chat.Message, channelID string) (*queue.Session, error) {
	d.joinMu.Lock()
	defer d.joinMu.Unlock()

	s := d.registry.GetOrCreate(msg.GuildID)

	if conn := s.Connection(); conn != nil {
		if s.VoiceChannelID() != channelID {
			d.reply(msg, d.phrases.WrongChannel)
			return nil, errors.New("wrong voice channel")
		}
		return s, nil
	}

	conn, err := d.platform.JoinVoice(ctx, msg.GuildID, channelID)
	if err != nil {
		logger.ErrorLogger.Printf("Failed to join voice channel %s in guild %s: %v", channelID, msg.GuildID, err)
		if s.Current() == nil && len(s.Queue()) == 0 {
			d.registry.Release(s)
		}
		d.reply(msg, d.phrases.CannotJoin)
		return nil, err
	}

	s.SetConnection(conn)
	s.SetVoiceChannelID(channelID)
	s.SetTextChannelID(msg.ChannelID)
	return s, nil
}

// enqueue adds track to s and returns the session it landed in. If s was
// torn down while the track resolved, the author's channel is joined again.
// It returns nil when no session could take the track.
func (d *Dispatcher) enqueue(ctx context.Context, msg chat.Message, s *queue.Session, track *audio.Track) *queue.Session {
	entry := queue.NewEntry(track, msg.AuthorID, msg.AuthorName, d.now())

	err := s.Enqueue(entry)
	if errors.Is(err, queue.ErrDestroyed) {
		logger.InfoLogger.Printf("Session in guild %s ended while resolving, joining again", msg.GuildID)

		channelID, verr := d.platform.UserVoiceChannel(msg.GuildID, msg.AuthorID)
		if verr != nil {
			d.reply(msg, d.phrases.NotInVoice)
			return nil
		}
		if s, err = d.bind(ctx, msg, channelID); err != nil {
			return nil
		}
		err = s.Enqueue(entry)
	}

	switch {
	case errors.Is(err, queue.ErrDuplicate):
		d.reply(msg, fmt.Sprintf(d.phrases.Duplicate, chat.Escape(track.Title)))
	case err != nil:
		logger.ErrorLogger.Printf("Failed to queue %q in guild %s: %v", track.Title, msg.GuildID, err)
		return nil
	default:
		d.reply(msg, fmt.Sprintf(d.phrases.Added, chat.Escape(track.Title)))
	}
	return s
}

// active returns the guild's session if something is playing and the author
// shares its voice channel. Otherwise it reports why and returns nil.
func (d *Dispatcher) active(msg chat.Message) *queue.Session {
	s, ok := d.registry.Get(msg.GuildID)
	if !ok || s.Current() == nil {
		d.reply(msg, d.phrases.NothingPlaying)
		return nil
	}

	channelID, err := d.platform.UserVoiceChannel(msg.GuildID, msg.AuthorID)
	if err != nil {
		d.reply(msg, d.phrases.NotInVoice)
		return nil
	}
	if channelID != s.VoiceChannelID() {
		d.reply(msg, d.phrases.WrongChannel)
		return nil
	}
	return s
}

func (d *Dispatcher) voter(msg chat.Message) queue.Voter {
	return queue.Voter{
		ID:        msg.AuthorID,
		Bot:       msg.AuthorIsBot,
		Moderator: d.platform.IsModerator(msg.GuildID, msg.ChannelID, msg.AuthorID),
	}
}

func (d *Dispatcher) liveMembers(s *queue.Session) int {
	return chat.CountHumans(d.platform.VoiceMembers(s.GuildID(), s.VoiceChannelID()))
}

func (d *Dispatcher) vote(msg chat.Message, kind queue.VoteKind) {
	s := d.active(msg)
	if s == nil {
		return
	}
	d.cast(msg, s, kind)
}

func (d *Dispatcher) pauseOrResume(msg chat.Message, verb Verb) {
	s := d.active(msg)
	if s == nil {
		return
	}

	switch {
	case verb == VerbPause && s.IsPaused():
		d.reply(msg, d.phrases.AlreadyPaused)
		return
	case verb == VerbResume && !s.IsPaused():
		d.reply(msg, d.phrases.NotPaused)
		return
	}

	d.cast(msg, s, queue.VotePause)
}

func (d *Dispatcher) cast(msg chat.Message, s *queue.Session, kind queue.VoteKind) {
	live := d.liveMembers(s)
	result := s.CastVote(kind, d.voter(msg), live)
	logger.DebugLogger.Printf("Vote %s by %s in guild %s: %s", kind, msg.AuthorID, msg.GuildID, result)

	switch result {
	case queue.VoteNoPermission:
		d.reply(msg, d.phrases.NoPermission)
	case queue.VoteAlreadyVoted:
		d.reply(msg, d.phrases.AlreadyVoted)
	case queue.VoteNotStarted:
		d.reply(msg, d.phrases.NotStarted)
	case queue.VoteRecorded:
		d.reply(msg, fmt.Sprintf(d.phrases.VoteRecorded, s.VoteCount(kind), queue.Required(live, s.VotePercentage())))
	case queue.VoteExecuted:
		d.reply(msg, d.executed(s, kind))
		if kind == queue.VotePause || kind == queue.VoteLoop {
			d.player.Refresh(s)
		}
	}
}

func (d *Dispatcher) executed(s *queue.Session, kind queue.VoteKind) string {
	switch kind {
	case queue.VoteNext:
		return d.phrases.Skipped
	case queue.VotePrevious:
		return d.phrases.WentBack
	case queue.VoteReplay:
		return d.phrases.Replaying
	case queue.VotePause:
		if s.IsPaused() {
			return d.phrases.Paused
		}
		return d.phrases.Resumed
	case queue.VoteLoop:
		if s.Looping() {
			return d.phrases.LoopOn
		}
		return d.phrases.LoopOff
	}
	return ""
}

// privileged reports whether the author may act on s without a vote.
func (d *Dispatcher) privileged(msg chat.Message, s *queue.Session) bool {
	return d.platform.IsModerator(msg.GuildID, msg.ChannelID, msg.AuthorID) || d.liveMembers(s) <= 2
}

func (d *Dispatcher) destroy(msg chat.Message) {
	s, ok := d.registry.Get(msg.GuildID)
	if !ok {
		d.reply(msg, d.phrases.NothingPlaying)
		return
	}

	channelID, err := d.platform.UserVoiceChannel(msg.GuildID, msg.AuthorID)
	if err != nil || channelID != s.VoiceChannelID() {
		if !d.platform.IsModerator(msg.GuildID, msg.ChannelID, msg.AuthorID) {
			d.reply(msg, d.phrases.WrongChannel)
			return
		}
	}

	if !d.privileged(msg, s) {
		d.reply(msg, d.phrases.NoPermission)
		return
	}

	logger.InfoLogger.Printf("Session in guild %s destroyed by %s", msg.GuildID, msg.AuthorID)
	d.player.Teardown(s)
	d.reply(msg, d.phrases.Destroyed)
}

func (d *Dispatcher) shuffle(msg chat.Message) {
	s := d.active(msg)
	if s == nil {
		return
	}

	if !s.Shuffle() {
		d.reply(msg, d.phrases.ShuffleTooShort)
		return
	}
	d.reply(msg, d.phrases.Shuffled)
	d.player.Refresh(s)
}

func (d *Dispatcher) showQueue(msg chat.Message) {
	s, ok := d.registry.Get(msg.GuildID)
	if !ok || (s.Current() == nil && len(s.Queue()) == 0) {
		d.reply(msg, d.phrases.QueueEmpty)
		return
	}
	d.messenger.Post(msg.ChannelID, QueueCard(s, d.phrases))
}

func (d *Dispatcher) showNow(msg chat.Message) {
	s, ok := d.registry.Get(msg.GuildID)
	if !ok || s.Current() == nil {
		d.reply(msg, d.phrases.NothingPlaying)
		return
	}
	if s.TextChannelID() != msg.ChannelID {
		s.SetTextChannelID(msg.ChannelID)
	}
	d.player.Repost(s)
}

// QueueCard lists the current entry and the first page of the queue.
func QueueCard(s *queue.Session, phrases chat.Phrases) chat.Card {
	var b strings.Builder

	if cur := s.Current(); cur != nil {
		fmt.Fprintf(&b, "%s: **%s** `%s`\n\n", phrases.NowPlayingTitle, chat.Escape(cur.Title()), cur.Track.GetDurationString())
	}

	entries := s.Queue()
	for i, e := range entries {
		if i == queuePageSize {
			fmt.Fprintf(&b, "… +%d", len(entries)-queuePageSize)
			break
		}
		fmt.Fprintf(&b, "`%d.` %s `%s` (%s)\n", i+1, chat.Escape(e.Title()), e.Track.GetDurationString(), chat.Escape(e.SubmitterName))
	}

	card := chat.Card{
		Title:       phrases.QueueTitle,
		Description: strings.TrimSpace(b.String()),
	}
	if s.Looping() {
		card.Footer = phrases.Looping
	}
	return card
}
