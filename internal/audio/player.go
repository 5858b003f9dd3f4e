package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
	"quidque.com/discord-jukebox/internal/logger"
)

const (
	channels  = 2
	frameRate = 48000
	frameSize = 960

	maxOpusBytes = frameSize * channels * 2
	sendTimeout  = 2 * time.Second
)

type PlayerState string

const (
	StateStopped PlayerState = "stopped"
	StatePlaying PlayerState = "playing"
	StatePaused  PlayerState = "paused"
)

var ErrSendTimeout = errors.New("discord send timeout")

// VoiceConnection adapts a discordgo voice connection to Connection.
// Streams must be raw s16le PCM at 48kHz stereo.
type VoiceConnection struct {
	vc     *discordgo.VoiceConnection
	mu     sync.Mutex
	active *Player
}

func NewVoiceConnection(vc *discordgo.VoiceConnection) *VoiceConnection {
	return &VoiceConnection{vc: vc}
}

func (c *VoiceConnection) ChannelID() string {
	return c.vc.ChannelID
}

func (c *VoiceConnection) Play(stream io.ReadCloser, events Events) Dispatcher {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.detach()
	}

	p := newPlayer(c.vc, stream, events)
	c.active = p
	go p.run()
	return p
}

func (c *VoiceConnection) Disconnect() error {
	c.mu.Lock()
	if c.active != nil {
		c.active.detach()
		c.active = nil
	}
	c.mu.Unlock()

	if err := c.vc.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from voice channel: %w", err)
	}
	return nil
}

// Player encodes one PCM stream to opus and feeds the voice connection.
type Player struct {
	vc     *discordgo.VoiceConnection
	stream io.ReadCloser

	mu       sync.Mutex
	state    PlayerState
	events   Events
	resumeCh chan struct{}

	stopChan  chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

func newPlayer(vc *discordgo.VoiceConnection, stream io.ReadCloser, events Events) *Player {
	return &Player{
		vc:       vc,
		stream:   stream,
		events:   events,
		state:    StatePlaying,
		resumeCh: make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying {
		return
	}
	p.state = StatePaused
	p.resumeCh = make(chan struct{})
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePaused {
		return
	}
	p.state = StatePlaying
	close(p.resumeCh)
}

func (p *Player) End() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.closeStream()
}

// detach ends the stream without firing any event.
func (p *Player) detach() {
	p.mu.Lock()
	p.events = Events{}
	p.mu.Unlock()
	p.End()
}

func (p *Player) stopped() bool {
	select {
	case <-p.stopChan:
		return true
	default:
		return false
	}
}

func (p *Player) closeStream() {
	p.closeOnce.Do(func() {
		if err := p.stream.Close(); err != nil {
			logger.DebugLogger.Printf("Closing audio stream: %v", err)
		}
	})
}

func (p *Player) finish(err error) {
	p.mu.Lock()
	p.state = StateStopped
	events := p.events
	p.mu.Unlock()

	p.closeStream()

	if err != nil {
		logger.ErrorLogger.Printf("Playback error: %v", err)
		events.fail(err)
		return
	}
	events.end()
}

func (p *Player) run() {
	encoder, err := gopus.NewEncoder(frameRate, channels, gopus.Audio)
	if err != nil {
		p.finish(fmt.Errorf("failed to create opus encoder: %w", err))
		return
	}

	p.vc.Speaking(true)
	defer p.vc.Speaking(false)

	audioBuf := make([]int16, frameSize*channels)
	started := false

	for {
		p.mu.Lock()
		paused := p.state == StatePaused
		resume := p.resumeCh
		p.mu.Unlock()

		if paused {
			p.vc.Speaking(false)
			select {
			case <-resume:
				p.vc.Speaking(true)
				continue
			case <-p.stopChan:
				p.finish(nil)
				return
			}
		}

		if p.stopped() {
			p.finish(nil)
			return
		}

		err := binary.Read(p.stream, binary.LittleEndian, &audioBuf)
		if err != nil {
			if p.stopped() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				p.finish(nil)
				return
			}
			p.finish(fmt.Errorf("error reading audio data: %w", err))
			return
		}

		opusData, err := encoder.Encode(audioBuf, frameSize, maxOpusBytes)
		if err != nil {
			p.finish(fmt.Errorf("error encoding opus: %w", err))
			return
		}

		if !started {
			started = true
			p.mu.Lock()
			events := p.events
			p.mu.Unlock()
			events.start()
		}

		select {
		case p.vc.OpusSend <- opusData:
		case <-time.After(sendTimeout):
			p.finish(ErrSendTimeout)
			return
		case <-p.stopChan:
			p.finish(nil)
			return
		}
	}
}
