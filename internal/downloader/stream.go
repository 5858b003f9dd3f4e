package downloader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/kkdai/youtube/v2"
	"github.com/lrstanley/go-ytdlp"

	"quidque.com/discord-jukebox/internal/audio"
	"quidque.com/discord-jukebox/internal/logger"
)

const (
	sampleRate = 48000
	channels   = 2

	opusItag   = 251
	readBuffer = 64 * 1024
)

// OpenAudioStream returns raw s16le 48kHz stereo PCM for track. It first
// hands ffmpeg a direct stream URL and falls back to piping yt-dlp into
// ffmpeg. The stream is only returned once it has produced data.
func (c *Client) OpenAudioStream(ctx context.Context, track *audio.Track) (io.ReadCloser, error) {
	if track == nil || track.ID == "" {
		return nil, fmt.Errorf("%w: empty track", ErrNotFound)
	}

	stream, err := c.openDirect(ctx, track)
	if err == nil {
		return stream, nil
	}
	logger.WarnLogger.Printf("Direct stream failed for %s, trying yt-dlp: %v", track.ID, err)

	stream, ytErr := c.openWithYtdlp(ctx, track)
	if ytErr != nil {
		return nil, fmt.Errorf("failed to open stream for %s: %w", track.ID, errors.Join(err, ytErr))
	}
	return stream, nil
}

func (c *Client) openDirect(ctx context.Context, track *audio.Track) (io.ReadCloser, error) {
	video, err := c.video(ctx, track.ID)
	if err != nil {
		return nil, err
	}

	format := pickAudioFormat(video.Formats)
	if format == nil {
		return nil, errors.New("no audio formats found")
	}

	streamURL, err := c.yt.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream url: %w", err)
	}

	args := append([]string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", streamURL,
	}, pcmArgs()...)

	ffmpeg := exec.CommandContext(ctx, c.ffmpegPath, args...)
	return startPipeline(ffmpeg)
}

func (c *Client) openWithYtdlp(ctx context.Context, track *audio.Track) (io.ReadCloser, error) {
	source := track.URL
	if source == "" {
		source = WatchURL(track.ID)
	}

	dl := ytdlp.New().
		Format("bestaudio[ext=webm]/bestaudio").
		Output("-").
		NoPart().
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		BuildCommand(ctx, source)

	ffmpeg := exec.CommandContext(ctx, c.ffmpegPath, append([]string{"-i", "pipe:0"}, pcmArgs()...)...)

	pipe, err := dl.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp stdout pipe error: %w", err)
	}
	ffmpeg.Stdin = pipe

	if err := dl.Start(); err != nil {
		return nil, fmt.Errorf("yt-dlp start error: %w", err)
	}

	return startPipeline(ffmpeg, dl)
}

func pcmArgs() []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	}
}

// pickAudioFormat prefers opus (itag 251), then any opus mime type, then
// the highest bitrate audio format.
func pickAudioFormat(formats youtube.FormatList) *youtube.Format {
	audioOnly := formats.WithAudioChannels().Type("audio")
	if len(audioOnly) == 0 {
		audioOnly = formats.WithAudioChannels()
	}
	if len(audioOnly) == 0 {
		return nil
	}

	for i := range audioOnly {
		if audioOnly[i].ItagNo == opusItag {
			return &audioOnly[i]
		}
	}
	for i := range audioOnly {
		if strings.Contains(audioOnly[i].MimeType, "opus") {
			return &audioOnly[i]
		}
	}

	best := &audioOnly[0]
	for i := range audioOnly {
		if audioOnly[i].Bitrate > best.Bitrate {
			best = &audioOnly[i]
		}
	}
	return best
}

// pcmStream is ffmpeg's stdout. Closing it kills every process in the
// pipeline.
type pcmStream struct {
	*bufio.Reader
	stdout io.ReadCloser
	procs  []*exec.Cmd
	once   sync.Once
}

func (s *pcmStream) Close() error {
	s.once.Do(func() {
		s.stdout.Close()
		killAll(s.procs)
	})
	return nil
}

// startPipeline starts ffmpeg and waits for its first output byte. upstream
// processes are already running and are killed along with ffmpeg.
func startPipeline(ffmpeg *exec.Cmd, upstream ...*exec.Cmd) (io.ReadCloser, error) {
	stderr := &headWriter{limit: 4096}
	ffmpeg.Stderr = stderr

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		killAll(upstream)
		return nil, fmt.Errorf("ffmpeg stdout pipe error: %w", err)
	}

	if err := ffmpeg.Start(); err != nil {
		killAll(upstream)
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	stream := &pcmStream{
		Reader: bufio.NewReaderSize(stdout, readBuffer),
		stdout: stdout,
		procs:  append([]*exec.Cmd{ffmpeg}, upstream...),
	}

	if _, err := stream.Peek(1); err != nil {
		stream.Close()
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg produced no audio: %s", msg)
		}
		return nil, fmt.Errorf("ffmpeg produced no audio: %w", err)
	}

	return stream, nil
}

func killAll(cmds []*exec.Cmd) {
	for _, cmd := range cmds {
		if cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.DebugLogger.Printf("Failed to kill %s: %v", cmd.Path, err)
		}
		go cmd.Wait()
	}
}

// headWriter keeps the first limit bytes written to it.
type headWriter struct {
	mu    sync.Mutex
	buf   strings.Builder
	limit int
}

func (w *headWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if room := w.limit - w.buf.Len(); room > 0 {
		w.buf.Write(p[:min(len(p), room)])
	}
	return len(p), nil
}

func (w *headWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
