package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/ppalone/ytsearch"

	"quidque.com/discord-jukebox/internal/audio"
	"quidque.com/discord-jukebox/internal/logger"
)

var (
	ErrNotFound    = errors.New("media not found")
	ErrUnsupported = errors.New("unsupported media source")
)

const (
	DefaultCacheTTL   = 10 * time.Minute
	DefaultFFmpegPath = "ffmpeg"

	requestTimeout = 15 * time.Second
)

type Options struct {
	FFmpegPath string
	CacheTTL   time.Duration
}

// Client resolves YouTube media and opens PCM streams for it.
type Client struct {
	yt         *youtube.Client
	search     *ytsearch.Client
	cache      *Cache
	ffmpegPath string

	fetch func(ctx context.Context, id string) (*youtube.Video, error)
}

func NewClient(opts Options) *Client {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = DefaultFFmpegPath
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}

	httpClient := &http.Client{Timeout: requestTimeout}

	c := &Client{
		yt:         &youtube.Client{HTTPClient: httpClient},
		search:     ytsearch.NewClient(nil),
		cache:      NewCache(opts.CacheTTL),
		ffmpegPath: opts.FFmpegPath,
	}
	c.fetch = c.yt.GetVideoContext
	return c
}

// ResolveByURL fetches the metadata behind a YouTube link.
func (c *Client) ResolveByURL(ctx context.Context, rawURL string) (*audio.Track, error) {
	if !IsYouTubeURL(rawURL) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, rawURL)
	}

	id, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, rawURL, err)
	}

	video, err := c.video(ctx, id)
	if err != nil {
		return nil, err
	}
	return trackFromVideo(video), nil
}

// SearchTopResult resolves the first video result for query.
func (c *Client) SearchTopResult(ctx context.Context, query string) (*audio.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrNotFound)
	}

	res, err := c.search.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	for _, r := range res.Results {
		if r.VideoID == "" {
			continue
		}
		logger.DebugLogger.Printf("Search %q matched %s (%s)", query, r.VideoID, r.Title)
		return c.ResolveByURL(ctx, WatchURL(r.VideoID))
	}

	return nil, fmt.Errorf("%w: no results for %q", ErrNotFound, query)
}

func (c *Client) video(ctx context.Context, id string) (*youtube.Video, error) {
	if v, ok := c.cache.Get(id); ok {
		return v, nil
	}

	v, err := c.fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, id, err)
	}

	c.cache.Put(id, v)
	return v, nil
}

func trackFromVideo(v *youtube.Video) *audio.Track {
	track := &audio.Track{
		ID:       v.ID,
		Title:    v.Title,
		URL:      WatchURL(v.ID),
		Duration: v.Duration,
		Channel: audio.Channel{
			ID:   v.ChannelID,
			Name: v.Author,
		},
		Stats:  &audio.Stats{Views: v.Views},
		IsLive: v.HLSManifestURL != "" && v.Duration == 0,
	}

	if v.ChannelID != "" {
		track.Channel.URL = "https://www.youtube.com/channel/" + v.ChannelID
	}

	if n := len(v.Thumbnails); n > 0 {
		best := v.Thumbnails[0]
		for _, t := range v.Thumbnails[1:] {
			if t.Width > best.Width {
				best = t
			}
		}
		track.ThumbnailURL = best.URL
	}

	return track
}
