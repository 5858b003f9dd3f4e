package downloader

import (
	"net/url"
	"strings"
)

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// IsURL reports whether s looks like an absolute http(s) link.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func IsYouTubeURL(s string) bool {
	if !IsURL(s) {
		return false
	}
	u, _ := url.Parse(s)
	return youtubeHosts[strings.ToLower(u.Hostname())]
}

func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
