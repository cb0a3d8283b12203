package utils

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// GetYTVidIDFromURL returns the video id of a youtube.com watch link or a
// youtu.be short link, or "" when url carries none.
func GetYTVidIDFromURL(url string) string {
	if i := strings.Index(url, "youtu.be/"); i != -1 {
		id := url[i+len("youtu.be/"):]
		if end := strings.IndexAny(id, "?&#/"); end != -1 {
			id = id[:end]
		}
		return id
	}

	start := strings.Index(url, "v=")
	if start == -1 || (start > 0 && url[start-1] != '?' && url[start-1] != '&') {
		return ""
	}
	id := url[start+2:]
	if end := strings.IndexAny(id, "&#"); end != -1 {
		id = id[:end]
	}
	return id
}

func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FormatDuration renders d as mm:ss, or hh:mm:ss once it reaches an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
