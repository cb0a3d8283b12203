package ytutils

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/ARF-DEV/caffeine_jukebox/utils"
	"github.com/pkg/errors"
)

type YTVideoMeta struct {
	Title      string        `json:"title"`
	FullTitle  string        `json:"fulltitle"`
	ID         string        `json:"id"`
	Type       MetaType      `json:"_type"`
	URL        string        `json:"url"`
	WebpageURL string        `json:"webpage_url"`
	Duration   float64       `json:"duration"`
	IsLive     bool          `json:"is_live"`
	Extractor  string        `json:"extractor_key"`
	IEKey      string        `json:"ie_key"`
	Entries    []YTVideoMeta `json:"entries"`
}

type MetaType string

const (
	MetaPlayList MetaType = "playlist"
	MetaVideo    MetaType = "video"
	MetaURL      MetaType = "url"
)

const searchPrefix = "ytsearch1:"

// SearchTarget turns a free text query into a single result youtube search
// and passes links through unchanged.
func SearchTarget(query string) string {
	query = strings.TrimSpace(query)
	if utils.IsURL(query) {
		return query
	}
	return searchPrefix + query
}

func IsSearch(target string) bool {
	return strings.HasPrefix(target, searchPrefix)
}

// Link returns the page url of m, falling back to a youtube watch link built
// from the id for flat playlist entries.
func (m YTVideoMeta) Link() string {
	switch {
	case m.WebpageURL != "":
		return m.WebpageURL
	case utils.IsURL(m.URL):
		return m.URL
	case m.ID != "" && (m.IEKey == "Youtube" || m.Extractor == "Youtube" || m.Extractor == ""):
		return "https://www.youtube.com/watch?v=" + m.ID
	}
	return m.URL
}

func (m YTVideoMeta) Name() string {
	if m.Title != "" {
		return m.Title
	}
	return m.FullTitle
}

func GetMetaData(ctx context.Context, bin, target string) (YTVideoMeta, error) {
	cmdMetaData := exec.CommandContext(ctx, bin,
		"--skip-download",
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		target,
	)
	var stderr bytes.Buffer
	cmdMetaData.Stderr = &stderr

	out, err := cmdMetaData.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return YTVideoMeta{}, errors.Wrapf(err, "yt-dlp: %s", msg)
		}
		return YTVideoMeta{}, errors.Wrap(err, "yt-dlp")
	}
	return ParseMeta(out)
}

func ParseMeta(b []byte) (YTVideoMeta, error) {
	trimStr := strings.ReplaceAll(string(b), "\u0000", "")
	meta := YTVideoMeta{}
	if err := json.Unmarshal([]byte(trimStr), &meta); err != nil {
		return YTVideoMeta{}, errors.Wrap(err, "decode yt-dlp metadata")
	}
	if meta.Type == "" {
		meta.Type = MetaVideo
	}
	return meta, nil
}
