package musicplayer

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ARF-DEV/caffeine_jukebox/internal/cache"
	"github.com/ARF-DEV/caffeine_jukebox/internal/observe"
	"github.com/ARF-DEV/caffeine_jukebox/utils"
	"github.com/ARF-DEV/caffeine_jukebox/utils/ytutils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Resolved is what a query turned into. Playlist is set when the query
// named a playlist, in which case Songs holds its entries.
type Resolved struct {
	Songs    []Song
	Playlist *Playlist
}

type Resolver interface {
	Resolve(ctx context.Context, query string) (Resolved, error)
}

// YTResolver resolves links and free text searches with yt-dlp and keeps
// the metadata in Cache for TTL.
type YTResolver struct {
	Bin     string
	Cache   cache.Cache
	TTL     time.Duration
	Metrics *observe.Metrics
	Log     *logrus.Entry
}

var _ Resolver = (*YTResolver)(nil)

func (r *YTResolver) Resolve(ctx context.Context, query string) (Resolved, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Resolved{}, ErrEmptyQuery
	}
	if isSpotify(query) {
		return Resolved{}, ErrUnsupportedSource
	}

	target := ytutils.SearchTarget(query)
	key := metaKey(target)

	if r.Cache != nil {
		var meta ytutils.YTVideoMeta
		err := r.Cache.GetAndParse(ctx, key, &meta)
		switch {
		case err == nil:
			r.Metrics.RecordCacheLookup(ctx, "meta", "hit")
			return FromMeta(target, meta)
		case errors.Is(err, cache.ErrMiss):
			r.Metrics.RecordCacheLookup(ctx, "meta", "miss")
		default:
			r.Metrics.RecordCacheLookup(ctx, "meta", "error")
			r.log().WithError(err).WithField("key", key).Warn("metadata cache read failed")
		}
	}

	meta, err := ytutils.GetMetaData(ctx, r.Bin, target)
	if err != nil {
		return Resolved{}, err
	}

	if r.Cache != nil && r.TTL > 0 {
		if err := r.Cache.SetExp(ctx, key, meta, r.TTL); err != nil {
			r.log().WithError(err).WithField("key", key).Warn("metadata cache write failed")
		}
	}
	return FromMeta(target, meta)
}

func (r *YTResolver) log() *logrus.Entry {
	if r.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return r.Log
}

// FromMeta converts yt-dlp metadata for target into songs. A search result
// is a one entry playlist and becomes a single song.
func FromMeta(target string, meta ytutils.YTVideoMeta) (Resolved, error) {
	if meta.Type != ytutils.MetaPlayList {
		return Resolved{Songs: []Song{songFromMeta(meta)}}, nil
	}

	if len(meta.Entries) == 0 {
		return Resolved{}, ErrNoResult
	}
	if ytutils.IsSearch(target) {
		return Resolved{Songs: []Song{songFromMeta(meta.Entries[0])}}, nil
	}

	songs := make([]Song, 0, len(meta.Entries))
	for _, e := range meta.Entries {
		songs = append(songs, songFromMeta(e))
	}
	return Resolved{
		Songs: songs,
		Playlist: &Playlist{
			Name:  meta.Name(),
			URL:   meta.Link(),
			Songs: songs,
		},
	}, nil
}

func songFromMeta(m ytutils.YTVideoMeta) Song {
	s := Song{
		ID:       m.ID,
		Name:     m.Name(),
		URL:      m.Link(),
		Duration: time.Duration(m.Duration * float64(time.Second)),
		IsLive:   m.IsLive,
		Source:   strings.ToLower(firstNonEmpty(m.Extractor, m.IEKey)),
	}
	if s.ID == "" {
		s.ID = s.URL
	}
	if s.Name == "" {
		s.Name = s.URL
	}
	return s
}

func metaKey(target string) string {
	if utils.IsURL(target) {
		if id := utils.GetYTVidIDFromURL(target); id != "" && !strings.Contains(target, "list=") {
			return "meta:youtube:" + id
		}
	}
	return "meta:" + target
}

func isSpotify(query string) bool {
	if strings.HasPrefix(query, "spotify:") {
		return true
	}
	if !utils.IsURL(query) {
		return false
	}
	u, err := url.Parse(query)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "spotify.com" || strings.HasSuffix(host, ".spotify.com") || host == "spotify.link"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
