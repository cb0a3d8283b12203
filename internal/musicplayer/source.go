package musicplayer

import (
	"context"
	"time"

	"github.com/ARF-DEV/caffeine_jukebox/internal/audio"
	"github.com/ARF-DEV/caffeine_jukebox/internal/cache"
	"github.com/ARF-DEV/caffeine_jukebox/internal/observe"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FrameSource streams the Opus frames of a song into out. Implementations
// must return once ctx is done, including while blocked on out.
type FrameSource interface {
	Stream(ctx context.Context, song Song, out chan<- audio.OpusFrame) error
}

// Encoder produces Opus frames for a media url. *audio.Transcoder
// satisfies it.
type Encoder interface {
	Encode(ctx context.Context, url string, emit func(audio.OpusFrame) error) error
}

// CachedSource replays frames from Cache when present and otherwise encodes
// the song, storing the result for TTL when it is complete, not live and no
// longer than MaxDuration.
type CachedSource struct {
	Encoder     Encoder
	Cache       cache.Cache
	TTL         time.Duration
	MaxDuration time.Duration
	Metrics     *observe.Metrics
	Log         *logrus.Entry
}

var _ FrameSource = (*CachedSource)(nil)

func (s *CachedSource) Stream(ctx context.Context, song Song, out chan<- audio.OpusFrame) error {
	send := func(f audio.OpusFrame) error {
		select {
		case out <- f:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	key := frameKey(song)
	log := s.log().WithField("song", song.ID)

	if s.Cache != nil && !song.IsLive {
		var frames audio.OpusSound
		err := s.Cache.GetAndParse(ctx, key, &frames)
		switch {
		case err == nil && len(frames) > 0:
			s.Metrics.RecordCacheLookup(ctx, "frames", "hit")
			log.WithField("frames", len(frames)).Debug("playing cached frames")
			for _, f := range frames {
				if err := send(f); err != nil {
					return err
				}
			}
			return nil
		case err == nil || errors.Is(err, cache.ErrMiss):
			s.Metrics.RecordCacheLookup(ctx, "frames", "miss")
		default:
			s.Metrics.RecordCacheLookup(ctx, "frames", "error")
			log.WithError(err).Warn("frame cache read failed")
		}
	}

	cacheable := s.Cache != nil && s.TTL > 0 && !song.IsLive &&
		(s.MaxDuration == 0 || song.Duration <= s.MaxDuration)

	var collected audio.OpusSound
	err := s.Encoder.Encode(ctx, song.URL, func(f audio.OpusFrame) error {
		if cacheable {
			collected = append(collected, f)
			if s.MaxDuration > 0 && collected.Duration() > s.MaxDuration {
				cacheable, collected = false, nil
			}
		}
		return send(f)
	})
	if err != nil {
		return errors.Wrapf(err, "stream %q", song.Name)
	}

	if cacheable && len(collected) > 0 {
		if err := s.Cache.SetExp(ctx, key, collected, s.TTL); err != nil {
			log.WithError(err).Warn("frame cache write failed")
		}
	}
	return nil
}

func (s *CachedSource) log() *logrus.Entry {
	if s.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Log
}

func frameKey(song Song) string {
	return "frames:" + song.ID
}
