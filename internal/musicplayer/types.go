package musicplayer

import (
	"errors"
	"time"

	"github.com/ARF-DEV/caffeine_jukebox/utils"
)

var (
	ErrNoQueue           = errors.New("there is nothing playing in this server")
	ErrNoUpNext          = errors.New("there is no up next song to skip to")
	ErrAlreadyPaused     = errors.New("the queue is already paused")
	ErrNotPaused         = errors.New("the queue is not paused")
	ErrEmptyQuery        = errors.New("no song name or link given")
	ErrNoResult          = errors.New("no result found for the query")
	ErrClosed            = errors.New("the music player is shutting down")
	ErrUnsupportedSource = errors.New("Spotify links are not supported, send a YouTube link or a song name instead")
)

type Song struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	URL         string        `json:"url"`
	Duration    time.Duration `json:"duration"`
	IsLive      bool          `json:"is_live"`
	Source      string        `json:"source"`
	RequestedBy string        `json:"requested_by"`
}

func (s Song) FormattedDuration() string {
	if s.IsLive {
		return "Live"
	}
	return utils.FormatDuration(s.Duration)
}

type Playlist struct {
	Name  string
	URL   string
	Songs []Song
}

// Queue is a point in time copy of a guild's queue. Songs[0] is the song
// currently playing.
type Queue struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	Songs          []Song
	Paused         bool
}

type PlayRequest struct {
	GuildID        string
	VoiceChannelID string
	// TextChannelID receives event messages for a newly created queue.
	TextChannelID string
	Query         string
	RequestedBy   string
}

// Listener receives queue events. Methods are called synchronously from the
// goroutine that produced the event and must not call back into the Manager
// while blocking on it.
type Listener interface {
	PlaySong(q Queue, s Song)
	AddSong(q Queue, s Song)
	AddList(q Queue, p Playlist)
	Finish(q Queue)
	Empty(q Queue)
	// Error reports a playback failure. q and s are nil when the failure is
	// not tied to a queue.
	Error(err error, q *Queue, s *Song)
}
