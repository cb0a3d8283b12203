package bot

import (
	"fmt"

	"github.com/ARF-DEV/caffeine_jukebox/internal/musicplayer"
	"github.com/sirupsen/logrus"
)

// eventRelay posts player events to the text channel the queue was
// started from.
type eventRelay struct {
	db *DisBot
}

var _ musicplayer.Listener = (*eventRelay)(nil)

func (e *eventRelay) PlaySong(q musicplayer.Queue, s musicplayer.Song) {
	e.db.send(q.TextChannelID, fmt.Sprintf("🎵 Now playing: **%s** — `%s`", s.Name, s.FormattedDuration()))
}

func (e *eventRelay) AddSong(q musicplayer.Queue, s musicplayer.Song) {
	e.db.send(q.TextChannelID, fmt.Sprintf("➕ Added: **%s**", s.Name))
}

func (e *eventRelay) AddList(q musicplayer.Queue, p musicplayer.Playlist) {
	e.db.send(q.TextChannelID, fmt.Sprintf("➕ Added playlist: **%s** (%d songs)", p.Name, len(p.Songs)))
}

func (e *eventRelay) Finish(q musicplayer.Queue) {
	e.db.log.WithField("guild", q.GuildID).Info("queue finished")
}

func (e *eventRelay) Empty(q musicplayer.Queue) {
	e.db.send(q.TextChannelID, "❌ Voice channel is empty, leaving...")
}

func (e *eventRelay) Error(err error, q *musicplayer.Queue, s *musicplayer.Song) {
	fields := logrus.Fields{}
	if q != nil {
		fields["guild"] = q.GuildID
	}
	if s != nil {
		fields["song"] = s.Name
	}
	e.db.log.WithFields(fields).WithError(err).Error("player error")

	if q != nil {
		e.db.send(q.TextChannelID, errorMessage(err))
	}
}
