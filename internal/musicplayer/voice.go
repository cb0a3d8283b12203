package musicplayer

import (
	"context"

	"github.com/ARF-DEV/caffeine_jukebox/internal/audio"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

type VoiceConn interface {
	audio.Speaker
	Disconnect() error
}

type VoiceJoiner interface {
	JoinVoice(ctx context.Context, guildID, channelID string) (VoiceConn, error)
}

// SessionJoiner joins voice channels through a discordgo session, muted is
// false and deafened is true.
type SessionJoiner struct {
	Session *discordgo.Session
}

func (j SessionJoiner) JoinVoice(ctx context.Context, guildID, channelID string) (VoiceConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := j.Session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, errors.Wrapf(err, "join %s/%s", guildID, channelID)
	}
	return discordVoice{vc: vc}, nil
}

type discordVoice struct {
	vc *discordgo.VoiceConnection
}

func (d discordVoice) Speaking(b bool) error    { return d.vc.Speaking(b) }
func (d discordVoice) OpusSend() chan<- []byte { return d.vc.OpusSend }
func (d discordVoice) Disconnect() error        { return d.vc.Disconnect() }
