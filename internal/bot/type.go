package bot

import (
	"context"
	"sync/atomic"

	"github.com/ARF-DEV/caffeine_jukebox/internal/musicplayer"
	"github.com/ARF-DEV/caffeine_jukebox/internal/observe"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

type (
	DisBot struct {
		session *discordgo.Session
		chat    chatSender
		state   voiceLocator
		player  Player

		prefix       string
		msgCreateFns map[ActionType]discordMsgCreateFn
		limiter      *userLimiter
		selfID       atomic.Value

		log     *logrus.Entry
		metrics *observe.Metrics

		ctx    context.Context
		cancel context.CancelFunc
	}

	discordMsgCreateFn func(ctx context.Context, msg *discordgo.MessageCreate, cmd Command) error
	ActionType         string

	// Player is the playback queue manager as seen by the command handlers.
	Player interface {
		Play(ctx context.Context, req musicplayer.PlayRequest) error
		Skip(guildID string) error
		Stop(guildID string) error
		Pause(guildID string) error
		Resume(guildID string) error
		Queue(guildID string) (musicplayer.Queue, bool)
		VoiceChannelEmpty(guildID, channelID string, empty bool)
		AddListener(l musicplayer.Listener)
		Close()
	}

	chatSender interface {
		ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
		ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	}

	// voiceLocator is satisfied by *discordgo.State. RLock guards the
	// slices of guilds it returns.
	voiceLocator interface {
		RLock()
		RUnlock()
		VoiceState(guildID, userID string) (*discordgo.VoiceState, error)
		Guild(guildID string) (*discordgo.Guild, error)
		Member(guildID, userID string) (*discordgo.Member, error)
	}
)

const (
	PLAY   ActionType = "play"
	SKIP   ActionType = "skip"
	STOP   ActionType = "stop"
	PAUSE  ActionType = "pause"
	RESUME ActionType = "resume"
	QUEUE  ActionType = "queue"
)

// needsVoice reports whether the author must be in a voice channel to run
// the command.
func (a ActionType) needsVoice() bool {
	switch a {
	case PLAY, SKIP, STOP, PAUSE, RESUME:
		return true
	}
	return false
}
