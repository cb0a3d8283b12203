package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ARF-DEV/caffeine_jukebox/config"
	"github.com/ARF-DEV/caffeine_jukebox/internal/musicplayer"
	"github.com/ARF-DEV/caffeine_jukebox/internal/observe"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	commandTimeout = 2 * time.Minute
	maxMessageLen  = 2000

	msgJoinVoice  = "📌 You must join a voice channel first."
	msgSlowDown   = "⏳ Slow down, try again in a moment."
	msgSkipped    = "⏭️ Skipped."
	msgStopped    = "⏹️ Stopped and left the channel."
	msgPaused     = "⏸️ Paused."
	msgResumed    = "▶️ Resumed."
	msgNotPlaying = "❌ Nothing is playing."
	queueHeader   = "🎶 Queue:\n"
)

var _ Player = (*musicplayer.Manager)(nil)

func NewDisBot(session *discordgo.Session, player Player, cfg config.Config, log *logrus.Entry, metrics *observe.Metrics) *DisBot {
	db := newDisBot(session, session.State, player, cfg.Prefix, newUserLimiter(cfg.CommandRate, cfg.CommandBurst), log, metrics)
	db.session = session
	db.init()
	return db
}

func newDisBot(chat chatSender, state voiceLocator, player Player, prefix string, limiter *userLimiter, log *logrus.Entry, metrics *observe.Metrics) *DisBot {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())

	disBot := DisBot{
		chat:         chat,
		state:        state,
		player:       player,
		prefix:       prefix,
		msgCreateFns: map[ActionType]discordMsgCreateFn{},
		limiter:      limiter,
		log:          log,
		metrics:      metrics,
		ctx:          ctx,
		cancel:       cancel,
	}
	disBot.selfID.Store("")
	disBot.insertMsgCreateFn(PLAY, disBot.play)
	disBot.insertMsgCreateFn(SKIP, disBot.skip)
	disBot.insertMsgCreateFn(STOP, disBot.stop)
	disBot.insertMsgCreateFn(PAUSE, disBot.pause)
	disBot.insertMsgCreateFn(RESUME, disBot.resume)
	disBot.insertMsgCreateFn(QUEUE, disBot.printQueue)

	player.AddListener(&eventRelay{db: &disBot})
	return &disBot
}

func (db *DisBot) insertMsgCreateFn(actionType ActionType, f discordMsgCreateFn) {
	db.msgCreateFns[actionType] = f
}

func (db *DisBot) init() {
	db.session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentMessageContent
	db.session.AddHandler(db.onReady)
	db.session.AddHandler(db.onMessageCreate)
	db.session.AddHandler(db.onVoiceStateUpdate)
}

// Run keeps the gateway connection open until ctx is done, then stops
// playback in every guild before closing the session.
func (db *DisBot) Run(ctx context.Context) error {
	if err := db.Open(); err != nil {
		return err
	}
	<-ctx.Done()
	db.player.Close()
	return db.Close()
}

func (db *DisBot) Open() error {
	return errors.Wrap(db.session.Open(), "open discord session")
}

func (db *DisBot) Close() error {
	db.cancel()
	return errors.Wrap(db.session.Close(), "close discord session")
}

func (db *DisBot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	db.selfID.Store(r.User.ID)
	db.log.Infof("Logged in as %s", r.User.String())
}

func (db *DisBot) onMessageCreate(_ *discordgo.Session, msg *discordgo.MessageCreate) {
	ctx, cancel := context.WithTimeout(db.ctx, commandTimeout)
	defer cancel()
	db.handleMessage(ctx, msg)
}

func (db *DisBot) onVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.VoiceState == nil {
		return
	}
	db.checkVoiceChannel(vsu.GuildID)
}

func (db *DisBot) handleMessage(ctx context.Context, msg *discordgo.MessageCreate) {
	if msg.Message == nil || msg.Author == nil || msg.Author.Bot {
		return
	}
	cmd, ok := ParseCommand(msg.Content, db.prefix)
	if !ok {
		return
	}
	handler, found := db.msgCreateFns[cmd.Name]
	if !found {
		db.log.WithField("command", cmd.Name).Debug("unknown command")
		return
	}

	log := db.log.WithFields(logrus.Fields{
		"command": cmd.Name,
		"guild":   msg.GuildID,
		"user":    msg.Author.ID,
	})

	if cmd.Name.needsVoice() && db.authorVoiceChannel(msg) == "" {
		db.metrics.RecordCommand(ctx, string(cmd.Name), "rejected")
		db.reply(msg, msgJoinVoice)
		return
	}
	if !db.limiter.Allow(msg.Author.ID) {
		db.metrics.RecordCommand(ctx, string(cmd.Name), "limited")
		log.Debug("rate limited")
		db.reply(msg, msgSlowDown)
		return
	}

	if err := handler(ctx, msg, cmd); err != nil {
		db.metrics.RecordCommand(ctx, string(cmd.Name), "error")
		log.WithError(err).Warn("command failed")
		db.reply(msg, errorMessage(err))
		return
	}
	db.metrics.RecordCommand(ctx, string(cmd.Name), "ok")
}

// authorVoiceChannel returns the voice channel the author is connected to
// in the message's guild, or "" when there is none.
func (db *DisBot) authorVoiceChannel(msg *discordgo.MessageCreate) string {
	if msg.GuildID == "" {
		return ""
	}
	vs, err := db.state.VoiceState(msg.GuildID, msg.Author.ID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

func (db *DisBot) play(ctx context.Context, msg *discordgo.MessageCreate, cmd Command) error {
	query := strings.Join(cmd.Args, " ")
	if query == "" {
		db.reply(msg, fmt.Sprintf("Usage: `%splay <song name or link>`", db.prefix))
		return nil
	}
	return db.player.Play(ctx, musicplayer.PlayRequest{
		GuildID:        msg.GuildID,
		VoiceChannelID: db.authorVoiceChannel(msg),
		TextChannelID:  msg.ChannelID,
		Query:          query,
		RequestedBy:    msg.Author.ID,
	})
}

func (db *DisBot) skip(_ context.Context, msg *discordgo.MessageCreate, _ Command) error {
	if err := db.player.Skip(msg.GuildID); err != nil {
		return err
	}
	db.reply(msg, msgSkipped)
	return nil
}

func (db *DisBot) stop(_ context.Context, msg *discordgo.MessageCreate, _ Command) error {
	if err := db.player.Stop(msg.GuildID); err != nil {
		return err
	}
	db.reply(msg, msgStopped)
	return nil
}

func (db *DisBot) pause(_ context.Context, msg *discordgo.MessageCreate, _ Command) error {
	if err := db.player.Pause(msg.GuildID); err != nil {
		return err
	}
	db.reply(msg, msgPaused)
	return nil
}

func (db *DisBot) resume(_ context.Context, msg *discordgo.MessageCreate, _ Command) error {
	if err := db.player.Resume(msg.GuildID); err != nil {
		return err
	}
	db.reply(msg, msgResumed)
	return nil
}

func (db *DisBot) printQueue(_ context.Context, msg *discordgo.MessageCreate, _ Command) error {
	q, found := db.player.Queue(msg.GuildID)
	if !found || len(q.Songs) == 0 {
		db.reply(msg, msgNotPlaying)
		return nil
	}
	db.reply(msg, formatQueue(q))
	return nil
}

// checkVoiceChannel tells the player whether anyone other than bots is
// left in the voice channel of the guild's queue.
func (db *DisBot) checkVoiceChannel(guildID string) {
	q, found := db.player.Queue(guildID)
	if !found {
		return
	}

	g, err := db.state.Guild(guildID)
	if err != nil {
		db.log.WithError(err).WithField("guild", guildID).Debug("guild not in state")
		return
	}
	db.state.RLock()
	states := make([]discordgo.VoiceState, 0, len(g.VoiceStates))
	for _, vs := range g.VoiceStates {
		states = append(states, *vs)
	}
	db.state.RUnlock()

	listeners := 0
	for i := range states {
		if states[i].ChannelID == q.VoiceChannelID && !db.isBotUser(guildID, &states[i]) {
			listeners++
		}
	}
	db.player.VoiceChannelEmpty(guildID, q.VoiceChannelID, listeners == 0)
}

func (db *DisBot) isBotUser(guildID string, vs *discordgo.VoiceState) bool {
	if self, _ := db.selfID.Load().(string); self != "" && vs.UserID == self {
		return true
	}
	member := vs.Member
	if member == nil || member.User == nil {
		member, _ = db.state.Member(guildID, vs.UserID)
	}
	return member != nil && member.User != nil && member.User.Bot
}

func (db *DisBot) reply(msg *discordgo.MessageCreate, content string) {
	if _, err := db.chat.ChannelMessageSendReply(msg.ChannelID, content, msg.Reference()); err != nil {
		db.log.WithError(err).WithField("channel", msg.ChannelID).Warn("failed to send reply")
	}
}

func (db *DisBot) send(channelID, content string) {
	if channelID == "" {
		return
	}
	if _, err := db.chat.ChannelMessageSend(channelID, content); err != nil {
		db.log.WithError(err).WithField("channel", channelID).Warn("failed to send message")
	}
}

func errorMessage(err error) string {
	return "❌ Error: " + err.Error()
}

// formatQueue lists the queue with the playing song as "Now". Songs that
// do not fit in one Discord message are summarized in a trailing line.
func formatQueue(q musicplayer.Queue) string {
	var sb strings.Builder
	sb.WriteString(queueHeader)
	n := utf8.RuneCountInString(queueHeader)

	for i, s := range q.Songs {
		line := queueLine(i, s)
		need := utf8.RuneCountInString(line)
		if rest := len(q.Songs) - i - 1; rest > 0 {
			need += 1 + utf8.RuneCountInString(andMore(rest))
		}
		if n+need > maxMessageLen {
			sb.WriteString(andMore(len(q.Songs) - i))
			return sb.String()
		}

		sb.WriteString(line)
		n += utf8.RuneCountInString(line)
		if i < len(q.Songs)-1 {
			sb.WriteByte('\n')
			n++
		}
	}
	return sb.String()
}

func queueLine(i int, s musicplayer.Song) string {
	pos := "Now"
	if i > 0 {
		pos = strconv.Itoa(i + 1)
	}
	return fmt.Sprintf("%s. %s (%s)", pos, s.Name, s.FormattedDuration())
}

func andMore(n int) string {
	return fmt.Sprintf("…and %d more", n)
}
