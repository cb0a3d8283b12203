package musicplayer

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ARF-DEV/caffeine_jukebox/internal/audio"
	"github.com/ARF-DEV/caffeine_jukebox/internal/observe"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultFrameBuffer   = 50
	defaultSpeakingDelay = 200 * time.Millisecond
)

type Options struct {
	Joiner   VoiceJoiner
	Resolver Resolver
	Source   FrameSource

	// EmptyCooldown is how long a queue survives in an empty voice channel.
	EmptyCooldown time.Duration
	// SpeakingDelay pads the speaking flag around every song. Zero uses
	// the default; negative disables it.
	SpeakingDelay time.Duration
	FrameBuffer   int

	Metrics *observe.Metrics
	Log     *logrus.Entry
}

// MusicPlayerStream is the playback state of one guild. Fields other than
// gate are guarded by Manager.mx.
type MusicPlayerStream struct {
	guildID        string
	voiceChannelID string
	textChannelID  string

	vc    VoiceConn
	queue []Song
	gate  *audio.Gate

	ctx    context.Context
	cancel context.CancelFunc
	skip   context.CancelFunc
	closed bool
	// skipPending records a skip that arrived between two songs.
	skipPending bool

	emptyTimer *time.Timer
	emptyGen   int
}

func (mps *MusicPlayerStream) snapshot() Queue {
	return Queue{
		GuildID:        mps.guildID,
		VoiceChannelID: mps.voiceChannelID,
		TextChannelID:  mps.textChannelID,
		Songs:          slices.Clone(mps.queue),
		Paused:         mps.gate.Paused(),
	}
}

type guildLock struct {
	mx   sync.Mutex
	refs int
}

// Manager owns one MusicPlayerStream per guild.
type Manager struct {
	// Guild locks serialize creating and tearing down the stream of one
	// guild so a voice connection is never released after a new stream
	// picked it up. Lock order is guild lock, then mx.
	glmx       sync.Mutex
	guildLocks map[string]*guildLock

	mx     *sync.Mutex
	mpMap  map[string]*MusicPlayerStream
	closed bool

	lmx       sync.RWMutex
	listeners []Listener

	joiner        VoiceJoiner
	resolver      Resolver
	source        FrameSource
	emptyCooldown time.Duration
	speakingDelay time.Duration
	frameBuffer   int

	metrics *observe.Metrics
	log     *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := Manager{
		guildLocks:    map[string]*guildLock{},
		mx:            &sync.Mutex{},
		mpMap:         map[string]*MusicPlayerStream{},
		joiner:        opts.Joiner,
		resolver:      opts.Resolver,
		source:        opts.Source,
		emptyCooldown: opts.EmptyCooldown,
		speakingDelay: opts.SpeakingDelay,
		frameBuffer:   opts.FrameBuffer,
		metrics:       opts.Metrics,
		log:           opts.Log,
		ctx:           ctx,
		cancel:        cancel,
	}
	if m.speakingDelay == 0 {
		m.speakingDelay = defaultSpeakingDelay
	} else if m.speakingDelay < 0 {
		m.speakingDelay = 0
	}
	if m.frameBuffer <= 0 {
		m.frameBuffer = defaultFrameBuffer
	}
	if m.log == nil {
		m.log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &m
}

func (m *Manager) AddListener(l Listener) {
	m.lmx.Lock()
	m.listeners = append(m.listeners, l)
	m.lmx.Unlock()
}

// Play resolves req.Query and queues the result, joining the voice channel
// and starting playback when the guild has no queue yet.
func (m *Manager) Play(ctx context.Context, req PlayRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	if req.GuildID == "" || req.VoiceChannelID == "" {
		return errors.New("a guild voice channel is required to play")
	}
	if m.isClosed() {
		return ErrClosed
	}

	res, err := m.resolver.Resolve(ctx, req.Query)
	if err != nil {
		return err
	}
	if len(res.Songs) == 0 {
		return ErrNoResult
	}
	for i := range res.Songs {
		res.Songs[i].RequestedBy = req.RequestedBy
	}
	if res.Playlist != nil {
		res.Playlist.Songs = res.Songs
	}

	unlock := m.lockGuild(req.GuildID)
	m.mx.Lock()
	if m.closed {
		m.mx.Unlock()
		unlock()
		return ErrClosed
	}
	mps, found := m.mpMap[req.GuildID]
	if found {
		mps.queue = append(mps.queue, res.Songs...)
		q := mps.snapshot()
		m.mx.Unlock()
		unlock()

		if res.Playlist != nil {
			m.emitAddList(q, *res.Playlist)
		} else {
			m.emitAddSong(q, res.Songs[0])
		}
		return nil
	}
	m.mx.Unlock()

	vc, err := m.joiner.JoinVoice(ctx, req.GuildID, req.VoiceChannelID)
	if err != nil {
		unlock()
		return errors.Wrap(err, "join voice channel")
	}

	mps = m.newStream(req, vc, res.Songs)
	m.mx.Lock()
	if m.closed {
		m.mx.Unlock()
		mps.cancel()
		if err := vc.Disconnect(); err != nil {
			m.log.WithError(err).WithField("guild", req.GuildID).Warn("voice disconnect failed")
		}
		unlock()
		return ErrClosed
	}
	m.mpMap[req.GuildID] = mps
	q := mps.snapshot()
	m.mx.Unlock()
	unlock()

	m.metrics.QueueOpened(ctx)
	m.log.WithFields(logrus.Fields{
		"guild":   req.GuildID,
		"channel": req.VoiceChannelID,
		"songs":   len(res.Songs),
	}).Info("queue created")

	if res.Playlist != nil {
		m.emitAddList(q, *res.Playlist)
	}
	go m.runplayer(mps)
	return nil
}

func (m *Manager) newStream(req PlayRequest, vc VoiceConn, songs []Song) *MusicPlayerStream {
	ctx, cancel := context.WithCancel(m.ctx)
	return &MusicPlayerStream{
		guildID:        req.GuildID,
		voiceChannelID: req.VoiceChannelID,
		textChannelID:  req.TextChannelID,
		vc:             vc,
		queue:          slices.Clone(songs),
		gate:           audio.NewGate(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Skip ends the current song. Skipping a paused queue resumes it.
func (m *Manager) Skip(guildID string) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	mps, found := m.mpMap[guildID]
	if !found {
		return ErrNoQueue
	}
	if len(mps.queue) < 2 {
		return ErrNoUpNext
	}
	if mps.skip != nil {
		mps.skip()
	} else {
		mps.skipPending = true
	}
	return nil
}

// Stop clears the queue and leaves the voice channel.
func (m *Manager) Stop(guildID string) error {
	unlock := m.lockGuild(guildID)
	defer unlock()

	m.mx.Lock()
	mps, found := m.mpMap[guildID]
	if found {
		m.detachLocked(mps)
	}
	m.mx.Unlock()

	if !found {
		return ErrNoQueue
	}
	m.release(mps)
	m.log.WithField("guild", guildID).Info("queue stopped")
	return nil
}

func (m *Manager) Pause(guildID string) error {
	mps, err := m.stream(guildID)
	if err != nil {
		return err
	}
	if !mps.gate.Pause() {
		return ErrAlreadyPaused
	}
	return nil
}

func (m *Manager) Resume(guildID string) error {
	mps, err := m.stream(guildID)
	if err != nil {
		return err
	}
	if !mps.gate.Resume() {
		return ErrNotPaused
	}
	return nil
}

func (m *Manager) Queue(guildID string) (Queue, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()

	mps, found := m.mpMap[guildID]
	if !found {
		return Queue{}, false
	}
	return mps.snapshot(), true
}

// VoiceChannelEmpty reports whether the voice channel a guild's queue plays
// in has listeners left. An empty channel starts the empty cooldown and a
// non-empty one cancels it.
func (m *Manager) VoiceChannelEmpty(guildID, channelID string, empty bool) {
	m.mx.Lock()
	defer m.mx.Unlock()

	mps, found := m.mpMap[guildID]
	if !found || mps.voiceChannelID != channelID {
		return
	}

	if !empty {
		if mps.emptyTimer != nil {
			mps.emptyTimer.Stop()
			mps.emptyTimer = nil
			mps.emptyGen++
		}
		return
	}
	if mps.emptyTimer != nil {
		return
	}

	mps.emptyGen++
	gen := mps.emptyGen
	mps.emptyTimer = time.AfterFunc(m.emptyCooldown, func() {
		m.leaveEmpty(mps, gen)
	})
}

func (m *Manager) leaveEmpty(mps *MusicPlayerStream, gen int) {
	unlock := m.lockGuild(mps.guildID)
	m.mx.Lock()
	if mps.closed || mps.emptyGen != gen {
		m.mx.Unlock()
		unlock()
		return
	}
	q := mps.snapshot()
	m.detachLocked(mps)
	m.mx.Unlock()
	m.release(mps)
	unlock()

	m.log.WithField("guild", mps.guildID).Info("voice channel empty, leaving")
	m.emitEmpty(q)
}

// Close stops every queue. Play fails with ErrClosed afterwards.
func (m *Manager) Close() {
	m.mx.Lock()
	m.closed = true
	guilds := make([]string, 0, len(m.mpMap))
	for guildID := range m.mpMap {
		guilds = append(guilds, guildID)
	}
	m.mx.Unlock()

	for _, guildID := range guilds {
		unlock := m.lockGuild(guildID)
		m.mx.Lock()
		mps, found := m.mpMap[guildID]
		detached := found && m.detachLocked(mps)
		m.mx.Unlock()
		if detached {
			m.release(mps)
		}
		unlock()
	}
	m.cancel()
}

func (m *Manager) isClosed() bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.closed
}

// lockGuild acquires the lifecycle lock of one guild and returns its
// release func. Entries are dropped once nobody holds or waits on them.
func (m *Manager) lockGuild(guildID string) func() {
	m.glmx.Lock()
	gl, found := m.guildLocks[guildID]
	if !found {
		gl = &guildLock{}
		m.guildLocks[guildID] = gl
	}
	gl.refs++
	m.glmx.Unlock()

	gl.mx.Lock()
	return func() {
		gl.mx.Unlock()

		m.glmx.Lock()
		gl.refs--
		if gl.refs == 0 {
			delete(m.guildLocks, guildID)
		}
		m.glmx.Unlock()
	}
}

func (m *Manager) stream(guildID string) (*MusicPlayerStream, error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	mps, found := m.mpMap[guildID]
	if !found {
		return nil, ErrNoQueue
	}
	return mps, nil
}

// detachLocked marks mps closed and removes it from the map. It reports
// false when mps was already closed. Callers hold mx.
func (m *Manager) detachLocked(mps *MusicPlayerStream) bool {
	if mps.closed {
		return false
	}
	mps.closed = true
	if cur, found := m.mpMap[mps.guildID]; found && cur == mps {
		delete(m.mpMap, mps.guildID)
	}
	if mps.emptyTimer != nil {
		mps.emptyTimer.Stop()
		mps.emptyTimer = nil
	}
	mps.cancel()
	return true
}

// release leaves the voice channel of a detached stream. Callers hold the
// guild lock.
func (m *Manager) release(mps *MusicPlayerStream) {
	if err := mps.vc.Disconnect(); err != nil {
		m.log.WithError(err).WithField("guild", mps.guildID).Warn("voice disconnect failed")
	}
	m.metrics.QueueClosed(context.Background())
}

func (m *Manager) runplayer(mps *MusicPlayerStream) {
	log := m.log.WithField("guild", mps.guildID)

	for {
		m.mx.Lock()
		if mps.closed || len(mps.queue) == 0 {
			m.mx.Unlock()
			return
		}
		if mps.skipPending {
			mps.skipPending = false
			if len(mps.queue) > 1 {
				mps.queue = mps.queue[1:]
			}
			mps.gate.Resume()
		}
		curMusic := mps.queue[0]
		songCtx, skip := context.WithCancel(mps.ctx)
		mps.skip = skip
		q := mps.snapshot()
		m.mx.Unlock()

		log.WithField("song", curMusic.Name).Info("playing")
		m.emitPlaySong(q, curMusic)

		err := m.playSong(songCtx, mps, curMusic)
		interrupted := songCtx.Err() != nil
		skip()

		if err != nil && !interrupted {
			log.WithError(err).WithField("song", curMusic.Name).Warn("playback failed")
			m.emitError(err, &q, &curMusic)
		}

		unlock := m.lockGuild(mps.guildID)
		m.mx.Lock()
		if mps.closed {
			m.mx.Unlock()
			unlock()
			return
		}
		mps.queue = mps.queue[1:]
		mps.skip = nil
		mps.gate.Resume()

		finished := len(mps.queue) == 0
		var last Queue
		if finished {
			last = mps.snapshot()
			m.detachLocked(mps)
		}
		m.mx.Unlock()
		if finished {
			m.release(mps)
		}
		unlock()

		if finished {
			log.Info("queue finished")
			m.emitFinish(last)
			return
		}
	}
}

func (m *Manager) playSong(ctx context.Context, mps *MusicPlayerStream, song Song) error {
	frames := make(chan audio.OpusFrame, m.frameBuffer)
	errc := make(chan error, 1)
	go func() {
		defer close(frames)
		errc <- m.source.Stream(ctx, song, frames)
	}()

	if err := audio.PlayToVC(ctx, mps.vc, frames, mps.gate, m.speakingDelay); err != nil {
		return errors.Wrap(err, "voice")
	}
	if ctx.Err() != nil {
		return nil
	}
	return <-errc
}

func (m *Manager) listenerList() []Listener {
	m.lmx.RLock()
	defer m.lmx.RUnlock()
	return slices.Clone(m.listeners)
}

func (m *Manager) emitPlaySong(q Queue, s Song) {
	m.metrics.RecordPlayerEvent(context.Background(), "playSong")
	for _, l := range m.listenerList() {
		l.PlaySong(q, s)
	}
}

func (m *Manager) emitAddSong(q Queue, s Song) {
	m.metrics.RecordPlayerEvent(context.Background(), "addSong")
	for _, l := range m.listenerList() {
		l.AddSong(q, s)
	}
}

func (m *Manager) emitAddList(q Queue, p Playlist) {
	m.metrics.RecordPlayerEvent(context.Background(), "addList")
	for _, l := range m.listenerList() {
		l.AddList(q, p)
	}
}

func (m *Manager) emitFinish(q Queue) {
	m.metrics.RecordPlayerEvent(context.Background(), "finish")
	for _, l := range m.listenerList() {
		l.Finish(q)
	}
}

func (m *Manager) emitEmpty(q Queue) {
	m.metrics.RecordPlayerEvent(context.Background(), "empty")
	for _, l := range m.listenerList() {
		l.Empty(q)
	}
}

func (m *Manager) emitError(err error, q *Queue, s *Song) {
	m.metrics.RecordPlayerEvent(context.Background(), "error")
	for _, l := range m.listenerList() {
		l.Error(err, q, s)
	}
}
