package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type OpusFrame []byte
type OpusSound []OpusFrame

func (opus OpusSound) String() string {
	return fmt.Sprintf("opus_sound_len: %d", len(opus))
}

func (opus OpusSound) MarshalBinary() ([]byte, error) {
	return json.Marshal(opus)
}

// Duration is the playback length of the sound at 20ms per frame.
func (opus OpusSound) Duration() time.Duration {
	return time.Duration(len(opus)) * FrameDuration
}

// Speaker is the part of a voice connection frames are played through.
type Speaker interface {
	Speaking(b bool) error
	OpusSend() chan<- []byte
}

// Gate blocks playback while paused.
type Gate struct {
	mx     sync.Mutex
	paused bool
	resume chan struct{}
}

func NewGate() *Gate {
	return &Gate{resume: make(chan struct{})}
}

// Pause reports false when the gate was already paused.
func (g *Gate) Pause() bool {
	g.mx.Lock()
	defer g.mx.Unlock()
	if g.paused {
		return false
	}
	g.paused = true
	g.resume = make(chan struct{})
	return true
}

// Resume reports false when the gate was not paused.
func (g *Gate) Resume() bool {
	g.mx.Lock()
	defer g.mx.Unlock()
	if !g.paused {
		return false
	}
	g.paused = false
	close(g.resume)
	return true
}

func (g *Gate) Paused() bool {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.paused
}

// Wait returns once the gate is open or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mx.Lock()
	paused, resume := g.paused, g.resume
	g.mx.Unlock()
	if !paused {
		return nil
	}
	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PlayToVC sends frames to vc until frames is closed or ctx is done. The
// speaking flag is raised for the whole duration, padded by delay on both
// sides.
func PlayToVC(ctx context.Context, vc Speaker, frames <-chan OpusFrame, gate *Gate, delay time.Duration) (err error) {
	if err = vc.Speaking(true); err != nil {
		return err
	}
	defer func() {
		time.Sleep(delay)
		if serr := vc.Speaking(false); err == nil && ctx.Err() == nil {
			err = serr
		}
	}()
	time.Sleep(delay)

	out := vc.OpusSend()
	for {
		if gate != nil {
			if werr := gate.Wait(ctx); werr != nil {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
