package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os/exec"
	"time"

	"github.com/hraban/opus"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	audioChannels  = 2
	audioFrameRate = 48000
	audioFrameSize = 960
	maxFrameBytes  = 1000

	FrameDuration = 20 * time.Millisecond
)

// PCMEncoder turns one interleaved PCM frame into an Opus packet.
// *opus.Encoder satisfies it.
type PCMEncoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

type Transcoder struct {
	YtDlpPath  string
	FFmpegPath string
	// Bitrate in kbps.
	Bitrate int
	Log     *logrus.Entry
}

// Encode pipes url through yt-dlp and ffmpeg and hands every encoded frame
// to emit. It stops early when ctx is done or emit fails.
func (t *Transcoder) Encode(ctx context.Context, url string, emit func(OpusFrame) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := t.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("url", url)

	ytDlp := exec.CommandContext(ctx, t.YtDlpPath, "-q", "-f", "bestaudio/best", "-o", "-", url)
	ffmpeg := exec.CommandContext(ctx, t.FFmpegPath,
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"pipe:1",
	)

	ytDlpErr := log.WithField("proc", "yt-dlp").WriterLevel(logrus.DebugLevel)
	defer ytDlpErr.Close()
	ffmpegErr := log.WithField("proc", "ffmpeg").WriterLevel(logrus.DebugLevel)
	defer ffmpegErr.Close()
	ytDlp.Stderr = ytDlpErr
	ffmpeg.Stderr = ffmpegErr

	ytDlpOut, err := ytDlp.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "yt-dlp stdout")
	}
	ffmpeg.Stdin = ytDlpOut

	ffmpegOut, err := ffmpeg.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "ffmpeg stdout")
	}

	if err = ffmpeg.Start(); err != nil {
		return errors.Wrap(err, "start ffmpeg")
	}
	if err = ytDlp.Start(); err != nil {
		cancel()
		_ = ffmpeg.Wait()
		return errors.Wrap(err, "start yt-dlp")
	}

	opusEncoder, err := opus.NewEncoder(audioFrameRate, audioChannels, opus.AppAudio)
	if err == nil && t.Bitrate > 0 {
		err = opusEncoder.SetBitrate(t.Bitrate * 1000)
	}
	if err != nil {
		cancel()
		_ = ffmpeg.Wait()
		_ = ytDlp.Wait()
		return errors.Wrap(err, "opus encoder")
	}

	encErr := EncodePCM(ffmpegOut, opusEncoder, emit)
	if encErr != nil {
		// unblock the pipeline so Wait can return
		cancel()
	}
	ffmpegWaitErr := ffmpeg.Wait()
	ytDlpWaitErr := ytDlp.Wait()

	switch {
	case encErr != nil:
		return encErr
	case ctx.Err() != nil:
		return ctx.Err()
	case ytDlpWaitErr != nil:
		return errors.Wrap(ytDlpWaitErr, "yt-dlp")
	case ffmpegWaitErr != nil:
		return errors.Wrap(ffmpegWaitErr, "ffmpeg")
	}
	log.Debug("transcode finished")
	return nil
}

// EncodePCM reads 16 bit little endian stereo PCM from r until EOF. A trailing
// partial frame is dropped.
func EncodePCM(r io.Reader, enc PCMEncoder, emit func(OpusFrame) error) error {
	br := bufio.NewReaderSize(r, 16000)
	buf := make([]int16, audioChannels*audioFrameSize)
	for {
		if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return errors.Wrap(err, "read pcm")
		}

		packet := make([]byte, maxFrameBytes)
		n, err := enc.Encode(buf, packet)
		if err != nil {
			return errors.Wrap(err, "encode opus")
		}
		if err = emit(packet[:n]); err != nil {
			return err
		}
	}
}
