// Package playback drives local playback of synthesized MP3 audio.
//
// The [Controller] owns at most one playback cycle at a time: a scoped
// temporary file holding the MP3 bytes, a decoder reading from it and an
// output stream on the audio device. Releasing the controller tears all
// three down.
package playback

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"github.com/hammamikhairi/vicvoix/internal/logger"
)

// go-mp3 always produces interleaved stereo signed 16-bit little-endian.
const (
	channelCount  = 2
	bytesPerFrame = channelCount * 2
)

// Stream is an output stream on the audio device. *oto.Player satisfies it.
type Stream interface {
	Play()
	Pause()
	IsPlaying() bool
	Seek(offset int64, whence int) (int64, error)
	BufferedSize() int
	Err() error
	Close() error
}

// Device opens output streams reading PCM from src.
type Device interface {
	Open(sampleRate int, src io.ReadSeeker) (Stream, error)
}

// Decoded is a PCM stream decoded from MP3. *mp3.Decoder satisfies it.
type Decoded interface {
	io.ReadSeeker
	SampleRate() int
	Length() int64
}

// DecodeFunc turns an encoded source into PCM.
type DecodeFunc func(src io.ReadSeeker) (Decoded, error)

// DecodeMP3 decodes MP3 with go-mp3.
func DecodeMP3(src io.ReadSeeker) (Decoded, error) {
	d, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, fmt.Errorf("decoding mp3: %w", err)
	}
	return d, nil
}

// OtoDevice plays PCM through the system audio output via oto. oto allows
// a single context per process, so the sample rate is fixed at creation.
// The context is created on first use.
type OtoDevice struct {
	sampleRate int
	log        *logger.Logger

	once    sync.Once
	ctx     *oto.Context
	initErr error
}

// NewOtoDevice returns a device running at sampleRate.
func NewOtoDevice(sampleRate int, log *logger.Logger) *OtoDevice {
	return &OtoDevice{sampleRate: sampleRate, log: log}
}

// Init opens the system audio context. Returns an error if the audio
// device is unavailable. Safe to call repeatedly.
func (d *OtoDevice) Init() error {
	d.once.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   d.sampleRate,
			ChannelCount: channelCount,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			d.initErr = err
			return
		}
		<-readyChan
		d.ctx = ctx
		d.log.Debug("audio device initialized (rate=%d, channels=%d)", d.sampleRate, channelCount)
	})
	return d.initErr
}

// Open creates a player for src. The decoded rate must match the device.
func (d *OtoDevice) Open(sampleRate int, src io.ReadSeeker) (Stream, error) {
	if sampleRate != d.sampleRate {
		return nil, fmt.Errorf("audio is %d Hz, device runs at %d Hz", sampleRate, d.sampleRate)
	}
	if err := d.Init(); err != nil {
		return nil, fmt.Errorf("audio device: %w", err)
	}
	return d.ctx.NewPlayer(src), nil
}

// ErrNoDevice is returned by NoDevice.
var ErrNoDevice = errors.New("no audio device")

// NoDevice stands in when the audio output could not be initialized, so
// every load fails with a playback error instead of crashing.
type NoDevice struct{}

// Open always fails.
func (NoDevice) Open(int, io.ReadSeeker) (Stream, error) { return nil, ErrNoDevice }
