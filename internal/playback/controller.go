package playback

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/logger"
)

// Compile-time interface check.
var _ domain.Player = (*Controller)(nil)

// Option configures the Controller.
type Option func(*Controller)

// WithReportInterval sets how often position is reported while playing.
func WithReportInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.reportEvery = d
		}
	}
}

// WithPollInterval sets how often the stream is checked for completion.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollEvery = d
		}
	}
}

// WithTempDir sets the directory for per-cycle temporary files.
func WithTempDir(dir string) Option {
	return func(c *Controller) { c.tempDir = dir }
}

// WithDecoder replaces the MP3 decoder.
func WithDecoder(fn DecodeFunc) Option {
	return func(c *Controller) { c.decode = fn }
}

// WithStateHook registers a callback for every state transition.
func WithStateHook(fn func(domain.PlaybackState)) Option {
	return func(c *Controller) { c.onState = fn }
}

// WithProgressHook registers the periodic position callback.
func WithProgressHook(fn func(pos, total time.Duration)) Option {
	return func(c *Controller) { c.onProgress = fn }
}

// WithCompleteHook registers a callback fired when audio plays to the end.
func WithCompleteHook(fn func()) Option {
	return func(c *Controller) { c.onComplete = fn }
}

// WithErrorHook registers a callback for asynchronous playback failures.
func WithErrorHook(fn func(error)) Option {
	return func(c *Controller) { c.onError = fn }
}

// Controller plays one audio buffer at a time.
//
//	Idle -> Preparing -> Playing <-> Paused
//	Playing -> Completed -> Idle
//	any -> Idle on Release
//
// Hooks are invoked outside the controller's lock and may call back into it.
type Controller struct {
	device      Device
	decode      DecodeFunc
	log         *logger.Logger
	tempDir     string
	reportEvery time.Duration
	pollEvery   time.Duration

	onState    func(domain.PlaybackState)
	onProgress func(pos, total time.Duration)
	onComplete func()
	onError    func(error)

	mu    sync.Mutex
	state domain.PlaybackState
	cur   *cycle
}

// cycle is everything owned by one load: released together.
type cycle struct {
	file        *os.File
	src         *trackingReader
	stream      Stream
	bytesPerSec int64
	length      int64
	run         chan struct{} // closed to stop the monitor, nil when none runs
	closeOnce   sync.Once
}

// NewController creates a playback controller on the given device.
func NewController(device Device, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		device:      device,
		decode:      DecodeMP3,
		log:         log.With("playback"),
		reportEvery: time.Second,
		pollEvery:   20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current playback state.
func (c *Controller) State() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load releases any previous cycle, stores audio in a temporary file and
// starts preparing playback in the background. Preparation failures are
// reported through the error hook and leave the controller Idle.
func (c *Controller) Load(audio []byte) error {
	if len(audio) == 0 {
		c.Release()
		return fmt.Errorf("%w: no audio", domain.ErrPlayback)
	}

	f, err := os.CreateTemp(c.tempDir, "vicvoix-*.mp3")
	if err != nil {
		c.Release()
		return fmt.Errorf("%w: creating temp file: %v", domain.ErrPlayback, err)
	}
	cyc := &cycle{file: f}
	if _, err := f.Write(audio); err != nil {
		cyc.close()
		c.Release()
		return fmt.Errorf("%w: writing temp file: %v", domain.ErrPlayback, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		cyc.close()
		c.Release()
		return fmt.Errorf("%w: rewinding temp file: %v", domain.ErrPlayback, err)
	}

	c.mu.Lock()
	old := c.detachLocked()
	c.cur = cyc
	c.state = domain.PlaybackPreparing
	c.mu.Unlock()

	if old != nil {
		old.close()
	}
	c.log.Debug("loaded %d bytes into %s", len(audio), f.Name())
	c.emitState(domain.PlaybackPreparing)

	go c.prepare(cyc)
	return nil
}

// prepare decodes the temp file and opens the output stream.
func (c *Controller) prepare(cyc *cycle) {
	var (
		src    *trackingReader
		stream Stream
		rate   int
		length int64
	)
	dec, err := c.decode(cyc.file)
	if err == nil {
		rate = dec.SampleRate()
		length = dec.Length()
		if rate <= 0 {
			err = fmt.Errorf("invalid sample rate %d", rate)
		}
	}
	if err == nil {
		src = &trackingReader{r: dec}
		stream, err = c.device.Open(rate, src)
	}

	c.mu.Lock()
	if c.cur != cyc {
		// Released while preparing.
		c.mu.Unlock()
		if stream != nil {
			stream.Close()
		}
		return
	}
	if err != nil {
		c.cur = nil
		c.state = domain.PlaybackIdle
		c.mu.Unlock()

		cyc.close()
		c.log.Error("prepare failed: %v", err)
		c.emitState(domain.PlaybackIdle)
		c.emitError(fmt.Errorf("%w: %v", domain.ErrPlayback, err))
		return
	}

	cyc.src = src
	cyc.stream = stream
	cyc.bytesPerSec = int64(rate) * bytesPerFrame
	cyc.length = length
	stream.Play()
	c.state = domain.PlaybackPlaying
	c.startMonitorLocked(cyc)
	c.mu.Unlock()

	c.log.Debug("playing (rate=%d, length=%s)", rate, cyc.duration())
	c.emitState(domain.PlaybackPlaying)
}

// Pause suspends playback. Only valid while Playing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != domain.PlaybackPlaying {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot pause while %s", domain.ErrInvalidState, st)
	}
	c.cur.stream.Pause()
	c.cur.stopMonitor()
	c.state = domain.PlaybackPaused
	c.mu.Unlock()

	c.emitState(domain.PlaybackPaused)
	return nil
}

// Resume continues playback. Only valid while Paused.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != domain.PlaybackPaused {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot resume while %s", domain.ErrInvalidState, st)
	}
	c.cur.stream.Play()
	c.state = domain.PlaybackPlaying
	c.startMonitorLocked(c.cur)
	c.mu.Unlock()

	c.emitState(domain.PlaybackPlaying)
	return nil
}

// Toggle pauses when playing and resumes when paused.
func (c *Controller) Toggle() error {
	if c.State() == domain.PlaybackPaused {
		return c.Resume()
	}
	return c.Pause()
}

// Seek moves to position, clamped to the audio length. Only valid while
// Playing or Paused.
func (c *Controller) Seek(position time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.PlaybackPlaying && c.state != domain.PlaybackPaused {
		return fmt.Errorf("%w: cannot seek while %s", domain.ErrInvalidState, c.state)
	}
	cyc := c.cur
	if position < 0 {
		position = 0
	}
	if total := cyc.duration(); total > 0 && position > total {
		position = total
	}

	offset := int64(position.Seconds() * float64(cyc.bytesPerSec))
	offset -= offset % bytesPerFrame
	if _, err := cyc.stream.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek: %v", domain.ErrPlayback, err)
	}
	c.log.Debug("seek to %s", position.Round(time.Millisecond))
	return nil
}

// Position returns the current position and total length. Both are zero
// when nothing is loaded or the length is unknown.
func (c *Controller) Position() (pos, total time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || c.cur.stream == nil {
		return 0, 0
	}
	return c.cur.position(), c.cur.duration()
}

// Release stops playback and frees the stream, decoder and temp file.
// Idempotent and safe from any state.
func (c *Controller) Release() {
	c.mu.Lock()
	old := c.detachLocked()
	prev := c.state
	c.state = domain.PlaybackIdle
	c.mu.Unlock()

	if old != nil {
		old.close()
		c.log.Debug("released")
	}
	if prev != domain.PlaybackIdle {
		c.emitState(domain.PlaybackIdle)
	}
}

// Stop is an alias for Release.
func (c *Controller) Stop() { c.Release() }

// detachLocked unhooks the current cycle and stops its monitor.
// Must be called with c.mu held.
func (c *Controller) detachLocked() *cycle {
	cyc := c.cur
	if cyc != nil {
		cyc.stopMonitor()
		c.cur = nil
	}
	return cyc
}

// ── Monitoring ───────────────────────────────────────────────────

// startMonitorLocked launches the position reporter and completion check.
// It runs only while Playing. Must be called with c.mu held.
func (c *Controller) startMonitorLocked(cyc *cycle) {
	stop := make(chan struct{})
	cyc.run = stop
	go c.monitor(cyc, stop)
}

func (c *Controller) monitor(cyc *cycle, stop chan struct{}) {
	report := time.NewTicker(c.reportEvery)
	defer report.Stop()
	poll := time.NewTicker(c.pollEvery)
	defer poll.Stop()

	for {
		select {
		case <-stop:
			return
		case <-poll.C:
			if c.checkFinished(cyc, stop) {
				return
			}
		case <-report.C:
			c.mu.Lock()
			live := c.cur == cyc && cyc.run == stop && c.state == domain.PlaybackPlaying
			var pos, total time.Duration
			if live {
				pos, total = cyc.position(), cyc.duration()
			}
			c.mu.Unlock()
			if live && c.onProgress != nil {
				c.onProgress(pos, total)
			}
		}
	}
}

// checkFinished moves a drained stream to Completed, then tears the cycle
// down and returns to Idle. Reports whether the monitor should exit.
func (c *Controller) checkFinished(cyc *cycle, stop chan struct{}) bool {
	c.mu.Lock()
	if c.cur != cyc || cyc.run != stop {
		c.mu.Unlock()
		return true
	}
	if c.state != domain.PlaybackPlaying || cyc.stream.IsPlaying() {
		c.mu.Unlock()
		return false
	}
	streamErr := cyc.stream.Err()
	cyc.stopMonitor()
	c.state = domain.PlaybackCompleted
	c.mu.Unlock()

	c.emitState(domain.PlaybackCompleted)
	if streamErr != nil {
		c.emitError(fmt.Errorf("%w: %v", domain.ErrPlayback, streamErr))
	}
	if c.onComplete != nil {
		c.onComplete()
	}

	c.mu.Lock()
	idle := false
	if c.cur == cyc {
		c.cur = nil
		c.state = domain.PlaybackIdle
		idle = true
	}
	c.mu.Unlock()

	cyc.close()
	if idle {
		c.emitState(domain.PlaybackIdle)
	}
	c.log.Debug("playback completed")
	return true
}

func (c *Controller) emitState(s domain.PlaybackState) {
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Controller) emitError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

// ── cycle helpers ────────────────────────────────────────────────

func (cyc *cycle) stopMonitor() {
	if cyc.run != nil {
		close(cyc.run)
		cyc.run = nil
	}
}

func (cyc *cycle) position() time.Duration {
	if cyc.src == nil || cyc.bytesPerSec == 0 {
		return 0
	}
	played := cyc.src.Offset() - int64(cyc.stream.BufferedSize())
	if played < 0 {
		played = 0
	}
	return time.Duration(float64(played) / float64(cyc.bytesPerSec) * float64(time.Second))
}

func (cyc *cycle) duration() time.Duration {
	if cyc.length <= 0 || cyc.bytesPerSec == 0 {
		return 0
	}
	return time.Duration(float64(cyc.length) / float64(cyc.bytesPerSec) * float64(time.Second))
}

func (cyc *cycle) close() {
	cyc.closeOnce.Do(func() {
		if cyc.stream != nil {
			cyc.stream.Pause()
			cyc.stream.Close()
		}
		name := cyc.file.Name()
		cyc.file.Close()
		os.Remove(name)
	})
}

// trackingReader counts how far the device has read into the PCM stream.
type trackingReader struct {
	r      io.ReadSeeker
	offset atomic.Int64
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.offset.Add(int64(n))
	return n, err
}

func (t *trackingReader) Seek(offset int64, whence int) (int64, error) {
	n, err := t.r.Seek(offset, whence)
	if err == nil {
		t.offset.Store(n)
	}
	return n, err
}

// Offset returns the number of PCM bytes consumed so far.
func (t *trackingReader) Offset() int64 { return t.offset.Load() }
