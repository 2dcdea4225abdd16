// Package session implements the form's state machine: loading voices,
// holding the chosen parameters and running one generate, play or save
// operation at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/export"
	"github.com/hammamikhairi/vicvoix/internal/logger"
	"github.com/hammamikhairi/vicvoix/internal/params"
	"github.com/hammamikhairi/vicvoix/internal/speech"
	"github.com/hammamikhairi/vicvoix/internal/storage"
)

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Voices   domain.VoiceLister
	Synth    domain.Synthesizer
	Builder  domain.RequestBuilder
	Player   domain.Player
	Exporter domain.Exporter
	Picker   domain.DestinationPicker
	Notifier domain.Notifier
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLocale sets the locale voices are fetched for.
func WithLocale(locale string) Option {
	return func(o *Orchestrator) {
		if locale != "" {
			o.locale = locale
		}
	}
}

// WithControlMax sets the slider range.
func WithControlMax(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.controlMax = n
		}
	}
}

// WithDefaults places the sliders at the given rate and pitch and sets
// the initial style.
func WithDefaults(rate, pitch float64, style string) Option {
	return func(o *Orchestrator) {
		o.initRate, o.initPitch, o.style = rate, pitch, strings.TrimSpace(style)
	}
}

// WithPlayAfterExport plays the audio once it has been saved.
func WithPlayAfterExport(on bool) Option {
	return func(o *Orchestrator) {
		o.playAfterExport = on
	}
}

// WithNamePrefix sets the prefix for suggested export file names.
func WithNamePrefix(prefix string) Option {
	return func(o *Orchestrator) {
		o.namePrefix = prefix
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator owns the session. Every user action goes through it; while
// one is in flight the others are rejected with ErrBusy. It depends only
// on interfaces and is fully testable with mocks.
type Orchestrator struct {
	deps            Deps
	log             *logger.Logger
	catalog         *storage.CatalogStore
	locale          string
	controlMax      int
	initRate        float64
	initPitch       float64
	playAfterExport bool
	namePrefix      string
	now             func() time.Time

	root   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	status    domain.SessionStatus
	selected  string
	rate      int
	pitch     int
	style     string
	lastAudio []byte
	closed    bool
}

// New creates an orchestrator with the given dependencies and options.
func New(deps Deps, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:       deps,
		log:        log.With("session"),
		locale:     speech.DefaultLocale,
		controlMax: params.DefaultControlMax,
		initRate:   domain.DefaultRate,
		initPitch:  domain.DefaultPitch,
		namePrefix: export.DefaultPrefix,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.catalog = storage.NewCatalogStore(o.log)
	o.rate = params.ControlFromRate(o.initRate, o.controlMax)
	o.pitch = params.ControlFromPitch(o.initPitch, o.controlMax)
	if !speech.ValidStyle(o.style) {
		o.log.Warn("ignoring invalid default style %q", o.style)
		o.style = ""
	}
	o.root, o.cancel = context.WithCancel(context.Background())
	return o
}

// LoadVoices fetches the catalog for the configured locale and replaces
// the current one. The selection survives if the voice is still offered;
// otherwise the first voice is selected.
func (o *Orchestrator) LoadVoices(ctx context.Context) error {
	if err := o.begin(domain.StatusLoadingVoices); err != nil {
		return err
	}
	cctx, done := o.opContext(ctx)
	defer done()

	o.log.Info("loading %s voices", o.locale)
	voices, err := o.deps.Voices.FetchVoices(cctx, o.locale)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.log.Debug("discarding voice list, session closed")
		return domain.ErrSessionClosed
	}
	o.status = domain.StatusIdle
	if err != nil {
		o.mu.Unlock()
		o.log.Error("loading voices failed (%s): %v", domain.Kind(err), err)
		o.deps.Notifier.NotifyUrgent(ctx, msgFailure("Loading voices", err))
		return err
	}
	o.catalog.Replace(voices)
	if !o.catalog.Contains(o.selected) {
		o.selected = ""
		if first, ok := o.catalog.First(); ok {
			o.selected = first.ID
		}
	}
	selected := o.selected
	o.mu.Unlock()

	o.log.Info("%d voices loaded, selected %q", len(voices), selected)
	o.deps.Notifier.Notify(ctx, msgVoicesLoaded(len(voices), o.locale))
	return nil
}

// SelectVoice picks a voice from the current catalog.
func (o *Orchestrator) SelectVoice(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	if !o.catalog.Contains(id) {
		return fmt.Errorf("%w: unknown voice %q", domain.ErrValidation, id)
	}
	o.selected = id
	o.log.Debug("selected voice %s", id)
	return nil
}

// SetRateControl moves the rate slider. Out-of-range positions are clamped.
func (o *Orchestrator) SetRateControl(position int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	o.rate = params.NewSlider(position, o.controlMax).Position
	return nil
}

// SetPitchControl moves the pitch slider. Out-of-range positions are clamped.
func (o *Orchestrator) SetPitchControl(position int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	o.pitch = params.NewSlider(position, o.controlMax).Position
	return nil
}

// SetStyle sets the speaking style. The empty token means no style.
func (o *Orchestrator) SetStyle(token string) error {
	token = strings.TrimSpace(token)
	if !speech.ValidStyle(token) {
		return fmt.Errorf("%w: bad style token %q", domain.ErrValidation, token)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	o.style = token
	return nil
}

// Generate synthesizes text with the current voice and parameters. The
// audio is played, or saved to a destination chosen through the picker
// when wantExport is set. Blocks until the operation is over.
//
// A dismissed picker is not an error: the audio is dropped and the
// session returns to Idle.
func (o *Orchestrator) Generate(ctx context.Context, text string, wantExport bool) error {
	text = strings.TrimSpace(text)

	o.mu.Lock()
	if err := o.editableLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	if text == "" {
		o.mu.Unlock()
		o.deps.Notifier.Notify(ctx, msgNeedText())
		return fmt.Errorf("%w: text is empty", domain.ErrPrecondition)
	}
	voice, err := o.catalog.Get(o.selected)
	if err != nil {
		o.mu.Unlock()
		o.deps.Notifier.Notify(ctx, msgNeedVoice())
		return fmt.Errorf("%w: no voice selected", domain.ErrPrecondition)
	}
	req, err := o.deps.Builder.Build(text, voice, o.paramsLocked())
	if err != nil {
		o.mu.Unlock()
		o.deps.Notifier.NotifyUrgent(ctx, msgFailure("Generate", err))
		return err
	}
	o.status = domain.StatusGenerating
	o.mu.Unlock()

	cctx, done := o.opContext(ctx)
	defer done()

	o.log.Info("synthesizing %d chars as %s with %s", len([]rune(text)), req.InputMode, voice.ID)
	audio, err := o.deps.Synth.Synthesize(cctx, req)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.log.Debug("discarding synthesis result, session closed")
		return domain.ErrSessionClosed
	}
	if err != nil {
		o.status = domain.StatusIdle
		o.mu.Unlock()
		o.log.Error("synthesis failed (%s): %v", domain.Kind(err), err)
		o.deps.Notifier.NotifyUrgent(ctx, msgFailure("Generate", err))
		return err
	}
	o.lastAudio = audio
	o.log.Debug("received %d bytes of audio", len(audio))

	if !wantExport {
		o.mu.Unlock()
		err := o.play(ctx, audio)
		o.finish()
		return err
	}

	o.status = domain.StatusAwaitingExportDestination
	o.mu.Unlock()
	return o.export(ctx, cctx, audio)
}

// export runs the save half of Generate. Called in
// AwaitingExportDestination.
func (o *Orchestrator) export(ctx, cctx context.Context, audio []byte) error {
	name := export.SuggestName(o.namePrefix, o.now())
	dst, err := o.deps.Picker.Choose(cctx, name)

	if err != nil {
		o.mu.Lock()
		o.lastAudio = nil
		closed := o.closed
		if !closed {
			o.status = domain.StatusIdle
		}
		o.mu.Unlock()

		switch {
		case closed:
			return domain.ErrSessionClosed
		case errors.Is(err, domain.ErrCancelled):
			o.log.Info("save cancelled")
			o.deps.Notifier.Notify(ctx, msgSaveCancelled())
			return nil
		default:
			o.log.Error("choosing destination: %v", err)
			o.deps.Notifier.NotifyUrgent(ctx, msgFailure("Save", err))
			return err
		}
	}

	if o.isClosed() {
		discard(dst)
		return domain.ErrSessionClosed
	}

	res, err := o.deps.Exporter.Export(cctx, dst, audio)

	o.mu.Lock()
	if !o.playAfterExport || err != nil {
		o.lastAudio = nil
	}
	closed := o.closed
	if !closed {
		o.status = domain.StatusIdle
	}
	o.mu.Unlock()

	if closed {
		return domain.ErrSessionClosed
	}
	if err != nil {
		o.log.Error("export failed (%s): %v", domain.Kind(err), err)
		o.deps.Notifier.NotifyUrgent(ctx, msgFailure("Save", err))
		return err
	}

	o.log.Info("saved %d bytes to %s", res.Bytes, res.Destination)
	o.deps.Notifier.Notify(ctx, msgSaved(res.Destination, res.Bytes))
	if o.playAfterExport {
		return o.play(ctx, audio)
	}
	return nil
}

// Replay plays the last generated audio again.
func (o *Orchestrator) Replay(ctx context.Context) error {
	o.mu.Lock()
	if err := o.editableLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	audio := o.lastAudio
	o.mu.Unlock()

	if len(audio) == 0 {
		return fmt.Errorf("%w: nothing generated yet", domain.ErrPrecondition)
	}
	return o.play(ctx, audio)
}

// play hands audio to the player. If the session was closed meanwhile the
// player is released again so nothing keeps sounding.
func (o *Orchestrator) play(ctx context.Context, audio []byte) error {
	if err := o.deps.Player.Load(audio); err != nil {
		o.log.Error("playback: %v", err)
		o.deps.Notifier.NotifyUrgent(ctx, msgFailure("Play", err))
		return err
	}
	if o.isClosed() {
		o.deps.Player.Release()
		return domain.ErrSessionClosed
	}
	return nil
}

// State returns a snapshot of the session.
func (o *Orchestrator) State() domain.SessionState {
	playback := o.deps.Player.State()

	o.mu.Lock()
	defer o.mu.Unlock()
	return domain.SessionState{
		Status:          o.status,
		Voices:          o.catalog.List(),
		SelectedVoiceID: o.selected,
		RateControl:     o.rate,
		PitchControl:    o.pitch,
		ControlMax:      o.controlMax,
		Params:          o.paramsLocked(),
		LastAudioBytes:  len(o.lastAudio),
		Playback:        playback,
		Closed:          o.closed,
	}
}

// Close cancels in-flight work, drops the audio buffer and releases the
// player. Results that arrive afterwards are discarded. Idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.status = domain.StatusIdle
	o.lastAudio = nil
	o.mu.Unlock()

	o.cancel()
	o.deps.Player.Release()
	o.log.Info("session closed")
}

// ── helpers ──────────────────────────────────────────────────────

// begin claims the busy gate for status.
func (o *Orchestrator) begin(status domain.SessionStatus) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	o.status = status
	return nil
}

// finish releases the busy gate unless the session was closed.
func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.status = domain.StatusIdle
	}
}

// editableLocked rejects actions on a closed or busy session.
// Must be called with o.mu held.
func (o *Orchestrator) editableLocked() error {
	if o.closed {
		return domain.ErrSessionClosed
	}
	if o.status != domain.StatusIdle {
		return fmt.Errorf("%w: %s in progress", domain.ErrBusy, o.status)
	}
	return nil
}

// paramsLocked maps the slider positions. Must be called with o.mu held.
func (o *Orchestrator) paramsLocked() domain.SynthesisParameters {
	return domain.SynthesisParameters{
		LocaleID:       o.locale,
		VoiceID:        o.selected,
		SpeakingRate:   params.RateFromControl(o.rate, o.controlMax),
		PitchSemitones: params.PitchFromControl(o.pitch, o.controlMax),
		StyleToken:     o.style,
	}
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// opContext derives a context cancelled by either the caller or Close.
func (o *Orchestrator) opContext(ctx context.Context) (context.Context, func()) {
	cctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(o.root, cancel)
	return cctx, func() {
		stop()
		cancel()
	}
}

// discard drops a destination that will not be written.
func discard(dst domain.Destination) {
	if a, ok := dst.(export.Aborter); ok {
		a.Abort()
		return
	}
	dst.Close()
}
