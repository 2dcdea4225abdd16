package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/logger"
	"github.com/hammamikhairi/vicvoix/internal/speech"
)

// ── Mocks ────────────────────────────────────────────────────────

type mockVoices struct {
	mu     sync.Mutex
	voices []domain.VoiceCatalogEntry
	err    error
	calls  int
}

func (m *mockVoices) FetchVoices(ctx context.Context, locale string) ([]domain.VoiceCatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.voices, m.err
}

type mockSynth struct {
	mu      sync.Mutex
	audio   []byte
	err     error
	calls   int
	lastReq domain.SynthesisRequest

	entered chan struct{} // signalled when a call starts, if set
	release chan struct{} // call blocks until closed, if set
	honour  bool          // return early on ctx cancellation
}

func (m *mockSynth) Synthesize(ctx context.Context, req domain.SynthesisRequest) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.lastReq = req
	entered, release, honour := m.entered, m.release, m.honour
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		if honour {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, ctx.Err())
			}
		} else {
			<-release
		}
	}
	return m.audio, m.err
}

func (m *mockSynth) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockPlayer struct {
	mu       sync.Mutex
	loads    [][]byte
	releases int
	err      error
}

func (m *mockPlayer) Load(audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loads = append(m.loads, audio)
	return nil
}

func (m *mockPlayer) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
}

func (m *mockPlayer) State() domain.PlaybackState { return domain.PlaybackIdle }

func (m *mockPlayer) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loads)
}

type memDest struct {
	strings.Builder
	closed bool
}

func (d *memDest) Name() string { return "/out/test.mp3" }
func (d *memDest) Close() error {
	d.closed = true
	return nil
}

type mockPicker struct {
	dst       domain.Destination
	err       error
	suggested string
}

func (m *mockPicker) Choose(ctx context.Context, name string) (domain.Destination, error) {
	m.suggested = name
	if m.err != nil {
		return nil, m.err
	}
	return m.dst, nil
}

type mockExporter struct {
	calls int
	got   []byte
	err   error
}

func (m *mockExporter) Export(ctx context.Context, dst domain.Destination, audio []byte) (domain.ExportResult, error) {
	m.calls++
	m.got = audio
	if m.err != nil {
		return domain.ExportResult{}, m.err
	}
	return domain.ExportResult{Destination: dst.Name(), Bytes: len(audio)}, nil
}

type recNotifier struct {
	mu     sync.Mutex
	normal []string
	urgent []string
}

func (n *recNotifier) Notify(ctx context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.normal = append(n.normal, msg)
	return nil
}

func (n *recNotifier) NotifyUrgent(ctx context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urgent = append(n.urgent, msg)
	return nil
}

// ── Fixture ──────────────────────────────────────────────────────

type fixture struct {
	orch     *Orchestrator
	voices   *mockVoices
	synth    *mockSynth
	player   *mockPlayer
	picker   *mockPicker
	exporter *mockExporter
	notes    *recNotifier
}

var frVoices = []domain.VoiceCatalogEntry{
	{ID: "fr-FR-A", LocaleID: "fr-FR"},
	{ID: "fr-FR-B", LocaleID: "fr-FR"},
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		voices:   &mockVoices{voices: frVoices},
		synth:    &mockSynth{audio: []byte("ID3 mp3 bytes")},
		player:   &mockPlayer{},
		picker:   &mockPicker{dst: &memDest{}},
		exporter: &mockExporter{},
		notes:    &recNotifier{},
	}
	deps := Deps{
		Voices:   f.voices,
		Synth:    f.synth,
		Builder:  speech.NewBuilder(speech.DefaultMaxChars, speech.DefaultSampleRate),
		Player:   f.player,
		Exporter: f.exporter,
		Picker:   f.picker,
		Notifier: f.notes,
	}
	f.orch = New(deps, logger.New(logger.LevelOff, nil), opts...)
	t.Cleanup(f.orch.Close)
	return f
}

func (f *fixture) loaded(t *testing.T) *fixture {
	t.Helper()
	if err := f.orch.LoadVoices(context.Background()); err != nil {
		t.Fatalf("load voices: %v", err)
	}
	return f
}

// ── Tests ────────────────────────────────────────────────────────

func TestDefaults(t *testing.T) {
	f := setup(t)
	st := f.orch.State()

	if st.Status != domain.StatusIdle || st.Closed {
		t.Fatalf("unexpected initial state %+v", st)
	}
	if st.RateControl != 25 || st.Params.SpeakingRate != 1.0 {
		t.Fatalf("expected rate slider at 25 (1.0x), got %d (%v)", st.RateControl, st.Params.SpeakingRate)
	}
	if st.PitchControl != 50 || st.Params.PitchSemitones != 0 {
		t.Fatalf("expected pitch slider at 50 (0st), got %d (%v)", st.PitchControl, st.Params.PitchSemitones)
	}
	if st.Params.LocaleID != "fr-FR" {
		t.Fatalf("expected fr-FR, got %s", st.Params.LocaleID)
	}
}

func TestLoadVoicesSelectsFirstAndKeepsSelection(t *testing.T) {
	f := setup(t).loaded(t)

	st := f.orch.State()
	if len(st.Voices) != 2 || st.SelectedVoiceID != "fr-FR-A" {
		t.Fatalf("expected first voice selected, got %+v", st)
	}
	if len(f.notes.normal) != 1 || f.notes.normal[0] != "2 fr-FR voices loaded." {
		t.Fatalf("unexpected notifications %q", f.notes.normal)
	}

	if err := f.orch.SelectVoice("fr-FR-B"); err != nil {
		t.Fatalf("select: %v", err)
	}
	f.voices.voices = []domain.VoiceCatalogEntry{
		{ID: "fr-FR-C", LocaleID: "fr-FR"},
		{ID: "fr-FR-B", LocaleID: "fr-FR"},
	}
	f.loaded(t)
	if got := f.orch.State().SelectedVoiceID; got != "fr-FR-B" {
		t.Fatalf("expected selection kept, got %s", got)
	}

	f.voices.voices = []domain.VoiceCatalogEntry{{ID: "fr-FR-D", LocaleID: "fr-FR"}}
	f.loaded(t)
	if got := f.orch.State().SelectedVoiceID; got != "fr-FR-D" {
		t.Fatalf("expected fallback to first voice, got %s", got)
	}
}

func TestLoadVoicesFailure(t *testing.T) {
	f := setup(t)
	f.voices.err = &domain.APIError{StatusCode: 403, Body: "denied"}

	err := f.orch.LoadVoices(context.Background())
	if !errors.Is(err, domain.ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
	if st := f.orch.State(); st.Status != domain.StatusIdle || len(st.Voices) != 0 {
		t.Fatalf("unexpected state after failure %+v", st)
	}
	if len(f.notes.urgent) != 1 || !strings.Contains(f.notes.urgent[0], "HTTP 403") {
		t.Fatalf("expected HTTP 403 toast, got %q", f.notes.urgent)
	}
}

func TestGeneratePreconditions(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		loaded bool
	}{
		{"empty text", "", true},
		{"whitespace text", "  \n\t ", true},
		{"no voice", "Bonjour", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			if tt.loaded {
				f.loaded(t)
			}
			err := f.orch.Generate(context.Background(), tt.text, false)
			if !errors.Is(err, domain.ErrPrecondition) || !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected precondition failure, got %v", err)
			}
			if f.synth.callCount() != 0 {
				t.Fatal("synthesizer must not be called")
			}
			if st := f.orch.State(); st.Status != domain.StatusIdle {
				t.Fatalf("state changed to %s", st.Status)
			}
		})
	}
}

func TestGenerateTooLongIsValidationError(t *testing.T) {
	f := setup(t).loaded(t)
	err := f.orch.Generate(context.Background(), strings.Repeat("a", speech.DefaultMaxChars+1), false)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if f.synth.callCount() != 0 {
		t.Fatal("synthesizer must not be called")
	}
}

func TestGeneratePlays(t *testing.T) {
	f := setup(t).loaded(t)
	f.orch.SetRateControl(100)
	f.orch.SetStyle("calm")

	if err := f.orch.Generate(context.Background(), "  Bonjour  ", false); err != nil {
		t.Fatalf("generate: %v", err)
	}

	req := f.synth.lastReq
	if req.Voice.VoiceID != "fr-FR-A" || req.InputMode != domain.InputSSML {
		t.Fatalf("unexpected request %+v", req)
	}
	if !strings.Contains(req.Payload, `rate="4.00"`) || !strings.Contains(req.Payload, ">Bonjour<") {
		t.Fatalf("unexpected payload %s", req.Payload)
	}
	if f.player.loadCount() != 1 {
		t.Fatalf("expected one load, got %d", f.player.loadCount())
	}
	st := f.orch.State()
	if st.Status != domain.StatusIdle || st.LastAudioBytes != len(f.synth.audio) {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestGenerateExports(t *testing.T) {
	clock := func() time.Time { return time.UnixMilli(1700000000000) }
	f := setup(t, WithClock(clock)).loaded(t)

	if err := f.orch.Generate(context.Background(), "Salut", true); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if f.picker.suggested != "VicVoix_1700000000000.mp3" {
		t.Fatalf("unexpected suggested name %s", f.picker.suggested)
	}
	if f.exporter.calls != 1 || string(f.exporter.got) != string(f.synth.audio) {
		t.Fatalf("exporter not called with audio: %+v", f.exporter)
	}
	if f.player.loadCount() != 0 {
		t.Fatal("export must not play by default")
	}
	if st := f.orch.State(); st.Status != domain.StatusIdle || st.LastAudioBytes != 0 {
		t.Fatalf("expected idle with buffer released, got %+v", st)
	}
	last := f.notes.normal[len(f.notes.normal)-1]
	if !strings.Contains(last, "/out/test.mp3") {
		t.Fatalf("expected saved toast, got %q", last)
	}
}

func TestGenerateExportThenPlay(t *testing.T) {
	f := setup(t, WithPlayAfterExport(true)).loaded(t)
	if err := f.orch.Generate(context.Background(), "Salut", true); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if f.exporter.calls != 1 || f.player.loadCount() != 1 {
		t.Fatalf("expected export then play, got %d exports %d loads", f.exporter.calls, f.player.loadCount())
	}
}

func TestExportCancelled(t *testing.T) {
	f := setup(t).loaded(t)
	f.picker.err = fmt.Errorf("%w: dismissed", domain.ErrCancelled)

	if err := f.orch.Generate(context.Background(), "Salut", true); err != nil {
		t.Fatalf("cancel is not an error, got %v", err)
	}
	if f.exporter.calls != 0 {
		t.Fatal("exporter must not run after cancel")
	}
	if st := f.orch.State(); st.Status != domain.StatusIdle || st.LastAudioBytes != 0 {
		t.Fatalf("expected idle with buffer dropped, got %+v", st)
	}
}

func TestExportFailure(t *testing.T) {
	f := setup(t).loaded(t)
	f.exporter.err = fmt.Errorf("%w: disk full", domain.ErrIO)

	err := f.orch.Generate(context.Background(), "Salut", true)
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if len(f.notes.urgent) != 1 || strings.Contains(f.notes.urgent[0], "saved") {
		t.Fatalf("unexpected toasts %q", f.notes.urgent)
	}
	if st := f.orch.State(); st.Status != domain.StatusIdle {
		t.Fatalf("expected idle, got %s", st.Status)
	}
}

func TestSynthesisFailureKeepsLastAudio(t *testing.T) {
	f := setup(t).loaded(t)
	if err := f.orch.Generate(context.Background(), "one", false); err != nil {
		t.Fatalf("first generate: %v", err)
	}

	f.synth.err = &domain.APIError{StatusCode: 429}
	err := f.orch.Generate(context.Background(), "two", false)
	if !errors.Is(err, domain.ErrAPI) || domain.StatusCode(err) != 429 {
		t.Fatalf("expected API 429, got %v", err)
	}
	st := f.orch.State()
	if st.Status != domain.StatusIdle || st.LastAudioBytes != len(f.synth.audio) {
		t.Fatalf("unexpected state %+v", st)
	}
	if f.player.loadCount() != 1 {
		t.Fatal("failed synthesis must not play")
	}
}

func TestBusyRejectsOtherActions(t *testing.T) {
	f := setup(t).loaded(t)
	f.synth.entered = make(chan struct{}, 1)
	f.synth.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.orch.Generate(context.Background(), "first", false) }()
	<-f.synth.entered

	if st := f.orch.State(); st.Status != domain.StatusGenerating || !st.Busy() {
		t.Fatalf("expected generating, got %s", st.Status)
	}

	checks := map[string]error{
		"generate":    f.orch.Generate(context.Background(), "second", false),
		"load voices": f.orch.LoadVoices(context.Background()),
		"select":      f.orch.SelectVoice("fr-FR-B"),
		"rate":        f.orch.SetRateControl(10),
		"pitch":       f.orch.SetPitchControl(10),
		"style":       f.orch.SetStyle("calm"),
		"replay":      f.orch.Replay(context.Background()),
	}
	for name, err := range checks {
		if !errors.Is(err, domain.ErrBusy) {
			t.Errorf("%s: expected ErrBusy, got %v", name, err)
		}
	}

	close(f.synth.release)
	if err := <-done; err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if f.synth.callCount() != 1 {
		t.Fatalf("expected a single synthesis call, got %d", f.synth.callCount())
	}
}

func TestCloseCancelsInFlight(t *testing.T) {
	f := setup(t).loaded(t)
	f.synth.entered = make(chan struct{}, 1)
	f.synth.release = make(chan struct{})
	f.synth.honour = true

	done := make(chan error, 1)
	go func() { done <- f.orch.Generate(context.Background(), "Bonjour", false) }()
	<-f.synth.entered

	f.orch.Close()

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrSessionClosed) {
			t.Fatalf("expected ErrSessionClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("generate did not return after Close")
	}
	if f.player.loadCount() != 0 {
		t.Fatal("nothing may play after Close")
	}
}

func TestCloseDiscardsLateCompletion(t *testing.T) {
	f := setup(t).loaded(t)
	f.synth.entered = make(chan struct{}, 1)
	f.synth.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.orch.Generate(context.Background(), "Bonjour", false) }()
	<-f.synth.entered

	f.orch.Close()
	close(f.synth.release) // the response still arrives

	if err := <-done; !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	st := f.orch.State()
	if !st.Closed || st.LastAudioBytes != 0 || st.Status != domain.StatusIdle {
		t.Fatalf("late completion mutated state: %+v", st)
	}
	if f.player.loadCount() != 0 {
		t.Fatal("late completion must not play")
	}
	if f.player.releases == 0 {
		t.Fatal("Close must release the player")
	}

	// Idempotent, and everything afterwards is rejected.
	f.orch.Close()
	if err := f.orch.LoadVoices(context.Background()); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestParameterControls(t *testing.T) {
	f := setup(t).loaded(t)

	if err := f.orch.SelectVoice("en-US-X"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown voice, got %v", err)
	}
	if err := f.orch.SetStyle("not a token"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad style, got %v", err)
	}

	f.orch.SetRateControl(500)
	f.orch.SetPitchControl(-3)
	f.orch.SetStyle(" lively ")

	st := f.orch.State()
	if st.RateControl != 100 || st.Params.SpeakingRate != 4.0 {
		t.Fatalf("expected clamped rate, got %d (%v)", st.RateControl, st.Params.SpeakingRate)
	}
	if st.PitchControl != 0 || st.Params.PitchSemitones != -20 {
		t.Fatalf("expected clamped pitch, got %d (%v)", st.PitchControl, st.Params.PitchSemitones)
	}
	if st.Params.StyleToken != "lively" {
		t.Fatalf("expected lively, got %q", st.Params.StyleToken)
	}
}

func TestReplay(t *testing.T) {
	f := setup(t).loaded(t)
	if err := f.orch.Replay(context.Background()); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition before any audio, got %v", err)
	}
	f.orch.Generate(context.Background(), "Bonjour", false)
	if err := f.orch.Replay(context.Background()); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if f.player.loadCount() != 2 {
		t.Fatalf("expected two loads, got %d", f.player.loadCount())
	}
}

func TestPlaybackFailureSurfaces(t *testing.T) {
	f := setup(t).loaded(t)
	f.player.err = fmt.Errorf("%w: no device", domain.ErrPlayback)

	err := f.orch.Generate(context.Background(), "Bonjour", false)
	if !errors.Is(err, domain.ErrPlayback) {
		t.Fatalf("expected ErrPlayback, got %v", err)
	}
	if st := f.orch.State(); st.Status != domain.StatusIdle {
		t.Fatalf("expected idle, got %s", st.Status)
	}
}
