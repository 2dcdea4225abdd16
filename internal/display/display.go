// Package display provides the terminal form using Bubble Tea.
//
// The [UI] renders the synthesis form (voice, rate, pitch, style, text)
// with a status line for the session and the player at the bottom of the
// terminal. Toasts are printed above the rendered area via
// Program.Println / Printf, so concurrent writes never garble the form.
package display

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/vicvoix/internal/domain"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa")).
			Width(8)

	focusLabelStyle = labelStyle.
			Foreground(lipgloss.Color("#fde68a")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// BannerStyle is the muted slate used for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	overLimitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))
)

// ── Ports ────────────────────────────────────────────────────────

// Session is the part of the orchestrator the form drives.
type Session interface {
	LoadVoices(ctx context.Context) error
	SelectVoice(id string) error
	SetRateControl(position int) error
	SetPitchControl(position int) error
	SetStyle(token string) error
	Generate(ctx context.Context, text string, wantExport bool) error
	Replay(ctx context.Context) error
	State() domain.SessionState
}

// Transport is the part of the player the form drives.
type Transport interface {
	Toggle() error
	Seek(position time.Duration) error
	Position() (pos, total time.Duration)
	Release()
}

// Options tune the form.
type Options struct {
	MaxChars   int
	SliderStep int
	SeekStep   time.Duration
	Styles     []string
	Title      string
}

// ── UI ───────────────────────────────────────────────────────────

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI], [UI.Bind] then [UI.Run] (blocking). Other goroutines may
// safely call [UI.Println] and [UI.Printf] at any time; playback hooks
// are forwarded to the event loop without blocking.
type UI struct {
	opts    Options
	session Session
	player  Transport

	program atomic.Pointer[tea.Program]
	readyCh chan struct{}
	done    atomic.Bool
}

// NewUI creates the display. Call Bind and Run to start.
func NewUI(opts Options) *UI {
	if opts.SliderStep <= 0 {
		opts.SliderStep = 1
	}
	if opts.SeekStep <= 0 {
		opts.SeekStep = 5 * time.Second
	}
	if len(opts.Styles) == 0 {
		opts.Styles = []string{""}
	}
	if opts.Title == "" {
		opts.Title = "VicVoix"
	}
	return &UI{
		opts:    opts,
		readyCh: make(chan struct{}),
	}
}

// Bind attaches the session and the player. Must be called before Run.
func (u *UI) Bind(s Session, p Transport) {
	u.session = s
	u.player = p
}

// Println prints a line above the form. Thread-safe.
// If the program hasn't started yet, falls back to fmt.Println.
func (u *UI) Println(a ...interface{}) {
	if p := u.program.Load(); p != nil && !u.done.Load() {
		p.Println(a...)
	} else {
		fmt.Println(a...)
	}
}

// Printf prints formatted text above the form on its own line. Thread-safe.
func (u *UI) Printf(format string, a ...interface{}) {
	if p := u.program.Load(); p != nil && !u.done.Load() {
		p.Printf(format, a...)
	} else {
		fmt.Printf(format+"\n", a...)
	}
}

// PrintUrgent prints an error line.
func (u *UI) PrintUrgent(text string) {
	u.Println(urgentOutputStyle.Render("  " + text))
}

// ── Playback hooks ───────────────────────────────────────────────

// OnPlaybackState forwards player transitions to the form.
func (u *UI) OnPlaybackState(s domain.PlaybackState) {
	u.send(playbackMsg{state: s})
}

// OnPlaybackProgress forwards the periodic position report.
func (u *UI) OnPlaybackProgress(pos, total time.Duration) {
	u.send(progressMsg{pos: pos, total: total})
}

// OnPlaybackError prints asynchronous playback failures.
func (u *UI) OnPlaybackError(err error) {
	u.PrintUrgent(fmt.Sprintf("Playback failed: %v", err))
}

// send delivers msg to the event loop without blocking the caller, which
// may itself be running inside Update. Reports false when no loop runs.
func (u *UI) send(msg tea.Msg) bool {
	p := u.program.Load()
	if p == nil || u.done.Load() {
		return false
	}
	go p.Send(msg)
	return true
}

// WaitReady blocks until the Bubble Tea event loop is running.
func (u *UI) WaitReady() { <-u.readyCh }

// Run starts the Bubble Tea event loop. Blocks until quit or ctx is done.
func (u *UI) Run(ctx context.Context) error {
	if u.session == nil || u.player == nil {
		return fmt.Errorf("display: Bind must be called before Run")
	}
	m := newModel(ctx, u.session, u.player, u.opts, u.readyCh)

	p := tea.NewProgram(m, tea.WithContext(ctx))
	u.program.Store(p)
	_, err := p.Run()
	u.done.Store(true)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// ── Helpers ──────────────────────────────────────────────────────

func fmtDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}
