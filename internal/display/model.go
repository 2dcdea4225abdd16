package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/params"
)

type focus int

const (
	focusText focus = iota
	focusControls
)

// Messages.
type (
	tickMsg     time.Time
	playbackMsg struct{ state domain.PlaybackState }
	progressMsg struct{ pos, total time.Duration }

	// actionDoneMsg reports a session call that ran off the event loop.
	actionDoneMsg struct {
		action string
		err    error
	}

	// pickRequestMsg opens the save prompt. The answer goes to reply,
	// which must be buffered.
	pickRequestMsg struct {
		suggested string
		reply     chan<- pickReply
	}
	pickAbortMsg struct{}
)

type pickReply struct {
	name      string
	cancelled bool
}

type model struct {
	ctx     context.Context
	session Session
	player  Transport
	opts    Options
	readyCh chan struct{}

	text   textarea.Model
	picker textinput.Model
	spin   spinner.Model
	bar    progress.Model
	slider progress.Model

	focus   focus
	pick    *pickRequestMsg
	state   domain.SessionState
	pos     time.Duration
	total   time.Duration
	styleAt int
	width   int
}

func newModel(ctx context.Context, s Session, p Transport, opts Options, ready chan struct{}) model {
	ta := textarea.New()
	ta.Placeholder = "Type the text to speak…"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0 // the counter shows the limit; the builder enforces it
	ta.SetWidth(60)
	ta.SetHeight(6)
	ta.Focus()

	ti := textinput.New()
	// Plain-text prompt so the textinput width math stays correct.
	ti.Prompt = "Save as: "
	ti.PromptStyle = promptStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	ti.CharLimit = 255
	ti.Width = 50

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(busyStyle))

	m := model{
		ctx:     ctx,
		session: s,
		player:  p,
		opts:    opts,
		readyCh: ready,
		text:    ta,
		picker:  ti,
		spin:    sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		slider:  progress.New(progress.WithSolidFill("#94a3b8"), progress.WithWidth(24), progress.WithoutPercentage()),
	}
	m.state = s.State()
	m.styleAt = indexOf(opts.Styles, m.state.Params.StyleToken)
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spin.Tick,
		tickCmd(),
		signalReady(m.readyCh),
		tea.SetWindowTitle(m.opts.Title),
	)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if ch != nil {
			close(ch)
		}
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.pick != nil {
			return m.updatePicker(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 4 {
			m.text.SetWidth(msg.Width - 4)
		}
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tickCmd()

	case playbackMsg, progressMsg:
		if pm, ok := msg.(progressMsg); ok {
			m.pos, m.total = pm.pos, pm.total
		}
		m.refresh()
		return m, nil

	case actionDoneMsg:
		m.refresh()
		switch {
		case msg.err == nil, errors.Is(msg.err, domain.ErrSessionClosed):
			return m, nil
		case errors.Is(msg.err, domain.ErrBusy):
			return m, printCmd(hintStyle.Render("  Busy, wait for the current operation to finish."))
		case errors.Is(msg.err, domain.ErrInvalidState):
			return m, printCmd(hintStyle.Render("  Nothing is playing."))
		}
		return m, nil

	case pickRequestMsg:
		m.pick = &msg
		m.picker.SetValue(msg.suggested)
		m.picker.CursorEnd()
		m.text.Blur()
		return m, m.picker.Focus()

	case pickAbortMsg:
		m.closePicker()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.pick != nil {
		m.picker, cmd = m.picker.Update(msg)
	} else if m.focus == focusText {
		m.text, cmd = m.text.Update(msg)
	}
	return m, cmd
}

// handleKey dispatches global shortcuts, then control or text editing.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+l":
		return m, m.run("load voices", func(ctx context.Context) error {
			return m.session.LoadVoices(ctx)
		})
	case "ctrl+g":
		return m, m.generate(false)
	case "ctrl+s":
		return m, m.generate(true)
	case "ctrl+r":
		return m, m.run("replay", m.session.Replay)
	case "ctrl+p":
		return m, m.run("pause", func(context.Context) error { return m.player.Toggle() })
	case "alt+.":
		return m, m.seek(m.opts.SeekStep)
	case "alt+,":
		return m, m.seek(-m.opts.SeekStep)
	case "esc":
		player := m.player
		return m, func() tea.Msg {
			player.Release()
			return nil
		}
	case "tab":
		if m.focus == focusText {
			m.focus = focusControls
			m.text.Blur()
			return m, nil
		}
		m.focus = focusText
		return m, m.text.Focus()
	}

	if m.focus == focusControls {
		return m.handleControlKey(msg)
	}

	var cmd tea.Cmd
	m.text, cmd = m.text.Update(msg)
	return m, cmd
}

// handleControlKey edits voice, rate, pitch and style. Disabled while busy.
func (m model) handleControlKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "up", "down", "left", "right", "shift+left", "shift+right", "s", " ", "]", "[":
	default:
		return m, nil
	}
	if m.state.Busy() {
		return m, printCmd(hintStyle.Render("  Controls are locked while " + m.state.Status.String() + "."))
	}

	step := m.opts.SliderStep
	rate := params.NewSlider(m.state.RateControl, m.state.ControlMax)
	pitch := params.NewSlider(m.state.PitchControl, m.state.ControlMax)
	var err error
	switch key {
	case "up":
		err = m.moveVoice(-1)
	case "down":
		err = m.moveVoice(1)
	case "left":
		err = m.session.SetRateControl(rate.Step(-step).Position)
	case "right":
		err = m.session.SetRateControl(rate.Step(step).Position)
	case "shift+left":
		err = m.session.SetPitchControl(pitch.Step(-step).Position)
	case "shift+right":
		err = m.session.SetPitchControl(pitch.Step(step).Position)
	case "s", " ":
		m.styleAt = (m.styleAt + 1) % len(m.opts.Styles)
		err = m.session.SetStyle(m.opts.Styles[m.styleAt])
	case "]":
		return m, m.seek(m.opts.SeekStep)
	case "[":
		return m, m.seek(-m.opts.SeekStep)
	}
	m.refresh()
	if err != nil {
		return m, printCmd(urgentOutputStyle.Render("  " + err.Error()))
	}
	return m, nil
}

func (m *model) moveVoice(delta int) error {
	voices := m.state.Voices
	if len(voices) == 0 {
		return nil
	}
	i := 0
	for j, v := range voices {
		if v.ID == m.state.SelectedVoiceID {
			i = j
			break
		}
	}
	i += delta
	if i < 0 || i >= len(voices) {
		return nil
	}
	return m.session.SelectVoice(voices[i].ID)
}

func (m model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		name := strings.TrimSpace(m.picker.Value())
		if name == "" {
			return m, nil
		}
		m.pick.reply <- pickReply{name: name}
		m.closePicker()
		return m, m.focusCmd()
	case tea.KeyEsc:
		m.pick.reply <- pickReply{cancelled: true}
		m.closePicker()
		return m, m.focusCmd()
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m *model) closePicker() {
	m.pick = nil
	m.picker.Blur()
	m.picker.Reset()
}

func (m *model) focusCmd() tea.Cmd {
	if m.focus == focusText {
		return m.text.Focus()
	}
	return nil
}

func (m *model) refresh() {
	m.state = m.session.State()
	if m.state.Playback == domain.PlaybackIdle {
		m.pos, m.total = 0, 0
		return
	}
	m.pos, m.total = m.player.Position()
}

// run executes a session call off the event loop.
func (m model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m model) generate(wantExport bool) tea.Cmd {
	text := m.text.Value()
	s := m.session
	action := "generate"
	if wantExport {
		action = "save"
	}
	return m.run(action, func(ctx context.Context) error {
		return s.Generate(ctx, text, wantExport)
	})
}

func (m model) seek(delta time.Duration) tea.Cmd {
	player := m.player
	target := m.pos + delta
	return m.run("seek", func(context.Context) error {
		return player.Seek(target)
	})
}

func printCmd(line string) tea.Cmd {
	return tea.Println(line)
}

// ── View ─────────────────────────────────────────────────────────

func (m model) View() string {
	var b strings.Builder

	b.WriteString(m.renderControls())
	b.WriteByte('\n')
	b.WriteString(m.text.View())
	b.WriteByte('\n')
	b.WriteString(m.renderCounter())
	b.WriteByte('\n')

	if m.pick != nil {
		b.WriteString(m.picker.View())
		b.WriteByte('\n')
		b.WriteString(hintStyle.Render("enter save · esc cancel"))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(m.renderStatus())
	b.WriteByte('\n')
	b.WriteString(hintStyle.Render(m.helpLine()))
	return b.String()
}

func (m model) label(name string) string {
	if m.focus == focusControls {
		return focusLabelStyle.Render(name)
	}
	return labelStyle.Render(name)
}

func (m model) renderControls() string {
	st := m.state
	var b strings.Builder

	voice := hintStyle.Render("none (ctrl+l to load)")
	if st.SelectedVoiceID != "" {
		voice = valueStyle.Render(st.SelectedVoiceID) +
			hintStyle.Render(fmt.Sprintf("  %d/%d", indexOfVoice(st.Voices, st.SelectedVoiceID)+1, len(st.Voices)))
	}
	b.WriteString(m.label("Voice") + voice + "\n")

	rate := params.Slider{Position: st.RateControl, Max: st.ControlMax}
	b.WriteString(m.label("Rate") + m.slider.ViewAs(rate.Fraction()) +
		valueStyle.Render(fmt.Sprintf("  %.2fx", st.Params.SpeakingRate)) + "\n")

	pitch := params.Slider{Position: st.PitchControl, Max: st.ControlMax}
	b.WriteString(m.label("Pitch") + m.slider.ViewAs(pitch.Fraction()) +
		valueStyle.Render(fmt.Sprintf("  %+.1f st", st.Params.PitchSemitones)) + "\n")

	style := st.Params.StyleToken
	if style == "" {
		style = "none"
	}
	b.WriteString(m.label("Style") + valueStyle.Render(style))
	return b.String()
}

func (m model) renderCounter() string {
	n := utf8.RuneCountInString(strings.TrimSpace(m.text.Value()))
	counter := fmt.Sprintf("%d / %d", n, m.opts.MaxChars)
	if m.opts.MaxChars > 0 && n > m.opts.MaxChars {
		return overLimitStyle.Render(counter)
	}
	return hintStyle.Render(counter)
}

func (m model) renderStatus() string {
	var parts []string

	if m.state.Busy() {
		parts = append(parts, m.spin.View()+" "+busyStyle.Render(m.state.Status.String()+"…"))
	} else {
		parts = append(parts, valueStyle.Render("ready"))
	}

	switch m.state.Playback {
	case domain.PlaybackPlaying, domain.PlaybackPaused:
		frac := 0.0
		if m.total > 0 {
			frac = float64(m.pos) / float64(m.total)
		}
		parts = append(parts, m.bar.ViewAs(frac)+" "+
			valueStyle.Render(fmtDuration(m.pos)+" / "+fmtDuration(m.total))+" "+
			hintStyle.Render(m.state.Playback.String()))
	case domain.PlaybackPreparing:
		parts = append(parts, hintStyle.Render("preparing audio"))
	}

	if m.state.LastAudioBytes > 0 {
		parts = append(parts, hintStyle.Render(fmt.Sprintf("%d KB", (m.state.LastAudioBytes+1023)/1024)))
	}

	content := " " + strings.Join(parts, sepStyle.Render("  │  ")) + " "
	w := m.width
	if w <= 0 {
		w = 80
	}
	return barBg.Width(w).Render(content)
}

func (m model) helpLine() string {
	if m.focus == focusControls {
		return "↑/↓ voice · ←/→ rate · shift+←/→ pitch · s style · [/] seek · tab text"
	}
	return "ctrl+l voices · ctrl+g play · ctrl+s save · ctrl+p pause · ctrl+r replay · esc stop · tab controls · ctrl+c quit"
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return 0
}

func indexOfVoice(voices []domain.VoiceCatalogEntry, id string) int {
	for i, v := range voices {
		if v.ID == id {
			return i
		}
	}
	return -1
}
