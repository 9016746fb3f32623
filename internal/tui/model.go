// Package tui provides the Bubble Tea reading interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/verte-zerg/flashread/internal/engine"
	"github.com/verte-zerg/flashread/internal/model"
	"github.com/verte-zerg/flashread/internal/pacing"
	"github.com/verte-zerg/flashread/internal/session"
	"github.com/verte-zerg/flashread/internal/stats"
	"github.com/verte-zerg/flashread/internal/watch"
)

const (
	defaultTick = 200 * time.Millisecond
	wpmStep     = 10
)

// RunRecorder is implemented by *store.Store.
type RunRecorder interface {
	InsertRun(ctx context.Context, run model.Run) (int64, error)
}

// Options wires a Model to its collaborators. Engine and Bridge are
// required; the engine must have been created with Bridge.Observe as its
// observer.
type Options struct {
	Engine   *engine.Engine
	Bridge   *Bridge
	Sessions *session.Manager
	Runs     RunRecorder
	Watcher  *watch.Watcher
	// Reload re-reads the source text after the watcher reports a change.
	Reload func() (string, error)
	Source string
	Config model.Config
	Logger *log.Logger
	Now    func() time.Time
}

type (
	tickMsg   struct{}
	reloadMsg struct{}
)

type runState struct {
	active       bool
	startedAt    time.Time
	startPos     int
	startElapsed time.Duration
	lastPos      int
	lastElapsed  time.Duration
}

// Model implements the Bubble Tea reading UI.
type Model struct {
	engine   *engine.Engine
	bridge   *Bridge
	sessions *session.Manager
	runs     RunRecorder
	watcher  *watch.Watcher
	reload   func() (string, error)
	source   string
	config   model.Config
	logger   *log.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	status   engine.Status
	run      runState
	progress progress.Model
	jump     textinput.Model
	jumping  bool
	notice   string
	closed   bool

	width  int
	height int
}

var (
	wordStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F0F0F0")).
			Padding(1, 4)
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Padding(1, 4)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a reading TUI model.
func NewModel(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Config.Tick <= 0 {
		opts.Config.Tick = defaultTick
	}
	ti := textinput.New()
	ti.Placeholder = "word number"
	ti.Prompt = "jump to: "
	ti.CharLimit = 9
	ti.Width = 12

	prog := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	prog.Width = 40

	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		engine:   opts.Engine,
		bridge:   opts.Bridge,
		sessions: opts.Sessions,
		runs:     opts.Runs,
		watcher:  opts.Watcher,
		reload:   opts.Reload,
		source:   opts.Source,
		config:   opts.Config,
		logger:   logger,
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
		progress: prog,
		jump:     ti,
	}
	m.status = m.engine.Status()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.Wait(), m.tick()}
	if m.watcher != nil {
		cmds = append(cmds, m.waitForChange())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-40, 20), 80)
		return m, nil
	case EventMsg:
		m.refresh()
		if m.sessions != nil {
			m.sessions.Autosave(m.ctx, m.engine)
		}
		return m, m.bridge.Wait()
	case tickMsg:
		m.refresh()
		return m, m.tick()
	case reloadMsg:
		m.reloadText()
		return m, m.waitForChange()
	case tea.KeyMsg:
		if m.jumping {
			return m.updateJump(msg)
		}
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	card := m.renderCard()
	status := m.renderStatus()
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return card + "\n" + status + "\n" + footer
	}
	lines := []string{status}
	if m.jumping {
		lines = append(lines, m.jump.View())
	} else if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice))
	}
	lines = append(lines, footer)
	bottom := make([]string, len(lines))
	for i, line := range lines {
		bottom[i] = lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, line)
	}
	bodyHeight := m.height - len(lines)
	if bodyHeight < 1 {
		return strings.Join(bottom, "\n")
	}
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, card)
	return body + "\n" + strings.Join(bottom, "\n")
}

// Close ends the current run and flushes the session. It is safe to call
// more than once.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.engine.Close()
	m.status = m.engine.Status()
	m.observeRun()
	if m.run.active {
		m.finishRun(false)
	}
	if m.sessions != nil {
		if err := m.sessions.Save(context.Background(), m.engine); err != nil {
			m.logger.Error("failed to save session", "error", err)
		}
	}
	m.cancel()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch msg.String() {
	case "ctrl+c", "q":
		m.Close()
		return m, tea.Quit
	case " ", "space":
		m.engine.Toggle()
	case "esc":
		m.engine.Stop()
	case "shift+left", "h":
		m.engine.Prev()
	case "shift+right", "l":
		m.engine.Next()
	case "home", "g":
		m.engine.Seek(0)
	case "end", "G":
		m.engine.Seek(m.status.Total - 1)
	case "+", "=":
		m.adjustWPM(wpmStep)
	case "-", "_":
		m.adjustWPM(-wpmStep)
	case "m":
		m.engine.SetSmartReading(!m.status.SmartReading)
	case ":":
		if !m.status.Empty() {
			m.jumping = true
			m.jump.SetValue("")
			return m, m.jump.Focus()
		}
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

func (m *Model) updateJump(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.Close()
		return m, tea.Quit
	case "esc":
		m.closeJump()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.jump.Value())
		m.closeJump()
		m.jumpTo(value)
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.jump, cmd = m.jump.Update(msg)
	return m, cmd
}

func (m *Model) closeJump() {
	m.jumping = false
	m.jump.Blur()
}

func (m *Model) jumpTo(value string) {
	n, err := strconv.Atoi(value)
	if err != nil {
		m.notice = fmt.Sprintf("not a word number: %q", value)
		return
	}
	if err := m.engine.Jump(n - 1); err != nil {
		if errors.Is(err, engine.ErrIndexOutOfRange) {
			m.notice = fmt.Sprintf("word %d is outside 1-%d", n, m.status.Total)
			return
		}
		m.notice = err.Error()
	}
}

func (m *Model) adjustWPM(delta int) {
	wpm := pacing.ClampWPM(int(m.status.WPM) + delta)
	m.engine.SetWPM(float64(wpm))
}

func (m *Model) reloadText() {
	if m.reload == nil {
		return
	}
	source, err := m.reload()
	if err != nil {
		m.logger.Warn("failed to reload text", "error", err)
		m.notice = fmt.Sprintf("reload failed: %v", err)
		return
	}
	st := m.engine.Status()
	n := m.engine.LoadAt(source, st.Position, st.Elapsed)
	m.logger.Info("text reloaded", "words", n)
	m.notice = fmt.Sprintf("reloaded %d words", n)
	m.refresh()
}

// refresh re-reads the engine status and tracks reading runs across
// state transitions.
func (m *Model) refresh() {
	m.status = m.engine.Status()
	m.observeRun()
}

func (m *Model) observeRun() {
	st := m.status
	switch st.State {
	case engine.StatePlaying:
		if !m.run.active {
			m.run = runState{
				active:       true,
				startedAt:    m.now(),
				startPos:     st.Position,
				startElapsed: st.Elapsed,
			}
		}
		m.run.lastPos = st.Position
		m.run.lastElapsed = st.Elapsed
	case engine.StatePaused:
		if m.run.active {
			m.run.lastPos = st.Position
			m.run.lastElapsed = st.Elapsed
		}
	case engine.StateFinished:
		if m.run.active {
			m.run.lastPos = st.Total
			m.run.lastElapsed = st.Elapsed
			m.finishRun(true)
		}
	case engine.StateIdle:
		if m.run.active {
			m.finishRun(false)
		}
	}
}

func (m *Model) finishRun(completed bool) {
	r := m.run
	m.run = runState{}
	wordsRead := max(r.lastPos-r.startPos, 0)
	elapsedMs := max((r.lastElapsed - r.startElapsed).Milliseconds(), 0)
	if wordsRead == 0 && elapsedMs == 0 {
		return
	}
	run := model.Run{
		StartedAt:    r.startedAt,
		EndedAt:      m.now(),
		Source:       m.source,
		Words:        m.status.Total,
		WordsRead:    wordsRead,
		WPM:          int(m.status.WPM),
		SmartReading: m.status.SmartReading,
		ElapsedMs:    elapsedMs,
		Completed:    completed,
	}
	m.logger.Debug("run ended", "words_read", wordsRead, "elapsed_ms", elapsedMs, "completed", completed)
	if m.runs == nil {
		return
	}
	if _, err := m.runs.InsertRun(context.Background(), run); err != nil {
		m.logger.Error("failed to save run", "error", err)
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.config.Tick, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *Model) waitForChange() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	ctx := m.ctx
	w := m.watcher
	return func() tea.Msg {
		if err := w.Next(ctx); err != nil {
			return nil
		}
		return reloadMsg{}
	}
}

func (m *Model) renderCard() string {
	st := m.status
	text := wordText(st)
	style := wordStyle
	if st.Empty() || st.Finished() {
		style = markerStyle
	}
	width := m.width - style.GetHorizontalFrameSize()
	return style.Render(strings.Join(wrapCells(text, width), "\n"))
}

func (m *Model) renderStatus() string {
	st := m.status
	percent := 0.0
	if st.Total > 0 {
		percent = float64(st.DisplayPosition()) / float64(st.Total)
		if st.State == engine.StateIdle && st.Position == 0 {
			percent = 0
		}
	}
	return statusStyle.Render(statusLine(st)) + "  " + m.progress.ViewAs(percent)
}

func (m *Model) renderFooter() string {
	return footerStyle.Render(helpText(m.status, m.jumping))
}

func statusLine(st engine.Status) string {
	segments := []string{
		fmt.Sprintf("%s %d/%d", stateIcon(st.State), st.DisplayPosition(), st.Total),
		fmt.Sprintf("%s / %s", stats.FormatDuration(st.Elapsed), stats.FormatDuration(st.TotalEstimate)),
		fmt.Sprintf("%d WPM", int(st.WPM)),
	}
	if st.SmartReading {
		segments = append(segments, "smart")
	}
	return strings.Join(segments, " · ")
}

func stateIcon(s engine.State) string {
	switch s {
	case engine.StatePlaying:
		return "▶"
	case engine.StatePaused:
		return "⏸"
	case engine.StateFinished:
		return "✓"
	default:
		return "■"
	}
}

func helpText(st engine.Status, jumping bool) string {
	switch {
	case jumping:
		return "enter: jump • esc: cancel"
	case st.Empty():
		return "q: quit"
	case st.State == engine.StatePlaying:
		return "space: pause • shift+←/→: prev/next • esc: stop • +/-: speed • m: smart • q: quit"
	default:
		return "space: play • shift+←/→: prev/next • home/end: first/last • ':': jump • +/-: speed • m: smart • q: quit"
	}
}
