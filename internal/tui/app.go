// internal/tui/app.go
//
// Terminal UI for dispatching sweeps. Follows The Elm Architecture via
// bubbletea: the App model holds all state, Update reacts to messages, and
// View renders the current screen. The dispatcher runs in its own goroutine
// and feeds progress events through a channel that Update drains one
// message at a time.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/voxsweep/voxsweep/internal/config"
	"github.com/voxsweep/voxsweep/internal/dispatch"
	"github.com/voxsweep/voxsweep/internal/history"
	"github.com/voxsweep/voxsweep/internal/logbook"
	"github.com/voxsweep/voxsweep/internal/sweep"
)

// appState represents which screen we're on.
type appState int

const (
	stateMenu    appState = iota // main menu
	statePicker                  // sweep picker
	stateRunning                 // live dispatch view
	stateSummary                 // post-sweep summary
	stateHistory                 // past run manifests
)

const logTailLines = 8

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	bannerStyle  = lipgloss.NewStyle().Bold(true)
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Dispatch runs a sweep and is swapped out in tests.
type Dispatch func(ctx context.Context, cfg *config.Config, sw sweep.Sweep, opts dispatch.Options) (dispatch.Summary, error)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithDispatch overrides how the app runs a sweep.
func WithDispatch(d Dispatch) AppOption {
	return func(a *App) {
		if d != nil {
			a.dispatch = d
		}
	}
}

// WithGPU selects the device index for dispatched sweeps.
func WithGPU(gpu int) AppOption {
	return func(a *App) { a.gpu = gpu }
}

// jobLine is one row in the live run view.
type jobLine struct {
	runName string
	status  string
	detail  string
}

// sweepItem implements list.Item for the picker.
type sweepItem struct {
	name string
	runs int
}

func (i sweepItem) Title() string       { return i.name }
func (i sweepItem) Description() string { return fmt.Sprintf("%d active runs", i.runs) }
func (i sweepItem) FilterValue() string { return i.name }

// Messages produced by the dispatch goroutine.
type dispatchEventMsg struct{ ev dispatch.Event }

type dispatchDoneMsg struct {
	summary dispatch.Summary
	err     error
}

// App is the main application model.
type App struct {
	state    appState
	config   *config.Config
	registry *sweep.Registry
	book     *logbook.Logbook
	store    *history.Store
	dispatch Dispatch
	gpu      int

	picker   list.Model
	menu     []string
	menuIdx  int
	statuses []jobLine
	total    int
	sweep    string
	summary  *dispatch.Summary
	runErr   error
	records  []history.Record

	msgs   chan tea.Msg
	cancel context.CancelFunc

	width  int
	height int
}

// NewApp builds the model. The registry already contains built-in and
// project sweep files.
func NewApp(cfg *config.Config, reg *sweep.Registry, opts ...AppOption) (*App, error) {
	book, err := logbook.New(cfg.LogsDir())
	if err != nil {
		return nil, err
	}
	items := []list.Item{}
	for _, name := range reg.Names() {
		s, err := reg.Resolve(name)
		if err != nil {
			return nil, err
		}
		items = append(items, sweepItem{name: name, runs: len(s.Active())})
	}
	picker := list.New(items, list.NewDefaultDelegate(), 0, 0)
	picker.Title = "Select Sweep"
	picker.SetShowStatusBar(false)
	picker.SetFilteringEnabled(false)

	app := &App{
		state:    stateMenu,
		config:   cfg,
		registry: reg,
		book:     book,
		store:    history.NewStore(cfg.RunsDir()),
		dispatch: defaultDispatch,
		picker:   picker,
		menu:     []string{"Run Sweep", "Run History", "Quit"},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app, nil
}

func defaultDispatch(ctx context.Context, cfg *config.Config, sw sweep.Sweep, opts dispatch.Options) (dispatch.Summary, error) {
	return dispatch.New(cfg, opts).RunSweep(ctx, sw)
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.picker.SetSize(msg.Width, msg.Height-2)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case dispatchEventMsg:
		a.handleEvent(msg.ev)
		return a, a.listen()

	case dispatchDoneMsg:
		a.summary = &msg.summary
		a.runErr = msg.err
		a.state = stateSummary
		a.cancel = nil
		return a, nil
	}

	if a.state == statePicker {
		var cmd tea.Cmd
		a.picker, cmd = a.picker.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch a.state {
	case stateMenu:
		switch key {
		case "up", "k":
			if a.menuIdx > 0 {
				a.menuIdx--
			}
		case "down", "j":
			if a.menuIdx < len(a.menu)-1 {
				a.menuIdx++
			}
		case "enter":
			switch a.menu[a.menuIdx] {
			case "Run Sweep":
				a.state = statePicker
			case "Run History":
				records, err := a.store.List()
				if err == nil {
					a.records = records
				}
				a.state = stateHistory
			case "Quit":
				return a, tea.Quit
			}
		case "q", "ctrl+c":
			return a, tea.Quit
		}
	case statePicker:
		switch key {
		case "enter":
			if item, ok := a.picker.SelectedItem().(sweepItem); ok {
				return a, a.startSweep(item.name)
			}
		case "esc":
			a.state = stateMenu
		case "q", "ctrl+c":
			return a, tea.Quit
		default:
			var cmd tea.Cmd
			a.picker, cmd = a.picker.Update(msg)
			return a, cmd
		}
	case stateRunning:
		switch key {
		case "ctrl+c":
			if a.cancel != nil {
				a.cancel()
			}
			return a, nil
		}
	case stateSummary, stateHistory:
		switch key {
		case "enter", "esc":
			a.state = stateMenu
		case "q", "ctrl+c":
			return a, tea.Quit
		}
	}
	return a, nil
}

// startSweep launches the dispatcher in its own goroutine and begins
// draining its events.
func (a *App) startSweep(name string) tea.Cmd {
	sw, err := a.registry.Resolve(name)
	if err != nil {
		a.runErr = err
		a.state = stateSummary
		return nil
	}
	a.sweep = name
	a.statuses = nil
	a.summary = nil
	a.runErr = nil
	a.state = stateRunning

	events := make(chan dispatch.Event, 16)
	a.msgs = make(chan tea.Msg, 16)
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go func() {
		for ev := range events {
			a.msgs <- dispatchEventMsg{ev: ev}
		}
	}()
	go func() {
		summary, err := a.dispatch(ctx, a.config, sw, dispatch.Options{
			GPU:     a.gpu,
			Events:  events,
			Book:    a.book,
			History: a.store,
			Stdout:  io.Discard,
			Stderr:  io.Discard,
		})
		close(events)
		a.msgs <- dispatchDoneMsg{summary: summary, err: err}
	}()
	return a.listen()
}

func (a *App) listen() tea.Cmd {
	msgs := a.msgs
	if msgs == nil {
		return nil
	}
	return func() tea.Msg {
		return <-msgs
	}
}

func (a *App) handleEvent(ev dispatch.Event) {
	switch ev := ev.(type) {
	case dispatch.SweepStarted:
		a.total = ev.Jobs
	case dispatch.JobStarted:
		a.statuses = append(a.statuses, jobLine{runName: ev.RunName, status: "running"})
	case dispatch.StepStarted:
		a.setDetail(ev.RunName, string(ev.Step))
	case dispatch.StepFinished:
		a.setDetail(ev.RunName, fmt.Sprintf("%s exit %d", ev.Step, ev.ExitCode))
	case dispatch.JobFinished:
		for i := range a.statuses {
			if a.statuses[i].runName == ev.Result.RunName {
				a.statuses[i].status = string(ev.Result.Status)
				if ev.Result.Err != nil {
					a.statuses[i].detail = ev.Result.Err.Error()
				}
			}
		}
	}
}

func (a *App) setDetail(runName, detail string) {
	for i := range a.statuses {
		if a.statuses[i].runName == runName {
			a.statuses[i].detail = detail
		}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	switch a.state {
	case stateMenu:
		return a.viewMenu()
	case statePicker:
		return a.picker.View()
	case stateRunning:
		return a.viewRunning()
	case stateSummary:
		return a.viewSummary()
	case stateHistory:
		return a.viewHistory()
	}
	return ""
}

func (a *App) viewMenu() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("voxsweep") + "\n\n")
	for i, entry := range a.menu {
		cursor := "  "
		if i == a.menuIdx {
			cursor = "> "
		}
		b.WriteString(cursor + entry + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("enter: select · q: quit"))
	return b.String()
}

func (a *App) viewRunning() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Sweep %s · GPU %d", a.sweep, a.gpu)) + "\n\n")
	for _, line := range a.statuses {
		b.WriteString(statusGlyph(line.status) + " " + line.runName)
		if line.detail != "" {
			b.WriteString(dimStyle.Render("  " + line.detail))
		}
		b.WriteString("\n")
	}
	done := 0
	for _, line := range a.statuses {
		if line.status != "running" {
			done++
		}
	}
	b.WriteString("\n" + bannerStyle.Render(fmt.Sprintf("%d/%d jobs finished", done, a.total)) + "\n")
	if tail := a.book.Tail(logTailLines); len(tail) > 0 {
		b.WriteString("\n" + dimStyle.Render(strings.Join(tail, "\n")) + "\n")
	}
	b.WriteString(dimStyle.Render("ctrl+c: cancel sweep"))
	return b.String()
}

func (a *App) viewSummary() string {
	var b strings.Builder
	if a.runErr != nil {
		b.WriteString(failStyle.Render("sweep aborted: "+a.runErr.Error()) + "\n")
	}
	if a.summary != nil {
		failed := len(a.summary.Failed())
		verdict := okStyle.Render(fmt.Sprintf("%d jobs succeeded", len(a.summary.Results)-failed))
		if failed > 0 {
			verdict += "  " + failStyle.Render(fmt.Sprintf("%d failed", failed))
		}
		b.WriteString(verdict + "\n")
		for _, r := range a.summary.Results {
			b.WriteString(statusGlyph(string(r.Status)) + " " + r.RunName + "\n")
		}
	}
	b.WriteString("\n" + dimStyle.Render("enter: back to menu"))
	return summaryStyle.Render(b.String())
}

func (a *App) viewHistory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Run History") + "\n\n")
	if len(a.records) == 0 {
		b.WriteString(dimStyle.Render("No runs recorded yet.") + "\n")
	}
	for _, rec := range a.records {
		b.WriteString(statusGlyph(rec.Status) + " " + rec.RunName)
		b.WriteString(dimStyle.Render(fmt.Sprintf("  sweep %s · gpu %d", rec.Sweep, rec.GPU)))
		b.WriteString("\n")
	}
	b.WriteString("\n" + dimStyle.Render("esc: back to menu"))
	return b.String()
}

func statusGlyph(status string) string {
	switch status {
	case string(dispatch.StatusSucceeded):
		return okStyle.Render("✓")
	case string(dispatch.StatusFailed):
		return failStyle.Render("✗")
	case "running":
		return bannerStyle.Render("›")
	default:
		return dimStyle.Render("·")
	}
}
