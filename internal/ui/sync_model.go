package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/mcao2/x-seed-notes/internal/syncer"
)

// RunFunc runs one sync, reporting progress through the callback
type RunFunc func(ctx context.Context, progress func(syncer.Event)) (*syncer.Report, error)

// State represents the current phase of the sync view
type State int

const (
	StateFetching State = iota
	StateProcessing
	StateDone
)

const (
	maxLogLines     = 6
	defaultBoxWidth = 60
)

// EventMsg carries one pipeline event and the channel to keep reading
type EventMsg struct {
	Event   syncer.Event
	Channel <-chan syncer.Event
}

// SyncFinishedMsg is sent once the run returned
type SyncFinishedMsg struct {
	Report *syncer.Report
	Err    error
}

type runOutcome struct {
	report *syncer.Report
	err    error
}

// SyncModel is the bubbletea model shown while a sync runs
type SyncModel struct {
	run    RunFunc
	ctx    context.Context
	cancel context.CancelFunc

	state      State
	width      int
	height     int
	spinner    spinner.Model
	progress   progress.Model
	styles     Styles
	keys       KeyMap
	showLog    bool
	cancelling bool

	total   int
	done    int
	skipped int
	current string
	log     []string

	outcome *runOutcome
	report  *syncer.Report
	err     error
}

// NewSyncModel creates the sync view for run
func NewSyncModel(ctx context.Context, run RunFunc) *SyncModel {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPrimary))

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)
	p.Width = defaultBoxWidth - 8

	return &SyncModel{
		run:      run,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateFetching,
		spinner:  s,
		progress: p,
		styles:   DefaultStyles(),
		keys:     DefaultKeyMap(),
		showLog:  true,
		outcome:  &runOutcome{},
	}
}

// Init starts the spinner and the run
func (m *SyncModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun())
}

func (m *SyncModel) startRun() tea.Cmd {
	ch := make(chan syncer.Event)
	outcome := m.outcome

	go func() {
		defer close(ch)
		outcome.report, outcome.err = m.run(m.ctx, func(e syncer.Event) {
			select {
			case ch <- e:
			case <-m.ctx.Done():
			}
		})
	}()

	return m.waitForEvent(ch)
}

// waitForEvent reads the next event; a closed channel means the run returned
func (m *SyncModel) waitForEvent(ch <-chan syncer.Event) tea.Cmd {
	outcome := m.outcome
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return SyncFinishedMsg{Report: outcome.report, Err: outcome.err}
		}
		return EventMsg{Event: e, Channel: ch}
	}
}

// Update handles messages
func (m *SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(msg.Width, defaultBoxWidth) - 8

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case EventMsg:
		cmd := m.applyEvent(msg.Event)
		return m, tea.Batch(cmd, m.waitForEvent(msg.Channel))

	case SyncFinishedMsg:
		m.report = msg.Report
		m.err = msg.Err
		m.state = StateDone
		if m.cancelling {
			return m, tea.Quit
		}
		return m, m.progress.SetPercent(1)
	}

	return m, nil
}

func (m *SyncModel) applyEvent(e syncer.Event) tea.Cmd {
	switch e.Kind {
	case syncer.EventSkipped:
		m.skipped++
	case syncer.EventFetched:
		m.total = e.Total
		m.state = StateProcessing
	case syncer.EventEnriching:
		m.current = fmt.Sprintf("@%s: %s", e.Post.AuthorHandle, firstLine(e.Post.Text))
	case syncer.EventWritten:
		m.done++
		line := m.styles.Success.Render(MarkOK) + " " + filepath.Base(e.Path)
		if e.Fallback {
			line += m.styles.Warning.Render(" (fallback)")
		}
		m.appendLog(line)
	case syncer.EventFailed:
		m.done++
		m.appendLog(m.styles.Error.Render(MarkFail) + " " + e.Post.ID + ": " + errString(e.Err))
	}

	if m.total == 0 {
		return nil
	}
	return m.progress.SetPercent(float64(m.done) / float64(m.total))
}

func (m *SyncModel) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m *SyncModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keyMatches(msg, m.keys.Quit):
		if m.state == StateDone {
			return m, tea.Quit
		}
		// Let the runner stop between posts; quit when it reports back.
		m.cancelling = true
		m.cancel()
		return m, nil
	case keyMatches(msg, m.keys.Details):
		m.showLog = !m.showLog
	}
	return m, nil
}

// View renders the current phase
func (m *SyncModel) View() string {
	var content string
	switch m.state {
	case StateFetching:
		content = m.fetchingView()
	case StateProcessing:
		content = m.processingView()
	case StateDone:
		content = m.doneView()
	default:
		return "Unknown state"
	}

	if m.width > 0 && m.height > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	return content
}

func (m *SyncModel) fetchingView() string {
	title := m.styles.Title.Render("🌱 x-seed-notes")
	status := m.spinner.View() + " Fetching bookmarks..."
	if m.cancelling {
		status = m.styles.Warning.Render("Stopping...")
	}
	help := m.renderHelpLine([]helpEntry{{"q", "cancel"}})
	return m.styles.Border.Render(lipgloss.JoinVertical(lipgloss.Center, title, "", status)) + "\n" + help
}

func (m *SyncModel) processingView() string {
	title := m.styles.Title.Render("🌱 x-seed-notes")
	counts := fmt.Sprintf("%d/%d new bookmarks", m.done, m.total)
	if m.skipped > 0 {
		counts += m.styles.Muted.Render(fmt.Sprintf("  (%d already synced)", m.skipped))
	}

	status := m.spinner.View() + " " + m.truncate(m.current)
	if m.cancelling {
		status = m.styles.Warning.Render("Stopping after the current note...")
	}

	rows := []string{title, "", counts, m.progress.View(), "", status}
	if m.showLog && len(m.log) > 0 {
		rows = append(rows, "")
		for _, l := range m.log {
			rows = append(rows, m.truncate(l))
		}
	}

	help := m.renderHelpLine([]helpEntry{{"d", "toggle log"}, {"q", "cancel"}})
	return m.styles.Border.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)) + "\n" + help
}

func (m *SyncModel) doneView() string {
	title := m.styles.Title.Render("🌱 x-seed-notes")
	body := FormatReport(m.styles, m.report, m.err)
	help := m.renderHelpLine([]helpEntry{{"q", "quit"}})
	return m.styles.Border.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body)) + "\n" + help
}

func (m *SyncModel) truncate(s string) string {
	width := m.progress.Width
	if width <= 0 {
		width = defaultBoxWidth - 8
	}
	return runewidth.Truncate(s, width, "…")
}

// Report returns the outcome once the program exited
func (m *SyncModel) Report() (*syncer.Report, error) {
	return m.report, m.err
}

type helpEntry struct {
	key  string
	desc string
}

func (m *SyncModel) renderHelpLine(entries []helpEntry) string {
	var parts []string
	sep := m.styles.HelpSep.Render(" · ")
	for _, e := range entries {
		parts = append(parts, m.styles.HelpKey.Render(e.key)+" "+m.styles.HelpDesc.Render(e.desc))
	}
	return strings.Join(parts, sep)
}

// RunSync runs the sync inside a full-screen progress view and returns the
// run's report once the user leaves the view
func RunSync(ctx context.Context, run RunFunc) (*syncer.Report, error) {
	m := NewSyncModel(ctx, run)
	defer m.cancel()

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return nil, fmt.Errorf("error running program: %w", err)
	}
	if m.state != StateDone {
		// The program ended without a finished run (e.g. killed); the
		// runner goroutine is stopped through the cancelled context.
		return m.report, context.Canceled
	}
	return m.Report()
}

// FormatReport renders a run summary for the terminal
func FormatReport(s Styles, report *syncer.Report, err error) string {
	var lines []string
	if report != nil {
		switch {
		case report.Fetched == 0:
			lines = append(lines, s.StatusLine(MarkOK, "No bookmarks returned", ""))
		case report.Created == 0 && report.Failed == 0:
			lines = append(lines, s.StatusLine(MarkOK, "Nothing new", fmt.Sprintf("%d already synced", report.Skipped)))
		default:
			lines = append(lines, s.StatusLine(MarkOK, fmt.Sprintf("Created %d note(s)", report.Created), ""))
		}
		if report.Failed > 0 {
			lines = append(lines, s.StatusLine(MarkFail, fmt.Sprintf("%d note(s) failed", report.Failed), "will retry next run"))
		}
		lines = append(lines, s.Muted.Render(fmt.Sprintf("Total notes: %d", report.TotalNotes)))
	}
	if err != nil {
		lines = append(lines, s.StatusLine(MarkFail, "Sync stopped", err.Error()))
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
