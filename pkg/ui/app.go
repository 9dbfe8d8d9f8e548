//go:build linux

// Package ui is the interactive dashboard: a command box that accepts free
// text ("monitor 1234 every 0.5s", "list", "stop"), one card per watched
// process tree and an optional process list pane.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ja7ad/treeusage/pkg/intent"
	"github.com/ja7ad/treeusage/pkg/monitor"
	"github.com/ja7ad/treeusage/pkg/pslist"
	"github.com/ja7ad/treeusage/pkg/types"
	"github.com/ja7ad/treeusage/pkg/usage"
)

// rateSmoothing is the EMA alpha applied to the CPU gauge.
const rateSmoothing = 0.5

const maxNotices = 5

type (
	tickMsg  struct{ session string }
	deltaMsg struct {
		delta monitor.Delta
		err   error
	}
	listMsg struct {
		entries []pslist.Entry
		err     error
	}
)

type level int

const (
	levelInfo level = iota
	levelWarn
	levelError
)

// Options configure New. Monitor is required.
type Options struct {
	Monitor *monitor.Monitor
	// List returns the process list pane; nil selects pslist.Current.
	List   func(ctx context.Context) ([]pslist.Entry, error)
	Logger *slog.Logger
}

// App is the bubbletea model of the dashboard. Typed commands drive Monitor;
// each applied Delta schedules the next poll one interval later.
type App struct {
	ctx  context.Context
	mon  *monitor.Monitor
	list func(ctx context.Context) ([]pslist.Entry, error)
	log  *slog.Logger

	input   textinput.Model
	cpuBar  progress.Model
	status  string
	level   level
	notices []string
	entries []pslist.Entry

	width, height int
}

// New returns the dashboard model. ctx bounds every poll and listing.
func New(ctx context.Context, opts Options) *App {
	in := textinput.New()
	in.Placeholder = "monitor 1234 5678 every 0.5s | list | stop"
	in.Prompt = "› "
	in.CharLimit = 256
	in.Focus()

	a := &App{
		ctx:    ctx,
		mon:    opts.Monitor,
		list:   opts.List,
		log:    opts.Logger,
		input:  in,
		cpuBar: progress.New(progress.WithDefaultGradient()),
		status: "Type a command and press Enter.",
	}
	a.cpuBar.Width = 24
	if a.list == nil {
		a.list = pslist.Current
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.input.Width = max(10, a.width-6)
		return a, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			a.mon.Stop()
			return a, tea.Quit
		case tea.KeyEnter:
			text := a.input.Value()
			a.input.SetValue("")
			return a, a.submit(text)
		}

	case tickMsg:
		if msg.session != a.mon.Session() || a.mon.State() != monitor.Monitoring {
			return a, nil
		}
		return a, a.poll()

	case deltaMsg:
		return a, a.apply(msg)

	case listMsg:
		if msg.err != nil {
			a.setStatus(levelError, fmt.Sprintf("Could not list processes: %v", msg.err))
			return a, nil
		}
		a.entries = msg.entries
		a.setStatus(levelInfo, fmt.Sprintf("%d processes.", len(msg.entries)))
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit runs a command typed into the box.
func (a *App) submit(text string) tea.Cmd {
	in := intent.Parse(text)
	a.log.Debug("command", "text", text, "intent", in.Kind)

	switch in.Kind {
	case intent.List:
		a.setStatus(levelInfo, "Listing processes...")
		return a.fetchList()

	case intent.Monitor:
		if err := a.mon.Start(in.PIDs, in.Interval); err != nil {
			a.setStatus(levelWarn, "No process IDs to monitor.")
			return nil
		}
		a.notices = nil
		a.setStatus(levelInfo, fmt.Sprintf("Monitoring %s every %s.", joinPIDs(a.mon.Watched()), a.mon.Interval()))
		return a.poll()

	case intent.Stop:
		a.mon.Stop()
		a.entries = nil
		a.notices = nil
		a.setStatus(levelInfo, "Monitoring stopped.")
		return nil

	default:
		a.setStatus(levelWarn, in.Message)
		return nil
	}
}

func (a *App) poll() tea.Cmd {
	return func() tea.Msg {
		d, err := a.mon.Poll(a.ctx)
		return deltaMsg{delta: d, err: err}
	}
}

func (a *App) fetchList() tea.Cmd {
	return func() tea.Msg {
		entries, err := a.list(a.ctx)
		return listMsg{entries: entries, err: err}
	}
}

// apply handles a finished cycle and schedules the next one.
func (a *App) apply(msg deltaMsg) tea.Cmd {
	switch {
	case errors.Is(msg.err, monitor.ErrIdle):
		return nil
	case msg.err != nil:
		a.setStatus(levelError, fmt.Sprintf("Poll failed: %v", msg.err))
		return nil
	case msg.delta.Discarded:
		return nil
	}

	for _, ev := range msg.delta.Evicted {
		a.notice(fmt.Sprintf("Stopped watching PID %d: %s", ev.PID, reason(ev.Err)))
	}
	if msg.delta.Stopped {
		a.setStatus(levelWarn, "All watched processes are gone. Monitoring stopped.")
		return nil
	}

	session := msg.delta.Session
	return tea.Tick(a.mon.Interval(), func(time.Time) tea.Msg {
		return tickMsg{session: session}
	})
}

func reason(err error) string {
	switch {
	case errors.Is(err, usage.ErrProcessNotFound):
		return "process exited"
	case errors.Is(err, usage.ErrTimeout):
		return "query timed out"
	case errors.Is(err, usage.ErrPermissionDenied):
		return "permission denied"
	default:
		return err.Error()
	}
}

func (a *App) setStatus(l level, s string) {
	a.level, a.status = l, s
}

func (a *App) notice(s string) {
	a.notices = append(a.notices, s)
	if len(a.notices) > maxNotices {
		a.notices = a.notices[len(a.notices)-maxNotices:]
	}
}

func (a *App) View() string {
	sections := []string{
		TitleStyle.Render("treeusage") + "  " + HelpStyle.Render(a.mon.State().String()),
		a.input.View(),
		a.renderStatus(),
	}
	for _, n := range a.notices {
		sections = append(sections, WarningStyle.Render(n))
	}
	if cards := a.renderCards(); cards != "" {
		sections = append(sections, "", cards)
	}
	if len(a.entries) > 0 {
		sections = append(sections, "", a.renderList())
	}
	sections = append(sections, "", HelpStyle.Render("Enter: run command • Esc/Ctrl+C: quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderStatus() string {
	switch a.level {
	case levelWarn:
		return WarningStyle.Render(a.status)
	case levelError:
		return ErrorStyle.Render(a.status)
	default:
		return InfoStyle.Render(a.status)
	}
}

func (a *App) renderCards() string {
	var cards []string
	for _, pid := range a.mon.Watched() {
		cards = append(cards, a.renderCard(pid, a.mon.History(pid)))
	}
	if len(cards) == 0 {
		return ""
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (a *App) renderCard(pid int, history []usage.Snapshot) string {
	if len(history) == 0 {
		return CardStyle.Render(HeaderStyle.Render(fmt.Sprintf("PID %d", pid)) + "\n" + HelpStyle.Render("waiting for first sample"))
	}
	last := history[len(history)-1]

	var cpu float64
	if rates := monitor.Rates(history, rateSmoothing); len(rates) > 0 {
		cpu = rates[len(rates)-1].CPU
	}

	row := func(label, value string) string {
		return LabelStyle.Render(fmt.Sprintf("%-11s", label)) + ValueStyle.Render(value)
	}
	lines := []string{
		HeaderStyle.Render(fmt.Sprintf("%s (%d)", last.Name, pid)),
		row("user", fmt.Sprintf("%.2fs", last.UserTime)),
		row("system", fmt.Sprintf("%.2fs", last.SysTime)),
		row("cpu", fmt.Sprintf("%.0f%%", cpu*100)),
		a.cpuBar.ViewAs(min(cpu, 1)),
		row("peak rss", types.FromKiB(last.MaxRSSKB).Humanized()),
		row("minor flt", fmt.Sprintf("%d", last.MinorFaults)),
		row("major flt", fmt.Sprintf("%d", last.MajorFaults)),
		row("samples", fmt.Sprintf("%d", len(history))),
	}
	return CardStyle.Render(strings.Join(lines, "\n"))
}

func (a *App) renderList() string {
	var b strings.Builder
	_ = pslist.Write(&b, a.entries)
	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if limit := a.height - 20; a.height > 0 && limit > 2 && len(lines) > limit {
		lines = append(lines[:limit], HelpStyle.Render(fmt.Sprintf("… %d more", len(lines)-limit)))
	}
	return strings.Join(lines, "\n")
}

func joinPIDs(pids []int) string {
	s := make([]string, len(pids))
	for i, p := range pids {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ", ")
}
