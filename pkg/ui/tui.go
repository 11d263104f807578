// Package ui renders the transfer list in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rescp17/transferkit/internal/style"
	"github.com/rescp17/transferkit/internal/util"
	"github.com/rescp17/transferkit/pkg/transfer"
)

// Source is the manager as seen by the UI
type Source interface {
	Filter(f transfer.StatusFilter) []transfer.Transfer
	Summary() transfer.Summary
	Cancel(id string, deleteData bool) error
	Pause(id string) error
	Resume(id string) error
	PauseAll() int
	ResumeAll() int
	ClearComplete() int
	ClearDownloadsToReview()
}

var filters = []transfer.StatusFilter{transfer.FilterAll, transfer.FilterDownloading, transfer.FilterCompleted}

const nameWidth = 32

var columns = []table.Column{
	{Title: "Name", Width: nameWidth},
	{Title: "State", Width: 20},
	{Title: "Progress", Width: 9},
	{Title: "Size", Width: 12},
	{Title: "Down", Width: 12},
	{Title: "Up", Width: 12},
	{Title: "ETA", Width: 10},
}

type tickMsg time.Time

type Model struct {
	source   Source
	filter   int
	views    []transfer.View
	summary  transfer.Summary
	table    table.Model
	progress progress.Model
	spinner  spinner.Model
	interval time.Duration
	notice   string

	// exitWhenDone quits once every listed transfer reached a final state
	exitWhenDone bool
}

type Option func(*Model)

// WithRefreshInterval sets how often the list is reloaded
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Model) {
		m.interval = d
	}
}

// ExitWhenDone makes the program quit after the last transfer finishes
func ExitWhenDone() Option {
	return func(m *Model) {
		m.exitWhenDone = true
	}
}

func New(source Source, opts ...Option) Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	t.SetStyles(style.NewTableStyles())

	m := Model{
		source:   source,
		table:    t,
		progress: style.NewProgress(),
		spinner:  style.NewSpinner(),
		interval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.reload()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.spinner.Tick)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Filter is the active status filter
func (m Model) Filter() transfer.StatusFilter {
	return filters[m.filter]
}

// Views is what the table currently shows
func (m Model) Views() []transfer.View {
	return m.views
}

func (m *Model) reload() {
	m.views = transfer.DescribeAll(m.source.Filter(m.Filter()))
	m.summary = m.source.Summary()

	rows := make([]table.Row, 0, len(m.views))
	for _, v := range m.views {
		rows = append(rows, row(v))
	}
	m.table.SetRows(rows)
	if n := len(rows); n > 0 && m.table.Cursor() >= n {
		m.table.SetCursor(n - 1)
	}
}

func row(v transfer.View) table.Row {
	size := "?"
	if v.TotalSize > 0 {
		size = util.FormatSize(v.TotalSize)
	}
	return table.Row{
		util.Truncate(v.Name, nameWidth),
		v.State,
		fmt.Sprintf("%d%%", v.Progress),
		size,
		util.FormatRate(v.DownloadRate),
		util.FormatRate(v.UploadRate),
		util.FormatETA(v.ETASeconds),
	}
}

func (m Model) selected() (transfer.View, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.views) {
		return transfer.View{}, false
	}
	return m.views[i], true
}

func (m Model) allDone() bool {
	if m.summary.Total == 0 {
		return false
	}
	for _, v := range transfer.DescribeAll(m.source.Filter(transfer.FilterAll)) {
		switch v.State {
		case transfer.StateComplete.String(), transfer.StateError.String(), transfer.StateCanceled.String():
		default:
			return false
		}
	}
	return true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width - 4)
		m.progress.Width = msg.Width - 8
		return m, nil
	case tickMsg:
		m.reload()
		if m.exitWhenDone && m.allDone() {
			return m, tea.Quit
		}
		return m, m.tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, DefaultKeyMap.NextFilter):
			m.filter = (m.filter + 1) % len(filters)
			m.table.SetCursor(0)
			m.reload()
			return m, nil
		case key.Matches(msg, DefaultKeyMap.PrevFilter):
			m.filter = (m.filter + len(filters) - 1) % len(filters)
			m.table.SetCursor(0)
			m.reload()
			return m, nil
		case key.Matches(msg, DefaultKeyMap.Cancel), key.Matches(msg, DefaultKeyMap.Delete):
			m.cancelSelected(key.Matches(msg, DefaultKeyMap.Delete))
			m.reload()
			return m, nil
		case key.Matches(msg, DefaultKeyMap.Review):
			m.source.ClearDownloadsToReview()
			m.reload()
			return m, nil
		case key.Matches(msg, DefaultKeyMap.Pause):
			m.togglePause()
			m.reload()
			return m, nil
		case key.Matches(msg, DefaultKeyMap.PauseAll):
			m.notice = style.SuccessStyle.Render(fmt.Sprintf("Paused %d", m.source.PauseAll()))
			m.reload()
			return m, nil
		case key.Matches(msg, DefaultKeyMap.ResumeAll):
			m.notice = style.SuccessStyle.Render(fmt.Sprintf("Resumed %d", m.source.ResumeAll()))
			m.reload()
			return m, nil
		case key.Matches(msg, DefaultKeyMap.Clear):
			m.notice = style.SuccessStyle.Render(fmt.Sprintf("Cleared %d finished", m.source.ClearComplete()))
			m.table.SetCursor(0)
			m.reload()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) cancelSelected(deleteData bool) {
	v, ok := m.selected()
	if !ok {
		return
	}
	if err := m.source.Cancel(v.ID, deleteData); err != nil {
		m.notice = style.ErrorStyle.Render(err.Error())
		return
	}
	if deleteData {
		m.notice = style.SuccessStyle.Render(fmt.Sprintf("Removed %s and its data", v.Name))
	} else {
		m.notice = style.SuccessStyle.Render(fmt.Sprintf("Removed %s", v.Name))
	}
}

func (m *Model) togglePause() {
	v, ok := m.selected()
	if !ok {
		return
	}
	var err error
	if v.State == transfer.StatePaused.String() {
		err = m.source.Resume(v.ID)
	} else {
		err = m.source.Pause(v.ID)
	}
	if err != nil {
		m.notice = style.ErrorStyle.Render(err.Error())
		return
	}
	m.notice = ""
}

func (m Model) tabs() string {
	labels := make([]string, 0, len(filters))
	for i, f := range filters {
		label := strings.ToUpper(f.String())
		if i == m.filter {
			labels = append(labels, style.ActiveTabStyle.Render(label))
		} else {
			labels = append(labels, style.InactiveTabStyle.Render(label))
		}
	}
	return strings.Join(labels, " ")
}

func (m Model) detail() string {
	v, ok := m.selected()
	if !ok {
		return style.HelpStyle.Render("No transfers")
	}
	line := fmt.Sprintf("%s  %s", style.HighlightFontStyle.Render(v.Name), v.State)
	if v.Error != "" {
		line += "  " + style.ErrorStyle.Render(v.Error)
	}
	return line + "\n" + m.progress.ViewAs(float64(v.Progress)/100)
}

func (m Model) footer() string {
	s := m.summary
	text := fmt.Sprintf("%d transfers  ↓ %s  ↑ %s", s.Total, util.FormatRate(s.DownloadRate), util.FormatRate(s.UploadRate))
	if s.Paused > 0 {
		text += fmt.Sprintf("  %d paused", s.Paused)
	}
	if s.DownloadsToReview > 0 {
		text += fmt.Sprintf("  %d new", s.DownloadsToReview)
	}
	if s.Downloading+s.Uploading > 0 {
		return m.spinner.View() + " " + style.FooterStyle.Render(text)
	}
	return style.FooterStyle.Render(text)
}

func (m Model) help() string {
	parts := make([]string, 0, 9)
	for _, b := range DefaultKeyMap.help() {
		parts = append(parts, fmt.Sprintf("%s %s", b.Help().Key, b.Help().Desc))
	}
	return style.HelpStyle.Render(strings.Join(parts, " • "))
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(style.TitleStyle.Render("transferkit"))
	b.WriteString("\n\n")
	b.WriteString(m.tabs())
	b.WriteString("\n")
	b.WriteString(style.BaseStyle.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(m.detail())
	b.WriteString("\n")
	b.WriteString(m.footer())
	if m.notice != "" {
		b.WriteString("\n" + m.notice)
	}
	b.WriteString("\n" + m.help() + "\n")
	return b.String()
}
