// Package tui provides the Bubble Tea redundancy checker interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/curricheck/internal/analysis"
	"github.com/verte-zerg/curricheck/internal/apperr"
	"github.com/verte-zerg/curricheck/internal/model"
	"github.com/verte-zerg/curricheck/internal/present"
	"github.com/verte-zerg/curricheck/internal/session"
	"github.com/verte-zerg/curricheck/internal/sheet"
	"github.com/verte-zerg/curricheck/internal/store"
)

const (
	paneDataset = iota
	paneResults
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	activeTab  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveTab = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B0B0B0")).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pairStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B9BD5")).Bold(true)
)

// analysisDoneMsg carries the outcome of one request back into Update.
type analysisDoneMsg struct {
	ticket    session.Ticket
	pairs     []model.RedundancyPair
	err       error
	startedAt time.Time
	endedAt   time.Time
}

// Model implements the Bubble Tea checker UI. All session transitions run
// inside Update; the analysis request is the only work done in a command.
type Model struct {
	sess     *session.Session
	analyzer analysis.Analyzer
	history  *store.Store
	endpoint string

	width  int
	height int

	pane      int
	dataset   table.Model
	results   viewport.Model
	spinner   spinner.Model
	pathInput textinput.Model
	prompting bool

	status string
	errMsg string
}

// NewModel constructs a checker model. history may be nil.
func NewModel(sess *session.Session, analyzer analysis.Analyzer, history *store.Store, endpoint string) *Model {
	m := &Model{
		sess:     sess,
		analyzer: analyzer,
		history:  history,
		endpoint: endpoint,
		results:  viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.dataset = table.New(table.WithHeight(1), table.WithFocused(true))
	m.dataset.SetStyles(datasetTableStyles())
	m.pathInput = textinput.New()
	m.pathInput.Prompt = "Open .xlsx: "
	m.pathInput.Placeholder = "path/to/curriculum.xlsx"
	m.pathInput.Cursor.SetMode(cursor.CursorBlink)
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Open loads a spreadsheet from disk into the session.
func (m *Model) Open(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return apperr.Validation("Please choose a file.")
	}
	name := filepath.Base(path)
	if err := sheet.ValidateName(name); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.Validation(fmt.Sprintf("Could not read %s: %v", name, err))
	}
	if err := m.sess.Upload(model.UploadedFile{Name: name, Data: data}, sheet.Parse); err != nil {
		return err
	}
	log.Printf("loaded %s (%d bytes)", name, len(data))
	m.pane = paneDataset
	m.refresh()
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case analysisDoneMsg:
		m.finishAnalysis(msg)
		return m, nil
	case spinner.TickMsg:
		if m.sess.State() != session.Analyzing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.prompting {
			return m.updatePrompt(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "o":
			m.prompting = true
			m.errMsg = ""
			m.pathInput.SetValue("")
			return m, m.pathInput.Focus()
		case "a":
			return m, m.startAnalysis()
		case "c":
			m.sess.Clear()
			m.errMsg = ""
			m.status = "Cleared."
			m.refresh()
			return m, nil
		case "tab":
			m.pane = (m.pane + 1) % 2
			return m, nil
		default:
			var cmd tea.Cmd
			if m.pane == paneDataset {
				m.dataset, cmd = m.dataset.Update(msg)
			} else {
				m.results, cmd = m.results.Update(msg)
			}
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompting = false
		m.pathInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.prompting = false
		m.pathInput.Blur()
		path := m.pathInput.Value()
		if err := m.Open(path); err != nil {
			m.errMsg = apperr.UserMessage(err)
			return m, nil
		}
		m.errMsg = ""
		m.status = fmt.Sprintf("Loaded %s.", filepath.Base(path))
		return m, nil
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m *Model) startAnalysis() tea.Cmd {
	ticket, err := m.sess.BeginAnalysis()
	if err != nil {
		if errors.Is(err, session.ErrAnalysisInFlight) {
			m.errMsg = "An analysis is already running; wait for it to finish."
		} else {
			m.errMsg = apperr.UserMessage(err)
		}
		return nil
	}
	m.errMsg = ""
	m.status = "Checking redundancy..."
	log.Printf("analysis started for %s (generation %d)", ticket.File.Name, ticket.Generation)
	analyzer := m.analyzer
	run := func() tea.Msg {
		started := time.Now()
		pairs, err := analyzer.Analyze(context.Background(), ticket.File)
		return analysisDoneMsg{ticket: ticket, pairs: pairs, err: err, startedAt: started, endedAt: time.Now()}
	}
	return tea.Batch(m.spinner.Tick, run)
}

func (m *Model) finishAnalysis(msg analysisDoneMsg) {
	err := m.sess.CompleteAnalysis(msg.ticket, msg.pairs, msg.err)
	if errors.Is(err, session.ErrStaleResult) {
		log.Printf("discarded stale analysis result (generation %d)", msg.ticket.Generation)
		m.status = "Discarded result for a file that is no longer loaded."
		return
	}
	m.record(msg)
	if err != nil {
		log.Printf("analysis failed: %v", err)
		m.errMsg = apperr.UserMessage(err)
		m.status = ""
		m.refresh()
		return
	}
	m.errMsg = ""
	m.status = fmt.Sprintf("Analysis finished: %d redundant pair(s).", len(msg.pairs))
	m.pane = paneResults
	m.refresh()
}

func (m *Model) record(msg analysisDoneMsg) {
	if m.history == nil {
		return
	}
	rec := store.NewRecord(msg.ticket.File.Name, msg.startedAt, msg.endedAt, msg.pairs, msg.err)
	if _, err := m.history.InsertAnalysis(context.Background(), rec); err != nil {
		log.Printf("failed to save analysis history: %v", err)
	}
}

// refresh rebuilds the dataset table and results view from the session.
func (m *Model) refresh() {
	snap := m.sess.Snapshot()
	cols, rows := buildDatasetTable(present.Dataset(snap.Dataset))
	m.dataset.SetRows(nil)
	m.dataset.SetColumns(cols)
	m.dataset.SetRows(rows)
	m.dataset.GotoTop()
	m.results.SetContent(renderResults(snap.Pairs))
	m.results.GotoTop()
	m.updateLayout()
}

func renderResults(pairs []model.RedundancyPair) string {
	view := present.Results(pairs)
	if view.Empty() {
		return mutedStyle.Render(view.Placeholder)
	}
	lines := make([]string, 0, len(pairs)+2)
	for _, p := range pairs {
		lines = append(lines, pairStyle.Render(p.First+" ↔ "+p.Second)+" "+scoreStyle.Render("("+present.Similarity(p.Similarity)+")"))
	}
	if summary, err := present.Summarize(pairs); err == nil {
		lines = append(lines, "", mutedStyle.Render(summary.Line()))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.dataset.SetWidth(m.width)
	m.dataset.SetHeight(maxInt(1, bodyHeight-1))
	m.results.Width = m.width
	m.results.Height = bodyHeight
	m.pathInput.Width = maxInt(10, m.width-lipgloss.Width(m.pathInput.Prompt)-2)
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeTab.Render("X"))
	headerHeight = tabsHeight + 2
	footerHeight = 2
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) renderHeader() string {
	snap := m.sess.Snapshot()
	file := "no file"
	if snap.File != nil {
		file = snap.File.Name
	}
	title := titleStyle.Render("Curriculum Redundancy Checker")
	info := mutedStyle.Render(truncateLine(fmt.Sprintf("File: %s  State: %s  Service: %s", file, snap.State, m.endpoint), m.width))
	return title + "\n" + info + "\n" + m.renderTabs()
}

func (m *Model) renderTabs() string {
	titles := []string{"Uploaded Dataset", "Redundant Course Pairs"}
	parts := make([]string, len(titles))
	for i, t := range titles {
		if i == m.pane {
			parts[i] = activeTab.Render(t)
		} else {
			parts[i] = inactiveTab.Render(t)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderBody() string {
	if m.prompting {
		return m.pathInput.View()
	}
	if m.pane == paneResults {
		if m.sess.State() == session.Analyzing {
			return m.spinner.View() + " Checking redundancy..."
		}
		return m.results.View()
	}
	if m.sess.Snapshot().Dataset.Empty() {
		return mutedStyle.Render(present.NoDataText)
	}
	return m.dataset.View()
}

func (m *Model) renderFooter() string {
	help := "open: o  analyze: a  clear: c  switch pane: tab  scroll: up/down  quit: q"
	if m.prompting {
		help = "enter: load  esc: cancel"
	}
	line := statusStyle.Render(truncateLine(m.status, m.width))
	if m.errMsg != "" {
		line = errorStyle.Render(truncateLine(m.errMsg, m.width))
	}
	return line + "\n" + mutedStyle.Render(truncateLine(help, m.width))
}
