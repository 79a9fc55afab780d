// Package statsui provides the Bubble Tea report browser.
package statsui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/yiiprof/internal/model"
	"github.com/verte-zerg/yiiprof/internal/stats"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	messageStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0C080"))
)

const (
	colRank = iota
	colAvg
	colTotal
	colCount
	colMin
	colMax
	colCategory
	colMessage
)

// Model implements the Bubble Tea report browser.
type Model struct {
	report   stats.Report
	segments []model.Segment
	visible  []model.Segment

	table  table.Model
	detail viewport.Model

	filterMode  bool
	filterInput textinput.Model
	filter      string

	detailMode bool

	width  int
	height int
}

// NewModel constructs a browser for the report.
func NewModel(report stats.Report) *Model {
	m := &Model{
		report:   report,
		segments: report.Segments(),
		detail:   viewport.New(0, 0),
	}
	m.filterInput = textinput.New()
	m.filterInput.Prompt = "Filter: "
	m.filterInput.Placeholder = "message or category"
	m.filterInput.CharLimit = 0
	m.filterInput.Cursor.SetMode(cursor.CursorBlink)

	m.table = table.New(
		table.WithColumns(tableColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	m.table.SetStyles(tableStyles())
	m.applyFilter()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
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
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		if m.detailMode {
			return m.updateDetail(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "/":
			m.filterMode = true
			m.filterInput.SetValue(m.filter)
			m.filterInput.CursorEnd()
			return m, m.filterInput.Focus()
		case "esc":
			if m.filter != "" {
				m.filter = ""
				m.applyFilter()
			}
			return m, nil
		case "enter":
			if seg, ok := m.selected(); ok {
				m.openDetail(seg)
			}
			return m, nil
		case "g", "home":
			m.table.GotoTop()
			return m, nil
		case "G", "end":
			m.table.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filter = strings.TrimSpace(m.filterInput.Value())
		m.filterMode = false
		m.filterInput.Blur()
		m.applyFilter()
		return m, nil
	case tea.KeyEsc:
		m.filterMode = false
		m.filterInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

func (m *Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace", "enter":
		m.detailMode = false
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	var body string
	if m.detailMode {
		body = m.detail.View()
	} else {
		body = m.renderTable()
	}
	body = fitLines(body, m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = 2
	footerHeight = 1
	if m.filterMode {
		footerHeight = 2
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.table.SetColumns(tableColumns(m.width))
	m.table.SetWidth(m.width)
	m.table.SetHeight(maxInt(1, bodyHeight))
	m.detail.Width = m.width
	m.detail.Height = bodyHeight
	m.filterInput.Width = maxInt(10, m.width-lipgloss.Width(m.filterInput.Prompt)-2)
	if m.detailMode {
		if seg, ok := m.selected(); ok {
			m.detail.SetContent(renderDetail(seg, m.width))
		}
	}
}

func (m *Model) applyFilter() {
	m.visible = filterSegments(m.segments, m.filter)
	rows := make([]table.Row, 0, len(m.visible))
	for _, s := range m.visible {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", s.Rank),
			stats.FormatMs(s.AvgMs),
			stats.FormatMs(s.TotalMs),
			fmt.Sprintf("%d", s.Count),
			stats.FormatMs(s.MinMs),
			stats.FormatMs(s.MaxMs),
			s.Category,
			strings.Join(strings.Fields(s.Message), " "),
		})
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

func (m *Model) selected() (model.Segment, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return model.Segment{}, false
	}
	return m.visible[idx], true
}

func (m *Model) openDetail(seg model.Segment) {
	m.detailMode = true
	m.detail.SetContent(renderDetail(seg, m.width))
	m.detail.GotoTop()
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("yiiprof")
	d := m.report.Diagnostics
	summary := fmt.Sprintf("%d segments  %d samples  %d unmatched ends  %d abandoned begins  inputs: %s",
		len(m.segments), d.Samples, d.UnmatchedEnds, d.AbandonedBegins, strings.Join(m.report.Inputs, ", "))
	if m.filter != "" {
		summary = fmt.Sprintf("filter %q: %d of %d  ", m.filter, len(m.visible), len(m.segments)) + summary
	}
	return title + "\n" + headerStyle.Render(stats.Truncate(summary, m.width))
}

func (m *Model) renderTable() string {
	if len(m.segments) == 0 {
		return "No profiled segments found."
	}
	if len(m.visible) == 0 {
		return fmt.Sprintf("No segments match %q.", m.filter)
	}
	return tableMutedStyle.Render(m.table.View())
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.filterInput.View() + "\n" + headerStyle.Render("enter: apply  esc: cancel")
	}
	if m.detailMode {
		return headerStyle.Render("Scroll: up/down/pgup/pgdn  Back: esc  Quit: q")
	}
	return headerStyle.Render("Move: up/down  Details: enter  Filter: /  Clear filter: esc  Quit: q")
}

func renderDetail(seg model.Segment, width int) string {
	cards := []string{
		metricCard("Rank", fmt.Sprintf("%d", seg.Rank)),
		metricCard("Count", fmt.Sprintf("%d", seg.Count)),
		metricCard("Avg (ms)", stats.FormatMs(seg.AvgMs)),
		metricCard("Total (ms)", stats.FormatMs(seg.TotalMs)),
		metricCard("Min (ms)", stats.FormatMs(seg.MinMs)),
		metricCard("Max (ms)", stats.FormatMs(seg.MaxMs)),
	}
	var row string
	if width < 80 {
		row = strings.Join(cards, "\n")
	} else {
		row = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	lines := []string{
		row,
		"",
		cardTitleStyle.Render("Category"),
		seg.Category,
		"",
		cardTitleStyle.Render("Message"),
		messageStyle.Render(wrapText(seg.Message, maxInt(10, width))),
	}
	return strings.Join(lines, "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func filterSegments(segments []model.Segment, query string) []model.Segment {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return segments
	}
	out := make([]model.Segment, 0, len(segments))
	for _, s := range segments {
		if strings.Contains(strings.ToLower(s.Message), query) || strings.Contains(strings.ToLower(s.Category), query) {
			out = append(out, s)
		}
	}
	return out
}

func tableColumns(width int) []table.Column {
	cols := []table.Column{
		colRank:     {Title: "#", Width: 4},
		colAvg:      {Title: "Avg (ms)", Width: 10},
		colTotal:    {Title: "Total (ms)", Width: 11},
		colCount:    {Title: "Count", Width: 6},
		colMin:      {Title: "Min (ms)", Width: 9},
		colMax:      {Title: "Max (ms)", Width: 9},
		colCategory: {Title: "Category", Width: 18},
		colMessage:  {Title: "Message", Width: 20},
	}
	used := 0
	for i, c := range cols {
		if i == colMessage {
			continue
		}
		// Cell padding adds one column per cell.
		used += c.Width + 1
	}
	cols[colMessage].Width = maxInt(20, width-used-1)
	return cols
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	if lineWidth > width {
		return lipgloss.NewStyle().MaxWidth(width).Render(line)
	}
	return line
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
