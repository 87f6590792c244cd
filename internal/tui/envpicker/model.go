// Package envpicker is an interactive terminal list for choosing an
// environment before creating a task.
package envpicker

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/taskbridge/internal/environment"
	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/tui/styles"
	"github.com/Iron-Ham/taskbridge/internal/util"
)

// ErrCancelled is returned by Run when the user quits without choosing.
var ErrCancelled = errors.New("environment selection cancelled")

const (
	// maxVisible is the number of rows shown at once.
	maxVisible = 12
	// maxLabelWidth bounds the label column.
	maxLabelWidth = 40
)

// Model is the bubbletea model for the picker.
type Model struct {
	rows      []environment.Row
	visible   []int // indexes into rows
	cursor    int
	offset    int
	filtering bool
	filter    textinput.Model
	keys      keyMap

	chosen    *environment.Row
	cancelled bool
}

// New creates a picker over rows, which are shown in the given order.
func New(rows []environment.Row) Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.PromptStyle = styles.SearchPrompt
	ti.CharLimit = 64
	ti.Width = 40

	m := Model{
		rows:   rows,
		filter: ti,
		keys:   defaultKeys(),
	}
	m.applyFilter()
	return m
}

// Chosen returns the selected row, or nil if none was chosen.
func (m Model) Chosen() *environment.Row {
	return m.chosen
}

// Cancelled reports whether the user quit without choosing.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.filtering {
		return m.updateFilter(keyMsg)
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		m.move(-1)
	case key.Matches(keyMsg, m.keys.Down):
		m.move(1)
	case key.Matches(keyMsg, m.keys.Filter):
		m.filtering = true
		cmd := m.filter.Focus()
		return m, cmd
	case key.Matches(keyMsg, m.keys.Clear):
		m.filter.SetValue("")
		m.applyFilter()
	case key.Matches(keyMsg, m.keys.Choose):
		if len(m.visible) > 0 {
			row := m.rows[m.visible[m.cursor]]
			m.chosen = &row
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	case tea.KeyCtrlC:
		m.cancelled = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) move(delta int) {
	if len(m.visible) == 0 {
		return
	}
	m.cursor = (m.cursor + delta + len(m.visible)) % len(m.visible)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+maxVisible {
		m.offset = m.cursor - maxVisible + 1
	}
}

// applyFilter keeps rows whose label, id, or repository hint contains the
// filter text, ignoring case.
func (m *Model) applyFilter() {
	needle := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for i, row := range m.rows {
		if needle == "" || matches(row, needle) {
			m.visible = append(m.visible, i)
		}
	}
	m.cursor = 0
	m.offset = 0
}

func matches(row environment.Row, needle string) bool {
	fields := []string{row.ID, row.LabelOr("")}
	if row.RepoHints != nil {
		fields = append(fields, *row.RepoHints)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Select an environment"))
	b.WriteString("\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
	}

	if len(m.visible) == 0 {
		b.WriteString(styles.Muted.Render("  no matching environments"))
		b.WriteString("\n")
	}

	end := min(m.offset+maxVisible, len(m.visible))
	for pos := m.offset; pos < end; pos++ {
		line := rowLine(m.rows[m.visible[pos]])
		if pos == m.cursor {
			b.WriteString(styles.ListItemActive.Render(line))
		} else {
			b.WriteString(styles.ListItem.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.visible) > maxVisible {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.visible))))
		b.WriteString("\n")
	}

	b.WriteString(m.helpView())
	return b.String()
}

func (m Model) helpView() string {
	parts := make([]string, 0, len(m.keys.help()))
	for _, k := range m.keys.help() {
		h := k.Help()
		parts = append(parts, styles.HelpKey.Render(h.Key)+" "+h.Desc)
	}
	return styles.HelpBar.Render(strings.Join(parts, "  "))
}

func rowLine(row environment.Row) string {
	var b strings.Builder
	if row.Pinned() {
		b.WriteString(styles.PinnedBadge.Render("★ "))
	} else {
		b.WriteString("  ")
	}
	b.WriteString(util.Truncate(row.LabelOr(row.ID), maxLabelWidth))
	b.WriteString(styles.Muted.Render("  " + row.ID))
	if row.RepoHints != nil {
		b.WriteString(styles.Muted.Render("  (" + *row.RepoHints + ")"))
	}
	return b.String()
}

// Run shows the picker on in/out and returns the chosen row.
func Run(rows []environment.Row, in io.Reader, out io.Writer) (*environment.Row, error) {
	if len(rows) == 0 {
		return nil, errors.New("no environments to choose from")
	}

	final, err := tea.NewProgram(New(rows), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return nil, errors.Wrap(err, "environment picker")
	}
	m := final.(Model)
	if m.chosen == nil {
		return nil, ErrCancelled
	}
	return m.chosen, nil
}
