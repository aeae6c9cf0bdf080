package monitor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/pdbwatch/internal/store"
)

var (
	gapStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // dim gray

	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	detailStyle    = lipgloss.NewStyle().Padding(0, 1)
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model is the BubbleTea model for the now TUI.
type Model struct {
	context     string
	snap        store.Snapshot
	allEntries  []store.Entry // full sorted set
	entries     []store.Entry // current view (may be filtered)
	table       table.Model
	width       int
	height      int
	quitting    bool
	searching   bool
	searchInput textinput.Model
}

// NewModel creates a TUI model from a completed snapshot.
func NewModel(snap store.Snapshot, kubeContext string) *Model {
	entries := sortEntries(snap)

	cols := []table.Column{
		{Title: "STATUS", Width: 12},
		{Title: "WORKLOAD", Width: 34},
		{Title: "KIND", Width: 12},
		{Title: "REPLICAS", Width: 8},
		{Title: "PDB / SELECTOR", Width: 30},
	}

	rows := make([]table.Row, len(entries))
	for i := range entries {
		rows[i] = entryToRow(&entries[i])
	}

	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240"))
	s.Selected = s.Selected.Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("57"))

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(s),
	)

	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 64

	return &Model{
		snap:        snap,
		table:       t,
		allEntries:  entries,
		entries:     entries,
		context:     kubeContext,
		width:       80,
		height:      24,
		searchInput: ti,
	}
}

// Init satisfies tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles key events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.updateSearch(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			if m.searchInput.Value() != "" {
				m.searchInput.SetValue("")
				m.applyFilter()
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		case "/":
			m.searching = true
			return m, m.searchInput.Focus()
		case "g":
			m.table.GotoTop()
			return m, nil
		case "G":
			m.table.GotoBottom()
			return m, nil
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			n := int(msg.String()[0] - '0')
			if n <= len(m.entries) {
				m.table.SetCursor(n - 1)
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		m.table.SetWidth(m.width)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		case "esc":
			m.searching = false
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			m.applyFilter()
			return m, nil
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		m.table.SetWidth(m.width)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return m, cmd
}

// View renders the full TUI.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteByte('\n')
	b.WriteString(m.table.View())
	b.WriteByte('\n')
	b.WriteString(separatorStyle.Render(strings.Repeat("─", m.width)))
	b.WriteByte('\n')
	b.WriteString(m.detailView())
	b.WriteByte('\n')
	b.WriteString(m.footerView())
	return b.String()
}

func (m *Model) headerView() string {
	ctx := m.context
	if ctx == "" {
		ctx = "(default)"
	}

	title := headerStyle.Render(fmt.Sprintf("pdbwatch · %s · %s",
		ctx, m.snap.At.UTC().Format("2006-01-02 15:04 UTC")))

	totalStr := fmt.Sprintf("Total: %d", m.snap.Summary.Total)
	if len(m.entries) != len(m.allEntries) {
		totalStr = fmt.Sprintf("Showing: %d/%d", len(m.entries), len(m.allEntries))
	}

	degraded := ""
	if m.snap.Degraded() {
		degraded = "  " + gapStyle.Render("DEGRADED")
	}

	counts := headerStyle.Render(fmt.Sprintf(
		"%s  %s  %s%s",
		gapStyle.Render(fmt.Sprintf("Unprotected: %d", m.snap.Summary.Unprotected)),
		okStyle.Render(fmt.Sprintf("Protected: %d", m.snap.Summary.Protected)),
		totalStr,
		degraded,
	))

	return title + "\n" + counts
}

func (m *Model) detailView() string {
	if len(m.entries) == 0 {
		if m.searchInput.Value() != "" {
			return detailStyle.Render(dimStyle.Render("No matches."))
		}
		return detailStyle.Render("No workloads.")
	}

	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.entries) {
		return ""
	}

	e := &m.entries[idx]
	var lines []string

	lines = append(lines, fmt.Sprintf("Selector: %s", e.SelectorKey))
	if e.MatchedPolicy != "" {
		lines = append(lines, fmt.Sprintf("PDB: %s", okStyle.Render(e.MatchedPolicy)))
	} else {
		lines = append(lines, fmt.Sprintf("PDB: %s", gapStyle.Render("none matches this selector")))
	}
	if e.Workload.Replicas != nil {
		lines = append(lines, fmt.Sprintf("Replicas: %d", *e.Workload.Replicas))
	}

	return detailStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) footerView() string {
	if m.searching {
		return " /" + m.searchInput.View()
	}
	help := " q quit · ↑↓/jk navigate · g/G top/bottom · 1-9 jump · / search"
	if m.searchInput.Value() != "" {
		help += " · esc clear"
	}
	return dimStyle.Render(help)
}

func (m *Model) tableHeight() int {
	// Reserve space for header, table chrome, separator, detail panel, and footer.
	reserved := 12
	h := m.height - reserved
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) applyFilter() {
	query := strings.ToLower(m.searchInput.Value())
	if query == "" {
		m.entries = m.allEntries
	} else {
		var filtered []store.Entry
		for i := range m.allEntries {
			e := &m.allEntries[i]
			hay := strings.ToLower(e.Workload.Namespace + " " + e.Workload.Name + " " +
				string(e.Workload.Kind) + " " + e.SelectorKey + " " + e.MatchedPolicy)
			if strings.Contains(hay, query) {
				filtered = append(filtered, m.allEntries[i])
			}
		}
		m.entries = filtered
	}
	m.rebuildRows()
}

func (m *Model) rebuildRows() {
	rows := make([]table.Row, len(m.entries))
	for i := range m.entries {
		rows[i] = entryToRow(&m.entries[i])
	}
	m.table.SetRows(rows)
}

// PlainText returns a non-interactive text representation for piped output.
func PlainText(snap store.Snapshot) string {
	entries := sortEntries(snap)

	var b strings.Builder
	if len(entries) == 0 {
		b.WriteString("No workloads.\n")
	} else {
		fmt.Fprintf(&b, "%-12s %-34s %-12s %-8s %s\n", "STATUS", "WORKLOAD", "KIND", "REPLICAS", "PDB / SELECTOR")
		fmt.Fprintf(&b, "%-12s %-34s %-12s %-8s %s\n", "------", "--------", "----", "--------", "--------------")
		for i := range entries {
			row := entryToRow(&entries[i])
			fmt.Fprintf(&b, "%-12s %-34s %-12s %-8s %s\n", row[0], row[1], row[2], row[3], row[4])
		}
	}

	fmt.Fprintf(&b, "\nSummary: %d with PDBs, %d without (Total: %d)\n",
		snap.Summary.Protected, snap.Summary.Unprotected, snap.Summary.Total)

	if len(snap.Warnings) > 0 {
		sources := make([]string, 0, len(snap.Warnings))
		for s := range snap.Warnings {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		for _, s := range sources {
			fmt.Fprintf(&b, "Warning: %s: %s\n", s, snap.Warnings[s])
		}
	}
	return b.String()
}

// entryToRow converts an audit entry to a table row with plain text (no ANSI).
// Embedding ANSI in cells causes the table to miscalculate column widths
// and truncate escape sequences, bleeding color into adjacent cells/rows.
func entryToRow(e *store.Entry) table.Row {
	status := "UNPROTECTED"
	last := e.SelectorKey
	if e.Status == store.StatusProtected {
		status = "PROTECTED"
		last = e.MatchedPolicy
	}

	replicas := "-"
	if e.Workload.Replicas != nil {
		replicas = strconv.Itoa(int(*e.Workload.Replicas))
	}

	return table.Row{
		status,
		e.Workload.Namespace + "/" + e.Workload.Name,
		string(e.Workload.Kind),
		replicas,
		truncate(last, 30),
	}
}

// sortEntries merges both lists into one sorted view: gaps first, then by
// namespace and name.
func sortEntries(snap store.Snapshot) []store.Entry {
	entries := make([]store.Entry, 0, len(snap.Protected)+len(snap.Unprotected))
	entries = append(entries, snap.Unprotected...)
	entries = append(entries, snap.Protected...)

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Status != entries[j].Status {
			return entries[i].Status == store.StatusUnprotected
		}
		if entries[i].Workload.Namespace != entries[j].Workload.Namespace {
			return entries[i].Workload.Namespace < entries[j].Workload.Namespace
		}
		return entries[i].Workload.Name < entries[j].Workload.Name
	})

	return entries
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
