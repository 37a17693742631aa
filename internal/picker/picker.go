package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samhoang/myrepo/internal/plugin"
)

const maxVisibleItems = 15 // rows shown before scrolling

// Item represents one plugin row
type Item struct {
	ID       string // record identifier
	Label    string
	Detail   string // shown dimmed after the label
	Selected bool
}

// ToggleFunc persists a selection change. A non-nil error keeps the old state.
type ToggleFunc func(id string, selected bool) error

// Model is the Bubble Tea model for the favorites picker.
// Every toggle is persisted through onToggle as it happens.
type Model struct {
	title       string
	items       []Item
	selected    map[string]bool
	onToggle    ToggleFunc
	cursor      int
	offset      int // first visible row
	searchInput textinput.Model
	searching   bool
	status      string
	toggled     int
	quitting    bool
}

// New creates a new picker model
func New(title string, items []Item, onToggle ToggleFunc) Model {
	search := textinput.New()
	search.Placeholder = "name or hash"
	search.CharLimit = 64

	selected := make(map[string]bool)
	for _, item := range items {
		if item.Selected {
			selected[item.ID] = true
		}
	}

	return Model{
		title:       title,
		items:       items,
		selected:    selected,
		onToggle:    onToggle,
		searchInput: search,
	}
}

// Selected returns the IDs of selected items in list order
func (m Model) Selected() []string {
	var result []string
	for _, item := range m.items {
		if m.selected[item.ID] {
			result = append(result, item.ID)
		}
	}
	return result
}

// Toggled returns how many toggles were persisted
func (m Model) Toggled() int {
	return m.toggled
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// visible returns items matching the current search query
func (m Model) visible() []Item {
	query := m.searchInput.Value()
	if query == "" {
		return m.items
	}

	matcher := plugin.NewMatcher(query)
	var filtered []Item
	for _, item := range m.items {
		if matcher.MatchString(item.Label) || strings.HasPrefix(item.ID, strings.ToLower(query)) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// move shifts the cursor by delta, wrapping at both ends, and scrolls
// only as far as needed to keep it on screen
func (m *Model) move(delta int) {
	n := len(m.visible())
	if n == 0 {
		m.cursor, m.offset = 0, 0
		return
	}
	m.cursor = (m.cursor + delta + n) % n
	m.offset = min(m.offset, m.cursor)
	m.offset = max(m.offset, m.cursor-maxVisibleItems+1)
}

func (m *Model) toggleCurrent() {
	items := m.visible()
	if len(items) == 0 || m.cursor >= len(items) {
		return
	}

	item := items[m.cursor]
	next := !m.selected[item.ID]
	if m.onToggle != nil {
		if err := m.onToggle(item.ID, next); err != nil {
			m.status = fmt.Sprintf("could not save %s: %v", item.Label, err)
			return
		}
	}
	m.selected[item.ID] = next
	m.toggled++
	if next {
		m.status = "★ " + item.Label
	} else {
		m.status = "☆ " + item.Label
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.searching {
		return m.updateSearch(keyMsg)
	}

	switch {
	case key.Matches(keyMsg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(keyMsg, keys.Search):
		m.searching = true
		m.searchInput.Focus()
		return m, textinput.Blink
	case key.Matches(keyMsg, keys.Up):
		m.move(-1)
	case key.Matches(keyMsg, keys.Down):
		m.move(1)
	case key.Matches(keyMsg, keys.Toggle):
		m.toggleCurrent()
	}
	return m, nil
}

// updateSearch feeds keys to the query box. Esc clears the filter, enter
// keeps it and returns to the list.
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, searchKeys.Clear):
		m.searchInput.SetValue("")
	case key.Matches(msg, searchKeys.Apply):
	default:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.cursor, m.offset = 0, 0
		return m, cmd
	}
	m.searching = false
	m.searchInput.Blur()
	m.cursor, m.offset = 0, 0
	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	starStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	lines := []string{
		titleStyle.Render(m.title) + faintStyle.Render(fmt.Sprintf("  %d/%d favorited", len(m.Selected()), len(m.items))),
		"",
	}
	switch query := m.searchInput.Value(); {
	case m.searching:
		lines = append(lines, "🔍 "+m.searchInput.View(), "")
	case query != "":
		lines = append(lines, faintStyle.Render("Filter: "+query+" (/ to edit)"), "")
	}

	lines = append(lines, m.rows()...)
	lines = append(lines, "")
	if m.status != "" {
		lines = append(lines, m.status)
	}
	lines = append(lines, help.New().ShortHelpView(keys.ShortHelp()))

	return strings.Join(lines, "\n")
}

// rows renders the scrolled window of visible items with counts of what
// is hidden above and below
func (m Model) rows() []string {
	items := m.visible()
	if len(items) == 0 {
		if m.searchInput.Value() != "" {
			return []string{faintStyle.Render("  (no matching plugins)")}
		}
		return []string{faintStyle.Render("  (no plugins, run fetch first)")}
	}

	end := min(m.offset+maxVisibleItems, len(items))
	var out []string
	if m.offset > 0 {
		out = append(out, faintStyle.Render(fmt.Sprintf("  ↑ %d more above", m.offset)))
	}
	for i, item := range items[m.offset:end] {
		pointer, star := "  ", "[ ]"
		if m.offset+i == m.cursor {
			pointer = cursorStyle.Render("> ")
		}
		if m.selected[item.ID] {
			star = starStyle.Render("[★]")
		}
		row := pointer + star + " " + item.Label
		if item.Detail != "" {
			row += " " + faintStyle.Render(item.Detail)
		}
		out = append(out, row)
	}
	if hidden := len(items) - end; hidden > 0 {
		out = append(out, faintStyle.Render(fmt.Sprintf("  ↓ %d more below", hidden)))
	}
	return out
}

type keyMap struct {
	Up, Down, Toggle, Search, Quit key.Binding
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Search, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "favorite")),
	Search: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Quit:   key.NewBinding(key.WithKeys("q", "enter", "esc", "ctrl+c"), key.WithHelp("q", "done")),
}

var searchKeys = struct {
	Clear, Apply key.Binding
}{
	Clear: key.NewBinding(key.WithKeys("esc")),
	Apply: key.NewBinding(key.WithKeys("enter")),
}

// Run runs the picker until the user quits and returns the final selection.
// Changes are already persisted by onToggle.
func Run(title string, items []Item, onToggle ToggleFunc) (Model, error) {
	final, err := tea.NewProgram(New(title, items, onToggle)).Run()
	if err != nil {
		return Model{}, err
	}
	return final.(Model), nil
}

// ItemsFromRecords builds picker rows from working list records
func ItemsFromRecords(records []plugin.Record) []Item {
	items := make([]Item, 0, len(records))
	for _, r := range records {
		detail := r.Author()
		if v := r.Version(); v != "" {
			if detail != "" {
				detail += " "
			}
			detail += "v" + v
		}
		items = append(items, Item{
			ID:       r.Hash(),
			Label:    r.Name(),
			Detail:   detail,
			Selected: r.IsFavorite(),
		})
	}
	return items
}
