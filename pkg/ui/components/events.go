package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// EventRow represents a decoded contract event in the list.
type EventRow struct {
	Timestamp   string
	BlockNumber uint64
	Contract    string
	Name        string
	Summary     string
	Removed     bool
}

// EventsComponent renders the most recent contract events, newest first.
type EventsComponent struct {
	rows    []EventRow
	maxRows int
	visible int
	offset  int
}

// NewEventsComponent creates an events component keeping maxRows rows and
// showing visible of them at a time.
func NewEventsComponent(maxRows, visible int) *EventsComponent {
	return &EventsComponent{
		rows:    make([]EventRow, 0),
		maxRows: maxRows,
		visible: min(visible, maxRows),
	}
}

// Add adds a new event to the top of the list.
func (e *EventsComponent) Add(row EventRow) {
	e.rows = append([]EventRow{row}, e.rows...)
	if len(e.rows) > e.maxRows {
		e.rows = e.rows[:e.maxRows]
	}
	// keep a scrolled view anchored on the same rows
	if e.offset > 0 {
		e.offset = min(e.offset+1, e.maxOffset())
	}
}

// Len returns the number of stored events.
func (e *EventsComponent) Len() int { return len(e.rows) }

// Clear clears all events.
func (e *EventsComponent) Clear() {
	e.rows = make([]EventRow, 0)
	e.offset = 0
}

// ScrollUp moves the window towards newer events.
func (e *EventsComponent) ScrollUp() {
	e.offset = max(e.offset-1, 0)
}

// ScrollDown moves the window towards older events.
func (e *EventsComponent) ScrollDown() {
	e.offset = min(e.offset+1, e.maxOffset())
}

// Offset returns the scroll position.
func (e *EventsComponent) Offset() int { return e.offset }

func (e *EventsComponent) maxOffset() int {
	return max(len(e.rows)-e.visible, 0)
}

// View renders the events component.
func (e *EventsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	if len(e.rows) == 0 {
		return headerStyle.Render("EVENTS") + "\n\nNo events received yet..."
	}

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")).Bold(true)
	removedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Strikethrough(true)

	end := min(e.offset+e.visible, len(e.rows))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("EVENTS (%d-%d of %d)", e.offset+1, end, len(e.rows))))
	b.WriteString("\n\n")

	for _, row := range e.rows[e.offset:end] {
		name := nameStyle.Render(fmt.Sprintf("%-14s", row.Name))
		if row.Removed {
			name = removedStyle.Render(fmt.Sprintf("%-14s", row.Name))
		}
		b.WriteString(fmt.Sprintf("  %s %s #%-9d %s %s\n",
			dimStyle.Render(row.Timestamp),
			name,
			row.BlockNumber,
			dimStyle.Render(row.Contract),
			row.Summary,
		))
	}

	return b.String()
}
