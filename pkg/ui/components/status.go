package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents a connection's status.
type ConnectionStatus struct {
	Name       string
	Connected  bool
	Latency    time.Duration
	LastBlock  uint64
	LastUpdate time.Time
}

// StatusComponent renders connection status.
type StatusComponent struct {
	connections map[string]ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{connections: make(map[string]ConnectionStatus)}
}

// Update updates a connection's status. A zero LastBlock keeps the
// previously seen block.
func (s *StatusComponent) Update(status ConnectionStatus) {
	if prev, ok := s.connections[status.Name]; ok && status.LastBlock == 0 {
		status.LastBlock = prev.LastBlock
	}
	s.connections[status.Name] = status
}

// Get returns the status of the named connection.
func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	c, ok := s.connections[name]
	return c, ok
}

// View renders the status component on a single line.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return "No connections"
	}

	names := make([]string, 0, len(s.connections))
	for name := range s.connections {
		names = append(names, name)
	}
	sort.Strings(names)

	connected := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	disconnected := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		conn := s.connections[name]
		if !conn.Connected {
			parts = append(parts, disconnected.Render("○ "+name+" (disconnected)"))
			continue
		}
		label := "● " + name
		if conn.Latency > 0 {
			label += fmt.Sprintf(" (%dms)", conn.Latency.Milliseconds())
		}
		parts = append(parts, connected.Render(label))
	}

	return strings.Join(parts, "  │  ")
}
