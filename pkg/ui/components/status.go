// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents a venue connection's status.
type ConnectionStatus struct {
	Name       string
	Connected  bool
	Latency    time.Duration
	LastUpdate time.Time
}

// StatusComponent renders venue connection status.
type StatusComponent struct {
	connections map[string]ConnectionStatus
}

// NewStatusComponent creates a status component listing the given venues
// as disconnected until told otherwise.
func NewStatusComponent(venues ...string) *StatusComponent {
	s := &StatusComponent{connections: make(map[string]ConnectionStatus, len(venues))}
	for _, v := range venues {
		s.connections[v] = ConnectionStatus{Name: v}
	}
	return s
}

// Update updates a connection's status.
func (s *StatusComponent) Update(status ConnectionStatus) {
	s.connections[status.Name] = status
}

// Get returns the status of one venue.
func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	c, ok := s.connections[name]
	return c, ok
}

// Connected returns how many venues are up, and how many are known.
func (s *StatusComponent) Connected() (up, total int) {
	for _, c := range s.connections {
		if c.Connected {
			up++
		}
	}
	return up, len(s.connections)
}

// View renders the status component.
func (s *StatusComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	if len(s.connections) == 0 {
		return headerStyle.Render("VENUES") + "\n\nNo venues configured"
	}

	names := make([]string, 0, len(s.connections))
	for n := range s.connections {
		names = append(names, n)
	}
	sort.Strings(names)

	up, total := s.Connected()
	result := headerStyle.Render(fmt.Sprintf("VENUES (%d/%d up)", up, total)) + "\n\n"

	for _, name := range names {
		conn := s.connections[name]
		status := "● Connected"
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
		if !conn.Connected {
			status = "○ Disconnected"
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
		}

		line := fmt.Sprintf("├─ %-12s %s", name, style.Render(status))
		if conn.Connected && conn.Latency > 0 {
			line += fmt.Sprintf(" (%s)", conn.Latency.Round(time.Millisecond))
		}
		result += line + "\n"
	}

	return result
}
