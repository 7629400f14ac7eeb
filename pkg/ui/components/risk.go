// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// RiskState holds what the risk panel shows. The values come from the risk
// gate; the panel only displays them.
type RiskState struct {
	BreakerTriggered bool
	BreakerEvent     string
	Cumulative       decimal.Decimal
	EventAt          time.Time
	EmergencyStop    bool
}

// RiskComponent renders the loss circuit breaker and emergency stop.
type RiskComponent struct {
	state RiskState
}

// NewRiskComponent creates a risk panel.
func NewRiskComponent(emergencyStop bool) *RiskComponent {
	return &RiskComponent{state: RiskState{EmergencyStop: emergencyStop}}
}

// SetBreaker records a breaker event.
func (r *RiskComponent) SetBreaker(event string, cumulative decimal.Decimal, at time.Time) {
	r.state.BreakerEvent = event
	r.state.Cumulative = cumulative
	r.state.EventAt = at
	r.state.BreakerTriggered = event == "triggered"
}

// SetEmergencyStop records the emergency stop flag.
func (r *RiskComponent) SetEmergencyStop(on bool) {
	r.state.EmergencyStop = on
}

// State returns the displayed state.
func (r *RiskComponent) State() RiskState {
	return r.state
}

// View renders the risk component.
func (r *RiskComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render("RISK"))
	b.WriteString("\n\n")

	if r.state.BreakerTriggered {
		b.WriteString("  Circuit breaker: " + badStyle.Render("TRIPPED") + "\n")
	} else {
		b.WriteString("  Circuit breaker: " + okStyle.Render("armed") + "\n")
	}
	if r.state.BreakerEvent != "" {
		fmt.Fprintf(&b, "  Last event: %s %s\n",
			r.state.BreakerEvent,
			dimStyle.Render(fmt.Sprintf("(window P&L %s at %s)",
				r.state.Cumulative.StringFixed(2), r.state.EventAt.Format("15:04:05"))))
	}

	if r.state.EmergencyStop {
		b.WriteString("  Emergency stop:  " + badStyle.Render("ON") + "\n")
	} else {
		b.WriteString("  Emergency stop:  " + okStyle.Render("off") + "\n")
	}

	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 40)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  s: toggle emergency stop • r: reset breaker"))
	b.WriteString("\n")

	return b.String()
}
