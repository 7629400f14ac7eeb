// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Stats holds pipeline statistics for display.
type Stats struct {
	Scans         int64
	Detected      int64
	Enqueued      int64
	Dropped       int64
	Expired       int64
	Approved      int64
	Rejected      int64
	Completed     int64
	Failed        int64
	RealizedPnL   decimal.Decimal
	QueueLen      int
	LastScan      time.Duration
	ScanErrors    int
	RejectReasons map[string]int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the last statistics received.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	v := func(n int64) string { return valueStyle.Render(fmt.Sprintf("%d", n)) }

	pnlStyle := positiveStyle
	if s.stats.RealizedPnL.IsNegative() {
		pnlStyle = negativeStyle
	}

	successRate := float64(0)
	if done := s.stats.Completed + s.stats.Failed; done > 0 {
		successRate = float64(s.stats.Completed) / float64(done) * 100
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("PIPELINE"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s  │  %s %s  │  %s %s  │  %s %s\n",
		style.Render("Scans:"), v(s.stats.Scans),
		style.Render("Detected:"), v(s.stats.Detected),
		style.Render("Queued:"), v(s.stats.Enqueued),
		style.Render("Dropped:"), v(s.stats.Dropped),
	)
	fmt.Fprintf(&b, "%s %s  │  %s %s  │  %s %s  │  %s %s\n",
		style.Render("Approved:"), v(s.stats.Approved),
		style.Render("Rejected:"), v(s.stats.Rejected),
		style.Render("Expired:"), v(s.stats.Expired),
		style.Render("Queue:"), valueStyle.Render(fmt.Sprintf("%d", s.stats.QueueLen)),
	)
	fmt.Fprintf(&b, "%s %s  │  %s %s (%.1f%%)  │  %s %s\n",
		style.Render("Completed:"), v(s.stats.Completed),
		style.Render("Failed:"), v(s.stats.Failed), successRate,
		style.Render("Realized P&L:"), pnlStyle.Render(s.stats.RealizedPnL.StringFixed(2)),
	)
	fmt.Fprintf(&b, "%s %s  │  %s %d\n",
		style.Render("Last scan:"), valueStyle.Render(s.stats.LastScan.Round(time.Millisecond).String()),
		style.Render("Fetch errors:"), s.stats.ScanErrors,
	)

	if len(s.stats.RejectReasons) > 0 {
		reasons := make([]string, 0, len(s.stats.RejectReasons))
		for r := range s.stats.RejectReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)

		parts := make([]string, 0, len(reasons))
		for _, r := range reasons {
			parts = append(parts, fmt.Sprintf("%s=%d", r, s.stats.RejectReasons[r]))
		}
		b.WriteString("\n")
		b.WriteString(style.Render("Rejections: "))
		b.WriteString(strings.Join(parts, "  "))
		b.WriteString("\n")
	}

	return b.String()
}
