// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// OpportunityRow represents an opportunity in the list.
type OpportunityRow struct {
	ID         string
	Time       string
	Symbol     string
	Route      string
	SpreadPct  decimal.Decimal
	NetProfit  decimal.Decimal
	Confidence float64
	Status     string
}

// OpportunitiesComponent renders the opportunities list, newest first.
type OpportunitiesComponent struct {
	rows    []OpportunityRow
	maxRows int
	visible int
	offset  int
}

// NewOpportunitiesComponent creates a component keeping maxRows rows and
// showing visible of them at a time.
func NewOpportunitiesComponent(maxRows, visible int) *OpportunitiesComponent {
	if maxRows < 1 {
		maxRows = 1
	}
	if visible < 1 || visible > maxRows {
		visible = maxRows
	}
	return &OpportunitiesComponent{
		rows:    make([]OpportunityRow, 0, maxRows),
		maxRows: maxRows,
		visible: visible,
	}
}

// Add inserts a row, or updates it in place when the id is already listed.
func (o *OpportunitiesComponent) Add(row OpportunityRow) {
	for i := range o.rows {
		if o.rows[i].ID == row.ID {
			o.rows[i] = row
			return
		}
	}
	o.rows = append([]OpportunityRow{row}, o.rows...)
	if len(o.rows) > o.maxRows {
		o.rows = o.rows[:o.maxRows]
	}
}

// Rows returns the listed rows, newest first.
func (o *OpportunitiesComponent) Rows() []OpportunityRow {
	out := make([]OpportunityRow, len(o.rows))
	copy(out, o.rows)
	return out
}

// Clear clears all opportunities.
func (o *OpportunitiesComponent) Clear() {
	o.rows = o.rows[:0]
	o.offset = 0
}

// ScrollUp moves the window towards newer rows.
func (o *OpportunitiesComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

// ScrollDown moves the window towards older rows.
func (o *OpportunitiesComponent) ScrollDown() {
	if o.offset+o.visible < len(o.rows) {
		o.offset++
	}
}

// Offset returns the index of the first visible row.
func (o *OpportunitiesComponent) Offset() int {
	return o.offset
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	if len(o.rows) == 0 {
		return headerStyle.Render("OPPORTUNITIES") + "\n\nNo opportunities detected yet..."
	}

	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	pendingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	end := min(o.offset+o.visible, len(o.rows))

	result := headerStyle.Render(fmt.Sprintf("OPPORTUNITIES (%d-%d of %d)", o.offset+1, end, len(o.rows))) + "\n"
	result += "┌──────────┬───────────┬─────────────────────┬─────────┬───────────┬──────┬────────────┐\n"
	result += "│   Time   │  Symbol   │        Route        │ Spread  │    Net    │ Conf │   Status   │\n"
	result += "├──────────┼───────────┼─────────────────────┼─────────┼───────────┼──────┼────────────┤\n"

	for _, row := range o.rows[o.offset:end] {
		style := pendingStyle
		switch row.Status {
		case "completed":
			style = okStyle
		case "failed", "rejected", "expired":
			style = badStyle
		}

		result += fmt.Sprintf("│ %8s │ %-9s │ %-19s │%8s │%10s │%5.2f │ %s │\n",
			row.Time,
			row.Symbol,
			truncate(row.Route, 19),
			row.SpreadPct.StringFixed(2)+"%",
			row.NetProfit.StringFixed(2),
			row.Confidence,
			style.Render(fmt.Sprintf("%-10s", row.Status)),
		)
	}

	result += "└──────────┴───────────┴─────────────────────┴─────────┴───────────┴──────┴────────────┘"
	return result
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
