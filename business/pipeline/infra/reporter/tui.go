package reporter

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	"github.com/fd1az/spatial-arb/business/pipeline/domain"
	riskApp "github.com/fd1az/spatial-arb/business/risk/app"
	"github.com/fd1az/spatial-arb/pkg/ui"
)

// TUI forwards pipeline activity to the Bubble Tea dashboard.
type TUI struct {
	send func(tea.Msg)
}

// NewTUI creates a TUI reporter. A nil send uses ui.Send.
func NewTUI(send func(tea.Msg)) *TUI {
	if send == nil {
		send = ui.Send
	}
	return &TUI{send: send}
}

// Start is a no-op; the program is owned by main.
func (r *TUI) Start(ctx context.Context) error {
	return nil
}

// Report sends an opportunity to the dashboard.
func (r *TUI) Report(opp *arbDomain.Opportunity) {
	if opp == nil {
		return
	}
	r.send(ui.OpportunityMsg{Opportunity: opp})
}

// UpdateScan sends the scan summary and counters.
func (r *TUI) UpdateScan(summary domain.ScanSummary, stats domain.Stats) {
	r.send(ui.ScanMsg{Summary: summary, Stats: stats})
}

// UpdateConnectionStatus sends a venue status.
func (r *TUI) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	r.send(ui.ConnectionStatusMsg{Name: name, Connected: connected, Latency: latency})
}

// BreakerEvent sends a circuit breaker change.
func (r *TUI) BreakerEvent(event riskApp.BreakerEvent, cumulative decimal.Decimal) {
	r.send(ui.BreakerMsg{Event: string(event), Cumulative: cumulative, At: time.Now()})
}

// Stop is a no-op; the program is owned by main.
func (r *TUI) Stop() error {
	return nil
}
