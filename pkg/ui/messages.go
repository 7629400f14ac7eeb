// Package ui provides the Bubble Tea TUI for the arbitrage pipeline.
package ui

import (
	"time"

	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	pipelineDomain "github.com/fd1az/spatial-arb/business/pipeline/domain"
)

// Message types for TUI updates

// OpportunityMsg is sent when an opportunity is detected or changes status.
type OpportunityMsg struct {
	Opportunity *arbDomain.Opportunity
}

// ScanMsg is sent after every scanner cycle.
type ScanMsg struct {
	Summary pipelineDomain.ScanSummary
	Stats   pipelineDomain.Stats
}

// ConnectionStatusMsg is sent when a venue's connection status is known.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// BreakerMsg is sent when the loss circuit breaker trips, cools down or is
// reset.
type BreakerMsg struct {
	Event      string
	Cumulative decimal.Decimal
	At         time.Time
}

// EmergencyStopMsg carries the emergency stop flag after a toggle.
type EmergencyStopMsg struct {
	On bool
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// WelcomeCompleteMsg signals the welcome screen is done (timeout or keypress).
type WelcomeCompleteMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}
