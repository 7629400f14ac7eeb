// Package domain contains the core domain types for the execution context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is an order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Fill is one executed leg.
type Fill struct {
	Venue  string
	Symbol string
	Side   Side
	Price  decimal.Decimal
	Amount decimal.Decimal // base units
	Fee    decimal.Decimal // quote units
}

// Notional returns price times amount.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Amount)
}

// Status is the outcome of one execution.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result records one execution attempt.
type Result struct {
	ID             string
	OpportunityID  string
	Symbol         string
	Status         Status
	Fills          []Fill
	Capital        decimal.Decimal
	RealizedProfit decimal.Decimal
	TotalFees      decimal.Decimal
	StartedAt      time.Time
	Duration       time.Duration
	Error          string
}

// Success reports whether both legs filled.
func (r Result) Success() bool {
	return r.Status == StatusCompleted
}
