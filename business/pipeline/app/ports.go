// Package app contains the opportunity pipeline: the scanner and processor
// loops and the ports they drive.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	arbApp "github.com/fd1az/spatial-arb/business/arbitrage/app"
	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	mdDomain "github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/business/pipeline/domain"
	riskApp "github.com/fd1az/spatial-arb/business/risk/app"
	riskDomain "github.com/fd1az/spatial-arb/business/risk/domain"
)

// Collector builds market snapshots.
type Collector interface {
	Collect(ctx context.Context, venues, symbols []string, perCallTimeout time.Duration) (*mdDomain.Snapshot, []mdDomain.CollectionError)
	IsConnected(venue string) bool
}

// Detector finds opportunities in a snapshot.
type Detector interface {
	Detect(ctx context.Context, snap *mdDomain.Snapshot, p arbApp.Params) []*arbDomain.Opportunity
}

// Gate approves, sizes and learns from trades.
type Gate interface {
	Assess(ctx context.Context, opp *arbDomain.Opportunity) *riskDomain.Assessment
	Size(ctx context.Context, opp *arbDomain.Opportunity) (decimal.Decimal, error)
	RecordTradeResult(ctx context.Context, pnl decimal.Decimal)
}

// Executor trades an approved opportunity and returns the realized profit.
type Executor interface {
	Execute(ctx context.Context, opp *arbDomain.Opportunity, capital decimal.Decimal) (decimal.Decimal, error)
}

// Locker takes a cross-instance advisory lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Reporter displays pipeline activity.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Report receives a copy of an opportunity after every state change.
	Report(opp *arbDomain.Opportunity)

	// UpdateScan receives the summary of every scan cycle.
	UpdateScan(summary domain.ScanSummary, stats domain.Stats)

	// UpdateConnectionStatus updates a venue connection display.
	UpdateConnectionStatus(name string, connected bool, latency time.Duration)

	// BreakerEvent reports loss circuit breaker changes.
	BreakerEvent(event riskApp.BreakerEvent, cumulative decimal.Decimal)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
