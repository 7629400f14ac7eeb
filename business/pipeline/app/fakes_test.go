package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	arbApp "github.com/fd1az/spatial-arb/business/arbitrage/app"
	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	mdDomain "github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/business/pipeline/domain"
	riskApp "github.com/fd1az/spatial-arb/business/risk/app"
	riskDomain "github.com/fd1az/spatial-arb/business/risk/domain"
	"github.com/fd1az/spatial-arb/internal/logger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func newOpportunity(i int, at time.Time) *arbDomain.Opportunity {
	buy := fmt.Sprintf("venue-%d", i)
	d := arbDomain.Direction{BuyVenue: buy, SellVenue: "sell"}
	return &arbDomain.Opportunity{
		ID:              arbDomain.NewID("BTC/USDT", d, at),
		Symbol:          "BTC/USDT",
		BuyVenue:        buy,
		SellVenue:       "sell",
		BuyPrice:        dec("100.2"),
		SellPrice:       dec("101.5"),
		Spread:          dec("1.3"),
		SpreadPercent:   dec("1.3"),
		Amount:          dec("1"),
		RequiredCapital: dec("100.2"),
		NetProfit:       dec("1.3"),
		Confidence:      0.9,
		Status:          arbDomain.StatusDetected,
		DetectedAt:      at,
		ExpiresAt:       at.Add(time.Minute),
		UpdatedAt:       at,
	}
}

type fakeCollector struct {
	down map[string]bool
}

func (f *fakeCollector) Collect(_ context.Context, _, _ []string, _ time.Duration) (*mdDomain.Snapshot, []mdDomain.CollectionError) {
	return mdDomain.NewSnapshot(time.Now()), nil
}

func (f *fakeCollector) IsConnected(venue string) bool { return !f.down[venue] }

// fakeDetector returns n fresh opportunities with distinct keys per call.
type fakeDetector struct {
	mu sync.Mutex
	n  int
}

func (f *fakeDetector) set(n int) {
	f.mu.Lock()
	f.n = n
	f.mu.Unlock()
}

func (f *fakeDetector) Detect(_ context.Context, _ *mdDomain.Snapshot, _ arbApp.Params) []*arbDomain.Opportunity {
	f.mu.Lock()
	n := f.n
	f.mu.Unlock()

	now := time.Now()
	out := make([]*arbDomain.Opportunity, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, newOpportunity(i, now))
	}
	return out
}

type fakeGate struct {
	mu       sync.Mutex
	blockers []arbDomain.Blocker
	size     decimal.Decimal
	sizeErr  error
	assessed int
	recorded []decimal.Decimal
}

func (f *fakeGate) Assess(_ context.Context, opp *arbDomain.Opportunity) *riskDomain.Assessment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assessed++
	return &riskDomain.Assessment{
		OpportunityID: opp.ID,
		Approved:      len(f.blockers) == 0,
		Blockers:      f.blockers,
	}
}

func (f *fakeGate) Size(context.Context, *arbDomain.Opportunity) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size, f.sizeErr
}

func (f *fakeGate) RecordTradeResult(_ context.Context, pnl decimal.Decimal) {
	f.mu.Lock()
	f.recorded = append(f.recorded, pnl)
	f.mu.Unlock()
}

func (f *fakeGate) results() []decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]decimal.Decimal(nil), f.recorded...)
}

type fakeExecutor struct {
	mu      sync.Mutex
	pnl     decimal.Decimal
	err     error
	capital []decimal.Decimal
	block   chan struct{}
	started chan struct{}
	ctxErr  error
}

func (f *fakeExecutor) Execute(ctx context.Context, _ *arbDomain.Opportunity, capital decimal.Decimal) (decimal.Decimal, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.capital = append(f.capital, capital)
	f.ctxErr = ctx.Err()
	return f.pnl, f.err
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.capital)
}

type fakeLocker struct {
	err      error
	unlocked int
	keys     []string
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return func() { f.unlocked++ }, nil
}

type fakeReporter struct {
	mu          sync.Mutex
	started     bool
	stopped     bool
	reports     []arbDomain.Status
	scans       int
	connections map[string]bool
	events      []riskApp.BreakerEvent
}

func (f *fakeReporter) Start(context.Context) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeReporter) Report(opp *arbDomain.Opportunity) {
	f.mu.Lock()
	f.reports = append(f.reports, opp.Status)
	f.mu.Unlock()
}

func (f *fakeReporter) UpdateScan(domain.ScanSummary, domain.Stats) {
	f.mu.Lock()
	f.scans++
	f.mu.Unlock()
}

func (f *fakeReporter) UpdateConnectionStatus(name string, connected bool, _ time.Duration) {
	f.mu.Lock()
	if f.connections == nil {
		f.connections = make(map[string]bool)
	}
	f.connections[name] = connected
	f.mu.Unlock()
}

func (f *fakeReporter) BreakerEvent(e riskApp.BreakerEvent, _ decimal.Decimal) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *fakeReporter) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}
