package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	mdDomain "github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/business/risk/domain"
	"github.com/fd1az/spatial-arb/internal/logger"
)

type fakePortfolio struct {
	total    decimal.Decimal
	bySymbol map[string]decimal.Decimal
	byVenue  map[string]decimal.Decimal
	err      error
}

func (f *fakePortfolio) TotalValue(context.Context) (decimal.Decimal, error) {
	return f.total, f.err
}

func (f *fakePortfolio) ExposureBySymbol(_ context.Context, symbol string) (decimal.Decimal, error) {
	return f.bySymbol[symbol], nil
}

func (f *fakePortfolio) ExposureByVenue(_ context.Context, venue string) (decimal.Decimal, error) {
	return f.byVenue[venue], nil
}

type fakeHealth struct {
	down   map[string]bool
	errors map[string]int
}

func (f *fakeHealth) IsConnected(venue string) bool      { return !f.down[venue] }
func (f *fakeHealth) ConsecutiveErrors(venue string) int { return f.errors[venue] }

type fakeBooks struct {
	amount  string
	byVenue map[string]string
	err     error
}

func (f *fakeBooks) OrderBook(_ context.Context, venue, symbol string) (mdDomain.OrderBook, error) {
	if f.err != nil {
		return mdDomain.OrderBook{}, f.err
	}
	amount := f.amount
	if a, ok := f.byVenue[venue]; ok {
		amount = a
	}
	book := mdDomain.OrderBook{Venue: venue, Symbol: symbol, Timestamp: time.Now()}
	for i := 0; i < 5; i++ {
		step := decimal.NewFromInt(int64(i))
		book.Bids = append(book.Bids, mdDomain.PriceLevel{Price: dec("100").Sub(step), Amount: dec(amount)})
		book.Asks = append(book.Asks, mdDomain.PriceLevel{Price: dec("101").Add(step), Amount: dec(amount)})
	}
	return book, nil
}

type gateFixture struct {
	gate      *Gate
	portfolio *fakePortfolio
	health    *fakeHealth
	books     *fakeBooks
	clk       *clock
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	f := &gateFixture{
		portfolio: &fakePortfolio{total: dec("10000")},
		health:    &fakeHealth{},
		books:     &fakeBooks{amount: "10"},
		clk:       &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}

	breaker := NewCircuitBreaker(dec("100"), time.Hour, 30*time.Minute)
	breaker.now = f.clk.now

	g, err := NewGate(GateParams{
		MaxRiskScore:    0.8,
		MinConfidence:   0.7,
		MaxDailyLoss:    dec("50"),
		MaxPositionSize: dec("1000"),
	}, breaker, testSizer(), f.portfolio, f.health, f.books, logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	g.now = f.clk.now
	f.gate = g
	return f
}

func testOpportunity() *arbDomain.Opportunity {
	return &arbDomain.Opportunity{
		ID:              "opp-1",
		Symbol:          "BTC/USDT",
		BuyVenue:        "binance",
		SellVenue:       "kraken",
		BuyPrice:        dec("100.2"),
		SellPrice:       dec("101.5"),
		SpreadPercent:   dec("1.3"),
		Amount:          dec("1"),
		RequiredCapital: dec("100.2"),
		Confidence:      0.9,
		RiskScore:       0.1,
	}
}

func reasons(a *domain.Assessment) []string {
	out := make([]string, 0, len(a.Blockers))
	for _, b := range a.Blockers {
		out = append(out, b.Reason)
	}
	return out
}

func TestGate_ApprovesHealthyOpportunity(t *testing.T) {
	f := newGateFixture(t)

	a := f.gate.Assess(context.Background(), testOpportunity())

	if !a.Approved {
		t.Fatalf("Approved = false, blockers %v", reasons(a))
	}
	if len(a.Metrics) != 4 {
		t.Fatalf("metrics = %d, want 4", len(a.Metrics))
	}
	if m, _ := a.Metric(domain.MetricMarket); m.Value != 0.1 || m.Level != domain.LevelLow {
		t.Errorf("market = %+v", m)
	}
	if a.Score < 0.029 || a.Score > 0.031 {
		t.Errorf("Score = %v, want 0.03", a.Score)
	}
	if a.Level != domain.LevelLow || len(a.Warnings) != 0 {
		t.Errorf("Level = %v warnings = %v", a.Level, a.Warnings)
	}
}

func TestGate_Blockers(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *gateFixture, opp *arbDomain.Opportunity)
		reason string
	}{
		{
			name:   "emergency_stop",
			setup:  func(f *gateFixture, _ *arbDomain.Opportunity) { f.gate.SetEmergencyStop(context.Background(), true) },
			reason: domain.ReasonEmergencyStop,
		},
		{
			name: "circuit_breaker",
			setup: func(f *gateFixture, _ *arbDomain.Opportunity) {
				f.gate.Breaker().RecordTradeResult(dec("-100"))
			},
			reason: domain.ReasonCircuitBreaker,
		},
		{
			name: "daily_loss",
			setup: func(f *gateFixture, _ *arbDomain.Opportunity) {
				f.gate.RecordTradeResult(context.Background(), dec("-50"))
			},
			reason: domain.ReasonDailyLossLimit,
		},
		{
			name:   "low_confidence",
			setup:  func(_ *gateFixture, opp *arbDomain.Opportunity) { opp.Confidence = 0.69 },
			reason: domain.ReasonLowConfidence,
		},
		{
			name:   "risk_score",
			setup:  func(_ *gateFixture, opp *arbDomain.Opportunity) { opp.RiskScore = 0.81 },
			reason: domain.ReasonRiskScore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture(t)
			opp := testOpportunity()
			tt.setup(f, opp)

			a := f.gate.Assess(context.Background(), opp)
			if a.Approved {
				t.Fatal("Approved = true")
			}
			if !a.HasBlocker(tt.reason) {
				t.Errorf("blockers = %v, want %s", reasons(a), tt.reason)
			}
		})
	}
}

func TestGate_ReportsEveryBlocker(t *testing.T) {
	f := newGateFixture(t)
	f.gate.SetEmergencyStop(context.Background(), true)
	f.gate.Breaker().RecordTradeResult(dec("-500"))

	opp := testOpportunity()
	opp.Confidence = 0.5
	opp.RiskScore = 0.9

	a := f.gate.Assess(context.Background(), opp)

	want := []string{domain.ReasonCircuitBreaker, domain.ReasonEmergencyStop, domain.ReasonLowConfidence, domain.ReasonRiskScore}
	got := reasons(a)
	if len(got) != len(want) {
		t.Fatalf("blockers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("blockers[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestGate_NeverApprovesUnderEmergencyStop(t *testing.T) {
	f := newGateFixture(t)
	if on := f.gate.ToggleEmergencyStop(context.Background()); !on {
		t.Fatal("ToggleEmergencyStop() = false, want true")
	}

	for _, confidence := range []float64{0.7, 0.9, 1} {
		opp := testOpportunity()
		opp.Confidence = confidence
		opp.RiskScore = 0
		if a := f.gate.Assess(context.Background(), opp); a.Approved {
			t.Errorf("approved with emergency stop at confidence %v", confidence)
		}
	}

	if on := f.gate.ToggleEmergencyStop(context.Background()); on {
		t.Fatal("second toggle should clear the stop")
	}
	if a := f.gate.Assess(context.Background(), testOpportunity()); !a.Approved {
		t.Errorf("not approved after clearing the stop: %v", reasons(a))
	}
}

func TestGate_Metrics(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *gateFixture, opp *arbDomain.Opportunity)
		metric    string
		wantValue float64
		wantLevel domain.Level
		wantWarn  bool
	}{
		{
			name: "market_wide_spread_large_position",
			setup: func(_ *gateFixture, opp *arbDomain.Opportunity) {
				opp.SpreadPercent = dec("2.5")
				opp.RequiredCapital = dec("900")
			},
			metric: domain.MetricMarket, wantValue: 0.5, wantLevel: domain.LevelHigh, wantWarn: true,
		},
		{
			name:   "liquidity_one_leg_thin",
			setup:  func(f *gateFixture, _ *arbDomain.Opportunity) { f.books.byVenue = map[string]string{"kraken": "0.3"} },
			metric: domain.MetricLiquidity, wantValue: 0.3, wantLevel: domain.LevelMedium,
		},
		{
			name:   "liquidity_both_legs_thin",
			setup:  func(f *gateFixture, _ *arbDomain.Opportunity) { f.books.amount = "0.1" },
			metric: domain.MetricLiquidity, wantValue: 0.6, wantLevel: domain.LevelHigh, wantWarn: true,
		},
		{
			name:   "liquidity_fetch_failure_is_penalty",
			setup:  func(f *gateFixture, _ *arbDomain.Opportunity) { f.books.err = errors.New("timeout") },
			metric: domain.MetricLiquidity, wantValue: 0.5, wantLevel: domain.LevelHigh, wantWarn: true,
		},
		{
			name: "concentration_symbol_and_venue",
			setup: func(f *gateFixture, _ *arbDomain.Opportunity) {
				f.portfolio.bySymbol = map[string]decimal.Decimal{"BTC/USDT": dec("3000")}
				f.portfolio.byVenue = map[string]decimal.Decimal{"kraken": dec("5000")}
			},
			metric: domain.MetricConcentration, wantValue: 0.7, wantLevel: domain.LevelHigh, wantWarn: true,
		},
		{
			name: "concentration_both_venues",
			setup: func(f *gateFixture, _ *arbDomain.Opportunity) {
				f.portfolio.bySymbol = map[string]decimal.Decimal{"BTC/USDT": dec("4000")}
				f.portfolio.byVenue = map[string]decimal.Decimal{"kraken": dec("5000"), "binance": dec("6000")}
			},
			metric: domain.MetricConcentration, wantValue: 1, wantLevel: domain.LevelHigh, wantWarn: true,
		},
		{
			name: "concentration_medium",
			setup: func(f *gateFixture, _ *arbDomain.Opportunity) {
				f.portfolio.bySymbol = map[string]decimal.Decimal{"BTC/USDT": dec("2000")}
			},
			metric: domain.MetricConcentration, wantValue: 0.2, wantLevel: domain.LevelLow,
		},
		{
			name:   "concentration_empty_portfolio",
			setup:  func(f *gateFixture, _ *arbDomain.Opportunity) { f.portfolio.total = decimal.Zero },
			metric: domain.MetricConcentration, wantValue: 1, wantLevel: domain.LevelHigh, wantWarn: true,
		},
		{
			name:   "counterparty_disconnected",
			setup:  func(f *gateFixture, _ *arbDomain.Opportunity) { f.health.down = map[string]bool{"kraken": true} },
			metric: domain.MetricCounterparty, wantValue: 0.5, wantLevel: domain.LevelHigh, wantWarn: true,
		},
		{
			name: "counterparty_disconnected_ignores_error_count",
			setup: func(f *gateFixture, _ *arbDomain.Opportunity) {
				f.health.down = map[string]bool{"kraken": true}
				f.health.errors = map[string]int{"kraken": 5}
			},
			metric: domain.MetricCounterparty, wantValue: 0.5, wantLevel: domain.LevelHigh, wantWarn: true,
		},
		{
			name: "counterparty_clamped",
			setup: func(f *gateFixture, _ *arbDomain.Opportunity) {
				f.health.down = map[string]bool{"kraken": true, "binance": true}
				f.health.errors = map[string]int{"kraken": 3}
			},
			metric: domain.MetricCounterparty, wantValue: 1, wantLevel: domain.LevelCritical, wantWarn: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture(t)
			opp := testOpportunity()
			tt.setup(f, opp)

			a := f.gate.Assess(context.Background(), opp)
			m, ok := a.Metric(tt.metric)
			if !ok {
				t.Fatalf("metric %s missing", tt.metric)
			}
			if diff := m.Value - tt.wantValue; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Value = %v, want %v", m.Value, tt.wantValue)
			}
			if m.Level != tt.wantLevel {
				t.Errorf("Level = %v, want %v", m.Level, tt.wantLevel)
			}
			if got := len(a.Warnings) > 0; got != tt.wantWarn {
				t.Errorf("warnings = %v, want present=%v", a.Warnings, tt.wantWarn)
			}
			if a.Score < 0 || a.Score > 1 {
				t.Errorf("Score = %v out of range", a.Score)
			}
		})
	}
}

func TestGate_DailyPnLRollsOverAtUTCMidnight(t *testing.T) {
	f := newGateFixture(t)
	f.clk.t = time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	f.gate.RecordTradeResult(context.Background(), dec("-30"))
	f.gate.RecordTradeResult(context.Background(), dec("12"))
	if got := f.gate.DailyPnL(); !got.Equal(dec("-18")) {
		t.Fatalf("DailyPnL() = %s, want -18", got)
	}

	f.clk.advance(2 * time.Minute)
	if got := f.gate.DailyPnL(); !got.IsZero() {
		t.Errorf("DailyPnL() after midnight = %s, want 0", got)
	}

	stats := f.gate.Stats()
	if stats.Trades.Wins != 1 || stats.Trades.Losses != 1 || !stats.Trades.Realized.Equal(dec("-18")) {
		t.Errorf("Stats().Trades = %+v", stats.Trades)
	}
}

func TestGate_SizeUsesTradeStats(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	opp := testOpportunity()
	opp.RequiredCapital = dec("1000")

	size, err := f.gate.Size(ctx, opp)
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if !size.Equal(dec("100")) {
		t.Errorf("Size() without history = %s, want 1%% of portfolio", size)
	}

	// 3 wins of 10, 2 losses of 10: p = 0.6, b = 1, capped at 0.1
	for _, pnl := range []string{"10", "10", "10", "-10", "-10"} {
		f.gate.RecordTradeResult(ctx, dec(pnl))
	}
	size, err = f.gate.Size(ctx, opp)
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if !size.Equal(dec("250")) {
		t.Errorf("Size() = %s, want Kelly cap 250", size)
	}

	f.portfolio.err = errors.New("ledger closed")
	if _, err := f.gate.Size(ctx, opp); err == nil {
		t.Error("expected error when the portfolio is unavailable")
	}
}

func TestNewGate_RequiresDependencies(t *testing.T) {
	if _, err := NewGate(GateParams{}, nil, testSizer(), &fakePortfolio{}, nil, nil, nil); err == nil {
		t.Fatal("expected error without a breaker")
	}
}
