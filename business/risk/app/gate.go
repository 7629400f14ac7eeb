package app

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	"github.com/fd1az/spatial-arb/business/risk/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
	"github.com/fd1az/spatial-arb/internal/logger"
)

const liquidityDepthLevels = 5

var (
	marketThresholds        = domain.Thresholds{Medium: 0.3, High: 0.5, Critical: 0.7}
	liquidityThresholds     = domain.Thresholds{Medium: 0.2, High: 0.4, Critical: 0.7}
	concentrationThresholds = domain.Thresholds{Medium: 0.3, High: 0.6}
	counterpartyThresholds  = liquidityThresholds
)

// GateParams holds the approval limits.
type GateParams struct {
	MaxRiskScore    float64
	MinConfidence   float64
	MaxDailyLoss    decimal.Decimal // positive amount, zero disables the limit
	MaxPositionSize decimal.Decimal
	EmergencyStop   bool
}

// GateStats is a snapshot of the gate counters.
type GateStats struct {
	EmergencyStop bool
	DailyPnL      decimal.Decimal
	Trades        domain.TradeStats
	Breaker       BreakerState
}

// Gate decides whether an opportunity may be executed and how much capital
// it gets.
type Gate struct {
	p         GateParams
	breaker   *CircuitBreaker
	sizer     *PositionSizeCalculator
	portfolio PortfolioProvider
	health    VenueHealth
	books     OrderBookSource
	log       logger.LoggerInterface
	now       func() time.Time

	emergency atomic.Bool

	mu       sync.Mutex
	day      time.Time
	dailyPnL decimal.Decimal
	stats    domain.TradeStats
}

// NewGate wires the gate. health and books may be nil, in which case the
// counterparty and liquidity metrics score zero.
func NewGate(p GateParams, breaker *CircuitBreaker, sizer *PositionSizeCalculator, portfolio PortfolioProvider, health VenueHealth, books OrderBookSource, log logger.LoggerInterface) (*Gate, error) {
	if breaker == nil || sizer == nil || portfolio == nil {
		return nil, apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("risk gate: breaker, sizer and portfolio are required"))
	}

	g := &Gate{
		p:         p,
		breaker:   breaker,
		sizer:     sizer,
		portfolio: portfolio,
		health:    health,
		books:     books,
		log:       log,
		now:       time.Now,
	}
	g.emergency.Store(p.EmergencyStop)
	return g, nil
}

// Breaker returns the loss circuit breaker.
func (g *Gate) Breaker() *CircuitBreaker {
	return g.breaker
}

// Assess scores opp and lists every reason it may not trade.
func (g *Gate) Assess(ctx context.Context, opp *arbDomain.Opportunity) *domain.Assessment {
	metrics := []domain.Metric{
		g.marketRisk(opp),
		g.liquidityRisk(ctx, opp),
		g.concentrationRisk(ctx, opp),
		g.counterpartyRisk(opp),
	}

	score := 0.3*metrics[0].Value + 0.3*metrics[1].Value + 0.2*metrics[2].Value + 0.2*metrics[3].Value

	a := &domain.Assessment{
		OpportunityID: opp.ID,
		Score:         score,
		Level:         domain.OverallLevel(score),
		Metrics:       metrics,
		Timestamp:     g.now(),
	}

	for _, m := range metrics {
		if m.Level == domain.LevelHigh || m.Level == domain.LevelCritical {
			a.Warnings = append(a.Warnings, fmt.Sprintf("%s %s risk: %s", m.Level, m.Name, m.Description))
		}
	}

	a.Blockers = g.blockers(opp, metrics)
	a.Approved = len(a.Blockers) == 0

	if !a.Approved {
		g.log.Debug(ctx, "opportunity blocked",
			"id", opp.ID, "symbol", opp.Symbol, "blockers", len(a.Blockers), "score", score)
	}
	return a
}

func (g *Gate) blockers(opp *arbDomain.Opportunity, metrics []domain.Metric) []arbDomain.Blocker {
	var out []arbDomain.Blocker
	add := func(reason, format string, args ...any) {
		out = append(out, arbDomain.Blocker{Reason: reason, Message: fmt.Sprintf(format, args...)})
	}

	if !g.breaker.CanTrade() {
		add(domain.ReasonCircuitBreaker, "circuit breaker tripped")
	}
	if g.emergency.Load() {
		add(domain.ReasonEmergencyStop, "emergency stop is active")
	}
	if daily := g.DailyPnL(); g.p.MaxDailyLoss.IsPositive() && daily.LessThanOrEqual(g.p.MaxDailyLoss.Neg()) {
		add(domain.ReasonDailyLossLimit, "daily loss %s reached limit %s", daily.StringFixed(2), g.p.MaxDailyLoss.StringFixed(2))
	}
	if opp.Confidence < g.p.MinConfidence {
		add(domain.ReasonLowConfidence, "confidence %.2f below %.2f", opp.Confidence, g.p.MinConfidence)
	}
	if opp.RiskScore > g.p.MaxRiskScore {
		add(domain.ReasonRiskScore, "risk score %.2f above %.2f", opp.RiskScore, g.p.MaxRiskScore)
	}
	if metrics[0].Level == domain.LevelCritical {
		add(domain.ReasonMarketCritical, "market risk critical: %s", metrics[0].Description)
	}
	if metrics[1].Level == domain.LevelCritical {
		add(domain.ReasonLiquidityCritical, "liquidity risk critical: %s", metrics[1].Description)
	}
	return out
}

func (g *Gate) marketRisk(opp *arbDomain.Opportunity) domain.Metric {
	var v float64
	spread := opp.SpreadPercent.InexactFloat64()
	switch {
	case spread > 2:
		v += 0.3
	case spread > 1:
		v += 0.1
	}

	var utilisation float64
	if g.p.MaxPositionSize.IsPositive() {
		utilisation = opp.RequiredCapital.Div(g.p.MaxPositionSize).InexactFloat64()
		if utilisation > 0.8 {
			v += 0.2
		}
	}

	return newMetric(domain.MetricMarket, v, marketThresholds,
		fmt.Sprintf("spread %.2f%%, position %.0f%% of max", spread, utilisation*100))
}

func (g *Gate) liquidityRisk(ctx context.Context, opp *arbDomain.Opportunity) domain.Metric {
	if g.books == nil {
		return newMetric(domain.MetricLiquidity, 0, liquidityThresholds, "no order book source")
	}

	buyBook, err := g.books.OrderBook(ctx, opp.BuyVenue, opp.Symbol)
	if err != nil {
		return newMetric(domain.MetricLiquidity, 0.5, liquidityThresholds, "buy book unavailable: "+err.Error())
	}
	sellBook, err := g.books.OrderBook(ctx, opp.SellVenue, opp.Symbol)
	if err != nil {
		return newMetric(domain.MetricLiquidity, 0.5, liquidityThresholds, "sell book unavailable: "+err.Error())
	}

	need := opp.Amount.Mul(decimal.NewFromInt(2))
	buyDepth := buyBook.AskDepth(liquidityDepthLevels)
	sellDepth := sellBook.BidDepth(liquidityDepthLevels)

	var v float64
	var thin []string
	if buyDepth.LessThan(need) {
		v += 0.3
		thin = append(thin, opp.BuyVenue+" asks")
	}
	if sellDepth.LessThan(need) {
		v += 0.3
		thin = append(thin, opp.SellVenue+" bids")
	}

	desc := fmt.Sprintf("top %d depth %s/%s for amount %s", liquidityDepthLevels, buyDepth.String(), sellDepth.String(), opp.Amount.String())
	if len(thin) > 0 {
		desc += fmt.Sprintf(", thin: %v", thin)
	}
	return newMetric(domain.MetricLiquidity, v, liquidityThresholds, desc)
}

func (g *Gate) concentrationRisk(ctx context.Context, opp *arbDomain.Opportunity) domain.Metric {
	total, err := g.portfolio.TotalValue(ctx)
	if err != nil || !total.IsPositive() {
		return newMetric(domain.MetricConcentration, 1, concentrationThresholds, "portfolio value unavailable")
	}

	var v float64

	symbolExposure, err := g.portfolio.ExposureBySymbol(ctx, opp.Symbol)
	if err != nil {
		symbolExposure = decimal.Zero
	}
	symbolShare := symbolExposure.Add(opp.RequiredCapital).Div(total).InexactFloat64()
	switch {
	case symbolShare > 0.3:
		v += 0.4
	case symbolShare > 0.2:
		v += 0.2
	}

	desc := fmt.Sprintf("symbol %.0f%%", symbolShare*100)
	for _, venue := range []string{opp.BuyVenue, opp.SellVenue} {
		exposure, err := g.portfolio.ExposureByVenue(ctx, venue)
		if err != nil {
			continue
		}
		share := exposure.Add(opp.RequiredCapital).Div(total).InexactFloat64()
		if share > 0.5 {
			v += 0.3
		}
		desc += fmt.Sprintf(", %s %.0f%%", venue, share*100)
	}

	return newMetric(domain.MetricConcentration, v, concentrationThresholds, desc+" of portfolio")
}

func (g *Gate) counterpartyRisk(opp *arbDomain.Opportunity) domain.Metric {
	if g.health == nil {
		return newMetric(domain.MetricCounterparty, 0, counterpartyThresholds, "no venue health source")
	}

	var v float64
	var issues []string
	for _, venue := range []string{opp.BuyVenue, opp.SellVenue} {
		if !g.health.IsConnected(venue) {
			v += 0.5
			issues = append(issues, venue+" disconnected")
			continue
		}
		if n := g.health.ConsecutiveErrors(venue); n > 2 {
			v += 0.2
			issues = append(issues, fmt.Sprintf("%s %d consecutive errors", venue, n))
		}
	}

	desc := "venues healthy"
	if len(issues) > 0 {
		desc = fmt.Sprint(issues)
	}
	return newMetric(domain.MetricCounterparty, v, counterpartyThresholds, desc)
}

func newMetric(name string, v float64, t domain.Thresholds, desc string) domain.Metric {
	v = math.Round(min(max(v, 0), 1)*1e6) / 1e6
	return domain.Metric{
		Name:        name,
		Value:       v,
		Threshold:   t.High,
		Level:       t.Level(v),
		Description: desc,
	}
}

// Size returns the capital to commit to an approved opportunity.
func (g *Gate) Size(ctx context.Context, opp *arbDomain.Opportunity) (decimal.Decimal, error) {
	total, err := g.portfolio.TotalValue(ctx)
	if err != nil {
		return decimal.Zero, apperror.Wrap(err, apperror.CodeInvalidTradeSize, "portfolio value")
	}

	g.mu.Lock()
	stats := g.stats
	g.mu.Unlock()

	return g.sizer.Size(opp, total, stats.WinRate(), stats.AvgWin(), stats.AvgLoss()), nil
}

// RecordTradeResult feeds a realized result into the daily P&L, the trade
// statistics and the circuit breaker.
func (g *Gate) RecordTradeResult(ctx context.Context, pnl decimal.Decimal) {
	g.mu.Lock()
	g.rollover()
	g.dailyPnL = g.dailyPnL.Add(pnl)
	g.stats.Record(pnl)
	daily := g.dailyPnL
	g.mu.Unlock()

	g.breaker.RecordTradeResult(pnl)

	g.log.Info(ctx, "trade result recorded", "pnl", pnl.StringFixed(4), "daily_pnl", daily.StringFixed(4))
}

// DailyPnL returns today's (UTC) realized P&L.
func (g *Gate) DailyPnL() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover()
	return g.dailyPnL
}

// rollover resets the daily P&L on a new UTC day. Caller holds mu.
func (g *Gate) rollover() {
	today := g.now().UTC().Truncate(24 * time.Hour)
	if !g.day.Equal(today) {
		g.day = today
		g.dailyPnL = decimal.Zero
	}
}

// SetEmergencyStop sets or clears the emergency stop.
func (g *Gate) SetEmergencyStop(ctx context.Context, on bool) {
	if g.emergency.Swap(on) != on {
		g.log.Warn(ctx, "emergency stop changed", "active", on)
	}
}

// ToggleEmergencyStop flips the emergency stop and returns the new value.
func (g *Gate) ToggleEmergencyStop(ctx context.Context) bool {
	for {
		cur := g.emergency.Load()
		if g.emergency.CompareAndSwap(cur, !cur) {
			g.log.Warn(ctx, "emergency stop changed", "active", !cur)
			return !cur
		}
	}
}

// EmergencyStop reports whether the emergency stop is set.
func (g *Gate) EmergencyStop() bool {
	return g.emergency.Load()
}

// Stats returns a snapshot of the gate counters.
func (g *Gate) Stats() GateStats {
	g.mu.Lock()
	g.rollover()
	s := GateStats{
		EmergencyStop: g.emergency.Load(),
		DailyPnL:      g.dailyPnL,
		Trades:        g.stats,
	}
	g.mu.Unlock()

	s.Breaker = g.breaker.State()
	return s
}
