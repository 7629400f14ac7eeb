package app

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/spatial-arb/business/arbitrage/domain"
	mdDomain "github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/internal/logger"
)

const meterName = "arbitrage"

// Skip reasons, used as the detection_skips_total label.
const (
	SkipStale         = "stale"
	SkipNoSpread      = "no_spread"
	SkipBelowMin      = "below_min_spread"
	SkipNoLiquidity   = "no_liquidity"
	SkipUnprofitable  = "unprofitable"
	SkipLowConfidence = "low_confidence"
)

// Params are the per-scan detection thresholds.
type Params struct {
	MinSpreadPercent    decimal.Decimal
	MaxPositionSize     decimal.Decimal // quote units
	ConfidenceThreshold float64
	TopK                int
	TTL                 time.Duration
	StalenessWindow     time.Duration
}

// Detector compares every venue pair of every symbol in a snapshot.
type Detector struct {
	calc    *ProfitCalculator
	history *SpreadHistory
	logger  logger.LoggerInterface
	now     func() time.Time

	skips metric.Int64Counter
}

// NewDetector creates a detector.
func NewDetector(fees domain.FeeSchedule, history *SpreadHistory, log logger.LoggerInterface) (*Detector, error) {
	if history == nil {
		history = NewSpreadHistory(DefaultHistorySize)
	}

	skips, err := otel.Meter(meterName).Int64Counter("detection_skips_total",
		metric.WithDescription("Candidate directions discarded during detection"))
	if err != nil {
		return nil, err
	}

	return &Detector{
		calc:    NewProfitCalculator(fees),
		history: history,
		logger:  log,
		now:     time.Now,
		skips:   skips,
	}, nil
}

// Detect returns candidates ranked by net profit, at most TopK. Only the
// spread history is mutated.
func (d *Detector) Detect(ctx context.Context, snap *mdDomain.Snapshot, p Params) []*domain.Opportunity {
	now := d.now()
	var out []*domain.Opportunity

	for _, symbol := range snap.Symbols() {
		var points []mdDomain.MarketDataPoint
		for _, venue := range snap.VenuesFor(symbol) {
			pt, _ := snap.Get(venue, symbol)
			if p.StalenessWindow > 0 && pt.IsStale(now, p.StalenessWindow) {
				d.skip(ctx, SkipStale)
				continue
			}
			points = append(points, pt)
		}

		for i := 0; i < len(points); i++ {
			for j := i + 1; j < len(points); j++ {
				if o := d.evaluate(ctx, points[i], points[j], p, now); o != nil {
					out = append(out, o)
				}
				if o := d.evaluate(ctx, points[j], points[i], p, now); o != nil {
					out = append(out, o)
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].NetProfit.Equal(out[j].NetProfit) {
			return out[i].NetProfit.GreaterThan(out[j].NetProfit)
		}
		return out[i].Key().String() < out[j].Key().String()
	})

	if p.TopK > 0 && len(out) > p.TopK {
		out = out[:p.TopK]
	}
	return out
}

func (d *Detector) evaluate(ctx context.Context, buy, sell mdDomain.MarketDataPoint, p Params, now time.Time) *domain.Opportunity {
	buyPrice, sellPrice := buy.Ask, sell.Bid
	if sellPrice.LessThanOrEqual(buyPrice) {
		d.skip(ctx, SkipNoSpread)
		return nil
	}

	spread := sellPrice.Sub(buyPrice)
	spreadPct := spread.Div(buyPrice).Mul(hundred)
	if spreadPct.LessThan(p.MinSpreadPercent) {
		d.skip(ctx, SkipBelowMin)
		return nil
	}

	spreadPctF := spreadPct.InexactFloat64()
	d.history.Record(buy.Symbol, spreadPctF)

	amount := TradeAmount(p.MaxPositionSize, buyPrice, sellPrice, buy.Asks, sell.Bids)
	if !amount.IsPositive() {
		d.skip(ctx, SkipNoLiquidity)
		return nil
	}

	dir := domain.Direction{BuyVenue: buy.Venue, SellVenue: sell.Venue}
	profit := d.calc.Calculate(dir, buyPrice, sellPrice, amount)
	if !profit.IsProfitable() {
		d.skip(ctx, SkipUnprofitable)
		return nil
	}

	confidence := d.confidence(buy, sell, amount, spreadPctF, now)
	if confidence < p.ConfidenceThreshold {
		d.skip(ctx, SkipLowConfidence)
		return nil
	}

	d.logger.Debug(ctx, "opportunity candidate",
		"symbol", buy.Symbol, "direction", dir.String(),
		"spread_pct", spreadPct.StringFixed(4), "net", profit.NetProfit.StringFixed(4),
		"confidence", confidence)

	return &domain.Opportunity{
		ID:               domain.NewID(buy.Symbol, dir, now),
		Symbol:           buy.Symbol,
		BuyVenue:         buy.Venue,
		SellVenue:        sell.Venue,
		BuyPrice:         buyPrice,
		SellPrice:        sellPrice,
		Spread:           spread,
		SpreadPercent:    spreadPct,
		Amount:           amount,
		RequiredCapital:  profit.RequiredCapital,
		BuyFee:           profit.BuyFee,
		SellFee:          profit.SellFee,
		EstimatedFees:    profit.EstimatedFees,
		GrossProfit:      profit.GrossProfit,
		NetProfit:        profit.NetProfit,
		NetProfitPercent: profit.NetProfitPercent,
		Confidence:       confidence,
		RiskScore:        clamp01(1 - confidence),
		Status:           domain.StatusDetected,
		DetectedAt:       now,
		ExpiresAt:        now.Add(p.TTL),
		UpdatedAt:        now,
	}
}

// confidence applies the age, depth, spread and stability multipliers.
func (d *Detector) confidence(buy, sell mdDomain.MarketDataPoint, amount decimal.Decimal, spreadPct float64, now time.Time) float64 {
	c := 1.0

	oldest := buy.Timestamp
	if sell.Timestamp.Before(oldest) {
		oldest = sell.Timestamp
	}
	switch age := now.Sub(oldest); {
	case age >= 10*time.Second:
		c *= 0.8
	case age >= 5*time.Second:
		c *= 0.9
	}

	thin := decimal.Min(buy.AskDepth, sell.BidDepth)
	switch {
	case thin.LessThan(amount.Mul(decimal.NewFromInt(2))):
		c *= 0.7
	case thin.LessThan(amount.Mul(decimal.NewFromInt(5))):
		c *= 0.9
	}

	switch {
	case spreadPct > 2.0:
		c *= 0.6
	case spreadPct > 1.0:
		c *= 0.8
	}

	c *= d.history.Stability(buy.Symbol)
	return clamp01(c)
}

func (d *Detector) skip(ctx context.Context, reason string) {
	d.skips.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
