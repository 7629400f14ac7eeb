package app

import (
	"sort"

	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
)

// VolatilityTier caps the position at PortfolioFraction once the spread
// percent exceeds AboveSpreadPercent.
type VolatilityTier struct {
	AboveSpreadPercent decimal.Decimal
	PortfolioFraction  decimal.Decimal
}

// SizerParams configures the position size calculator.
type SizerParams struct {
	MaxPositionSize  decimal.Decimal
	MaxPortfolioRisk decimal.Decimal // fraction of portfolio, default 0.05
	KellyFraction    decimal.Decimal // default 0.25
	Tiers            []VolatilityTier
	Floor            decimal.Decimal // fraction when no tier matches, default 0.02
}

var (
	kellyCap      = decimal.NewFromFloat(0.1)
	kellyFallback = decimal.NewFromFloat(0.01)
)

// DefaultTiers returns the 2% and 1% spread tiers.
func DefaultTiers() []VolatilityTier {
	return []VolatilityTier{
		{AboveSpreadPercent: decimal.NewFromInt(2), PortfolioFraction: decimal.NewFromFloat(0.05)},
		{AboveSpreadPercent: decimal.NewFromInt(1), PortfolioFraction: decimal.NewFromFloat(0.03)},
	}
}

// PositionSizeCalculator picks the most conservative of several caps.
type PositionSizeCalculator struct {
	p SizerParams
}

// NewPositionSizeCalculator applies defaults and orders tiers by threshold.
func NewPositionSizeCalculator(p SizerParams) *PositionSizeCalculator {
	if !p.MaxPortfolioRisk.IsPositive() {
		p.MaxPortfolioRisk = decimal.NewFromFloat(0.05)
	}
	if !p.KellyFraction.IsPositive() {
		p.KellyFraction = decimal.NewFromFloat(0.25)
	}
	if p.Tiers == nil {
		p.Tiers = DefaultTiers()
	}
	if !p.Floor.IsPositive() {
		p.Floor = decimal.NewFromFloat(0.02)
	}

	tiers := make([]VolatilityTier, len(p.Tiers))
	copy(tiers, p.Tiers)
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].AboveSpreadPercent.GreaterThan(tiers[j].AboveSpreadPercent)
	})
	p.Tiers = tiers

	return &PositionSizeCalculator{p: p}
}

// Size returns the quote capital to commit to opp. The result is never
// negative and never exceeds MaxPositionSize or the required capital.
func (c *PositionSizeCalculator) Size(opp *arbDomain.Opportunity, portfolio decimal.Decimal, winRate float64, avgWin, avgLoss decimal.Decimal) decimal.Decimal {
	if !portfolio.IsPositive() {
		return decimal.Zero
	}

	size := decimal.Min(
		c.p.MaxPositionSize,
		portfolio.Mul(c.p.MaxPortfolioRisk),
		c.Kelly(portfolio, winRate, avgWin, avgLoss),
		portfolio.Mul(c.VolatilityFraction(opp.SpreadPercent)),
		opp.RequiredCapital,
	)
	if size.IsNegative() {
		return decimal.Zero
	}
	return size
}

// Kelly returns the fractional Kelly allocation. Without loss history it
// falls back to 1% of the portfolio; with losses but no average win it
// allocates nothing.
func (c *PositionSizeCalculator) Kelly(portfolio decimal.Decimal, winRate float64, avgWin, avgLoss decimal.Decimal) decimal.Decimal {
	if winRate <= 0 || !avgLoss.IsPositive() {
		return portfolio.Mul(kellyFallback)
	}
	if !avgWin.IsPositive() {
		return decimal.Zero
	}

	b := avgWin.Div(avgLoss)
	p := decimal.NewFromFloat(winRate)
	q := decimal.NewFromInt(1).Sub(p)

	f := b.Mul(p).Sub(q).Div(b)
	if f.IsNegative() {
		f = decimal.Zero
	}
	if f.GreaterThan(kellyCap) {
		f = kellyCap
	}
	return portfolio.Mul(c.p.KellyFraction).Mul(f)
}

// VolatilityFraction returns the portfolio fraction for a spread percent.
func (c *PositionSizeCalculator) VolatilityFraction(spreadPercent decimal.Decimal) decimal.Decimal {
	for _, t := range c.p.Tiers {
		if spreadPercent.GreaterThan(t.AboveSpreadPercent) {
			return t.PortfolioFraction
		}
	}
	return c.p.Floor
}
