// Package app contains application services for the arbitrage context.
package app

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/spatial-arb/business/arbitrage/domain"
	mdDomain "github.com/fd1az/spatial-arb/business/marketdata/domain"
)

var hundred = decimal.NewFromInt(100)

// ProfitCalculator computes trade size and fee-adjusted profit.
type ProfitCalculator struct {
	fees domain.FeeSchedule
}

// NewProfitCalculator creates a calculator over a fee schedule.
func NewProfitCalculator(fees domain.FeeSchedule) *ProfitCalculator {
	return &ProfitCalculator{fees: fees}
}

// Calculate prices buying amount on buyVenue at buyPrice and selling it on
// sellVenue at sellPrice.
func (c *ProfitCalculator) Calculate(d domain.Direction, buyPrice, sellPrice, amount decimal.Decimal) domain.ProfitResult {
	capital := amount.Mul(buyPrice)
	buyFee := capital.Mul(c.fees.BuyRate(d.BuyVenue))
	sellFee := amount.Mul(sellPrice).Mul(c.fees.SellRate(d.SellVenue))
	fees := buyFee.Add(sellFee)

	gross := sellPrice.Sub(buyPrice).Mul(amount)
	net := gross.Sub(fees)

	pct := decimal.Zero
	if capital.IsPositive() {
		pct = net.Div(capital).Mul(hundred)
	}

	return domain.ProfitResult{
		RequiredCapital:  capital,
		BuyFee:           buyFee,
		SellFee:          sellFee,
		EstimatedFees:    fees,
		GrossProfit:      gross,
		NetProfit:        net,
		NetProfitPercent: pct,
	}
}

// TradeAmount bounds the size by the position cap and by the liquidity both
// books offer at or better than the quoted prices.
func TradeAmount(maxPositionSize, buyPrice, sellPrice decimal.Decimal, asks, bids []mdDomain.PriceLevel) decimal.Decimal {
	if !buyPrice.IsPositive() {
		return decimal.Zero
	}
	amount := maxPositionSize.Div(buyPrice)
	amount = decimal.Min(amount, BookDepthImpliedVolume(asks, buyPrice, true))
	amount = decimal.Min(amount, BookDepthImpliedVolume(bids, sellPrice, false))
	return amount
}

// BookDepthImpliedVolume sums level amounts while the level price is at or
// better than target, stopping at the first worse level. For asks better
// means lower, for bids higher.
func BookDepthImpliedVolume(levels []mdDomain.PriceLevel, target decimal.Decimal, asks bool) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		if asks && l.Price.GreaterThan(target) {
			break
		}
		if !asks && l.Price.LessThan(target) {
			break
		}
		total = total.Add(l.Amount)
	}
	return total
}
