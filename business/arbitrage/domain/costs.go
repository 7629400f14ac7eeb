package domain

import "github.com/shopspring/decimal"

// VenueFees holds taker rates for one venue, as fractions (0.001 = 10 bps).
type VenueFees struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
}

// FeeSchedule resolves taker rates per venue and side.
type FeeSchedule struct {
	Default decimal.Decimal
	Venues  map[string]VenueFees
}

// BuyRate returns the taker rate for buying on venue.
func (f FeeSchedule) BuyRate(venue string) decimal.Decimal {
	if v, ok := f.Venues[venue]; ok {
		return v.Buy
	}
	return f.Default
}

// SellRate returns the taker rate for selling on venue.
func (f FeeSchedule) SellRate(venue string) decimal.Decimal {
	if v, ok := f.Venues[venue]; ok {
		return v.Sell
	}
	return f.Default
}

// ProfitResult is the cost breakdown of one candidate trade.
type ProfitResult struct {
	RequiredCapital  decimal.Decimal
	BuyFee           decimal.Decimal
	SellFee          decimal.Decimal
	EstimatedFees    decimal.Decimal
	GrossProfit      decimal.Decimal
	NetProfit        decimal.Decimal
	NetProfitPercent decimal.Decimal // net / required capital * 100
}

// IsProfitable reports a strictly positive net profit.
func (r ProfitResult) IsProfitable() bool {
	return r.NetProfit.IsPositive()
}
