package domain

import "github.com/shopspring/decimal"

// TradeStats aggregates realized trade outcomes for Kelly sizing.
type TradeStats struct {
	Wins      int
	Losses    int
	TotalWin  decimal.Decimal
	TotalLoss decimal.Decimal // positive magnitude
	Realized  decimal.Decimal
}

// Record adds one realized result. Zero counts as neither win nor loss.
func (s *TradeStats) Record(pnl decimal.Decimal) {
	s.Realized = s.Realized.Add(pnl)
	switch {
	case pnl.IsPositive():
		s.Wins++
		s.TotalWin = s.TotalWin.Add(pnl)
	case pnl.IsNegative():
		s.Losses++
		s.TotalLoss = s.TotalLoss.Add(pnl.Abs())
	}
}

// Trades returns the number of decided trades.
func (s TradeStats) Trades() int {
	return s.Wins + s.Losses
}

// WinRate returns wins / trades, 0 without trades.
func (s TradeStats) WinRate() float64 {
	if s.Trades() == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades())
}

// AvgWin returns the mean winning trade.
func (s TradeStats) AvgWin() decimal.Decimal {
	if s.Wins == 0 {
		return decimal.Zero
	}
	return s.TotalWin.Div(decimal.NewFromInt(int64(s.Wins)))
}

// AvgLoss returns the mean losing trade as a positive amount.
func (s TradeStats) AvgLoss() decimal.Decimal {
	if s.Losses == 0 {
		return decimal.Zero
	}
	return s.TotalLoss.Div(decimal.NewFromInt(int64(s.Losses)))
}
