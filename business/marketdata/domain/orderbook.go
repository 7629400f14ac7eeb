// Package domain contains the core domain types for the market data context.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spatial-arb/internal/apperror"
)

const (
	// BookDepth is the number of levels requested per side.
	BookDepth = 10
	// TopDepthLevels is how many levels feed the depth metrics.
	TopDepthLevels = 5
)

// PriceLevel is one aggregated book level.
type PriceLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal // base units
}

// Ticker is the best bid/ask quote of one venue.
type Ticker struct {
	Venue     string
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Volume    decimal.Decimal // 24h base volume, zero when unknown
	Timestamp time.Time
}

// Validate checks the quote is usable.
func (t Ticker) Validate() error {
	switch {
	case !t.Bid.IsPositive() || !t.Ask.IsPositive():
		return invalidTicker(t, "non-positive bid or ask")
	case t.Ask.LessThan(t.Bid):
		return invalidTicker(t, fmt.Sprintf("crossed quote bid=%s ask=%s", t.Bid, t.Ask))
	case t.Timestamp.IsZero():
		return invalidTicker(t, "missing timestamp")
	}
	return nil
}

func invalidTicker(t Ticker, msg string) error {
	return apperror.New(apperror.CodeInvalidTicker,
		apperror.WithContext(t.Venue+" "+t.Symbol+": "+msg))
}

// OrderBook is a fixed-depth book snapshot. Bids are sorted best (highest)
// first, asks best (lowest) first.
type OrderBook struct {
	Venue     string
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// Validate checks both sides are present, positive and sorted.
func (b OrderBook) Validate() error {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return b.invalid("empty side")
	}
	if b.Timestamp.IsZero() {
		return b.invalid("missing timestamp")
	}
	for i, l := range b.Bids {
		if !l.Price.IsPositive() || l.Amount.IsNegative() {
			return b.invalid(fmt.Sprintf("bad bid level %d", i))
		}
		if i > 0 && l.Price.GreaterThan(b.Bids[i-1].Price) {
			return b.invalid("bids not descending")
		}
	}
	for i, l := range b.Asks {
		if !l.Price.IsPositive() || l.Amount.IsNegative() {
			return b.invalid(fmt.Sprintf("bad ask level %d", i))
		}
		if i > 0 && l.Price.LessThan(b.Asks[i-1].Price) {
			return b.invalid("asks not ascending")
		}
	}
	return nil
}

func (b OrderBook) invalid(msg string) error {
	return apperror.New(apperror.CodeInvalidOrderbook,
		apperror.WithContext(b.Venue+" "+b.Symbol+": "+msg))
}

// BidDepth sums the amounts of the top n bid levels.
func (b OrderBook) BidDepth(n int) decimal.Decimal {
	return sumAmounts(b.Bids, n)
}

// AskDepth sums the amounts of the top n ask levels.
func (b OrderBook) AskDepth(n int) decimal.Decimal {
	return sumAmounts(b.Asks, n)
}

func sumAmounts(levels []PriceLevel, n int) decimal.Decimal {
	total := decimal.Zero
	for i := 0; i < len(levels) && i < n; i++ {
		total = total.Add(levels[i].Amount)
	}
	return total
}

// Truncate returns a copy limited to depth levels per side.
func (b OrderBook) Truncate(depth int) OrderBook {
	out := b
	if len(out.Bids) > depth {
		out.Bids = append([]PriceLevel(nil), out.Bids[:depth]...)
	}
	if len(out.Asks) > depth {
		out.Asks = append([]PriceLevel(nil), out.Asks[:depth]...)
	}
	return out
}

// ParseLevels converts venue [price, amount] string pairs into levels.
// Zero amount levels are skipped.
func ParseLevels(raw [][]string) ([]PriceLevel, error) {
	levels := make([]PriceLevel, 0, len(raw))
	for _, r := range raw {
		if len(r) < 2 {
			continue
		}
		price, err := decimal.NewFromString(r[0])
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", r[0], err)
		}
		amount, err := decimal.NewFromString(r[1])
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", r[1], err)
		}
		if amount.IsZero() {
			continue
		}
		levels = append(levels, PriceLevel{Price: price, Amount: amount})
	}
	return levels, nil
}

// SplitSymbol splits "BTC/USDT" into base and quote.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '/' {
			if i == 0 || i == len(symbol)-1 {
				return "", "", false
			}
			return symbol[:i], symbol[i+1:], true
		}
	}
	return "", "", false
}
