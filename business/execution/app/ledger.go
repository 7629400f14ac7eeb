// Package app contains the portfolio ledger shared by the executor and the
// risk gate.
package app

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spatial-arb/business/execution/domain"
	mdDomain "github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
)

// Balance is one venue/asset balance.
type Balance struct {
	Venue  string
	Asset  string
	Amount decimal.Decimal
}

type position struct {
	venue  string
	symbol string
}

// Ledger tracks paper balances per venue and the base inventory moved by
// executed legs. Quote balances are funded up front; base inventory starts
// flat and may go negative on the selling venue.
type Ledger struct {
	mu        sync.RWMutex
	cash      map[string]map[string]decimal.Decimal // venue -> quote asset -> amount
	positions map[position]decimal.Decimal          // base units
	marks     map[string]decimal.Decimal            // symbol -> last fill mid
}

// NewLedger funds every venue with initial in each quote asset of symbols.
func NewLedger(venues, symbols []string, initial decimal.Decimal) *Ledger {
	l := &Ledger{
		cash:      make(map[string]map[string]decimal.Decimal, len(venues)),
		positions: make(map[position]decimal.Decimal),
		marks:     make(map[string]decimal.Decimal),
	}

	quotes := make(map[string]struct{})
	for _, s := range symbols {
		if _, q, ok := mdDomain.SplitSymbol(s); ok {
			quotes[q] = struct{}{}
		}
	}

	for _, v := range venues {
		l.cash[v] = make(map[string]decimal.Decimal, len(quotes))
		for q := range quotes {
			l.cash[v][q] = initial
		}
	}
	return l
}

// Available returns the quote balance held on venue for symbol.
func (l *Ledger) Available(venue, symbol string) decimal.Decimal {
	_, quote, _ := mdDomain.SplitSymbol(symbol)

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash[venue][quote]
}

// Apply books both legs of an execution. It fails without changes when the
// buying venue cannot pay for its leg.
func (l *Ledger) Apply(fills []domain.Fill) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, f := range fills {
		if _, ok := l.cash[f.Venue]; !ok {
			return apperror.New(apperror.CodeUnknownVenue, apperror.WithContext("ledger: "+f.Venue))
		}
		if _, _, ok := mdDomain.SplitSymbol(f.Symbol); !ok {
			return apperror.New(apperror.CodeUnsupportedSymbol, apperror.WithContext("ledger: "+f.Symbol))
		}
		if f.Side != domain.SideBuy {
			continue
		}
		_, quote, _ := mdDomain.SplitSymbol(f.Symbol)
		cost := f.Notional().Add(f.Fee)
		if l.cash[f.Venue][quote].LessThan(cost) {
			return apperror.New(apperror.CodeInsufficientBalance,
				apperror.WithContext(f.Venue+" "+quote+" needs "+cost.StringFixed(2)))
		}
	}

	var notional, amount decimal.Decimal
	for _, f := range fills {
		_, quote, _ := mdDomain.SplitSymbol(f.Symbol)
		key := position{venue: f.Venue, symbol: f.Symbol}

		switch f.Side {
		case domain.SideBuy:
			l.cash[f.Venue][quote] = l.cash[f.Venue][quote].Sub(f.Notional()).Sub(f.Fee)
			l.positions[key] = l.positions[key].Add(f.Amount)
		case domain.SideSell:
			l.cash[f.Venue][quote] = l.cash[f.Venue][quote].Add(f.Notional()).Sub(f.Fee)
			l.positions[key] = l.positions[key].Sub(f.Amount)
		}
		notional = notional.Add(f.Notional())
		amount = amount.Add(f.Amount)
	}

	if len(fills) > 0 && amount.IsPositive() {
		l.marks[fills[0].Symbol] = notional.Div(amount)
	}
	return nil
}

// TotalValue returns cash plus base inventory at the last fill price.
func (l *Ledger) TotalValue(_ context.Context) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, assets := range l.cash {
		for _, amt := range assets {
			total = total.Add(amt)
		}
	}
	for key, qty := range l.positions {
		total = total.Add(qty.Mul(l.marks[key.symbol]))
	}
	return total, nil
}

// ExposureBySymbol returns the absolute inventory notional in symbol across
// venues.
func (l *Ledger) ExposureBySymbol(_ context.Context, symbol string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	exposure := decimal.Zero
	for key, qty := range l.positions {
		if key.symbol == symbol {
			exposure = exposure.Add(qty.Abs().Mul(l.marks[symbol]))
		}
	}
	return exposure, nil
}

// ExposureByVenue returns the absolute inventory notional held on venue.
func (l *Ledger) ExposureByVenue(_ context.Context, venue string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	exposure := decimal.Zero
	for key, qty := range l.positions {
		if key.venue == venue {
			exposure = exposure.Add(qty.Abs().Mul(l.marks[key.symbol]))
		}
	}
	return exposure, nil
}

// Balances returns every quote balance sorted by venue then asset.
func (l *Ledger) Balances() []Balance {
	l.mu.RLock()
	out := make([]Balance, 0, len(l.cash))
	for venue, assets := range l.cash {
		for asset, amt := range assets {
			out = append(out, Balance{Venue: venue, Asset: asset, Amount: amt})
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Venue != out[j].Venue {
			return out[i].Venue < out[j].Venue
		}
		return out[i].Asset < out[j].Asset
	})
	return out
}
