package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MarketDataPoint joins a ticker and a book for one (venue, symbol).
type MarketDataPoint struct {
	Venue  string
	Symbol string

	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Volume decimal.Decimal

	// top TopDepthLevels amounts per side
	BidDepth decimal.Decimal
	AskDepth decimal.Decimal

	Bids []PriceLevel
	Asks []PriceLevel

	Spread        decimal.Decimal // ask - bid
	SpreadPercent decimal.Decimal // (ask - bid) / bid * 100

	// the older of the ticker and book observations
	Timestamp time.Time
}

// NewMarketDataPoint validates and combines a ticker and a book.
func NewMarketDataPoint(t Ticker, b OrderBook) (MarketDataPoint, error) {
	if err := t.Validate(); err != nil {
		return MarketDataPoint{}, err
	}
	if err := b.Validate(); err != nil {
		return MarketDataPoint{}, err
	}

	ts := t.Timestamp
	if b.Timestamp.Before(ts) {
		ts = b.Timestamp
	}

	b = b.Truncate(BookDepth)
	spread := t.Ask.Sub(t.Bid)

	return MarketDataPoint{
		Venue:         t.Venue,
		Symbol:        t.Symbol,
		Bid:           t.Bid,
		Ask:           t.Ask,
		Volume:        t.Volume,
		BidDepth:      b.BidDepth(TopDepthLevels),
		AskDepth:      b.AskDepth(TopDepthLevels),
		Bids:          b.Bids,
		Asks:          b.Asks,
		Spread:        spread,
		SpreadPercent: spread.Div(t.Bid).Mul(hundred),
		Timestamp:     ts,
	}, nil
}

// Age is how old the point is at now.
func (p MarketDataPoint) Age(now time.Time) time.Duration {
	return now.Sub(p.Timestamp)
}

// IsStale reports whether the point is older than window at now.
func (p MarketDataPoint) IsStale(now time.Time, window time.Duration) bool {
	return p.Age(now) > window
}

// Key identifies a (venue, symbol) pair.
type Key struct {
	Venue  string
	Symbol string
}

// Snapshot is the keyed table produced by one collection cycle.
type Snapshot struct {
	CollectedAt time.Time
	points      map[Key]MarketDataPoint
}

// NewSnapshot creates an empty table.
func NewSnapshot(at time.Time) *Snapshot {
	return &Snapshot{CollectedAt: at, points: make(map[Key]MarketDataPoint)}
}

// Put stores p unless a fresher point for the same key is already present.
func (s *Snapshot) Put(p MarketDataPoint) {
	k := Key{Venue: p.Venue, Symbol: p.Symbol}
	if cur, ok := s.points[k]; ok && cur.Timestamp.After(p.Timestamp) {
		return
	}
	s.points[k] = p
}

// Get returns the point for venue and symbol.
func (s *Snapshot) Get(venue, symbol string) (MarketDataPoint, bool) {
	p, ok := s.points[Key{Venue: venue, Symbol: symbol}]
	return p, ok
}

// Len returns the number of points.
func (s *Snapshot) Len() int {
	return len(s.points)
}

// Symbols returns the distinct symbols, sorted.
func (s *Snapshot) Symbols() []string {
	seen := make(map[string]struct{})
	for k := range s.points {
		seen[k.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// VenuesFor returns the venues holding data for symbol, sorted.
func (s *Snapshot) VenuesFor(symbol string) []string {
	var out []string
	for k := range s.points {
		if k.Symbol == symbol {
			out = append(out, k.Venue)
		}
	}
	sort.Strings(out)
	return out
}

// CollectionError is a per-pair fetch failure. The pair is absent from the
// snapshot for that cycle.
type CollectionError struct {
	Venue  string
	Symbol string
	Cause  error
}

func (e CollectionError) Error() string {
	return "collect " + e.Venue + " " + e.Symbol + ": " + e.Cause.Error()
}

func (e CollectionError) Unwrap() error {
	return e.Cause
}
