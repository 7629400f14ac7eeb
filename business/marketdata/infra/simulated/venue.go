// Package simulated provides an offline venue that quotes noisy prices
// around configured base prices.
package simulated

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spatial-arb/business/marketdata/app"
	"github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
)

var _ app.ExchangeClient = (*Venue)(nil)

// Config holds simulated venue settings.
type Config struct {
	Name       string
	BasePrices map[string]float64 // symbol -> mid
	Volatility float64            // stddev of the mid as a fraction
	Skew       float64            // constant offset of the mid as a fraction
	HalfSpread float64            // bid/ask half spread as a fraction
	TickSize   float64            // book level spacing as a fraction of mid
	Seed       uint64
}

// Venue quotes mid = base * (1 + skew + volatility*N(0,1)). Each GetTicker
// draws a new mid; GetOrderBook reuses the latest one.
type Venue struct {
	cfg  Config
	now  func() time.Time
	down atomic.Bool

	mu    sync.Mutex
	rng   *rand.Rand
	base  map[string]float64
	mids  map[string]float64
	stamp map[string]time.Time
}

// New creates a simulated venue. Symbol lookups are case-insensitive.
func New(cfg Config) *Venue {
	if cfg.HalfSpread <= 0 {
		cfg.HalfSpread = 0.0001
	}
	if cfg.TickSize <= 0 {
		cfg.TickSize = 0.0001
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	base := make(map[string]float64, len(cfg.BasePrices))
	for sym, p := range cfg.BasePrices {
		base[strings.ToUpper(sym)] = p
	}

	return &Venue{
		cfg:   cfg,
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		base:  base,
		mids:  make(map[string]float64),
		stamp: make(map[string]time.Time),
	}
}

// Name returns the venue name.
func (v *Venue) Name() string { return v.cfg.Name }

// IsConnected reports false while an outage is simulated.
func (v *Venue) IsConnected() bool { return !v.down.Load() }

// SetAvailable toggles a simulated outage.
func (v *Venue) SetAvailable(ok bool) { v.down.Store(!ok) }

// GetTicker draws a new mid and returns the quote around it.
func (v *Venue) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	if err := v.check(ctx); err != nil {
		return domain.Ticker{}, err
	}

	mid, at, err := v.next(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	bid, ask := v.quote(mid)
	return domain.Ticker{
		Venue:     v.cfg.Name,
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Volume:    decimal.NewFromInt(1000),
		Timestamp: at,
	}, nil
}

// GetOrderBook builds depth levels around the latest mid.
func (v *Venue) GetOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	if err := v.check(ctx); err != nil {
		return domain.OrderBook{}, err
	}

	v.mu.Lock()
	key := strings.ToUpper(symbol)
	mid, ok := v.mids[key]
	at := v.stamp[key]
	if !ok {
		v.mu.Unlock()
		var err error
		if mid, at, err = v.next(symbol); err != nil {
			return domain.OrderBook{}, err
		}
		v.mu.Lock()
	}
	amounts := make([]float64, 2*depth)
	for i := range amounts {
		amounts[i] = 0.5 + v.rng.Float64()*2
	}
	v.mu.Unlock()

	bestBid, bestAsk := v.quote(mid)
	tick := decimal.NewFromFloat(mid * v.cfg.TickSize)

	book := domain.OrderBook{
		Venue:     v.cfg.Name,
		Symbol:    symbol,
		Bids:      make([]domain.PriceLevel, 0, depth),
		Asks:      make([]domain.PriceLevel, 0, depth),
		Timestamp: at,
	}
	for i := 0; i < depth; i++ {
		step := tick.Mul(decimal.NewFromInt(int64(i)))
		book.Bids = append(book.Bids, domain.PriceLevel{
			Price:  bestBid.Sub(step),
			Amount: decimal.NewFromFloat(amounts[2*i]).Round(4),
		})
		book.Asks = append(book.Asks, domain.PriceLevel{
			Price:  bestAsk.Add(step),
			Amount: decimal.NewFromFloat(amounts[2*i+1]).Round(4),
		})
	}
	return book, nil
}

func (v *Venue) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.down.Load() {
		return apperror.New(apperror.CodeVenueConnectionFailed,
			apperror.WithContext(v.cfg.Name+": simulated outage"))
	}
	return nil
}

func (v *Venue) next(symbol string) (float64, time.Time, error) {
	key := strings.ToUpper(symbol)

	v.mu.Lock()
	defer v.mu.Unlock()

	base, ok := v.base[key]
	if !ok || base <= 0 {
		return 0, time.Time{}, apperror.New(apperror.CodeUnsupportedSymbol,
			apperror.WithContext(v.cfg.Name+": "+symbol))
	}

	mid := base * (1 + v.cfg.Skew + v.cfg.Volatility*v.rng.NormFloat64())
	at := v.now()
	v.mids[key] = mid
	v.stamp[key] = at
	return mid, at, nil
}

func (v *Venue) quote(mid float64) (bid, ask decimal.Decimal) {
	m := decimal.NewFromFloat(mid)
	half := m.Mul(decimal.NewFromFloat(v.cfg.HalfSpread))
	return m.Sub(half).Round(8), m.Add(half).Round(8)
}
