package app

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BreakerEvent is published when the loss breaker changes state.
type BreakerEvent string

const (
	BreakerTriggered  BreakerEvent = "triggered"
	BreakerCooledDown BreakerEvent = "cooled_down"
	BreakerReset      BreakerEvent = "reset"
)

// BreakerListener receives breaker events with the window P&L at that time.
type BreakerListener func(event BreakerEvent, cumulative decimal.Decimal)

// BreakerState is a read-only view of the breaker.
type BreakerState struct {
	Triggered     bool
	TriggeredAt   time.Time
	CumulativePnL decimal.Decimal
	Results       int
}

type tradeResult struct {
	pnl decimal.Decimal
	at  time.Time
}

// CircuitBreaker halts trading after realized losses in a rolling window
// reach the threshold. It is distinct from the per-venue call breakers in
// internal/circuitbreaker, which guard API calls rather than P&L.
type CircuitBreaker struct {
	threshold decimal.Decimal
	lookback  time.Duration
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	results     []tradeResult
	cumulative  decimal.Decimal
	triggered   bool
	triggeredAt time.Time
	listener    BreakerListener
}

// NewCircuitBreaker builds a breaker. threshold is a positive loss amount.
func NewCircuitBreaker(threshold decimal.Decimal, lookback, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold.Abs(),
		lookback:  lookback,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// OnEvent registers the event listener.
func (b *CircuitBreaker) OnEvent(fn BreakerListener) {
	b.mu.Lock()
	b.listener = fn
	b.mu.Unlock()
}

// RecordTradeResult adds a realized result and trips the breaker when the
// window sum reaches -threshold.
func (b *CircuitBreaker) RecordTradeResult(pnl decimal.Decimal) {
	b.mu.Lock()
	now := b.now()
	b.results = append(b.results, tradeResult{pnl: pnl, at: now})
	b.prune(now)

	var fire bool
	if !b.triggered && b.cumulative.LessThanOrEqual(b.threshold.Neg()) {
		b.triggered = true
		b.triggeredAt = now
		fire = true
	}
	cumulative := b.cumulative
	listener := b.listener
	b.mu.Unlock()

	if fire && listener != nil {
		listener(BreakerTriggered, cumulative)
	}
}

// CanTrade reports whether trading is allowed. A tripped breaker clears
// itself once the cooldown has elapsed; the result window is kept.
func (b *CircuitBreaker) CanTrade() bool {
	b.mu.Lock()
	if !b.triggered {
		b.mu.Unlock()
		return true
	}
	if b.now().Sub(b.triggeredAt) <= b.cooldown {
		b.mu.Unlock()
		return false
	}
	b.triggered = false
	b.triggeredAt = time.Time{}
	cumulative := b.cumulative
	listener := b.listener
	b.mu.Unlock()

	if listener != nil {
		listener(BreakerCooledDown, cumulative)
	}
	return true
}

// Blocking reports whether a trigger is standing inside its cooldown. Unlike
// CanTrade it never clears the trigger or notifies the listener.
func (b *CircuitBreaker) Blocking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.triggered && b.now().Sub(b.triggeredAt) <= b.cooldown
}

// Reset clears the trigger and the result window.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	b.results = nil
	b.cumulative = decimal.Zero
	b.triggered = false
	b.triggeredAt = time.Time{}
	listener := b.listener
	b.mu.Unlock()

	if listener != nil {
		listener(BreakerReset, decimal.Zero)
	}
}

// State returns a snapshot.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerState{
		Triggered:     b.triggered,
		TriggeredAt:   b.triggeredAt,
		CumulativePnL: b.cumulative,
		Results:       len(b.results),
	}
}

// prune drops results at or before now-lookback and recomputes the sum.
// Caller holds mu.
func (b *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-b.lookback)
	kept := b.results[:0]
	sum := decimal.Zero
	for _, r := range b.results {
		if r.at.After(cutoff) {
			kept = append(kept, r)
			sum = sum.Add(r.pnl)
		}
	}
	b.results = kept
	b.cumulative = sum
}
