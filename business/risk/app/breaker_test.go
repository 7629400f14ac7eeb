package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(clk *clock) (*CircuitBreaker, *[]BreakerEvent) {
	b := NewCircuitBreaker(dec("100"), time.Hour, 30*time.Minute)
	b.now = clk.now
	events := &[]BreakerEvent{}
	b.OnEvent(func(e BreakerEvent, _ decimal.Decimal) {
		*events = append(*events, e)
	})
	return b, events
}

func TestCircuitBreaker_TriggersAtExactThreshold(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b, events := newTestBreaker(clk)

	b.RecordTradeResult(dec("-60"))
	if !b.CanTrade() {
		t.Fatal("breaker tripped before the threshold")
	}

	clk.advance(time.Minute)
	b.RecordTradeResult(dec("-40"))

	if b.CanTrade() {
		t.Fatal("breaker should trip when the window sum reaches -threshold")
	}
	st := b.State()
	if !st.Triggered || !st.CumulativePnL.Equal(dec("-100")) {
		t.Errorf("State() = %+v", st)
	}
	if len(*events) != 1 || (*events)[0] != BreakerTriggered {
		t.Errorf("events = %v", *events)
	}

	b.RecordTradeResult(dec("-10"))
	if len(*events) != 1 {
		t.Errorf("already tripped breaker fired again: %v", *events)
	}
}

func TestCircuitBreaker_Cooldown(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b, events := newTestBreaker(clk)

	b.RecordTradeResult(dec("-150"))

	clk.advance(30 * time.Minute)
	if b.CanTrade() {
		t.Fatal("CanTrade() true at exactly the cooldown")
	}

	clk.advance(time.Second)
	if !b.CanTrade() {
		t.Fatal("CanTrade() false after the cooldown")
	}

	st := b.State()
	if st.Triggered {
		t.Error("trigger should clear after cooldown")
	}
	if st.Results != 1 {
		t.Errorf("Results = %d, cooldown must keep the window", st.Results)
	}
	want := []BreakerEvent{BreakerTriggered, BreakerCooledDown}
	if len(*events) != len(want) || (*events)[0] != want[0] || (*events)[1] != want[1] {
		t.Errorf("events = %v, want %v", *events, want)
	}
}

func TestCircuitBreaker_BlockingIsReadOnly(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b, events := newTestBreaker(clk)

	if b.Blocking() {
		t.Fatal("fresh breaker should not block")
	}
	b.RecordTradeResult(dec("-150"))
	if !b.Blocking() {
		t.Fatal("tripped breaker should block inside the cooldown")
	}

	clk.advance(31 * time.Minute)
	if b.Blocking() {
		t.Error("Blocking() true after the cooldown")
	}
	if !b.State().Triggered {
		t.Error("Blocking() must not clear the trigger")
	}
	if len(*events) != 1 {
		t.Errorf("events = %v, want only the trigger", *events)
	}
}

func TestCircuitBreaker_LookbackPrunes(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b, _ := newTestBreaker(clk)

	b.RecordTradeResult(dec("-60"))
	clk.advance(time.Hour)
	b.RecordTradeResult(dec("-60"))

	if !b.CanTrade() {
		t.Fatal("a result exactly one lookback old should be pruned")
	}
	st := b.State()
	if st.Results != 1 || !st.CumulativePnL.Equal(dec("-60")) {
		t.Errorf("State() = %+v", st)
	}
}

func TestCircuitBreaker_GainsOffsetLosses(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b, _ := newTestBreaker(clk)

	for _, pnl := range []string{"-80", "30", "-40"} {
		b.RecordTradeResult(dec(pnl))
		clk.advance(time.Minute)
	}
	if !b.CanTrade() {
		t.Errorf("window sum -90 should not trip, state = %+v", b.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b, events := newTestBreaker(clk)

	b.RecordTradeResult(dec("-200"))
	b.Reset()

	if !b.CanTrade() {
		t.Fatal("CanTrade() false after Reset")
	}
	st := b.State()
	if st.Results != 0 || !st.CumulativePnL.IsZero() || st.Triggered {
		t.Errorf("State() after Reset = %+v", st)
	}
	if last := (*events)[len(*events)-1]; last != BreakerReset {
		t.Errorf("last event = %v", last)
	}
}
