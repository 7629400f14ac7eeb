// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/spatial-arb/internal/apperror"
)

// Blocker is a reason an opportunity may not be traded.
type Blocker struct {
	Reason  string // machine readable, used as a metric label
	Message string
}

// Opportunity is a cross-venue price discrepancy for one symbol.
type Opportunity struct {
	ID        string
	Symbol    string
	BuyVenue  string
	SellVenue string

	BuyPrice      decimal.Decimal // buy venue ask
	SellPrice     decimal.Decimal // sell venue bid
	Spread        decimal.Decimal
	SpreadPercent decimal.Decimal

	Amount          decimal.Decimal // base units
	RequiredCapital decimal.Decimal // quote units

	BuyFee        decimal.Decimal
	SellFee       decimal.Decimal
	EstimatedFees decimal.Decimal

	GrossProfit      decimal.Decimal
	NetProfit        decimal.Decimal
	NetProfitPercent decimal.Decimal

	Confidence float64
	RiskScore  float64

	Status     Status
	DetectedAt time.Time
	ExpiresAt  time.Time
	UpdatedAt  time.Time

	Blockers    []Blocker
	RealizedPnL decimal.Decimal
}

// NewID derives the opportunity id from its key and detection time, so the
// same candidate detected twice at the same instant gets the same id.
func NewID(symbol string, d Direction, detectedAt time.Time) string {
	name := symbol + "|" + d.BuyVenue + "|" + d.SellVenue + "|" + strconv.FormatInt(detectedAt.UnixNano(), 10)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Key is the dedupe key of in-flight opportunities.
type Key struct {
	Symbol    string
	BuyVenue  string
	SellVenue string
}

func (k Key) String() string {
	return k.Symbol + ":" + k.BuyVenue + "->" + k.SellVenue
}

// Direction returns the venue legs.
func (o *Opportunity) Direction() Direction {
	return Direction{BuyVenue: o.BuyVenue, SellVenue: o.SellVenue}
}

// Key returns the dedupe key.
func (o *Opportunity) Key() Key {
	return Key{Symbol: o.Symbol, BuyVenue: o.BuyVenue, SellVenue: o.SellVenue}
}

// IsExpired reports whether t is at or past ExpiresAt.
func (o *Opportunity) IsExpired(t time.Time) bool {
	return !t.Before(o.ExpiresAt)
}

// Transition moves the opportunity to next, rejecting edges the lifecycle
// does not allow.
func (o *Opportunity) Transition(next Status, at time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return apperror.New(apperror.CodeInvalidStatusTransition,
			apperror.WithContext(o.ID+": "+string(o.Status)+" -> "+string(next)))
	}
	o.Status = next
	o.UpdatedAt = at
	return nil
}

// Reject moves the opportunity to Rejected and retains the blockers.
func (o *Opportunity) Reject(blockers []Blocker, at time.Time) error {
	if err := o.Transition(StatusRejected, at); err != nil {
		return err
	}
	o.Blockers = append(o.Blockers[:0:0], blockers...)
	return nil
}
