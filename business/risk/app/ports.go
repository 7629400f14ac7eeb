// Package app contains the risk gate services and the ports they depend on.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	mdDomain "github.com/fd1az/spatial-arb/business/marketdata/domain"
)

// PortfolioProvider exposes the current portfolio valuation.
type PortfolioProvider interface {
	// TotalValue returns the quote value of every balance.
	TotalValue(ctx context.Context) (decimal.Decimal, error)

	// ExposureBySymbol returns the open notional in symbol.
	ExposureBySymbol(ctx context.Context, symbol string) (decimal.Decimal, error)

	// ExposureByVenue returns the open notional held on venue.
	ExposureByVenue(ctx context.Context, venue string) (decimal.Decimal, error)
}

// VenueHealth reports counterparty state per venue.
type VenueHealth interface {
	IsConnected(venue string) bool
	ConsecutiveErrors(venue string) int
}

// OrderBookSource re-reads a venue order book.
type OrderBookSource interface {
	OrderBook(ctx context.Context, venue, symbol string) (mdDomain.OrderBook, error)
}
