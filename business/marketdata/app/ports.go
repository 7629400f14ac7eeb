// Package app contains application services and port definitions for the market data context.
package app

import (
	"context"

	"github.com/fd1az/spatial-arb/business/marketdata/domain"
)

// ExchangeClient is a read-only market data source for one venue.
type ExchangeClient interface {
	// Name returns the configured venue name.
	Name() string

	// GetTicker returns the best bid/ask for symbol ("BTC/USDT").
	GetTicker(ctx context.Context, symbol string) (domain.Ticker, error)

	// GetOrderBook returns up to depth levels per side.
	GetOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error)

	// IsConnected reports whether the venue is currently reachable.
	IsConnected() bool
}
