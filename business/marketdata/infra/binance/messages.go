// Package binance implements the ExchangeClient port for Binance spot.
package binance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
)

// StreamEvent is the combined stream wrapper.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTickerEvent is a best bid/ask update.
// Stream: <symbol>@bookTicker
type BookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// Ticker24hResponse is the REST 24h rolling ticker.
type Ticker24hResponse struct {
	Symbol    string `json:"symbol"`
	BidPrice  string `json:"bidPrice"`
	AskPrice  string `json:"askPrice"`
	Volume    string `json:"volume"`
	CloseTime int64  `json:"closeTime"`
}

// DepthResponse is the REST order book snapshot.
type DepthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// APIError is the Binance error body.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

func errorHandler(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return apperror.New(apperror.CodeVenueAPIError,
			apperror.WithContext("binance"), apperror.WithCause(&apiErr))
	}
	return apperror.New(apperror.CodeVenueAPIError,
		apperror.WithContext(fmt.Sprintf("binance: HTTP %d: %s", statusCode, body)))
}

// ExchangeSymbol maps "BTC/USDT" to "BTCUSDT".
func ExchangeSymbol(symbol string) (string, error) {
	base, quote, ok := domain.SplitSymbol(symbol)
	if !ok {
		return "", apperror.New(apperror.CodeUnsupportedSymbol, apperror.WithContext("binance: "+symbol))
	}
	return strings.ToUpper(base + quote), nil
}

// BookTickerStream returns the bookTicker stream name for an exchange symbol.
func BookTickerStream(exchangeSymbol string) string {
	return strings.ToLower(exchangeSymbol) + "@bookTicker"
}

// depthLimit rounds up to a limit the depth endpoint accepts.
func depthLimit(depth int) int {
	for _, l := range []int{5, 10, 20, 50, 100, 500, 1000, 5000} {
		if depth <= l {
			return l
		}
	}
	return 5000
}
