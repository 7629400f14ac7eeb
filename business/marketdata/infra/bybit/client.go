// Package bybit implements the ExchangeClient port over the Bybit v5 SDK.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spatial-arb/business/marketdata/app"
	"github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
	"github.com/fd1az/spatial-arb/internal/logger"
	"github.com/fd1az/spatial-arb/internal/ratelimit"
)

const tracerName = "bybit"

var _ app.ExchangeClient = (*Client)(nil)

// Config holds Bybit adapter settings.
type Config struct {
	Name           string
	BaseURL        string
	Category       string // spot, linear
	RequestsPerMin int
}

// Client reads public market data through the v5 unified endpoints.
type Client struct {
	cfg     Config
	api     *bybit_api.Client
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	now     func() time.Time
	healthy atomic.Bool
}

// New creates a Bybit client. Public endpoints need no credentials.
func New(cfg Config, log logger.LoggerInterface) *Client {
	if cfg.Name == "" {
		cfg.Name = "bybit"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = bybit_api.MAINNET
	}
	if cfg.Category == "" {
		cfg.Category = "spot"
	}
	if cfg.RequestsPerMin == 0 {
		cfg.RequestsPerMin = 600
	}

	c := &Client{
		cfg:     cfg,
		api:     bybit_api.NewBybitHttpClient("", "", bybit_api.WithBaseURL(cfg.BaseURL)),
		limiter: ratelimit.New(cfg.Name, cfg.RequestsPerMin),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	c.healthy.Store(true)
	return c
}

// Name returns the venue name.
func (c *Client) Name() string { return c.cfg.Name }

// IsConnected reports whether the last call succeeded.
func (c *Client) IsConnected() bool { return c.healthy.Load() }

type tickersResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		Bid1Price string `json:"bid1Price"`
		Ask1Price string `json:"ask1Price"`
		Volume24h string `json:"volume24h"`
	} `json:"list"`
}

type orderBookResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	TS     int64      `json:"ts"`
}

// GetTicker returns the best bid/ask for symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	sym, err := ExchangeSymbol(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	ctx, span := c.tracer.Start(ctx, "bybit.get_ticker", trace.WithAttributes(attribute.String("symbol", sym)))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Ticker{}, err
	}

	resp, err := c.api.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": c.cfg.Category,
		"symbol":   sym,
	}).GetMarketTickers(ctx)
	c.healthy.Store(err == nil)
	if err != nil {
		span.RecordError(err)
		return domain.Ticker{}, apperror.New(apperror.CodeVenueConnectionFailed,
			apperror.WithContext(c.cfg.Name+" tickers"), apperror.WithCause(err))
	}

	return parseTicker(resp, c.cfg.Name, symbol, c.now())
}

// GetOrderBook returns up to depth levels per side.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	sym, err := ExchangeSymbol(symbol)
	if err != nil {
		return domain.OrderBook{}, err
	}

	ctx, span := c.tracer.Start(ctx, "bybit.get_order_book",
		trace.WithAttributes(attribute.String("symbol", sym), attribute.Int("depth", depth)))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.OrderBook{}, err
	}

	resp, err := c.api.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": c.cfg.Category,
		"symbol":   sym,
		"limit":    depth,
	}).GetOrderBookInfo(ctx)
	c.healthy.Store(err == nil)
	if err != nil {
		span.RecordError(err)
		return domain.OrderBook{}, apperror.New(apperror.CodeVenueConnectionFailed,
			apperror.WithContext(c.cfg.Name+" orderbook"), apperror.WithCause(err))
	}

	book, err := parseOrderBook(resp, c.cfg.Name, symbol, c.now())
	if err != nil {
		return domain.OrderBook{}, err
	}
	return book.Truncate(depth), nil
}

func parseTicker(resp *bybit_api.ServerResponse, venue, symbol string, now time.Time) (domain.Ticker, error) {
	var result tickersResult
	if err := decodeResult(resp, venue, &result); err != nil {
		return domain.Ticker{}, err
	}
	if len(result.List) == 0 {
		return domain.Ticker{}, apperror.New(apperror.CodeUnsupportedSymbol,
			apperror.WithContext(venue+": no ticker for "+symbol))
	}

	item := result.List[0]
	bid, err1 := decimal.NewFromString(item.Bid1Price)
	ask, err2 := decimal.NewFromString(item.Ask1Price)
	if err1 != nil || err2 != nil {
		return domain.Ticker{}, apperror.New(apperror.CodeInvalidTicker,
			apperror.WithContext(venue+" "+symbol+": unparseable price"))
	}
	vol, _ := decimal.NewFromString(item.Volume24h)

	return domain.Ticker{Venue: venue, Symbol: symbol, Bid: bid, Ask: ask, Volume: vol, Timestamp: now}, nil
}

func parseOrderBook(resp *bybit_api.ServerResponse, venue, symbol string, now time.Time) (domain.OrderBook, error) {
	var result orderBookResult
	if err := decodeResult(resp, venue, &result); err != nil {
		return domain.OrderBook{}, err
	}

	bids, err := domain.ParseLevels(result.Bids)
	if err != nil {
		return domain.OrderBook{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err))
	}
	asks, err := domain.ParseLevels(result.Asks)
	if err != nil {
		return domain.OrderBook{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err))
	}

	ts := now
	if result.TS > 0 {
		ts = time.UnixMilli(result.TS)
	}
	return domain.OrderBook{Venue: venue, Symbol: symbol, Bids: bids, Asks: asks, Timestamp: ts}, nil
}

// decodeResult checks retCode and re-decodes the untyped result into out.
func decodeResult(resp *bybit_api.ServerResponse, venue string, out any) error {
	if resp == nil {
		return apperror.New(apperror.CodeVenueAPIError, apperror.WithContext(venue+": empty response"))
	}
	if resp.RetCode != 0 {
		return apperror.New(apperror.CodeVenueAPIError,
			apperror.WithContext(fmt.Sprintf("%s: retCode %d: %s", venue, resp.RetCode, resp.RetMsg)))
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return apperror.New(apperror.CodeVenueAPIError, apperror.WithContext(venue), apperror.WithCause(err))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperror.New(apperror.CodeVenueAPIError, apperror.WithContext(venue), apperror.WithCause(err))
	}
	return nil
}

// ExchangeSymbol maps "BTC/USDT" to "BTCUSDT".
func ExchangeSymbol(symbol string) (string, error) {
	base, quote, ok := domain.SplitSymbol(symbol)
	if !ok {
		return "", apperror.New(apperror.CodeUnsupportedSymbol, apperror.WithContext("bybit: "+symbol))
	}
	return strings.ToUpper(base + quote), nil
}
