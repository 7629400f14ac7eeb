// Package kraken implements the ExchangeClient port for Kraken spot over
// the public REST API.
package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spatial-arb/business/marketdata/app"
	"github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
	"github.com/fd1az/spatial-arb/internal/ratelimit"
)

const (
	DefaultAPIURL = "https://api.kraken.com"

	tickerPath = "/0/public/Ticker"
	depthPath  = "/0/public/Depth"

	tracerName = "kraken"
)

var _ app.ExchangeClient = (*Client)(nil)

// Config holds Kraken adapter settings.
type Config struct {
	Name           string
	BaseURL        string
	RequestsPerMin int
	Timeout        time.Duration
}

// Client reads Kraken public market data.
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *ratelimit.Limiter
	tracer  trace.Tracer
	now     func() time.Time
	healthy atomic.Bool
}

// New creates a Kraken client.
func New(cfg Config) *Client {
	if cfg.Name == "" {
		cfg.Name = "kraken"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerMin == 0 {
		cfg.RequestsPerMin = 60
	}

	rc := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	c := &Client{
		cfg:     cfg,
		http:    rc,
		limiter: ratelimit.New(cfg.Name, cfg.RequestsPerMin),
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

type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

type tickerInfo struct {
	Ask    []string `json:"a"` // price, whole lot volume, lot volume
	Bid    []string `json:"b"`
	Volume []string `json:"v"` // today, last 24h
}

type depthInfo struct {
	Asks [][]any `json:"asks"` // price, volume, timestamp
	Bids [][]any `json:"bids"`
}

// GetTicker returns the best bid/ask for symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	pair, err := ExchangeSymbol(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	var result map[string]tickerInfo
	if err := c.get(ctx, "ticker", tickerPath, map[string]string{"pair": pair}, &result); err != nil {
		return domain.Ticker{}, err
	}

	info, ok := first(result)
	if !ok || len(info.Ask) == 0 || len(info.Bid) == 0 {
		return domain.Ticker{}, apperror.New(apperror.CodeUnsupportedSymbol,
			apperror.WithContext(c.cfg.Name+": no ticker for "+symbol))
	}

	bid, err1 := decimal.NewFromString(info.Bid[0])
	ask, err2 := decimal.NewFromString(info.Ask[0])
	if err1 != nil || err2 != nil {
		return domain.Ticker{}, apperror.New(apperror.CodeInvalidTicker,
			apperror.WithContext(c.cfg.Name+" "+symbol+": unparseable price"))
	}
	vol := decimal.Zero
	if len(info.Volume) > 1 {
		vol, _ = decimal.NewFromString(info.Volume[1])
	}

	return domain.Ticker{Venue: c.cfg.Name, Symbol: symbol, Bid: bid, Ask: ask, Volume: vol, Timestamp: c.now()}, nil
}

// GetOrderBook returns up to depth levels per side.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	pair, err := ExchangeSymbol(symbol)
	if err != nil {
		return domain.OrderBook{}, err
	}

	var result map[string]depthInfo
	params := map[string]string{"pair": pair, "count": strconv.Itoa(depth)}
	if err := c.get(ctx, "depth", depthPath, params, &result); err != nil {
		return domain.OrderBook{}, err
	}

	info, ok := first(result)
	if !ok {
		return domain.OrderBook{}, apperror.New(apperror.CodeUnsupportedSymbol,
			apperror.WithContext(c.cfg.Name+": no book for "+symbol))
	}

	bids, err := domain.ParseLevels(stringLevels(info.Bids))
	if err != nil {
		return domain.OrderBook{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err))
	}
	asks, err := domain.ParseLevels(stringLevels(info.Asks))
	if err != nil {
		return domain.OrderBook{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err))
	}

	book := domain.OrderBook{Venue: c.cfg.Name, Symbol: symbol, Bids: bids, Asks: asks, Timestamp: c.now()}
	return book.Truncate(depth), nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, params map[string]string, out any) error {
	ctx, span := c.tracer.Start(ctx, "kraken."+endpoint,
		trace.WithAttributes(attribute.String("pair", params["pair"])))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		c.healthy.Store(false)
		span.RecordError(err)
		return apperror.New(apperror.CodeVenueConnectionFailed,
			apperror.WithContext(c.cfg.Name+" "+endpoint), apperror.WithCause(err))
	}
	if resp.StatusCode() != http.StatusOK {
		c.healthy.Store(false)
		return apperror.New(apperror.CodeVenueAPIError,
			apperror.WithContext(fmt.Sprintf("%s %s: HTTP %d", c.cfg.Name, endpoint, resp.StatusCode())))
	}
	c.healthy.Store(true)

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return apperror.New(apperror.CodeVenueAPIError,
			apperror.WithContext(c.cfg.Name+" "+endpoint), apperror.WithCause(err))
	}
	if len(env.Error) > 0 {
		return apperror.New(apperror.CodeVenueAPIError,
			apperror.WithContext(c.cfg.Name+" "+endpoint+": "+strings.Join(env.Error, "; ")))
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return apperror.New(apperror.CodeVenueAPIError,
			apperror.WithContext(c.cfg.Name+" "+endpoint), apperror.WithCause(err))
	}
	return nil
}

// ExchangeSymbol maps "BTC/USDT" to Kraken's "XBTUSDT".
func ExchangeSymbol(symbol string) (string, error) {
	base, quote, ok := domain.SplitSymbol(symbol)
	if !ok {
		return "", apperror.New(apperror.CodeUnsupportedSymbol, apperror.WithContext("kraken: "+symbol))
	}
	return krakenAsset(base) + krakenAsset(quote), nil
}

func krakenAsset(a string) string {
	switch a = strings.ToUpper(a); a {
	case "BTC":
		return "XBT"
	case "DOGE":
		return "XDG"
	default:
		return a
	}
}

// first returns the single entry Kraken keys by its own pair name, which may
// differ from the requested one.
func first[T any](m map[string]T) (T, bool) {
	var zero T
	if len(m) == 0 {
		return zero, false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return m[keys[0]], true
}

func stringLevels(raw [][]any) [][]string {
	out := make([][]string, 0, len(raw))
	for _, r := range raw {
		if len(r) < 2 {
			continue
		}
		p, ok1 := r[0].(string)
		q, ok2 := r[1].(string)
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, []string{p, q})
	}
	return out
}
