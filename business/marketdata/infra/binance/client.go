package binance

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spatial-arb/business/marketdata/app"
	"github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
	"github.com/fd1az/spatial-arb/internal/httpclient"
	"github.com/fd1az/spatial-arb/internal/logger"
	"github.com/fd1az/spatial-arb/internal/ratelimit"
	"github.com/fd1az/spatial-arb/internal/wsconn"
)

const (
	DefaultAPIURL = "https://api.binance.com"
	DefaultWSURL  = "wss://stream.binance.com:9443"

	tickerEndpoint = "/api/v3/ticker/24hr"
	depthEndpoint  = "/api/v3/depth"

	tracerName = "binance"
)

var _ app.ExchangeClient = (*Client)(nil)

// Config holds Binance adapter settings.
type Config struct {
	Name           string
	BaseURL        string
	WebSocketURL   string // empty disables the bookTicker stream
	Symbols        []string
	RequestsPerMin int
	Timeout        time.Duration
	StaleAfter     time.Duration // stream quotes older than this fall back to REST
}

type quote struct {
	bid, ask decimal.Decimal
	at       time.Time
}

// Client serves tickers from the bookTicker stream when fresh and from REST
// otherwise. Order books always come from REST.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	limiter *ratelimit.Limiter
	ws      *wsconn.Client
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	now     func() time.Time

	mu      sync.RWMutex
	quotes  map[string]quote
	volumes map[string]decimal.Decimal

	healthy atomic.Bool
}

// New creates a Binance client.
func New(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "binance"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIURL
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Second
	}
	if cfg.RequestsPerMin == 0 {
		cfg.RequestsPerMin = 1200
	}

	hc, err := httpclient.New(cfg.Name,
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeConfigurationError, cfg.Name)
	}

	c := &Client{
		cfg:     cfg,
		http:    hc,
		limiter: ratelimit.New(cfg.Name, cfg.RequestsPerMin),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		quotes:  make(map[string]quote),
		volumes: make(map[string]decimal.Decimal),
	}
	c.healthy.Store(true)

	if cfg.WebSocketURL != "" && len(cfg.Symbols) > 0 {
		streams := make([]string, 0, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			sym, err := ExchangeSymbol(s)
			if err != nil {
				return nil, err
			}
			streams = append(streams, BookTickerStream(sym))
		}
		url := strings.TrimSuffix(cfg.WebSocketURL, "/") + "/stream?streams=" + strings.Join(streams, "/")

		ws, err := wsconn.New(wsconn.DefaultConfig(url, cfg.Name))
		if err != nil {
			return nil, err
		}
		ws.OnMessage(c.handleMessage)
		ws.OnStateChange(func(s wsconn.State, err error) {
			if err != nil {
				log.Warn(context.Background(), "binance stream state change", "state", string(s), "error", err)
				return
			}
			log.Info(context.Background(), "binance stream state change", "state", string(s))
		})
		c.ws = ws
	}

	return c, nil
}

// Name returns the venue name.
func (c *Client) Name() string { return c.cfg.Name }

// Start connects the bookTicker stream. It is a no-op without a stream URL.
func (c *Client) Start(ctx context.Context) error {
	if c.ws == nil {
		return nil
	}
	return c.ws.ConnectWithRetry(ctx)
}

// Close stops the stream.
func (c *Client) Close() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}

// IsConnected reports whether the last REST call succeeded or the stream is up.
func (c *Client) IsConnected() bool {
	if c.ws != nil && c.ws.IsConnected() {
		return true
	}
	return c.healthy.Load()
}

// GetTicker returns the best bid/ask for symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	sym, err := ExchangeSymbol(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	if q, ok := c.freshQuote(sym); ok {
		c.mu.RLock()
		vol := c.volumes[sym]
		c.mu.RUnlock()
		return domain.Ticker{Venue: c.cfg.Name, Symbol: symbol, Bid: q.bid, Ask: q.ask, Volume: vol, Timestamp: q.at}, nil
	}

	ctx, span := c.tracer.Start(ctx, "binance.get_ticker", trace.WithAttributes(attribute.String("symbol", sym)))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Ticker{}, err
	}

	var result Ticker24hResponse
	_, err = c.http.NewRequest().
		SetEndpoint("ticker").
		SetErrorHandler(errorHandler).
		SetQueryParam("symbol", sym).
		SetResult(&result).
		Get(ctx, tickerEndpoint)
	c.healthy.Store(err == nil)
	if err != nil {
		span.RecordError(err)
		return domain.Ticker{}, apperror.Wrap(err, apperror.CodeVenueAPIError, c.cfg.Name+" ticker")
	}

	bid, err1 := decimal.NewFromString(result.BidPrice)
	ask, err2 := decimal.NewFromString(result.AskPrice)
	if err1 != nil || err2 != nil {
		return domain.Ticker{}, apperror.New(apperror.CodeInvalidTicker,
			apperror.WithContext(c.cfg.Name+" "+symbol+": unparseable price"))
	}
	vol, _ := decimal.NewFromString(result.Volume)

	c.mu.Lock()
	c.volumes[sym] = vol
	c.mu.Unlock()

	return domain.Ticker{Venue: c.cfg.Name, Symbol: symbol, Bid: bid, Ask: ask, Volume: vol, Timestamp: c.now()}, nil
}

// GetOrderBook returns up to depth levels per side.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	sym, err := ExchangeSymbol(symbol)
	if err != nil {
		return domain.OrderBook{}, err
	}

	ctx, span := c.tracer.Start(ctx, "binance.get_order_book",
		trace.WithAttributes(attribute.String("symbol", sym), attribute.Int("depth", depth)))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.OrderBook{}, err
	}

	var result DepthResponse
	_, err = c.http.NewRequest().
		SetEndpoint("depth").
		SetErrorHandler(errorHandler).
		SetQueryParam("symbol", sym).
		SetQueryParam("limit", strconv.Itoa(depthLimit(depth))).
		SetResult(&result).
		Get(ctx, depthEndpoint)
	c.healthy.Store(err == nil)
	if err != nil {
		span.RecordError(err)
		return domain.OrderBook{}, apperror.Wrap(err, apperror.CodeVenueAPIError, c.cfg.Name+" depth")
	}

	bids, err := domain.ParseLevels(result.Bids)
	if err != nil {
		return domain.OrderBook{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err))
	}
	asks, err := domain.ParseLevels(result.Asks)
	if err != nil {
		return domain.OrderBook{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err))
	}

	book := domain.OrderBook{Venue: c.cfg.Name, Symbol: symbol, Bids: bids, Asks: asks, Timestamp: c.now()}
	return book.Truncate(depth), nil
}

func (c *Client) freshQuote(sym string) (quote, bool) {
	c.mu.RLock()
	q, ok := c.quotes[sym]
	c.mu.RUnlock()
	if !ok || c.now().Sub(q.at) > c.cfg.StaleAfter {
		return quote{}, false
	}
	return q, true
}

func (c *Client) handleMessage(ctx context.Context, msg []byte) {
	var event StreamEvent
	if err := json.Unmarshal(msg, &event); err != nil || len(event.Data) == 0 {
		return
	}
	if !strings.HasSuffix(event.Stream, "@bookTicker") {
		return
	}

	var bt BookTickerEvent
	if err := json.Unmarshal(event.Data, &bt); err != nil {
		c.logger.Debug(ctx, "bad bookTicker payload", "error", err)
		return
	}
	bid, err1 := decimal.NewFromString(bt.BidPrice)
	ask, err2 := decimal.NewFromString(bt.AskPrice)
	if err1 != nil || err2 != nil {
		return
	}

	c.mu.Lock()
	c.quotes[strings.ToUpper(bt.Symbol)] = quote{bid: bid, ask: ask, at: c.now()}
	c.mu.Unlock()
}
