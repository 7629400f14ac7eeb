package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
	"github.com/fd1az/spatial-arb/internal/circuitbreaker"
	"github.com/fd1az/spatial-arb/internal/logger"
)

const (
	tracerName = "marketdata"
	meterName  = "marketdata"
)

// CollectorConfig holds collection settings.
type CollectorConfig struct {
	FetchTimeout    time.Duration
	StalenessWindow time.Duration
	Concurrency     int
}

// Collector fans out ticker and book fetches over all venues and symbols.
type Collector struct {
	clients  map[string]ExchangeClient
	breakers map[string]*circuitbreaker.Breaker[struct{}]
	cfg      CollectorConfig
	logger   logger.LoggerInterface
	now      func() time.Time

	mu          sync.RWMutex
	consecutive map[string]int

	tracer     trace.Tracer
	errCounter metric.Int64Counter
}

// NewCollector creates a collector over clients.
func NewCollector(clients []ExchangeClient, cfg CollectorConfig, log logger.LoggerInterface) (*Collector, error) {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}

	c := &Collector{
		clients:     make(map[string]ExchangeClient, len(clients)),
		breakers:    make(map[string]*circuitbreaker.Breaker[struct{}], len(clients)),
		cfg:         cfg,
		logger:      log,
		now:         time.Now,
		consecutive: make(map[string]int, len(clients)),
		tracer:      otel.Tracer(tracerName),
	}

	for _, client := range clients {
		name := client.Name()
		c.clients[name] = client

		bcfg := circuitbreaker.DefaultConfig("venue." + name)
		bcfg.OnStateChange = func(breaker string, from, to gobreaker.State) {
			log.Warn(context.Background(), "venue breaker state change",
				"breaker", breaker, "from", from.String(), "to", to.String())
		}
		c.breakers[name] = circuitbreaker.New[struct{}](bcfg)
	}

	var err error
	c.errCounter, err = otel.Meter(meterName).Int64Counter(
		"market_data_errors_total",
		metric.WithDescription("Failed (venue, symbol) collections"),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Venues returns the registered venue names, sorted.
func (c *Collector) Venues() []string {
	out := make([]string, 0, len(c.clients))
	for name := range c.clients {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Collect fetches every (venue, symbol) pair. Failed pairs are reported as
// CollectionErrors and left out of the snapshot; the batch never fails as a
// whole.
func (c *Collector) Collect(ctx context.Context, venues, symbols []string, perCallTimeout time.Duration) (*domain.Snapshot, []domain.CollectionError) {
	ctx, span := c.tracer.Start(ctx, "marketdata.collect",
		trace.WithAttributes(
			attribute.StringSlice("venues", venues),
			attribute.StringSlice("symbols", symbols),
		),
	)
	defer span.End()

	if perCallTimeout <= 0 {
		perCallTimeout = c.cfg.FetchTimeout
	}

	snap := domain.NewSnapshot(c.now())

	var (
		mu   sync.Mutex
		errs []domain.CollectionError
	)
	fail := func(venue, symbol string, cause error) {
		mu.Lock()
		errs = append(errs, domain.CollectionError{Venue: venue, Symbol: symbol, Cause: cause})
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)

	for _, venue := range venues {
		client, ok := c.clients[venue]
		if !ok {
			for _, symbol := range symbols {
				fail(venue, symbol, apperror.New(apperror.CodeUnknownVenue, apperror.WithContext(venue)))
			}
			continue
		}

		for _, symbol := range symbols {
			g.Go(func() error {
				point, err := c.collectPair(ctx, client, symbol, perCallTimeout)
				c.recordOutcome(ctx, venue, err)
				if err != nil {
					fail(venue, symbol, err)
					return nil
				}
				mu.Lock()
				snap.Put(point)
				mu.Unlock()
				return nil
			})
		}
	}

	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("points", snap.Len()),
		attribute.Int("errors", len(errs)),
	)

	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Venue != errs[j].Venue {
			return errs[i].Venue < errs[j].Venue
		}
		return errs[i].Symbol < errs[j].Symbol
	})

	return snap, errs
}

// collectPair fetches ticker and book concurrently; either failing cancels
// the other.
func (c *Collector) collectPair(ctx context.Context, client ExchangeClient, symbol string, timeout time.Duration) (domain.MarketDataPoint, error) {
	venue := client.Name()
	breaker := c.breakers[venue]

	var (
		ticker domain.Ticker
		book   domain.OrderBook
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, timeout)
		defer cancel()
		_, err := breaker.Execute(func() (struct{}, error) {
			var err error
			ticker, err = client.GetTicker(callCtx, symbol)
			return struct{}{}, err
		})
		return wrapFetch(err, venue, symbol, "ticker")
	})

	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, timeout)
		defer cancel()
		_, err := breaker.Execute(func() (struct{}, error) {
			var err error
			book, err = client.GetOrderBook(callCtx, symbol, domain.BookDepth)
			return struct{}{}, err
		})
		return wrapFetch(err, venue, symbol, "orderbook")
	})

	if err := g.Wait(); err != nil {
		return domain.MarketDataPoint{}, err
	}

	ticker.Venue, ticker.Symbol = venue, symbol
	book.Venue, book.Symbol = venue, symbol

	point, err := domain.NewMarketDataPoint(ticker, book)
	if err != nil {
		return domain.MarketDataPoint{}, err
	}

	if point.IsStale(c.now(), c.cfg.StalenessWindow) {
		return domain.MarketDataPoint{}, apperror.New(apperror.CodeStaleMarketData,
			apperror.WithContext(venue+" "+symbol+" age "+point.Age(c.now()).Round(time.Millisecond).String()))
	}

	return point, nil
}

func wrapFetch(err error, venue, symbol, what string) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.New(apperror.CodeMarketDataFetchFailed,
		apperror.WithContext(venue+" "+symbol+" "+what), apperror.WithCause(err))
}

func (c *Collector) recordOutcome(ctx context.Context, venue string, err error) {
	c.mu.Lock()
	if err != nil {
		c.consecutive[venue]++
	} else {
		c.consecutive[venue] = 0
	}
	c.mu.Unlock()

	if err != nil {
		c.errCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", venue)))
		c.logger.Debug(ctx, "market data collection failed", "venue", venue, "error", err)
	}
}

// ConsecutiveErrors returns the number of failed collections for venue since
// its last success.
func (c *Collector) ConsecutiveErrors(venue string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.consecutive[venue]
}

// IsConnected reports whether venue is known, reachable and its breaker is
// not open.
func (c *Collector) IsConnected(venue string) bool {
	client, ok := c.clients[venue]
	if !ok {
		return false
	}
	return client.IsConnected() && !c.breakers[venue].IsOpen()
}

// OrderBook re-fetches a single book through the venue breaker.
func (c *Collector) OrderBook(ctx context.Context, venue, symbol string) (domain.OrderBook, error) {
	client, ok := c.clients[venue]
	if !ok {
		return domain.OrderBook{}, apperror.New(apperror.CodeUnknownVenue, apperror.WithContext(venue))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	var book domain.OrderBook
	_, err := c.breakers[venue].Execute(func() (struct{}, error) {
		var err error
		book, err = client.GetOrderBook(ctx, symbol, domain.BookDepth)
		return struct{}{}, err
	})
	if err != nil {
		return domain.OrderBook{}, wrapFetch(err, venue, symbol, "orderbook")
	}

	book.Venue, book.Symbol = venue, symbol
	if err := book.Validate(); err != nil {
		return domain.OrderBook{}, err
	}
	return book, nil
}
