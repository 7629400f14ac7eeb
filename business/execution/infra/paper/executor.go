// Package paper simulates two-leg execution against live order books
// without sending orders.
package paper

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	"github.com/fd1az/spatial-arb/business/execution/app"
	"github.com/fd1az/spatial-arb/business/execution/domain"
	mdDomain "github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
	"github.com/fd1az/spatial-arb/internal/logger"
)

const (
	amountPlaces = 8
	historySize  = 100
)

// BookSource re-reads venue order books before filling.
type BookSource interface {
	OrderBook(ctx context.Context, venue, symbol string) (mdDomain.OrderBook, error)
}

// Config configures the simulator.
type Config struct {
	SlippageBps       decimal.Decimal
	Latency           time.Duration
	MinSpreadRetained decimal.Decimal // fraction of the detected spread, default 0.8
}

// Executor fills both legs at the live top of book, adjusted for slippage.
type Executor struct {
	cfg    Config
	books  BookSource
	ledger *app.Ledger
	fees   arbDomain.FeeSchedule
	log    logger.LoggerInterface
	now    func() time.Time

	mu      sync.Mutex
	history []domain.Result
}

// New creates a paper executor.
func New(cfg Config, books BookSource, ledger *app.Ledger, fees arbDomain.FeeSchedule, log logger.LoggerInterface) *Executor {
	if !cfg.MinSpreadRetained.IsPositive() {
		cfg.MinSpreadRetained = decimal.NewFromFloat(0.8)
	}
	return &Executor{
		cfg:    cfg,
		books:  books,
		ledger: ledger,
		fees:   fees,
		log:    log,
		now:    time.Now,
	}
}

// Execute buys capital worth of base on the buy venue and sells the same
// amount on the sell venue. It returns the realized profit after fees.
func (e *Executor) Execute(ctx context.Context, opp *arbDomain.Opportunity, capital decimal.Decimal) (decimal.Decimal, error) {
	started := e.now()
	res := domain.Result{
		ID:            uuid.NewString(),
		OpportunityID: opp.ID,
		Symbol:        opp.Symbol,
		Capital:       capital,
		StartedAt:     started,
	}

	fills, err := e.fill(ctx, opp, capital)
	if err == nil {
		err = e.ledger.Apply(fills)
	}

	res.Duration = e.now().Sub(started)
	if err != nil {
		res.Status = domain.StatusFailed
		res.Error = err.Error()
		e.record(res)
		e.log.Warn(ctx, "paper execution failed", "id", opp.ID, "symbol", opp.Symbol, "error", err)
		return decimal.Zero, err
	}

	buy, sell := fills[0], fills[1]
	res.Status = domain.StatusCompleted
	res.Fills = fills
	res.TotalFees = buy.Fee.Add(sell.Fee)
	res.RealizedProfit = sell.Notional().Sub(buy.Notional()).Sub(res.TotalFees)
	e.record(res)

	e.log.Info(ctx, "paper execution completed",
		"id", opp.ID,
		"symbol", opp.Symbol,
		"amount", buy.Amount.String(),
		"buy", buy.Price.String(),
		"sell", sell.Price.String(),
		"profit", res.RealizedProfit.StringFixed(4),
		"duration_ms", res.Duration.Milliseconds())

	return res.RealizedProfit, nil
}

func (e *Executor) fill(ctx context.Context, opp *arbDomain.Opportunity, capital decimal.Decimal) ([]domain.Fill, error) {
	if !capital.IsPositive() || !opp.BuyPrice.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext("capital "+capital.String()))
	}

	if e.cfg.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, apperror.New(apperror.CodeExecutionFailed, apperror.WithCause(ctx.Err()))
		case <-time.After(e.cfg.Latency):
		}
	}

	buyBook, err := e.books.OrderBook(ctx, opp.BuyVenue, opp.Symbol)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeExecutionFailed, "buy book "+opp.BuyVenue)
	}
	sellBook, err := e.books.OrderBook(ctx, opp.SellVenue, opp.Symbol)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeExecutionFailed, "sell book "+opp.SellVenue)
	}
	if len(buyBook.Asks) == 0 || len(sellBook.Bids) == 0 {
		return nil, apperror.New(apperror.CodeInsufficientLiquidity, apperror.WithContext(opp.Key().String()))
	}

	liveBuy, liveSell := buyBook.Asks[0].Price, sellBook.Bids[0].Price
	if live, floor := liveSell.Sub(liveBuy), opp.Spread.Mul(e.cfg.MinSpreadRetained); live.LessThan(floor) {
		return nil, apperror.New(apperror.CodeSpreadDecayed,
			apperror.WithContext(opp.Key().String()+" live spread "+live.String()+" below "+floor.String()))
	}

	slip := e.cfg.SlippageBps.Div(decimal.NewFromInt(10000))
	one := decimal.NewFromInt(1)
	buyPrice := liveBuy.Mul(one.Add(slip))
	sellPrice := liveSell.Mul(one.Sub(slip))

	amount := capital.Div(buyPrice).Truncate(amountPlaces)
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidTradeSize, apperror.WithContext("amount rounds to zero"))
	}

	buy := domain.Fill{Venue: opp.BuyVenue, Symbol: opp.Symbol, Side: domain.SideBuy, Price: buyPrice, Amount: amount}
	buy.Fee = buy.Notional().Mul(e.fees.BuyRate(opp.BuyVenue))

	sell := domain.Fill{Venue: opp.SellVenue, Symbol: opp.Symbol, Side: domain.SideSell, Price: sellPrice, Amount: amount}
	sell.Fee = sell.Notional().Mul(e.fees.SellRate(opp.SellVenue))

	return []domain.Fill{buy, sell}, nil
}

func (e *Executor) record(r domain.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, r)
	if len(e.history) > historySize {
		e.history = e.history[len(e.history)-historySize:]
	}
}

// results returns recent executions, newest last.
func (e *Executor) results() []domain.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Result, len(e.history))
	copy(out, e.history)
	return out
}
