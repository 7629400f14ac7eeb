// Package execution implements the execution bounded context: the paper
// portfolio ledger, the paper executor and the advisory lock.
package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spatial-arb/business/arbitrage"
	"github.com/fd1az/spatial-arb/business/execution/app"
	execDI "github.com/fd1az/spatial-arb/business/execution/di"
	"github.com/fd1az/spatial-arb/business/execution/infra/paper"
	"github.com/fd1az/spatial-arb/business/execution/infra/redislock"
	mdDI "github.com/fd1az/spatial-arb/business/marketdata/di"
	"github.com/fd1az/spatial-arb/internal/config"
	"github.com/fd1az/spatial-arb/internal/di"
	"github.com/fd1az/spatial-arb/internal/logger"
	"github.com/fd1az/spatial-arb/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers the ledger, the executor and the locker.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, execDI.Ledger, func(sr di.ServiceRegistry) *app.Ledger {
		cfg := sr.Get("config").(*config.Config)
		return app.NewLedger(cfg.EnabledVenues(), cfg.Symbols, config.Dec(cfg.Execution.InitialBalance))
	})

	di.RegisterToken(c, execDI.Executor, func(sr di.ServiceRegistry) *paper.Executor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return paper.New(PaperConfig(cfg), mdDI.GetCollector(sr), execDI.GetLedger(sr), arbitrage.FeeSchedule(cfg), log)
	})

	di.RegisterToken(c, execDI.Locker, func(sr di.ServiceRegistry) *redislock.Locker {
		cfg := sr.Get("config").(*config.Config)
		if !cfg.Redis.Enabled {
			return nil
		}
		return redislock.New(redislock.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	})

	return nil
}

// Startup checks Redis when locking is enabled. An unreachable Redis is
// logged, not fatal: lock attempts fail and opportunities are rejected.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if locker := execDI.GetLocker(mono.Services()); locker != nil {
		mono.OnClose(locker.Close)
		if err := locker.Ping(ctx); err != nil {
			log.Warn(ctx, "redis unreachable, advisory locks will fail", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	ledger := execDI.GetLedger(mono.Services())
	total, _ := ledger.TotalValue(ctx)
	log.Info(ctx, "execution module started",
		"mode", cfg.Execution.Mode,
		"portfolio", total.StringFixed(2),
		"redis_lock", cfg.Redis.Enabled)
	return nil
}

// PaperConfig maps config onto the simulator settings.
func PaperConfig(cfg *config.Config) paper.Config {
	return paper.Config{
		SlippageBps:       decimal.NewFromFloat(cfg.Execution.SlippageBps),
		Latency:           cfg.Execution.Latency,
		MinSpreadRetained: decimal.NewFromFloat(cfg.Execution.MinSpreadRetained),
	}
}
