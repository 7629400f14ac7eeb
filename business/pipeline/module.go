// Package pipeline implements the opportunity pipeline context: the scanner
// and processor loops that connect market data, detection, risk and
// execution.
package pipeline

import (
	"context"

	"github.com/fd1az/spatial-arb/business/arbitrage"
	arbDI "github.com/fd1az/spatial-arb/business/arbitrage/di"
	execDI "github.com/fd1az/spatial-arb/business/execution/di"
	mdDI "github.com/fd1az/spatial-arb/business/marketdata/di"
	"github.com/fd1az/spatial-arb/business/pipeline/app"
	pipelineDI "github.com/fd1az/spatial-arb/business/pipeline/di"
	"github.com/fd1az/spatial-arb/business/pipeline/infra/reporter"
	riskDI "github.com/fd1az/spatial-arb/business/risk/di"
	"github.com/fd1az/spatial-arb/internal/config"
	"github.com/fd1az/spatial-arb/internal/di"
	"github.com/fd1az/spatial-arb/internal/logger"
	"github.com/fd1az/spatial-arb/internal/monolith"
)

// Module implements the pipeline bounded context.
type Module struct{}

// RegisterServices registers the reporter and the pipeline.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pipelineDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.App.TUIMode {
			return reporter.NewTUI(nil)
		}
		return reporter.NewConsole(nil)
	})

	di.RegisterToken(c, pipelineDI.Pipeline, func(sr di.ServiceRegistry) *app.Pipeline {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		gate := riskDI.GetGate(sr)

		deps := app.Deps{
			Collector: mdDI.GetCollector(sr),
			Detector:  arbDI.GetDetector(sr),
			Gate:      gate,
			Executor:  execDI.GetExecutor(sr),
			Reporter:  pipelineDI.GetReporter(sr),
		}
		// a nil *Locker would make a non-nil interface
		if locker := execDI.GetLocker(sr); locker != nil {
			deps.Locker = locker
		}

		p, err := app.New(Config(cfg), deps, log)
		if err != nil {
			panic("failed to create pipeline: " + err.Error())
		}
		gate.Breaker().OnEvent(p.OnBreakerEvent)
		return p
	})

	return nil
}

// Startup starts the scanner and processor loops and stops them on close.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	p := pipelineDI.GetPipeline(mono.Services())
	rep := pipelineDI.GetReporter(mono.Services())

	if err := p.Start(ctx); err != nil {
		return err
	}

	mono.OnClose(func() error {
		err := p.Stop()
		if c, ok := rep.(*reporter.Console); ok {
			c.Summary(p.Stats())
		}
		return err
	})
	return nil
}

// Config maps config onto the pipeline settings.
func Config(cfg *config.Config) app.Config {
	return app.Config{
		Venues:        cfg.EnabledVenues(),
		Symbols:       cfg.Symbols,
		ScanInterval:  cfg.Pipeline.ScanInterval,
		FetchTimeout:  cfg.Pipeline.FetchTimeout,
		QueueCapacity: cfg.Pipeline.QueueCapacity,
		LockTTL:       cfg.Redis.LockTTL,
		Detection:     arbitrage.DetectionParams(cfg),
	}
}
