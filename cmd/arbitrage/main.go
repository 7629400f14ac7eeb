// Package main is the entry point for the spatial arbitrage pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/spatial-arb/business/arbitrage"
	"github.com/fd1az/spatial-arb/business/execution"
	execDI "github.com/fd1az/spatial-arb/business/execution/di"
	"github.com/fd1az/spatial-arb/business/marketdata"
	mdDI "github.com/fd1az/spatial-arb/business/marketdata/di"
	"github.com/fd1az/spatial-arb/business/pipeline"
	"github.com/fd1az/spatial-arb/business/risk"
	riskDI "github.com/fd1az/spatial-arb/business/risk/di"
	"github.com/fd1az/spatial-arb/internal/apm"
	"github.com/fd1az/spatial-arb/internal/config"
	"github.com/fd1az/spatial-arb/internal/health"
	"github.com/fd1az/spatial-arb/internal/logger"
	"github.com/fd1az/spatial-arb/internal/metrics"
	"github.com/fd1az/spatial-arb/internal/monolith"
	"github.com/fd1az/spatial-arb/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("spatial-arb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
		if ui.Program != nil {
			ui.Program.Quit()
		}
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	// the TUI owns the terminal, so logs only go to the optional file
	var console io.Writer = os.Stderr
	if tuiMode {
		console = io.Discard
	}
	out, closeLog := logger.Output(console, logger.FileConfig{Path: cfg.App.LogFile, MaxAgeDays: 7, MaxBackups: 5})
	defer closeLog()

	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting spatial arbitrage pipeline",
		"version", version,
		"environment", cfg.App.Environment,
		"venues", cfg.EnabledVenues(),
		"symbols", cfg.Symbols,
	)

	stopTelemetry := setupTelemetry(ctx, cfg, log)
	defer stopTelemetry()

	mono := monolith.New(cfg, log)
	defer func() {
		if err := mono.Close(); err != nil {
			log.Error(ctx, "shutdown error", "error", err)
		}
	}()

	// dependency order: market data feeds detection and execution, the
	// risk gate needs the ledger, the pipeline needs everything
	modules := []monolith.Module{
		&marketdata.Module{},
		&arbitrage.Module{},
		&execution.Module{},
		&risk.Module{},
		&pipeline.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	if cfg.Health.Enabled {
		hs := health.NewServer(cfg.Health.Port, version)
		registerHealthChecks(hs, mono)
		hs.Start(func(err error) { log.Warn(ctx, "health server stopped", "error", err) })
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hs.Stop(sctx)
		}()
	}

	if tuiMode {
		return runTUI(ctx, mono, modules)
	}
	return runCLI(ctx, mono, modules, log)
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	tp := apm.NewTraceProvider(ctx, log, apm.Options{
		Provider:    apm.Provider(cfg.Telemetry.TraceProvider),
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})

	mp, err := metrics.NewMeterProvider(ctx,
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithPrometheus(),
	)
	if err != nil {
		log.Warn(ctx, "metrics disabled", "error", err)
		return func() { _ = tp.Stop() }
	}

	srv := metrics.NewServer(cfg.Telemetry.PrometheusPort, mp.Handler())
	srv.Start(func(err error) { log.Warn(ctx, "metrics server stopped", "error", err) })
	log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)

	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(sctx)
		_ = mp.Shutdown(sctx)
		_ = tp.Stop()
	}
}

func registerHealthChecks(hs *health.Server, mono *monolith.App) {
	hs.RegisterCheck("venues", func(ctx context.Context) (bool, string) {
		collector := mdDI.GetCollector(mono.Services())
		up := 0
		for _, v := range collector.Venues() {
			if collector.IsConnected(v) {
				up++
			}
		}
		return up >= 2, fmt.Sprintf("%d/%d venues connected", up, len(collector.Venues()))
	})

	hs.RegisterCheck("circuit_breaker", func(ctx context.Context) (bool, string) {
		gate := riskDI.GetGate(mono.Services())
		if gate.EmergencyStop() {
			return false, "emergency stop engaged"
		}
		if gate.Breaker().Blocking() {
			return false, "loss breaker tripped"
		}
		return true, "trading allowed"
	})

	if mono.Config().Redis.Enabled {
		hs.RegisterCheck("redis", func(ctx context.Context) (bool, string) {
			locker := execDI.GetLocker(mono.Services())
			if err := locker.Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, "ok"
		})
	}
}

func runCLI(ctx context.Context, mono *monolith.App, modules []monolith.Module, log logger.LoggerInterface) error {
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	log.Info(ctx, "all modules started, scanning for opportunities")

	<-ctx.Done()
	log.Info(ctx, "shutting down")
	return nil
}

func runTUI(ctx context.Context, mono *monolith.App, modules []monolith.Module) error {
	gate := riskDI.GetGate(mono.Services())

	errCh := make(chan error, 1)
	controls := ui.Controls{
		// modules start once the welcome screen is gone, so connection
		// progress is visible
		OnStart: func() {
			if err := mono.StartModules(ctx, modules...); err != nil {
				ui.Send(ui.ErrorMsg{Error: err})
				errCh <- err
			}
		},
		ToggleEmergencyStop: func() bool { return gate.ToggleEmergencyStop(ctx) },
		ResetBreaker:        gate.Breaker().Reset,
		EmergencyStop:       gate.EmergencyStop(),
	}

	p := ui.NewProgram(controls, mono.Config().EnabledVenues())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
