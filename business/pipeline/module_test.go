package pipeline

import (
	"io"
	"testing"
	"time"

	"github.com/fd1az/spatial-arb/business/arbitrage"
	"github.com/fd1az/spatial-arb/business/execution"
	"github.com/fd1az/spatial-arb/business/marketdata"
	pipelineDI "github.com/fd1az/spatial-arb/business/pipeline/di"
	"github.com/fd1az/spatial-arb/business/pipeline/infra/reporter"
	"github.com/fd1az/spatial-arb/business/risk"
	"github.com/fd1az/spatial-arb/internal/config"
	"github.com/fd1az/spatial-arb/internal/di"
	"github.com/fd1az/spatial-arb/internal/logger"
	"github.com/fd1az/spatial-arb/internal/monolith"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "test"},
		Venues:  config.DefaultVenues(),
		Symbols: []string{"BTC/USDT"},
		Detection: config.DetectionConfig{
			MinSpreadPercent:    0.2,
			MaxPositionSize:     1000,
			ConfidenceThreshold: 0.7,
			TopK:                10,
			OpportunityTTL:      time.Minute,
			StalenessWindow:     10 * time.Second,
			DefaultTakerFee:     0.002,
			HistorySize:         20,
		},
		Risk: config.RiskConfig{
			MaxRiskScore:     0.8,
			MinConfidence:    0.7,
			MaxDailyLoss:     50,
			MaxPortfolioRisk: 0.05,
			KellyFraction:    0.25,
			VolatilityFloor:  0.02,
			CircuitBreaker:   config.CircuitBreakerConfig{LossThreshold: 100, Lookback: time.Hour, Cooldown: 30 * time.Minute},
		},
		Pipeline:  config.PipelineConfig{ScanInterval: 2 * time.Second, QueueCapacity: 10, FetchTimeout: time.Second, FetchConcurrency: 4},
		Execution: config.ExecutionConfig{Mode: "paper", InitialBalance: 10000, MinSpreadRetained: 0.8},
		Redis:     config.RedisConfig{LockTTL: 15 * time.Second},
	}
}

func TestConfig(t *testing.T) {
	cfg := testConfig()

	c := Config(cfg)
	if c.ScanInterval != 2*time.Second || c.QueueCapacity != 10 || c.LockTTL != 15*time.Second {
		t.Errorf("Config() = %+v", c)
	}
	if len(c.Venues) != 2 || len(c.Symbols) != 1 {
		t.Errorf("venues/symbols = %v/%v", c.Venues, c.Symbols)
	}
	if c.Detection.MinSpreadPercent.String() != "0.2" || c.Detection.TTL != time.Minute {
		t.Errorf("Detection = %+v", c.Detection)
	}
}

func register(t *testing.T, cfg *config.Config) di.Container {
	t.Helper()
	c := di.NewContainer()
	c.Register("config", cfg)
	c.Register("logger", logger.New(io.Discard, logger.LevelError, "test", nil))

	modules := []monolith.Module{
		&marketdata.Module{},
		&arbitrage.Module{},
		&execution.Module{},
		&risk.Module{},
		&Module{},
	}
	for _, m := range modules {
		if err := m.RegisterServices(c); err != nil {
			t.Fatalf("RegisterServices(%T) error = %v", m, err)
		}
	}
	return c
}

func TestModule_WiresPipeline(t *testing.T) {
	c := register(t, testConfig())

	if p := pipelineDI.GetPipeline(c); p == nil {
		t.Fatal("pipeline not built")
	}
	if _, ok := pipelineDI.GetReporter(c).(*reporter.Console); !ok {
		t.Errorf("reporter = %T, want console outside TUI mode", pipelineDI.GetReporter(c))
	}
}

func TestModule_TUIReporter(t *testing.T) {
	cfg := testConfig()
	cfg.App.TUIMode = true
	c := register(t, cfg)

	if _, ok := pipelineDI.GetReporter(c).(*reporter.TUI); !ok {
		t.Errorf("reporter = %T, want TUI", pipelineDI.GetReporter(c))
	}
}
