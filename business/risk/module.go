// Package risk implements the risk bounded context: the loss circuit
// breaker, position sizing and the approval gate.
package risk

import (
	"context"

	"github.com/shopspring/decimal"

	execDI "github.com/fd1az/spatial-arb/business/execution/di"
	mdDI "github.com/fd1az/spatial-arb/business/marketdata/di"
	"github.com/fd1az/spatial-arb/business/risk/app"
	riskDI "github.com/fd1az/spatial-arb/business/risk/di"
	"github.com/fd1az/spatial-arb/internal/config"
	"github.com/fd1az/spatial-arb/internal/di"
	"github.com/fd1az/spatial-arb/internal/logger"
	"github.com/fd1az/spatial-arb/internal/monolith"
)

// Module implements the risk bounded context.
type Module struct{}

// RegisterServices registers the breaker, the sizer and the gate.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, riskDI.Breaker, func(sr di.ServiceRegistry) *app.CircuitBreaker {
		cfg := sr.Get("config").(*config.Config)
		cb := cfg.Risk.CircuitBreaker
		return app.NewCircuitBreaker(config.Dec(cb.LossThreshold), cb.Lookback, cb.Cooldown)
	})

	di.RegisterToken(c, riskDI.Sizer, func(sr di.ServiceRegistry) *app.PositionSizeCalculator {
		cfg := sr.Get("config").(*config.Config)
		return app.NewPositionSizeCalculator(SizerParams(cfg))
	})

	di.RegisterToken(c, riskDI.Gate, func(sr di.ServiceRegistry) *app.Gate {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		collector := mdDI.GetCollector(sr)

		gate, err := app.NewGate(GateParams(cfg),
			riskDI.GetBreaker(sr),
			riskDI.GetSizer(sr),
			execDI.GetLedger(sr),
			collector,
			collector,
			log,
		)
		if err != nil {
			panic("failed to create risk gate: " + err.Error())
		}
		return gate
	})

	return nil
}

// Startup resolves the gate and logs the active limits.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	gate := riskDI.GetGate(mono.Services())
	r := mono.Config().Risk

	mono.Logger().Info(ctx, "risk module started",
		"max_risk_score", r.MaxRiskScore,
		"min_confidence", r.MinConfidence,
		"loss_threshold", r.CircuitBreaker.LossThreshold,
		"emergency_stop", gate.EmergencyStop())
	return nil
}

// GateParams maps config onto the gate limits.
func GateParams(cfg *config.Config) app.GateParams {
	return app.GateParams{
		MaxRiskScore:    cfg.Risk.MaxRiskScore,
		MinConfidence:   cfg.Risk.MinConfidence,
		MaxDailyLoss:    config.Dec(cfg.Risk.MaxDailyLoss),
		MaxPositionSize: config.Dec(cfg.Detection.MaxPositionSize),
		EmergencyStop:   cfg.Risk.EmergencyStop,
	}
}

// SizerParams maps config onto the position size calculator.
func SizerParams(cfg *config.Config) app.SizerParams {
	p := app.SizerParams{
		MaxPositionSize:  config.Dec(cfg.Detection.MaxPositionSize),
		MaxPortfolioRisk: config.Dec(cfg.Risk.MaxPortfolioRisk),
		KellyFraction:    config.Dec(cfg.Risk.KellyFraction),
		Floor:            config.Dec(cfg.Risk.VolatilityFloor),
	}
	if len(cfg.Risk.VolatilityTiers) > 0 {
		p.Tiers = make([]app.VolatilityTier, 0, len(cfg.Risk.VolatilityTiers))
		for _, t := range cfg.Risk.VolatilityTiers {
			p.Tiers = append(p.Tiers, app.VolatilityTier{
				AboveSpreadPercent: decimal.NewFromFloat(t.AboveSpreadPercent),
				PortfolioFraction:  decimal.NewFromFloat(t.PortfolioFraction),
			})
		}
	}
	return p
}
