// Package arbitrage implements the arbitrage bounded context for opportunity detection.
package arbitrage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spatial-arb/business/arbitrage/app"
	arbDI "github.com/fd1az/spatial-arb/business/arbitrage/di"
	"github.com/fd1az/spatial-arb/business/arbitrage/domain"
	"github.com/fd1az/spatial-arb/internal/config"
	"github.com/fd1az/spatial-arb/internal/di"
	"github.com/fd1az/spatial-arb/internal/logger"
	"github.com/fd1az/spatial-arb/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers the spread history and the detector.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbDI.SpreadHistory, func(sr di.ServiceRegistry) *app.SpreadHistory {
		cfg := sr.Get("config").(*config.Config)
		return app.NewSpreadHistory(cfg.Detection.HistorySize)
	})

	di.RegisterToken(c, arbDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		d, err := app.NewDetector(FeeSchedule(cfg), arbDI.GetSpreadHistory(sr), log)
		if err != nil {
			panic("failed to create detector: " + err.Error())
		}
		return d
	})

	return nil
}

// Startup resolves the detector so wiring errors surface at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	arbDI.GetDetector(mono.Services())
	mono.Logger().Info(ctx, "arbitrage module started",
		"min_spread_pct", mono.Config().Detection.MinSpreadPercent,
		"top_k", mono.Config().Detection.TopK)
	return nil
}

// FeeSchedule builds the per-venue taker rates from config.
func FeeSchedule(cfg *config.Config) domain.FeeSchedule {
	fees := domain.FeeSchedule{
		Default: config.Dec(cfg.Detection.DefaultTakerFee),
		Venues:  make(map[string]domain.VenueFees, len(cfg.Venues)),
	}
	for name, vc := range cfg.Venues {
		buy, sell := vc.TakerRates(cfg.Detection.DefaultTakerFee)
		fees.Venues[name] = domain.VenueFees{Buy: buy, Sell: sell}
	}
	return fees
}

// DetectionParams maps config onto the detector thresholds.
func DetectionParams(cfg *config.Config) app.Params {
	d := cfg.Detection
	ttl := d.OpportunityTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return app.Params{
		MinSpreadPercent:    decimal.NewFromFloat(d.MinSpreadPercent),
		MaxPositionSize:     decimal.NewFromFloat(d.MaxPositionSize),
		ConfidenceThreshold: d.ConfidenceThreshold,
		TopK:                d.TopK,
		TTL:                 ttl,
		StalenessWindow:     d.StalenessWindow,
	}
}
