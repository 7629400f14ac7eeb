// Package marketdata implements the market data bounded context: venue
// adapters and the concurrent collector.
package marketdata

import (
	"context"
	"fmt"

	"github.com/fd1az/spatial-arb/business/marketdata/app"
	mdDI "github.com/fd1az/spatial-arb/business/marketdata/di"
	"github.com/fd1az/spatial-arb/business/marketdata/infra/binance"
	"github.com/fd1az/spatial-arb/business/marketdata/infra/bybit"
	"github.com/fd1az/spatial-arb/business/marketdata/infra/kraken"
	"github.com/fd1az/spatial-arb/business/marketdata/infra/simulated"
	"github.com/fd1az/spatial-arb/internal/config"
	"github.com/fd1az/spatial-arb/internal/di"
	"github.com/fd1az/spatial-arb/internal/logger"
	"github.com/fd1az/spatial-arb/internal/monolith"
)

// Module implements the market data bounded context.
type Module struct{}

// streamer is implemented by adapters that hold a live connection.
type streamer interface {
	Start(ctx context.Context) error
	Close() error
}

// RegisterServices registers the venue clients and the collector.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, mdDI.Clients, func(sr di.ServiceRegistry) []app.ExchangeClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		clients, err := BuildClients(cfg, log)
		if err != nil {
			panic("failed to create venue clients: " + err.Error())
		}
		return clients
	})

	di.RegisterToken(c, mdDI.Collector, func(sr di.ServiceRegistry) *app.Collector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		collector, err := app.NewCollector(mdDI.GetClients(sr), app.CollectorConfig{
			FetchTimeout:    cfg.Pipeline.FetchTimeout,
			StalenessWindow: cfg.Detection.StalenessWindow,
			Concurrency:     cfg.Pipeline.FetchConcurrency,
		}, log)
		if err != nil {
			panic("failed to create collector: " + err.Error())
		}
		return collector
	})

	return nil
}

// Startup connects streaming venues in the background; REST polling works
// while they dial.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	for _, client := range mdDI.GetClients(mono.Services()) {
		s, ok := client.(streamer)
		if !ok {
			continue
		}
		mono.OnClose(s.Close)

		name := client.Name()
		go func() {
			if err := s.Start(ctx); err != nil {
				log.Warn(ctx, "venue stream not started, using REST only", "venue", name, "error", err)
				return
			}
			log.Info(ctx, "venue stream connected", "venue", name)
		}()
	}

	collector := mdDI.GetCollector(mono.Services())
	log.Info(ctx, "marketdata module started", "venues", collector.Venues())
	return nil
}

// BuildClients creates one adapter per enabled venue.
func BuildClients(cfg *config.Config, log logger.LoggerInterface) ([]app.ExchangeClient, error) {
	names := cfg.EnabledVenues()
	clients := make([]app.ExchangeClient, 0, len(names))

	for _, name := range names {
		vc := cfg.Venues[name]
		switch vc.Kind {
		case "binance":
			c, err := binance.New(binance.Config{
				Name:           name,
				BaseURL:        vc.BaseURL,
				WebSocketURL:   vc.WebSocketURL,
				Symbols:        cfg.Symbols,
				RequestsPerMin: vc.RequestsPerMin,
				Timeout:        cfg.Pipeline.FetchTimeout,
				StaleAfter:     cfg.Detection.StalenessWindow / 2,
			}, log)
			if err != nil {
				return nil, err
			}
			clients = append(clients, c)
		case "bybit":
			clients = append(clients, bybit.New(bybit.Config{
				Name:           name,
				BaseURL:        vc.BaseURL,
				Category:       vc.Category,
				RequestsPerMin: vc.RequestsPerMin,
			}, log))
		case "kraken":
			clients = append(clients, kraken.New(kraken.Config{
				Name:           name,
				BaseURL:        vc.BaseURL,
				RequestsPerMin: vc.RequestsPerMin,
				Timeout:        cfg.Pipeline.FetchTimeout,
			}))
		case "simulated":
			clients = append(clients, simulated.New(simulated.Config{
				Name:       name,
				BasePrices: vc.BasePrices,
				Volatility: vc.Volatility,
				Skew:       vc.Skew,
			}))
		default:
			return nil, fmt.Errorf("venue %s: unsupported kind %q", name, vc.Kind)
		}
	}

	return clients, nil
}
