// Package di contains dependency injection tokens for the market data context.
package di

import (
	"github.com/fd1az/spatial-arb/business/marketdata/app"
	"github.com/fd1az/spatial-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Collector = di.NewToken[*app.Collector]("marketdata.Collector")
)

// Private dependency tokens - internal to marketdata module
var (
	Clients = di.NewToken[[]app.ExchangeClient]("marketdata:clients")
)

func GetCollector(c di.ServiceRegistry) *app.Collector {
	return di.GetToken(c, Collector)
}

func GetClients(c di.ServiceRegistry) []app.ExchangeClient {
	return di.GetToken(c, Clients)
}
