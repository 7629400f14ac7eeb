// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/spatial-arb/business/arbitrage/app"
	"github.com/fd1az/spatial-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Detector = di.NewToken[*app.Detector]("arbitrage.Detector")
)

// Private dependency tokens - internal to arbitrage module
var (
	SpreadHistory = di.NewToken[*app.SpreadHistory]("arbitrage:spreadHistory")
)

func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}

func GetSpreadHistory(c di.ServiceRegistry) *app.SpreadHistory {
	return di.GetToken(c, SpreadHistory)
}
