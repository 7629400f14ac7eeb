// Package di contains dependency injection tokens for the risk context.
package di

import (
	"github.com/fd1az/spatial-arb/business/risk/app"
	"github.com/fd1az/spatial-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gate = di.NewToken[*app.Gate]("risk.Gate")
)

// Private dependency tokens - internal to risk module
var (
	Breaker = di.NewToken[*app.CircuitBreaker]("risk:breaker")
	Sizer   = di.NewToken[*app.PositionSizeCalculator]("risk:sizer")
)

func GetGate(c di.ServiceRegistry) *app.Gate {
	return di.GetToken(c, Gate)
}

func GetBreaker(c di.ServiceRegistry) *app.CircuitBreaker {
	return di.GetToken(c, Breaker)
}

func GetSizer(c di.ServiceRegistry) *app.PositionSizeCalculator {
	return di.GetToken(c, Sizer)
}
