// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/spatial-arb/business/execution/app"
	"github.com/fd1az/spatial-arb/business/execution/infra/paper"
	"github.com/fd1az/spatial-arb/business/execution/infra/redislock"
	"github.com/fd1az/spatial-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Ledger   = di.NewToken[*app.Ledger]("execution.Ledger")
	Executor = di.NewToken[*paper.Executor]("execution.Executor")
	// Locker resolves to nil when Redis is disabled.
	Locker = di.NewToken[*redislock.Locker]("execution.Locker")
)

func GetLedger(c di.ServiceRegistry) *app.Ledger {
	return di.GetToken(c, Ledger)
}

func GetExecutor(c di.ServiceRegistry) *paper.Executor {
	return di.GetToken(c, Executor)
}

func GetLocker(c di.ServiceRegistry) *redislock.Locker {
	return di.GetToken(c, Locker)
}
