package accrual

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/fsdevblog/groph-invest/internal/service"
)

type Engine interface {
	RunAccrualEngine(ctx context.Context) (*service.AccrualReport, error)
}

// Locker распределенная блокировка, не дающая нескольким экземплярам запускать движок одновременно.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Recorder interface {
	AccrualRun(result string, duration time.Duration)
	AccrualInvestments(outcome string, n int)
}
