package relay

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/service"
)

type Outbox interface {
	ClaimPending(ctx context.Context, limit uint) ([]domain.OutboxEvent, error)
	CompleteDelivery(ctx context.Context, results []service.DeliveryResult) error
}

// Publisher доставляет событие во внешний канал (Kafka, Redis).
type Publisher interface {
	Publish(ctx context.Context, event domain.OutboxEvent) error
}

type Recorder interface {
	RelayEvent(kind, result string)
}
