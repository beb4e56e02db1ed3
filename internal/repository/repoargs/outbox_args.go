package repoargs

import (
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/google/uuid"
)

type OutboxEventCreate struct {
	Kind    domain.EventKind
	UserID  int64
	Payload any
}

// OutboxClaim параметры захвата событий на отправку. События в статусе PROCESSING старше StaleAfter
// считаются брошенными и захватываются повторно.
type OutboxClaim struct {
	Limit      uint
	StaleAfter time.Duration
}

type OutboxFailure struct {
	ID          uuid.UUID
	Error       string
	MaxAttempts int
}
