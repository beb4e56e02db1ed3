package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/google/uuid"
)

// Envelope формат события во внешних каналах.
type Envelope struct {
	ID        uuid.UUID        `json:"id"`
	Kind      domain.EventKind `json:"kind"`
	UserID    int64            `json:"user_id"`
	CreatedAt time.Time        `json:"created_at"`
	Payload   json.RawMessage  `json:"payload"`
}

// MarshalEnvelope сериализует событие outbox. Повторная доставка дает тот же id, по которому получатели
// отбрасывают дубли.
func MarshalEnvelope(event domain.OutboxEvent) ([]byte, error) {
	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	raw, err := json.Marshal(Envelope{
		ID:        event.ID,
		Kind:      event.Kind,
		UserID:    event.UserID,
		CreatedAt: event.CreatedAt,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", event.ID, err)
	}
	return raw, nil
}
