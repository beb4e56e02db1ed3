package pgrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/google/uuid"
)

type OutboxRepository struct {
	conn uow.DBTX
}

func NewOutboxRepository(conn uow.DBTX) *OutboxRepository {
	return &OutboxRepository{conn: conn}
}

// Create сохраняет событие в статусе PENDING. Вызывается внутри транзакции бизнес-операции.
func (r *OutboxRepository) Create(ctx context.Context, args repoargs.OutboxEventCreate) error {
	payload, marshalErr := json.Marshal(args.Payload)
	if marshalErr != nil {
		return fmt.Errorf("[repository/creating outbox event] %w: %w", domain.ErrUnknown, marshalErr)
	}
	_, err := r.conn.Exec(ctx,
		`INSERT INTO outbox_events (id, kind, user_id, payload, status) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), args.Kind, args.UserID, payload, domain.EventStatusPending,
	)
	if err != nil {
		return convertErr(err, "creating outbox event for user %d", args.UserID)
	}
	return nil
}

// Claim атомарно переводит до Limit событий в статус PROCESSING и возвращает их. Строки, захваченные
// другим процессом, пропускаются.
func (r *OutboxRepository) Claim(ctx context.Context, args repoargs.OutboxClaim) ([]domain.OutboxEvent, error) {
	rows, err := r.conn.Query(ctx,
		`UPDATE outbox_events SET status = $1, claimed_at = NOW()
		 WHERE id IN (
		     SELECT id FROM outbox_events
		     WHERE status = $2 OR (status = $1 AND claimed_at < NOW() - $3::float8 * INTERVAL '1 second')
		     ORDER BY created_at
		     LIMIT $4
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, created_at, sent_at, kind, user_id, payload, status, attempts, last_error`,
		domain.EventStatusProcessing, domain.EventStatusPending, args.StaleAfter.Seconds(), args.Limit,
	)
	if err != nil {
		return nil, convertErr(err, "claiming outbox events")
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		var payload []byte
		if scanErr := rows.Scan(
			&e.ID, &e.CreatedAt, &e.SentAt, &e.Kind, &e.UserID, &payload, &e.Status, &e.Attempts, &e.LastError,
		); scanErr != nil {
			return nil, convertErr(scanErr, "claiming outbox events")
		}
		e.Payload = payload
		events = append(events, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "claiming outbox events")
	}
	return events, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.conn.Exec(ctx,
		`UPDATE outbox_events SET status = $1, sent_at = NOW(), attempts = attempts + 1 WHERE id = ANY($2)`,
		domain.EventStatusSent, ids,
	)
	return convertErr(err, "marking %d outbox events sent", len(ids))
}

// MarkFailed увеличивает счетчик попыток. После MaxAttempts событие переводится в FAILED, иначе
// возвращается в очередь.
func (r *OutboxRepository) MarkFailed(ctx context.Context, args repoargs.OutboxFailure) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE outbox_events
		 SET attempts = attempts + 1,
		     last_error = $2,
		     status = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE $5 END
		 WHERE id = $1`,
		args.ID, args.Error, args.MaxAttempts, domain.EventStatusFailed, domain.EventStatusPending,
	)
	return convertErr(err, "marking outbox event %s failed", args.ID)
}
