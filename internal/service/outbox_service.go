package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/google/uuid"
)

const (
	defaultMaxDeliveryAttempts = 10
	defaultClaimStaleAfter     = 5 * time.Minute
)

type OutboxService struct {
	uow         uow.UOW
	outboxRepo  OutboxRepository
	maxAttempts int
	staleAfter  time.Duration
}

func NewOutboxService(u uow.UOW) (*OutboxService, error) {
	outboxRepo, err := uow.GetRepositoryAs[OutboxRepository](u, uow.RepositoryName(repoargs.OutboxRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &OutboxService{
		uow:         u,
		outboxRepo:  outboxRepo,
		maxAttempts: defaultMaxDeliveryAttempts,
		staleAfter:  defaultClaimStaleAfter,
	}, nil
}

// SetMaxAttempts задает кол-во попыток доставки, после которого событие помечается FAILED.
func (o *OutboxService) SetMaxAttempts(n int) *OutboxService {
	if n > 0 {
		o.maxAttempts = n
	}
	return o
}

// ClaimPending захватывает до limit событий для доставки. Захваченные события недоступны другим
// экземплярам, пока не будут завершены или не истечет staleAfter.
func (o *OutboxService) ClaimPending(ctx context.Context, limit uint) ([]domain.OutboxEvent, error) {
	events, err := o.outboxRepo.Claim(ctx, repoargs.OutboxClaim{Limit: limit, StaleAfter: o.staleAfter})
	if err != nil {
		return nil, fmt.Errorf("claiming outbox events: %w", err)
	}
	return events, nil
}

// DeliveryResult результат доставки одного события. Error == nil означает успешную доставку.
type DeliveryResult struct {
	EventID uuid.UUID
	Error   error
}

// CompleteDelivery сохраняет результаты доставки: успешные события помечаются SENT, для остальных
// увеличивается счетчик попыток.
func (o *OutboxService) CompleteDelivery(ctx context.Context, results []DeliveryResult) error {
	sentIDs, failures := o.splitSuccessFailureResults(results)

	txErr := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		outboxRepo, repoErr := uow.GetAs[OutboxRepository](tx, uow.RepositoryName(repoargs.OutboxRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		if len(sentIDs) > 0 {
			if err := outboxRepo.MarkSent(c, sentIDs); err != nil {
				return err //nolint:wrapcheck
			}
		}
		for _, f := range failures {
			if err := outboxRepo.MarkFailed(c, f); err != nil {
				return err //nolint:wrapcheck
			}
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("completing outbox delivery: %w", txErr)
	}
	return nil
}

// splitSuccessFailureResults разбивает результаты на id доставленных событий и параметры для неудачных.
func (o *OutboxService) splitSuccessFailureResults(results []DeliveryResult) ([]uuid.UUID, []repoargs.OutboxFailure) {
	var sentIDs = make([]uuid.UUID, 0, len(results))
	var failures = make([]repoargs.OutboxFailure, 0, len(results))
	for _, r := range results {
		if r.Error == nil {
			sentIDs = append(sentIDs, r.EventID)
		} else {
			failures = append(failures, repoargs.OutboxFailure{
				ID:          r.EventID,
				Error:       r.Error.Error(),
				MaxAttempts: o.maxAttempts,
			})
		}
	}
	return sentIDs, failures
}
