package service

import (
	"context"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
)

// Типы уведомлений.
const (
	notifyDeposit    = "deposit"
	notifyWithdrawal = "withdrawal"
	notifyProfit     = "profit"
	notifyPlan       = "plan"
	notifyReferral   = "referral"
	notifyRank       = "rank"
	notifyWallet     = "wallet"
)

// Шаблоны писем.
const (
	emailDepositRequested    = "DEPOSIT_REQUESTED"
	emailDepositRejected     = "DEPOSIT_REJECTED"
	emailPlanApproved        = "PLAN_APPROVED"
	emailWithdrawalRequested = "WITHDRAWAL_REQUESTED"
	emailWithdrawalCode      = "WITHDRAWAL_CODE"
	emailWithdrawalRejected  = "WITHDRAWAL_REJECTED"
	emailWithdrawalCompleted = "WITHDRAWAL_COMPLETED"
)

// enqueueNotification записывает уведомление в outbox внутри транзакции tx. Доставка выполняется
// асинхронно и не влияет на исход финансовой операции.
func enqueueNotification(ctx context.Context, tx uow.TX, userID int64, n domain.Notification) error {
	return enqueue(ctx, tx, domain.EventKindNotification, userID, n)
}

func enqueueEmail(ctx context.Context, tx uow.TX, userID int64, template string, data map[string]any) error {
	return enqueue(ctx, tx, domain.EventKindEmail, userID, domain.Email{Template: template, Data: data})
}

func enqueue(ctx context.Context, tx uow.TX, kind domain.EventKind, userID int64, payload any) error {
	outboxRepo, repoErr := uow.GetAs[OutboxRepository](tx, uow.RepositoryName(repoargs.OutboxRepoName))
	if repoErr != nil {
		return repoErr //nolint:wrapcheck
	}
	if err := outboxRepo.Create(ctx, repoargs.OutboxEventCreate{
		Kind:    kind,
		UserID:  userID,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("enqueue %s event for user %d: %w", kind, userID, err)
	}
	return nil
}
