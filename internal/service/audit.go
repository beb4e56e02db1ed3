package service

import (
	"context"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
)

// Действия администратора, попадающие в журнал аудита.
const (
	auditDepositApprove    = "DEPOSIT_APPROVE"
	auditDepositReject     = "DEPOSIT_REJECT"
	auditWithdrawalApprove = "WITHDRAWAL_APPROVE"
	auditWithdrawalConfirm = "WITHDRAWAL_CONFIRM"
	auditWithdrawalReject  = "WITHDRAWAL_REJECT"
	auditWithdrawalFail    = "WITHDRAWAL_FAIL"
	auditWithdrawalManual  = "WITHDRAWAL_MANUAL"
	auditWalletFreeze      = "WALLET_FREEZE"
	auditWalletUnfreeze    = "WALLET_UNFREEZE"
	auditWalletAdjust      = "WALLET_ADJUST"
)

const (
	entityDeposit    = "deposit"
	entityWithdrawal = "withdrawal"
	entityWallet     = "wallet"
)

func writeAudit(ctx context.Context, tx uow.TX, args repoargs.AuditCreate) error {
	auditRepo, repoErr := uow.GetAs[AuditRepository](tx, uow.RepositoryName(repoargs.AuditRepoName))
	if repoErr != nil {
		return repoErr //nolint:wrapcheck
	}
	if err := auditRepo.Create(ctx, args); err != nil {
		return fmt.Errorf("audit %s %s %s: %w", args.Action, args.Entity, args.EntityID, err)
	}
	return nil
}
