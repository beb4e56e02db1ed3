package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/internal/service"
)

type WalletServicer interface {
	GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error)
	Freeze(ctx context.Context, adminID, userID int64, reason string) (*domain.Wallet, error)
	Unfreeze(ctx context.Context, adminID, userID int64) (*domain.Wallet, error)
	AdjustBalance(ctx context.Context, args service.AdjustBalanceArgs) (*domain.LedgerEntry, error)
}

type LedgerServicer interface {
	GetLedger(ctx context.Context, userID int64, filter repoargs.LedgerFilter) ([]domain.LedgerEntry, error)
	Reconcile(ctx context.Context, userID int64) (*service.ReconcileReport, error)
}

type DepositServicer interface {
	Create(ctx context.Context, args service.CreateDepositArgs) (*domain.Deposit, error)
	Approve(ctx context.Context, adminID, depositID int64, approvedAmount decimal.Decimal) (*service.DepositApproval, error)
	Reject(ctx context.Context, adminID, depositID int64, reason string) (*domain.Deposit, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Deposit, error)
	GetByStatus(ctx context.Context, status domain.DepositStatus, page repoargs.Page) ([]domain.Deposit, error)
}

type WithdrawalServicer interface {
	Create(ctx context.Context, args service.CreateWithdrawalArgs) (*domain.Withdrawal, error)
	CreateManual(ctx context.Context, args service.ManualWithdrawalArgs) (*domain.Withdrawal, error)
	Approve(ctx context.Context, adminID, withdrawalID int64) (*domain.Withdrawal, error)
	Confirm(ctx context.Context, adminID, withdrawalID int64, txHash, proofRef string) (*domain.Withdrawal, error)
	Reject(ctx context.Context, adminID, withdrawalID int64, reason string) (*domain.Withdrawal, error)
	Fail(ctx context.Context, adminID, withdrawalID int64, reason string) (*domain.Withdrawal, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error)
	GetByStatus(ctx context.Context, status domain.WithdrawalStatus, page repoargs.Page) ([]domain.Withdrawal, error)
}

type InvestmentServicer interface {
	PurchasePlan(ctx context.Context, userID, planID int64, amount decimal.Decimal) (*domain.Investment, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Investment, error)
}

// AccrualRunner ручной запуск движка начислений. Реализуется планировщиком, поэтому ручной запуск соблюдает ту же
// блокировку, что и запуск по расписанию.
type AccrualRunner interface {
	RunOnce(ctx context.Context) (*service.AccrualReport, error)
}
