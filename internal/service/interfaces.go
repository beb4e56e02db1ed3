package service

import (
	"context"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/google/uuid"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type LedgerRepository interface {
	Append(ctx context.Context, entry repoargs.LedgerEntryCreate) (*domain.LedgerEntry, error)
	SumByKey(ctx context.Context, userID int64) (*repoargs.LedgerSums, error)
	GetByUserID(ctx context.Context, userID int64, filter repoargs.LedgerFilter) ([]domain.LedgerEntry, error)
}

type WalletRepository interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.Wallet, error)
	GetOrCreateForUpdate(ctx context.Context, userID int64) (*domain.Wallet, error)
	Save(ctx context.Context, wallet *domain.Wallet) error
}

type InvestmentRepository interface {
	Create(ctx context.Context, args repoargs.InvestmentCreate) (*domain.Investment, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Investment, error)
	ListActiveForUpdate(ctx context.Context, userID int64) ([]domain.Investment, error)
	ListDue(ctx context.Context, args repoargs.DueInvestments) ([]domain.Investment, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Investment, error)
	Save(ctx context.Context, investment *domain.Investment) error
}

type DepositRepository interface {
	Create(ctx context.Context, args repoargs.DepositCreate) (*domain.Deposit, error)
	GetPendingForUpdate(ctx context.Context, id int64) (*domain.Deposit, error)
	CountApprovedByUserID(ctx context.Context, userID int64) (int64, error)
	UpdateStatus(ctx context.Context, args repoargs.DepositStatusUpdate) (*domain.Deposit, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Deposit, error)
	GetByStatus(ctx context.Context, status domain.DepositStatus, page repoargs.Page) ([]domain.Deposit, error)
}

type WithdrawalRepository interface {
	Create(ctx context.Context, args repoargs.WithdrawalCreate) (*domain.Withdrawal, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Withdrawal, error)
	ExistsByTxHash(ctx context.Context, txHash string) (bool, error)
	UpdateStatus(ctx context.Context, args repoargs.WithdrawalStatusUpdate) (*domain.Withdrawal, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error)
	GetByStatus(
		ctx context.Context,
		status domain.WithdrawalStatus,
		page repoargs.Page,
	) ([]domain.Withdrawal, error)
}

type PlanRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Plan, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateLoyalty(ctx context.Context, args repoargs.LoyaltyUpdate) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type OutboxRepository interface {
	Create(ctx context.Context, args repoargs.OutboxEventCreate) error
	Claim(ctx context.Context, args repoargs.OutboxClaim) ([]domain.OutboxEvent, error)
	MarkSent(ctx context.Context, ids []uuid.UUID) error
	MarkFailed(ctx context.Context, args repoargs.OutboxFailure) error
}

type AuditRepository interface {
	Create(ctx context.Context, args repoargs.AuditCreate) error
}

// CodeVerifier выдает и проверяет одноразовые коды подтверждения вывода.
type CodeVerifier interface {
	Issue(ctx context.Context, userID int64) (string, error)
	// Redeem проверяет и гасит код за одну операцию.
	Redeem(ctx context.Context, userID int64, code string) error
}
