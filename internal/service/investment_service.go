package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/shopspring/decimal"
)

type InvestmentService struct {
	uow            uow.UOW
	investmentRepo InvestmentRepository
	now            func() time.Time
}

func NewInvestmentService(u uow.UOW) (*InvestmentService, error) {
	investmentRepo, err := uow.GetRepositoryAs[InvestmentRepository](
		u, uow.RepositoryName(repoargs.InvestmentRepoName),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &InvestmentService{
		uow:            u,
		investmentRepo: investmentRepo,
		now:            time.Now,
	}, nil
}

func (i *InvestmentService) SetClock(now func() time.Time) *InvestmentService {
	i.now = now
	return i
}

// GetByUserID возвращает инвестиции пользователя от новых к старым.
func (i *InvestmentService) GetByUserID(ctx context.Context, userID int64) ([]domain.Investment, error) {
	investments, err := i.investmentRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return investments, nil
}

// PurchasePlan покупает план за счет ликвидного баланса USDT: баланс уменьшается, инвестированный капитал
// растет на ту же сумму, создается инвестиция без депозита и запись PLAN_PURCHASE.
func (i *InvestmentService) PurchasePlan(
	ctx context.Context,
	userID, planID int64,
	amount decimal.Decimal,
) (*domain.Investment, error) {
	amount = domain.RoundAmount(amount)
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "must be positive")
	}

	var investment *domain.Investment
	txErr := i.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		wallet, walletErr := lockWallet(c, tx, userID)
		if walletErr != nil {
			return walletErr
		}
		if !wallet.IsMutable() {
			return domain.ErrWalletLocked
		}

		planRepo, repoErr := uow.GetAs[PlanRepository](tx, uow.RepositoryName(repoargs.PlanRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		plan, planErr := planRepo.GetByID(c, planID)
		if planErr != nil {
			return fmt.Errorf("plan %d: %w", planID, planErr)
		}
		if !plan.IsActive {
			return fmt.Errorf("plan %d: %w", plan.ID, domain.ErrPlanInactive)
		}
		if !plan.InRange(amount) {
			return domain.NewValidationError("amount", "is outside of the plan limits")
		}
		if liquid := wallet.Balances.Get(domain.AssetUSDT); liquid.LessThan(amount) {
			return fmt.Errorf("usdt balance %s, plan costs %s: %w", liquid, amount, domain.ErrInsufficientFunds)
		}

		var invErr error
		investment, invErr = createInvestment(c, tx, wallet, plan, amount, nil, i.now().UTC())
		if invErr != nil {
			return invErr
		}

		if _, err := postEntry(c, tx, wallet, posting{
			Type:          domain.EntryTypePlanPurchase,
			Asset:         domain.AssetUSDT,
			Network:       domain.NetworkSystem,
			Amount:        amount.Neg(),
			InvestedDelta: amount,
			ReferenceID:   strconv.FormatInt(investment.ID, 10),
		}); err != nil {
			return err
		}
		if err := saveWallet(c, tx, wallet); err != nil {
			return err
		}

		return enqueueNotification(c, tx, userID, domain.Notification{
			Title:   "Plan Activated",
			Message: fmt.Sprintf("Your %s plan for %s USDT is now active.", plan.Name, amount),
			Type:    notifyPlan,
			Data:    map[string]any{"investment_id": investment.ID, "plan_id": plan.ID},
		})
	})
	if txErr != nil {
		return nil, fmt.Errorf("purchasing plan %d: %w", planID, txErr)
	}
	return investment, nil
}

// createInvestment создает инвестицию по условиям плана. Первое начисление наступает через один интервал
// после now.
func createInvestment(
	ctx context.Context,
	tx uow.TX,
	wallet *domain.Wallet,
	plan *domain.Plan,
	principal decimal.Decimal,
	depositID *int64,
	now time.Time,
) (*domain.Investment, error) {
	investmentRepo, repoErr := uow.GetAs[InvestmentRepository](tx, uow.RepositoryName(repoargs.InvestmentRepoName))
	if repoErr != nil {
		return nil, repoErr //nolint:wrapcheck
	}

	intervalHours := plan.IntervalHours
	if intervalHours <= 0 {
		intervalHours = domain.DefaultIntervalHours
	}
	investment, err := investmentRepo.Create(ctx, repoargs.InvestmentCreate{
		UserID:        wallet.UserID,
		WalletID:      wallet.ID,
		DepositID:     depositID,
		PlanID:        plan.ID,
		Principal:     principal,
		ProfitPercent: plan.ProfitPercent,
		IntervalHours: intervalHours,
		DurationDays:  plan.DurationDays,
		StartAt:       now,
		NextDueAt:     now.Add(time.Duration(intervalHours) * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("create investment: %w", err)
	}
	return investment, nil
}
