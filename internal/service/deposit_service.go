package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/shopspring/decimal"
)

// referralBonusRate доля первого одобренного депозита, начисляемая пригласившему.
var referralBonusRate = decimal.NewFromFloat(0.1) //nolint:mnd

type DepositService struct {
	uow           uow.UOW
	depositRepo   DepositRepository
	planRepo      PlanRepository
	requireTxHash bool
	now           func() time.Time
}

func NewDepositService(u uow.UOW) (*DepositService, error) {
	depositRepo, err := uow.GetRepositoryAs[DepositRepository](u, uow.RepositoryName(repoargs.DepositRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	planRepo, err := uow.GetRepositoryAs[PlanRepository](u, uow.RepositoryName(repoargs.PlanRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &DepositService{
		uow:         u,
		depositRepo: depositRepo,
		planRepo:    planRepo,
		now:         time.Now,
	}, nil
}

// SetRequireTxHash включает обязательность хеша транзакции при создании депозита.
func (d *DepositService) SetRequireTxHash(required bool) *DepositService {
	d.requireTxHash = required
	return d
}

func (d *DepositService) SetClock(now func() time.Time) *DepositService {
	d.now = now
	return d
}

type CreateDepositArgs struct {
	UserID      int64
	PlanID      int64
	Asset       string
	Network     string
	Amount      decimal.Decimal
	ProofRef    string
	TxHash      string
	PaymentLink string
}

func (a *CreateDepositArgs) normalize(requireTxHash bool) error {
	a.Asset = strings.ToUpper(strings.TrimSpace(a.Asset))
	a.Network = strings.ToUpper(strings.TrimSpace(a.Network))
	a.ProofRef = strings.TrimSpace(a.ProofRef)
	a.TxHash = strings.TrimSpace(a.TxHash)

	switch {
	case !a.Amount.IsPositive():
		return domain.NewValidationError("amount", "must be positive")
	case a.Asset == "":
		return domain.NewValidationError("asset", "is required")
	case a.Network == "":
		return domain.NewValidationError("network", "is required")
	case a.ProofRef == "":
		return domain.NewValidationError("proof_ref", "is required")
	case requireTxHash && a.TxHash == "":
		return domain.NewValidationError("tx_hash", "is required")
	}
	return nil
}

// Create регистрирует заявку на депозит в статусе PENDING. Баланс не меняется до одобрения.
func (d *DepositService) Create(ctx context.Context, args CreateDepositArgs) (*domain.Deposit, error) {
	if err := args.normalize(d.requireTxHash); err != nil {
		return nil, err
	}

	plan, planErr := d.planRepo.GetByID(ctx, args.PlanID)
	if planErr != nil {
		return nil, fmt.Errorf("creating deposit: plan %d: %w", args.PlanID, planErr)
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("creating deposit: plan %d: %w", plan.ID, domain.ErrPlanInactive)
	}
	if !plan.InRange(args.Amount) {
		return nil, domain.NewValidationError("amount", "is outside of the plan limits")
	}

	var deposit *domain.Deposit
	txErr := d.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		depositRepo, repoErr := uow.GetAs[DepositRepository](tx, uow.RepositoryName(repoargs.DepositRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		var createErr error
		deposit, createErr = depositRepo.Create(c, repoargs.DepositCreate{
			UserID:        args.UserID,
			PlanID:        plan.ID,
			Asset:         args.Asset,
			Network:       args.Network,
			ClaimedAmount: domain.RoundAmount(args.Amount),
			ProofRef:      args.ProofRef,
			TxHash:        args.TxHash,
			PaymentLink:   args.PaymentLink,
		})
		if createErr != nil {
			return createErr //nolint:wrapcheck
		}
		return enqueueEmail(c, tx, args.UserID, emailDepositRequested, map[string]any{
			"deposit_id": deposit.ID,
			"amount":     deposit.ClaimedAmount.String(),
			"asset":      deposit.Asset,
			"plan":       plan.Name,
		})
	})
	if txErr != nil {
		return nil, fmt.Errorf("creating deposit: %w", txErr)
	}
	return deposit, nil
}

// DepositApproval результат одобрения депозита. Если депозит уже был проведен, Approve возвращает ошибку,
// совместимую с domain.ErrDuplicateEntry, и ничего не меняет.
type DepositApproval struct {
	Deposit       *domain.Deposit
	Investment    *domain.Investment
	ReferralBonus decimal.Decimal
}

// Approve одобряет депозит на сумму approvedAmount.
//
// Алгоритм работы (одна транзакция):
//  1. Блокирует депозит в статусе PENDING, затем кошелек пользователя.
//  2. Проверяет, что план активен.
//  3. Записывает DEPOSIT (ликвидный баланс не меняется, инвестированный капитал растет на сумму).
//  4. Создает инвестицию по условиям плана со сроком первого начисления через один интервал.
//  5. Для первого одобренного депозита приглашенного пользователя начисляет бонус пригласившему.
//  6. Начисляет баллы лояльности и пересчитывает уровень.
//  7. Переводит депозит в APPROVED, пишет аудит и ставит уведомления в outbox.
func (d *DepositService) Approve(
	ctx context.Context,
	adminID, depositID int64,
	approvedAmount decimal.Decimal,
) (*DepositApproval, error) {
	approved := domain.RoundAmount(approvedAmount)
	if !approved.IsPositive() {
		return nil, domain.NewValidationError("approved_amount", "must be positive")
	}

	var result *DepositApproval
	txErr := d.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		now := d.now().UTC()
		depositRepo, repoErr := uow.GetAs[DepositRepository](tx, uow.RepositoryName(repoargs.DepositRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		deposit, depositErr := depositRepo.GetPendingForUpdate(c, depositID)
		if depositErr != nil {
			return depositErr //nolint:wrapcheck
		}

		wallet, walletErr := lockWallet(c, tx, deposit.UserID)
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
		plan, planErr := planRepo.GetByID(c, deposit.PlanID)
		if planErr != nil {
			return fmt.Errorf("plan %d: %w", deposit.PlanID, planErr)
		}
		if !plan.IsActive {
			return fmt.Errorf("plan %d: %w", plan.ID, domain.ErrPlanInactive)
		}

		if _, err := postEntry(c, tx, wallet, posting{
			Type:          domain.EntryTypeDeposit,
			Asset:         deposit.Asset,
			Network:       deposit.Network,
			Amount:        decimal.Zero,
			InvestedDelta: approved,
			ReferenceID:   strconv.FormatInt(deposit.ID, 10),
		}); err != nil {
			return err
		}
		if err := saveWallet(c, tx, wallet); err != nil {
			return err
		}

		investment, invErr := createInvestment(c, tx, wallet, plan, approved, &deposit.ID, now)
		if invErr != nil {
			return invErr
		}

		approvedBefore, countErr := depositRepo.CountApprovedByUserID(c, deposit.UserID)
		if countErr != nil {
			return countErr //nolint:wrapcheck
		}

		userRepo, repoErr := uow.GetAs[UserRepository](tx, uow.RepositoryName(repoargs.UserRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		user, userErr := userRepo.GetByID(c, deposit.UserID)
		if userErr != nil {
			return fmt.Errorf("user %d: %w", deposit.UserID, userErr)
		}

		bonus := decimal.Zero
		if approvedBefore == 0 {
			var bonusErr error
			if bonus, bonusErr = d.creditReferralBonus(c, tx, user, deposit.ID, approved); bonusErr != nil {
				return bonusErr
			}
		}

		if err := addLoyaltyPoints(c, tx, userRepo, user, approved); err != nil {
			return err
		}

		approvedAt := now
		updated, updErr := depositRepo.UpdateStatus(c, repoargs.DepositStatusUpdate{
			ID:             deposit.ID,
			Status:         domain.DepositStatusApproved,
			ApprovedAmount: &approved,
			AdminID:        adminID,
			ApprovedAt:     &approvedAt,
		})
		if updErr != nil {
			return updErr //nolint:wrapcheck
		}

		if err := writeAudit(c, tx, repoargs.AuditCreate{
			AdminID:  adminID,
			Action:   auditDepositApprove,
			Entity:   entityDeposit,
			EntityID: strconv.FormatInt(deposit.ID, 10),
			Before:   deposit,
			After:    updated,
		}); err != nil {
			return err
		}

		if err := d.enqueueApproved(c, tx, updated, plan, investment); err != nil {
			return err
		}

		result = &DepositApproval{
			Deposit:       updated,
			Investment:    investment,
			ReferralBonus: bonus,
		}
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("approving deposit %d: %w", depositID, txErr)
	}
	return result, nil
}

// creditReferralBonus начисляет пригласившему бонус на ликвидный баланс USDT. Бонус не начисляется, если
// пригласившего нет, это сам пользователь или его кошелек заблокирован.
func (d *DepositService) creditReferralBonus(
	ctx context.Context,
	tx uow.TX,
	user *domain.User,
	depositID int64,
	approved decimal.Decimal,
) (decimal.Decimal, error) {
	if user.ReferredBy == nil || *user.ReferredBy == user.ID {
		return decimal.Zero, nil
	}
	referrerID := *user.ReferredBy

	referrerWallet, walletErr := lockWallet(ctx, tx, referrerID)
	if walletErr != nil {
		return decimal.Zero, walletErr
	}
	if !referrerWallet.IsMutable() {
		return decimal.Zero, nil
	}

	bonus := domain.RoundAmount(approved.Mul(referralBonusRate))
	if !bonus.IsPositive() {
		return decimal.Zero, nil
	}
	if _, err := postEntry(ctx, tx, referrerWallet, posting{
		Type:        domain.EntryTypeReferralBonus,
		Asset:       domain.AssetUSDT,
		Network:     domain.NetworkSystem,
		Amount:      bonus,
		ReferenceID: strconv.FormatInt(depositID, 10),
	}); err != nil {
		return decimal.Zero, err
	}
	referrerWallet.AddProfit(bonus)
	if err := saveWallet(ctx, tx, referrerWallet); err != nil {
		return decimal.Zero, err
	}

	if err := enqueueNotification(ctx, tx, referrerID, domain.Notification{
		Title:   "Referral Bonus",
		Message: fmt.Sprintf("You earned %s USDT referral bonus from %s.", bonus, user.Name),
		Type:    notifyReferral,
		Data:    map[string]any{"amount": bonus.String(), "referral_id": user.ID},
	}); err != nil {
		return decimal.Zero, err
	}
	return bonus, nil
}

func (d *DepositService) enqueueApproved(
	ctx context.Context,
	tx uow.TX,
	deposit *domain.Deposit,
	plan *domain.Plan,
	investment *domain.Investment,
) error {
	approved := decimal.Zero
	if deposit.ApprovedAmount != nil {
		approved = *deposit.ApprovedAmount
	}
	if err := enqueueNotification(ctx, tx, deposit.UserID, domain.Notification{
		Title:   "Deposit Approved",
		Message: fmt.Sprintf("Your deposit of %s %s has been approved.", approved, deposit.Asset),
		Type:    notifyDeposit,
		Data:    map[string]any{"deposit_id": deposit.ID, "investment_id": investment.ID},
	}); err != nil {
		return err
	}
	return enqueueEmail(ctx, tx, deposit.UserID, emailPlanApproved, map[string]any{
		"deposit_id":     deposit.ID,
		"amount":         approved.String(),
		"plan":           plan.Name,
		"profit_percent": plan.ProfitPercent.String(),
		"duration_days":  plan.DurationDays,
		"next_due_at":    investment.NextDueAt,
	})
}

// Reject отклоняет депозит в статусе PENDING. Балансы не меняются.
func (d *DepositService) Reject(ctx context.Context, adminID, depositID int64, reason string) (*domain.Deposit, error) {
	reason = strings.TrimSpace(reason)

	var result *domain.Deposit
	txErr := d.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		depositRepo, repoErr := uow.GetAs[DepositRepository](tx, uow.RepositoryName(repoargs.DepositRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		deposit, depositErr := depositRepo.GetPendingForUpdate(c, depositID)
		if depositErr != nil {
			return depositErr //nolint:wrapcheck
		}
		updated, updErr := depositRepo.UpdateStatus(c, repoargs.DepositStatusUpdate{
			ID:      deposit.ID,
			Status:  domain.DepositStatusRejected,
			AdminID: adminID,
			Remarks: reason,
		})
		if updErr != nil {
			return updErr //nolint:wrapcheck
		}

		if err := writeAudit(c, tx, repoargs.AuditCreate{
			AdminID:  adminID,
			Action:   auditDepositReject,
			Entity:   entityDeposit,
			EntityID: strconv.FormatInt(deposit.ID, 10),
			Before:   deposit,
			After:    updated,
		}); err != nil {
			return err
		}

		if err := enqueueNotification(c, tx, deposit.UserID, domain.Notification{
			Title:   "Deposit Rejected",
			Message: fmt.Sprintf("Your deposit of %s %s was rejected.", deposit.ClaimedAmount, deposit.Asset),
			Type:    notifyDeposit,
			Data:    map[string]any{"deposit_id": deposit.ID, "reason": reason},
		}); err != nil {
			return err
		}
		if err := enqueueEmail(c, tx, deposit.UserID, emailDepositRejected, map[string]any{
			"deposit_id": deposit.ID,
			"amount":     deposit.ClaimedAmount.String(),
			"reason":     reason,
		}); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("rejecting deposit %d: %w", depositID, txErr)
	}
	return result, nil
}

// GetByUserID возвращает депозиты пользователя от новых к старым.
func (d *DepositService) GetByUserID(ctx context.Context, userID int64) ([]domain.Deposit, error) {
	deposits, err := d.depositRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return deposits, nil
}

// GetByStatus очередь депозитов администратора.
func (d *DepositService) GetByStatus(
	ctx context.Context,
	status domain.DepositStatus,
	page repoargs.Page,
) ([]domain.Deposit, error) {
	switch status {
	case domain.DepositStatusPending, domain.DepositStatusApproved, domain.DepositStatusRejected:
	default:
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown deposit status %q", status))
	}
	deposits, err := d.depositRepo.GetByStatus(ctx, status, normalizePage(page))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return deposits, nil
}

// addLoyaltyPoints начисляет баллы лояльности и при смене уровня ставит уведомление о повышении.
func addLoyaltyPoints(
	ctx context.Context,
	tx uow.TX,
	userRepo UserRepository,
	user *domain.User,
	amount decimal.Decimal,
) error {
	points := user.Points.Add(amount)
	tier := domain.TierForPoints(points)
	if err := userRepo.UpdateLoyalty(ctx, repoargs.LoyaltyUpdate{
		UserID: user.ID,
		Points: points,
		Tier:   tier,
	}); err != nil {
		return fmt.Errorf("update loyalty of user %d: %w", user.ID, err)
	}
	if tier == user.Tier {
		return nil
	}
	return enqueueNotification(ctx, tx, user.ID, domain.Notification{
		Title:   "Rank Up!",
		Message: fmt.Sprintf("Congratulations! You reached the %s tier.", tier),
		Type:    notifyRank,
		Data:    map[string]any{"tier": tier, "points": points.String()},
	})
}
