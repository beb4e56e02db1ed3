package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var errVerifierNotConfigured = errors.New("withdrawal verification is required but no code verifier configured")

type WithdrawalService struct {
	uow                 uow.UOW
	withdrawalRepo      WithdrawalRepository
	userRepo            UserRepository
	codes               CodeVerifier
	requireVerification bool
	minAmount           decimal.Decimal
	l                   logrus.FieldLogger
}

func NewWithdrawalService(u uow.UOW, codes CodeVerifier) (*WithdrawalService, error) {
	withdrawalRepo, err := uow.GetRepositoryAs[WithdrawalRepository](
		u, uow.RepositoryName(repoargs.WithdrawalRepoName),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	userRepo, err := uow.GetRepositoryAs[UserRepository](u, uow.RepositoryName(repoargs.UserRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &WithdrawalService{
		uow:            u,
		withdrawalRepo: withdrawalRepo,
		userRepo:       userRepo,
		codes:          codes,
		minAmount:      decimal.Zero,
		l:              withdrawalLogger(logrus.StandardLogger()),
	}, nil
}

func withdrawalLogger(l logrus.FieldLogger) logrus.FieldLogger {
	return l.WithFields(logrus.Fields{
		"component": "service",
		"module":    "withdrawal",
	})
}

// SetLogger задает логгер для предупреждений о расхождениях кошелька и инвестиций.
func (w *WithdrawalService) SetLogger(l logrus.FieldLogger) *WithdrawalService {
	if l != nil {
		w.l = withdrawalLogger(l)
	}
	return w
}

// SetRequireVerification включает подтверждение вывода одноразовым кодом для всех пользователей.
func (w *WithdrawalService) SetRequireVerification(required bool) *WithdrawalService {
	w.requireVerification = required
	return w
}

// SetMinAmount задает минимальную сумму пользовательского вывода. Ноль снимает ограничение.
func (w *WithdrawalService) SetMinAmount(amount decimal.Decimal) *WithdrawalService {
	w.minAmount = amount
	return w
}

type CreateWithdrawalArgs struct {
	UserID             int64
	Asset              string
	Network            string
	Amount             decimal.Decimal
	DestinationAddress string
	Code               string
}

func (a *CreateWithdrawalArgs) normalize() error {
	a.Asset = strings.ToUpper(strings.TrimSpace(a.Asset))
	a.Network = strings.ToUpper(strings.TrimSpace(a.Network))
	a.DestinationAddress = strings.TrimSpace(a.DestinationAddress)
	a.Code = strings.TrimSpace(a.Code)
	a.Amount = domain.RoundAmount(a.Amount)

	switch {
	case !a.Amount.IsPositive():
		return domain.NewValidationError("amount", "must be positive")
	case a.Asset == "":
		return domain.NewValidationError("asset", "is required")
	case a.Network == "":
		return domain.NewValidationError("network", "is required")
	case a.DestinationAddress == "":
		return domain.NewValidationError("destination_address", "is required")
	}
	return nil
}

// Create создает пользовательскую заявку на вывод и сразу блокирует средства.
//
// Алгоритм работы:
//  1. Проверяет входные данные и минимальную сумму.
//  2. Если требуется подтверждение, а код не передан, выдает код, ставит письмо с ним в outbox и
//     возвращает domain.ErrVerificationRequired. Неверный код возвращает domain.ErrInvalidVerificationCode.
//     В обоих случаях средства не блокируются. Верный код гасится до блокировки средств, поэтому
//     один код подтверждает только один вывод.
//  3. В одной транзакции списывает сумму каскадом (см. lockFunds) и создает вывод в статусе FUNDS_LOCKED.
func (w *WithdrawalService) Create(ctx context.Context, args CreateWithdrawalArgs) (*domain.Withdrawal, error) {
	if err := args.normalize(); err != nil {
		return nil, err
	}
	if w.minAmount.IsPositive() && args.Amount.LessThan(w.minAmount) {
		return nil, domain.NewValidationError("amount", fmt.Sprintf("minimum withdrawal is %s", w.minAmount))
	}

	if err := w.verify(ctx, args.UserID, args.Code); err != nil {
		return nil, err
	}

	var withdrawal *domain.Withdrawal
	txErr := w.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var lockErr error
		withdrawal, lockErr = w.lockFunds(c, tx, repoargs.WithdrawalCreate{
			UserID:             args.UserID,
			Asset:              args.Asset,
			Network:            args.Network,
			Amount:             args.Amount,
			DestinationAddress: args.DestinationAddress,
			Status:             domain.WithdrawalStatusFundsLocked,
		})
		if lockErr != nil {
			return lockErr
		}

		if err := enqueueNotification(c, tx, args.UserID, domain.Notification{
			Title:   "Withdrawal Requested",
			Message: fmt.Sprintf("Your withdrawal of %s %s is being processed.", withdrawal.Amount, withdrawal.Asset),
			Type:    notifyWithdrawal,
			Data:    map[string]any{"withdrawal_id": withdrawal.ID},
		}); err != nil {
			return err
		}
		return enqueueEmail(c, tx, args.UserID, emailWithdrawalRequested, withdrawalEmailData(withdrawal))
	})
	if txErr != nil {
		return nil, fmt.Errorf("creating withdrawal: %w", txErr)
	}
	return withdrawal, nil
}

// verify проверяет и гасит одноразовый код, если он требуется.
func (w *WithdrawalService) verify(ctx context.Context, userID int64, code string) error {
	required := w.requireVerification
	if !required {
		user, userErr := w.userRepo.GetByID(ctx, userID)
		if userErr != nil {
			return fmt.Errorf("creating withdrawal: user %d: %w", userID, userErr)
		}
		required = user.RequireWithdrawVerification
	}
	if !required {
		return nil
	}
	if w.codes == nil {
		return errVerifierNotConfigured
	}

	if code == "" {
		if err := w.issueCode(ctx, userID); err != nil {
			return err
		}
		return domain.ErrVerificationRequired
	}
	if err := w.codes.Redeem(ctx, userID, code); err != nil {
		return fmt.Errorf("redeeming withdrawal code: %w", err)
	}
	return nil
}

func (w *WithdrawalService) issueCode(ctx context.Context, userID int64) error {
	code, issueErr := w.codes.Issue(ctx, userID)
	if issueErr != nil {
		return fmt.Errorf("issuing withdrawal code: %w", issueErr)
	}
	txErr := w.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		return enqueueEmail(c, tx, userID, emailWithdrawalCode, map[string]any{"code": code})
	})
	if txErr != nil {
		return fmt.Errorf("sending withdrawal code: %w", txErr)
	}
	return nil
}

type ManualWithdrawalArgs struct {
	AdminID            int64
	UserID             int64
	Asset              string
	Network            string
	Amount             decimal.Decimal
	DestinationAddress string
	Status             domain.WithdrawalStatus
	TxHash             string
}

// CreateManual создает вывод от имени администратора без подтверждения кодом и без проверки минимальной
// суммы. Списание средств такое же, как у пользовательского вывода. По умолчанию вывод сразу завершен.
func (w *WithdrawalService) CreateManual(ctx context.Context, args ManualWithdrawalArgs) (*domain.Withdrawal, error) {
	base := CreateWithdrawalArgs{
		UserID:             args.UserID,
		Asset:              args.Asset,
		Network:            args.Network,
		Amount:             args.Amount,
		DestinationAddress: args.DestinationAddress,
	}
	if err := base.normalize(); err != nil {
		return nil, err
	}
	if args.Status == "" {
		args.Status = domain.WithdrawalStatusCompleted
	}
	switch args.Status {
	case domain.WithdrawalStatusFundsLocked, domain.WithdrawalStatusAdminProcessing, domain.WithdrawalStatusCompleted:
	default:
		return nil, domain.NewValidationError("status", fmt.Sprintf("manual withdrawal cannot be %s", args.Status))
	}
	args.TxHash = strings.TrimSpace(args.TxHash)

	var withdrawal *domain.Withdrawal
	txErr := w.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		if err := ensureTxHashUnused(c, tx, args.TxHash); err != nil {
			return err
		}

		adminID := args.AdminID
		var lockErr error
		withdrawal, lockErr = w.lockFunds(c, tx, repoargs.WithdrawalCreate{
			UserID:             base.UserID,
			Asset:              base.Asset,
			Network:            base.Network,
			Amount:             base.Amount,
			DestinationAddress: base.DestinationAddress,
			Status:             args.Status,
			TxHash:             args.TxHash,
			AdminID:            &adminID,
		})
		if lockErr != nil {
			return lockErr
		}

		if err := writeAudit(c, tx, repoargs.AuditCreate{
			AdminID:  args.AdminID,
			Action:   auditWithdrawalManual,
			Entity:   entityWithdrawal,
			EntityID: strconv.FormatInt(withdrawal.ID, 10),
			After:    withdrawal,
		}); err != nil {
			return err
		}
		return enqueueNotification(c, tx, base.UserID, domain.Notification{
			Title:   "Withdrawal Processed",
			Message: fmt.Sprintf("A withdrawal of %s %s was processed by support.", withdrawal.Amount, withdrawal.Asset),
			Type:    notifyWithdrawal,
			Data:    map[string]any{"withdrawal_id": withdrawal.ID, "status": withdrawal.Status},
		})
	})
	if txErr != nil {
		return nil, fmt.Errorf("creating manual withdrawal: %w", txErr)
	}
	return withdrawal, nil
}

// lockFunds списывает сумму вывода с кошелька и создает вывод.
//
// Алгоритм работы:
//  1. Блокирует кошелек. Доступно: ликвидный баланс по ключу актива плюс, для стейблкоинов, инвестированный
//     капитал.
//  2. Сначала списывается ликвидный баланс, остаток - из инвестированного капитала и из активных инвестиций
//     от старых к новым. Инвестиция с нулевым капиталом завершается.
//  3. Создает вывод и запись WITHDRAWAL (Amount = -ликвидная часть, InvestedDelta = -инвестированная часть).
//
// Если активных инвестиций не хватает на инвестированную часть (капитал кошелька изменен корректировкой),
// непокрытый остаток пишется в лог предупреждением. Списание с кошелька от этого не меняется.
func (w *WithdrawalService) lockFunds(
	ctx context.Context,
	tx uow.TX,
	args repoargs.WithdrawalCreate,
) (*domain.Withdrawal, error) {
	wallet, walletErr := lockWallet(ctx, tx, args.UserID)
	if walletErr != nil {
		return nil, walletErr
	}
	split, splitErr := wallet.SplitWithdrawal(args.Asset, args.Network, args.Amount)
	if splitErr != nil {
		return nil, splitErr //nolint:wrapcheck
	}

	withdrawalRepo, repoErr := uow.GetAs[WithdrawalRepository](tx, uow.RepositoryName(repoargs.WithdrawalRepoName))
	if repoErr != nil {
		return nil, repoErr //nolint:wrapcheck
	}
	withdrawal, createErr := withdrawalRepo.Create(ctx, args)
	if createErr != nil {
		if errors.Is(createErr, domain.ErrDuplicateKey) {
			return nil, domain.ErrTxReferenceUsed
		}
		return nil, createErr //nolint:wrapcheck
	}

	if _, err := postEntry(ctx, tx, wallet, posting{
		Type:          domain.EntryTypeWithdrawal,
		Asset:         args.Asset,
		Network:       args.Network,
		Amount:        split.Liquid.Neg(),
		InvestedDelta: split.Invested.Neg(),
		ReferenceID:   strconv.FormatInt(withdrawal.ID, 10),
	}); err != nil {
		return nil, err
	}
	uncovered, drawErr := drawInvestments(ctx, tx, args.UserID, split.Invested)
	if drawErr != nil {
		return nil, drawErr
	}
	if uncovered.IsPositive() {
		w.l.WithFields(logrus.Fields{
			"userID":       args.UserID,
			"withdrawalID": withdrawal.ID,
			"invested":     split.Invested.String(),
			"uncovered":    uncovered.String(),
		}).Warn("active investments do not cover invested principal")
	}
	if err := saveWallet(ctx, tx, wallet); err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// drawInvestments уменьшает капитал активных инвестиций пользователя от старых к новым на amount.
// Возвращает часть amount, которую инвестиции не покрыли.
func drawInvestments(
	ctx context.Context,
	tx uow.TX,
	userID int64,
	amount decimal.Decimal,
) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	investmentRepo, repoErr := uow.GetAs[InvestmentRepository](tx, uow.RepositoryName(repoargs.InvestmentRepoName))
	if repoErr != nil {
		return decimal.Zero, repoErr //nolint:wrapcheck
	}
	investments, listErr := investmentRepo.ListActiveForUpdate(ctx, userID)
	if listErr != nil {
		return decimal.Zero, listErr //nolint:wrapcheck
	}

	remaining := amount
	for i := range investments {
		if !remaining.IsPositive() {
			break
		}
		inv := &investments[i]
		taken := inv.DrawPrincipal(remaining)
		if taken.IsZero() {
			continue
		}
		remaining = remaining.Sub(taken)
		if err := investmentRepo.Save(ctx, inv); err != nil {
			return decimal.Zero, fmt.Errorf("save investment %d: %w", inv.ID, err)
		}
	}
	return remaining, nil
}

func ensureTxHashUnused(ctx context.Context, tx uow.TX, txHash string) error {
	if txHash == "" {
		return nil
	}
	withdrawalRepo, repoErr := uow.GetAs[WithdrawalRepository](tx, uow.RepositoryName(repoargs.WithdrawalRepoName))
	if repoErr != nil {
		return repoErr //nolint:wrapcheck
	}
	used, err := withdrawalRepo.ExistsByTxHash(ctx, txHash)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if used {
		return domain.ErrTxReferenceUsed
	}
	return nil
}

// Approve переводит вывод из FUNDS_LOCKED в ADMIN_PROCESSING. Балансы не меняются.
func (w *WithdrawalService) Approve(ctx context.Context, adminID, withdrawalID int64) (*domain.Withdrawal, error) {
	withdrawal, err := w.transition(ctx, transitionArgs{
		adminID: adminID,
		id:      withdrawalID,
		next:    domain.WithdrawalStatusAdminProcessing,
		action:  auditWithdrawalApprove,
	})
	if err != nil {
		return nil, fmt.Errorf("approving withdrawal %d: %w", withdrawalID, err)
	}
	return withdrawal, nil
}

// Confirm завершает вывод, отправленный администратором. Ссылка на транзакцию обязательна и не может
// повторяться.
func (w *WithdrawalService) Confirm(
	ctx context.Context,
	adminID, withdrawalID int64,
	txHash, proofRef string,
) (*domain.Withdrawal, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, domain.NewValidationError("tx_hash", "is required")
	}
	withdrawal, err := w.transition(ctx, transitionArgs{
		adminID:  adminID,
		id:       withdrawalID,
		next:     domain.WithdrawalStatusCompleted,
		action:   auditWithdrawalConfirm,
		txHash:   txHash,
		proofRef: strings.TrimSpace(proofRef),
	})
	if err != nil {
		return nil, fmt.Errorf("confirming withdrawal %d: %w", withdrawalID, err)
	}
	return withdrawal, nil
}

// Reject отклоняет вывод и возвращает всю сумму на ликвидный баланс.
func (w *WithdrawalService) Reject(
	ctx context.Context,
	adminID, withdrawalID int64,
	reason string,
) (*domain.Withdrawal, error) {
	withdrawal, err := w.transition(ctx, transitionArgs{
		adminID: adminID,
		id:      withdrawalID,
		next:    domain.WithdrawalStatusRejected,
		action:  auditWithdrawalReject,
		reason:  strings.TrimSpace(reason),
		refund:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("rejecting withdrawal %d: %w", withdrawalID, err)
	}
	return withdrawal, nil
}

// Fail помечает вывод неудавшимся и возвращает сумму на ликвидный баланс так же, как Reject.
func (w *WithdrawalService) Fail(
	ctx context.Context,
	adminID, withdrawalID int64,
	reason string,
) (*domain.Withdrawal, error) {
	withdrawal, err := w.transition(ctx, transitionArgs{
		adminID: adminID,
		id:      withdrawalID,
		next:    domain.WithdrawalStatusFailed,
		action:  auditWithdrawalFail,
		reason:  strings.TrimSpace(reason),
		refund:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failing withdrawal %d: %w", withdrawalID, err)
	}
	return withdrawal, nil
}

type transitionArgs struct {
	adminID  int64
	id       int64
	next     domain.WithdrawalStatus
	action   string
	txHash   string
	proofRef string
	reason   string
	refund   bool
}

// transition переводит вывод в статус args.next. Вывод в статусе, из которого переход невозможен, считается
// не найденным.
func (w *WithdrawalService) transition(ctx context.Context, args transitionArgs) (*domain.Withdrawal, error) {
	var result *domain.Withdrawal
	txErr := w.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		withdrawalRepo, repoErr := uow.GetAs[WithdrawalRepository](
			tx, uow.RepositoryName(repoargs.WithdrawalRepoName),
		)
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		withdrawal, getErr := withdrawalRepo.GetForUpdate(c, args.id)
		if getErr != nil {
			return getErr //nolint:wrapcheck
		}
		if !withdrawal.Status.CanTransitionTo(args.next) {
			return fmt.Errorf("withdrawal is %s, cannot move to %s: %w",
				withdrawal.Status, args.next, domain.ErrRecordNotFound)
		}
		if err := ensureTxHashUnused(c, tx, args.txHash); err != nil {
			return err
		}

		if args.refund {
			if err := refundWithdrawal(c, tx, withdrawal); err != nil {
				return err
			}
		}

		updated, updErr := withdrawalRepo.UpdateStatus(c, repoargs.WithdrawalStatusUpdate{
			ID:              withdrawal.ID,
			Status:          args.next,
			AdminID:         args.adminID,
			TxHash:          args.txHash,
			ProofRef:        args.proofRef,
			RejectionReason: args.reason,
		})
		if updErr != nil {
			if errors.Is(updErr, domain.ErrDuplicateKey) {
				return domain.ErrTxReferenceUsed
			}
			return updErr //nolint:wrapcheck
		}

		if err := writeAudit(c, tx, repoargs.AuditCreate{
			AdminID:  args.adminID,
			Action:   args.action,
			Entity:   entityWithdrawal,
			EntityID: strconv.FormatInt(withdrawal.ID, 10),
			Before:   withdrawal,
			After:    updated,
		}); err != nil {
			return err
		}
		if err := enqueueWithdrawalStatus(c, tx, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if txErr != nil {
		return nil, txErr //nolint:wrapcheck
	}
	return result, nil
}

// refundWithdrawal возвращает всю сумму вывода на ликвидный баланс актива записью WITHDRAWAL_REFUND.
// Инвестированная часть не восстанавливается.
func refundWithdrawal(ctx context.Context, tx uow.TX, withdrawal *domain.Withdrawal) error {
	wallet, walletErr := lockWallet(ctx, tx, withdrawal.UserID)
	if walletErr != nil {
		return walletErr
	}
	if _, err := postEntry(ctx, tx, wallet, posting{
		Type:        domain.EntryTypeWithdrawalRefund,
		Asset:       withdrawal.Asset,
		Network:     withdrawal.Network,
		Amount:      withdrawal.Amount,
		ReferenceID: strconv.FormatInt(withdrawal.ID, 10),
	}); err != nil {
		return err
	}
	return saveWallet(ctx, tx, wallet)
}

func enqueueWithdrawalStatus(ctx context.Context, tx uow.TX, withdrawal *domain.Withdrawal) error {
	var (
		title    string
		message  string
		template string
	)
	switch withdrawal.Status {
	case domain.WithdrawalStatusAdminProcessing:
		title = "Withdrawal Approved"
		message = fmt.Sprintf("Your withdrawal of %s %s was approved and is being sent.",
			withdrawal.Amount, withdrawal.Asset)
	case domain.WithdrawalStatusCompleted:
		title = "Withdrawal Completed"
		message = fmt.Sprintf("Your withdrawal of %s %s has been sent.", withdrawal.Amount, withdrawal.Asset)
		template = emailWithdrawalCompleted
	case domain.WithdrawalStatusRejected, domain.WithdrawalStatusFailed:
		title = "Withdrawal Rejected"
		if withdrawal.Status == domain.WithdrawalStatusFailed {
			title = "Withdrawal Failed"
		}
		message = fmt.Sprintf("Your withdrawal of %s %s was returned to your wallet.",
			withdrawal.Amount, withdrawal.Asset)
		template = emailWithdrawalRejected
	default:
		return nil
	}

	if err := enqueueNotification(ctx, tx, withdrawal.UserID, domain.Notification{
		Title:   title,
		Message: message,
		Type:    notifyWithdrawal,
		Data:    map[string]any{"withdrawal_id": withdrawal.ID, "status": withdrawal.Status},
	}); err != nil {
		return err
	}
	if template == "" {
		return nil
	}
	return enqueueEmail(ctx, tx, withdrawal.UserID, template, withdrawalEmailData(withdrawal))
}

func withdrawalEmailData(withdrawal *domain.Withdrawal) map[string]any {
	data := map[string]any{
		"withdrawal_id": withdrawal.ID,
		"amount":        withdrawal.Amount.String(),
		"asset":         withdrawal.Asset,
		"network":       withdrawal.Network,
		"address":       withdrawal.DestinationAddress,
	}
	if withdrawal.TxHash != "" {
		data["tx_hash"] = withdrawal.TxHash
	}
	if withdrawal.RejectionReason != "" {
		data["reason"] = withdrawal.RejectionReason
	}
	return data
}

// GetByUserID возвращает выводы пользователя от новых к старым.
func (w *WithdrawalService) GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	withdrawals, err := w.withdrawalRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return withdrawals, nil
}

// GetByStatus очередь выводов администратора.
func (w *WithdrawalService) GetByStatus(
	ctx context.Context,
	status domain.WithdrawalStatus,
	page repoargs.Page,
) ([]domain.Withdrawal, error) {
	switch status {
	case domain.WithdrawalStatusFundsLocked, domain.WithdrawalStatusAdminProcessing, domain.WithdrawalStatusCompleted,
		domain.WithdrawalStatusRejected, domain.WithdrawalStatusFailed:
	default:
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown withdrawal status %q", status))
	}
	withdrawals, err := w.withdrawalRepo.GetByStatus(ctx, status, normalizePage(page))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return withdrawals, nil
}
