package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletService struct {
	uow        uow.UOW
	walletRepo WalletRepository
}

func NewWalletService(u uow.UOW) (*WalletService, error) {
	walletRepo, err := uow.GetRepositoryAs[WalletRepository](u, uow.RepositoryName(repoargs.WalletRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &WalletService{
		uow:        u,
		walletRepo: walletRepo,
	}, nil
}

// GetWallet возвращает кошелек пользователя, создавая пустой при первом обращении.
func (w *WalletService) GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	wallet, err := w.walletRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting wallet of user %d: %w", userID, err)
	}
	return wallet, nil
}

// Freeze приостанавливает кошелек и деактивирует пользователя.
func (w *WalletService) Freeze(ctx context.Context, adminID, userID int64, reason string) (*domain.Wallet, error) {
	wallet, err := w.setFrozen(ctx, adminID, userID, reason, true)
	if err != nil {
		return nil, fmt.Errorf("freezing wallet of user %d: %w", userID, err)
	}
	return wallet, nil
}

// Unfreeze возвращает кошелек и пользователя в активное состояние.
func (w *WalletService) Unfreeze(ctx context.Context, adminID, userID int64) (*domain.Wallet, error) {
	wallet, err := w.setFrozen(ctx, adminID, userID, "", false)
	if err != nil {
		return nil, fmt.Errorf("unfreezing wallet of user %d: %w", userID, err)
	}
	return wallet, nil
}

func (w *WalletService) setFrozen(
	ctx context.Context,
	adminID, userID int64,
	reason string,
	frozen bool,
) (*domain.Wallet, error) {
	var result *domain.Wallet
	txErr := w.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		wallet, walletErr := lockWallet(c, tx, userID)
		if walletErr != nil {
			return walletErr
		}
		before := wallet.Clone()

		action, title := auditWalletUnfreeze, "Wallet Activated"
		if frozen {
			wallet.Freeze()
			action, title = auditWalletFreeze, "Wallet Suspended"
		} else {
			wallet.Unfreeze()
		}
		if err := saveWallet(c, tx, wallet); err != nil {
			return err
		}

		userRepo, repoErr := uow.GetAs[UserRepository](tx, uow.RepositoryName(repoargs.UserRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		if err := userRepo.SetActive(c, userID, !frozen); err != nil {
			return fmt.Errorf("set user %d active=%t: %w", userID, !frozen, err)
		}

		if err := writeAudit(c, tx, repoargs.AuditCreate{
			AdminID:  adminID,
			Action:   action,
			Entity:   entityWallet,
			EntityID: strconv.FormatInt(wallet.ID, 10),
			Before:   walletAuditView(before, ""),
			After:    walletAuditView(wallet, reason),
		}); err != nil {
			return err
		}

		message := "Your wallet has been reactivated."
		if frozen {
			message = "Your wallet has been suspended. Contact support for details."
		}
		if err := enqueueNotification(c, tx, userID, domain.Notification{
			Title:   title,
			Message: message,
			Type:    notifyWallet,
		}); err != nil {
			return err
		}
		result = wallet
		return nil
	})
	if txErr != nil {
		return nil, txErr //nolint:wrapcheck
	}
	return result, nil
}

type AdjustBalanceArgs struct {
	AdminID       int64
	UserID        int64
	Asset         string
	Network       string
	Amount        decimal.Decimal
	InvestedDelta decimal.Decimal
	Reason        string
}

func (a AdjustBalanceArgs) validate() error {
	if strings.TrimSpace(a.Asset) == "" {
		return domain.NewValidationError("asset", "is required")
	}
	if domain.RoundAmount(a.Amount).IsZero() && domain.RoundAmount(a.InvestedDelta).IsZero() {
		return domain.NewValidationError("amount", "amount or invested_delta must be non-zero")
	}
	if strings.TrimSpace(a.Reason) == "" {
		return domain.NewValidationError("reason", "is required")
	}
	return nil
}

// AdjustBalance проводит ручную корректировку баланса администратором одной записью ADMIN_ADJUSTMENT.
// Заблокированный кошелек возвращает domain.ErrWalletLocked, отрицательный итог - domain.ErrInsufficientFunds.
func (w *WalletService) AdjustBalance(ctx context.Context, args AdjustBalanceArgs) (*domain.LedgerEntry, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	asset := strings.ToUpper(strings.TrimSpace(args.Asset))
	network := strings.ToUpper(strings.TrimSpace(args.Network))

	var entry *domain.LedgerEntry
	txErr := w.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		wallet, walletErr := lockWallet(c, tx, args.UserID)
		if walletErr != nil {
			return walletErr
		}
		before := wallet.Clone()

		var postErr error
		entry, postErr = postEntry(c, tx, wallet, posting{
			Type:          domain.EntryTypeAdminAdjustment,
			Asset:         asset,
			Network:       network,
			Amount:        args.Amount,
			InvestedDelta: args.InvestedDelta,
			ReferenceID:   uuid.NewString(),
		})
		if postErr != nil {
			return postErr
		}
		if err := saveWallet(c, tx, wallet); err != nil {
			return err
		}

		if err := writeAudit(c, tx, repoargs.AuditCreate{
			AdminID:  args.AdminID,
			Action:   auditWalletAdjust,
			Entity:   entityWallet,
			EntityID: strconv.FormatInt(wallet.ID, 10),
			Before:   walletAuditView(before, ""),
			After:    walletAuditView(wallet, args.Reason),
		}); err != nil {
			return err
		}
		return enqueueNotification(c, tx, args.UserID, domain.Notification{
			Title:   "Balance Updated",
			Message: fmt.Sprintf("Your %s balance was adjusted by support.", entry.BalanceKey),
			Type:    notifyWallet,
			Data: map[string]any{
				"amount":         entry.Amount.String(),
				"invested_delta": entry.InvestedDelta.String(),
			},
		})
	})
	if txErr != nil {
		return nil, fmt.Errorf("adjusting balance of user %d: %w", args.UserID, txErr)
	}
	return entry, nil
}

func walletAuditView(w *domain.Wallet, reason string) map[string]any {
	view := map[string]any{
		"balances":           w.Balances,
		"invested_principal": w.InvestedPrincipal,
		"total_profit":       w.TotalProfit,
		"status":             w.Status,
		"locked":             w.Locked,
	}
	if reason != "" {
		view["reason"] = reason
	}
	return view
}
