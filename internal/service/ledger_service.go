package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit uint = 50
	maxPageLimit     uint = 500
)

// posting движение средств, которое одновременно применяется к кошельку и записывается в журнал.
type posting struct {
	Type          domain.EntryType
	Asset         string
	Network       string
	Amount        decimal.Decimal
	InvestedDelta decimal.Decimal
	ReferenceID   string
}

// postEntry применяет движение p к кошельку w и добавляет парную запись журнала. Кошелек сохраняет
// вызывающая сторона в той же транзакции.
//
// Повтор записи с той же парой (ReferenceID, Type) возвращает domain.ErrDuplicateEntry: движение уже было
// проведено и транзакцию следует откатить.
func postEntry(ctx context.Context, tx uow.TX, w *domain.Wallet, p posting) (*domain.LedgerEntry, error) {
	key := domain.BalanceKey(p.Asset, p.Network)
	change, applyErr := w.Apply(key, p.Amount, p.InvestedDelta)
	if applyErr != nil {
		return nil, applyErr
	}

	ledgerRepo, repoErr := uow.GetAs[LedgerRepository](tx, uow.RepositoryName(repoargs.LedgerRepoName))
	if repoErr != nil {
		return nil, repoErr //nolint:wrapcheck
	}
	entry, appendErr := ledgerRepo.Append(ctx, repoargs.LedgerEntryCreate{
		UserID:        w.UserID,
		Type:          p.Type,
		Asset:         p.Asset,
		Network:       p.Network,
		BalanceKey:    key,
		Amount:        change.After.Sub(change.Before),
		InvestedDelta: change.InvestedDelta,
		BalanceBefore: change.Before,
		BalanceAfter:  change.After,
		ReferenceID:   p.ReferenceID,
	})
	if appendErr != nil {
		if errors.Is(appendErr, domain.ErrDuplicateKey) {
			return nil, fmt.Errorf("%s %s: %w", p.Type, p.ReferenceID, domain.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("append %s entry: %w", p.Type, appendErr)
	}
	return entry, nil
}

func lockWallet(ctx context.Context, tx uow.TX, userID int64) (*domain.Wallet, error) {
	walletRepo, repoErr := uow.GetAs[WalletRepository](tx, uow.RepositoryName(repoargs.WalletRepoName))
	if repoErr != nil {
		return nil, repoErr //nolint:wrapcheck
	}
	w, err := walletRepo.GetOrCreateForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet of user %d: %w", userID, err)
	}
	return w, nil
}

func saveWallet(ctx context.Context, tx uow.TX, w *domain.Wallet) error {
	walletRepo, repoErr := uow.GetAs[WalletRepository](tx, uow.RepositoryName(repoargs.WalletRepoName))
	if repoErr != nil {
		return repoErr //nolint:wrapcheck
	}
	if err := walletRepo.Save(ctx, w); err != nil {
		return fmt.Errorf("save wallet of user %d: %w", w.UserID, err)
	}
	return nil
}

func normalizePage(p repoargs.Page) repoargs.Page {
	if p.Limit == 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

type LedgerService struct {
	uow        uow.UOW
	ledgerRepo LedgerRepository
	walletRepo WalletRepository
}

func NewLedgerService(u uow.UOW) (*LedgerService, error) {
	ledgerRepo, err := uow.GetRepositoryAs[LedgerRepository](u, uow.RepositoryName(repoargs.LedgerRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	walletRepo, err := uow.GetRepositoryAs[WalletRepository](u, uow.RepositoryName(repoargs.WalletRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &LedgerService{
		uow:        u,
		ledgerRepo: ledgerRepo,
		walletRepo: walletRepo,
	}, nil
}

// GetLedger возвращает записи журнала пользователя от новых к старым.
func (l *LedgerService) GetLedger(
	ctx context.Context,
	userID int64,
	filter repoargs.LedgerFilter,
) ([]domain.LedgerEntry, error) {
	for _, t := range filter.Types {
		if !t.IsValid() {
			return nil, domain.NewValidationError("type", fmt.Sprintf("unknown entry type %q", t))
		}
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, domain.NewValidationError("to", "must not be before from")
	}
	filter.Page = normalizePage(filter.Page)

	entries, err := l.ledgerRepo.GetByUserID(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("getting ledger of user %d: %w", userID, err)
	}
	return entries, nil
}

// KeyMismatch расхождение между журналом и кошельком по одному ключу баланса.
type KeyMismatch struct {
	BalanceKey string          `json:"balance_key"`
	Ledger     decimal.Decimal `json:"ledger"`
	Wallet     decimal.Decimal `json:"wallet"`
}

type ReconcileReport struct {
	UserID         int64           `json:"user_id"`
	Consistent     bool            `json:"consistent"`
	Mismatches     []KeyMismatch   `json:"mismatches,omitempty"`
	LedgerInvested decimal.Decimal `json:"ledger_invested"`
	WalletInvested decimal.Decimal `json:"wallet_invested"`
}

// Reconcile сверяет суммы журнала пользователя с его кошельком.
//
// Алгоритм работы:
//  1. В одной транзакции читает кошелек и суммы журнала по ключам баланса.
//  2. Для каждого ключа, встречающегося в журнале или в кошельке, сравнивает сумму Amount с балансом.
//  3. Отдельно сравнивает сумму InvestedDelta с инвестированным капиталом.
func (l *LedgerService) Reconcile(ctx context.Context, userID int64) (*ReconcileReport, error) {
	var report *ReconcileReport
	txErr := l.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		w, walletErr := lockWallet(c, tx, userID)
		if walletErr != nil {
			return walletErr
		}
		ledgerRepo, repoErr := uow.GetAs[LedgerRepository](tx, uow.RepositoryName(repoargs.LedgerRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		sums, sumErr := ledgerRepo.SumByKey(c, userID)
		if sumErr != nil {
			return sumErr //nolint:wrapcheck
		}
		report = buildReconcileReport(w, sums)
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("reconciling wallet of user %d: %w", userID, txErr)
	}
	return report, nil
}

func buildReconcileReport(w *domain.Wallet, sums *repoargs.LedgerSums) *ReconcileReport {
	report := &ReconcileReport{
		UserID:         w.UserID,
		LedgerInvested: sums.Invested,
		WalletInvested: w.InvestedPrincipal,
	}

	var ledgerBalances domain.Balances
	for _, s := range sums.ByKey {
		ledgerBalances.Set(s.BalanceKey, s.Amount)
	}

	keys := ledgerBalances.Clone()
	w.Balances.Range(func(key string, _ decimal.Decimal) bool {
		if !keys.Has(key) {
			keys.Set(key, decimal.Zero)
		}
		return true
	})
	keys.Range(func(key string, _ decimal.Decimal) bool {
		ledgerSum := ledgerBalances.Get(key)
		walletSum := w.Balances.Get(key)
		if !ledgerSum.Equal(walletSum) {
			report.Mismatches = append(report.Mismatches, KeyMismatch{
				BalanceKey: key,
				Ledger:     ledgerSum,
				Wallet:     walletSum,
			})
		}
		return true
	})

	report.Consistent = len(report.Mismatches) == 0 && sums.Invested.Equal(w.InvestedPrincipal)
	return report
}
