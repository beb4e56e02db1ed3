package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/shopspring/decimal"
)

const defaultAccrualBatchSize uint = 100

// AccrualFailure ошибка обработки одной инвестиции. Инвестиция будет обработана повторно при следующем запуске.
type AccrualFailure struct {
	InvestmentID int64  `json:"investment_id"`
	Error        string `json:"error"`
}

// AccrualReport итог одного запуска движка начислений.
type AccrualReport struct {
	StartedAt     time.Time        `json:"started_at"`
	Due           int              `json:"due"`
	Credited      int              `json:"credited"`
	Matured       int              `json:"matured"`
	Skipped       int              `json:"skipped"`
	Failed        int              `json:"failed"`
	TotalCredited decimal.Decimal  `json:"total_credited"`
	Failures      []AccrualFailure `json:"failures,omitempty"`
}

type accrualOutcome struct {
	credited decimal.Decimal
	matured  bool
	skipped  bool
}

type AccrualService struct {
	uow            uow.UOW
	investmentRepo InvestmentRepository
	batchSize      uint
	now            func() time.Time
}

func NewAccrualService(u uow.UOW) (*AccrualService, error) {
	investmentRepo, err := uow.GetRepositoryAs[InvestmentRepository](
		u, uow.RepositoryName(repoargs.InvestmentRepoName),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &AccrualService{
		uow:            u,
		investmentRepo: investmentRepo,
		batchSize:      defaultAccrualBatchSize,
		now:            time.Now,
	}, nil
}

// SetBatchSize задает размер страницы выборки инвестиций.
func (a *AccrualService) SetBatchSize(n uint) *AccrualService {
	if n > 0 {
		a.batchSize = n
	}
	return a
}

func (a *AccrualService) SetClock(now func() time.Time) *AccrualService {
	a.now = now
	return a
}

// RunAccrualEngine начисляет прибыль по всем инвестициям, срок начисления которых наступил. Момент now
// фиксируется один раз на запуск. Повторный запуск с тем же now ничего не начисляет.
//
// Алгоритм работы:
//  1. Постранично выбирает активные инвестиции с наступившим сроком по возрастанию id.
//  2. Каждую инвестицию обрабатывает в отдельной транзакции (см. accrueInvestment).
//  3. Ошибка одной инвестиции не прерывает запуск: она попадает в отчет и повторится при следующем запуске.
//
// Ошибка возвращается только если не удалось получить очередную страницу или отменен контекст, при этом
// отчет содержит результат уже обработанных инвестиций.
func (a *AccrualService) RunAccrualEngine(ctx context.Context) (*AccrualReport, error) {
	now := a.now().UTC()
	report := &AccrualReport{StartedAt: now, TotalCredited: decimal.Zero}

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("accrual run interrupted: %w", err)
		}
		due, listErr := a.investmentRepo.ListDue(ctx, repoargs.DueInvestments{
			Now:     now,
			AfterID: afterID,
			Limit:   a.batchSize,
		})
		if listErr != nil {
			return report, fmt.Errorf("listing due investments after %d: %w", afterID, listErr)
		}

		for _, inv := range due {
			afterID = inv.ID
			report.Due++

			outcome, err := a.accrueInvestment(ctx, inv, now)
			switch {
			case errors.Is(err, domain.ErrDuplicateEntry):
				report.Skipped++
			case err != nil:
				report.Failed++
				report.Failures = append(report.Failures, AccrualFailure{InvestmentID: inv.ID, Error: err.Error()})
			case outcome.skipped:
				report.Skipped++
			default:
				if outcome.credited.IsPositive() {
					report.Credited++
					report.TotalCredited = report.TotalCredited.Add(outcome.credited)
				}
				if outcome.matured {
					report.Matured++
				}
			}
		}

		if uint(len(due)) < a.batchSize {
			return report, nil
		}
	}
}

// accrueInvestment обрабатывает одну инвестицию в транзакции.
//
// Алгоритм работы:
//  1. Блокирует кошелек, затем инвестицию, и перечитывает ее. Если инвестиция уже не активна или срок не
//     наступил, она пропускается.
//  2. Считает все пропущенные интервалы и одной записью PROFIT_CREDIT зачисляет их сумму на ликвидный USDT.
//  3. Если план закончился, возвращает капитал на ликвидный USDT записью PRINCIPAL_RETURN и завершает
//     инвестицию.
func (a *AccrualService) accrueInvestment(
	ctx context.Context,
	due domain.Investment,
	now time.Time,
) (accrualOutcome, error) {
	var outcome accrualOutcome
	txErr := a.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		outcome = accrualOutcome{credited: decimal.Zero}

		wallet, walletErr := lockWallet(c, tx, due.UserID)
		if walletErr != nil {
			return walletErr
		}
		investmentRepo, repoErr := uow.GetAs[InvestmentRepository](
			tx, uow.RepositoryName(repoargs.InvestmentRepoName),
		)
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		inv, invErr := investmentRepo.GetForUpdate(c, due.ID)
		if invErr != nil {
			return invErr //nolint:wrapcheck
		}
		if !inv.IsDue(now) {
			outcome.skipped = true
			return nil
		}

		batch := inv.ComputeAccrual(now)
		if batch.Intervals > 0 {
			credited, err := creditProfit(c, tx, wallet, inv, batch)
			if err != nil {
				return err
			}
			outcome.credited = credited
		}
		if batch.Matures {
			if err := returnPrincipal(c, tx, wallet, inv); err != nil {
				return err
			}
			outcome.matured = true
		}

		if err := saveWallet(c, tx, wallet); err != nil {
			return err
		}
		if err := investmentRepo.Save(c, inv); err != nil {
			return fmt.Errorf("save investment %d: %w", inv.ID, err)
		}
		return nil
	})
	if txErr != nil {
		return accrualOutcome{}, fmt.Errorf("investment %d: %w", due.ID, txErr)
	}
	return outcome, nil
}

func creditProfit(
	ctx context.Context,
	tx uow.TX,
	wallet *domain.Wallet,
	inv *domain.Investment,
	batch domain.AccrualBatch,
) (decimal.Decimal, error) {
	profit := domain.RoundAmount(batch.Profit)
	inv.NextDueAt = batch.NextDueAt
	if !profit.IsPositive() {
		return decimal.Zero, nil
	}

	if _, err := postEntry(ctx, tx, wallet, posting{
		Type:        domain.EntryTypeProfitCredit,
		Asset:       domain.AssetUSDT,
		Network:     domain.NetworkSystem,
		Amount:      profit,
		ReferenceID: profitReference(inv.ID, batch.FirstDueAt),
	}); err != nil {
		return decimal.Zero, err
	}
	wallet.AddProfit(profit)
	inv.TotalCredited = inv.TotalCredited.Add(profit)

	if err := enqueueNotification(ctx, tx, inv.UserID, domain.Notification{
		Title:   "ROI Accrued",
		Message: fmt.Sprintf("You earned %s USDT profit on your investment.", profit),
		Type:    notifyProfit,
		Data: map[string]any{
			"investment_id": inv.ID,
			"amount":        profit.String(),
			"intervals":     batch.Intervals,
		},
	}); err != nil {
		return decimal.Zero, err
	}
	return profit, nil
}

// returnPrincipal завершает инвестицию и возвращает капитал на ликвидный баланс. Инвестированный капитал
// кошелька уменьшается не больше чем до нуля.
func returnPrincipal(ctx context.Context, tx uow.TX, wallet *domain.Wallet, inv *domain.Investment) error {
	principal := domain.RoundAmount(inv.Principal)
	investedDelta := decimal.Min(principal, wallet.InvestedPrincipal).Neg()

	if _, err := postEntry(ctx, tx, wallet, posting{
		Type:          domain.EntryTypePrincipalReturn,
		Asset:         domain.AssetUSDT,
		Network:       domain.NetworkSystem,
		Amount:        principal,
		InvestedDelta: investedDelta,
		ReferenceID:   strconv.FormatInt(inv.ID, 10),
	}); err != nil {
		return err
	}
	inv.Status = domain.InvestmentStatusCompleted

	return enqueueNotification(ctx, tx, inv.UserID, domain.Notification{
		Title:   "Plan Matured",
		Message: fmt.Sprintf("Your plan has completed. %s USDT principal returned to your wallet.", principal),
		Type:    notifyPlan,
		Data: map[string]any{
			"investment_id":  inv.ID,
			"principal":      principal.String(),
			"total_credited": inv.TotalCredited.String(),
		},
	})
}

// profitReference ссылка записи PROFIT_CREDIT: id инвестиции и первый срок в пакете начислений.
func profitReference(investmentID int64, firstDueAt time.Time) string {
	return fmt.Sprintf("%d:%d", investmentID, firstDueAt.Unix())
}
