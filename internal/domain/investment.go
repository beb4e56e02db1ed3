package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultIntervalHours = 24
	hoursPerDay          = 24
)

var hundred = decimal.NewFromInt(100) //nolint:mnd

// Investment график начисления прибыли на инвестированный капитал.
type Investment struct {
	ID            int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	UserID        int64
	WalletID      int64
	DepositID     *int64
	PlanID        int64
	Principal     decimal.Decimal
	ProfitPercent decimal.Decimal
	IntervalHours int
	DurationDays  int
	StartAt       time.Time
	NextDueAt     time.Time
	TotalCredited decimal.Decimal
	Status        InvestmentStatus
}

// AccrualBatch результат расчета начислений, накопившихся к моменту времени.
type AccrualBatch struct {
	Intervals  int
	Profit     decimal.Decimal
	FirstDueAt time.Time
	NextDueAt  time.Time
	Matures    bool
}

func (i *Investment) Interval() time.Duration {
	hours := i.IntervalHours
	if hours <= 0 {
		hours = DefaultIntervalHours
	}
	return time.Duration(hours) * time.Hour
}

// PlanEndAt момент окончания срока инвестиции.
func (i *Investment) PlanEndAt() time.Time {
	return i.StartAt.Add(time.Duration(i.DurationDays*hoursPerDay) * time.Hour)
}

// IntervalProfit прибыль за один интервал без округления.
func (i *Investment) IntervalProfit() decimal.Decimal {
	return i.Principal.Mul(i.ProfitPercent).Div(hundred)
}

// IsDue возвращает true, если к моменту now наступил срок начисления или окончания плана.
func (i *Investment) IsDue(now time.Time) bool {
	if i.Status != InvestmentStatusActive {
		return false
	}
	return !i.NextDueAt.After(now) || !now.Before(i.PlanEndAt())
}

// ComputeAccrual считает все пропущенные интервалы к моменту now.
//
// Алгоритм работы:
//  1. Пока следующий срок не позже now и не позже окончания плана, добавляет прибыль за интервал и
//     сдвигает срок на один интервал.
//  2. Инвестиция созревает, если now не раньше окончания плана или сдвинутый срок вышел за его окончание.
//
// Прибыль не округляется, округление выполняется при записи в журнал.
func (i *Investment) ComputeAccrual(now time.Time) AccrualBatch {
	endAt := i.PlanEndAt()
	interval := i.Interval()
	perInterval := i.IntervalProfit()

	batch := AccrualBatch{
		Profit:     decimal.Zero,
		FirstDueAt: i.NextDueAt,
		NextDueAt:  i.NextDueAt,
	}
	for !batch.NextDueAt.After(now) && !batch.NextDueAt.After(endAt) {
		batch.Profit = batch.Profit.Add(perInterval)
		batch.NextDueAt = batch.NextDueAt.Add(interval)
		batch.Intervals++
	}
	batch.Matures = !now.Before(endAt) || batch.NextDueAt.After(endAt)
	return batch
}

// DrawPrincipal списывает с капитала не более amount и возвращает фактически списанную сумму. Инвестиция
// завершается, когда капитал становится нулевым.
func (i *Investment) DrawPrincipal(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || i.Status != InvestmentStatusActive {
		return decimal.Zero
	}
	taken := decimal.Min(amount, i.Principal)
	i.Principal = i.Principal.Sub(taken)
	if !i.Principal.IsPositive() {
		i.Principal = decimal.Zero
		i.Status = InvestmentStatusCompleted
	}
	return taken
}
