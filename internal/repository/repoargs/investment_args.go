package repoargs

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvestmentCreate struct {
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
}

// DueInvestments параметры выборки инвестиций, по которым наступил срок начисления. Выборка идет по
// возрастанию id начиная после AfterID.
type DueInvestments struct {
	Now     time.Time
	AfterID int64
	Limit   uint
}
