package repoargs

import (
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/shopspring/decimal"
)

type LedgerEntryCreate struct {
	UserID        int64
	Type          domain.EntryType
	Asset         string
	Network       string
	BalanceKey    string
	Amount        decimal.Decimal
	InvestedDelta decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	ReferenceID   string
}

// LedgerFilter фильтр выборки журнала. Пустые поля не ограничивают выборку.
type LedgerFilter struct {
	Types []domain.EntryType
	Asset string
	From  *time.Time
	To    *time.Time
	Page
}

type LedgerKeySum struct {
	BalanceKey string
	Amount     decimal.Decimal
}

// LedgerSums суммы журнала пользователя по ключам баланса и по инвестированному капиталу.
type LedgerSums struct {
	ByKey    []LedgerKeySum
	Invested decimal.Decimal
}
