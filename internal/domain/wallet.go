package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet производное от журнала хранилище балансов пользователя. Ликвидные балансы хранятся по ключам
// (см. BalanceKey), инвестированный капитал учитывается в долларах отдельно.
type Wallet struct {
	ID                int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	UserID            int64
	Balances          Balances
	InvestedPrincipal decimal.Decimal
	TotalProfit       decimal.Decimal
	Status            WalletStatus
	Locked            bool
}

// BalanceChange результат применения движения к кошельку.
type BalanceChange struct {
	Key           string
	Before        decimal.Decimal
	After         decimal.Decimal
	InvestedDelta decimal.Decimal
}

// WithdrawalSplit разбивка суммы вывода между ликвидным балансом и инвестированным капиталом.
type WithdrawalSplit struct {
	Liquid   decimal.Decimal
	Invested decimal.Decimal
}

func (w *Wallet) IsMutable() bool {
	return !w.Locked && w.Status != WalletStatusSuspended
}

// Apply применяет знаковые изменения к ликвидному балансу по ключу key и к инвестированному капиталу.
// Суммы округляются до BalanceScale. Возвращает ErrWalletLocked для заблокированного кошелька и
// ErrInsufficientFunds, если любой из балансов стал бы отрицательным. При ошибке кошелек не изменяется.
func (w *Wallet) Apply(key string, liquidDelta, investedDelta decimal.Decimal) (*BalanceChange, error) {
	if !w.IsMutable() {
		return nil, ErrWalletLocked
	}
	liquidDelta = RoundAmount(liquidDelta)
	investedDelta = RoundAmount(investedDelta)

	before := w.Balances.Get(key)
	after := before.Add(liquidDelta)
	if after.IsNegative() {
		return nil, fmt.Errorf("balance %s is %s, need %s: %w", key, before, liquidDelta.Neg(), ErrInsufficientFunds)
	}
	invested := w.InvestedPrincipal.Add(investedDelta)
	if invested.IsNegative() {
		return nil, fmt.Errorf(
			"invested principal is %s, need %s: %w", w.InvestedPrincipal, investedDelta.Neg(), ErrInsufficientFunds,
		)
	}

	if !liquidDelta.IsZero() || w.Balances.Has(key) {
		w.Balances.Set(key, after)
	}
	w.InvestedPrincipal = invested

	return &BalanceChange{
		Key:           key,
		Before:        before,
		After:         after,
		InvestedDelta: investedDelta,
	}, nil
}

// AddProfit увеличивает накопленную прибыль.
func (w *Wallet) AddProfit(amount decimal.Decimal) {
	w.TotalProfit = w.TotalProfit.Add(RoundAmount(amount))
}

// Available возвращает сумму, доступную к выводу для актива: ликвидный баланс плюс, для стейблкоинов,
// инвестированный капитал.
func (w *Wallet) Available(asset, network string) decimal.Decimal {
	available := w.Balances.Get(BalanceKey(asset, network))
	if IsStablecoin(asset) {
		available = available.Add(w.InvestedPrincipal)
	}
	return available
}

// SplitWithdrawal распределяет сумму вывода: сначала ликвидный баланс, остаток - инвестированный капитал.
// Кошелек не изменяется.
func (w *Wallet) SplitWithdrawal(asset, network string, amount decimal.Decimal) (WithdrawalSplit, error) {
	if !w.IsMutable() {
		return WithdrawalSplit{}, ErrWalletLocked
	}
	amount = RoundAmount(amount)
	available := w.Available(asset, network)
	if amount.GreaterThan(available) {
		return WithdrawalSplit{}, fmt.Errorf("available %s, requested %s: %w", available, amount, ErrInsufficientFunds)
	}

	liquid := w.Balances.Get(BalanceKey(asset, network))
	if liquid.GreaterThanOrEqual(amount) {
		return WithdrawalSplit{Liquid: amount, Invested: decimal.Zero}, nil
	}
	return WithdrawalSplit{Liquid: liquid, Invested: amount.Sub(liquid)}, nil
}

func (w *Wallet) Lock() {
	w.Locked = true
}

func (w *Wallet) Unlock() {
	w.Locked = false
}

// Freeze приостанавливает кошелек и блокирует любые движения средств.
func (w *Wallet) Freeze() {
	w.Status = WalletStatusSuspended
	w.Lock()
}

func (w *Wallet) Unfreeze() {
	w.Status = WalletStatusActive
	w.Unlock()
}

// Clone возвращает копию кошелька с независимыми балансами.
func (w *Wallet) Clone() *Wallet {
	c := *w
	c.Balances = w.Balances.Clone()
	return &c
}
