package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type DomainTestSuite struct {
	suite.Suite
}

func TestDomainSuite(t *testing.T) {
	suite.Run(t, new(DomainTestSuite))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (s *DomainTestSuite) TestBalanceKey() {
	cases := []struct {
		asset, network, want string
	}{
		{"USDT", "TRC20", "USDT"},
		{"usdc", "ERC20", "USDC"},
		{"BTC", "BITCOIN", "BTC_BITCOIN"},
		{"eth", "erc20", "ETH_ERC20"},
	}
	for _, t := range cases {
		s.Equal(t.want, BalanceKey(t.asset, t.network))
	}
}

func (s *DomainTestSuite) TestBalancesOrdered() {
	var b Balances
	b.Set("USDT", dec("1"))
	b.Set("BTC_BITCOIN", dec("2"))
	b.Set("ETH_ERC20", dec("3"))

	s.Equal([]string{"BTC_BITCOIN", "ETH_ERC20", "USDT"}, b.Keys())

	raw, err := json.Marshal(b)
	s.Require().NoError(err)
	s.JSONEq(`{"BTC_BITCOIN":"2","ETH_ERC20":"3","USDT":"1"}`, string(raw))
	s.Equal(`{"BTC_BITCOIN":"2","ETH_ERC20":"3","USDT":"1"}`, string(raw))

	var restored Balances
	s.Require().NoError(json.Unmarshal(raw, &restored))
	s.Equal(b.Keys(), restored.Keys())
	s.True(restored.Get("ETH_ERC20").Equal(dec("3")))
	s.True(restored.Get("missing").IsZero())
}

func (s *DomainTestSuite) TestRoundAmount() {
	cases := []struct {
		in, want string
	}{
		{"4.1111110737", "4.11111107"},
		{"8.2222221474", "8.22222215"},
		{"33.333333335", "33.33333334"},
		{"-0.000000005", "-0.00000001"},
		{"10", "10"},
	}
	for _, t := range cases {
		s.True(RoundAmount(dec(t.in)).Equal(dec(t.want)), "%s rounds to %s", t.in, RoundAmount(dec(t.in)))
	}

	// Apply округляет движения до BalanceScale знаков.
	w := &Wallet{Status: WalletStatusActive}
	change, err := w.Apply("USDT", dec("0.123456789"), dec("1.000000005"))
	s.Require().NoError(err)
	s.True(change.After.Equal(dec("0.12345679")))
	s.True(w.InvestedPrincipal.Equal(dec("1.00000001")))
}

func (s *DomainTestSuite) TestWalletApply() {
	w := &Wallet{Status: WalletStatusActive}

	change, err := w.Apply("USDT", dec("10"), dec("5"))
	s.Require().NoError(err)
	s.True(change.Before.IsZero())
	s.True(change.After.Equal(dec("10")))
	s.True(w.InvestedPrincipal.Equal(dec("5")))

	// списание больше баланса не меняет кошелек.
	_, err = w.Apply("USDT", dec("-10.5"), decimal.Zero)
	s.Require().ErrorIs(err, ErrInsufficientFunds)
	s.True(w.Balances.Get("USDT").Equal(dec("10")))

	_, err = w.Apply("USDT", decimal.Zero, dec("-6"))
	s.Require().ErrorIs(err, ErrInsufficientFunds)

	// нулевое движение по новому ключу не создает баланс.
	_, err = w.Apply("BTC_BITCOIN", decimal.Zero, dec("1"))
	s.Require().NoError(err)
	s.False(w.Balances.Has("BTC_BITCOIN"))

	w.Freeze()
	_, err = w.Apply("USDT", dec("1"), decimal.Zero)
	s.Require().ErrorIs(err, ErrWalletLocked)
	s.Equal(WalletStatusSuspended, w.Status)

	w.Unfreeze()
	_, err = w.Apply("USDT", dec("1"), decimal.Zero)
	s.Require().NoError(err)
}

func (s *DomainTestSuite) TestSplitWithdrawal() {
	w := &Wallet{Status: WalletStatusActive, InvestedPrincipal: dec("20")}
	w.Balances.Set("USDT", dec("5"))
	w.Balances.Set("BTC_BITCOIN", dec("1"))

	split, err := w.SplitWithdrawal("USDT", "TRC20", dec("12"))
	s.Require().NoError(err)
	s.True(split.Liquid.Equal(dec("5")))
	s.True(split.Invested.Equal(dec("7")))

	split, err = w.SplitWithdrawal("USDT", "TRC20", dec("3"))
	s.Require().NoError(err)
	s.True(split.Liquid.Equal(dec("3")))
	s.True(split.Invested.IsZero())

	// инвестированный капитал не доступен для нестейблкоинов.
	_, err = w.SplitWithdrawal("BTC", "BITCOIN", dec("2"))
	s.Require().ErrorIs(err, ErrInsufficientFunds)

	_, err = w.SplitWithdrawal("USDT", "TRC20", dec("25.00000001"))
	s.Require().ErrorIs(err, ErrInsufficientFunds)
}

func (s *DomainTestSuite) TestComputeAccrual() {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name          string
		durationDays  int
		intervalHours int
		now           time.Time
		wantIntervals int
		wantProfit    string
		wantMatures   bool
	}{
		{
			name:          "not due",
			durationDays:  30,
			intervalHours: 24,
			now:           start.Add(23 * time.Hour),
			wantProfit:    "0",
		},
		{
			name:          "catch up three intervals",
			durationDays:  30,
			intervalHours: 24,
			now:           start.Add(72 * time.Hour),
			wantIntervals: 3,
			wantProfit:    "30",
		},
		{
			name:          "matures on last interval",
			durationDays:  1,
			intervalHours: 24,
			now:           start.Add(24 * time.Hour),
			wantIntervals: 1,
			wantProfit:    "10",
			wantMatures:   true,
		},
		{
			name:          "long overdue stops at plan end",
			durationDays:  2,
			intervalHours: 24,
			now:           start.Add(240 * time.Hour),
			wantIntervals: 2,
			wantProfit:    "20",
			wantMatures:   true,
		},
		{
			name:          "interval longer than plan",
			durationDays:  1,
			intervalHours: 48,
			now:           start.Add(25 * time.Hour),
			wantProfit:    "0",
			wantMatures:   true,
		},
	}

	for _, t := range cases {
		s.Run(t.name, func() {
			inv := Investment{
				Principal:     dec("1000"),
				ProfitPercent: dec("1"),
				IntervalHours: t.intervalHours,
				DurationDays:  t.durationDays,
				StartAt:       start,
				NextDueAt:     start.Add(time.Duration(t.intervalHours) * time.Hour),
				Status:        InvestmentStatusActive,
			}
			batch := inv.ComputeAccrual(t.now)
			s.Equal(t.wantIntervals, batch.Intervals)
			s.True(batch.Profit.Equal(dec(t.wantProfit)), batch.Profit.String())
			s.Equal(t.wantMatures, batch.Matures)
			s.Equal(inv.NextDueAt.Add(time.Duration(t.wantIntervals)*inv.Interval()), batch.NextDueAt)
		})
	}
}

func (s *DomainTestSuite) TestDrawPrincipal() {
	inv := Investment{Principal: dec("10"), Status: InvestmentStatusActive}

	s.True(inv.DrawPrincipal(dec("7")).Equal(dec("7")))
	s.True(inv.Principal.Equal(dec("3")))
	s.Equal(InvestmentStatusActive, inv.Status)

	s.True(inv.DrawPrincipal(dec("5")).Equal(dec("3")))
	s.True(inv.Principal.IsZero())
	s.Equal(InvestmentStatusCompleted, inv.Status)

	s.True(inv.DrawPrincipal(dec("1")).IsZero())
}

func (s *DomainTestSuite) TestTierForPoints() {
	s.Equal(TierBronze, TierForPoints(dec("999.99")))
	s.Equal(TierSilver, TierForPoints(dec("1000")))
	s.Equal(TierGold, TierForPoints(dec("5000")))
	s.Equal(TierPremium, TierForPoints(dec("20000")))
	s.Equal(TierElite, TierForPoints(dec("150000")))
}

func (s *DomainTestSuite) TestValidationError() {
	err := NewValidationError("amount", "must be positive")
	s.Require().ErrorIs(err, ErrValidation)
	s.True(errors.Is(ErrTxReferenceUsed, ErrValidation))

	var vErr *ValidationError
	s.Require().ErrorAs(err, &vErr)
	s.Equal("amount", vErr.Field)
}
