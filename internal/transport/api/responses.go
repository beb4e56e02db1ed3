package api

import (
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/shopspring/decimal"
)

type WalletResponse struct {
	UserID            int64               `json:"user_id"`
	Balances          domain.Balances     `json:"balances"`
	InvestedPrincipal decimal.Decimal     `json:"invested_principal"`
	TotalProfit       decimal.Decimal     `json:"total_profit"`
	Status            domain.WalletStatus `json:"status"`
	Locked            bool                `json:"locked"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func newWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		UserID:            w.UserID,
		Balances:          w.Balances,
		InvestedPrincipal: w.InvestedPrincipal,
		TotalProfit:       w.TotalProfit,
		Status:            w.Status,
		Locked:            w.Locked,
		UpdatedAt:         w.UpdatedAt,
	}
}

type LedgerEntryResponse struct {
	ID            int64            `json:"id"`
	Type          domain.EntryType `json:"type"`
	Asset         string           `json:"asset"`
	Network       string           `json:"network"`
	Amount        decimal.Decimal  `json:"amount"`
	InvestedDelta decimal.Decimal  `json:"invested_delta"`
	BalanceBefore decimal.Decimal  `json:"balance_before"`
	BalanceAfter  decimal.Decimal  `json:"balance_after"`
	ReferenceID   string           `json:"reference_id"`
	CreatedAt     time.Time        `json:"created_at"`
}

func newLedgerEntryResponse(e *domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            e.ID,
		Type:          e.Type,
		Asset:         e.Asset,
		Network:       e.Network,
		Amount:        e.Amount,
		InvestedDelta: e.InvestedDelta,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		ReferenceID:   e.ReferenceID,
		CreatedAt:     e.CreatedAt,
	}
}

type DepositResponse struct {
	ID             int64                `json:"id"`
	UserID         int64                `json:"user_id"`
	PlanID         int64                `json:"plan_id"`
	Asset          string               `json:"asset"`
	Network        string               `json:"network"`
	ClaimedAmount  decimal.Decimal      `json:"claimed_amount"`
	ApprovedAmount *decimal.Decimal     `json:"approved_amount,omitempty"`
	TxHash         string               `json:"tx_hash,omitempty"`
	ProofRef       string               `json:"proof_ref,omitempty"`
	Status         domain.DepositStatus `json:"status"`
	Remarks        string               `json:"remarks,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ApprovedAt     *time.Time           `json:"approved_at,omitempty"`
}

func newDepositResponse(d *domain.Deposit) DepositResponse {
	return DepositResponse{
		ID:             d.ID,
		UserID:         d.UserID,
		PlanID:         d.PlanID,
		Asset:          d.Asset,
		Network:        d.Network,
		ClaimedAmount:  d.ClaimedAmount,
		ApprovedAmount: d.ApprovedAmount,
		TxHash:         d.TxHash,
		ProofRef:       d.ProofRef,
		Status:         d.Status,
		Remarks:        d.Remarks,
		CreatedAt:      d.CreatedAt,
		ApprovedAt:     d.ApprovedAt,
	}
}

type WithdrawalResponse struct {
	ID                 int64                   `json:"id"`
	UserID             int64                   `json:"user_id"`
	Asset              string                  `json:"asset"`
	Network            string                  `json:"network"`
	Amount             decimal.Decimal         `json:"amount"`
	DestinationAddress string                  `json:"destination_address"`
	Status             domain.WithdrawalStatus `json:"status"`
	TxHash             string                  `json:"tx_hash,omitempty"`
	RejectionReason    string                  `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

func newWithdrawalResponse(w *domain.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:                 w.ID,
		UserID:             w.UserID,
		Asset:              w.Asset,
		Network:            w.Network,
		Amount:             w.Amount,
		DestinationAddress: w.DestinationAddress,
		Status:             w.Status,
		TxHash:             w.TxHash,
		RejectionReason:    w.RejectionReason,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
}

type InvestmentResponse struct {
	ID            int64                   `json:"id"`
	PlanID        int64                   `json:"plan_id"`
	DepositID     *int64                  `json:"deposit_id,omitempty"`
	Principal     decimal.Decimal         `json:"principal"`
	ProfitPercent decimal.Decimal         `json:"profit_percent"`
	IntervalHours int                     `json:"interval_hours"`
	DurationDays  int                     `json:"duration_days"`
	StartAt       time.Time               `json:"start_at"`
	NextDueAt     time.Time               `json:"next_due_at"`
	TotalCredited decimal.Decimal         `json:"total_credited"`
	Status        domain.InvestmentStatus `json:"status"`
}

func newInvestmentResponse(i *domain.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:            i.ID,
		PlanID:        i.PlanID,
		DepositID:     i.DepositID,
		Principal:     i.Principal,
		ProfitPercent: i.ProfitPercent,
		IntervalHours: i.IntervalHours,
		DurationDays:  i.DurationDays,
		StartAt:       i.StartAt,
		NextDueAt:     i.NextDueAt,
		TotalCredited: i.TotalCredited,
		Status:        i.Status,
	}
}

func mapSlice[T, R any](items []T, fn func(*T) R) []R {
	out := make([]R, len(items))
	for i := range items {
		out[i] = fn(&items[i])
	}
	return out
}
