package repoargs

import (
	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/shopspring/decimal"
)

type WithdrawalCreate struct {
	UserID             int64
	Asset              string
	Network            string
	Amount             decimal.Decimal
	DestinationAddress string
	Status             domain.WithdrawalStatus
	TxHash             string
	AdminID            *int64
}

type WithdrawalStatusUpdate struct {
	ID              int64
	Status          domain.WithdrawalStatus
	AdminID         int64
	TxHash          string
	ProofRef        string
	RejectionReason string
}
