package repoargs

import (
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/shopspring/decimal"
)

type DepositCreate struct {
	UserID        int64
	PlanID        int64
	Asset         string
	Network       string
	ClaimedAmount decimal.Decimal
	ProofRef      string
	TxHash        string
	PaymentLink   string
}

type DepositStatusUpdate struct {
	ID             int64
	Status         domain.DepositStatus
	ApprovedAmount *decimal.Decimal
	AdminID        int64
	Remarks        string
	ApprovedAt     *time.Time
}
