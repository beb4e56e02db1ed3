package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID                          int64
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
	Email                       string
	Name                        string
	ReferredBy                  *int64
	Points                      decimal.Decimal
	Tier                        Tier
	IsActive                    bool
	RequireWithdrawVerification bool
}

type Plan struct {
	ID            int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Name          string
	ProfitPercent decimal.Decimal
	IntervalHours int
	DurationDays  int
	MinAmount     decimal.Decimal
	MaxAmount     decimal.Decimal
	IsActive      bool
}

// InRange проверяет, что сумма укладывается в лимиты плана. Нулевой максимум означает отсутствие ограничения.
func (p *Plan) InRange(amount decimal.Decimal) bool {
	if amount.LessThan(p.MinAmount) {
		return false
	}
	return p.MaxAmount.IsZero() || amount.LessThanOrEqual(p.MaxAmount)
}

type Deposit struct {
	ID             int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	UserID         int64
	PlanID         int64
	Asset          string
	Network        string
	ClaimedAmount  decimal.Decimal
	ApprovedAmount *decimal.Decimal
	ProofRef       string
	TxHash         string
	PaymentLink    string
	Status         DepositStatus
	AdminID        *int64
	Remarks        string
	ApprovedAt     *time.Time
}

type Withdrawal struct {
	ID                 int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	UserID             int64
	Asset              string
	Network            string
	Amount             decimal.Decimal
	DestinationAddress string
	Status             WithdrawalStatus
	TxHash             string
	ProofRef           string
	RejectionReason    string
	AdminID            *int64
}

// LedgerEntry неизменяемая запись журнала. Amount - знаковое изменение ликвидного баланса по ключу
// BalanceKey, InvestedDelta - знаковое изменение инвестированного капитала.
type LedgerEntry struct {
	ID            int64
	CreatedAt     time.Time
	UserID        int64
	Type          EntryType
	Asset         string
	Network       string
	BalanceKey    string
	Amount        decimal.Decimal
	InvestedDelta decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	ReferenceID   string
}

type OutboxEvent struct {
	ID        uuid.UUID
	CreatedAt time.Time
	SentAt    *time.Time
	Kind      EventKind
	UserID    int64
	Payload   json.RawMessage
	Status    EventStatus
	Attempts  int
	LastError string
}

type AuditRecord struct {
	ID        int64
	CreatedAt time.Time
	AdminID   int64
	Action    string
	Entity    string
	EntityID  string
	Before    json.RawMessage
	After     json.RawMessage
}

// Notification полезная нагрузка события EventKindNotification.
type Notification struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Data    map[string]any `json:"data,omitempty"`
}

// Email полезная нагрузка события EventKindEmail.
type Email struct {
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}
