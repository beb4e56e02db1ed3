package domain

// EntryType тип записи журнала.
type EntryType string

const (
	EntryTypeDeposit          EntryType = "DEPOSIT"
	EntryTypeAdminAdjustment  EntryType = "ADMIN_ADJUSTMENT"
	EntryTypeWithdrawal       EntryType = "WITHDRAWAL"
	EntryTypeProfitCredit     EntryType = "PROFIT_CREDIT"
	EntryTypePrincipalReturn  EntryType = "PRINCIPAL_RETURN"
	EntryTypeWithdrawalRefund EntryType = "WITHDRAWAL_REFUND"
	EntryTypeReferralBonus    EntryType = "REFERRAL_BONUS"
	EntryTypePlanPurchase     EntryType = "PLAN_PURCHASE"
)

func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeDeposit, EntryTypeAdminAdjustment, EntryTypeWithdrawal, EntryTypeProfitCredit,
		EntryTypePrincipalReturn, EntryTypeWithdrawalRefund, EntryTypeReferralBonus, EntryTypePlanPurchase:
		return true
	default:
		return false
	}
}

type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "ACTIVE"
	WalletStatusSuspended WalletStatus = "SUSPENDED"
)

type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "ACTIVE"
	InvestmentStatusCompleted InvestmentStatus = "COMPLETED"
)

type DepositStatus string

const (
	DepositStatusPending  DepositStatus = "PENDING"
	DepositStatusApproved DepositStatus = "APPROVED"
	DepositStatusRejected DepositStatus = "REJECTED"
)

type WithdrawalStatus string

const (
	WithdrawalStatusFundsLocked     WithdrawalStatus = "FUNDS_LOCKED"
	WithdrawalStatusAdminProcessing WithdrawalStatus = "ADMIN_PROCESSING"
	WithdrawalStatusCompleted       WithdrawalStatus = "COMPLETED"
	WithdrawalStatusRejected        WithdrawalStatus = "REJECTED"
	WithdrawalStatusFailed          WithdrawalStatus = "FAILED"
)

// CanTransitionTo проверяет допустимость перехода между статусами вывода.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	switch s {
	case WithdrawalStatusFundsLocked:
		return next == WithdrawalStatusAdminProcessing || next == WithdrawalStatusRejected
	case WithdrawalStatusAdminProcessing:
		return next == WithdrawalStatusCompleted ||
			next == WithdrawalStatusRejected ||
			next == WithdrawalStatusFailed
	default:
		return false
	}
}

// Tier уровень программы лояльности.
type Tier string

const (
	TierBronze  Tier = "BRONZE"
	TierSilver  Tier = "SILVER"
	TierGold    Tier = "GOLD"
	TierPremium Tier = "PREMIUM"
	TierElite   Tier = "ELITE"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// EventKind тип исходящего события.
type EventKind string

const (
	EventKindNotification EventKind = "NOTIFICATION"
	EventKindEmail        EventKind = "EMAIL"
	EventKindPush         EventKind = "PUSH"
)

type EventStatus string

const (
	EventStatusPending    EventStatus = "PENDING"
	EventStatusProcessing EventStatus = "PROCESSING"
	EventStatusSent       EventStatus = "SENT"
	EventStatusFailed     EventStatus = "FAILED"
)
