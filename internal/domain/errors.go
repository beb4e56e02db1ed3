package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrUnknown        = errors.New("unknown error")

	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletLocked      = errors.New("wallet is locked")
	ErrDuplicateEntry    = errors.New("ledger entry already applied")
	ErrPlanInactive      = errors.New("plan is inactive")
	ErrExternalService   = errors.New("external service failure")

	ErrVerificationRequired    = errors.New("verification code required")
	ErrInvalidVerificationCode = errors.New("invalid or expired verification code")
	ErrTxReferenceUsed         = fmt.Errorf("%w: transaction reference already used", ErrValidation)
)

// ValidationError ошибка валидации входных данных. Сопоставляется с ErrValidation через errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
