package service

import (
	"fmt"

	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Settings настройки бизнес-правил, приходящие из конфигурации.
type Settings struct {
	RequireTxHash               bool
	RequireWithdrawVerification bool
	MinWithdrawal               decimal.Decimal
	Logger                      logrus.FieldLogger
}

type AppServices struct {
	LedgerService     *LedgerService
	WalletService     *WalletService
	DepositService    *DepositService
	InvestmentService *InvestmentService
	AccrualService    *AccrualService
	WithdrawalService *WithdrawalService
	OutboxService     *OutboxService
}

func Factory(unitOfWork uow.UOW, codes CodeVerifier, settings Settings) (*AppServices, error) {
	ledgerService, err := NewLedgerService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %w", err)
	}

	walletService, err := NewWalletService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %w", err)
	}

	depositService, err := NewDepositService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %w", err)
	}

	investmentService, err := NewInvestmentService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %w", err)
	}

	accrualService, err := NewAccrualService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %w", err)
	}

	withdrawalService, err := NewWithdrawalService(unitOfWork, codes)
	if err != nil {
		return nil, fmt.Errorf("service factory: %w", err)
	}

	outboxService, err := NewOutboxService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %w", err)
	}

	return &AppServices{
		LedgerService:     ledgerService,
		WalletService:     walletService,
		DepositService:    depositService.SetRequireTxHash(settings.RequireTxHash),
		InvestmentService: investmentService,
		AccrualService:    accrualService,
		WithdrawalService: withdrawalService.
			SetRequireVerification(settings.RequireWithdrawVerification).
			SetMinAmount(settings.MinWithdrawal).
			SetLogger(settings.Logger),
		OutboxService: outboxService,
	}, nil
}
