package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fsdevblog/groph-invest/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	DefaultServiceTimeout = 3 * time.Second
)

const (
	RouteGroup       = "/api"
	WalletRoute      = "/wallet"
	LedgerRoute      = "/ledger"
	DepositsRoute    = "/deposits"
	WithdrawalsRoute = "/withdrawals"
	InvestmentsRoute = "/investments"

	AdminGroup                  = "/admin"
	AdminDepositsRoute          = "/deposits"
	AdminDepositApproveRoute    = "/deposits/:id/approve"
	AdminDepositRejectRoute     = "/deposits/:id/reject"
	AdminWithdrawalsRoute       = "/withdrawals"
	AdminWithdrawalApproveRoute = "/withdrawals/:id/approve"
	AdminWithdrawalConfirmRoute = "/withdrawals/:id/confirm"
	AdminWithdrawalRejectRoute  = "/withdrawals/:id/reject"
	AdminWithdrawalFailRoute    = "/withdrawals/:id/fail"
	AdminWalletFreezeRoute      = "/wallets/:userID/freeze"
	AdminWalletUnfreezeRoute    = "/wallets/:userID/unfreeze"
	AdminWalletAdjustRoute      = "/wallets/:userID/adjust"
	AdminWalletReconcileRoute   = "/wallets/:userID/reconcile"
	AdminAccrualRunRoute        = "/accrual/run"

	MetricsRoute = "/metrics"
	HealthRoute  = "/healthz"
)

// MetricsProvider учитывает http запросы и отдает собранные метрики.
type MetricsProvider interface {
	middlewares.HTTPRecorder
	Handler() http.Handler
}

type RouterArgs struct {
	Logger            *logrus.Logger
	Metrics           MetricsProvider
	WalletService     WalletServicer
	LedgerService     LedgerServicer
	DepositService    DepositServicer
	WithdrawalService WithdrawalServicer
	InvestmentService InvestmentServicer
	Accrual           AccrualRunner
	JWTSecretKey      []byte
}

func New(args RouterArgs) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger))
	}
	if args.Metrics != nil {
		r.Use(middlewares.Metrics(args.Metrics))
		r.GET(MetricsRoute, gin.WrapH(args.Metrics.Handler()))
	}
	r.Use(middlewares.Errors())

	r.GET(HealthRoute, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	walletHandler := NewWalletHandler(args.WalletService, args.LedgerService)
	depositsHandler := NewDepositsHandler(args.DepositService)
	withdrawalsHandler := NewWithdrawalsHandler(args.WithdrawalService)
	investmentsHandler := NewInvestmentsHandler(args.InvestmentService, args.Accrual)

	api := r.Group(RouteGroup)
	api.Use(middlewares.AuthRequired(args.JWTSecretKey))
	// ниже все роуты группы требуют авторизованного пользователя.
	api.GET(WalletRoute, walletHandler.Show)
	api.GET(LedgerRoute, walletHandler.Ledger)

	api.POST(DepositsRoute, depositsHandler.Create)
	api.GET(DepositsRoute, depositsHandler.Index)

	api.POST(WithdrawalsRoute, withdrawalsHandler.Create)
	api.GET(WithdrawalsRoute, withdrawalsHandler.Index)

	api.POST(InvestmentsRoute, investmentsHandler.Create)
	api.GET(InvestmentsRoute, investmentsHandler.Index)

	admin := api.Group(AdminGroup)
	admin.Use(middlewares.AdminRequired())

	admin.GET(AdminDepositsRoute, depositsHandler.Queue)
	admin.POST(AdminDepositApproveRoute, depositsHandler.Approve)
	admin.POST(AdminDepositRejectRoute, depositsHandler.Reject)

	admin.GET(AdminWithdrawalsRoute, withdrawalsHandler.Queue)
	admin.POST(AdminWithdrawalsRoute, withdrawalsHandler.CreateManual)
	admin.POST(AdminWithdrawalApproveRoute, withdrawalsHandler.Approve)
	admin.POST(AdminWithdrawalConfirmRoute, withdrawalsHandler.Confirm)
	admin.POST(AdminWithdrawalRejectRoute, withdrawalsHandler.Reject)
	admin.POST(AdminWithdrawalFailRoute, withdrawalsHandler.Fail)

	admin.POST(AdminWalletFreezeRoute, walletHandler.Freeze)
	admin.POST(AdminWalletUnfreezeRoute, walletHandler.Unfreeze)
	admin.POST(AdminWalletAdjustRoute, walletHandler.Adjust)
	admin.GET(AdminWalletReconcileRoute, walletHandler.Reconcile)

	admin.POST(AdminAccrualRunRoute, investmentsHandler.RunAccrual)
	return r, nil
}
