package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/logger"
	"github.com/fsdevblog/groph-invest/internal/metrics"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/internal/service"
	"github.com/fsdevblog/groph-invest/internal/transport/api/mocks"
	"github.com/fsdevblog/groph-invest/internal/transport/api/testutils"
	"github.com/fsdevblog/groph-invest/internal/transport/api/tokens"
	"github.com/fsdevblog/groph-invest/internal/worker/accrual"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

const (
	testUserID  int64 = 1
	testAdminID int64 = 99
)

type HandlersTestSuite struct {
	suite.Suite
	router         *gin.Engine
	jwtSecret      []byte
	userToken      string
	adminToken     string
	mockWallet     *mocks.MockWalletServicer
	mockLedger     *mocks.MockLedgerServicer
	mockDeposit    *mocks.MockDepositServicer
	mockWithdrawal *mocks.MockWithdrawalServicer
	mockInvestment *mocks.MockInvestmentServicer
	mockAccrual    *mocks.MockAccrualRunner
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (s *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	mockCtrl := gomock.NewController(s.T())

	s.mockWallet = mocks.NewMockWalletServicer(mockCtrl)
	s.mockLedger = mocks.NewMockLedgerServicer(mockCtrl)
	s.mockDeposit = mocks.NewMockDepositServicer(mockCtrl)
	s.mockWithdrawal = mocks.NewMockWithdrawalServicer(mockCtrl)
	s.mockInvestment = mocks.NewMockInvestmentServicer(mockCtrl)
	s.mockAccrual = mocks.NewMockAccrualRunner(mockCtrl)
	s.jwtSecret = []byte("super secret key")

	var err error
	s.router, err = New(RouterArgs{
		Logger:            logger.New(os.Stdout),
		Metrics:           metrics.New(),
		WalletService:     s.mockWallet,
		LedgerService:     s.mockLedger,
		DepositService:    s.mockDeposit,
		WithdrawalService: s.mockWithdrawal,
		InvestmentService: s.mockInvestment,
		Accrual:           s.mockAccrual,
		JWTSecretKey:      s.jwtSecret,
	})
	s.Require().NoError(err)

	s.userToken, err = tokens.GenerateUserJWT(testUserID, domain.RoleUser, time.Hour, s.jwtSecret)
	s.Require().NoError(err)
	s.adminToken, err = tokens.GenerateUserJWT(testAdminID, domain.RoleAdmin, time.Hour, s.jwtSecret)
	s.Require().NoError(err)
}

// request выполняет запрос к роутеру и возвращает статус и тело ответа.
func (s *HandlersTestSuite) request(method, url, token, body string) (int, string) {
	args := testutils.RequestArgs{
		Router: s.router,
		Method: method,
		URL:    url,
	}
	if body != "" {
		args.Body = strings.NewReader(body)
	}
	res, err := testutils.MakeRequest(args, testutils.WithJSON(), testutils.WithBearer(token))
	s.Require().NoError(err)
	defer func() {
		closeErr := res.Body.Close()
		s.Require().NoError(closeErr)
	}()

	raw, readErr := io.ReadAll(res.Body)
	s.Require().NoError(readErr)
	return res.StatusCode, string(raw)
}

func (s *HandlersTestSuite) TestAuth() {
	expired, err := tokens.GenerateUserJWT(testUserID, domain.RoleUser, -time.Minute, s.jwtSecret)
	s.Require().NoError(err)

	cases := []struct {
		name       string
		url        string
		token      string
		wantStatus int
	}{
		{name: "no token", url: RouteGroup + WalletRoute, wantStatus: http.StatusUnauthorized},
		{name: "expired token", url: RouteGroup + WalletRoute, token: expired, wantStatus: http.StatusUnauthorized},
		{
			name:       "user on admin route",
			url:        RouteGroup + AdminGroup + AdminDepositsRoute,
			token:      s.userToken,
			wantStatus: http.StatusForbidden,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, _ := s.request(http.MethodGet, t.url, t.token, "")
			s.Equal(t.wantStatus, status)
		})
	}
}

func (s *HandlersTestSuite) TestWalletShow() {
	wallet := &domain.Wallet{UserID: testUserID, Status: domain.WalletStatusActive, InvestedPrincipal: dec("100")}
	wallet.Balances.Set("USDT", dec("12.5"))
	s.mockWallet.EXPECT().GetWallet(gomock.Any(), testUserID).Return(wallet, nil)

	status, body := s.request(http.MethodGet, RouteGroup+WalletRoute, s.userToken, "")
	s.Require().Equal(http.StatusOK, status)

	var response WalletResponse
	s.Require().NoError(json.Unmarshal([]byte(body), &response))
	s.True(response.Balances.Get("USDT").Equal(dec("12.5")))
	s.True(response.InvestedPrincipal.Equal(dec("100")))
	s.Equal(domain.WalletStatusActive, response.Status)
}

func (s *HandlersTestSuite) TestLedger() {
	// фильтр собирается из query параметров.
	s.mockLedger.EXPECT().
		GetLedger(gomock.Any(), testUserID, repoargs.LedgerFilter{
			Types: []domain.EntryType{domain.EntryTypeDeposit, domain.EntryTypeWithdrawal},
			Asset: "USDT",
			Page:  repoargs.Page{Limit: 10, Offset: 20},
		}).
		Return([]domain.LedgerEntry{{ID: 7, Type: domain.EntryTypeDeposit, Amount: dec("5")}}, nil)

	status, body := s.request(
		http.MethodGet,
		RouteGroup+LedgerRoute+"?type=deposit,withdrawal&asset=usdt&limit=10&offset=20",
		s.userToken,
		"",
	)
	s.Require().Equal(http.StatusOK, status)

	var entries []LedgerEntryResponse
	s.Require().NoError(json.Unmarshal([]byte(body), &entries))
	s.Require().Len(entries, 1)
	s.Equal(int64(7), entries[0].ID)

	s.mockLedger.EXPECT().
		GetLedger(gomock.Any(), testUserID, gomock.Any()).
		Return(nil, domain.NewValidationError("type", `unknown entry type "BONUS"`))

	status, _ = s.request(http.MethodGet, RouteGroup+LedgerRoute+"?type=bonus", s.userToken, "")
	s.Equal(http.StatusUnprocessableEntity, status)

	status, _ = s.request(http.MethodGet, RouteGroup+LedgerRoute+"?from=yesterday", s.userToken, "")
	s.Equal(http.StatusBadRequest, status)
}

func (s *HandlersTestSuite) TestDepositCreate() {
	s.mockDeposit.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, args service.CreateDepositArgs) (*domain.Deposit, error) {
			s.Equal(testUserID, args.UserID)
			s.True(args.Amount.Equal(dec("150.25")))
			return &domain.Deposit{ID: 3, UserID: testUserID, Status: domain.DepositStatusPending}, nil
		})
	s.mockDeposit.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("creating deposit: %w", domain.ErrPlanInactive))

	cases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "all ok",
			body:       `{"plan_id":1,"asset":"USDT","network":"TRC20","amount":"150.25"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "plan inactive",
			body:       `{"plan_id":2,"asset":"USDT","network":"TRC20","amount":"10"}`,
			wantStatus: http.StatusConflict,
		},
		{
			name: "tx hash too long",
			body: fmt.Sprintf(
				`{"plan_id":1,"asset":"USDT","network":"TRC20","amount":"10","tx_hash":%q}`,
				testutils.GenerateOverBytesUnderRunes(40),
			),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "bad asset code",
			body:       `{"plan_id":1,"asset":"US DT","network":"TRC20","amount":"10"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "missing plan",
			body:       `{"asset":"USDT","network":"TRC20","amount":"10"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "broken json",
			body:       `{"plan_id":`,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, _ := s.request(http.MethodPost, RouteGroup+DepositsRoute, s.userToken, t.body)
			s.Equal(t.wantStatus, status)
		})
	}
}

func (s *HandlersTestSuite) TestDepositApprove() {
	approvedURL := func(id string) string {
		return RouteGroup + AdminGroup + strings.Replace(AdminDepositApproveRoute, ":id", id, 1)
	}

	s.mockDeposit.EXPECT().
		Approve(gomock.Any(), testAdminID, int64(5), dec("100")).
		Return(&service.DepositApproval{
			Deposit:       &domain.Deposit{ID: 5, Status: domain.DepositStatusApproved},
			Investment:    &domain.Investment{ID: 11, Principal: dec("100")},
			ReferralBonus: dec("5"),
		}, nil)
	// повторное одобрение.
	s.mockDeposit.EXPECT().
		Approve(gomock.Any(), testAdminID, int64(6), dec("100")).
		Return(nil, fmt.Errorf("approving deposit 6: %w", domain.ErrDuplicateEntry))
	s.mockDeposit.EXPECT().
		Approve(gomock.Any(), testAdminID, int64(7), dec("100")).
		Return(nil, fmt.Errorf("approving deposit 7: %w", domain.ErrRecordNotFound))

	status, body := s.request(http.MethodPost, approvedURL("5"), s.adminToken, `{"amount":100}`)
	s.Require().Equal(http.StatusOK, status)
	var response DepositApprovalResponse
	s.Require().NoError(json.Unmarshal([]byte(body), &response))
	s.Equal(int64(11), response.Investment.ID)
	s.True(response.ReferralBonus.Equal(dec("5")))

	status, body = s.request(http.MethodPost, approvedURL("6"), s.adminToken, `{"amount":"100"}`)
	s.Equal(http.StatusOK, status)
	s.JSONEq(`{"status":"already_applied"}`, body)

	status, _ = s.request(http.MethodPost, approvedURL("7"), s.adminToken, `{"amount":"100"}`)
	s.Equal(http.StatusNotFound, status)

	status, _ = s.request(http.MethodPost, approvedURL("abc"), s.adminToken, `{"amount":"100"}`)
	s.Equal(http.StatusBadRequest, status)
}

func (s *HandlersTestSuite) TestWithdrawalCreate() {
	body := `{"asset":"USDT","network":"TRC20","amount":"30","destination_address":"TXyz"}`

	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "all ok", wantStatus: http.StatusCreated},
		{name: "code required", err: domain.ErrVerificationRequired, wantStatus: http.StatusPreconditionRequired},
		{name: "wrong code", err: domain.ErrInvalidVerificationCode, wantStatus: http.StatusUnprocessableEntity},
		{name: "insufficient funds", err: domain.ErrInsufficientFunds, wantStatus: http.StatusPaymentRequired},
		{name: "wallet locked", err: domain.ErrWalletLocked, wantStatus: http.StatusLocked},
		{name: "internal", err: fmt.Errorf("%w: connection reset", domain.ErrUnknown), wantStatus: http.StatusInternalServerError},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			var withdrawal *domain.Withdrawal
			if t.err == nil {
				withdrawal = &domain.Withdrawal{ID: 1, Amount: dec("30"), Status: domain.WithdrawalStatusFundsLocked}
			}
			s.mockWithdrawal.EXPECT().
				Create(gomock.Any(), service.CreateWithdrawalArgs{
					UserID:             testUserID,
					Asset:              "USDT",
					Network:            "TRC20",
					Amount:             dec("30"),
					DestinationAddress: "TXyz",
				}).
				Return(withdrawal, t.err)

			status, respBody := s.request(http.MethodPost, RouteGroup+WithdrawalsRoute, s.userToken, body)
			s.Equal(t.wantStatus, status)
			if t.wantStatus == http.StatusInternalServerError {
				// текст внутренней ошибки клиенту не отдается.
				s.NotContains(respBody, "connection reset")
			}
		})
	}
}

func (s *HandlersTestSuite) TestWithdrawalTransitions() {
	url := func(route string) string {
		return RouteGroup + AdminGroup + strings.Replace(route, ":id", "4", 1)
	}
	done := &domain.Withdrawal{ID: 4, Status: domain.WithdrawalStatusCompleted}

	s.mockWithdrawal.EXPECT().Approve(gomock.Any(), testAdminID, int64(4)).
		Return(&domain.Withdrawal{ID: 4, Status: domain.WithdrawalStatusAdminProcessing}, nil)
	s.mockWithdrawal.EXPECT().Confirm(gomock.Any(), testAdminID, int64(4), "0xabc", "").Return(done, nil)
	s.mockWithdrawal.EXPECT().Reject(gomock.Any(), testAdminID, int64(4), "bad address").
		Return(nil, fmt.Errorf("rejecting withdrawal 4: %w", domain.ErrRecordNotFound))
	s.mockWithdrawal.EXPECT().Fail(gomock.Any(), testAdminID, int64(4), "network error").
		Return(&domain.Withdrawal{ID: 4, Status: domain.WithdrawalStatusFailed}, nil)

	cases := []struct {
		name       string
		route      string
		body       string
		wantStatus int
	}{
		{name: "approve", route: AdminWithdrawalApproveRoute, wantStatus: http.StatusOK},
		{name: "confirm", route: AdminWithdrawalConfirmRoute, body: `{"tx_hash":"0xabc"}`, wantStatus: http.StatusOK},
		{
			name:       "confirm without tx hash",
			route:      AdminWithdrawalConfirmRoute,
			body:       `{}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "reject in final state",
			route:      AdminWithdrawalRejectRoute,
			body:       `{"reason":"bad address"}`,
			wantStatus: http.StatusNotFound,
		},
		{name: "fail", route: AdminWithdrawalFailRoute, body: `{"reason":"network error"}`, wantStatus: http.StatusOK},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, _ := s.request(http.MethodPost, url(t.route), s.adminToken, t.body)
			s.Equal(t.wantStatus, status)
		})
	}
}

func (s *HandlersTestSuite) TestQueues() {
	s.mockDeposit.EXPECT().
		GetByStatus(gomock.Any(), domain.DepositStatusPending, repoargs.Page{}).
		Return([]domain.Deposit{{ID: 1}, {ID: 2}}, nil)
	s.mockWithdrawal.EXPECT().
		GetByStatus(gomock.Any(), domain.WithdrawalStatusAdminProcessing, repoargs.Page{Limit: 5}).
		Return([]domain.Withdrawal{}, nil)

	status, body := s.request(http.MethodGet, RouteGroup+AdminGroup+AdminDepositsRoute, s.adminToken, "")
	s.Require().Equal(http.StatusOK, status)
	var deposits []DepositResponse
	s.Require().NoError(json.Unmarshal([]byte(body), &deposits))
	s.Len(deposits, 2)

	status, body = s.request(
		http.MethodGet,
		RouteGroup+AdminGroup+AdminWithdrawalsRoute+"?status=ADMIN_PROCESSING&limit=5",
		s.adminToken,
		"",
	)
	s.Require().Equal(http.StatusOK, status)
	s.JSONEq(`[]`, body)
}

func (s *HandlersTestSuite) TestAdminWallet() {
	s.mockWallet.EXPECT().Freeze(gomock.Any(), testAdminID, int64(8), "fraud check").
		Return(&domain.Wallet{UserID: 8, Status: domain.WalletStatusSuspended, Locked: true}, nil)
	s.mockWallet.EXPECT().
		AdjustBalance(gomock.Any(), service.AdjustBalanceArgs{
			AdminID: testAdminID,
			UserID:  8,
			Asset:   "USDT",
			Network: "TRC20",
			Amount:  dec("-5"),
			Reason:  "fee correction",
		}).
		Return(&domain.LedgerEntry{ID: 40, Type: domain.EntryTypeAdminAdjustment, Amount: dec("-5")}, nil)
	s.mockLedger.EXPECT().Reconcile(gomock.Any(), int64(8)).
		Return(&service.ReconcileReport{UserID: 8, Consistent: true}, nil)

	url := func(route string) string {
		return RouteGroup + AdminGroup + strings.Replace(route, ":userID", "8", 1)
	}

	status, body := s.request(http.MethodPost, url(AdminWalletFreezeRoute), s.adminToken, `{"reason":"fraud check"}`)
	s.Require().Equal(http.StatusOK, status)
	s.Contains(body, `"locked":true`)

	status, _ = s.request(
		http.MethodPost,
		url(AdminWalletAdjustRoute),
		s.adminToken,
		`{"asset":"USDT","network":"TRC20","amount":"-5","reason":"fee correction"}`,
	)
	s.Equal(http.StatusOK, status)

	status, _ = s.request(http.MethodPost, url(AdminWalletAdjustRoute), s.adminToken, `{"asset":"USDT"}`)
	s.Equal(http.StatusUnprocessableEntity, status)

	status, body = s.request(http.MethodGet, url(AdminWalletReconcileRoute), s.adminToken, "")
	s.Require().Equal(http.StatusOK, status)
	s.Contains(body, `"consistent":true`)
}

func (s *HandlersTestSuite) TestInvestments() {
	s.mockInvestment.EXPECT().PurchasePlan(gomock.Any(), testUserID, int64(2), dec("50")).
		Return(&domain.Investment{ID: 9, PlanID: 2, Principal: dec("50")}, nil)
	s.mockInvestment.EXPECT().GetByUserID(gomock.Any(), testUserID).
		Return([]domain.Investment{{ID: 9}}, nil)

	status, _ := s.request(http.MethodPost, RouteGroup+InvestmentsRoute, s.userToken, `{"plan_id":2,"amount":"50"}`)
	s.Equal(http.StatusCreated, status)

	status, body := s.request(http.MethodGet, RouteGroup+InvestmentsRoute, s.userToken, "")
	s.Require().Equal(http.StatusOK, status)
	s.Contains(body, `"id":9`)
}

func (s *HandlersTestSuite) TestRunAccrual() {
	url := RouteGroup + AdminGroup + AdminAccrualRunRoute

	s.mockAccrual.EXPECT().RunOnce(gomock.Any()).
		Return(&service.AccrualReport{Due: 3, Credited: 3, TotalCredited: dec("1.5")}, nil)
	status, body := s.request(http.MethodPost, url, s.adminToken, "")
	s.Require().Equal(http.StatusOK, status)
	s.Contains(body, `"credited":3`)

	s.mockAccrual.EXPECT().RunOnce(gomock.Any()).Return(nil, accrual.ErrAlreadyRunning)
	status, _ = s.request(http.MethodPost, url, s.adminToken, "")
	s.Equal(http.StatusConflict, status)
}

func (s *HandlersTestSuite) TestHealthAndMetrics() {
	status, _ := s.request(http.MethodGet, HealthRoute, "", "")
	s.Equal(http.StatusOK, status)

	status, body := s.request(http.MethodGet, MetricsRoute, "", "")
	s.Require().Equal(http.StatusOK, status)
	s.Contains(body, `invest_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
