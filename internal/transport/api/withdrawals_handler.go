package api

import (
	"context"
	"net/http"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type WithdrawalsHandler struct {
	withdrawalSvs WithdrawalServicer
}

func NewWithdrawalsHandler(withdrawalSvs WithdrawalServicer) *WithdrawalsHandler {
	return &WithdrawalsHandler{
		withdrawalSvs: withdrawalSvs,
	}
}

type WithdrawalCreateParams struct {
	Asset              string          `binding:"required,asset_code"     json:"asset"`
	Network            string          `binding:"required,asset_code"     json:"network"`
	Amount             decimal.Decimal `json:"amount"`
	DestinationAddress string          `binding:"required,max_bytes=128" json:"destination_address"`
	Code               string          `binding:"max_bytes=16"           json:"code"`
}

// Create POST RouteGroup + WithdrawalsRoute. Если для пользователя включено подтверждение, запрос без кода
// отправляет код и отвечает 428, повторный запрос с кодом создает вывод.
func (h *WithdrawalsHandler) Create(c *gin.Context) {
	var params WithdrawalCreateParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.withdrawalSvs.Create(reqCtx, service.CreateWithdrawalArgs{
		UserID:             getUserIDFromContext(c),
		Asset:              params.Asset,
		Network:            params.Network,
		Amount:             params.Amount,
		DestinationAddress: params.DestinationAddress,
		Code:               params.Code,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newWithdrawalResponse(withdrawal))
}

// Index GET RouteGroup + WithdrawalsRoute.
func (h *WithdrawalsHandler) Index(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawals, err := h.withdrawalSvs.GetByUserID(reqCtx, getUserIDFromContext(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(withdrawals, newWithdrawalResponse))
}

type WithdrawalQueueParams struct {
	PageParams
	Status string `form:"status"`
}

// Queue GET RouteGroup + AdminWithdrawalsRoute. По умолчанию отдает выводы, ожидающие решения.
func (h *WithdrawalsHandler) Queue(c *gin.Context) {
	params := WithdrawalQueueParams{Status: string(domain.WithdrawalStatusFundsLocked)}
	if !bindQuery(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawals, err := h.withdrawalSvs.GetByStatus(reqCtx, domain.WithdrawalStatus(params.Status), params.toPage())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(withdrawals, newWithdrawalResponse))
}

type ManualWithdrawalParams struct {
	UserID             int64           `binding:"required,gt=0"          json:"user_id"`
	Asset              string          `binding:"required,asset_code"     json:"asset"`
	Network            string          `binding:"required,asset_code"     json:"network"`
	Amount             decimal.Decimal `json:"amount"`
	DestinationAddress string          `binding:"required,max_bytes=128" json:"destination_address"`
	Status             string          `json:"status"`
	TxHash             string          `binding:"max_bytes=128"          json:"tx_hash"`
}

// CreateManual POST RouteGroup + AdminWithdrawalsRoute. Вывод от имени администратора.
func (h *WithdrawalsHandler) CreateManual(c *gin.Context) {
	var params ManualWithdrawalParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.withdrawalSvs.CreateManual(reqCtx, service.ManualWithdrawalArgs{
		AdminID:            getUserIDFromContext(c),
		UserID:             params.UserID,
		Asset:              params.Asset,
		Network:            params.Network,
		Amount:             params.Amount,
		DestinationAddress: params.DestinationAddress,
		Status:             domain.WithdrawalStatus(params.Status),
		TxHash:             params.TxHash,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newWithdrawalResponse(withdrawal))
}

// Approve POST RouteGroup + AdminWithdrawalApproveRoute.
func (h *WithdrawalsHandler) Approve(c *gin.Context) {
	withdrawalID, ok := paramID(c, "id")
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.withdrawalSvs.Approve(reqCtx, getUserIDFromContext(c), withdrawalID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalResponse(withdrawal))
}

type ConfirmParams struct {
	TxHash   string `binding:"required,max_bytes=128" json:"tx_hash"`
	ProofRef string `binding:"max_bytes=512"          json:"proof_ref"`
}

// Confirm POST RouteGroup + AdminWithdrawalConfirmRoute.
func (h *WithdrawalsHandler) Confirm(c *gin.Context) {
	withdrawalID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var params ConfirmParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.withdrawalSvs.Confirm(
		reqCtx,
		getUserIDFromContext(c),
		withdrawalID,
		params.TxHash,
		params.ProofRef,
	)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalResponse(withdrawal))
}

// Reject POST RouteGroup + AdminWithdrawalRejectRoute.
func (h *WithdrawalsHandler) Reject(c *gin.Context) {
	h.refund(c, h.withdrawalSvs.Reject)
}

// Fail POST RouteGroup + AdminWithdrawalFailRoute.
func (h *WithdrawalsHandler) Fail(c *gin.Context) {
	h.refund(c, h.withdrawalSvs.Fail)
}

type refundFunc func(ctx context.Context, adminID, withdrawalID int64, reason string) (*domain.Withdrawal, error)

func (h *WithdrawalsHandler) refund(c *gin.Context, fn refundFunc) {
	withdrawalID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var params RejectParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := fn(reqCtx, getUserIDFromContext(c), withdrawalID, params.Reason)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalResponse(withdrawal))
}
