package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type DepositsHandler struct {
	depositSvs DepositServicer
}

func NewDepositsHandler(depositSvs DepositServicer) *DepositsHandler {
	return &DepositsHandler{
		depositSvs: depositSvs,
	}
}

type DepositCreateParams struct {
	PlanID      int64           `binding:"required,gt=0"          json:"plan_id"`
	Asset       string          `binding:"required,asset_code"     json:"asset"`
	Network     string          `binding:"required,asset_code"     json:"network"`
	Amount      decimal.Decimal `json:"amount"`
	ProofRef    string          `binding:"max_bytes=512"          json:"proof_ref"`
	TxHash      string          `binding:"max_bytes=128"          json:"tx_hash"`
	PaymentLink string          `binding:"max_bytes=512"          json:"payment_link"`
}

// Create POST RouteGroup + DepositsRoute. Заявка на депозит, до одобрения администратором балансы не меняются.
func (h *DepositsHandler) Create(c *gin.Context) {
	var params DepositCreateParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	deposit, err := h.depositSvs.Create(reqCtx, service.CreateDepositArgs{
		UserID:      getUserIDFromContext(c),
		PlanID:      params.PlanID,
		Asset:       params.Asset,
		Network:     params.Network,
		Amount:      params.Amount,
		ProofRef:    params.ProofRef,
		TxHash:      params.TxHash,
		PaymentLink: params.PaymentLink,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newDepositResponse(deposit))
}

// Index GET RouteGroup + DepositsRoute.
func (h *DepositsHandler) Index(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	deposits, err := h.depositSvs.GetByUserID(reqCtx, getUserIDFromContext(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(deposits, newDepositResponse))
}

type DepositQueueParams struct {
	PageParams
	Status string `form:"status"`
}

// Queue GET RouteGroup + AdminDepositsRoute. По умолчанию отдает ожидающие одобрения депозиты.
func (h *DepositsHandler) Queue(c *gin.Context) {
	params := DepositQueueParams{Status: string(domain.DepositStatusPending)}
	if !bindQuery(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	deposits, err := h.depositSvs.GetByStatus(reqCtx, domain.DepositStatus(params.Status), params.toPage())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(deposits, newDepositResponse))
}

type DepositApproveParams struct {
	Amount decimal.Decimal `json:"amount"`
}

type DepositApprovalResponse struct {
	Deposit       DepositResponse     `json:"deposit"`
	Investment    *InvestmentResponse `json:"investment,omitempty"`
	ReferralBonus decimal.Decimal     `json:"referral_bonus"`
}

// Approve POST RouteGroup + AdminDepositApproveRoute. Повторное одобрение уже проведенного депозита
// ничего не меняет и отвечает 200.
func (h *DepositsHandler) Approve(c *gin.Context) {
	depositID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var params DepositApproveParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	approval, err := h.depositSvs.Approve(reqCtx, getUserIDFromContext(c), depositID, params.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEntry) {
			c.JSON(http.StatusOK, gin.H{"status": "already_applied"})
			return
		}
		abortWithServiceError(c, err)
		return
	}

	response := DepositApprovalResponse{
		Deposit:       newDepositResponse(approval.Deposit),
		ReferralBonus: approval.ReferralBonus,
	}
	if approval.Investment != nil {
		investment := newInvestmentResponse(approval.Investment)
		response.Investment = &investment
	}
	c.JSON(http.StatusOK, response)
}

type RejectParams struct {
	Reason string `binding:"required,max_bytes=512" json:"reason"`
}

// Reject POST RouteGroup + AdminDepositRejectRoute.
func (h *DepositsHandler) Reject(c *gin.Context) {
	depositID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var params RejectParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	deposit, err := h.depositSvs.Reject(reqCtx, getUserIDFromContext(c), depositID, params.Reason)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDepositResponse(deposit))
}
