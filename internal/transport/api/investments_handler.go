package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type InvestmentsHandler struct {
	investmentSvs InvestmentServicer
	accrual       AccrualRunner
}

func NewInvestmentsHandler(investmentSvs InvestmentServicer, accrual AccrualRunner) *InvestmentsHandler {
	return &InvestmentsHandler{
		investmentSvs: investmentSvs,
		accrual:       accrual,
	}
}

type PurchaseParams struct {
	PlanID int64           `binding:"required,gt=0" json:"plan_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Create POST RouteGroup + InvestmentsRoute. Покупка плана за счет ликвидного баланса.
func (h *InvestmentsHandler) Create(c *gin.Context) {
	var params PurchaseParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	investment, err := h.investmentSvs.PurchasePlan(reqCtx, getUserIDFromContext(c), params.PlanID, params.Amount)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newInvestmentResponse(investment))
}

// Index GET RouteGroup + InvestmentsRoute.
func (h *InvestmentsHandler) Index(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	investments, err := h.investmentSvs.GetByUserID(reqCtx, getUserIDFromContext(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(investments, newInvestmentResponse))
}

// RunAccrual POST RouteGroup + AdminAccrualRunRoute. Внеочередной запуск движка начислений. Таймаут запуска
// задает планировщик.
func (h *InvestmentsHandler) RunAccrual(c *gin.Context) {
	report, err := h.accrual.RunOnce(c)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
