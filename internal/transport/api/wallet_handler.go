package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	walletSvs WalletServicer
	ledgerSvs LedgerServicer
}

func NewWalletHandler(walletSvs WalletServicer, ledgerSvs LedgerServicer) *WalletHandler {
	return &WalletHandler{
		walletSvs: walletSvs,
		ledgerSvs: ledgerSvs,
	}
}

// Show GET RouteGroup + WalletRoute.
func (h *WalletHandler) Show(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	wallet, err := h.walletSvs.GetWallet(reqCtx, getUserIDFromContext(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWalletResponse(wallet))
}

type LedgerParams struct {
	PageParams
	Types []string  `form:"type"`
	Asset string    `binding:"omitempty,asset_code" form:"asset"`
	From  time.Time `form:"from"`
	To    time.Time `form:"to"`
}

func (p LedgerParams) toFilter() repoargs.LedgerFilter {
	filter := repoargs.LedgerFilter{
		Asset: strings.ToUpper(strings.TrimSpace(p.Asset)),
		Page:  p.toPage(),
	}
	for _, raw := range p.Types {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, domain.EntryType(strings.ToUpper(t)))
			}
		}
	}
	if !p.From.IsZero() {
		filter.From = &p.From
	}
	if !p.To.IsZero() {
		filter.To = &p.To
	}
	return filter
}

// Ledger GET RouteGroup + LedgerRoute. Журнал текущего пользователя от новых записей к старым.
func (h *WalletHandler) Ledger(c *gin.Context) {
	var params LedgerParams
	if !bindQuery(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	entries, err := h.ledgerSvs.GetLedger(reqCtx, getUserIDFromContext(c), params.toFilter())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(entries, newLedgerEntryResponse))
}

type FreezeParams struct {
	Reason string `binding:"max_bytes=512" json:"reason"`
}

// Freeze POST RouteGroup + AdminWalletFreezeRoute.
func (h *WalletHandler) Freeze(c *gin.Context) {
	userID, ok := paramID(c, "userID")
	if !ok {
		return
	}
	var params FreezeParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	wallet, err := h.walletSvs.Freeze(reqCtx, getUserIDFromContext(c), userID, params.Reason)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWalletResponse(wallet))
}

// Unfreeze POST RouteGroup + AdminWalletUnfreezeRoute.
func (h *WalletHandler) Unfreeze(c *gin.Context) {
	userID, ok := paramID(c, "userID")
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	wallet, err := h.walletSvs.Unfreeze(reqCtx, getUserIDFromContext(c), userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWalletResponse(wallet))
}

type AdjustParams struct {
	Asset         string          `binding:"required,asset_code"     json:"asset"`
	Network       string          `binding:"required,asset_code"     json:"network"`
	Amount        decimal.Decimal `json:"amount"`
	InvestedDelta decimal.Decimal `json:"invested_delta"`
	Reason        string          `binding:"required,max_bytes=512" json:"reason"`
}

// Adjust POST RouteGroup + AdminWalletAdjustRoute. Ручная корректировка баланса записью ADMIN_ADJUSTMENT.
func (h *WalletHandler) Adjust(c *gin.Context) {
	userID, ok := paramID(c, "userID")
	if !ok {
		return
	}
	var params AdjustParams
	if !bindJSON(c, &params) {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	entry, err := h.walletSvs.AdjustBalance(reqCtx, service.AdjustBalanceArgs{
		AdminID:       getUserIDFromContext(c),
		UserID:        userID,
		Asset:         params.Asset,
		Network:       params.Network,
		Amount:        params.Amount,
		InvestedDelta: params.InvestedDelta,
		Reason:        params.Reason,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLedgerEntryResponse(entry))
}

// Reconcile GET RouteGroup + AdminWalletReconcileRoute. Сверка журнала с кошельком пользователя.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	userID, ok := paramID(c, "userID")
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	report, err := h.ledgerSvs.Reconcile(reqCtx, userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
