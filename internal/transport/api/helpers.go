package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/internal/transport/api/middlewares"
	"github.com/fsdevblog/groph-invest/internal/worker/accrual"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// getUserIDFromContext берет из контекста gin ID текущего юзера. ID устанавливается в middlewares.AuthRequired.
// В случае, если значения в контексте нет или ошибка утверждения типа - вернется 0.
func getUserIDFromContext(c *gin.Context) int64 {
	userIDStr, exist := c.Get(middlewares.CurrentUserIDKey)
	if !exist {
		return 0
	}
	userID, ok := userIDStr.(int64)
	if !ok {
		return 0
	}
	return userID
}

// paramID разбирает положительный числовой параметр маршрута. При ошибке прерывает запрос со статусом 400.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		_ = c.AbortWithError(http.StatusBadRequest, errors.New("invalid "+name)).SetType(gin.ErrorTypePublic)
		return 0, false
	}
	return id, true
}

type PageParams struct {
	Limit  uint `form:"limit"`
	Offset uint `form:"offset"`
}

func (p PageParams) toPage() repoargs.Page {
	return repoargs.Page{Limit: p.Limit, Offset: p.Offset}
}

// bindJSON разбирает тело запроса. Ошибки валидации отдаются со статусом 422, остальные с 400.
func bindJSON(c *gin.Context, params any) bool {
	if bindErr := c.ShouldBindJSON(params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, params any) bool {
	if bindErr := c.ShouldBindQuery(params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return false
	}
	return true
}

func abortWithBindError(c *gin.Context, bindErr error) {
	var valErrs validator.ValidationErrors
	if errors.As(bindErr, &valErrs) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": valErrs.Error()})
		return
	}
	_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
}

// abortWithServiceError переводит ошибку сервиса в http статус. Текст доменных ошибок отдается клиенту,
// остальные ошибки только логируются.
func abortWithServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidVerificationCode):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrWalletLocked):
		status = http.StatusLocked
	case errors.Is(err, domain.ErrPlanInactive), errors.Is(err, domain.ErrDuplicateKey),
		errors.Is(err, accrual.ErrAlreadyRunning):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrVerificationRequired):
		status = http.StatusPreconditionRequired
	}

	errType := gin.ErrorTypePublic
	if status == http.StatusInternalServerError {
		errType = gin.ErrorTypePrivate
	}
	_ = c.AbortWithError(status, err).SetType(errType)
}
