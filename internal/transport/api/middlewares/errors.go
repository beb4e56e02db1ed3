package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// statusErrorText текст ответа для ошибок, детали которых не отдаются клиенту.
func statusErrorText(status int) string {
	switch status {
	case http.StatusPaymentRequired:
		return "insufficient funds"
	case http.StatusLocked:
		return "wallet is locked"
	case http.StatusPreconditionRequired:
		return "verification code required"
	}
	if text := http.StatusText(status); text != "" && status < http.StatusInternalServerError {
		return strings.ToLower(text)
	}
	return "internal server error"
}

// Errors отдает клиенту первую ошибку, накопленную обработчиками. Текст публичных ошибок (gin.ErrorTypePublic)
// отдается как есть, для остальных только статус.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		firstErr := c.Errors[0]
		var msg string
		if firstErr.IsType(gin.ErrorTypePublic) {
			msg = firstErr.Error()
		} else {
			msg = statusErrorText(c.Writer.Status())
		}

		accept := c.GetHeader("Accept")
		contentType := c.GetHeader("Content-Type")
		if strings.Contains(accept, "application/json") || strings.Contains(contentType, "application/json") {
			c.JSON(c.Writer.Status(), gin.H{"error": msg})
		} else {
			c.String(c.Writer.Status(), msg)
		}
		c.Abort()
	}
}
