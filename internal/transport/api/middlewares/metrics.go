package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
)

type HTTPRecorder interface {
	HTTPRequest(method, route string, status int, duration time.Duration)
}

// Metrics учитывает запросы по шаблону маршрута. Запросы к несуществующим маршрутам не учитываются.
func Metrics(recorder HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()

		c.Next()

		if route == "" {
			return
		}
		recorder.HTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
