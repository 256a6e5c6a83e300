package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"inventario-go/pkg/log"
)

// RequestLogger records one structured log line per request. Bodies are not
// logged: uploads and archives are large binaries.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		log.Infow("http request",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
	}
}
