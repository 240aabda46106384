package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/haierkeys/evidence-board-service/pkg/app"
	"github.com/haierkeys/evidence-board-service/pkg/code"
	"github.com/haierkeys/evidence-board-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryWithLogger 创建带日志器的 Recovery 中间件
func RecoveryWithLogger(lg *zap.Logger) gin.HandlerFunc {
	lg = logger.OrNop(lg)
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			var errorMsg string
			switch v := p.(type) {
			case error:
				errorMsg = v.Error()
			default:
				errorMsg = fmt.Sprintf("%v", v)
			}

			lg.Error("Recovered from panic",
				zap.String(logger.FieldPath, c.Request.URL.Path),
				zap.String(logger.FieldMethod, c.Request.Method),
				zap.String("query", c.Request.URL.RawQuery),
				zap.String("ip", c.ClientIP()),
				zap.String(logger.FieldTraceID, GetTraceIDFromGin(c)),
				zap.String("panic", errorMsg),
				zap.String("stack", string(debug.Stack())),
			)

			// 返回统一的错误响应
			app.NewResponse(c).ToResponse(code.ErrorServerInternal.WithDetails(errorMsg))
			c.Abort()
		}()

		c.Next()
	}
}
