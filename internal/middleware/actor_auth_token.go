package middleware

import (
	"github.com/haierkeys/evidence-board-service/pkg/app"
	"github.com/haierkeys/evidence-board-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// ActorAuthToken 参与者 Token 认证中间件；tm 为空时放行
func ActorAuthToken(tm app.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tm == nil {
			c.Next()
			return
		}

		var token string
		if s := c.GetHeader("Authorization"); len(s) != 0 {
			token = s
		} else if s, exist := c.GetQuery("authorization"); exist {
			token = s
		} else if s, exist := c.GetQuery("token"); exist {
			token = s
		}

		if token == "" {
			app.NewResponse(c).ToResponse(code.ErrorNotAuthorized)
			c.Abort()
			return
		}
		if err := app.SetActorToContext(c, tm, token); err != nil {
			app.NewResponse(c).ToResponse(code.ErrorInvalidAuthToken)
			c.Abort()
			return
		}
		c.Next()
	}
}
