package middleware

import (
	"strings"

	"github.com/haierkeys/evidence-board-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// Lang selects the message language from the lang query or header; unknown values keep the current one.
// Lang 语言选择中间件
func Lang() gin.HandlerFunc {
	return func(c *gin.Context) {
		var lang string
		if s, exist := c.GetQuery("lang"); exist {
			lang = s
		} else if s = c.GetHeader("lang"); len(s) != 0 {
			lang = s
		}

		if lang != "" {
			lang = strings.ToLower(strings.ReplaceAll(lang, "-", "_"))
			_ = code.SetGlobalDefaultLang(lang)
		}
		c.Next()
	}
}
