package handler

import (
	"hirebizz-go/internal/apperr"

	"github.com/cloudwego/hertz/pkg/app"
)

// respondError 将业务错误按类别映射为HTTP响应。
// 响应体只暴露可公开的错误文案，内部细节留在日志与追踪里。
func respondError(c *app.RequestContext, err error) {
	c.JSON(apperr.HTTPStatus(err), map[string]string{
		"error": apperr.PublicMessage(err),
	})
}
