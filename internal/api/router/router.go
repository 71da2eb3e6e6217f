package router

import (
	"context"

	"hirebizz-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由。
// apiKey非空时为业务路由启用API Key认证。
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, jobHandler *handler.JobHandler, apiKey string) {
	// 健康检查不走认证
	h.GET("/api/v1/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")
	if apiKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
				return key == apiKey, nil
			}),
		))
	}

	users := api.Group("/users/:user_id")
	users.PUT("/resume", resumeHandler.HandleReplaceResume)
	users.DELETE("/resume", resumeHandler.HandleDeleteResume)
	users.GET("/relevant-jobs", jobHandler.HandleRelevantJobs)
	users.POST("/saved-jobs", jobHandler.HandleSaveJob)
	users.GET("/saved-jobs", jobHandler.HandleSavedJobs)
}
