package handler

import (
	"context"
	"errors"
	"log"
	"os"

	"hirebizz-go/internal/apperr"
	"hirebizz-go/internal/resume"
	"hirebizz-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ResumeHandler 负责处理简历生命周期相关的请求。
type ResumeHandler struct {
	manager *resume.Manager
	redis   *storage.Redis
	logger  *log.Logger
}

// NewResumeHandler 创建一个新的 ResumeHandler 实例。
func NewResumeHandler(manager *resume.Manager, redis *storage.Redis) *ResumeHandler {
	return &ResumeHandler{
		manager: manager,
		redis:   redis,
		logger:  log.New(os.Stdout, "[ResumeHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// HandleReplaceResume 处理简历上传/替换请求。
// PUT /api/v1/users/:user_id/resume
func (h *ResumeHandler) HandleReplaceResume(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "user_id 不能为空"})
		return
	}

	fileHeader, err := c.FormFile("resume")
	if err != nil {
		respondError(c, apperr.Wrap(apperr.ErrMissingUpload, "HandleReplaceResume", userID, "", err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Printf("打开上传文件失败, 用户: %s: %v", userID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "读取上传文件失败"})
		return
	}
	defer file.Close()

	// 单用户锁：同一用户的替换/删除操作串行执行
	token, err := h.redis.AcquireResumeLock(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrOperationInFlight) {
			respondError(c, err)
			return
		}
		h.logger.Printf("获取简历操作锁失败, 用户: %s: %v", userID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "内部错误"})
		return
	}
	defer func() {
		if err := h.redis.ReleaseResumeLock(context.Background(), userID, token); err != nil {
			h.logger.Printf("释放简历操作锁失败, 用户: %s: %v", userID, err)
		}
	}()

	asset, err := h.manager.Replace(ctx, userID, fileHeader.Filename, file, fileHeader.Size)
	if err != nil {
		h.logger.Printf("简历替换失败, 用户: %s: %v", userID, err)
		respondError(c, err)
		return
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"message": "简历已更新",
		"resume": map[string]string{
			"locator":    asset.Locator,
			"object_key": asset.ObjectKey,
		},
	})
}

// HandleDeleteResume 处理简历删除请求。
// DELETE /api/v1/users/:user_id/resume
func (h *ResumeHandler) HandleDeleteResume(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "user_id 不能为空"})
		return
	}

	token, err := h.redis.AcquireResumeLock(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrOperationInFlight) {
			respondError(c, err)
			return
		}
		h.logger.Printf("获取简历操作锁失败, 用户: %s: %v", userID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "内部错误"})
		return
	}
	defer func() {
		if err := h.redis.ReleaseResumeLock(context.Background(), userID, token); err != nil {
			h.logger.Printf("释放简历操作锁失败, 用户: %s: %v", userID, err)
		}
	}()

	if err := h.manager.Delete(ctx, userID); err != nil {
		h.logger.Printf("简历删除失败, 用户: %s: %v", userID, err)
		respondError(c, err)
		return
	}

	c.JSON(consts.StatusOK, map[string]string{"message": "简历已删除"})
}
