package handler

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"hirebizz-go/internal/matcher"
	"hirebizz-go/internal/metrics"
	"hirebizz-go/internal/storage"
	"hirebizz-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// JobHandler 负责处理岗位匹配与收藏相关的请求。
type JobHandler struct {
	matchSvc *matcher.Service
	userDB   *storage.MySQL
	redis    *storage.Redis
	cacheTTL time.Duration
	logger   *log.Logger
}

// NewJobHandler 创建一个新的 JobHandler 实例。
func NewJobHandler(matchSvc *matcher.Service, userDB *storage.MySQL, redis *storage.Redis, cacheTTL time.Duration) *JobHandler {
	return &JobHandler{
		matchSvc: matchSvc,
		userDB:   userDB,
		redis:    redis,
		cacheTTL: cacheTTL,
		logger:   log.New(os.Stdout, "[JobHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// HandleRelevantJobs 处理岗位匹配请求。
// GET /api/v1/users/:user_id/relevant-jobs
func (h *JobHandler) HandleRelevantJobs(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "user_id 不能为空"})
		return
	}

	// 先查缓存，简历变更时缓存会被主动失效
	if cached, err := h.redis.GetCachedMatchResults(ctx, userID); err == nil && cached != nil {
		metrics.MatchCacheHits.WithLabelValues("hit").Inc()
		c.JSON(consts.StatusOK, map[string]interface{}{
			"message": "匹配成功 (来自缓存)",
			"data":    cached,
		})
		return
	}
	metrics.MatchCacheHits.WithLabelValues("miss").Inc()

	results, err := h.matchSvc.MatchJobsForUser(ctx, userID)
	if err != nil {
		h.logger.Printf("岗位匹配失败, 用户: %s: %v", userID, err)
		respondError(c, err)
		return
	}

	if err := h.redis.CacheMatchResults(ctx, userID, results, h.cacheTTL); err != nil {
		h.logger.Printf("缓存匹配结果失败, 用户: %s: %v", userID, err)
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"message": "匹配成功",
		"data":    results,
	})
}

// HandleSaveJob 处理收藏岗位请求。
// POST /api/v1/users/:user_id/saved-jobs
func (h *JobHandler) HandleSaveJob(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "user_id 不能为空"})
		return
	}

	var req struct {
		JobID string `json:"job_id"`
	}
	if err := c.BindJSON(&req); err != nil || req.JobID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "job_id 不能为空"})
		return
	}

	if err := h.userDB.SaveJobForUser(ctx, userID, req.JobID); err != nil {
		h.logger.Printf("收藏岗位失败, 用户: %s, 岗位: %s: %v", userID, req.JobID, err)
		respondError(c, err)
		return
	}

	c.JSON(consts.StatusOK, map[string]string{"message": "岗位已收藏"})
}

// HandleSavedJobs 处理查询收藏岗位列表的请求。
// GET /api/v1/users/:user_id/saved-jobs
func (h *JobHandler) HandleSavedJobs(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "user_id 不能为空"})
		return
	}

	jobs, err := h.userDB.GetSavedJobs(ctx, userID)
	if err != nil {
		h.logger.Printf("查询收藏岗位失败, 用户: %s: %v", userID, err)
		respondError(c, err)
		return
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"message": "查询成功",
		"data":    toJobViews(jobs),
	})
}

// jobView 收藏岗位的响应视图
type jobView struct {
	JobID    string   `json:"job_id"`
	Title    string   `json:"title"`
	Location string   `json:"location"`
	Company  string   `json:"company"`
	Skills   []string `json:"skills"`
}

// toJobViews 将岗位记录转换为响应视图
func toJobViews(jobs []models.Job) []jobView {
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		var skills []string
		if len(j.Skills) > 0 {
			_ = json.Unmarshal(j.Skills, &skills)
		}
		views = append(views, jobView{
			JobID:    j.JobID,
			Title:    j.Title,
			Location: j.Location,
			Company:  j.Company,
			Skills:   skills,
		})
	}
	return views
}
