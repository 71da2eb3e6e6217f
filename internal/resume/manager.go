package resume

import (
	"context"
	"errors"
	"io"
	"time"

	"hirebizz-go/internal/apperr"
	"hirebizz-go/internal/logger"
	"hirebizz-go/internal/metrics"
	"hirebizz-go/internal/storage"
	"hirebizz-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var resumeTracer = otel.Tracer("hirebizz-go/resume")

// AssetRecords 用户记录中简历资产的读写接口
type AssetRecords interface {
	GetResumeAsset(ctx context.Context, userID string) (*types.ResumeAsset, error)
	SetResumeAsset(ctx context.Context, userID string, asset types.ResumeAsset) error
	ClearResumeAsset(ctx context.Context, userID string) error
}

// MatchCache 匹配结果缓存的失效接口
type MatchCache interface {
	InvalidateMatchResults(ctx context.Context, userID string) error
}

// Manager 简历生命周期管理器。
// 替换与删除都遵循先删旧对象再写新状态的顺序，保证任意时刻
// 一个用户在对象存储中至多存在一个简历对象。
type Manager struct {
	records AssetRecords
	blobs   storage.ObjectStorage
	events  storage.EventPublisher
	cache   MatchCache
}

// NewManager 创建简历生命周期管理器
func NewManager(records AssetRecords, blobs storage.ObjectStorage, events storage.EventPublisher, cache MatchCache) *Manager {
	return &Manager{
		records: records,
		blobs:   blobs,
		events:  events,
		cache:   cache,
	}
}

// Replace 上传新简历并替换用户当前的简历资产。
//
// 流程: 读取当前资产 -> 删除旧对象 -> 上传新对象 -> 原子更新记录。
// 旧对象删除失败（对象不存在除外）时整个操作中止，记录保持原状，
// 返回 ErrStaleAssetConflict。新对象已上传但记录更新失败时，
// 新对象成为孤儿：计数、记录日志并发布对账事件后返回错误。
func (m *Manager) Replace(ctx context.Context, userID, originalName string, reader io.Reader, size int64) (*types.ResumeAsset, error) {
	ctx, span := resumeTracer.Start(ctx, "Resume.Replace",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if reader == nil || size <= 0 {
		metrics.ResumeOperations.WithLabelValues("replace", "validation_failed").Inc()
		return nil, apperr.Wrap(apperr.ErrMissingUpload, "Replace", userID, "", nil)
	}

	current, err := m.records.GetResumeAsset(ctx, userID)
	if err != nil {
		metrics.ResumeOperations.WithLabelValues("replace", "read_failed").Inc()
		return nil, err
	}

	// 先删旧对象，失败则中止，绝不留下两个活动对象
	if current != nil {
		if err := m.blobs.DeleteObject(ctx, current.ObjectKey); err != nil {
			if errors.Is(err, apperr.ErrObjectNotFound) {
				// 对象已经消失，记录与存储的最终状态一致，继续替换
				logger.Warn().
					Str("user_id", userID).
					Str("object_key", current.ObjectKey).
					Msg("旧简历对象已不存在，跳过删除")
			} else {
				metrics.ResumeOperations.WithLabelValues("replace", "stale_delete_failed").Inc()
				return nil, apperr.Wrap(apperr.ErrStaleAssetConflict, "Replace", userID, current.ObjectKey, err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		metrics.ResumeOperations.WithLabelValues("replace", "canceled").Inc()
		return nil, err
	}

	locator, uploadedKey, err := m.blobs.PutResume(ctx, userID, originalName, reader, size)
	if err != nil {
		metrics.ResumeOperations.WithLabelValues("replace", "upload_failed").Inc()
		return nil, err
	}

	// 对象键以定位符为准还原，保证记录中的两个字段相互一致
	objectKey, err := LocatorToKey(userID, locator)
	if err != nil {
		objectKey = uploadedKey
	}
	if objectKey != uploadedKey {
		logger.Warn().
			Str("user_id", userID).
			Str("derived_key", objectKey).
			Str("uploaded_key", uploadedKey).
			Msg("定位符还原的对象键与上传键不一致")
		objectKey = uploadedKey
	}

	asset := types.ResumeAsset{Locator: locator, ObjectKey: objectKey}

	// 上下文已取消时不再写记录，直接按孤儿对象处理
	if err := ctx.Err(); err != nil {
		m.reportOrphan(userID, objectKey, "上下文在记录更新前取消")
		metrics.ResumeOperations.WithLabelValues("replace", "canceled").Inc()
		return nil, err
	}

	if err := m.records.SetResumeAsset(ctx, userID, asset); err != nil {
		m.reportOrphan(userID, objectKey, "记录更新失败: "+err.Error())
		metrics.ResumeOperations.WithLabelValues("replace", "persist_failed").Inc()
		return nil, apperr.Wrap(apperr.ErrDataInconsistency, "Replace", userID, objectKey, err)
	}

	m.afterMutation(ctx, userID)
	if err := m.events.PublishResumeReplaced(ctx, storage.ResumeReplacedMessage{
		UserID:     userID,
		ObjectKey:  objectKey,
		Locator:    locator,
		ReplacedAt: time.Now(),
	}); err != nil {
		// 事件丢失不影响替换结果，外部流水线可通过对账补偿
		logger.Error().Err(err).
			Str("user_id", userID).
			Msg("发布简历替换事件失败")
	}

	metrics.ResumeOperations.WithLabelValues("replace", "success").Inc()
	return &asset, nil
}

// Delete 删除用户当前的简历资产。
// 用户没有简历时返回 ErrNothingToDelete；对象删除失败时记录保持原状。
func (m *Manager) Delete(ctx context.Context, userID string) error {
	ctx, span := resumeTracer.Start(ctx, "Resume.Delete",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	current, err := m.records.GetResumeAsset(ctx, userID)
	if err != nil {
		metrics.ResumeOperations.WithLabelValues("delete", "read_failed").Inc()
		return err
	}
	if current == nil {
		metrics.ResumeOperations.WithLabelValues("delete", "nothing_to_delete").Inc()
		return apperr.Wrap(apperr.ErrNothingToDelete, "Delete", userID, "", nil)
	}

	if err := m.blobs.DeleteObject(ctx, current.ObjectKey); err != nil {
		if errors.Is(err, apperr.ErrObjectNotFound) {
			logger.Warn().
				Str("user_id", userID).
				Str("object_key", current.ObjectKey).
				Msg("简历对象已不存在，仅清理记录")
		} else {
			metrics.ResumeOperations.WithLabelValues("delete", "blob_delete_failed").Inc()
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		metrics.ResumeOperations.WithLabelValues("delete", "canceled").Inc()
		return err
	}

	if err := m.records.ClearResumeAsset(ctx, userID); err != nil {
		metrics.ResumeOperations.WithLabelValues("delete", "persist_failed").Inc()
		return err
	}

	m.afterMutation(ctx, userID)
	if err := m.events.PublishResumeDeleted(ctx, storage.ResumeDeletedMessage{
		UserID:    userID,
		ObjectKey: current.ObjectKey,
		DeletedAt: time.Now(),
	}); err != nil {
		logger.Error().Err(err).
			Str("user_id", userID).
			Msg("发布简历删除事件失败")
	}

	metrics.ResumeOperations.WithLabelValues("delete", "success").Inc()
	return nil
}

// afterMutation 简历变更后让旧的匹配结果缓存失效
func (m *Manager) afterMutation(ctx context.Context, userID string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.InvalidateMatchResults(ctx, userID); err != nil {
		logger.Error().Err(err).
			Str("user_id", userID).
			Msg("失效匹配结果缓存失败")
	}
}

// reportOrphan 上报孤儿对象：计数、日志、对账事件。
// 使用独立上下文，保证原始请求取消后依然能上报。
func (m *Manager) reportOrphan(userID, objectKey, reason string) {
	metrics.OrphanedBlobs.Inc()
	logger.Error().
		Str("user_id", userID).
		Str("object_key", objectKey).
		Str("reason", reason).
		Msg("检测到孤儿简历对象")

	if m.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.events.PublishOrphanedBlob(ctx, storage.OrphanedBlobMessage{
		UserID:     userID,
		ObjectKey:  objectKey,
		Reason:     reason,
		OccurredAt: time.Now(),
	}); err != nil {
		logger.Error().Err(err).
			Str("user_id", userID).
			Str("object_key", objectKey).
			Msg("发布孤儿对象事件失败")
	}
}
