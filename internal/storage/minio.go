package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"hirebizz-go/internal/apperr"
	"hirebizz-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// PutResume 上传简历对象并返回带签名定位符与对象键。
	// 对象键格式: {ownerID}/{originalName}
	PutResume(ctx context.Context, ownerID, originalName string, reader io.Reader, size int64) (locator string, objectKey string, err error)

	// DeleteObject 删除对象。对象不存在时返回 apperr.ErrObjectNotFound。
	DeleteObject(ctx context.Context, objectKey string) error

	// PresignedLocator 为已存在的对象生成新的带签名定位符
	PresignedLocator(ctx context.Context, objectKey string) (string, error)
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
	expiry time.Duration
	logger *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	logger.Printf("[MinIO] Initializing MinIO client with endpoint: %s, bucket: %s", cfg.Endpoint, cfg.BucketName)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.Printf("[MinIO] Initialization failed: %v", err)
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client: client,
		cfg:    cfg,
		bucket: cfg.BucketName,
		expiry: time.Duration(cfg.SignedURLExpireHours) * time.Hour,
		logger: logger,
	}

	if err := m.ensureBucketExists(cfg.BucketName, cfg.Location); err != nil {
		logger.Printf("[MinIO] Failed to ensure bucket %s exists: %v", cfg.BucketName, err)
		return nil, fmt.Errorf("确保简历存储桶 %s 存在失败: %w", cfg.BucketName, err)
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Printf("[MinIO] Bucket %s does not exist, attempting to create...", bucketName)
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] Bucket %s created successfully.", bucketName)
	}
	return nil
}

// PutResume 上传简历对象并生成带签名定位符
func (m *MinIO) PutResume(ctx context.Context, ownerID, originalName string, reader io.Reader, size int64) (string, string, error) {
	if originalName == "" {
		originalName = "resume.pdf"
	}
	objectKey := fmt.Sprintf("%s/%s", ownerID, originalName)
	contentType := getContentType(filepath.Ext(originalName))

	if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
		m.logger.Printf("[MinIO-PutResume] Uploading: ObjectKey='%s', Size=%d, ContentType='%s', Bucket='%s'",
			objectKey, size, contentType, m.bucket)
	}

	info, err := m.client.PutObject(ctx, m.bucket, objectKey, reader, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
			m.logger.Printf("[MinIO-PutResume] Error uploading %s: %v", objectKey, err)
		}
		return "", "", mapMinioError("PutResume", ownerID, objectKey, err)
	}

	locator, err := m.PresignedLocator(ctx, objectKey)
	if err != nil {
		return "", "", err
	}

	if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
		m.logger.Printf("[MinIO-PutResume] Successfully uploaded %s, ETag: %s, Size: %d", objectKey, info.ETag, info.Size)
	}
	return locator, objectKey, nil
}

// PresignedLocator 生成对象的带签名GET URL
func (m *MinIO) PresignedLocator(ctx context.Context, objectKey string) (string, error) {
	presignedURL, err := m.client.PresignedGetObject(ctx, m.bucket, objectKey, m.expiry, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrStorageUnavailable, "PresignedLocator", "", objectKey, err)
	}
	return presignedURL.String(), nil
}

// DeleteObject 删除对象。
// 先Stat确认对象存在，不存在时返回 ErrObjectNotFound，
// 让上层区分"对象已消失"与"存储不可用"。
func (m *MinIO) DeleteObject(ctx context.Context, objectKey string) error {
	if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
		m.logger.Printf("[MinIO-DeleteObject] Deleting: ObjectKey='%s', Bucket='%s'", objectKey, m.bucket)
	}

	_, err := m.client.StatObject(ctx, m.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return mapMinioError("DeleteObject", "", objectKey, err)
	}

	err = m.client.RemoveObject(ctx, m.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
			m.logger.Printf("[MinIO-DeleteObject] Error deleting %s: %v", objectKey, err)
		}
		return mapMinioError("DeleteObject", "", objectKey, err)
	}
	return nil
}

// mapMinioError 将MinIO错误映射到统一错误类别
func mapMinioError(op, userID, objectKey string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
		return apperr.Wrap(apperr.ErrObjectNotFound, op, userID, objectKey, err)
	case resp.Code == "QuotaExceeded" || resp.StatusCode == http.StatusInsufficientStorage:
		return apperr.Wrap(apperr.ErrStorageQuotaExceeded, op, userID, objectKey, err)
	default:
		return apperr.Wrap(apperr.ErrStorageUnavailable, op, userID, objectKey, err)
	}
}

// getContentType 根据扩展名推断内容类型
func getContentType(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
