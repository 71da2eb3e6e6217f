package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hirebizz-go/internal/apperr"
	"hirebizz-go/internal/config"
	"hirebizz-go/internal/constants"
	"hirebizz-go/internal/types"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// releaseLockScript 只有持有者才能释放锁
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// Redis 提供分布式锁与匹配结果缓存功能
type Redis struct {
	client *redis.Client
	cfg    *config.RedisConfig
}

// NewRedis 创建Redis客户端并启用OpenTelemetry追踪
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Address,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	})

	// 注册OpenTelemetry追踪钩子
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis追踪钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	return &Redis{client: client, cfg: cfg}, nil
}

// Client 返回底层Redis客户端实例
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// AcquireResumeLock 获取单用户简历操作锁。
// 成功时返回锁令牌；锁已被占用时返回 ErrOperationInFlight。
func (r *Redis) AcquireResumeLock(ctx context.Context, userID string) (string, error) {
	key := fmt.Sprintf(constants.KeyResumeLock, userID)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, constants.ResumeLockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("获取简历操作锁失败: %w", err)
	}
	if !ok {
		return "", apperr.Wrap(apperr.ErrOperationInFlight, "AcquireResumeLock", userID, "", nil)
	}
	return token, nil
}

// ReleaseResumeLock 释放简历操作锁，令牌不匹配时静默忽略
func (r *Redis) ReleaseResumeLock(ctx context.Context, userID, token string) error {
	key := fmt.Sprintf(constants.KeyResumeLock, userID)
	return r.client.Eval(ctx, releaseLockScript, []string{key}, token).Err()
}

// CacheMatchResults 缓存用户的匹配结果
func (r *Redis) CacheMatchResults(ctx context.Context, userID string, results []types.JobRelevanceResult, ttl time.Duration) error {
	key := fmt.Sprintf(constants.KeyMatchResults, userID)
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("序列化匹配结果失败: %w", err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("缓存匹配结果失败: %w", err)
	}
	return nil
}

// GetCachedMatchResults 读取缓存的匹配结果，未命中时返回 (nil, nil)
func (r *Redis) GetCachedMatchResults(ctx context.Context, userID string) ([]types.JobRelevanceResult, error) {
	key := fmt.Sprintf(constants.KeyMatchResults, userID)
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取匹配结果缓存失败: %w", err)
	}

	var results []types.JobRelevanceResult
	if err := json.Unmarshal(data, &results); err != nil {
		// 缓存内容损坏时当作未命中，删除后重新计算
		r.client.Del(ctx, key)
		return nil, nil
	}
	return results, nil
}

// InvalidateMatchResults 删除用户的匹配结果缓存。
// 简历被替换或删除后旧结果立即失效。
func (r *Redis) InvalidateMatchResults(ctx context.Context, userID string) error {
	key := fmt.Sprintf(constants.KeyMatchResults, userID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("删除匹配结果缓存失败: %w", err)
	}
	return nil
}
