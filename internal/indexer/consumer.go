package indexer

import (
	"context"
	"encoding/json"
	"time"

	"hirebizz-go/internal/config"
	"hirebizz-go/internal/logger"
	"hirebizz-go/internal/storage"
)

// Consumer 消费外部流水线发布的岗位向量消息并写入向量索引
type Consumer struct {
	mq    *storage.RabbitMQ
	index storage.JobVectorIndex
	cfg   *config.RabbitMQConfig
	stop  chan<- struct{}
}

// NewConsumer 创建岗位向量索引消费者
func NewConsumer(mq *storage.RabbitMQ, index storage.JobVectorIndex, cfg *config.RabbitMQConfig) *Consumer {
	return &Consumer{mq: mq, index: index, cfg: cfg}
}

// Start 启动消费，消息处理失败时Nack并重新入队
func (c *Consumer) Start() error {
	stop, err := c.mq.StartConsumer(c.cfg.JobEmbeddingQueue, c.cfg.PrefetchCount, c.handle)
	if err != nil {
		return err
	}
	c.stop = stop
	return nil
}

// Stop 停止消费
func (c *Consumer) Stop() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// handle 处理单条岗位向量消息，返回是否Ack
func (c *Consumer) handle(body []byte) bool {
	var msg storage.JobEmbeddingUpdatedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 格式错误的消息重新入队也无法恢复，确认后丢弃
		logger.Error().Err(err).Msg("解析岗位向量消息失败，丢弃")
		return true
	}
	if msg.JobID == "" || len(msg.Embedding) == 0 {
		logger.Warn().Str("job_id", msg.JobID).Msg("岗位向量消息缺少必要字段，丢弃")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.index.UpsertJobEmbedding(ctx, msg.JobID, msg.Embedding, msg.Payload); err != nil {
		logger.Error().Err(err).Str("job_id", msg.JobID).Msg("写入岗位向量索引失败")
		return false
	}

	logger.Debug().Str("job_id", msg.JobID).Msg("岗位向量已写入索引")
	return true
}
