package storage

import "time"

// ResumeReplacedMessage 简历被替换后发布，触发外部流水线重新解析与嵌入
type ResumeReplacedMessage struct {
	UserID     string    `json:"user_id"`
	ObjectKey  string    `json:"object_key"`
	Locator    string    `json:"locator"`
	ReplacedAt time.Time `json:"replaced_at"`
}

// ResumeDeletedMessage 简历被删除后发布，通知外部流水线清理派生数据
type ResumeDeletedMessage struct {
	UserID    string    `json:"user_id"`
	ObjectKey string    `json:"object_key"`
	DeletedAt time.Time `json:"deleted_at"`
}

// OrphanedBlobMessage 新对象已上传但记录更新失败时发布，供对账流程消费。
// 对账清理本身不在本服务内实现。
type OrphanedBlobMessage struct {
	UserID     string    `json:"user_id"`
	ObjectKey  string    `json:"object_key"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// JobEmbeddingUpdatedMessage 外部流水线产出岗位向量后发布，由索引消费者写入向量索引
type JobEmbeddingUpdatedMessage struct {
	JobID     string                 `json:"job_id"`
	Embedding []float64              `json:"embedding"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}
