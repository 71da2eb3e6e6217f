package models

import (
	"time"

	"gorm.io/datatypes"
)

// User 用户主记录（hirebizz库）。
// ResumeLocator 与 ResumeObjectKey 必须同时为空或同时非空，
// 半设置状态视为数据不一致。
type User struct {
	UserID   string `gorm:"column:user_id;type:varchar(36);primaryKey" json:"user_id"`
	Name     string `gorm:"column:name;type:varchar(255)" json:"name"`
	Email    string `gorm:"column:email;type:varchar(255);uniqueIndex" json:"email"`

	// 当前简历资产，成对字段
	ResumeLocator   *string `gorm:"column:resume_locator;type:text" json:"resume_locator,omitempty"`
	ResumeObjectKey *string `gorm:"column:resume_object_key;type:varchar(512)" json:"resume_object_key,omitempty"`

	// SavedJobIDs 已收藏的岗位ID列表 (JSON数组)
	SavedJobIDs datatypes.JSON `gorm:"column:saved_job_ids;type:json" json:"saved_job_ids,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// Job 岗位记录（hirebizz库）
type Job struct {
	JobID       string         `gorm:"column:job_id;type:varchar(36);primaryKey" json:"job_id"`
	Title       string         `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Location    string         `gorm:"column:location;type:varchar(255)" json:"location"`
	Company     string         `gorm:"column:company;type:varchar(255)" json:"company"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Skills      datatypes.JSON `gorm:"column:skills;type:json" json:"skills,omitempty"` // 技能列表 (JSON数组)

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Job) TableName() string {
	return "jobs"
}

// ResumeEmbedding 外部分析流水线写入的简历嵌入向量集（resume-analysis库，本服务只读）。
// Embeddings 是向量数组的JSON表示，一份简历可能对应多个分块向量。
type ResumeEmbedding struct {
	ID           uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID       string         `gorm:"column:user_id;type:varchar(36);uniqueIndex;not null" json:"user_id"`
	Embeddings   datatypes.JSON `gorm:"column:embeddings;type:json" json:"embeddings"`
	ModelVersion string         `gorm:"column:model_version;type:varchar(64)" json:"model_version"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (ResumeEmbedding) TableName() string {
	return "resume_embeddings"
}
