package constants

import "time"

// 匹配流程默认参数
const (
	// DefaultMatchLimit 默认返回的岗位数量
	DefaultMatchLimit = 10
	// DefaultCandidatePoolSize 近似最近邻搜索的默认候选池宽度
	DefaultCandidatePoolSize = 100
	// DefaultVectorDimension 嵌入模型固定的向量维度
	DefaultVectorDimension = 1024
	// RelevancyScale 相似度分数到相关度的线性缩放系数
	RelevancyScale = 100.0
)

// 简历生命周期相关
const (
	// ResumeLockTTL 单用户简历操作锁的过期时间
	ResumeLockTTL = 2 * time.Minute
	// DefaultSignedURLExpiry 简历定位符(带签名URL)的默认有效期
	DefaultSignedURLExpiry = 7 * 24 * time.Hour
)

// 缓存相关
const (
	// DefaultMatchCacheTTL 匹配结果缓存的默认过期时间
	DefaultMatchCacheTTL = 10 * time.Minute
)
