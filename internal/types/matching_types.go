package types

// ResumeAsset 用户当前简历在对象存储中的位置。
// Locator 与 ObjectKey 必须成对出现：记录层只允许整体写入或整体清空，
// 不存在只设置其中一个字段的状态。
type ResumeAsset struct {
	// Locator 外部可访问的带签名URL
	Locator string `json:"locator"`
	// ObjectKey 存储内部的对象键，用于删除操作
	ObjectKey string `json:"object_key"`
}

// JobRelevanceResult 单次匹配查询中一个岗位的相关度结果，不做持久化
type JobRelevanceResult struct {
	JobID    string   `json:"job_id"`
	Title    string   `json:"title"`
	Location string   `json:"location"`
	Skills   []string `json:"skills"`
	Company  string   `json:"company"`
	// Relevancy 相关度得分，范围 [0,100]
	Relevancy float64 `json:"relevancy"`
}
