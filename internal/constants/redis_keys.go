package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// MatchModulePrefix 匹配模块
	MatchModulePrefix = "match"
	// ResumeModulePrefix 简历模块
	ResumeModulePrefix = "resume"

	// EntityResults 匹配结果实体
	EntityResults = "results"
	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// KeyMatchResults 用户匹配结果缓存 (STRING, JSON)
	// 格式: app:match:results:{userID}
	KeyMatchResults = AppPrefix + ":" + MatchModulePrefix + ":" + EntityResults + ":%s"

	// KeyResumeLock 单用户简历操作锁 (STRING)
	// 格式: app:resume:lock:{userID}
	KeyResumeLock = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityLock + ":%s"
)
