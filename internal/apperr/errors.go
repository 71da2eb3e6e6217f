package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别，决定传播策略和HTTP状态码映射
type Kind int

const (
	// KindNotFound 资源不存在（用户/简历/岗位/嵌入向量缺失）
	KindNotFound Kind = iota + 1
	// KindConflict 状态冲突（岗位已收藏、替换时旧对象删除失败等）
	KindConflict
	// KindValidation 请求校验失败（缺少上传内容、维度不匹配、搜索参数非法）
	KindValidation
	// KindUpstream 外部依赖不可用（对象存储/文档库/向量索引）
	KindUpstream
	// KindInconsistency 数据不一致（记录持久化失败后遗留孤儿对象）
	KindInconsistency
)

// Error 带类别的基础错误，作为 errors.Is 的哨兵使用
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// 定义基础错误类型
var (
	ErrUserNotFound             = &Error{Kind: KindNotFound, Message: "用户不存在"}
	ErrJobNotFound              = &Error{Kind: KindNotFound, Message: "岗位不存在"}
	ErrResumeEmbeddingsNotFound = &Error{Kind: KindNotFound, Message: "未找到简历嵌入向量"}
	ErrNothingToDelete          = &Error{Kind: KindNotFound, Message: "没有可删除的简历"}
	ErrObjectNotFound           = &Error{Kind: KindNotFound, Message: "存储对象不存在"}

	ErrJobAlreadySaved    = &Error{Kind: KindConflict, Message: "岗位已收藏"}
	ErrStaleAssetConflict = &Error{Kind: KindConflict, Message: "旧简历对象删除失败，操作已中止"}
	ErrOperationInFlight  = &Error{Kind: KindConflict, Message: "该用户的简历操作正在进行中"}

	ErrMissingUpload           = &Error{Kind: KindValidation, Message: "未提供上传内容"}
	ErrInvalidAsset            = &Error{Kind: KindValidation, Message: "简历资产字段必须成对出现"}
	ErrDimensionMismatch       = &Error{Kind: KindValidation, Message: "嵌入向量维度不匹配"}
	ErrInvalidSearchParameters = &Error{Kind: KindValidation, Message: "搜索参数非法"}

	ErrStorageUnavailable   = &Error{Kind: KindUpstream, Message: "对象存储服务不可用"}
	ErrStorageQuotaExceeded = &Error{Kind: KindUpstream, Message: "对象存储配额已满"}
	ErrIndexUnavailable     = &Error{Kind: KindUpstream, Message: "向量索引服务不可用"}

	ErrDataInconsistency = &Error{Kind: KindInconsistency, Message: "数据不一致，需要对账修复"}
)

// E 包含详细上下文的自定义错误，围绕基础哨兵错误包装
type E struct {
	Base   *Error
	Op     string
	UserID string
	Detail string
	Cause  error
}

func (e *E) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 用户:%s): %s", e.Base.Message, e.Op, e.UserID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 用户:%s)", e.Base.Message, e.Op, e.UserID)
}

func (e *E) Unwrap() error {
	return e.Base
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *E) Is(target error) bool {
	if errors.Is(e.Base, target) {
		return true
	}
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// Wrap 构造一个围绕基础错误的上下文错误
func Wrap(base *Error, op, userID, detail string, cause error) error {
	return &E{Base: base, Op: op, UserID: userID, Detail: detail, Cause: cause}
}

// KindOf 返回错误所属类别；非本包定义的错误返回0值
func KindOf(err error) Kind {
	var base *Error
	if errors.As(err, &base) {
		return base.Kind
	}
	return 0
}

// PublicMessage 返回可以直接暴露给调用方的错误消息。
// 非本包定义的错误一律返回统一的内部错误文案，避免泄漏内部细节。
func PublicMessage(err error) string {
	var base *Error
	if errors.As(err, &base) {
		return base.Message
	}
	return "内部错误"
}

// HTTPStatus 将错误类别映射为HTTP状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindInconsistency:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
