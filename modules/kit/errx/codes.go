package errx

// 这里只放“跨组件统一”的系统类错误码。
//
// 约束：
// - 用于技术类错误归一化（存储不可用、超时、调用方取消等）
// - 映射/状态机这类领域错误码由各自的包定义（见 internal/shared/dberr），不在 kit 集中

const (
	// CodeInternal 表示不可预期的内部错误（兜底）。
	CodeInternal Code = "INTERNAL_ERROR"
	// CodeUnavailable 表示存储/驱动不可用。
	CodeUnavailable Code = "STORE_UNAVAILABLE"
	// CodeTimeout 表示调用超时。
	CodeTimeout Code = "TIMEOUT"
	// CodeCanceled 表示调用方主动取消。
	CodeCanceled Code = "CANCELED"
	// CodeInvalidArgument 表示入参非法。
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// 统一系统类哨兵错误（允许 WithData/WithCause 派生新对象）。
var (
	ErrInternal        = NewSys(CodeInternal, "内部错误")
	ErrUnavailable     = NewSys(CodeUnavailable, "存储不可用")
	ErrTimeout         = NewSys(CodeTimeout, "调用超时")
	ErrCanceled        = NewSys(CodeCanceled, "调用已取消")
	ErrInvalidArgument = NewBiz(CodeInvalidArgument, "参数非法")
)
