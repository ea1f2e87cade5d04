package dberr

import (
	"errors"
	"fmt"

	"DocTrack/modules/kit/errx"
)

// Code 复用 kit 的错误码类型。
type Code = errx.Code

const (
	// CodeMapping 表示类型无法映射（缺少标识字段、嵌套映射冲突、处理器失败）。
	// 首次使用该类型时暴露，不可重试。
	CodeMapping Code = "MAPPING_ERROR"
	// CodeInvalidOperation 表示调用方误用（对没有持久化标识的实体按 id 操作、并发保存等）。
	CodeInvalidOperation Code = "INVALID_OPERATION"
)

// Error 复用通用错误模型。
type Error = errx.Error

// 哨兵错误：只用于 errors.Is 比较，通过 WithData/WithCause 派生新对象。
var (
	ErrMapping          = errx.NewSys(CodeMapping, "实体映射错误")
	ErrInvalidOperation = errx.NewBiz(CodeInvalidOperation, "非法操作")

	// ErrConcurrentSave 表示同一上下文上已有保存在进行。
	ErrConcurrentSave = ErrInvalidOperation.WithData("reason", "concurrent_save").
		WithCause(errors.New("another SaveChanges is in progress on this context"))
)

// Mapping 构造一个带类型名的映射错误。
func Mapping(typeName string, format string, args ...any) *Error {
	cause := fmt.Errorf("type %s: "+format, append([]any{typeName}, args...)...)
	return ErrMapping.WithData("type", typeName).WithCause(cause)
}

// InvalidOperation 构造一个非法操作错误，id 已知时一起带上。
func InvalidOperation(typeName string, id any, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	err := ErrInvalidOperation.WithData("type", typeName)
	if id != nil {
		err = err.WithData("id", id)
		msg = fmt.Sprintf("%s (type=%s, id=%v)", msg, typeName, id)
	} else if typeName != "" {
		msg = fmt.Sprintf("%s (type=%s)", msg, typeName)
	}
	return err.WithCause(errors.New(msg))
}
