package logx

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"DocTrack/modules/kit/errx"
)

const (
	maxCauseDepth  = 20
	maxStackFrames = 32
)

// ErrorLog 是一条系统错误日志的展开形式。
type ErrorLog struct {
	Error      string
	Code       string
	Msg        string
	Reason     string
	Data       map[string]any
	CauseChain []string
	Origin     string
	Stack      string
}

// BuildErrorLog 展开错误码、上下文、cause 链与最早的栈。
// err 链上没有 *errx.Error 时只有 Error 和 CauseChain。
func BuildErrorLog(err error) ErrorLog {
	if err == nil {
		return ErrorLog{}
	}
	out := ErrorLog{
		Error:      err.Error(),
		CauseChain: causeChain(err),
	}
	e, ok := errx.From(err)
	if !ok {
		return out
	}
	out.Code = e.CodeText()
	out.Msg = e.Msg()
	out.Reason = e.Reason()
	out.Data = e.Data()
	out.Origin, out.Stack = formatStack(firstStack(err))
	return out
}

// causeChain 按深度优先列出 err 之下的每一层，errors.Join 的分支逐个展开。
func causeChain(err error) []string {
	var out []string
	var walk func(error)
	walk = func(cur error) {
		for cur != nil && len(out) < maxCauseDepth {
			if multi, ok := cur.(interface{ Unwrap() []error }); ok {
				for _, branch := range multi.Unwrap() {
					out = append(out, fmt.Sprintf("%T: %v", branch, branch))
					walk(errors.Unwrap(branch))
				}
				return
			}
			cur = errors.Unwrap(cur)
			if cur != nil {
				out = append(out, fmt.Sprintf("%T: %v", cur, cur))
			}
		}
	}
	walk(err)
	return out
}

// firstStack 返回链上第一个带栈的 *errx.Error 的栈。
func firstStack(err error) []uintptr {
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if e, ok := cur.(*errx.Error); ok {
			if pcs := e.Stack(); len(pcs) != 0 {
				return pcs
			}
		}
	}
	return nil
}

func formatStack(pcs []uintptr) (origin string, stack string) {
	if len(pcs) == 0 {
		return "", ""
	}
	frames := runtime.CallersFrames(pcs)
	lines := make([]string, 0, 8)
	for len(lines) < maxStackFrames {
		f, more := frames.Next()
		if f.Function == "" && f.File == "" {
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line))
		if !more {
			break
		}
	}
	if len(lines) == 0 {
		return "", ""
	}
	return lines[0], strings.Join(lines, "\n")
}
