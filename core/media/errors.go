package media

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRoot 未知的 slug
	ErrInvalidRoot = errors.New("invalid directory")
	// ErrTraversal 请求路径未通过安全检查
	ErrTraversal = errors.New("invalid path")
	// ErrNotFound 目标不存在或不是普通文件
	ErrNotFound = errors.New("file not found")
	// ErrUnsatisfiableRange Range 起点超出文件大小
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
	// ErrStreamAborted 客户端中途断开，不算错误
	ErrStreamAborted = errors.New("stream aborted by client")
	// ErrInvalidJSON JSON 附属文件内容无效
	ErrInvalidJSON = errors.New("invalid json file")
)

// ConfigError 根目录配置错误，只在启动时出现且是致命的
type ConfigError struct {
	Entry  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid audio root %q: %s", e.Entry, e.Reason)
}

// IOFailure 打开或读取文件时的意外错误
//
// Started 表示响应头已经发出：此时无法再改写状态码，只能终止连接。
type IOFailure struct {
	Op      string
	Err     error
	Started bool
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }
