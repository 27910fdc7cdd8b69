package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotExist 目标不存在
	ErrNotExist = errors.New("storage: object does not exist")
	// ErrOutsideRoot 解析后的路径逃逸出根目录（例如符号链接指向根外）
	ErrOutsideRoot = errors.New("storage: path escapes root")
)

// Info 描述一个可服务的对象
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
	Regular bool // 普通文件；目录、设备、管道等为 false
}

// File 是一次请求独占的读取句柄
type File interface {
	io.Reader
	io.Seeker
	io.Closer
}

// Backend 抽象一个虚拟根目录背后的存储
//
// root 与 name 都是后端自身的绝对形式：本地后端为文件系统绝对路径，
// MinIO 后端为 "bucket/key"。
type Backend interface {
	// Kind 返回后端类型，用于日志和 roots 命令
	Kind() string
	// Join 把已经通过字符串校验的相对路径拼接到 root 上
	Join(root, rel string) string
	// Canonical 返回 name 的规范形式，并确认它仍位于 root 之内
	Canonical(ctx context.Context, root, name string) (string, error)
	Stat(ctx context.Context, name string) (Info, error)
	Open(ctx context.Context, name string) (File, error)
	// Probe 检查根目录当前是否可用
	Probe(ctx context.Context, root string) error
}
