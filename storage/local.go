package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// LocalBackend 服务本地文件系统上的根目录
type LocalBackend struct{}

// NewLocalBackend 创建本地文件系统后端
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

func (b *LocalBackend) Kind() string { return "local" }

func (b *LocalBackend) Join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// Canonical 解析符号链接后用 filepath.Rel 判断包含关系，避免 HasPrefix 的
// "/srv/audio2" 误判为 "/srv/audio" 子路径的问题
func (b *LocalBackend) Canonical(_ context.Context, root, name string) (string, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", wrapPathErr("resolve root", err)
	}
	realPath, err := filepath.EvalSymlinks(name)
	if err != nil {
		return "", wrapPathErr("resolve path", err)
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil {
		return "", ErrOutsideRoot
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", ErrOutsideRoot
	}
	return realPath, nil
}

func (b *LocalBackend) Stat(_ context.Context, name string) (Info, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return Info{}, wrapPathErr("stat", err)
	}
	return Info{
		Name:    fi.Name(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Regular: fi.Mode().IsRegular(),
	}, nil
}

func (b *LocalBackend) Open(_ context.Context, name string) (File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, wrapPathErr("open", err)
	}
	return f, nil
}

func (b *LocalBackend) Probe(_ context.Context, root string) error {
	fi, err := os.Stat(root)
	if err != nil {
		return wrapPathErr("probe", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("probe: %s is not a directory", root)
	}
	return nil
}

// wrapPathErr 把 fs.ErrNotExist / ENOTDIR 统一映射为 ErrNotExist
func wrapPathErr(op string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("%s: %w", op, ErrNotExist)
	}
	return fmt.Errorf("%s: %w", op, err)
}
