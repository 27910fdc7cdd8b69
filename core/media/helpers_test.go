package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"audioshare/storage"

	"github.com/stretchr/testify/require"
)

// countingBackend 统计 Open/Close 次数，可选地让读取变慢或在指定偏移处失败
type countingBackend struct {
	*storage.LocalBackend
	opens     atomic.Int64
	closes    atomic.Int64
	readDelay time.Duration
	failAfter int64 // >0 时读到该偏移后返回错误
}

func newCountingBackend() *countingBackend {
	return &countingBackend{LocalBackend: storage.NewLocalBackend()}
}

func (b *countingBackend) Open(ctx context.Context, name string) (storage.File, error) {
	f, err := b.LocalBackend.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	b.opens.Add(1)
	return &countingFile{File: f, backend: b}, nil
}

type countingFile struct {
	storage.File
	backend *countingBackend
	read    int64
}

var errDiskGone = errors.New("input/output error")

func (f *countingFile) Read(p []byte) (int, error) {
	if f.backend.readDelay > 0 {
		time.Sleep(f.backend.readDelay)
	}
	if f.backend.failAfter > 0 && f.read >= f.backend.failAfter {
		return 0, errDiskGone
	}
	n, err := f.File.Read(p)
	f.read += int64(n)
	return n, err
}

func (f *countingFile) Close() error {
	f.backend.closes.Add(1)
	return f.File.Close()
}

func writeFixture(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0755))
	require.NoError(t, os.WriteFile(name, data, 0644))
}

// patterned 生成可按偏移校验内容的数据
func patterned(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// newTestRoot 在临时目录下创建根目录并返回对应的 VirtualRoot
func newTestRoot(t *testing.T, backend storage.Backend) VirtualRoot {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Music")
	require.NoError(t, os.MkdirAll(dir, 0755))
	return VirtualRoot{Slug: "music", AbsolutePath: dir, DisplayName: "Music", Backend: backend}
}

// resolveTarget 走完整的解析流程
func resolveTarget(t *testing.T, root VirtualRoot, rel string) ResolvedTarget {
	t.Helper()
	ctx := context.Background()
	candidate, err := SafeJoin(root, rel)
	require.NoError(t, err)
	resolved, err := Canonicalize(ctx, root, candidate)
	require.NoError(t, err)
	target, err := Stat(ctx, root, candidate, resolved)
	require.NoError(t, err)
	return target
}
