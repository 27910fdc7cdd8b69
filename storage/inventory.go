package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// RootStats 根目录统计信息
type RootStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

func (s *RootStats) add(size int64, modTime time.Time) {
	s.TotalObjects++
	s.TotalSize += size
	if modTime.After(s.LastModified) {
		s.LastModified = modTime
	}
}

// ObjectInfo 文件信息，Key 为相对根目录的斜杠路径
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Lister 可以枚举根目录内容的后端
type Lister interface {
	List(ctx context.Context, root, prefix string) ([]ObjectInfo, *RootStats, error)
}

// List 递归列出 root 下以 prefix 开头的普通文件，不跟随符号链接
func (b *LocalBackend) List(ctx context.Context, root, prefix string) ([]ObjectInfo, *RootStats, error) {
	stats := &RootStats{}
	var objects []ObjectInfo

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		stats.add(fi.Size(), fi.ModTime())
		objects = append(objects, ObjectInfo{Key: key, Size: fi.Size(), LastModified: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, nil, wrapPathErr("list", err)
	}
	return objects, stats, nil
}

// List 递归列出 "bucket/prefix" 根下的对象
func (b *MinioBackend) List(ctx context.Context, root, prefix string) ([]ObjectInfo, *RootStats, error) {
	bucket, base := SplitObjectPath(root)
	if base != "" {
		base += "/"
	}

	stats := &RootStats{}
	var objects []ObjectInfo

	objectCh := b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    path.Join(base, prefix),
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, wrapObjectErr("list", object.Err)
		}
		if strings.HasSuffix(object.Key, "/") {
			continue
		}
		stats.add(object.Size, object.LastModified)
		objects = append(objects, ObjectInfo{
			Key:          strings.TrimPrefix(object.Key, base),
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	return objects, stats, nil
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
