package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"audioshare/storage"
)

// ResolvedTarget 单次请求解析出的可服务文件，不做持久化
type ResolvedTarget struct {
	Root    VirtualRoot
	Path    string // 后端规范路径
	Size    uint64
	ModTime time.Time
	Type    ContentType
}

// SplitRequestPath 把路由后缀 "{slug}/{...segments}" 拆成 slug 与相对路径
//
// escaped 必须是未解码的原始路径：每个段单独做百分号解码后再用 "/" 拼接，
// 因此 %2F 会在拼接后变成真正的分隔符，交给 SafeJoin 统一检查。
func SplitRequestPath(escaped string) (slug, rel string, err error) {
	segments := strings.Split(escaped, "/")
	decoded := make([]string, len(segments))
	for i, seg := range segments {
		d, err := url.PathUnescape(seg)
		if err != nil {
			return "", "", fmt.Errorf("%w: bad escape", ErrTraversal)
		}
		decoded[i] = d
	}
	return decoded[0], strings.Join(decoded[1:], "/"), nil
}

// SafeJoin 纯字符串层面的路径校验与拼接，不访问文件系统
func SafeJoin(root VirtualRoot, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrTraversal)
	}
	if strings.IndexByte(rel, 0) >= 0 {
		return "", fmt.Errorf("%w: nul byte", ErrTraversal)
	}

	normalized := path.Clean(rel)
	if normalized == "." {
		return "", fmt.Errorf("%w: empty path", ErrTraversal)
	}
	if strings.HasPrefix(normalized, "..") ||
		strings.HasPrefix(normalized, "/") ||
		strings.Contains(normalized, "/../") ||
		strings.HasSuffix(normalized, "/..") {
		return "", fmt.Errorf("%w: escapes root", ErrTraversal)
	}

	return root.Backend.Join(root.AbsolutePath, normalized), nil
}

// Canonicalize 在拼接之后确认规范路径仍在根目录下，堵住符号链接逃逸
func Canonicalize(ctx context.Context, root VirtualRoot, candidate string) (string, error) {
	resolved, err := root.Backend.Canonical(ctx, root.AbsolutePath, candidate)
	switch {
	case err == nil:
		return resolved, nil
	case errors.Is(err, storage.ErrOutsideRoot):
		return "", fmt.Errorf("%w: resolves outside root", ErrTraversal)
	case errors.Is(err, storage.ErrNotExist):
		return "", ErrNotFound
	default:
		return "", &IOFailure{Op: "resolve", Err: err}
	}
}

// Stat 读取 resolved 的文件信息；内容类型按请求名 candidate 的扩展名判断，
// 符号链接目标的扩展名不参与分类。目录等非普通文件视为不存在
func Stat(ctx context.Context, root VirtualRoot, candidate, resolved string) (ResolvedTarget, error) {
	info, err := root.Backend.Stat(ctx, resolved)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return ResolvedTarget{}, ErrNotFound
		}
		return ResolvedTarget{}, &IOFailure{Op: "stat", Err: err}
	}
	if !info.Regular || info.Size < 0 {
		return ResolvedTarget{}, ErrNotFound
	}

	return ResolvedTarget{
		Root:    root,
		Path:    resolved,
		Size:    uint64(info.Size),
		ModTime: info.ModTime,
		Type:    ClassifyPath(candidate),
	}, nil
}
