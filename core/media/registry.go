package media

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"audioshare/storage"
)

const (
	defaultRootName = "Audio"
	defaultSlug     = "audio"
	minioScheme     = "minio://"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonSlugRe    = regexp.MustCompile(`[^a-z0-9\-]`)
	dashesRe     = regexp.MustCompile(`-+`)
)

// VirtualRoot 一个以 slug 暴露的根目录，启动后不可变
type VirtualRoot struct {
	Slug         string
	AbsolutePath string // 本地为文件系统绝对路径，MinIO 为 "bucket/prefix"
	DisplayName  string
	Backend      storage.Backend
}

// Registry 把 slug 映射到 VirtualRoot
//
// 构建完成后只读，并发读取无需加锁。
type Registry struct {
	roots  []VirtualRoot
	bySlug map[string]VirtualRoot
}

// RegistryOptions 构建 Registry 所需的外部依赖
type RegistryOptions struct {
	// Local 服务本地根目录，为 nil 时使用 storage.NewLocalBackend()
	Local storage.Backend
	// Object 服务 minio:// 根目录，为 nil 时出现 minio:// 条目即为配置错误
	Object storage.Backend
	// DefaultDir 未配置 AUDIO_DIR 时的默认根，为空时使用 ./public/audio
	DefaultDir string
}

// NewRegistry 解析逗号分隔的 path[:displayName] 列表
func NewRegistry(dirs string, opts RegistryOptions) (*Registry, error) {
	if opts.Local == nil {
		opts.Local = storage.NewLocalBackend()
	}

	existing := make(map[string]bool)
	var roots []VirtualRoot

	for _, entry := range strings.Split(dirs, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		root, err := parseEntry(entry, opts)
		if err != nil {
			return nil, err
		}
		if root == nil {
			continue
		}

		root.Slug = uniqueSlug(root.DisplayName, existing)
		existing[root.Slug] = true
		roots = append(roots, *root)
	}

	if len(roots) == 0 {
		dir := opts.DefaultDir
		if dir == "" {
			cwd, _ := os.Getwd()
			dir = filepath.Join(cwd, "public", "audio")
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, &ConfigError{Entry: dir, Reason: err.Error()}
		}
		roots = []VirtualRoot{{
			Slug:         defaultSlug,
			AbsolutePath: abs,
			DisplayName:  defaultRootName,
			Backend:      opts.Local,
		}}
	}

	r := &Registry{
		roots:  roots,
		bySlug: make(map[string]VirtualRoot, len(roots)),
	}
	for _, root := range roots {
		r.bySlug[root.Slug] = root
	}
	return r, nil
}

func parseEntry(entry string, opts RegistryOptions) (*VirtualRoot, error) {
	if strings.HasPrefix(strings.ToLower(entry), minioScheme) {
		return parseObjectEntry(entry, opts)
	}
	if i := strings.Index(entry, "://"); i > 0 && !strings.ContainsAny(entry[:i], `/\`) {
		return nil, &ConfigError{Entry: entry, Reason: "unsupported scheme " + entry[:i]}
	}

	dirPath, name := splitNamed(entry)
	if dirPath == "" {
		return nil, nil
	}
	if name == "" {
		name = filepath.Base(dirPath)
	}

	abs, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, &ConfigError{Entry: entry, Reason: err.Error()}
	}
	return &VirtualRoot{AbsolutePath: abs, DisplayName: name, Backend: opts.Local}, nil
}

func parseObjectEntry(entry string, opts RegistryOptions) (*VirtualRoot, error) {
	if opts.Object == nil {
		return nil, &ConfigError{Entry: entry, Reason: "object storage root configured but MinIO is not set up"}
	}

	objPath, name := splitNamed(entry[len(minioScheme):])
	objPath = strings.Trim(objPath, "/")
	bucket, _ := storage.SplitObjectPath(objPath)
	if bucket == "" {
		return nil, &ConfigError{Entry: entry, Reason: "missing bucket"}
	}
	if strings.Contains("/"+objPath+"/", "/../") {
		return nil, &ConfigError{Entry: entry, Reason: "dot segments are not allowed"}
	}
	if name == "" {
		name = objPath[strings.LastIndex(objPath, "/")+1:]
	}
	return &VirtualRoot{AbsolutePath: objPath, DisplayName: name, Backend: opts.Object}, nil
}

// splitNamed 在第一个冒号处拆分路径和显示名
func splitNamed(entry string) (string, string) {
	parts := strings.SplitN(entry, ":", 2)
	p := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return p, ""
	}
	return p, strings.TrimSpace(parts[1])
}

// Slugify 小写，空白变连字符，去掉非字母数字，空结果回退为 "audio"
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = whitespaceRe.ReplaceAllString(slug, "-")
	slug = nonSlugRe.ReplaceAllString(slug, "")
	slug = dashesRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = defaultSlug
	}
	return slug
}

func uniqueSlug(name string, existing map[string]bool) string {
	base := Slugify(name)
	slug := base
	for counter := 1; existing[slug]; counter++ {
		slug = base + "-" + strconv.Itoa(counter)
	}
	return slug
}

// Resolve 按 slug 查找根目录
func (r *Registry) Resolve(slug string) (VirtualRoot, error) {
	root, ok := r.bySlug[slug]
	if !ok {
		return VirtualRoot{}, ErrInvalidRoot
	}
	return root, nil
}

// Roots 返回按配置顺序排列的根目录副本
func (r *Registry) Roots() []VirtualRoot {
	out := make([]VirtualRoot, len(r.roots))
	copy(out, r.roots)
	return out
}
