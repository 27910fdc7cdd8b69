package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"audioshare/config"
	"audioshare/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinioClient 按配置创建 MinIO 客户端，不做网络访问
func NewMinioClient(cfg *config.Config) (*minio.Client, error) {
	if cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT 未配置")
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	return client, nil
}

// CheckBucket 确认存储桶存在，供 minio 子命令和启动自检使用
func CheckBucket(ctx context.Context, client *minio.Client, bucket string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		return fmt.Errorf("存储桶 %s 不存在", bucket)
	}
	return nil
}

// MinioBackend 把 "bucket/prefix" 形式的根映射到对象存储
type MinioBackend struct {
	client *minio.Client
}

// NewMinioBackend 创建 MinIO 后端
func NewMinioBackend(client *minio.Client) *MinioBackend {
	return &MinioBackend{client: client}
}

func (b *MinioBackend) Kind() string { return "minio" }

func (b *MinioBackend) Join(root, rel string) string {
	return path.Join(root, rel)
}

// Canonical 对象存储没有符号链接，规范化后做键前缀检查即可
func (b *MinioBackend) Canonical(_ context.Context, root, name string) (string, error) {
	root = path.Clean(root)
	cleaned := path.Clean(name)
	if cleaned != root && !strings.HasPrefix(cleaned, root+"/") {
		return "", ErrOutsideRoot
	}
	return cleaned, nil
}

func (b *MinioBackend) Stat(ctx context.Context, name string) (Info, error) {
	bucket, key := SplitObjectPath(name)
	if bucket == "" || key == "" {
		return Info{}, fmt.Errorf("stat: %w", ErrNotExist)
	}

	oi, err := b.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return Info{}, wrapObjectErr("stat", err)
	}
	return Info{
		Name:    path.Base(key),
		Size:    oi.Size,
		ModTime: oi.LastModified,
		Regular: !strings.HasSuffix(key, "/"),
	}, nil
}

// Open 返回的 *minio.Object 支持 Seek，读取与 ctx 绑定，请求取消时底层连接随之关闭
func (b *MinioBackend) Open(ctx context.Context, name string) (File, error) {
	bucket, key := SplitObjectPath(name)
	obj, err := b.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrapObjectErr("open", err)
	}
	return obj, nil
}

// Probe 只检查存储桶，前缀在对象存储里不是实体
func (b *MinioBackend) Probe(ctx context.Context, root string) error {
	bucket, _ := SplitObjectPath(root)
	return CheckBucket(ctx, b.client, bucket)
}

// SplitObjectPath 把 "bucket/a/b.mp3" 拆分为桶名和对象键
func SplitObjectPath(name string) (bucket, key string) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	parts := strings.SplitN(name, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func wrapObjectErr(op string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%s: %w", op, ErrNotExist)
	}
	logger.Debug("MinIO 请求失败", logger.String("op", op), logger.ErrorField(err))
	return fmt.Errorf("%s: %w", op, err)
}
