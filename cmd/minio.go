package cmd

import (
	"context"
	"fmt"
	"strings"

	"audioshare/storage"

	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "检查 MinIO 根目录",
	Long:  `连接 MinIO，确认每个 minio:// 根目录的存储桶存在，并列出其中的文件。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("开始连接MinIO服务器...")

		cfg, reg, err := bootstrap()
		if err != nil {
			return err
		}
		if cfg.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT 未配置")
		}
		fmt.Printf("MinIO配置: %s\n", cfg.MinioEndpoint)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		found := false
		for _, root := range reg.Roots() {
			backend, ok := root.Backend.(*storage.MinioBackend)
			if !ok {
				continue
			}
			found = true

			fmt.Printf("\n[%s] %s\n", root.Slug, root.AbsolutePath)
			if err := backend.Probe(ctx, root.AbsolutePath); err != nil {
				return fmt.Errorf("根目录 %s 不可用: %w", root.Slug, err)
			}

			objects, stats, err := backend.List(ctx, root.AbsolutePath, strings.TrimPrefix(minioPrefix, "/"))
			if err != nil {
				return fmt.Errorf("列出文件失败: %w", err)
			}
			for _, obj := range objects {
				fmt.Printf("  ├─ %s (%s, %s)\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("  └─ 共 %d 个文件, %s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
		}

		if !found {
			fmt.Println("AUDIO_DIR 中没有 minio:// 根目录")
			return nil
		}
		fmt.Println("\nMinIO检查完成！")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "只列出该前缀下的文件")

	minioCmd.Example = `  # 检查所有 minio:// 根目录
  AUDIO_DIR="minio://music/library:Cloud" audioshare minio

  # 按前缀过滤
  audioshare minio -p "albums/"`
}
