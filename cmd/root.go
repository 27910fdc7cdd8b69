package cmd

import (
	"fmt"
	"os"

	"audioshare/config"
	"audioshare/core/media"
	"audioshare/logger"
	"audioshare/storage"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "audioshare",
	Short:        "AudioShare 媒体文件网关",
	Long:         `通过 HTTP 以字节范围方式提供一个或多个音频根目录下的文件。不带子命令时启动服务器。`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载配置、初始化日志并构建根目录注册表
func bootstrap() (*config.Config, *media.Registry, error) {
	cfg := config.Load()

	if err := logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	}); err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	opts := media.RegistryOptions{}
	if cfg.MinioEndpoint != "" {
		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts.Object = storage.NewMinioBackend(client)
	}

	reg, err := media.NewRegistry(cfg.AudioDirs, opts)
	if err != nil {
		return nil, nil, err
	}
	return cfg, reg, nil
}
