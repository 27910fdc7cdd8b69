package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"audioshare/cache"
	"audioshare/config"
	"audioshare/core/media"
	"audioshare/logger"
	"audioshare/metrics"
	"audioshare/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "启动媒体网关服务器",
	Long:    `启动 HTTP 服务器，提供 /api/audio/{slug}/{path} 文件流、/health 和 /metrics。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServe(parent context.Context) (err error) {
	if parent == nil {
		parent = context.Background()
	}

	cfg, reg, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() {
		// stdout 上的 Sync 在部分平台返回 EINVAL，忽略
		_ = logger.Sync()
	}()

	for _, root := range reg.Roots() {
		logger.Info("已注册根目录",
			logger.String("slug", root.Slug),
			logger.String("name", root.DisplayName),
			logger.String("backend", root.Backend.Kind()),
			logger.String("path", root.AbsolutePath))
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gateway *metrics.Gateway
	if cfg.MetricsEnabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		gateway = metrics.New(promReg)
	}

	counters, redisClient, err := newCounterStore(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
	}

	monitor := newRootMonitor(ctx, reg)
	srv := server.New(server.Options{
		Config:   cfg,
		Registry: reg,
		Monitor:  monitor,
		Metrics:  gateway,
		Counters: counters,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return monitor.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("服务已退出")
	return nil
}

// newCounterStore 按 RATE_LIMIT_STORE 选择计数存储，未启用限流时返回 nil
func newCounterStore(ctx context.Context, cfg *config.Config) (cache.CounterStore, *redis.Client, error) {
	if !cfg.RateLimitEnabled {
		return nil, nil, nil
	}

	switch cfg.RateLimitStore {
	case "redis":
		client, err := cache.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedisCounterStore(client), client, nil
	case "memory", "":
		return cache.NewMemoryCounterStore(0, cfg.RateLimitWindow), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown RATE_LIMIT_STORE %q", cfg.RateLimitStore)
	}
}

// newRootMonitor 创建监控并先探测一次，避免启动瞬间 /health 返回 503
func newRootMonitor(ctx context.Context, reg *media.Registry) *media.RootMonitor {
	monitor := media.NewRootMonitor(reg, 0)
	monitor.Check(ctx)
	return monitor
}
