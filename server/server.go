package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"audioshare/cache"
	"audioshare/config"
	"audioshare/core/media"
	"audioshare/logger"
	"audioshare/metrics"

	"github.com/gorilla/mux"
)

// Options 组装 HTTP 服务所需的组件
type Options struct {
	Config   *config.Config
	Registry *media.Registry
	Monitor  *media.RootMonitor
	// Metrics 为 nil 时不暴露 /metrics
	Metrics *metrics.Gateway
	// Counters 为 nil 时不限流
	Counters cache.CounterStore
}

// Server 媒体网关 HTTP 服务
type Server struct {
	cfg     *config.Config
	handler http.Handler
	http    *http.Server
}

// New 创建服务，不监听端口
func New(opts Options) *Server {
	cfg := opts.Config

	responder := media.NewResponder(media.ResponderOptions{
		ChunkSize:    cfg.StreamChunkSize,
		JSONMaxBytes: cfg.JSONMaxBytes,
		Metrics:      opts.Metrics,
	})

	var mediaHandler http.Handler = NewMediaHandler(opts.Registry, responder)
	if opts.Counters != nil {
		mediaHandler = NewRateLimiter(opts.Counters, cfg, opts.Metrics).Middleware(mediaHandler)
	}

	// 保留原始编码路径，也不做路径清理，".." 必须原样交给路径校验
	router := mux.NewRouter().UseEncodedPath().SkipClean(true)
	router.Use(requestIDMiddleware, accessLogMiddleware(opts.Metrics), securityHeadersMiddleware, corsMiddleware(cfg.CORSAllowOrigin))

	router.Handle("/health", NewHealthHandler(opts.Monitor)).Methods(http.MethodGet, http.MethodHead)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	router.PathPrefix(mediaRoutePrefix).Handler(mediaHandler).Methods(http.MethodGet, http.MethodHead, http.MethodOptions)

	s := &Server{cfg: cfg, handler: router}
	s.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		// 流式传输时长不可预知，默认不设写超时
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler 返回路由，测试直接使用
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run 监听端口直到 ctx 结束，然后在 ShutdownTimeout 内优雅关闭
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定 listener 上服务
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务器启动", logger.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		// 超时后强制断开仍在传输的流
		_ = s.http.Close()
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("服务器已停止")
	return nil
}
