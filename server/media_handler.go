package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"audioshare/core/media"
	"audioshare/logger"
)

const mediaRoutePrefix = "/api/audio/"

// MediaHandler 处理 /api/audio/{slug}/{path...}
//
// 每个请求依次经过：解析根目录 -> 校验路径 -> 定位文件 -> 协商范围 -> 流式输出。
// 任何一步失败都直接返回对应状态码，不会打开文件。
type MediaHandler struct {
	registry  *media.Registry
	responder *media.Responder
}

// NewMediaHandler 创建 MediaHandler 实例
func NewMediaHandler(registry *media.Registry, responder *media.Responder) *MediaHandler {
	return &MediaHandler{
		registry:  registry,
		responder: responder,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	reqID := RequestIDFromContext(ctx)
	rawPath := r.URL.EscapedPath()

	slug, rel, err := media.SplitRequestPath(strings.TrimPrefix(rawPath, mediaRoutePrefix))
	if err != nil {
		h.fail(w, r, rawPath, err)
		return
	}

	root, err := h.registry.Resolve(slug)
	if err != nil {
		h.fail(w, r, rawPath, err)
		return
	}

	candidate, err := media.SafeJoin(root, rel)
	if err != nil {
		h.fail(w, r, rawPath, err)
		return
	}

	resolved, err := media.Canonicalize(ctx, root, candidate)
	if err != nil {
		h.fail(w, r, rawPath, err)
		return
	}

	target, err := media.Stat(ctx, root, candidate, resolved)
	if err != nil {
		h.fail(w, r, rawPath, err)
		return
	}

	rng, err := media.NegotiateRange(r.Header.Get("Range"), target.Size, target.Type)
	if err != nil {
		if errors.Is(err, media.ErrUnsatisfiableRange) {
			logger.Debug("Range 无法满足",
				logger.String("request_id", reqID),
				logger.String("range", r.Header.Get("Range")),
				logger.Uint64("size", target.Size))
			w.Header().Set("Content-Range", media.UnsatisfiedContentRange(target.Size))
			http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		h.fail(w, r, rawPath, err)
		return
	}

	logger.Debug("开始传输",
		logger.String("request_id", reqID),
		logger.String("root", root.Slug),
		logger.String("path", rel),
		logger.String("type", target.Type.MIME),
		logger.Bool("partial", rng != nil),
		logger.Uint64("size", target.Size))

	if err := h.responder.Serve(w, r, target, rng); err != nil {
		h.fail(w, r, rawPath, err)
		return
	}

	logger.Debug("传输完成",
		logger.String("request_id", reqID),
		logger.String("root", root.Slug),
		logger.String("path", rel),
		logger.Duration("duration", time.Since(start)))
}

// fail 把错误映射为状态码；响应头已发出时只能中断连接
func (h *MediaHandler) fail(w http.ResponseWriter, r *http.Request, rawPath string, err error) {
	reqID := RequestIDFromContext(r.Context())

	var ioErr *media.IOFailure
	switch {
	case errors.Is(err, media.ErrStreamAborted):
		logger.Debug("客户端中断传输", logger.String("request_id", reqID), logger.String("path", rawPath))
	case errors.Is(err, media.ErrInvalidRoot):
		http.Error(w, "Invalid directory", http.StatusBadRequest)
	case errors.Is(err, media.ErrTraversal):
		logger.Warn("拒绝非法路径",
			logger.String("request_id", reqID),
			logger.String("path", rawPath),
			logger.String("remote", clientIP(r)),
			logger.ErrorField(err))
		http.Error(w, "Invalid path", http.StatusBadRequest)
	case errors.Is(err, media.ErrNotFound):
		http.Error(w, "File not found", http.StatusNotFound)
	case errors.Is(err, media.ErrInvalidJSON):
		logger.Warn("JSON 文件无效", logger.String("request_id", reqID), logger.String("path", rawPath))
		http.Error(w, "Invalid JSON file", http.StatusInternalServerError)
	case errors.As(err, &ioErr) && ioErr.Started:
		logger.Error("传输中途失败",
			logger.String("request_id", reqID),
			logger.String("path", rawPath),
			logger.String("op", ioErr.Op),
			logger.ErrorField(ioErr.Err))
		panic(http.ErrAbortHandler)
	default:
		logger.Error("读取文件失败",
			logger.String("request_id", reqID),
			logger.String("path", rawPath),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
