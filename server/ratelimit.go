package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"audioshare/cache"
	"audioshare/config"
	"audioshare/core/media"
	"audioshare/logger"
	"audioshare/metrics"
)

// 限流桶
const (
	bucketAudio   = "audio"
	bucketGeneral = "api"
)

// RateLimiter 按客户端 IP 的固定窗口限流
//
// 整文件音频请求计入 audio 桶；音频 Range 请求（播放器拖动、续传）和图片不计数；
// 其余请求计入 api 桶。计数存储出错时放行。
type RateLimiter struct {
	store          cache.CounterStore
	window         time.Duration
	maxRequests    int
	audioFileLimit int
	metrics        *metrics.Gateway
}

// NewRateLimiter 创建限流器
func NewRateLimiter(store cache.CounterStore, cfg *config.Config, m *metrics.Gateway) *RateLimiter {
	return &RateLimiter{
		store:          store,
		window:         cfg.RateLimitWindow,
		maxRequests:    cfg.MaxRequestsPerWindow,
		audioFileLimit: cfg.AudioFileLimit,
		metrics:        m,
	}
}

// bucketFor 返回请求所属的桶和上限，exempt 为 true 时不计数
func (l *RateLimiter) bucketFor(r *http.Request) (bucket string, limit int, exempt bool) {
	ct := media.ClassifyPath(r.URL.Path)
	switch {
	case ct.Class == media.ClassImage:
		return "", 0, true
	case ct.Class == media.ClassMedia && r.Header.Get("Range") != "":
		return "", 0, true
	case ct.Class == media.ClassMedia:
		return bucketAudio, l.audioFileLimit, false
	default:
		return bucketGeneral, l.maxRequests, false
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		bucket, limit, exempt := l.bucketFor(r)
		if exempt {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		counter, err := l.store.Incr(r.Context(), bucket+":"+ip, l.window)
		if err != nil {
			logger.Warn("限流计数失败，放行请求",
				logger.String("bucket", bucket),
				logger.String("ip", ip),
				logger.ErrorField(err))
			next.ServeHTTP(w, r)
			return
		}

		current := int(counter.Count)
		if current > limit {
			l.metrics.RateLimited(bucket)
			logger.Info("请求被限流",
				logger.String("bucket", bucket),
				logger.String("ip", ip),
				logger.Int("current", current),
				logger.Int("limit", limit))

			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(counter.ResetIn)))
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":   "Too many requests",
				"message": "Too many requests",
				"limit":   limit,
				"current": current,
			})
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, limit-current)))
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// clientIP 依次取 CF-Connecting-IP、X-Real-IP、X-Forwarded-For 第一项、RemoteAddr
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
