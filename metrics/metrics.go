package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "audioshare"

// 流结束时的结果标签
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed"
)

// Gateway 网关指标
//
// 所有方法对 nil 接收者安全，未启用指标时直接传 nil。
//
// audioshare_responses_total{code}          所有 HTTP 响应，包括中间件直接返回的 429
// audioshare_bytes_served_total{class}      已写给客户端的正文字节数
// audioshare_active_streams                 正在传输的流
// audioshare_stream_outcomes_total{outcome} completed / aborted / failed
// audioshare_rate_limited_total{bucket}     被限流拒绝的请求
type Gateway struct {
	responses      *prometheus.CounterVec
	bytesServed    *prometheus.CounterVec
	activeStreams  prometheus.Gauge
	streamOutcomes *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	gatherer       prometheus.Gatherer
}

// New 创建指标并注册到 reg，reg 为 nil 时使用独立的 Registry
func New(reg *prometheus.Registry) *Gateway {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	g := &Gateway{
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "HTTP responses by status code.",
		}, []string{"code"}),
		bytesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_served_total",
			Help:      "Body bytes written to clients by content class.",
		}, []string{"class"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Streams currently holding an open file handle.",
		}),
		streamOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_outcomes_total",
			Help:      "Finished streams by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter by bucket.",
		}, []string{"bucket"}),
		gatherer: reg,
	}

	reg.MustRegister(g.responses, g.bytesServed, g.activeStreams, g.streamOutcomes, g.rateLimited)
	return g
}

// Handler 暴露 /metrics
func (g *Gateway) Handler() http.Handler {
	if g == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{})
}

func (g *Gateway) RecordResponse(code int) {
	if g != nil {
		g.responses.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

func (g *Gateway) AddBytes(class string, n int) {
	if g != nil && n > 0 {
		g.bytesServed.WithLabelValues(class).Add(float64(n))
	}
}

func (g *Gateway) StreamStarted() {
	if g != nil {
		g.activeStreams.Inc()
	}
}

// StreamFinished 与 StreamStarted 成对调用
func (g *Gateway) StreamFinished(outcome string) {
	if g != nil {
		g.activeStreams.Dec()
		g.streamOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (g *Gateway) RateLimited(bucket string) {
	if g != nil {
		g.rateLimited.WithLabelValues(bucket).Inc()
	}
}
