// Package metrics 定义签到服务的 Prometheus 指标。
// 所有方法对 nil 接收者安全，单元测试可直接传 nil。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "qr_attendance"

// Metrics 指标集合
type Metrics struct {
	scanOutcomes      *prometheus.CounterVec
	scanDuration      prometheus.Histogram
	sessionsGenerated prometheus.Counter
	tokensIssued      prometheus.Counter
	httpRequests      *prometheus.CounterVec
	gatherer          prometheus.Gatherer
}

// New 创建并注册指标；reg 同时实现 Gatherer 时用于 /metrics 输出
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scanOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_outcomes_total",
			Help:      "扫码签到结果计数（含传输层错误）",
		}, []string{"outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "单次扫码校验耗时",
			Buckets:   prometheus.DefBuckets,
		}),
		sessionsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_generated_total",
			Help:      "按排课规律新建的课次数",
		}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "签发的签到令牌数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求计数",
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.scanOutcomes, m.scanDuration, m.sessionsGenerated, m.tokensIssued, m.httpRequests)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// NewDefault 使用独立注册表，附带 Go 运行时与进程指标
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return New(reg)
}

// ObserveScan 记录一次扫码结果与耗时
func (m *Metrics) ObserveScan(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.scanOutcomes.WithLabelValues(outcome).Inc()
	m.scanDuration.Observe(elapsed.Seconds())
}

// AddSessionsGenerated 累加新建课次数
func (m *Metrics) AddSessionsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsGenerated.Add(float64(n))
}

// IncTokensIssued 签发令牌计数
func (m *Metrics) IncTokensIssued() {
	if m == nil {
		return
	}
	m.tokensIssued.Inc()
}

// ObserveHTTP 记录 HTTP 请求；route 使用路由模板避免高基数
func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler /metrics 输出
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
