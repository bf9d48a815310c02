// Package metrics 提供 Prometheus helper，包含 CRM 业务与 HTTP 的 counter/histogram
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 业务指标
	OrdersCreatedTotal    prometheus.Counter
	OrderFailuresTotal    *prometheus.CounterVec
	StockConflictsTotal   prometheus.Counter
	CustomersCreatedTotal prometheus.Counter

	registry *prometheus.Registry
}

// New 创建指标实例并注册到独立的 Registry
func New(serviceName string) (*Metrics, error) {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		OrdersCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "orders_created_total",
			Help:      "Total orders committed",
		}),
		OrderFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "order_failures_total",
			Help:      "Order creation attempts that did not commit",
		}, []string{"reason"}),
		StockConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "stock_conflicts_total",
			Help:      "Guarded stock decrements lost to a concurrent writer",
		}),
		CustomersCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "customers_created_total",
			Help:      "Total customers registered",
		}),
		registry: prometheus.NewRegistry(),
	}

	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrdersCreatedTotal,
		m.OrderFailuresTotal,
		m.StockConflictsTotal,
		m.CustomersCreatedTotal,
		prometheus.NewGoCollector(),
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry 返回内部 Registry，测试中用于读取指标
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Collector 指标收集器接口
type Collector interface {
	// 记录 HTTP 请求
	RecordHTTPRequest(method, path string, statusCode int, seconds float64)
	// 记录订单提交成功
	RecordOrderCreated()
	// 记录订单失败及原因：validation, stock, internal
	RecordOrderFailed(reason string)
	// 记录库存并发冲突
	RecordStockConflict()
	// 记录新建客户数量
	RecordCustomersCreated(n int)
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordOrderCreated 记录订单
func (m *Metrics) RecordOrderCreated() {
	m.OrdersCreatedTotal.Inc()
}

// RecordOrderFailed 记录失败订单
func (m *Metrics) RecordOrderFailed(reason string) {
	m.OrderFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordStockConflict 记录库存冲突
func (m *Metrics) RecordStockConflict() {
	m.StockConflictsTotal.Inc()
}

// RecordCustomersCreated 记录新建客户
func (m *Metrics) RecordCustomersCreated(n int) {
	if n > 0 {
		m.CustomersCreatedTotal.Add(float64(n))
	}
}

// Nop 不做任何记录的收集器
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, float64) {}
func (Nop) RecordOrderCreated()                            {}
func (Nop) RecordOrderFailed(string)                       {}
func (Nop) RecordStockConflict()                           {}
func (Nop) RecordCustomersCreated(int)                     {}
