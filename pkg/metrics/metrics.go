// Package metrics 提供 Prometheus 指标定义与暴露
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 对账运行
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	MethodCallsTotal  *prometheus.CounterVec
	ReconciledGroups  *prometheus.CounterVec
	HistoryEntriesNew prometheus.Counter
}

// New 创建指标实例并注册到独立的 registry
func New(serviceName string) *Metrics {
	serviceName = strings.ReplaceAll(serviceName, "-", "_")
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "reconcile_runs_total",
			Help:      "Reconcile runs by outcome",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "reconcile_run_duration_seconds",
			Help:      "Reconcile run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		MethodCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "reconcile_method_calls_total",
			Help:      "Reconcile method invocations",
		}, []string{"method", "result"}),
		ReconciledGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "reconciled_groups_total",
			Help:      "Reconciliation groups recorded in history",
		}, []string{"kind"}),
		HistoryEntriesNew: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "history_entries_total",
			Help:      "History entries written",
		}),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RunsTotal,
		m.RunDuration,
		m.MethodCallsTotal,
		m.ReconciledGroups,
		m.HistoryEntriesNew,
	)
	return m
}

// Registry 返回指标 registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun 记录一次对账运行
func (m *Metrics) ObserveRun(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

// ObserveMethodCall 记录一次对账方法调用
func (m *Metrics) ObserveMethodCall(method string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.MethodCallsTotal.WithLabelValues(method, result).Inc()
}

// ObserveHistory 记录一条历史及其对账组数量
func (m *Metrics) ObserveHistory(reconciled, partial int) {
	if m == nil {
		return
	}
	m.HistoryEntriesNew.Inc()
	m.ReconciledGroups.WithLabelValues("full").Add(float64(reconciled))
	m.ReconciledGroups.WithLabelValues("partial").Add(float64(partial))
}

// StartHTTPServer 在独立端口暴露指标，ctx 结束时关闭
func (m *Metrics) StartHTTPServer(ctx context.Context, addr, path string) {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger.Info(ctx, "starting Prometheus HTTP server", "addr", addr, "path", path)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Prometheus HTTP server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
