// Package metrics 控制台的 prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inspect_console"

var (
	// BackendRequests 后端调用次数，按接口和结果分类
	BackendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Backend API calls by operation and outcome.",
	}, []string{"op", "outcome"})

	// BackendLatency 后端调用耗时
	BackendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Backend API call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	// RenderFailures 渲染单条记录时恢复的 panic 次数
	RenderFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_failures_total",
		Help:      "Result records whose rendering panicked.",
	}, []string{"kind"})

	// ListLoads 列表加载次数，按列表和结果状态分类
	ListLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "list_loads_total",
		Help:      "List loads by list kind and resulting state.",
	}, []string{"list", "status"})

	// PollTicks 任务状态轮询次数，按返回状态分类
	PollTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_poll_ticks_total",
		Help:      "Task status polls by observed status.",
	}, []string{"status"})

	// ActivePolls 正在运行的轮询数
	ActivePolls = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "task_polls_active",
		Help:      "Task pollers currently running.",
	})
)

func init() {
	prometheus.MustRegister(BackendRequests, BackendLatency, RenderFailures, ListLoads, PollTicks, ActivePolls)
}

// Handler /metrics 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
