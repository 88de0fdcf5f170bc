package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 管道结果标签
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeDegraded = "degraded"
)

const (
	PipelineStructured = "structured"
	PipelineEvidence   = "evidence"
)

// MetricsService 深度分析相关指标
type MetricsService struct {
	gatherer prometheus.Gatherer

	analysisDuration *prometheus.HistogramVec
	pipelineOutcomes *prometheus.CounterVec
	fanOutDocuments  *prometheus.CounterVec
	linkFailures     prometheus.Counter
}

// NewMetricsService 在给定的 Registerer 上注册指标，reg 为 nil 时使用独立的 Registry
func NewMetricsService(reg prometheus.Registerer) *MetricsService {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &MetricsService{
		gatherer: gatherer,
		analysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deep_analysis_duration_seconds",
			Help:    "Duration of deep analysis requests",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"status"}),
		pipelineOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deep_analysis_pipeline_total",
			Help: "Pipeline outcomes by pipeline and outcome",
		}, []string{"pipeline", "outcome"}),
		fanOutDocuments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deep_analysis_fanout_documents_total",
			Help: "Documents searched during fan-out by outcome",
		}, []string{"outcome"}),
		linkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "deep_analysis_link_lookup_failures_total",
			Help: "Asset link lookups that failed and were treated as empty",
		}),
	}
}

// ObserveAnalysis 记录一次请求耗时
func (ms *MetricsService) ObserveAnalysis(status string, elapsed time.Duration) {
	if ms == nil {
		return
	}
	ms.analysisDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (ms *MetricsService) RecordPipeline(pipeline, outcome string) {
	if ms == nil {
		return
	}
	ms.pipelineOutcomes.WithLabelValues(pipeline, outcome).Inc()
}

func (ms *MetricsService) RecordFanOut(processed, notFound int) {
	if ms == nil {
		return
	}
	ms.fanOutDocuments.WithLabelValues("processed").Add(float64(processed))
	ms.fanOutDocuments.WithLabelValues("not_found").Add(float64(notFound))
}

func (ms *MetricsService) RecordLinkFailure() {
	if ms == nil {
		return
	}
	ms.linkFailures.Inc()
}

// Handler 返回Prometheus指标的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(ms.gatherer, promhttp.HandlerOpts{})
}

// ServeHTTP 实现http.Handler接口
func (ms *MetricsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.Handler().ServeHTTP(w, r)
}
