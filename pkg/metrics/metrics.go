package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 指标管理器
type Metrics struct {
	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 数据库指标
	dbQueryDuration *prometheus.HistogramVec

	// 任务指标
	tasksSubmitted   prometheus.Counter
	tasksFinished    *prometheus.CounterVec
	tasksInFlight    prometheus.Gauge
	taskDuration     *prometheus.HistogramVec
	chunksSynthesize prometheus.Histogram

	// 外部调用指标
	externalDuration *prometheus.HistogramVec
	metadataDecode   *prometheus.CounterVec
}

// NewMetrics 在 reg 上注册全部指标；测试中传入 prometheus.NewRegistry() 避免重复注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dbQueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		tasksSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "vidflow_tasks_submitted_total",
			Help: "Long-form speech tasks accepted by the API",
		}),
		tasksFinished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidflow_tasks_finished_total",
				Help: "Tasks that reached a terminal status",
			},
			[]string{"status"},
		),
		tasksInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "vidflow_tasks_in_flight",
			Help: "Tasks currently being processed by this instance",
		}),
		taskDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vidflow_task_duration_seconds",
				Help:    "Wall time from claim to terminal status",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"status"},
		),
		chunksSynthesize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidflow_task_chunks",
			Help:    "Number of chunks per processed task",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		}),
		externalDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vidflow_external_call_duration_seconds",
				Help:    "Duration of calls to external services and tools",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"service", "outcome"},
		),
		metadataDecode: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidflow_metadata_decode_total",
				Help: "Metadata decode results by strategy",
			},
			[]string{"strategy"},
		),
	}
}

// RecordHTTPRequest 记录HTTP请求
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDBQuery 记录数据库查询
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func (m *Metrics) TaskSubmitted() { m.tasksSubmitted.Inc() }

func (m *Metrics) TaskStarted(chunks int) {
	m.tasksInFlight.Inc()
	m.chunksSynthesize.Observe(float64(chunks))
}

// TaskFinished records a terminal status; duration is measured from the claim.
func (m *Metrics) TaskFinished(status string, duration time.Duration) {
	m.tasksInFlight.Dec()
	m.tasksFinished.WithLabelValues(status).Inc()
	m.taskDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// TaskExpired counts tasks failed by the sweeper without a running worker.
func (m *Metrics) TaskExpired() {
	m.tasksFinished.WithLabelValues("FAILED").Inc()
}

// ObserveExternal records one call to service (fish_audio, ffmpeg, llm, youtube...).
func (m *Metrics) ObserveExternal(service string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.externalDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *Metrics) MetadataDecoded(strategy string) {
	m.metadataDecode.WithLabelValues(strategy).Inc()
}
