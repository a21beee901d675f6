package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики трекера. Регистрируются в default registry
// и отдаются через promhttp.Handler() на /metrics.
var (
	// TicksTotal — количество опросов бэкендов по flow.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowtrack_ticks_total",
		Help: "Total status refresh ticks per flow",
	}, []string{"flow"})

	// TickDuration — длительность одного опроса (оба бэкенда + рассылка).
	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowtrack_tick_duration_seconds",
		Help:    "Duration of a single status refresh tick",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"flow"})

	// BackendErrorsTotal — ошибки бэкендов (подключение или запрос).
	BackendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowtrack_backend_errors_total",
		Help: "Total backend failures while fetching stage statuses",
	}, []string{"backend"})

	// Subscribers — текущее количество подписчиков по flow.
	Subscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowtrack_subscribers",
		Help: "Current number of status subscribers per flow",
	}, []string{"flow"})

	// BroadcastDroppedTotal — снимки, вытесненные из переполненного буфера подписчика.
	BroadcastDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowtrack_broadcast_dropped_total",
		Help: "Total snapshots dropped for slow subscribers",
	}, []string{"flow"})

	// ConnectionsOpen — открытые пулы подключений по бэкенду.
	ConnectionsOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowtrack_connections_open",
		Help: "Number of open backend connection pools",
	}, []string{"backend"})

	// HTTPRequestsTotal — запросы к HTTP API.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowtrack_http_requests_total",
		Help: "Total HTTP requests handled by flowtrack-server",
	}, []string{"method", "status"})
)
