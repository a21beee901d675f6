// Package telemetry обеспечивает наблюдаемость трекера.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики опросов, подписчиков и пулов
//
// flowtrack-server экспортирует метрики на /metrics endpoint.
package telemetry
