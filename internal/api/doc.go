// Package api содержит HTTP API сервер flowtrack.
//
// Структура:
//   - handler.go        — Handler с DI (трекер, хранилище конфигураций, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, metrics, recovery)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects (request/response)
//   - config_handler.go — обработчики для /configs
//   - flow_handler.go   — обработчики для /flows
//   - status_handler.go — снимок статусов и /healthz
//   - sse.go, ws.go     — push снимков через SSE и WebSocket
//
// API позволяет загружать конфигурации flows, просматривать графы
// и получать статусы стадий опросом или подпиской.
package api
