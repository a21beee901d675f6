package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Configs
	mux.Handle("GET /api/v1/configs", chain(http.HandlerFunc(h.ListConfigs)))
	mux.Handle("POST /api/v1/configs", chain(http.HandlerFunc(h.UploadConfig)))
	mux.Handle("GET /api/v1/configs/{name}", chain(http.HandlerFunc(h.GetConfig)))
	mux.Handle("DELETE /api/v1/configs/{name}", chain(http.HandlerFunc(h.DeleteConfig)))

	// Flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("GET /api/v1/flows/{name}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("DELETE /api/v1/flows/{name}", chain(http.HandlerFunc(h.DeleteFlow)))

	// Status
	mux.Handle("GET /api/v1/flows/{name}/status", chain(http.HandlerFunc(h.GetStatus)))
	mux.Handle("GET /api/v1/flows/{name}/events", chain(http.HandlerFunc(h.StreamEvents)))
	mux.Handle("GET /ws/{name}", chain(http.HandlerFunc(h.ServeWS)))

	// Service
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
}
