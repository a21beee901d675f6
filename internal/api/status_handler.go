package api

import (
	"net/http"
)

// GetStatus опрашивает бэкенды и возвращает свежий снимок статусов flow.
// GET /api/v1/flows/{name}/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	update, err := h.tracker.GetLatestStatus(r.Context(), r.PathValue("name"))
	if HandleError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, update)
}

// Health — проверка состояния процесса.
// GET /healthz
//
// Потерянное соединение с RabbitMQ даёт 503 со статусом "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	body := map[string]any{
		"status":   "ok",
		"flows":    len(h.tracker.ListFlows()),
		"rabbitmq": "disabled",
	}

	if h.broker != nil {
		if h.broker.IsConnected() {
			body["rabbitmq"] = "connected"
		} else {
			body["rabbitmq"] = "disconnected"
			body["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	JSON(w, code, body)
}
