package api

import (
	"net/http"

	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/engine"
)

// ListFlows возвращает сводки зарегистрированных flows.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows := h.tracker.ListFlows()
	List(w, flows, len(flows))
}

// GetFlow возвращает граф flow и порядок стадий.
// GET /api/v1/flows/{name}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.tracker.GetFlow(r.PathValue("name"))
	if HandleError(w, h.logger, err, "flow not found") {
		return
	}

	dag, err := engine.BuildDAG(flow.Graph)
	if err != nil {
		h.logger.Warn("failed to order flow stages", "flow", flow.Name, "error", err)
		dag = nil
	}

	Success(w, FlowFromDomain(flow, dag))
}

// DeleteFlow снимает flow с отслеживания.
// Файл конфигурации остаётся; flow вернётся при его изменении.
// DELETE /api/v1/flows/{name}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	if !h.tracker.UnregisterFlow(r.PathValue("name")) {
		NotFound(w, "flow not found")
		return
	}

	NoContent(w)
}

// lookupFlow возвращает flow, если он зарегистрирован.
func (h *Handler) lookupFlow(name string) (*domain.Flow, bool) {
	flow, err := h.tracker.GetFlow(name)
	if err != nil {
		return nil, false
	}
	return flow, true
}
