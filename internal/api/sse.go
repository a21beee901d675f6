package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// sseKeepAlive — интервал комментариев-пингов в SSE потоке.
const sseKeepAlive = 30 * time.Second

// StreamEvents отдаёт снимки статусов flow через Server-Sent Events.
// GET /api/v1/flows/{name}/events
//
// Поток завершается при отключении клиента или снятии flow с отслеживания.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, h.logger, fmt.Errorf("streaming not supported"))
		return
	}

	sub, err := h.tracker.Subscribe(r.PathValue("name"))
	if HandleError(w, h.logger, err, "flow not found") {
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case update, ok := <-sub.Updates():
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				h.logger.Warn("failed to encode status update", "flow", update.FlowName, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
