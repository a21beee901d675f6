package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// wsWriteTimeout — дедлайн записи одного сообщения.
	wsWriteTimeout = 10 * time.Second

	// wsPingInterval — интервал ping-кадров.
	wsPingInterval = 30 * time.Second

	// wsReadLimit — клиентские кадры игнорируются, большие не нужны.
	wsReadLimit = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS отдаёт снимки статусов flow через WebSocket.
// GET /ws/{name}
//
// Каждое сообщение — JSON снимок {timestamp, flowName, stages}.
// Текстовые кадры клиента читаются и отбрасываются.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	// Подписка до upgrade: неизвестный flow получает обычный 404
	sub, err := h.tracker.Subscribe(r.PathValue("name"))
	if HandleError(w, h.logger, err, "flow not found") {
		return
	}
	defer sub.Cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := h.logger.With("flow", sub.Flow, "subscriber", sub.ID, "remote_addr", r.RemoteAddr)
	logger.Info("websocket client connected")
	defer logger.Info("websocket client disconnected")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(wsReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case update, ok := <-sub.Updates():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "flow unregistered"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(update); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
