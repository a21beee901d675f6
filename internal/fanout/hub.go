// Package fanout рассылает снимки статусов подписчикам flow.
//
// У каждого подписчика свой буферизованный канал. Publish никогда
// не блокируется: если буфер подписчика полон, самый старый снимок
// вытесняется новым. Снимки разделяются между подписчиками
// и должны считаться read-only.
package fanout

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/telemetry"
)

// DefaultBuffer — размер буфера подписчика по умолчанию.
const DefaultBuffer = 16

// ErrHubClosed — hub закрыт, новые подписки не принимаются.
var ErrHubClosed = errors.New("fanout hub closed")

// Config — конфигурация hub.
type Config struct {
	// Buffer — размер буфера подписчика (по умолчанию DefaultBuffer).
	Buffer int

	Logger *slog.Logger
}

// Hub — множества подписчиков по имени flow.
type Hub struct {
	buffer int
	logger *slog.Logger

	mu     sync.RWMutex
	flows  map[string]map[string]*Subscription
	last   map[string]domain.StatusUpdate
	closed bool
}

// New создаёт hub.
func New(cfg Config) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Hub{
		buffer: cfg.Buffer,
		logger: cfg.Logger,
		flows:  make(map[string]map[string]*Subscription),
		last:   make(map[string]domain.StatusUpdate),
	}
}

// Subscribe добавляет подписчика flow.
//
// Если у flow уже есть снимок, он сразу кладётся в канал подписчика.
func (h *Hub) Subscribe(flow string) (*Subscription, error) {
	key := domain.FlowKey(flow)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscription{
		ID:   uuid.NewString(),
		Flow: key,
		hub:  h,
		ch:   make(chan domain.StatusUpdate, h.buffer),
	}

	subs, ok := h.flows[key]
	if !ok {
		subs = make(map[string]*Subscription)
		h.flows[key] = subs
	}
	subs[sub.ID] = sub

	if update, ok := h.last[key]; ok {
		sub.deliver(update)
	}

	telemetry.Subscribers.WithLabelValues(key).Set(float64(len(subs)))
	h.logger.Debug("subscriber added", "flow", key, "subscriber_id", sub.ID)

	return sub, nil
}

// Publish рассылает снимок всем текущим подписчикам flow.
// Возвращает количество доставленных снимков и вытесненных старых.
func (h *Hub) Publish(flow string, update domain.StatusUpdate) (delivered, dropped int) {
	key := domain.FlowKey(flow)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, 0
	}
	h.last[key] = update
	subs := make([]*Subscription, 0, len(h.flows[key]))
	for _, sub := range h.flows[key] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		ok, evicted := sub.deliver(update)
		if !ok {
			continue
		}
		delivered++
		if evicted {
			dropped++
		}
	}

	if dropped > 0 {
		telemetry.BroadcastDroppedTotal.WithLabelValues(key).Add(float64(dropped))
		h.logger.Warn("slow subscribers, oldest snapshots dropped",
			"flow", key,
			"dropped", dropped,
		)
	}

	return delivered, dropped
}

// Last возвращает последний разосланный снимок flow.
func (h *Hub) Last(flow string) (domain.StatusUpdate, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	update, ok := h.last[domain.FlowKey(flow)]
	return update, ok
}

// Count возвращает количество подписчиков flow.
func (h *Hub) Count(flow string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.flows[domain.FlowKey(flow)])
}

// Forget забывает последний снимок flow, не трогая подписки.
// Новые подписчики не получат снимок до следующего Publish.
func (h *Hub) Forget(flow string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.last, domain.FlowKey(flow))
}

// CloseFlow закрывает все подписки flow и забывает его последний снимок.
// Возвращает количество закрытых подписок.
func (h *Hub) CloseFlow(flow string) int {
	key := domain.FlowKey(flow)

	h.mu.Lock()
	subs := h.flows[key]
	delete(h.flows, key)
	delete(h.last, key)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	telemetry.Subscribers.DeleteLabelValues(key)

	return len(subs)
}

// Close закрывает все подписки. После Close hub не принимает подписчиков.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	flows := h.flows
	h.flows = make(map[string]map[string]*Subscription)
	h.last = make(map[string]domain.StatusUpdate)
	h.mu.Unlock()

	for key, subs := range flows {
		for _, sub := range subs {
			sub.close()
		}
		telemetry.Subscribers.DeleteLabelValues(key)
	}
}

// remove удаляет подписчика из множества flow.
func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.flows[sub.Flow]
	if !ok {
		return
	}
	if _, ok := subs[sub.ID]; !ok {
		return
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(h.flows, sub.Flow)
	}
	telemetry.Subscribers.WithLabelValues(sub.Flow).Set(float64(len(subs)))
	h.logger.Debug("subscriber removed", "flow", sub.Flow, "subscriber_id", sub.ID)
}
