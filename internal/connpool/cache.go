// Package connpool хранит пулы подключений к бэкендам статусов.
//
// Один пул на идентичность подключения (host, user, database):
// flows, ссылающиеся на одну и ту же БД, делят один пул.
// Пулы создаются лениво и закрываются только при остановке процесса.
package connpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/telemetry"
)

var (
	// ErrClosed — кэш уже закрыт (процесс останавливается).
	ErrClosed = errors.New("connection cache closed")

	// ErrOpenFailed — не удалось открыть новый пул.
	ErrOpenFailed = errors.New("open connection failed")
)

// OpenTimeout — предельное время открытия пула.
// Открытие не зависит от контекста вызвавшего: ожидающие его
// вызовы разделяют один результат.
const OpenTimeout = 30 * time.Second

// Handle — пул подключений к бэкенду.
type Handle interface {
	Close() error
}

// Opener открывает новый пул для endpoint.
type Opener[H Handle] func(ctx context.Context, ep domain.Endpoint) (H, error)

// Cache — кэш пулов подключений, ключ — идентичность endpoint.
//
// Acquire безопасен для конкурентного вызова: одновременные запросы
// одной идентичности открывают пул ровно один раз (singleflight).
type Cache[H Handle] struct {
	name   string
	open   Opener[H]
	logger *slog.Logger

	mu      sync.RWMutex
	handles map[string]H
	closed  bool

	group singleflight.Group
}

// New создаёт пустой кэш.
// name — имя бэкенда для логов и метрик ("orchestrator", "process").
func New[H Handle](name string, open Opener[H], logger *slog.Logger) *Cache[H] {
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache[H]{
		name:    name,
		open:    open,
		logger:  logger.With("backend", name),
		handles: make(map[string]H),
	}
}

// Acquire возвращает пул для endpoint, открывая его при первом обращении.
func (c *Cache[H]) Acquire(ctx context.Context, ep domain.Endpoint) (H, error) {
	key := ep.Identity()

	if h, ok, err := c.lookup(key); ok || err != nil {
		return h, err
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Повторная проверка: пул мог появиться, пока ждали singleflight
		if h, ok, err := c.lookup(key); ok || err != nil {
			return h, err
		}

		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), OpenTimeout)
		defer cancel()

		h, err := c.open(openCtx, ep)
		if err != nil {
			c.logger.Error("failed to open connection",
				"endpoint", key,
				"error", err,
			)
			return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, key, err)
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = h.Close()
			return nil, ErrClosed
		}
		c.handles[key] = h
		count := len(c.handles)
		c.mu.Unlock()

		telemetry.ConnectionsOpen.WithLabelValues(c.name).Set(float64(count))
		c.logger.Info("connection opened", "endpoint", key)

		return h, nil
	})

	var zero H
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(H), nil
	}
}

// lookup ищет пул под read-lock.
func (c *Cache[H]) lookup(key string) (H, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero H
	if c.closed {
		return zero, false, ErrClosed
	}
	h, ok := c.handles[key]
	return h, ok, nil
}

// Len возвращает количество открытых пулов.
func (c *Cache[H]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

// CloseAll закрывает все пулы и очищает кэш.
//
// Ошибки закрытия отдельных пулов логируются и не возвращаются.
// После CloseAll кэш не выдаёт новых пулов.
func (c *Cache[H]) CloseAll() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	handles := c.handles
	c.handles = make(map[string]H)
	c.mu.Unlock()

	for key, h := range handles {
		if err := h.Close(); err != nil {
			c.logger.Warn("failed to close connection",
				"endpoint", key,
				"error", err,
			)
			continue
		}
		c.logger.Info("connection closed", "endpoint", key)
	}

	telemetry.ConnectionsOpen.WithLabelValues(c.name).Set(0)
}
