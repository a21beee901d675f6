package fanout

import (
	"sync"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// Subscription — подписка на снимки одного flow.
//
// Канал Updates закрывается при Cancel, при удалении flow
// из трекера и при закрытии hub.
type Subscription struct {
	ID   string
	Flow string

	hub *Hub
	ch  chan domain.StatusUpdate

	mu     sync.Mutex
	closed bool
}

// Updates возвращает канал снимков.
func (s *Subscription) Updates() <-chan domain.StatusUpdate {
	return s.ch
}

// Cancel отписывает подписчика и закрывает канал.
// Повторный вызов безопасен.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
	s.close()
}

// deliver кладёт снимок в буфер без блокировки.
// ok — подписка ещё открыта; evicted — вытеснен самый старый снимок.
func (s *Subscription) deliver(update domain.StatusUpdate) (ok, evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, false
	}

	select {
	case s.ch <- update:
		return true, false
	default:
	}

	// Буфер полон: освобождаем место под новый снимок
	select {
	case <-s.ch:
		evicted = true
	default:
	}

	select {
	case s.ch <- update:
	default:
	}
	return true, evicted
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
