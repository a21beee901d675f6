package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/status"
	"github.com/shaiso/Flowtrack/internal/telemetry"
)

// pollLoop — цикл опроса одного flow.
//
// Первый тик сразу, следующие — через RefreshInterval после завершения
// предыдущего, поэтому тики не перекрываются.
func (t *Tracker) pollLoop(ctx context.Context, key string) {
	logger := telemetry.WithFlowName(t.logger, key)
	ctx = telemetry.WithLogger(ctx, logger)
	logger.Debug("poll loop started")
	defer logger.Debug("poll loop stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Каждый тик читает актуальную регистрацию
		flow, ok := t.registry.Get(key)
		if !ok {
			return
		}

		start := time.Now()
		update := t.collect(ctx, flow)
		if ctx.Err() != nil {
			return
		}
		t.broadcast(ctx, flow, update)

		telemetry.TicksTotal.WithLabelValues(key).Inc()
		telemetry.TickDuration.WithLabelValues(key).Observe(time.Since(start).Seconds())

		timer.Reset(flow.RefreshInterval)
	}
}

// collect опрашивает оба провайдера и сливает результаты.
func (t *Tracker) collect(ctx context.Context, flow *domain.Flow) domain.StatusUpdate {
	var (
		orch, proc map[string]domain.StageStatus
		wg         sync.WaitGroup
	)

	if t.orchestrator != nil && len(flow.OrchestratorMapping) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orch = t.orchestrator.FetchStatuses(ctx, flow.Orchestrator, flow.OrchestratorMapping)
		}()
	}
	if t.process != nil && len(flow.ProcessMapping) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			proc = t.process.FetchStatuses(ctx, flow.Process, flow.ProcessMapping)
		}()
	}
	wg.Wait()

	stages := status.Merge(orch, proc)
	status.FillMissing(stages, flow.Graph)

	return domain.StatusUpdate{
		Timestamp: time.Now().UTC(),
		FlowName:  flow.Name,
		Stages:    stages,
	}
}

// broadcast рассылает снимок подписчикам и во внешнюю шину.
//
// Снимок, собранный по заменённой или удалённой регистрации, отбрасывается.
func (t *Tracker) broadcast(ctx context.Context, flow *domain.Flow, update domain.StatusUpdate) {
	key := flow.Key()
	logger := telemetry.FromContext(ctx)

	t.mu.Lock()
	if !t.registry.SetStageStatus(key, flow.RegisteredAt, update.Stages) {
		t.mu.Unlock()
		logger.Debug("registration changed during tick, snapshot discarded")
		return
	}
	delivered, dropped := t.hub.Publish(key, update)
	t.mu.Unlock()

	logger.Debug("status broadcast",
		"stages", len(update.Stages),
		"delivered", delivered,
		"dropped", dropped,
	)

	if t.publisher == nil {
		return
	}
	if err := t.publisher.PublishStatus(ctx, update); err != nil {
		logger.Warn("failed to publish status to mq", "error", err)
	}
}
