package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/engine"
	"github.com/shaiso/Flowtrack/internal/fanout"
	"github.com/shaiso/Flowtrack/internal/registry"
)

// OrchestratorFetcher опрашивает Airflow.
type OrchestratorFetcher interface {
	FetchStatuses(ctx context.Context, ep domain.Endpoint, mapping map[string]string) map[string]domain.StageStatus
}

// ProcessFetcher опрашивает on-prem базу процессов.
type ProcessFetcher interface {
	FetchStatuses(ctx context.Context, ep domain.Endpoint, mapping map[string]domain.ProcessRef) map[string]domain.StageStatus
}

// StatusPublisher публикует снимки во внешнюю шину (RabbitMQ).
type StatusPublisher interface {
	PublishStatus(ctx context.Context, update domain.StatusUpdate) error
}

// Tracker — движок агрегации и рассылки статусов.
type Tracker struct {
	registry     *registry.Registry
	hub          *fanout.Hub
	orchestrator OrchestratorFetcher
	process      ProcessFetcher
	publisher    StatusPublisher

	// Циклы опроса: ключ flow → handle
	loops map[string]*flowLoop
	mu    sync.Mutex

	// Lifecycle
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
}

// flowLoop — handle цикла опроса одного flow.
type flowLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Config — конфигурация Tracker.
type Config struct {
	Registry     *registry.Registry
	Hub          *fanout.Hub
	Orchestrator OrchestratorFetcher
	Process      ProcessFetcher

	// Publisher — необязательная публикация снимков в RabbitMQ.
	Publisher StatusPublisher

	Logger *slog.Logger
}

// New создаёт новый Tracker.
func New(cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := cfg.Registry
	if reg == nil {
		reg = registry.New()
	}

	hub := cfg.Hub
	if hub == nil {
		hub = fanout.New(fanout.Config{Logger: logger})
	}

	return &Tracker{
		registry:     reg,
		hub:          hub,
		orchestrator: cfg.Orchestrator,
		process:      cfg.Process,
		publisher:    cfg.Publisher,
		loops:        make(map[string]*flowLoop),
		logger:       logger,
	}
}

// Start запускает циклы опроса для уже зарегистрированных flows.
// Flows, зарегистрированные после Start, запускаются сразу при регистрации.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrStopped
	}
	if t.ctx != nil {
		return nil
	}

	t.ctx, t.cancelFunc = context.WithCancel(ctx)

	flows := t.registry.List()
	for _, f := range flows {
		t.startLoopLocked(domain.FlowKey(f.Name))
	}

	t.logger.Info("tracker started", "flows", len(flows))
	return nil
}

// Stop отменяет все циклы опроса и дожидается их завершения.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	if t.cancelFunc != nil {
		t.cancelFunc()
	}
	t.loops = make(map[string]*flowLoop)
	t.mu.Unlock()

	t.logger.Info("stopping tracker...")
	t.wg.Wait()
	t.logger.Info("tracker stopped")
}

// RegisterFlow компилирует граф и регистрирует flow.
//
// Повторная регистрация с тем же именем заменяет flow целиком;
// работающий цикл подхватит новые маппинги на следующем тике.
// Возвращает результат компиляции с предупреждениями разбора.
func (t *Tracker) RegisterFlow(reg domain.Registration) (*engine.Result, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty flow name", ErrInvalidRegistration)
	}
	if reg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("%w: refresh interval must be positive, got %s", ErrInvalidRegistration, reg.RefreshInterval)
	}

	result := engine.Compile(reg.Overall, reg.SubStages)
	if len(result.Graph.StageLabels()) == 0 {
		return result, fmt.Errorf("%w: %w", ErrInvalidRegistration, engine.ErrEmptyDefinition)
	}

	logger := t.logger.With("flow", name)
	for _, w := range result.Warnings {
		logger.Warn("flow definition anomaly", "warning", w.Error())
	}
	t.warnMappingMismatch(logger, result.Graph, reg)

	flow := &domain.Flow{
		Name:                name,
		Graph:               result.Graph,
		OrchestratorMapping: reg.OrchestratorMapping,
		ProcessMapping:      reg.ProcessMapping,
		RefreshInterval:     reg.RefreshInterval,
		Orchestrator:        reg.Orchestrator,
		Process:             reg.Process,
		RegisteredAt:        time.Now().UTC(),
	}

	t.mu.Lock()
	replaced := t.registry.Put(flow)
	if replaced {
		// Снимок прежнего определения не должен доставаться новым подписчикам
		t.hub.Forget(flow.Key())
	}
	if t.ctx != nil && !t.stopped {
		t.startLoopLocked(flow.Key())
	}
	t.mu.Unlock()

	logger.Info("flow registered",
		"replaced", replaced,
		"stages", len(result.Graph.StageLabels()),
		"refresh_interval", reg.RefreshInterval,
		"warnings", len(result.Warnings),
	)

	return result, nil
}

// UnregisterFlow удаляет flow и останавливает его цикл опроса.
//
// Возвращает управление только после завершения цикла, после чего
// закрывает подписки flow. Возвращает false, если flow не был зарегистрирован.
func (t *Tracker) UnregisterFlow(name string) bool {
	key := domain.FlowKey(name)

	t.mu.Lock()
	existed := t.registry.Delete(key)
	loop := t.loops[key]
	delete(t.loops, key)
	t.mu.Unlock()

	if loop != nil {
		loop.cancel()
		<-loop.done
	}
	closed := t.hub.CloseFlow(key)

	if existed {
		t.logger.Info("flow unregistered", "flow", key, "subscribers_closed", closed)
	}
	return existed
}

// ListFlows возвращает сводки зарегистрированных flows.
func (t *Tracker) ListFlows() []domain.FlowSummary {
	return t.registry.List()
}

// GetFlow возвращает копию зарегистрированного flow.
func (t *Tracker) GetFlow(name string) (*domain.Flow, error) {
	flow, ok := t.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
	}
	return flow, nil
}

// GetLatestStatus опрашивает бэкенды вне цикла и возвращает свежий снимок.
func (t *Tracker) GetLatestStatus(ctx context.Context, name string) (domain.StatusUpdate, error) {
	flow, ok := t.registry.Get(name)
	if !ok {
		return domain.StatusUpdate{}, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
	}
	return t.collect(ctx, flow), nil
}

// Subscribe подписывает на снимки flow.
//
// Проверка регистрации и подписка выполняются под t.mu вместе с удалением
// в UnregisterFlow: подписка либо отклоняется, либо закрывается им.
func (t *Tracker) Subscribe(name string) (*fanout.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.registry.Get(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
	}
	return t.hub.Subscribe(name)
}

// ActiveLoops возвращает количество работающих циклов опроса.
func (t *Tracker) ActiveLoops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.loops)
}

// startLoopLocked запускает цикл flow, если он ещё не запущен.
// Вызывается под t.mu.
func (t *Tracker) startLoopLocked(key string) {
	if _, running := t.loops[key]; running {
		return
	}

	ctx, cancel := context.WithCancel(t.ctx)
	loop := &flowLoop{cancel: cancel, done: make(chan struct{})}
	t.loops[key] = loop

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(loop.done)
		t.pollLoop(ctx, key)
	}()
}

// warnMappingMismatch логирует стадии маппингов, которых нет в графе.
func (t *Tracker) warnMappingMismatch(logger *slog.Logger, graph *domain.Graph, reg domain.Registration) {
	known := make(map[string]bool)
	for _, label := range graph.StageLabels() {
		known[label] = true
	}

	for stage := range reg.OrchestratorMapping {
		if !known[stage] {
			logger.Warn("orchestrator mapping references unknown stage", "stage", stage)
		}
	}
	for stage := range reg.ProcessMapping {
		if !known[stage] {
			logger.Warn("process mapping references unknown stage", "stage", stage)
		}
	}
}
