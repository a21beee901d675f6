package scheduler

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Flowtrack/internal/config"
	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/engine"
)

// Registrar регистрирует и удаляет flows (tracker.Tracker).
type Registrar interface {
	RegisterFlow(reg domain.Registration) (*engine.Result, error)
	UnregisterFlow(name string) bool
}

// ConfigSource отдаёт файлы конфигураций (config.Store).
type ConfigSource interface {
	ReadAll() ([]config.File, error)
}

// Reloader — перечитывает CONFIG_DIR по расписанию.
type Reloader struct {
	source   ConfigSource
	tracker  Registrar
	settings config.Settings
	schedule cron.Schedule
	expr     string
	logger   *slog.Logger

	// Загруженные файлы: имя файла → состояние
	known map[string]loadedFile
	mu    sync.Mutex

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// loadedFile — последнее обработанное состояние файла.
type loadedFile struct {
	flow   string
	hash   [sha256.Size]byte
	failed bool
}

// Config — конфигурация Reloader.
type Config struct {
	Source   ConfigSource
	Tracker  Registrar
	Settings config.Settings

	// Schedule — cron-выражение (default: @every 1m).
	Schedule string

	Logger *slog.Logger
}

// TickResult — итог одного перечитывания.
type TickResult struct {
	Registered int
	Unchanged  int
	Removed    int
	Failed     int
}

// New создаёт новый Reloader.
func New(cfg Config) (*Reloader, error) {
	expr := cfg.Schedule
	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reloader{
		source:   cfg.Source,
		tracker:  cfg.Tracker,
		settings: cfg.Settings,
		schedule: schedule,
		expr:     expr,
		logger:   logger,
		known:    make(map[string]loadedFile),
	}, nil
}

// Tick перечитывает каталог конфигураций.
//
// 1. Новые и изменённые файлы регистрируются (замена flow целиком)
// 2. Неизменённые файлы пропускаются (сравнение по sha256)
// 3. Flows удалённых файлов снимаются с регистрации
//
// Ошибка одного файла не блокирует обработку остальных; flow
// с невалидной новой версией файла продолжает работать со старой.
func (r *Reloader) Tick(ctx context.Context) (TickResult, error) {
	var result TickResult

	files, err := r.source.ReadAll()
	if err != nil {
		return result, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		seen[f.Name] = true

		hash := sha256.Sum256(f.Data)
		prev, exists := r.known[f.Name]
		if exists && prev.hash == hash {
			result.Unchanged++
			continue
		}

		flow, err := r.register(f)
		if err != nil {
			r.logger.Error("failed to load flow config",
				"file", f.Name,
				"error", err,
			)
			result.Failed++
			r.known[f.Name] = loadedFile{flow: prev.flow, hash: hash, failed: true}
			continue
		}

		// Файл переименовал flow — старое имя снимаем
		if exists && prev.flow != "" && domain.FlowKey(prev.flow) != domain.FlowKey(flow) {
			r.unregister(prev.flow)
		}

		r.known[f.Name] = loadedFile{flow: flow, hash: hash}
		result.Registered++
	}

	for name, lf := range r.known {
		if seen[name] {
			continue
		}
		delete(r.known, name)
		if lf.flow != "" && !r.flowOwnedLocked(lf.flow) {
			r.unregister(lf.flow)
			result.Removed++
		}
	}

	if result.Registered > 0 || result.Removed > 0 || result.Failed > 0 {
		r.logger.Info("config reload completed",
			"registered", result.Registered,
			"unchanged", result.Unchanged,
			"removed", result.Removed,
			"failed", result.Failed,
		)
	}

	return result, nil
}

// register разбирает файл и регистрирует flow.
func (r *Reloader) register(f config.File) (string, error) {
	cfg, err := config.ParseFlowConfig(f.Data, f.Format)
	if err != nil {
		return "", err
	}

	result, err := r.tracker.RegisterFlow(cfg.Registration(r.settings))
	if err != nil {
		return "", err
	}

	if result.HasWarnings() {
		r.logger.Warn("flow config has definition anomalies",
			"file", f.Name,
			"flow", cfg.FlowName,
			"warnings", len(result.Warnings),
		)
	}
	return cfg.FlowName, nil
}

func (r *Reloader) unregister(flow string) {
	if r.tracker.UnregisterFlow(flow) {
		r.logger.Info("flow removed with its config", "flow", flow)
	}
}

// flowOwnedLocked проверяет, регистрирует ли flow другой известный файл.
func (r *Reloader) flowOwnedLocked(flow string) bool {
	key := domain.FlowKey(flow)
	for _, lf := range r.known {
		if domain.FlowKey(lf.flow) == key {
			return true
		}
	}
	return false
}

// Start выполняет первый Tick сразу и затем по расписанию.
func (r *Reloader) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.logger.Info("starting config reloader", "schedule", r.expr)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx)
	}()
}

// Stop останавливает Reloader и ждёт завершения текущего Tick.
func (r *Reloader) Stop() {
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.wg.Wait()
	r.logger.Info("config reloader stopped")
}

func (r *Reloader) loop(ctx context.Context) {
	for {
		if _, err := r.Tick(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("config reload failed", "error", err)
		}

		now := time.Now()
		timer := time.NewTimer(r.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
