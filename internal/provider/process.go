package provider

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shaiso/Flowtrack/internal/connpool"
	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/repo"
	"github.com/shaiso/Flowtrack/internal/status"
	"github.com/shaiso/Flowtrack/internal/telemetry"
)

// Process — провайдер статусов из on-prem базы процессов.
type Process struct {
	cache  *connpool.Cache[StageReader]
	logger *slog.Logger
}

// NewProcess создаёт провайдер поверх кэша подключений.
func NewProcess(cache *connpool.Cache[StageReader], logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		cache:  cache,
		logger: telemetry.WithBackend(logger, "process"),
	}
}

// FetchStatuses возвращает статус каждой стадии mapping.
//
// Пара без одного из идентификаторов сразу даёт "unknown" без обращения
// к бэкенду. Отсутствие записи даёт "not_found". Сбой подключения даёт
// "error" всем стадиям с полной парой, сбой запроса — только своей стадии.
func (p *Process) FetchStatuses(ctx context.Context, ep domain.Endpoint, mapping map[string]domain.ProcessRef) map[string]domain.StageStatus {
	result := make(map[string]domain.StageStatus, len(mapping))

	pending := make(map[string]domain.ProcessRef, len(mapping))
	for stage, ref := range mapping {
		if !ref.Complete() {
			result[stage] = domain.NewUnknownStatus("missing bpf_id or process_id")
			continue
		}
		pending[stage] = ref
	}
	if len(pending) == 0 {
		return result
	}

	reader, err := p.cache.Acquire(ctx, ep)
	if err != nil {
		p.logger.Error("failed to acquire connection",
			"endpoint", ep.Identity(),
			"stages", len(pending),
			"error", err,
		)
		telemetry.BackendErrorsTotal.WithLabelValues("process").Inc()
		for stage := range pending {
			result[stage] = domain.NewErrorStatus(err)
		}
		return result
	}

	for stage, ref := range pending {
		result[stage] = p.fetchOne(ctx, reader, stage, ref)
	}
	return result
}

func (p *Process) fetchOne(ctx context.Context, reader StageReader, stage string, ref domain.ProcessRef) domain.StageStatus {
	rec, err := reader.StageStatus(ctx, ref.BpfID, ref.ProcessID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.StageStatus{
			Status: domain.StatusNotFound,
			Details: map[string]any{
				"bpf_id":     ref.BpfID,
				"process_id": ref.ProcessID,
			},
		}
	}
	if err != nil {
		p.logger.Error("failed to fetch stage status",
			"stage", stage,
			"bpf_id", ref.BpfID,
			"process_id", ref.ProcessID,
			"error", err,
		)
		telemetry.BackendErrorsTotal.WithLabelValues("process").Inc()
		return domain.NewErrorStatus(err)
	}

	return domain.StageStatus{
		Status:    status.FromProcess(rec.Status),
		StartTime: rec.StartDate,
		EndTime:   rec.EndDate,
		Details: map[string]any{
			"bpf_id":          ref.BpfID,
			"process_id":      ref.ProcessID,
			"original_status": rec.Status,
			"start_date":      rec.StartDate,
			"end_date":        rec.EndDate,
		},
	}
}
