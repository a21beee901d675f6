package provider

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shaiso/Flowtrack/internal/connpool"
	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/status"
	"github.com/shaiso/Flowtrack/internal/telemetry"
)

// Orchestrator — провайдер статусов из метаданных Airflow.
type Orchestrator struct {
	cache  *connpool.Cache[DagRunReader]
	logger *slog.Logger
}

// NewOrchestrator создаёт провайдер поверх кэша подключений.
func NewOrchestrator(cache *connpool.Cache[DagRunReader], logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cache:  cache,
		logger: telemetry.WithBackend(logger, "orchestrator"),
	}
}

// FetchStatuses возвращает статус каждой стадии mapping (стадия → dag_id).
//
// Один запрос на все dag_id. DAG без запусков даёт "unknown" без времён.
// Сбой подключения или запроса даёт "error" для всех стадий mapping.
func (p *Orchestrator) FetchStatuses(ctx context.Context, ep domain.Endpoint, mapping map[string]string) map[string]domain.StageStatus {
	result := make(map[string]domain.StageStatus, len(mapping))
	if len(mapping) == 0 {
		return result
	}

	reader, err := p.cache.Acquire(ctx, ep)
	if err != nil {
		return p.failAll(ep, mapping, err)
	}

	runs, err := reader.LatestDagRuns(ctx, dagIDs(mapping))
	if err != nil {
		return p.failAll(ep, mapping, err)
	}

	for stage, dagID := range mapping {
		run, ok := runs[dagID]
		if !ok {
			result[stage] = domain.StageStatus{
				Status: domain.StatusUnknown,
				Details: map[string]any{
					"dag_id": dagID,
					"state":  "unknown",
				},
			}
			continue
		}

		result[stage] = domain.StageStatus{
			Status:    status.FromOrchestrator(run.State),
			StartTime: run.StartDate,
			EndTime:   run.EndDate,
			Details: map[string]any{
				"dag_id":         dagID,
				"state":          run.State,
				"execution_date": run.ExecutionDate,
				"start_date":     run.StartDate,
				"end_date":       run.EndDate,
			},
		}
	}

	return result
}

func (p *Orchestrator) failAll(ep domain.Endpoint, mapping map[string]string, err error) map[string]domain.StageStatus {
	p.logger.Error("failed to fetch dag runs",
		"endpoint", ep.Identity(),
		"stages", len(mapping),
		"error", err,
	)
	telemetry.BackendErrorsTotal.WithLabelValues("orchestrator").Inc()

	result := make(map[string]domain.StageStatus, len(mapping))
	for stage, dagID := range mapping {
		st := domain.NewErrorStatus(err)
		st.Details["dag_id"] = dagID
		result[stage] = st
	}
	return result
}

// dagIDs возвращает уникальные dag_id в детерминированном порядке.
func dagIDs(mapping map[string]string) []string {
	seen := make(map[string]struct{}, len(mapping))
	ids := make([]string, 0, len(mapping))
	for _, id := range mapping {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
