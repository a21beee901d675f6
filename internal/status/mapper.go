// Package status приводит статусы бэкендов к каноническому словарю
// и сливает результаты провайдеров в один снимок.
package status

import (
	"strings"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// orchestratorStates — состояния dag_run в Airflow.
var orchestratorStates = map[string]domain.Status{
	"success":   domain.StatusCompleted,
	"running":   domain.StatusRunning,
	"failed":    domain.StatusFailed,
	"queued":    domain.StatusPending,
	"scheduled": domain.StatusPending,
}

// processStates — состояния on-prem процессов.
var processStates = map[string]domain.Status{
	"not_started": domain.StatusPending,
	"running":     domain.StatusRunning,
	"failed":      domain.StatusFailed,
	"completed":   domain.StatusCompleted,
}

// FromOrchestrator приводит состояние Airflow к каноническому статусу.
// Нераспознанное состояние возвращается как есть в нижнем регистре.
func FromOrchestrator(state string) domain.Status {
	return lookup(orchestratorStates, state)
}

// FromProcess приводит статус on-prem процесса к каноническому.
// Нераспознанный статус возвращается как есть в нижнем регистре.
func FromProcess(state string) domain.Status {
	return lookup(processStates, state)
}

func lookup(table map[string]domain.Status, state string) domain.Status {
	key := strings.ToLower(strings.TrimSpace(state))
	if key == "" {
		return domain.StatusUnknown
	}
	if s, ok := table[key]; ok {
		return s
	}
	return domain.Status(key)
}
