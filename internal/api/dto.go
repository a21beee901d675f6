package api

import (
	"time"

	"github.com/shaiso/Flowtrack/internal/config"
	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/engine"
)

// Config DTOs

// UploadResponse — ответ на загрузку конфигурации.
type UploadResponse struct {
	FlowName string             `json:"flowName"`
	File     string             `json:"file"`
	Replaced bool               `json:"replaced"`
	Summary  domain.FlowSummary `json:"summary"`
	Warnings []string           `json:"warnings"`
}

// ConfigResponse — конфигурация flow без паролей.
type ConfigResponse struct {
	File   string             `json:"file"`
	Format config.Format      `json:"format"`
	Config *config.FlowConfig `json:"config"`
}

// Flow DTOs

// FlowResponse — зарегистрированный flow с графом.
type FlowResponse struct {
	Name                string                       `json:"name"`
	RefreshInterval     int                          `json:"refreshInterval"`
	RegisteredAt        time.Time                    `json:"registeredAt"`
	Summary             domain.FlowSummary           `json:"summary"`
	Graph               *domain.Graph                `json:"graph"`
	StageOrder          []string                     `json:"stageOrder,omitempty"`
	OrchestratorMapping map[string]string            `json:"orchestratorMapping,omitempty"`
	ProcessMapping      map[string]domain.ProcessRef `json:"processMapping,omitempty"`
}

// FlowFromDomain конвертирует domain.Flow в FlowResponse.
// dag может быть nil, если граф не удалось упорядочить.
func FlowFromDomain(f *domain.Flow, dag *engine.DAG) FlowResponse {
	resp := FlowResponse{
		Name:                f.Name,
		RefreshInterval:     int(f.RefreshInterval / time.Second),
		RegisteredAt:        f.RegisteredAt,
		Summary:             f.Summary(),
		Graph:               f.Graph,
		OrchestratorMapping: f.OrchestratorMapping,
		ProcessMapping:      f.ProcessMapping,
	}
	if dag != nil {
		resp.StageOrder = dag.Labels()
	}
	return resp
}

// warningStrings конвертирует аномалии разбора в строки.
func warningStrings(result *engine.Result) []string {
	out := make([]string, 0)
	if result == nil {
		return out
	}
	for _, w := range result.Warnings {
		out = append(out, w.Error())
	}
	return out
}
