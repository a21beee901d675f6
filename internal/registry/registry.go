// Package registry хранит зарегистрированные flows.
//
// Поиск по имени регистронезависимый. Повторная регистрация
// заменяет flow целиком. Наружу отдаются копии графа.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// Registry — потокобезопасное хранилище flows.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
}

// New создаёт пустой реестр.
func New() *Registry {
	return &Registry{flows: make(map[string]*domain.Flow)}
}

// Put сохраняет flow, заменяя существующий с тем же ключом.
// Возвращает true, если flow с таким ключом уже был.
func (r *Registry) Put(flow *domain.Flow) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := flow.Key()
	_, replaced := r.flows[key]
	r.flows[key] = flow
	return replaced
}

// Get возвращает копию flow по имени.
func (r *Registry) Get(name string) (*domain.Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, ok := r.flows[domain.FlowKey(name)]
	if !ok {
		return nil, false
	}
	return cloneFlow(flow), true
}

// Delete удаляет flow. Возвращает false, если flow не было.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.FlowKey(name)
	if _, ok := r.flows[key]; !ok {
		return false
	}
	delete(r.flows, key)
	return true
}

// List возвращает сводки всех flows, отсортированные по имени.
func (r *Registry) List() []domain.FlowSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]domain.FlowSummary, 0, len(r.flows))
	for _, flow := range r.flows {
		summaries = append(summaries, flow.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

// Len возвращает количество flows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flows)
}

// SetStageStatus записывает статусы стадий в граф flow.
//
// registeredAt — время регистрации, по которой собраны статусы:
// если flow с тех пор перерегистрирован, запись не выполняется.
// Стадии без узла в графе пропускаются.
func (r *Registry) SetStageStatus(name string, registeredAt time.Time, stages map[string]domain.StageStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, ok := r.flows[domain.FlowKey(name)]
	if !ok || flow.Graph == nil || !flow.RegisteredAt.Equal(registeredAt) {
		return false
	}

	// Граф заменяется копией: ранее выданные копии не меняются
	graph := flow.Graph.Clone()
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		if !node.IsStage() {
			continue
		}
		if st, ok := stages[node.Data.Label]; ok {
			node.Data.Status = st.Status
		}
	}

	updated := *flow
	updated.Graph = graph
	r.flows[flow.Key()] = &updated
	return true
}

func cloneFlow(flow *domain.Flow) *domain.Flow {
	c := *flow
	c.Graph = flow.Graph.Clone()

	if flow.OrchestratorMapping != nil {
		c.OrchestratorMapping = make(map[string]string, len(flow.OrchestratorMapping))
		for k, v := range flow.OrchestratorMapping {
			c.OrchestratorMapping[k] = v
		}
	}
	if flow.ProcessMapping != nil {
		c.ProcessMapping = make(map[string]domain.ProcessRef, len(flow.ProcessMapping))
		for k, v := range flow.ProcessMapping {
			c.ProcessMapping[k] = v
		}
	}
	return &c
}
