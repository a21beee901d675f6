package domain

import (
	"fmt"
	"strings"
	"time"
)

// Flow — зарегистрированный flow.
//
// Flow — агрегат: скомпилированный граф плюс маппинги стадий
// на бэкенды и интервал опроса. При повторной регистрации
// с тем же именем агрегат заменяется целиком, а не сливается.
type Flow struct {
	// Name — уникальное имя flow. Поиск по имени регистронезависимый.
	Name string `json:"name"`

	// Graph — скомпилированный граф.
	Graph *Graph `json:"graph"`

	// OrchestratorMapping — имя стадии → dag_id в Airflow.
	OrchestratorMapping map[string]string `json:"orchestrator_mapping"`

	// ProcessMapping — имя стадии → пара идентификаторов on-prem процесса.
	ProcessMapping map[string]ProcessRef `json:"process_mapping"`

	// RefreshInterval — интервал опроса бэкендов.
	RefreshInterval time.Duration `json:"refresh_interval"`

	// Orchestrator — подключение к метаданным Airflow.
	Orchestrator Endpoint `json:"-"`

	// Process — подключение к on-prem базе процессов.
	Process Endpoint `json:"-"`

	// RegisteredAt — время последней регистрации.
	RegisteredAt time.Time `json:"registered_at"`
}

// Key возвращает ключ flow для регистронезависимого поиска.
func (f *Flow) Key() string {
	return FlowKey(f.Name)
}

// FlowKey нормализует имя flow.
func FlowKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Summary возвращает краткую сводку по flow.
func (f *Flow) Summary() FlowSummary {
	s := FlowSummary{Name: f.Name}
	if f.Graph != nil {
		s.NodeCount = len(f.Graph.Nodes)
		s.EdgeCount = len(f.Graph.Edges)
		s.CategoryCount = f.Graph.CategoryCount()
	}
	return s
}

// FlowSummary — элемент списка flows.
type FlowSummary struct {
	Name          string `json:"name"`
	NodeCount     int    `json:"nodeCount"`
	EdgeCount     int    `json:"edgeCount"`
	CategoryCount int    `json:"categoryCount"`
}

// ProcessRef — ссылка на on-prem процесс.
// Нулевое значение идентификатора означает, что он не задан.
type ProcessRef struct {
	// BpfID — идентификатор определения процесса.
	BpfID int64 `json:"bpf_id" yaml:"bpf_id"`

	// ProcessID — идентификатор экземпляра процесса.
	ProcessID int64 `json:"process_id" yaml:"process_id"`
}

// Complete возвращает true, если заданы оба идентификатора.
func (r ProcessRef) Complete() bool {
	return r.BpfID != 0 && r.ProcessID != 0
}

// Драйверы БД метаданных Airflow.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Endpoint — параметры подключения к бэкенду.
//
// Идентичность подключения — (Driver, Host, Port, User, Database).
// Пароль в идентичность не входит: он относится к учётным данным.
type Endpoint struct {
	// Driver — драйвер БД; пусто — драйвер бэкенда по умолчанию.
	Driver string `json:"driver,omitempty"`

	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user"`
	Password string `json:"-"`

	// Database — имя БД (Airflow) или service name (Oracle).
	Database string `json:"database"`
}

// Identity возвращает ключ идентичности подключения.
func (e Endpoint) Identity() string {
	host := e.Host
	if e.Port != 0 {
		host = fmt.Sprintf("%s:%d", e.Host, e.Port)
	}
	id := host + "/" + e.Database + "@" + e.User
	if e.Driver != "" {
		id = e.Driver + "://" + id
	}
	return id
}

// IsZero возвращает true, если endpoint не задан.
func (e Endpoint) IsZero() bool {
	return e.Host == "" && e.Database == ""
}

// Registration — запрос на регистрацию flow.
//
// Приходит из загрузчика конфигураций (файлы или HTTP upload).
type Registration struct {
	Name                string
	Overall             string
	SubStages           map[string]map[string]string
	OrchestratorMapping map[string]string
	ProcessMapping      map[string]ProcessRef
	RefreshInterval     time.Duration
	Orchestrator        Endpoint
	Process             Endpoint
}
