package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// Format — формат файла конфигурации.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Ext возвращает расширение файла для формата.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// FormatFromName определяет формат по расширению файла.
func FormatFromName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	default:
		return "", false
	}
}

// FlowConfig — конфигурация одного flow.
type FlowConfig struct {
	FlowName        string         `json:"flowName" yaml:"flowName"`
	RefreshInterval int            `json:"refreshInterval,omitempty" yaml:"refreshInterval,omitempty"`
	Databases       Databases      `json:"databases,omitempty" yaml:"databases,omitempty"`
	FlowDefinition  FlowDefinition `json:"flowDefinition" yaml:"flowDefinition"`
	StageMappings   StageMappings  `json:"stageMappings,omitempty" yaml:"stageMappings,omitempty"`
}

// Databases — подключения к бэкендам flow.
type Databases struct {
	AWS    *DatabaseConfig `json:"aws,omitempty" yaml:"aws,omitempty"`
	Oracle *DatabaseConfig `json:"oracle,omitempty" yaml:"oracle,omitempty"`
}

// DatabaseConfig — параметры подключения.
// Для Airflow используются driver и database, для Oracle — service.
type DatabaseConfig struct {
	Driver   string `json:"driver,omitempty" yaml:"driver,omitempty"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	User     string `json:"user,omitempty" yaml:"user,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	Service  string `json:"service,omitempty" yaml:"service,omitempty"`
}

// FlowDefinition — текстовое описание графа.
type FlowDefinition struct {
	Overall   string                       `json:"overall" yaml:"overall"`
	SubStages map[string]map[string]string `json:"subStages,omitempty" yaml:"subStages,omitempty"`
}

// StageMappings — маппинги стадий на бэкенды.
type StageMappings struct {
	AWS    map[string]string            `json:"aws,omitempty" yaml:"aws,omitempty"`
	OnPrem map[string]domain.ProcessRef `json:"onPrem,omitempty" yaml:"onPrem,omitempty"`
}

// ParseFlowConfig разбирает и валидирует конфигурацию flow.
//
// YAML приводится к JSON и проходит ту же схему, что и JSON.
func ParseFlowConfig(data []byte, format Format) (*FlowConfig, error) {
	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse json: %v", ErrInvalidConfig, err)
	}

	schema, err := flowSchema()
	if err != nil {
		return nil, fmt.Errorf("compile flow schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &ValidationError{Err: err}
	}

	var cfg FlowConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidConfig, err)
	}
	cfg.FlowName = strings.TrimSpace(cfg.FlowName)

	return &cfg, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidConfig, err)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: convert yaml: %v", ErrInvalidConfig, err)
	}
	return out, nil
}

// Registration превращает конфигурацию в запрос на регистрацию flow.
// Незаданные интервал и подключения берутся из settings.
func (c *FlowConfig) Registration(settings Settings) domain.Registration {
	interval := settings.StatusUpdateInterval
	if c.RefreshInterval > 0 {
		interval = time.Duration(c.RefreshInterval) * time.Second
	}

	orchestrator := settings.Orchestrator
	if db := c.Databases.AWS; db != nil {
		driver := db.Driver
		if driver == "" {
			driver = settings.Orchestrator.Driver
		}
		orchestrator = domain.Endpoint{
			Driver:   driver,
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			Database: db.Database,
		}
	}

	process := settings.Process
	if db := c.Databases.Oracle; db != nil {
		service := db.Service
		if service == "" {
			service = db.Database
		}
		process = domain.Endpoint{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			Database: service,
		}
	}

	return domain.Registration{
		Name:                c.FlowName,
		Overall:             c.FlowDefinition.Overall,
		SubStages:           c.FlowDefinition.SubStages,
		OrchestratorMapping: c.StageMappings.AWS,
		ProcessMapping:      c.StageMappings.OnPrem,
		RefreshInterval:     interval,
		Orchestrator:        orchestrator,
		Process:             process,
	}
}

// Redacted возвращает копию без паролей для выдачи наружу.
func (c *FlowConfig) Redacted() *FlowConfig {
	out := *c
	if c.Databases.AWS != nil {
		db := *c.Databases.AWS
		db.Password = ""
		out.Databases.AWS = &db
	}
	if c.Databases.Oracle != nil {
		db := *c.Databases.Oracle
		db.Password = ""
		out.Databases.Oracle = &db
	}
	return &out
}
