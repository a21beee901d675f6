package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Flowtrack/internal/domain"
)

const salesJSON = `{
  "flowName": "Sales",
  "refreshInterval": 60,
  "databases": {
    "aws": {"host": "airflow-db", "user": "reader", "password": "secret", "database": "airflow"},
    "oracle": {"host": "ora", "port": 1522, "user": "svc", "password": "pw", "service": "ORCLPDB"}
  },
  "flowDefinition": {
    "overall": "Ingest{extract->load}Report{publish}",
    "subStages": {"Ingest": {"extract": "pull->unpack"}}
  },
  "stageMappings": {
    "aws": {"extract": "sales_extract"},
    "onPrem": {"publish": {"bpf_id": 12, "process_id": 7}, "load": {"bpf_id": 3}}
  }
}`

const salesYAML = `
flowName: Sales
flowDefinition:
  overall: "Ingest{extract->load}"
stageMappings:
  aws:
    extract: sales_extract
  onPrem:
    load: {bpf_id: 3, process_id: 4}
`

func TestParseFlowConfig_JSON(t *testing.T) {
	cfg, err := ParseFlowConfig([]byte(salesJSON), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "Sales", cfg.FlowName)
	assert.Equal(t, 60, cfg.RefreshInterval)
	assert.Equal(t, "pull->unpack", cfg.FlowDefinition.SubStages["Ingest"]["extract"])
	assert.Equal(t, domain.ProcessRef{BpfID: 12, ProcessID: 7}, cfg.StageMappings.OnPrem["publish"])
	assert.False(t, cfg.StageMappings.OnPrem["load"].Complete())
}

func TestParseFlowConfig_YAML(t *testing.T) {
	cfg, err := ParseFlowConfig([]byte(salesYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "Sales", cfg.FlowName)
	assert.Equal(t, "sales_extract", cfg.StageMappings.AWS["extract"])
	assert.Equal(t, domain.ProcessRef{BpfID: 3, ProcessID: 4}, cfg.StageMappings.OnPrem["load"])
	assert.Nil(t, cfg.Databases.AWS)
}

func TestParseFlowConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"malformed json", `{"flowName":`, FormatJSON},
		{"malformed yaml", "flowName: [", FormatYAML},
		{"missing flowName", `{"flowDefinition": {"overall": "A{s1}"}}`, FormatJSON},
		{"missing definition", `{"flowName": "x"}`, FormatJSON},
		{"string interval", `{"flowName": "x", "refreshInterval": "60", "flowDefinition": {"overall": "A{s1}"}}`, FormatJSON},
		{"zero interval", `{"flowName": "x", "refreshInterval": 0, "flowDefinition": {"overall": "A{s1}"}}`, FormatJSON},
		{"string process id", `{"flowName": "x", "flowDefinition": {"overall": "A{s1}"}, "stageMappings": {"onPrem": {"s1": {"bpf_id": "1"}}}}`, FormatJSON},
		{"unknown field", `{"flowName": "x", "flowDefinition": {"overall": "A{s1}"}, "stageMappings": {"gcp": {}}}`, FormatJSON},
		{"path in name", `{"flowName": "../etc", "flowDefinition": {"overall": "A{s1}"}}`, FormatJSON},
		{"unknown driver", `{"flowName": "x", "databases": {"aws": {"host": "h", "driver": "sqlite"}}, "flowDefinition": {"overall": "A{s1}"}}`, FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFlowConfig([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseFlowConfig_ValidationErrorType(t *testing.T) {
	_, err := ParseFlowConfig([]byte(`{"flowName": ""}`), FormatJSON)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Error(), "invalid flow config")
}

func TestRegistration(t *testing.T) {
	cfg, err := ParseFlowConfig([]byte(salesJSON), FormatJSON)
	require.NoError(t, err)

	reg := cfg.Registration(Settings{StatusUpdateInterval: 120 * time.Second})

	assert.Equal(t, "Sales", reg.Name)
	assert.Equal(t, 60*time.Second, reg.RefreshInterval)
	assert.Equal(t, "airflow", reg.Orchestrator.Database)
	assert.Equal(t, "secret", reg.Orchestrator.Password)
	assert.Equal(t, "ORCLPDB", reg.Process.Database)
	assert.Equal(t, 1522, reg.Process.Port)
	assert.Equal(t, "sales_extract", reg.OrchestratorMapping["extract"])
	assert.Len(t, reg.ProcessMapping, 2)
}

func TestRegistration_Defaults(t *testing.T) {
	cfg, err := ParseFlowConfig([]byte(salesYAML), FormatYAML)
	require.NoError(t, err)

	settings := Settings{
		StatusUpdateInterval: 120 * time.Second,
		Orchestrator:         domain.Endpoint{Host: "default-airflow", Database: "airflow"},
		Process:              domain.Endpoint{Host: "default-ora", Database: "SVC"},
	}
	reg := cfg.Registration(settings)

	assert.Equal(t, 120*time.Second, reg.RefreshInterval)
	assert.Equal(t, "default-airflow", reg.Orchestrator.Host)
	assert.Equal(t, "default-ora", reg.Process.Host)
}

func TestRegistration_Driver(t *testing.T) {
	const mysqlFlow = `{
  "flowName": "Billing",
  "databases": {"aws": {"driver": "mysql", "host": "rds", "user": "reader", "database": "airflow"}},
  "flowDefinition": {"overall": "A{s1}"}
}`
	cfg, err := ParseFlowConfig([]byte(mysqlFlow), FormatJSON)
	require.NoError(t, err)

	settings := Settings{Orchestrator: domain.Endpoint{Driver: domain.DriverPostgres}}
	reg := cfg.Registration(settings)
	assert.Equal(t, domain.DriverMySQL, reg.Orchestrator.Driver)

	// без driver в конфигурации берётся драйвер из settings
	cfg, err = ParseFlowConfig([]byte(salesJSON), FormatJSON)
	require.NoError(t, err)
	settings.Orchestrator.Driver = domain.DriverMySQL
	reg = cfg.Registration(settings)
	assert.Equal(t, domain.DriverMySQL, reg.Orchestrator.Driver)
	assert.Equal(t, "airflow-db", reg.Orchestrator.Host)
}

func TestRedacted(t *testing.T) {
	cfg, err := ParseFlowConfig([]byte(salesJSON), FormatJSON)
	require.NoError(t, err)

	red := cfg.Redacted()
	assert.Empty(t, red.Databases.AWS.Password)
	assert.Empty(t, red.Databases.Oracle.Password)
	assert.Equal(t, "secret", cfg.Databases.AWS.Password, "original untouched")
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("STATUS_UPDATE_INTERVAL", "30")
	t.Setenv("CONFIG_DIR", "/tmp/flows")
	t.Setenv("AWS_DB_HOST", "airflow-db")
	t.Setenv("AWS_DB_PORT", "6543")
	t.Setenv("ORACLE_DB_SERVICE", "ORCLPDB")

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, s.StatusUpdateInterval)
	assert.Equal(t, "/tmp/flows", s.ConfigDir)
	assert.Equal(t, DefaultAPIPort, s.APIPort)
	assert.Equal(t, DefaultReloadSchedule, s.ReloadSchedule)
	assert.Equal(t, DefaultSubscriberBuf, s.SubscriberBuffer)
	assert.Equal(t, "airflow-db", s.Orchestrator.Host)
	assert.Equal(t, 6543, s.Orchestrator.Port)
	assert.Equal(t, "ORCLPDB", s.Process.Database)
	assert.Equal(t, domain.DriverPostgres, s.Orchestrator.Driver)
	assert.Empty(t, s.Process.Driver)
}

func TestLoadSettings_Driver(t *testing.T) {
	t.Setenv("AWS_DB_DRIVER", "mysql")
	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, domain.DriverMySQL, s.Orchestrator.Driver)

	t.Setenv("AWS_DB_DRIVER", "sqlite")
	_, err = LoadSettings()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Setenv("STATUS_UPDATE_INTERVAL", "soon")
	_, err := LoadSettings()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("STATUS_UPDATE_INTERVAL", "-5")
	_, err = LoadSettings()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStore_SaveReadDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	name, err := store.Save("Sales", []byte(salesJSON), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "sales.json", name)

	cfg, err := store.Load("SALES")
	require.NoError(t, err)
	assert.Equal(t, "Sales", cfg.FlowName)

	f, err := store.Read("sales.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f.Format)

	// сохранение в YAML заменяет JSON-файл
	name, err = store.Save("sales", []byte(salesYAML), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "sales.yaml", name)

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"sales.yaml"}, names)

	require.NoError(t, store.Delete("Sales"))
	_, err = store.Read("sales")
	assert.ErrorIs(t, err, ErrConfigNotFound)
	assert.ErrorIs(t, store.Delete("sales"), ErrConfigNotFound)
}

func TestStore_ListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(salesYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(salesJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".upload-123"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.yml"}, names)

	files, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, FormatYAML, files[1].Format)
}

func TestStore_RejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Read("../secrets.json")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, store.Delete("a/b"), ErrInvalidConfig)
}
