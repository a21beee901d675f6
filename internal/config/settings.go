package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// Значения по умолчанию.
const (
	DefaultAppName        = "Flow Tracker"
	DefaultAPIPort        = "8080"
	DefaultConfigDir      = "configs"
	DefaultUpdateInterval = 120 * time.Second
	DefaultReloadSchedule = "@every 1m"
	DefaultSubscriberBuf  = 16
)

// Settings — настройки процесса flowtrack-server.
type Settings struct {
	AppName   string
	APIPort   string
	ConfigDir string

	// StatusUpdateInterval — интервал опроса для flows без refreshInterval.
	StatusUpdateInterval time.Duration

	// ReloadSchedule — cron-выражение перечитывания CONFIG_DIR.
	ReloadSchedule string

	// SubscriberBuffer — размер буфера подписчика.
	SubscriberBuffer int

	// RabbitMQURL — пусто, если публикация в RabbitMQ отключена.
	RabbitMQURL string

	// OrchestratorSchema — схема таблицы dag_run (AWS_DB_SCHEMA).
	OrchestratorSchema string

	// ProcessSchema — схема таблицы stage_status (ORACLE_DB_SCHEMA).
	ProcessSchema string

	// Подключения для flows, в конфигурации которых нет databases.
	Orchestrator domain.Endpoint
	Process      domain.Endpoint
}

// LoadSettings читает настройки из переменных окружения.
func LoadSettings() (Settings, error) {
	s := Settings{
		AppName:            envString("APP_NAME", DefaultAppName),
		APIPort:            envString("API_PORT", DefaultAPIPort),
		ConfigDir:          envString("CONFIG_DIR", DefaultConfigDir),
		ReloadSchedule:     envString("CONFIG_RELOAD_SCHEDULE", DefaultReloadSchedule),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		OrchestratorSchema: os.Getenv("AWS_DB_SCHEMA"),
		ProcessSchema:      os.Getenv("ORACLE_DB_SCHEMA"),
		Orchestrator: domain.Endpoint{
			Driver:   envString("AWS_DB_DRIVER", domain.DriverPostgres),
			Host:     envString("AWS_DB_HOST", "localhost"),
			User:     os.Getenv("AWS_DB_USER"),
			Password: os.Getenv("AWS_DB_PASSWORD"),
			Database: os.Getenv("AWS_DB_NAME"),
		},
		Process: domain.Endpoint{
			Host:     envString("ORACLE_DB_HOST", "localhost"),
			User:     os.Getenv("ORACLE_DB_USER"),
			Password: os.Getenv("ORACLE_DB_PASSWORD"),
			Database: os.Getenv("ORACLE_DB_SERVICE"),
		},
	}

	interval, err := envInt("STATUS_UPDATE_INTERVAL", int(DefaultUpdateInterval/time.Second))
	if err != nil {
		return Settings{}, err
	}
	if interval <= 0 {
		return Settings{}, fmt.Errorf("%w: STATUS_UPDATE_INTERVAL must be positive", ErrInvalidConfig)
	}
	s.StatusUpdateInterval = time.Duration(interval) * time.Second

	if s.SubscriberBuffer, err = envInt("SUBSCRIBER_BUFFER", DefaultSubscriberBuf); err != nil {
		return Settings{}, err
	}
	switch s.Orchestrator.Driver {
	case domain.DriverPostgres, domain.DriverMySQL:
	default:
		return Settings{}, fmt.Errorf("%w: AWS_DB_DRIVER=%q is not supported", ErrInvalidConfig, s.Orchestrator.Driver)
	}

	if s.Orchestrator.Port, err = envInt("AWS_DB_PORT", 0); err != nil {
		return Settings{}, err
	}
	if s.Process.Port, err = envInt("ORACLE_DB_PORT", 0); err != nil {
		return Settings{}, err
	}

	return s, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
	}
	return n, nil
}
