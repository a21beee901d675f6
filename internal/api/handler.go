package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Flowtrack/internal/config"
	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/engine"
	"github.com/shaiso/Flowtrack/internal/fanout"
)

// FlowTracker — операции трекера, которые нужны API.
type FlowTracker interface {
	RegisterFlow(reg domain.Registration) (*engine.Result, error)
	UnregisterFlow(name string) bool
	ListFlows() []domain.FlowSummary
	GetFlow(name string) (*domain.Flow, error)
	GetLatestStatus(ctx context.Context, name string) (domain.StatusUpdate, error)
	Subscribe(name string) (*fanout.Subscription, error)
}

// Broker — состояние подключения к RabbitMQ.
type Broker interface {
	IsConnected() bool
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tracker  FlowTracker
	store    *config.Store
	settings config.Settings
	broker   Broker
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tracker  FlowTracker
	Store    *config.Store
	Settings config.Settings

	// Broker — nil, если публикация в RabbitMQ отключена.
	Broker Broker

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Handler{
		tracker:  cfg.Tracker,
		store:    cfg.Store,
		settings: cfg.Settings,
		broker:   cfg.Broker,
		logger:   cfg.Logger,
	}
}
