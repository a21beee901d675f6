// flowtrack-server — трекер статусов flows.
//
// Читает конфигурации flows из CONFIG_DIR, опрашивает Airflow (PostgreSQL)
// и on-prem базу процессов (Oracle), рассылает снимки статусов стадий
// через WebSocket/SSE и, если задан RABBITMQ_URL, публикует их в RabbitMQ.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Flowtrack/internal/api"
	"github.com/shaiso/Flowtrack/internal/config"
	"github.com/shaiso/Flowtrack/internal/connpool"
	"github.com/shaiso/Flowtrack/internal/fanout"
	"github.com/shaiso/Flowtrack/internal/mq"
	"github.com/shaiso/Flowtrack/internal/provider"
	"github.com/shaiso/Flowtrack/internal/registry"
	"github.com/shaiso/Flowtrack/internal/scheduler"
	"github.com/shaiso/Flowtrack/internal/telemetry"
	"github.com/shaiso/Flowtrack/internal/tracker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()

	settings, err := config.LoadSettings()
	if err != nil {
		logger.Error("failed to load settings", "error", err)
		os.Exit(1)
	}
	logger = logger.With("app", settings.AppName)
	logger.Info("starting flowtrack-server", "config_dir", settings.ConfigDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := config.NewStore(settings.ConfigDir, logger)
	if err != nil {
		logger.Error("failed to open config dir", "error", err)
		os.Exit(1)
	}

	// Пулы подключений: один на идентичность endpoint
	orchestratorPools := connpool.New("orchestrator", provider.OrchestratorOpener(settings.OrchestratorSchema), logger)
	processPools := connpool.New("process", provider.ProcessOpener(settings.ProcessSchema), logger)
	defer processPools.CloseAll()
	defer orchestratorPools.CloseAll()

	// RabbitMQ (опционально)
	var (
		publisher tracker.StatusPublisher
		broker    api.Broker
	)
	if settings.RabbitMQURL != "" {
		mqConn, err := mq.NewConnection(settings.RabbitMQURL, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer mqConn.Close()

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		logger.Debug("rabbitmq topology ready", "topology", mq.TopologyInfo())
		publisher = mq.NewPublisher(mqConn, logger)
		broker = mqConn
	}

	hub := fanout.New(fanout.Config{
		Buffer: settings.SubscriberBuffer,
		Logger: logger,
	})
	defer hub.Close()

	trk := tracker.New(tracker.Config{
		Registry:     registry.New(),
		Hub:          hub,
		Orchestrator: provider.NewOrchestrator(orchestratorPools, logger),
		Process:      provider.NewProcess(processPools, logger),
		Publisher:    publisher,
		Logger:       logger,
	})
	if err := trk.Start(ctx); err != nil {
		logger.Error("failed to start tracker", "error", err)
		os.Exit(1)
	}
	defer trk.Stop()

	reloader, err := scheduler.New(scheduler.Config{
		Source:   store,
		Tracker:  trk,
		Settings: settings,
		Schedule: settings.ReloadSchedule,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("invalid reload schedule", "error", err)
		os.Exit(1)
	}
	reloader.Start(ctx)
	defer reloader.Stop()

	handler := api.NewHandler(api.Config{
		Tracker:  trk,
		Store:    store,
		Settings: settings,
		Broker:   broker,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + settings.APIPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Сначала закрываем подписки, чтобы WebSocket/SSE обработчики вернулись
	hub.Close()

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Остальное закрывается defer-ами: reloader, tracker, hub, mq, пулы
	logger.Info("stopped")
}
