package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/api"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/config"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/engine"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/otp"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/scheduler"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/store"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/transport"
	ws "github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/websocket"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis (claims + circuit breakers)
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	claims := engine.NewClaimStore(redisStore.Client(), logger, 2*time.Minute)
	breaker := engine.NewCircuitBreaker(redisStore.Client(), logger)

	// Event bus and websocket status feed
	bus := engine.NewBus(500 * time.Millisecond)
	defer bus.Close()

	hub := ws.NewHub(logger)
	go hub.Run()
	bus.Subscribe(worker.TopicDeliveryStatus, func(ev engine.BusEvent) {
		hub.Broadcast(ev.Payload)
	})

	// Outbound transports
	pushClient := transport.NewPushClient(cfg.PushAPIURL, logger)
	smsClient := transport.NewSMSClient(transport.SMSConfig{
		BaseURL:             cfg.TwilioBaseURL,
		AccountSID:          cfg.TwilioAccountSID,
		AuthToken:           cfg.TwilioAuthToken,
		MessagingServiceSID: cfg.TwilioMessagingServiceSID,
		FromNumber:          cfg.TwilioFromNumber,
	}, logger)

	// Core components
	drainer := worker.NewDrainer(pgStore, pgStore, pgStore, pgStore, claims, breaker,
		pushClient, smsClient, bus, logger, worker.Options{
			BatchSize:   cfg.BatchSize,
			Concurrency: cfg.WorkerConcurrency,
		})
	guard := otp.NewGuard(pgStore, pgStore, pgStore, smsClient, logger)
	reminders := scheduler.NewScheduler(pgStore, pgStore, logger, cfg.PushMaxAttempts)

	// Periodic triggers
	runner := scheduler.NewRunner(logger)
	err = runner.Schedule(cfg.DrainCron, "queue-drain", func(ctx context.Context) error {
		_, err := drainer.Drain(ctx)
		return err
	})
	if err != nil {
		logger.Error("failed to schedule drain", "error", err)
		os.Exit(1)
	}
	err = runner.Schedule(cfg.ReminderCron, "meeting-reminders", func(ctx context.Context) error {
		_, err := reminders.Run(ctx)
		return err
	})
	if err != nil {
		logger.Error("failed to schedule reminders", "error", err)
		os.Exit(1)
	}
	runner.Start()
	defer runner.Stop()

	// Setup router
	router := api.NewRouter(pgStore, drainer, reminders, guard, breaker, hub, cfg.PushMaxAttempts)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
