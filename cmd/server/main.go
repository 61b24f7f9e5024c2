package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"innoviahub/internal/access"
	"innoviahub/internal/api"
	"innoviahub/internal/assistant"
	"innoviahub/internal/catalog"
	"innoviahub/internal/config"
	"innoviahub/internal/database"
	"innoviahub/internal/events"
	"innoviahub/internal/metrics"
	"innoviahub/internal/models"
	"innoviahub/internal/notify"
	"innoviahub/internal/oracle"
	"innoviahub/internal/reminders"
	"innoviahub/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("HUB_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedCatalog(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("seed catalog error")
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	cat := catalog.New(db, &logger)
	if rdb != nil && cfg.Catalog.CacheTTLSeconds > 0 {
		cat.UseRedisCache(rdb, cfg.CatalogCacheTTL())
	}

	metrics.Register()

	hub := notify.NewHub(rdb, &logger)
	go hub.Run(ctx)

	bus := events.NewEventBus()
	relay := func(ev events.Event) {
		if slotEvent, ok := ev.Payload.(models.SlotEvent); ok {
			hub.Broadcast(ctx, slotEvent)
		}
	}
	bus.Subscribe(events.TypeReservationCreated, relay)
	bus.Subscribe(events.TypeReservationCanceled, relay)

	accessSvc := access.NewService(db, &logger)

	engine := service.NewReservationService(db, bus, cat, cfg.CommitTimeout(), &logger)
	engine.UseAccessChecker(accessSvc)

	if cfg.Reminders.Enabled {
		if rdb == nil {
			logger.Warn().Msg("reminders enabled without redis; skipping reminder service")
		} else {
			reminderSvc := reminders.NewService(reminders.Config{
				CheckInterval: cfg.ReminderCheckInterval(),
				LeadTime:      cfg.ReminderLeadTime(),
				MaxConcurrent: cfg.Reminders.MaxConcurrent,
				SendsPerSec:   cfg.Reminders.SendsPerSec,
			}, db, reminders.NewRedisPublisher(rdb), &logger)
			go reminderSvc.Run(ctx)
		}
	}

	var textOracle oracle.Oracle
	switch cfg.Oracle.Provider {
	case "gemini":
		gemini, err := oracle.NewGeminiClient(ctx, cfg.Oracle.APIKey, cfg.Oracle.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("create gemini client error")
		}
		defer gemini.Close()
		textOracle = gemini
	default:
		textOracle = oracle.NewOpenAIClient(
			cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Oracle.Model,
			cfg.OracleTimeout(), cfg.Oracle.RequestsPerSec,
		)
	}

	bridge := assistant.NewBridge(textOracle, engine, cat, &logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(cfg.Server.Port, engine, cat, bridge, hub, accessSvc, &logger)

	logger.Info().Int("port", cfg.Server.Port).Msg("booking server started")
	if err := server.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("http server error")
	}
}

// seedCatalog loads the default resource set so a fresh database is
// immediately bookable. INSERT OR IGNORE keeps existing rows untouched.
func seedCatalog(ctx context.Context, db *database.DB) error {
	types := []models.ResourceType{
		{ID: 1, Name: "Desk"},
		{ID: 2, Name: "Meeting Room"},
		{ID: 3, Name: "VR Headset"},
		{ID: 4, Name: "AI Server"},
	}
	resources := []models.Resource{
		{Name: "Desk 1", ResourceTypeID: 1},
		{Name: "Desk 2", ResourceTypeID: 1},
		{Name: "Meeting Room A", ResourceTypeID: 2},
		{Name: "Meeting Room B", ResourceTypeID: 2},
		{Name: "VR Headset", ResourceTypeID: 3},
		{Name: "AI Server", ResourceTypeID: 4},
	}
	return db.SeedResources(ctx, types, resources)
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
