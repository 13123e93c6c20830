package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ptportal/internal/api"
	"ptportal/internal/availability"
	"ptportal/internal/cache"
	"ptportal/internal/config"
	"ptportal/internal/db"
	"ptportal/internal/events"
	"ptportal/internal/metrics"
	"ptportal/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", os.Getenv("PTPORTAL_CONFIG_PATH"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(cfg)

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	metrics.Register()

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	slotCache := cache.NewSlotCache(rdb, cfg.CacheTTL(), &logger)

	bus := events.NewBus()
	svc := service.NewAvailabilityService(database, availability.NewResolver(cfg.Location()), slotCache, bus, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load + hot reload of the weekly schedule
	if err := config.WatchSchedule(ctx, cfg.ScheduleConfigPath, cfg.ScheduleReloadInterval(), func(updated *config.ScheduleConfig) {
		if err := database.SyncScheduleFromConfig(ctx, updated); err != nil {
			metrics.IncScheduleReload(false)
			logger.Error().Err(err).Msg("failed to apply schedule config")
			return
		}
		metrics.IncScheduleReload(true)
		if err := bus.Publish(events.Event{Type: events.ScheduleChanged, Detail: updated.String()}); err != nil {
			logger.Warn().Err(err).Msg("schedule change handlers failed")
		}
		logger.Info().Str("schedule", updated.String()).Msg("schedule config applied")
	}, func(err error) {
		metrics.IncScheduleReload(false)
		logger.Error().Err(err).Msg("failed to reload schedule config")
	}); err != nil {
		logger.Error().Err(err).Msg("schedule watch failed")
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, slotCache, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	backups := db.NewBackupService(database, db.BackupConfig{
		Enabled:   cfg.Backup.Enabled,
		Interval:  cfg.BackupInterval(),
		Dir:       cfg.Backup.Path,
		Retention: cfg.BackupRetention(),
	}, &logger)
	go backups.Start(ctx)

	server := api.NewHTTPServer(api.Options{
		Address:      cfg.HTTP.Address,
		FacilityName: cfg.Facility.Name,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSeconds) * time.Second,
		RatePerSec:   cfg.HTTP.RateLimitPerSecond,
		RateBurst:    cfg.HTTP.RateLimitBurst,
		AdminKeys:    cfg.AdminKeys(),
	}, svc, &logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info().
		Str("facility", cfg.Facility.Name).
		Str("timezone", cfg.Location().String()).
		Bool("redis_cache", slotCache.Enabled()).
		Int("admin_keys", len(cfg.AdminKeys())).
		Msg("PT portal started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	logger.Info().Msg("PT portal stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Logging.Pretty {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func startHealthServer(ctx context.Context, port int, database *db.DB, slotCache *cache.SlotCache, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctxPing, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := database.HealthCheck(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if err := slotCache.Ping(ctxPing); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, "health", &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serve(ctx, "metrics", &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, logger)
}

func serve(ctx context.Context, name string, srv *http.Server, logger *zerolog.Logger) {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
