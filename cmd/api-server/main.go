package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/api"
	"github.com/hackgods/clinic-booking-engine/internal/audit"
	"github.com/hackgods/clinic-booking-engine/internal/booking"
	"github.com/hackgods/clinic-booking-engine/internal/calendar"
	"github.com/hackgods/clinic-booking-engine/internal/config"
	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/logging"
	"github.com/hackgods/clinic-booking-engine/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking-engine/internal/redis"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "dev")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PostgresMaxConns, MinConns: cfg.PostgresMinConns})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

	store := schedule.NewRedisStore(rdb, cfg.ClinicID)
	if cfg.ScheduleFile != "" {
		bootstrapSchedule(rootCtx, store, cfg.ScheduleFile, logger)
	}

	cal, err := calendar.New(rootCtx, calendar.GoogleOptions{
		CredentialsFile: cfg.CalendarCredentialsFile,
		CalendarID:      cfg.CalendarID,
		Timeout:         cfg.CalendarTimeout,
		RatePerSec:      cfg.CalendarRatePerSec,
		Burst:           cfg.CalendarBurst,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("calendar adapter error")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	sink := audit.Multi{audit.NewPgSink(pgPool), audit.NewLogSink(logger)}

	svc := booking.NewService(booking.NewPgRepository(pgPool), cal, sink, store, logger, booking.Options{
		Location:               cfg.Location(),
		CalendarTimeout:        cfg.CalendarTimeout,
		EnforceSlotExclusivity: cfg.EnforceSlotExclusivity,
		UseCalendarBusy:        cfg.AvailabilityUseCalendarBusy,
		Locker:                 redisclient.NewRedisSlotLocker(rdb, redisclient.LockOptions{TTL: cfg.LockTTL, Wait: cfg.LockWait}),
		Metrics:                bookingMetrics,
		StalePendingAfter:      cfg.StalePendingAfter,
	})

	routerCfg := api.RouterConfig{
		Bookings: svc,
		Schedule: store,
		Audit:    sink,
		Postgres: pgPool,
		Redis:    api.RedisPinger{Client: rdb},
		Logger:   logger,
		Env:      cfg.Env,
		Version:  version,
	}
	if cfg.MetricsEnabled {
		routerCfg.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).
			Bool("calendar_mock", cfg.CalendarMockMode()).
			Bool("slot_exclusivity", cfg.EnforceSlotExclusivity).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}

func bootstrapSchedule(ctx context.Context, store *schedule.RedisStore, path string, logger zerolog.Logger) {
	cfg, err := schedule.LoadFile(path)
	if err != nil {
		logger.Fatal().Err(err).Str("file", path).Msg("schedule file error")
	}
	wrote, err := store.Bootstrap(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("schedule bootstrap error")
	}
	if wrote {
		logger.Info().Str("file", path).Msg("schedule bootstrapped from file")
		return
	}
	logger.Info().Msg("schedule already present, bootstrap file ignored")
}
