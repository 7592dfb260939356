package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/booking"
	"github.com/hackgods/clinic-booking-engine/internal/config"
	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/logging"
	"github.com/hackgods/clinic-booking-engine/internal/metrics"
)

// reportLimit caps one report run. The gauge still reflects the true backlog up to this size.
const reportLimit = 200

// backlogLister is the read side of booking.Service this worker needs.
type backlogLister interface {
	ListSyncFailed(ctx context.Context, limit int) ([]booking.Booking, error)
	ListStalePending(ctx context.Context, limit int) ([]booking.Booking, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "dev")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("component", "sync-report-worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("sync-report-worker starting up")

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

	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)
	if cfg.MetricsEnabled {
		go serveMetrics(rootCtx, cfg.HTTPPort, reg, logger)
	}

	// The report never calls the calendar or the audit trail, so only the ledger is wired.
	svc := booking.NewService(booking.NewPgRepository(pgPool), nil, nil, nil, logger, booking.Options{
		Metrics:           m,
		StalePendingAfter: cfg.StalePendingAfter,
	})

	// Run once at startup
	runOnce(rootCtx, svc, m, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping sync-report worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, m, logger)
		}
	}
}

// runOnce logs every booking still waiting for a manual calendar entry, and every
// booking stuck pending because its final update was lost. It never retries the
// sync; that stays a staff decision. It returns the total reported.
func runOnce(ctx context.Context, svc backlogLister, m *metrics.BookingMetrics, logger zerolog.Logger) int {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	backlog, err := svc.ListSyncFailed(runCtx, reportLimit)
	if err != nil {
		logger.Error().Err(err).Msg("sync report run error")
		return -1
	}

	m.SetSyncFailedBacklog(len(backlog))
	for _, b := range backlog {
		ev := logger.Warn().
			Str("booking_id", b.ID.String()).
			Str("date", b.Date.String()).
			Str("start_time", b.StartTime.String()).
			Str("service_id", b.ServiceID).
			Str("patient_name", b.PatientName)
		if b.SyncError != nil {
			ev = ev.Str("sync_error", b.SyncError.Message).Time("failed_at", b.SyncError.Timestamp)
		}
		ev.Msg("booking needs manual calendar entry")
	}

	stale, err := svc.ListStalePending(runCtx, reportLimit)
	if err != nil {
		logger.Error().Err(err).Msg("stale pending report run error")
		return -1
	}

	m.SetStalePendingBacklog(len(stale))
	for _, b := range stale {
		logger.Warn().
			Str("booking_id", b.ID.String()).
			Str("date", b.Date.String()).
			Str("start_time", b.StartTime.String()).
			Str("service_id", b.ServiceID).
			Time("created_at", b.CreatedAt).
			Msg("booking stuck pending calendar sync")
	}

	logger.Info().
		Int("backlog", len(backlog)).
		Int("stale_pending", len(stale)).
		Dur("took", time.Since(start)).
		Msg("sync report run complete")
	return len(backlog) + len(stale)
}

func serveMetrics(ctx context.Context, port string, reg *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
