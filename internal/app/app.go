// Package app assembles a Scheduler from configuration: the store backend,
// the lock backend, metrics and the event log.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

const metricsNamespace = "clinic"

type App struct {
	Config    config.Config
	Log       zerolog.Logger
	Scheduler *scheduling.Scheduler
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry

	// nil when the configured backends do not use them
	PgPool *pgxpool.Pool
	Redis  *redis.Client
}

func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry, metricsNamespace)

	var (
		slotRepo availability.Repository
		apptRepo appointment.Repository
		events   appointment.EventRecorder
	)
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := db.Open(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		a.PgPool = pool
		pgAppts := appointment.NewPgRepository(pool)
		slotRepo, apptRepo, events = availability.NewPgRepository(pool), pgAppts, pgAppts
		log.Info().Msg("connected to Postgres")
	case config.StoreCSV:
		csvSlots, err := availability.NewCSVRepository(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		csvAppts, err := appointment.NewCSVRepository(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		slotRepo, apptRepo = csvSlots, csvAppts
		log.Info().Str("data_dir", cfg.DataDir).Msg("using CSV store")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	var locker scheduling.Locker
	switch cfg.LockBackend {
	case config.LockRedis:
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
		locker = redisclient.NewDoctorLocker(rdb, cfg.LockTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	default:
		locker = scheduling.NewLocalLocker()
	}

	opts := []scheduling.Option{
		scheduling.WithMetrics(a.Metrics),
		scheduling.WithRevertOnCancel(cfg.RevertSlotOnCancel),
	}
	if events != nil {
		opts = append(opts, scheduling.WithEvents(events))
	}
	a.Scheduler = scheduling.New(slotRepo, apptRepo, locker, log, opts...)

	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Error().Err(err).Msg("error closing redis")
		}
	}
	if a.PgPool != nil {
		a.PgPool.Close()
	}
}
