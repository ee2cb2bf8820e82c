package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json").Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat).With().Str("service", "reconcile-worker").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("reconcile worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buildCtx, cancelBuild := context.WithTimeout(rootCtx, 15*time.Second)
	a, err := app.Build(buildCtx, cfg, log)
	cancelBuild()
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a.Scheduler, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a.Scheduler, log)
		}
	}
}

func runOnce(ctx context.Context, sched *scheduling.Scheduler, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	report, err := sched.Reconcile(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("reconcile run error")
		return
	}
	log.Info().Int("slots", report.Slots).Int("appointments", report.Appointments).
		Int("findings", len(report.Findings)).Dur("took", time.Since(report.CheckedAt)).
		Msg("reconcile run complete")
}
