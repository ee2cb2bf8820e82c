// Command clinicctl drives the scheduling engine from a terminal. It talks to
// the configured store directly and defaults to the CSV sheets in DATA_DIR
// with an in-process lock.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	store    string
	dataDir  string
	lock     string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Manage doctor availability and appointments",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.store, "store", "", "store backend: csv or postgres (env STORE_BACKEND, default csv)")
	root.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "directory of the CSV sheets (env DATA_DIR)")
	root.PersistentFlags().StringVar(&g.lock, "lock", "", "lock backend: local or redis (env LOCK_BACKEND, default local)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		availabilityCmd(&g),
		bookCmd(&g),
		transitionCmd(&g, "accept", "Confirm a scheduled appointment and book its slot"),
		transitionCmd(&g, "decline", "Decline a scheduled appointment"),
		transitionCmd(&g, "cancel", "Cancel an appointment"),
		outcomeCmd(&g),
		pendingCmd(&g),
		scheduleCmd(&g),
		appointmentsCmd(&g),
		reconcileCmd(&g),
		migrateCmd(&g),
	)
	return root
}

// loadConfig applies the CLI defaults before reading the environment: a
// terminal session works on the CSV sheets with the local lock unless told
// otherwise.
func (g *globalFlags) loadConfig() (config.Config, error) {
	defaults := map[string]string{"STORE_BACKEND": config.StoreCSV, "LOCK_BACKEND": config.LockLocal}
	for key, def := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			if err := os.Setenv(key, def); err != nil {
				return config.Config{}, err
			}
		}
	}
	overrides := map[string]string{"STORE_BACKEND": g.store, "DATA_DIR": g.dataDir, "LOCK_BACKEND": g.lock}
	for key, v := range overrides {
		if v == "" {
			continue
		}
		if err := os.Setenv(key, v); err != nil {
			return config.Config{}, err
		}
	}
	return config.Load()
}

func (g *globalFlags) logger() zerolog.Logger {
	return logging.NewWithWriter(os.Stderr, g.logLevel, "console")
}

// withApp builds the engine for one command and closes it afterwards.
func (g *globalFlags) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := app.Build(cmd.Context(), cfg, g.logger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
