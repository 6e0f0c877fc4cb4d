// Package cli holds the hunt command line: the server, seeding, standings
// and a terminal device simulator.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaronzipp/scavenger-hunt/internal/config"
	"github.com/aaronzipp/scavenger-hunt/internal/store"
)

// app is the state shared by all commands once flags and env are resolved
type app struct {
	cfg    config.Config
	logger *slog.Logger

	envFile string
	dbType  string
	dbURL   string
	debug   bool
}

// Execute runs the root command with os.Args
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "hunt",
		Short:         "Elimination scavenger hunt server and tools",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to read before the environment")
	root.PersistentFlags().StringVar(&a.dbType, "db-type", "", "storage backend: sqlite, postgres or memory (env DATABASE_TYPE)")
	root.PersistentFlags().StringVar(&a.dbURL, "db-url", "", "sqlite path or postgres URL (env DATABASE_URL)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "debug logging (env DEBUG)")

	root.AddCommand(
		newServeCommand(a),
		newSeedCommand(a),
		newStandingsCommand(a),
		newDeviceCommand(a),
	)
	return root
}

// load resolves configuration. Flags override the environment.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db-type") {
		cfg.DatabaseType = a.dbType
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = a.dbURL
	}
	if flags.Changed("debug") {
		cfg.Debug = a.debug
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel())
	slog.SetDefault(a.logger)
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	s, err := store.Open(ctx, a.cfg.DatabaseType, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.DatabaseType, err)
	}
	if sqlStore, ok := s.(*store.SQLStore); ok {
		sqlStore.WithLogger(a.logger)
	}
	return s, nil
}
