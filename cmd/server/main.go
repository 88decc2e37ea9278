/*
main.go - Application entry point

PURPOSE:
  CLI for the payment application engine. Loads configuration, opens the
  configured store, and dispatches to a subcommand.

COMMANDS:
  serve   Start the HTTP API (default when no command is given)
  audit   Verify every stored application once and report findings
  seed    Create applications from JSON templates or load a demo scenario

CONFIGURATION:
  Environment variables (optionally from .env), see config/config.go:
    PORT, STORE_DRIVER, SQLITE_PATH, DB_*, LOG_LEVEL, LOG_FORMAT,
    CORS_ORIGINS, AUDIT_ENABLED, AUDIT_INTERVAL, SERVER_TIMEOUT

  Flags override the environment:
    --port   HTTP server port
    --db     SQLite database path (":memory:" for in-memory)
    --store  Store driver: sqlite, postgres, memory

EXAMPLES:
  # Run with file database
  ./server serve --db=./data/payapp.db

  # Run against PostgreSQL
  STORE_DRIVER=postgres DB_HOST=db ./server serve

  # One-off consistency audit
  ./server audit

  # Load demo data
  ./server seed --scenario=approved-rollover

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqldb/sqldb.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/warp/payapp-engine/aia"
	memstore "github.com/warp/payapp-engine/aia/store"
	"github.com/warp/payapp-engine/config"
	"github.com/warp/payapp-engine/logger"
	"github.com/warp/payapp-engine/metrics"
	"github.com/warp/payapp-engine/store/sqldb"
)

var version = "0.1.0"

// flags shared by every command
var (
	flagPort   int
	flagDBPath string
	flagStore  string
)

var rootCmd = &cobra.Command{
	Use:           "payapp",
	Short:         "AIA G702/G703 payment application engine",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "HTTP server port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (overrides SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "store driver: sqlite, postgres, memory (overrides STORE_DRIVER)")

	rootCmd.AddCommand(serveCmd, auditCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// appStore is what every command needs from a store.
type appStore interface {
	aia.Store
	Reset(ctx context.Context) error
}

// deps bundles what loadRuntime builds.
type deps struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   appStore
	service *aia.Service
	metrics *metrics.Recorder
	close   func() error
}

func loadRuntime(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagPort != 0 {
		cfg.App.Port = flagPort
	}
	if flagDBPath != "" {
		cfg.Store.SQLitePath = flagDBPath
	}
	if flagStore != "" {
		cfg.Store.Driver = strings.ToLower(flagStore)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lcfg := logger.DefaultConfig()
	lcfg.Level, lcfg.Format = cfg.Log.Level, cfg.Log.Format
	log, err := logger.Setup(lcfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	store, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	recorder := metrics.New()
	svc := aia.NewService(store,
		aia.WithLogger(log.With().Str("component", "service").Logger()),
		aia.WithObserver(recorder),
	)

	return &deps{
		cfg:     cfg,
		log:     log,
		store:   store,
		service: svc,
		metrics: recorder,
		close:   closeFn,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (appStore, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memstore.NewMemory(), func() error { return nil }, nil
	case config.DriverPostgres:
		s, err := sqldb.OpenPostgres(ctx, cfg.ConnectionString())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := sqldb.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, s.Close, nil
	}
}
