package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simaogato/settlement-backend/internal/adapter/repository/memory"
	"github.com/simaogato/settlement-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/settlement-backend/internal/config"
	"github.com/simaogato/settlement-backend/internal/domain"
	"github.com/simaogato/settlement-backend/internal/logger"
	"github.com/simaogato/settlement-backend/internal/usecase/seeder"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "settlement",
		Short:        "Settlement backend: payments, verification callbacks and OTC option exercise",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional config file (yaml, json or toml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

// storage is the configured unit of work plus the database handle when one is open
type storage struct {
	uow domain.UnitOfWork
	db  *postgres.DB
}

func (s *storage) ready(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *storage) close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("using in-memory storage, state is lost on exit")
		return &storage{uow: memory.NewStore()}, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Storage.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	if migrate {
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("migrations applied", zap.Strings("versions", applied))
	}

	return &storage{uow: postgres.NewUnitOfWork(db), db: db}, nil
}

func seedSystemAccounts(ctx context.Context, cfg *config.Config, log *zap.Logger, uow domain.UnitOfWork) error {
	balance, err := decimal.NewFromString(cfg.Seed.BankBalance)
	if err != nil {
		return fmt.Errorf("invalid bank opening balance: %w", err)
	}

	created, err := seeder.NewSystemSeeder(uow, balance).Seed(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed system accounts: %w", err)
	}
	log.Info("system accounts seeded", zap.Int("created", created))
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres driver, got %q", cfg.Storage.Driver)
			}

			store, err := openStorage(cmd.Context(), cfg, log, true)
			if err != nil {
				return err
			}
			return store.close()
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the bank's settlement accounts that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			store, err := openStorage(cmd.Context(), cfg, log, cfg.Storage.Migrate)
			if err != nil {
				return err
			}
			defer func() { _ = store.close() }()

			return seedSystemAccounts(cmd.Context(), cfg, log, store.uow)
		},
	}
}
