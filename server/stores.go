package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devilmonastery/cvbuilder/internal/config"
	"github.com/devilmonastery/cvbuilder/internal/domain/entities"
	"github.com/devilmonastery/cvbuilder/internal/domain/repositories"
	"github.com/devilmonastery/cvbuilder/internal/infrastructure/database/memory"
	"github.com/devilmonastery/cvbuilder/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/cvbuilder/migrations"
	"github.com/devilmonastery/cvbuilder/server/internal/api"
)

// stores bundles the document stores a command needs
type stores struct {
	Accounts   *repositories.AccountStore
	Identities *repositories.IdentityStore
	Pinger     api.Pinger

	close func() error
}

func (s *stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStores builds the account and identity stores for the configured
// driver. Postgres is migrated to the latest schema first.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("Using in-memory document store; data is lost on exit")
		accounts := memory.NewStore[entities.Account](postgres.AccountsTable, repositories.AccountUniqueIndexes...)
		identities := memory.NewStore[entities.LinkedIdentity](postgres.LinkedIdentitiesTable, repositories.IdentityUniqueIndexes...)
		return &stores{
			Accounts:   repositories.NewAccountStore(accounts),
			Identities: repositories.NewIdentityStore(identities),
			Pinger:     accounts,
		}, nil

	case "postgres":
		conn, err := connectPostgres(ctx, cfg.Database.Postgres, log)
		if err != nil {
			return nil, err
		}
		if err := conn.RunMigrations(migrations.FS); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
		}
		return &stores{
			Accounts:   repositories.NewAccountStore(postgres.NewDocumentStore[entities.Account](conn.DB, postgres.AccountsTable)),
			Identities: repositories.NewIdentityStore(postgres.NewDocumentStore[entities.LinkedIdentity](conn.DB, postgres.LinkedIdentitiesTable)),
			Pinger:     conn,
			close:      conn.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

// connectPostgres connects with exponential backoff so the server can start
// before the database is accepting connections
func connectPostgres(ctx context.Context, cfg config.PostgresConfig, log *slog.Logger) (*postgres.Connection, error) {
	log.Info("Connecting to PostgreSQL", "host", cfg.Host, "database", cfg.Database, "user", cfg.User)

	const maxRetries = 10
	retryDelay := 2 * time.Second

	for i := 0; ; i++ {
		conn, err := postgres.NewConnection(ctx, cfg)
		if err == nil {
			log.Info("Successfully connected to PostgreSQL")
			return conn, nil
		}
		if i == maxRetries-1 {
			return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, err)
		}

		log.Warn("Failed to connect to PostgreSQL",
			"attempt", i+1,
			"max_retries", maxRetries,
			"error", err,
			"retry_delay", retryDelay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
		retryDelay = min(retryDelay*2, 30*time.Second)
	}
}
