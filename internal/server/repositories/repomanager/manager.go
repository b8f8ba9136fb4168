// Package repomanager opens the credential store selected by configuration
// and prepares it for use (schema migrations for SQL backends).
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/guildkeeper/internal/server/config"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/credentials"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Credentials() credentials.Repository
	Close() error
}

// New builds the manager for cfg.CredentialBackend. Migrations are not run;
// callers invoke RunMigrations once at startup.
func New(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
	switch cfg.CredentialBackend {
	case config.BackendDynamoDB:
		return NewDynamoRepositoryManager(ctx, cfg)
	case config.BackendPostgres:
		return NewPostgresRepositoryManager(cfg.DatabaseDSN)
	case config.BackendSQLite:
		return NewSQLiteRepositoryManager(cfg.DatabaseDSN)
	case config.BackendMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
}

// MemoryRepositoryManager keeps credentials in process memory.
type MemoryRepositoryManager struct {
	repo *credentials.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{repo: credentials.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *MemoryRepositoryManager) Credentials() credentials.Repository { return m.repo }

func (m *MemoryRepositoryManager) Close() error { return nil }
