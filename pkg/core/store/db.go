package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseURLEnv names the environment variable holding the Postgres DSN.
const DatabaseURLEnv = "DATABASE_URL"

var (
	pool *pgxpool.Pool
	once sync.Once
)

// InitDB initializes the database connection pool using the DATABASE_URL environment variable
func InitDB(ctx context.Context) error {
	var err error
	once.Do(func() {
		dbURL := os.Getenv(DatabaseURLEnv)
		if dbURL == "" {
			err = fmt.Errorf("%s environment variable not set", DatabaseURLEnv)
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
	})
	return err
}

// GetPool returns the database connection pool
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}

// Open returns the Postgres repository when DATABASE_URL is configured and
// the file repository rooted at dir otherwise.
func Open(ctx context.Context, dir string) (RunRepository, error) {
	if os.Getenv(DatabaseURLEnv) == "" {
		return NewFileRepo(dir)
	}
	if err := InitDB(ctx); err != nil {
		return nil, err
	}
	repo := NewPGRepo(GetPool())
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}
