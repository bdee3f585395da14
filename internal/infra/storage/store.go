package storage

import (
	"context"
	"fmt"
	"strings"
)

// Backend kinds accepted by NewStore.
const (
	KindMemory   = "memory"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

// NewStore opens the backend named by kind. For sqlite dsn is a file path,
// for postgres a connection string; memory ignores it.
func NewStore(ctx context.Context, kind, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("sqlite storage requires a database path")
		}
		return InitSQLite(ctx, dsn)
	case KindPostgres:
		return InitPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported storage kind %q", kind)
	}
}
