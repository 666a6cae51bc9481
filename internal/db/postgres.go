package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultAlias is the database every operation falls back to when no
// alias was chosen explicitly.
const DefaultAlias = "default"

// ErrUnknownDatabase is returned when an alias was never configured.
var ErrUnknownDatabase = errors.New("unknown database alias")

var (
	mu    sync.RWMutex
	pools = map[string]*pgxpool.Pool{}
)

// InitDatabases connects one pool per named database and pings each.
// The "default" alias is mandatory; every query or write is routed to
// exactly one of these pools.
func InitDatabases(ctx context.Context, dsns map[string]string) error {
	if _, ok := dsns[DefaultAlias]; !ok {
		return fmt.Errorf("database config must contain the %q alias", DefaultAlias)
	}
	for alias, dsn := range dsns {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect %q: %w", alias, err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("ping %q: %w", alias, err)
		}
		mu.Lock()
		if old, ok := pools[alias]; ok {
			old.Close()
		}
		pools[alias] = pool
		mu.Unlock()
	}
	return nil
}

// For resolves an alias to its pool. An empty alias means "default".
func For(alias string) (*pgxpool.Pool, error) {
	if alias == "" {
		alias = DefaultAlias
	}
	mu.RLock()
	pool, ok := pools[alias]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatabase, alias)
	}
	return pool, nil
}

// Aliases returns the configured aliases, "default" first, rest sorted.
func Aliases() []string {
	mu.RLock()
	defer mu.RUnlock()
	rest := make([]string, 0, len(pools))
	for alias := range pools {
		if alias != DefaultAlias {
			rest = append(rest, alias)
		}
	}
	sort.Strings(rest)
	out := make([]string, 0, len(pools))
	if _, ok := pools[DefaultAlias]; ok {
		out = append(out, DefaultAlias)
	}
	return append(out, rest...)
}

// CloseDatabases closes every pool. Used by tests and shutdown.
func CloseDatabases() {
	mu.Lock()
	defer mu.Unlock()
	for alias, pool := range pools {
		pool.Close()
		delete(pools, alias)
	}
}
