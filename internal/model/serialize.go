package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MultiDB/internal/db"
	"MultiDB/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// A query set serializes to its full description — model, database
// alias, filters, ordering, window — and restores to an equivalent
// query set bound to the same database.

const stashTTL = 2 * time.Hour

type querySetState struct {
	Model    string   `json:"model"`
	DB       string   `json:"db"`
	Filters  []filter `json:"filters,omitempty"`
	Excludes []filter `json:"excludes,omitempty"`
	OrderBy  []string `json:"order_by,omitempty"`
	Limit    uint64   `json:"limit,omitempty"`
	Offset   uint64   `json:"offset,omitempty"`
}

func (qs QuerySet) MarshalJSON() ([]byte, error) {
	if qs.err != nil {
		return nil, qs.err
	}
	if len(qs.extraJoins) > 0 || len(qs.extraConds) > 0 {
		return nil, fmt.Errorf("query set with relation-manager joins is not serializable")
	}
	return json.Marshal(querySetState{
		Model:    qs.model.Name,
		DB:       qs.db,
		Filters:  qs.filters,
		Excludes: qs.excludes,
		OrderBy:  qs.orderBy,
		Limit:    qs.limit,
		Offset:   qs.offset,
	})
}

func (qs *QuerySet) UnmarshalJSON(data []byte) error {
	var state querySetState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	m, ok := Registry[state.Model]
	if !ok {
		return fmt.Errorf("model %q not registered", state.Model)
	}
	*qs = QuerySet{
		model:    m,
		db:       state.DB,
		filters:  state.Filters,
		excludes: state.Excludes,
		orderBy:  state.OrderBy,
		limit:    state.Limit,
		offset:   state.Offset,
	}
	if qs.db == "" {
		qs.db = db.DefaultAlias
	}
	return nil
}

// RestoreQuerySet rebuilds a query set from its serialized form. The
// originating database alias survives the round trip.
func RestoreQuerySet(data []byte) (QuerySet, error) {
	var qs QuerySet
	if err := qs.UnmarshalJSON(data); err != nil {
		return QuerySet{}, err
	}
	return qs, nil
}

// Stash stores the serialized query set in Redis under a fresh key and
// returns the key.
func (qs QuerySet) Stash(ctx context.Context) (string, error) {
	if db.RDB == nil {
		return "", fmt.Errorf("stash query set: %w", redis.ErrClosed)
	}
	data, err := qs.MarshalJSON()
	if err != nil {
		return "", err
	}
	key := "queryset:" + uuid.NewString()
	if err := db.RDB.Set(ctx, key, data, stashTTL).Err(); err != nil {
		return "", fmt.Errorf("stash query set: %w", err)
	}
	logger.Debug("queryset_stashed", map[string]any{
		"key":   key,
		"model": qs.model.Name,
		"db":    qs.db,
	})
	return key, nil
}

// RestoreStashed loads a stashed query set back from Redis.
func RestoreStashed(ctx context.Context, key string) (QuerySet, error) {
	if db.RDB == nil {
		return QuerySet{}, fmt.Errorf("restore query set %q: %w", key, redis.ErrClosed)
	}
	data, err := db.RDB.Get(ctx, key).Result()
	if err != nil {
		return QuerySet{}, fmt.Errorf("restore query set %q: %w", key, err)
	}
	return RestoreQuerySet([]byte(data))
}
