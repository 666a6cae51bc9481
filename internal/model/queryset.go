package model

import (
	"context"
	"fmt"
	"time"

	"MultiDB/internal/db"

	"github.com/Masterminds/squirrel"
)

// filter is one key/value pair of a query set. The key may carry a
// relation path and an operator suffix ("authors__name__icontains").
type filter struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// QuerySet is a chainable, immutable query description bound to one
// database alias. Zero mutations: every method returns a copy.
type QuerySet struct {
	model    *Model
	err      error
	db       string
	filters  []filter
	excludes []filter
	orderBy  []string
	limit    uint64
	offset   uint64

	// internal hooks used by relation managers; never serialized
	extraJoins []joinSpec
	extraConds []squirrel.Sqlizer
}

// Objects starts a query set for a registered model on "default".
func Objects(name string) QuerySet {
	m, ok := Registry[name]
	if !ok {
		return QuerySet{err: fmt.Errorf("model %q not registered", name)}
	}
	return QuerySet{model: m, db: db.DefaultAlias}
}

// Using routes the query set to a named database.
func (qs QuerySet) Using(alias string) QuerySet {
	if alias == "" {
		alias = db.DefaultAlias
	}
	qs.db = alias
	return qs
}

// DB reports which database the query set is bound to.
func (qs QuerySet) DB() string { return qs.db }

// ModelName reports the model the query set targets.
func (qs QuerySet) ModelName() string {
	if qs.model == nil {
		return ""
	}
	return qs.model.Name
}

func (qs QuerySet) Filter(key string, value any) QuerySet {
	qs.filters = append(cloneFilters(qs.filters), filter{Key: key, Value: value})
	return qs
}

func (qs QuerySet) Exclude(key string, value any) QuerySet {
	qs.excludes = append(cloneFilters(qs.excludes), filter{Key: key, Value: value})
	return qs
}

func (qs QuerySet) OrderBy(columns ...string) QuerySet {
	qs.orderBy = append(cloneStrings(qs.orderBy), columns...)
	return qs
}

func (qs QuerySet) Limit(n uint64) QuerySet {
	qs.limit = n
	return qs
}

func (qs QuerySet) Offset(n uint64) QuerySet {
	qs.offset = n
	return qs
}

// All runs the query and returns instances pinned to the query set's
// database.
func (qs QuerySet) All(ctx context.Context) ([]*Instance, error) {
	if qs.err != nil {
		return nil, qs.err
	}
	pool, err := db.For(qs.db)
	if err != nil {
		return nil, err
	}
	sb, err := qs.model.buildSelectQuery(qs.filters, qs.excludes, qs.orderBy, qs.limit, qs.offset, qs.extraJoins, qs.extraConds)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s on %q: %w", qs.model.Name, qs.db, err)
	}
	return scanInstances(rows, qs.model, qs.db)
}

// Get returns exactly one match. A miss — including a lookup pointed
// at the wrong database — is ErrNotFound; more than one match is
// ErrMultipleObjects.
func (qs QuerySet) Get(ctx context.Context) (*Instance, error) {
	if qs.err != nil {
		return nil, qs.err
	}
	items, err := qs.Limit(2).All(ctx)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, notFound(qs.model)
	case 1:
		return items[0], nil
	default:
		return nil, multipleObjects(qs.model)
	}
}

func (qs QuerySet) Count(ctx context.Context) (int64, error) {
	if qs.err != nil {
		return 0, qs.err
	}
	pool, err := db.For(qs.db)
	if err != nil {
		return 0, err
	}
	sb, err := qs.model.buildCountQuery(qs.filters, qs.excludes, qs.extraJoins, qs.extraConds)
	if err != nil {
		return 0, err
	}
	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := pool.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s on %q: %w", qs.model.Name, qs.db, err)
	}
	return count, nil
}

func (qs QuerySet) Exists(ctx context.Context) (bool, error) {
	count, err := qs.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ValuesList collects one column across the result set.
func (qs QuerySet) ValuesList(ctx context.Context, column string) ([]any, error) {
	items, err := qs.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item.Get(column))
	}
	return out, nil
}

// Strings is ValuesList for text columns.
func (qs QuerySet) Strings(ctx context.Context, column string) ([]string, error) {
	items, err := qs.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.GetString(column))
	}
	return out, nil
}

// Create inserts a new instance on the query set's database. Values
// may include *Instance for belongs_to relations; the explicit alias
// wins over any inferred affinity for this unsaved instance, matching
// an explicit Using call.
func (qs QuerySet) Create(ctx context.Context, fields map[string]any) (*Instance, error) {
	if qs.err != nil {
		return nil, qs.err
	}
	in, err := qs.model.New(fields)
	if err != nil {
		return nil, err
	}
	if err := in.SaveUsing(ctx, qs.db); err != nil {
		return nil, err
	}
	return in, nil
}

// Delete removes every matching row and reports how many went away.
// Relation-path filters are not supported here.
func (qs QuerySet) Delete(ctx context.Context) (int64, error) {
	if qs.err != nil {
		return 0, qs.err
	}
	pool, err := db.For(qs.db)
	if err != nil {
		return 0, err
	}
	dq, err := qs.model.buildDeleteQuery(qs.filters, qs.excludes)
	if err != nil {
		return 0, err
	}
	sqlStr, args, err := dq.ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s on %q: %w", qs.model.Name, qs.db, err)
	}
	return tag.RowsAffected(), nil
}

// Dates returns the distinct year or month starts of a date column.
func (qs QuerySet) Dates(ctx context.Context, column, precision string) ([]time.Time, error) {
	if qs.err != nil {
		return nil, qs.err
	}
	pool, err := db.For(qs.db)
	if err != nil {
		return nil, err
	}
	sb, err := qs.model.buildDatesQuery(qs.filters, qs.excludes, column, precision)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("dates %s on %q: %w", qs.model.Name, qs.db, err)
	}
	defer rows.Close()
	out := make([]time.Time, 0, 8)
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func cloneFilters(fs []filter) []filter {
	out := make([]filter, len(fs))
	copy(out, fs)
	return out
}

func cloneStrings(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}
