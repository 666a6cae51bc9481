package model

import (
	"context"
	"fmt"
	"time"

	"MultiDB/internal/db"

	"github.com/Masterminds/squirrel"
)

// State tracks where an instance lives. An unsaved instance has no
// database affinity (empty DB) until one is inferred from an assigned
// related object or set by an explicit save; once saved it is pinned.
type State struct {
	DB    string
	Saved bool
}

// Instance is one row of a model, bound to at most one database.
type Instance struct {
	model  *Model
	fields map[string]any
	state  State
}

// New builds an unsaved instance. Values may include *Instance for
// belongs_to relations; assigning one infers database affinity the
// same way SetRelated does.
func (m *Model) New(fields map[string]any) (*Instance, error) {
	in := &Instance{model: m, fields: map[string]any{}}
	// plain columns first so relation assignment sees a complete row
	for key, val := range fields {
		if _, isInst := val.(*Instance); isInst {
			continue
		}
		in.fields[key] = val
	}
	for key, val := range fields {
		target, isInst := val.(*Instance)
		if !isInst {
			continue
		}
		if err := in.SetRelated(key, target); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *Instance) Model() *Model { return in.model }

func (in *Instance) State() State { return in.state }

// PK returns the primary key value, 0 while unsaved.
func (in *Instance) PK() int64 {
	v, _ := toInt64(in.fields[in.model.PrimaryKeyColumn()])
	return v
}

func (in *Instance) Get(name string) any { return in.fields[name] }

func (in *Instance) GetString(name string) string {
	s, _ := in.fields[name].(string)
	return s
}

func (in *Instance) GetInt(name string) int64 {
	v, _ := toInt64(in.fields[name])
	return v
}

func (in *Instance) GetTime(name string) time.Time {
	t, _ := in.fields[name].(time.Time)
	return t
}

func (in *Instance) Set(name string, value any) { in.fields[name] = value }

// Fields returns a copy of the instance's field map.
func (in *Instance) Fields() map[string]any {
	out := make(map[string]any, len(in.fields))
	for k, v := range in.fields {
		out[k] = v
	}
	return out
}

// SetRelated assigns a belongs_to target (plain or polymorphic).
// Cross-database targets are rejected, except that an instance without
// affinity silently adopts the target's database.
func (in *Instance) SetRelated(name string, target *Instance) error {
	rel := in.model.GetRelation(name)
	if rel == nil || rel.Type != RelBelongsTo {
		return fmt.Errorf("model %q has no belongs_to relation %q", in.model.Name, name)
	}

	if target == nil {
		in.fields[rel.FK] = nil
		if rel.Polymorphic {
			in.fields[rel.TypeColumn] = nil
		}
		return nil
	}

	if !rel.Polymorphic && target.model != rel._ModelRef {
		return fmt.Errorf("relation %q of %q expects %q, got %q",
			name, in.model.Name, rel.Model, target.model.Name)
	}
	if !target.state.Saved {
		return fmt.Errorf("cannot assign unsaved %q instance to %q", target.model.Name, name)
	}

	if in.state.DB == "" {
		// affinity inference: the unbound side adopts the target's database
		in.state.DB = target.state.DB
	} else if in.state.DB != target.state.DB {
		return crossDatabase(in.state.DB, target.state.DB)
	}

	in.fields[rel.FK] = target.PK()
	if rel.Polymorphic {
		in.fields[rel.TypeColumn] = ContentTypeLabel(target.model)
	}
	return nil
}

// RelatedInstance fetches the belongs_to target from the instance's
// own database.
func (in *Instance) RelatedInstance(ctx context.Context, name string) (*Instance, error) {
	rel := in.model.GetRelation(name)
	if rel == nil || rel.Type != RelBelongsTo {
		return nil, fmt.Errorf("model %q has no belongs_to relation %q", in.model.Name, name)
	}
	fkVal := in.fields[rel.FK]
	if fkVal == nil {
		return nil, nil
	}

	target := rel._ModelRef
	if rel.Polymorphic {
		label, _ := in.fields[rel.TypeColumn].(string)
		if label == "" {
			return nil, nil
		}
		var err error
		target, err = ModelForLabel(label)
		if err != nil {
			return nil, err
		}
	}

	return Objects(target.Name).Using(in.state.DB).Filter(target.PrimaryKeyColumn(), fkVal).Get(ctx)
}

// Save persists the instance: INSERT on first save (to the bound
// database, falling back to "default"), UPDATE afterwards.
func (in *Instance) Save(ctx context.Context) error {
	if in.state.Saved {
		return in.update(ctx)
	}
	alias := in.state.DB
	if alias == "" {
		alias = db.DefaultAlias
	}
	return in.insert(ctx, alias)
}

// SaveUsing pins an unsaved instance to the named database and saves
// it there. Re-routing an already saved instance is a cross-database
// error.
func (in *Instance) SaveUsing(ctx context.Context, alias string) error {
	if alias == "" {
		alias = db.DefaultAlias
	}
	if in.state.Saved {
		if in.state.DB != alias {
			return crossDatabase(in.state.DB, alias)
		}
		return in.update(ctx)
	}
	return in.insert(ctx, alias)
}

func (in *Instance) insert(ctx context.Context, alias string) error {
	pool, err := db.For(alias)
	if err != nil {
		return err
	}

	pk := in.model.PrimaryKeyColumn()
	cols := make([]string, 0, len(in.fields))
	vals := make([]any, 0, len(in.fields))
	for _, col := range in.model.Columns() {
		if col == pk && in.fields[col] == nil {
			continue
		}
		if v, ok := in.fields[col]; ok {
			cols = append(cols, col)
			vals = append(vals, v)
		}
	}

	sqlStr, args, err := squirrel.Insert(in.model.Table).
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING " + pk).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert for %s: %w", in.model.Name, err)
	}

	var id int64
	if err := pool.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return fmt.Errorf("insert %s on %q: %w", in.model.Name, alias, err)
	}
	in.fields[pk] = id
	in.state = State{DB: alias, Saved: true}
	return nil
}

func (in *Instance) update(ctx context.Context) error {
	pool, err := db.For(in.state.DB)
	if err != nil {
		return err
	}

	pk := in.model.PrimaryKeyColumn()
	ub := squirrel.Update(in.model.Table).PlaceholderFormat(squirrel.Dollar)
	for _, col := range in.model.Columns() {
		if col == pk {
			continue
		}
		if v, ok := in.fields[col]; ok {
			ub = ub.Set(col, v)
		}
	}
	sqlStr, args, err := ub.Where(squirrel.Eq{pk: in.PK()}).ToSql()
	if err != nil {
		return fmt.Errorf("build update for %s: %w", in.model.Name, err)
	}
	if _, err := pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("update %s on %q: %w", in.model.Name, in.state.DB, err)
	}
	return nil
}

// Delete removes the row from the instance's database. State reverts
// to unsaved but keeps the alias, matching re-save semantics.
func (in *Instance) Delete(ctx context.Context) error {
	if !in.state.Saved {
		return fmt.Errorf("cannot delete unsaved %q instance", in.model.Name)
	}
	pool, err := db.For(in.state.DB)
	if err != nil {
		return err
	}
	pk := in.model.PrimaryKeyColumn()
	sqlStr, args, err := squirrel.Delete(in.model.Table).
		Where(squirrel.Eq{pk: in.PK()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete %s on %q: %w", in.model.Name, in.state.DB, err)
	}
	in.state.Saved = false
	in.fields[pk] = nil
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
