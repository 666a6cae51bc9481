package model

import (
	"context"
	"fmt"

	"MultiDB/internal/db"

	"github.com/Masterminds/squirrel"
)

// RelationManager mutates and reads a to-many relation (has_many,
// many_to_many or generic) on behalf of one saved instance. Every
// operation runs on the owner's database; members from another
// database are rejected before anything is written.
type RelationManager struct {
	owner *Instance
	name  string
	rel   *Relation
}

// Related returns the manager for a to-many relation.
func (in *Instance) Related(name string) (*RelationManager, error) {
	rel := in.model.GetRelation(name)
	if rel == nil {
		return nil, fmt.Errorf("model %q has no relation %q", in.model.Name, name)
	}
	switch rel.Type {
	case RelHasMany, RelManyToMany, RelGeneric:
	default:
		return nil, fmt.Errorf("relation %q of %q is %s, not a to-many relation", name, in.model.Name, rel.Type)
	}
	return &RelationManager{owner: in, name: name, rel: rel}, nil
}

func (rm *RelationManager) ownerReady() error {
	if !rm.owner.state.Saved {
		return fmt.Errorf("cannot use relation %q on unsaved %q instance", rm.name, rm.owner.model.Name)
	}
	return nil
}

// checkMembers rejects unsaved members, members of the wrong model and
// members living on another database. Runs before any mutation so a
// bad batch leaves both databases untouched.
func (rm *RelationManager) checkMembers(members []*Instance) error {
	for _, member := range members {
		if member == nil {
			return fmt.Errorf("nil instance passed to relation %q", rm.name)
		}
		if member.model != rm.rel._ModelRef {
			return fmt.Errorf("relation %q of %q expects %q, got %q",
				rm.name, rm.owner.model.Name, rm.rel.Model, member.model.Name)
		}
		if !member.state.Saved {
			return fmt.Errorf("cannot add unsaved %q instance to %q", member.model.Name, rm.name)
		}
		if member.state.DB != rm.owner.state.DB {
			return crossDatabase(rm.owner.state.DB, member.state.DB)
		}
	}
	return nil
}

// QuerySet returns the members as a filterable query set bound to the
// owner's database.
func (rm *RelationManager) QuerySet() (QuerySet, error) {
	if err := rm.ownerReady(); err != nil {
		return QuerySet{err: err}, err
	}
	target := rm.rel._ModelRef
	qs := Objects(target.Name).Using(rm.owner.state.DB)
	switch rm.rel.Type {
	case RelHasMany:
		qs = qs.Filter(rm.rel.FK, rm.owner.PK())
	case RelGeneric:
		qs = qs.
			Filter(rm.rel.TypeColumn, ContentTypeLabel(rm.owner.model)).
			Filter(rm.rel.FK, rm.owner.PK())
	case RelManyToMany:
		through := rm.rel._ThroughRef
		qs.extraJoins = []joinSpec{{
			Table: through.Table,
			Alias: "m2m",
			On:    fmt.Sprintf("m2m.%s = main.%s", rm.rel.throughTargetFK, target.PrimaryKeyColumn()),
		}}
		qs.extraConds = []squirrel.Sqlizer{squirrel.Eq{"m2m." + rm.rel.throughOwnerFK: rm.owner.PK()}}
	}
	return qs, nil
}

func (rm *RelationManager) All(ctx context.Context) ([]*Instance, error) {
	qs, err := rm.QuerySet()
	if err != nil {
		return nil, err
	}
	return qs.All(ctx)
}

func (rm *RelationManager) Count(ctx context.Context) (int64, error) {
	qs, err := rm.QuerySet()
	if err != nil {
		return 0, err
	}
	return qs.Count(ctx)
}

func (rm *RelationManager) Strings(ctx context.Context, column string) ([]string, error) {
	qs, err := rm.QuerySet()
	if err != nil {
		return nil, err
	}
	return qs.Strings(ctx, column)
}

// Add links the members to the owner on the owner's database.
func (rm *RelationManager) Add(ctx context.Context, members ...*Instance) error {
	if err := rm.ownerReady(); err != nil {
		return err
	}
	if err := rm.checkMembers(members); err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	pool, err := db.For(rm.owner.state.DB)
	if err != nil {
		return err
	}

	switch rm.rel.Type {
	case RelManyToMany:
		ib := squirrel.Insert(rm.rel._ThroughRef.Table).
			Columns(rm.rel.throughOwnerFK, rm.rel.throughTargetFK).
			Suffix(fmt.Sprintf("ON CONFLICT (%s, %s) DO NOTHING", rm.rel.throughOwnerFK, rm.rel.throughTargetFK)).
			PlaceholderFormat(squirrel.Dollar)
		for _, member := range members {
			ib = ib.Values(rm.owner.PK(), member.PK())
		}
		sqlStr, args, err := ib.ToSql()
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, sqlStr, args...)
		return err

	case RelHasMany:
		sqlStr, args, err := squirrel.Update(rm.rel._ModelRef.Table).
			Set(rm.rel.FK, rm.owner.PK()).
			Where(squirrel.Eq{rm.rel._ModelRef.PrimaryKeyColumn(): memberPKs(members)}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, sqlStr, args...)
		return err

	case RelGeneric:
		sqlStr, args, err := squirrel.Update(rm.rel._ModelRef.Table).
			Set(rm.rel.TypeColumn, ContentTypeLabel(rm.owner.model)).
			Set(rm.rel.FK, rm.owner.PK()).
			Where(squirrel.Eq{rm.rel._ModelRef.PrimaryKeyColumn(): memberPKs(members)}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, sqlStr, args...)
		return err
	}
	return fmt.Errorf("unsupported relation type %q", rm.rel.Type)
}

// Remove unlinks the members. Rows themselves stay put.
func (rm *RelationManager) Remove(ctx context.Context, members ...*Instance) error {
	if err := rm.ownerReady(); err != nil {
		return err
	}
	if err := rm.checkMembers(members); err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	pool, err := db.For(rm.owner.state.DB)
	if err != nil {
		return err
	}

	switch rm.rel.Type {
	case RelManyToMany:
		sqlStr, args, err := squirrel.Delete(rm.rel._ThroughRef.Table).
			Where(squirrel.Eq{rm.rel.throughOwnerFK: rm.owner.PK()}).
			Where(squirrel.Eq{rm.rel.throughTargetFK: memberPKs(members)}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, sqlStr, args...)
		return err

	case RelHasMany:
		sqlStr, args, err := squirrel.Update(rm.rel._ModelRef.Table).
			Set(rm.rel.FK, nil).
			Where(squirrel.Eq{rm.rel.FK: rm.owner.PK()}).
			Where(squirrel.Eq{rm.rel._ModelRef.PrimaryKeyColumn(): memberPKs(members)}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, sqlStr, args...)
		return err

	case RelGeneric:
		sqlStr, args, err := squirrel.Update(rm.rel._ModelRef.Table).
			Set(rm.rel.TypeColumn, nil).
			Set(rm.rel.FK, nil).
			Where(squirrel.Eq{rm.rel.TypeColumn: ContentTypeLabel(rm.owner.model)}).
			Where(squirrel.Eq{rm.rel.FK: rm.owner.PK()}).
			Where(squirrel.Eq{rm.rel._ModelRef.PrimaryKeyColumn(): memberPKs(members)}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, sqlStr, args...)
		return err
	}
	return fmt.Errorf("unsupported relation type %q", rm.rel.Type)
}

// Clear unlinks every member of the relation.
func (rm *RelationManager) Clear(ctx context.Context) error {
	if err := rm.ownerReady(); err != nil {
		return err
	}
	pool, err := db.For(rm.owner.state.DB)
	if err != nil {
		return err
	}

	switch rm.rel.Type {
	case RelManyToMany:
		sqlStr, args, err := squirrel.Delete(rm.rel._ThroughRef.Table).
			Where(squirrel.Eq{rm.rel.throughOwnerFK: rm.owner.PK()}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, sqlStr, args...)
		return err

	case RelHasMany:
		sqlStr, args, err := squirrel.Update(rm.rel._ModelRef.Table).
			Set(rm.rel.FK, nil).
			Where(squirrel.Eq{rm.rel.FK: rm.owner.PK()}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, sqlStr, args...)
		return err

	case RelGeneric:
		sqlStr, args, err := squirrel.Update(rm.rel._ModelRef.Table).
			Set(rm.rel.TypeColumn, nil).
			Set(rm.rel.FK, nil).
			Where(squirrel.Eq{rm.rel.TypeColumn: ContentTypeLabel(rm.owner.model)}).
			Where(squirrel.Eq{rm.rel.FK: rm.owner.PK()}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, sqlStr, args...)
		return err
	}
	return fmt.Errorf("unsupported relation type %q", rm.rel.Type)
}

// Set replaces the membership. The whole batch is validated before the
// first write, so a mixed-database batch changes nothing.
func (rm *RelationManager) Set(ctx context.Context, members ...*Instance) error {
	if err := rm.ownerReady(); err != nil {
		return err
	}
	if err := rm.checkMembers(members); err != nil {
		return err
	}
	if err := rm.Clear(ctx); err != nil {
		return err
	}
	return rm.Add(ctx, members...)
}

// Create inserts a related object on the owner's database, already
// linked to the owner.
func (rm *RelationManager) Create(ctx context.Context, fields map[string]any) (*Instance, error) {
	if err := rm.ownerReady(); err != nil {
		return nil, err
	}
	target := rm.rel._ModelRef
	values := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		values[k] = v
	}

	switch rm.rel.Type {
	case RelHasMany:
		values[rm.rel.FK] = rm.owner.PK()
	case RelGeneric:
		values[rm.rel.TypeColumn] = ContentTypeLabel(rm.owner.model)
		values[rm.rel.FK] = rm.owner.PK()
	}

	in, err := Objects(target.Name).Using(rm.owner.state.DB).Create(ctx, values)
	if err != nil {
		return nil, err
	}
	if rm.rel.Type == RelManyToMany {
		if err := rm.Add(ctx, in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func memberPKs(members []*Instance) []int64 {
	pks := make([]int64, 0, len(members))
	for _, member := range members {
		pks = append(pks, member.PK())
	}
	return pks
}
