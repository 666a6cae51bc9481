package model

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Filter operators accepted as the trailing "__op" of a filter key.
var filterOps = map[string]bool{
	"eq":         true,
	"in":         true,
	"lt":         true,
	"lte":        true,
	"gt":         true,
	"gte":        true,
	"contains":   true,
	"icontains":  true,
	"iexact":     true,
	"startswith": true,
	"endswith":   true,
	"year":       true,
}

// parseFilterKey splits a key like "authors__name__icontains" into the
// relation path, the terminal column and the operator, resolved against
// the model's relations.
func (m *Model) parseFilterKey(key string) (path []string, column, op string, err error) {
	segs := strings.Split(key, "__")
	op = "eq"
	if len(segs) > 1 && filterOps[segs[len(segs)-1]] {
		op = segs[len(segs)-1]
		segs = segs[:len(segs)-1]
	}

	cur := m
	for i := 0; i < len(segs)-1; i++ {
		rel := cur.GetRelation(segs[i])
		if rel == nil {
			return nil, "", "", fmt.Errorf("unknown relation %q in filter %q on model %q", segs[i], key, m.Name)
		}
		if rel.Polymorphic {
			return nil, "", "", fmt.Errorf("cannot traverse polymorphic relation %q in filter %q", segs[i], key)
		}
		path = append(path, segs[i])
		cur = rel._ModelRef
	}

	column = segs[len(segs)-1]
	if !cur.HasColumn(column) {
		return nil, "", "", fmt.Errorf("unknown column %q in filter %q on model %q", column, key, cur.Name)
	}
	return path, column, op, nil
}

// detectJoins walks the relation paths used by filters and produces the
// LEFT JOINs they need, with deterministic t0, t1, ... aliases. The
// returned map resolves a dotted relation path to its table alias.
func (m *Model) detectJoins(paths [][]string) ([]joinSpec, map[string]string, error) {
	joins := make([]joinSpec, 0)
	pathAlias := map[string]string{}
	next := 0
	newAlias := func() string {
		a := fmt.Sprintf("t%d", next)
		next++
		return a
	}

	for _, path := range paths {
		cur := m
		parentAlias := "main"
		fullPath := ""
		for _, seg := range path {
			rel := cur.GetRelation(seg)
			if rel == nil || rel._ModelRef == nil {
				return nil, nil, fmt.Errorf("unknown relation %q on model %q", seg, cur.Name)
			}
			if fullPath == "" {
				fullPath = seg
			} else {
				fullPath += "." + seg
			}

			alias, seen := pathAlias[fullPath]
			if !seen {
				switch rel.Type {
				case RelBelongsTo:
					alias = newAlias()
					joins = append(joins, joinSpec{
						Table: rel._ModelRef.Table,
						Alias: alias,
						On:    fmt.Sprintf("%s.%s = %s.%s", parentAlias, rel.FK, alias, rel.PK),
					})
				case RelHasMany:
					alias = newAlias()
					joins = append(joins, joinSpec{
						Table:    rel._ModelRef.Table,
						Alias:    alias,
						On:       fmt.Sprintf("%s.%s = %s.%s", alias, rel.FK, parentAlias, cur.PrimaryKeyColumn()),
						Distinct: true,
					})
				case RelManyToMany:
					throughAlias := newAlias()
					joins = append(joins, joinSpec{
						Table: rel._ThroughRef.Table,
						Alias: throughAlias,
						On: fmt.Sprintf("%s.%s = %s.%s",
							throughAlias, rel.throughOwnerFK, parentAlias, cur.PrimaryKeyColumn()),
					})
					alias = newAlias()
					joins = append(joins, joinSpec{
						Table: rel._ModelRef.Table,
						Alias: alias,
						On: fmt.Sprintf("%s.%s = %s.%s",
							throughAlias, rel.throughTargetFK, alias, rel.PK),
						Distinct: true,
					})
				case RelGeneric:
					alias = newAlias()
					joins = append(joins, joinSpec{
						Table: rel._ModelRef.Table,
						Alias: alias,
						On: fmt.Sprintf("%s.%s = '%s' AND %s.%s = %s.%s",
							alias, rel.TypeColumn, ContentTypeLabel(cur),
							alias, rel.FK, parentAlias, cur.PrimaryKeyColumn()),
						Distinct: true,
					})
				default:
					return nil, nil, fmt.Errorf("unsupported relation type %q for joins", rel.Type)
				}
				pathAlias[fullPath] = alias
			}

			parentAlias = pathAlias[fullPath]
			cur = rel._ModelRef
		}
	}
	return joins, pathAlias, nil
}

// notExpr negates a Sqlizer; squirrel has no NOT combinator of its own.
type notExpr struct {
	inner squirrel.Sqlizer
}

func (n notExpr) ToSql() (string, []interface{}, error) {
	sqlStr, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sqlStr + ")", args, nil
}

func buildCond(op, sqlField string, val any) (squirrel.Sqlizer, error) {
	switch op {
	case "eq":
		return squirrel.Eq{sqlField: val}, nil
	case "in":
		return squirrel.Eq{sqlField: val}, nil // Eq supports slices
	case "lt":
		return squirrel.Lt{sqlField: val}, nil
	case "lte":
		return squirrel.LtOrEq{sqlField: val}, nil
	case "gt":
		return squirrel.Gt{sqlField: val}, nil
	case "gte":
		return squirrel.GtOrEq{sqlField: val}, nil
	case "contains":
		if s, ok := val.(string); ok {
			return squirrel.Like{sqlField: "%" + s + "%"}, nil
		}
	case "icontains":
		if s, ok := val.(string); ok {
			return squirrel.ILike{sqlField: "%" + s + "%"}, nil
		}
	case "iexact":
		if s, ok := val.(string); ok {
			return squirrel.Expr("LOWER("+sqlField+") = LOWER(?)", s), nil
		}
	case "startswith":
		if s, ok := val.(string); ok {
			return squirrel.Like{sqlField: s + "%"}, nil
		}
	case "endswith":
		if s, ok := val.(string); ok {
			return squirrel.Like{sqlField: "%" + s}, nil
		}
	case "year":
		return squirrel.Expr("EXTRACT(YEAR FROM "+sqlField+") = ?", val), nil
	}
	return nil, fmt.Errorf("operator %q does not accept %T", op, val)
}

// buildWhere turns filters and excludes into one Sqlizer, collecting
// the relation paths so the caller can build joins first.
func (m *Model) buildWhere(filters, excludes []filter, pathAlias map[string]string) (squirrel.Sqlizer, error) {
	var exprs []squirrel.Sqlizer

	resolve := func(f filter, negate bool) error {
		path, column, op, err := m.parseFilterKey(f.Key)
		if err != nil {
			return err
		}
		sqlField := "main." + column
		if len(path) > 0 {
			sqlField = pathAlias[strings.Join(path, ".")] + "." + column
		}
		cond, err := buildCond(op, sqlField, f.Value)
		if err != nil {
			return err
		}
		if negate {
			cond = notExpr{cond}
		}
		exprs = append(exprs, cond)
		return nil
	}

	for _, f := range filters {
		if err := resolve(f, false); err != nil {
			return nil, err
		}
	}
	for _, f := range excludes {
		if err := resolve(f, true); err != nil {
			return nil, err
		}
	}

	if len(exprs) == 0 {
		return nil, nil
	}
	return squirrel.And(exprs), nil
}

// filterPaths collects the distinct relation paths of every filter, in
// first-use order, so join aliases come out deterministic.
func (m *Model) filterPaths(filters, excludes []filter) ([][]string, error) {
	seen := map[string]bool{}
	var paths [][]string
	collect := func(fs []filter) error {
		for _, f := range fs {
			path, _, _, err := m.parseFilterKey(f.Key)
			if err != nil {
				return err
			}
			for i := 1; i <= len(path); i++ {
				key := strings.Join(path[:i], ".")
				if !seen[key] {
					seen[key] = true
				}
			}
			if len(path) > 0 {
				paths = append(paths, path)
			}
		}
		return nil
	}
	if err := collect(filters); err != nil {
		return nil, err
	}
	if err := collect(excludes); err != nil {
		return nil, err
	}
	return paths, nil
}

func (m *Model) buildSelectQuery(
	filters, excludes []filter,
	orderBy []string,
	limit, offset uint64,
	extraJoins []joinSpec,
	extraConds []squirrel.Sqlizer,
) (squirrel.SelectBuilder, error) {
	sb := squirrel.SelectBuilder{}.PlaceholderFormat(squirrel.Dollar)
	sb = sb.From(fmt.Sprintf("%s AS main", m.Table))

	paths, err := m.filterPaths(filters, excludes)
	if err != nil {
		return sb, err
	}
	joins, pathAlias, err := m.detectJoins(paths)
	if err != nil {
		return sb, err
	}
	joins = append(joins, extraJoins...)

	hasDistinct := false
	for _, join := range joins {
		sb = sb.LeftJoin(fmt.Sprintf("%s AS %s ON %s", join.Table, join.Alias, join.On))
		if join.Distinct {
			hasDistinct = true
		}
	}
	if hasDistinct {
		sb = sb.Distinct()
	}

	cols := make([]string, 0, len(m.Columns()))
	for _, col := range m.Columns() {
		cols = append(cols, "main."+col)
	}
	sb = sb.Columns(cols...)

	where, err := m.buildWhere(filters, excludes, pathAlias)
	if err != nil {
		return sb, err
	}
	if where != nil {
		sb = sb.Where(where)
	}
	for _, cond := range extraConds {
		sb = sb.Where(cond)
	}

	for _, entry := range orderBy {
		col := entry
		dir := ""
		if strings.HasPrefix(col, "-") {
			col = col[1:]
			dir = " DESC"
		}
		if !m.HasColumn(col) {
			return sb, fmt.Errorf("unknown order column %q on model %q", col, m.Name)
		}
		sb = sb.OrderBy("main." + col + dir)
	}

	if limit > 0 {
		sb = sb.Limit(limit)
	}
	if offset > 0 {
		sb = sb.Offset(offset)
	}
	return sb, nil
}

func (m *Model) buildCountQuery(
	filters, excludes []filter,
	extraJoins []joinSpec,
	extraConds []squirrel.Sqlizer,
) (squirrel.SelectBuilder, error) {
	sb := squirrel.SelectBuilder{}.PlaceholderFormat(squirrel.Dollar)
	sb = sb.From(fmt.Sprintf("%s AS main", m.Table))

	paths, err := m.filterPaths(filters, excludes)
	if err != nil {
		return sb, err
	}
	joins, pathAlias, err := m.detectJoins(paths)
	if err != nil {
		return sb, err
	}
	joins = append(joins, extraJoins...)

	hasDistinct := false
	for _, join := range joins {
		sb = sb.LeftJoin(fmt.Sprintf("%s AS %s ON %s", join.Table, join.Alias, join.On))
		if join.Distinct {
			hasDistinct = true
		}
	}
	if hasDistinct {
		sb = sb.Column(fmt.Sprintf("COUNT(DISTINCT main.%s)", m.PrimaryKeyColumn()))
	} else {
		sb = sb.Column("COUNT(*)")
	}

	where, err := m.buildWhere(filters, excludes, pathAlias)
	if err != nil {
		return sb, err
	}
	if where != nil {
		sb = sb.Where(where)
	}
	for _, cond := range extraConds {
		sb = sb.Where(cond)
	}
	return sb, nil
}

// buildDatesQuery selects the distinct year or month starts of a date
// column, ascending, constrained by the query set's filters and
// excludes.
func (m *Model) buildDatesQuery(filters, excludes []filter, column, precision string) (squirrel.SelectBuilder, error) {
	sb := squirrel.SelectBuilder{}.PlaceholderFormat(squirrel.Dollar)
	if precision != "year" && precision != "month" {
		return sb, fmt.Errorf("unsupported dates precision %q (want year or month)", precision)
	}
	if !m.HasColumn(column) {
		return sb, fmt.Errorf("unknown column %q on model %q", column, m.Name)
	}

	paths, err := m.filterPaths(filters, excludes)
	if err != nil {
		return sb, err
	}
	joins, pathAlias, err := m.detectJoins(paths)
	if err != nil {
		return sb, err
	}

	sb = sb.
		Options("DISTINCT").
		Column(fmt.Sprintf("date_trunc('%s', main.%s) AS dt", precision, column)).
		From(fmt.Sprintf("%s AS main", m.Table))
	for _, join := range joins {
		sb = sb.LeftJoin(fmt.Sprintf("%s AS %s ON %s", join.Table, join.Alias, join.On))
	}

	where, err := m.buildWhere(filters, excludes, pathAlias)
	if err != nil {
		return sb, err
	}
	if where != nil {
		sb = sb.Where(where)
	}
	sb = sb.
		Where(fmt.Sprintf("main.%s IS NOT NULL", column)).
		OrderBy("dt")
	return sb, nil
}

// buildDeleteQuery builds a DELETE constrained by plain-column filters
// and excludes. Relation paths need joins, which DELETE has no room
// for, so they are rejected for both.
func (m *Model) buildDeleteQuery(filters, excludes []filter) (squirrel.DeleteBuilder, error) {
	dq := squirrel.Delete(m.Table).PlaceholderFormat(squirrel.Dollar)

	add := func(f filter, negate bool) error {
		path, column, op, err := m.parseFilterKey(f.Key)
		if err != nil {
			return err
		}
		if len(path) > 0 {
			return fmt.Errorf("delete does not support relation filter %q", f.Key)
		}
		cond, err := buildCond(op, column, f.Value)
		if err != nil {
			return err
		}
		if negate {
			cond = notExpr{cond}
		}
		dq = dq.Where(cond)
		return nil
	}

	for _, f := range filters {
		if err := add(f, false); err != nil {
			return dq, err
		}
	}
	for _, f := range excludes {
		if err := add(f, true); err != nil {
			return dq, err
		}
	}
	return dq, nil
}
