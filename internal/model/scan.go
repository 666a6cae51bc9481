package model

import (
	"github.com/jackc/pgx/v5"
)

// scanInstances turns a result set into saved instances pinned to the
// database they were read from. Column names come straight from the
// row descriptions, so "main.<col>" selects map back onto field names.
func scanInstances(rows pgx.Rows, m *Model, alias string) ([]*Instance, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	names := make([]string, len(fds))
	for i, fd := range fds {
		names[i] = string(fd.Name)
	}

	out := make([]*Instance, 0, 16)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		fields := make(map[string]any, len(vals))
		for i, v := range vals {
			fields[names[i]] = normalizeValue(v)
		}
		out = append(out, &Instance{
			model:  m,
			fields: fields,
			state:  State{DB: alias, Saved: true},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeValue widens small integer types so PK comparisons behave.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return v
	}
}
