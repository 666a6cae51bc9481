package model

import (
	"fmt"
	"sort"
	"unicode"
)

// LinkModelRelations resolves relation targets, fills in default FK/PK
// column names and builds each model's column list. Must run after
// every model file has been loaded.
func LinkModelRelations() error {
	for modelName, m := range Registry {
		for relName, rel := range m.Relations {
			switch rel.Type {
			case RelBelongsTo, RelHasMany, RelManyToMany, RelGeneric:
			default:
				return fmt.Errorf("relation '%s.%s' must have valid Type (belongs_to, has_many, many_to_many, generic), got '%s'",
					modelName, relName, rel.Type)
			}

			if rel.Polymorphic {
				if rel.Type != RelBelongsTo {
					return fmt.Errorf("relation '%s.%s': only belongs_to can be polymorphic", modelName, relName)
				}
				// target model is decided per row via the type column
				if rel.FK == "" {
					rel.FK = relName + "_id"
				}
				if rel.TypeColumn == "" {
					rel.TypeColumn = relName + "_type"
				}
				if rel.PK == "" {
					rel.PK = "id"
				}
				continue
			}

			targetModel, ok := Registry[rel.Model]
			if !ok {
				return fmt.Errorf("invalid relation: model '%s' not found in '%s.%s'", rel.Model, modelName, relName)
			}
			rel._ModelRef = targetModel

			// Default FK column when not configured
			switch rel.Type {
			case RelBelongsTo:
				// FK lives in the current model and points at the target
				if rel.FK == "" {
					rel.FK = relName + "_id"
				}
			case RelHasMany:
				// FK lives in the related model and points back at us
				if rel.FK == "" {
					rel.FK = toSnakeCase(modelName) + "_id"
				}
			case RelGeneric:
				// type/object-id pair lives in the related model
				if rel.FK == "" {
					rel.FK = "object_id"
				}
				if rel.TypeColumn == "" {
					rel.TypeColumn = "content_type"
				}
			}

			if rel.PK == "" {
				rel.PK = "id"
			}

			if rel.Type == RelManyToMany {
				if rel.Through == "" {
					return fmt.Errorf("relation '%s.%s': many_to_many requires a through model", modelName, relName)
				}
				throughModel, ok := Registry[rel.Through]
				if !ok {
					return fmt.Errorf("invalid through: model '%s' not found in '%s.%s'", rel.Through, modelName, relName)
				}
				ownerFK, targetFK := "", ""
				for _, throughRel := range throughModel.Relations {
					if throughRel.Type != RelBelongsTo {
						continue
					}
					switch throughRel.Model {
					case modelName:
						ownerFK = throughRel.FK
						if ownerFK == "" {
							ownerFK = relNameOf(throughModel, throughRel) + "_id"
						}
					case rel.Model:
						targetFK = throughRel.FK
						if targetFK == "" {
							targetFK = relNameOf(throughModel, throughRel) + "_id"
						}
					}
				}
				if ownerFK == "" || targetFK == "" {
					return fmt.Errorf("invalid through: '%s' must declare belongs_to relations to both '%s' and '%s' for '%s.%s'",
						rel.Through, modelName, rel.Model, modelName, relName)
				}
				rel._ThroughRef = throughModel
				rel.throughOwnerFK = ownerFK
				rel.throughTargetFK = targetFK
			}
		}
		buildColumns(m)
	}
	return nil
}

// buildColumns computes the stable selectable column list: primary key,
// declared fields, then relation-owned columns (belongs_to FK and the
// type discriminator) that were not declared explicitly.
func buildColumns(m *Model) {
	m.columnSet = map[string]bool{}
	m.columns = m.columns[:0]

	add := func(col string) {
		if col == "" || m.columnSet[col] {
			return
		}
		m.columnSet[col] = true
		m.columns = append(m.columns, col)
	}

	add(m.PrimaryKeyColumn())
	for _, f := range m.Fields {
		add(f.Name)
	}

	relNames := make([]string, 0, len(m.Relations))
	for name := range m.Relations {
		relNames = append(relNames, name)
	}
	sort.Strings(relNames)
	for _, name := range relNames {
		rel := m.Relations[name]
		if rel.Type != RelBelongsTo {
			continue
		}
		add(rel.FK)
		if rel.Polymorphic {
			add(rel.TypeColumn)
		}
	}
}

// relNameOf finds the name a relation is registered under in its model.
func relNameOf(m *Model, rel *Relation) string {
	for name, r := range m.Relations {
		if r == rel {
			return name
		}
	}
	return ""
}

func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}
