package model

// Relation types supported by the registry.
const (
	RelBelongsTo  = "belongs_to"
	RelHasMany    = "has_many"
	RelManyToMany = "many_to_many"
	RelGeneric    = "generic"
)

// Model describes a registered model: its table, columns and relations.
type Model struct {
	Name       string               `yaml:"-"` // logical name of the model
	Table      string               `yaml:"table"`
	Fields     []FieldDef           `yaml:"fields"`
	Relations  map[string]*Relation `yaml:"relations"`
	PrimaryKey string               `yaml:"primary_key"` // optional, defaults to "id"

	// built by the linker (not serialized)
	columns   []string
	columnSet map[string]bool
}

// FieldDef is a plain column of a model.
type FieldDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // "int", "string", "bool", "float", "date", "datetime", "UUID"
}

// Relation describes a link between models in the configuration.
type Relation struct {
	Type        string `yaml:"type"`        // belongs_to, has_many, many_to_many, generic
	Model       string `yaml:"model"`       // logical name of the related model ("*" for polymorphic)
	FK          string `yaml:"fk"`          // foreign key column (owner side for belongs_to, related side otherwise)
	PK          string `yaml:"pk"`          // referenced column, defaults to "id"
	Through     string `yaml:"through"`     // join model for many_to_many
	Polymorphic bool   `yaml:"polymorphic"` // belongs_to with per-row target model
	TypeColumn  string `yaml:"type_column"` // type discriminator column (polymorphic/generic)

	// runtime references (not serialized)
	_ModelRef   *Model `yaml:"-"`
	_ThroughRef *Model `yaml:"-"`

	// through join columns, resolved by the linker
	throughOwnerFK  string
	throughTargetFK string
}

// joinSpec is one LEFT JOIN needed by a relation-path filter.
type joinSpec struct {
	Table    string
	Alias    string
	On       string
	Distinct bool
}

// PrimaryKeyColumn returns the primary key column, "id" when unset.
func (m *Model) PrimaryKeyColumn() string {
	if m.PrimaryKey != "" {
		return m.PrimaryKey
	}
	return "id"
}

// Columns returns the selectable columns of the model in stable order.
// Built by the linker: pk, declared fields, then relation-owned columns.
func (m *Model) Columns() []string {
	return m.columns
}

// HasColumn reports whether the model owns the given column.
func (m *Model) HasColumn(name string) bool {
	return m.columnSet[name]
}

// GetModelRef returns the linked target model, nil for polymorphic relations.
func (r *Relation) GetModelRef() *Model {
	return r._ModelRef
}

// SetModelRef sets the target model (called by the linker).
func (r *Relation) SetModelRef(m *Model) {
	r._ModelRef = m
}

// GetThroughRef returns the linked join model for many_to_many relations.
func (r *Relation) GetThroughRef() *Model {
	return r._ThroughRef
}

func (r *Relation) SetThroughRef(m *Model) {
	r._ThroughRef = m
}
