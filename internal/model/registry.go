package model

import "fmt"

var Registry = map[string]*Model{}

func InitRegistry(dir string) error {
	if err := LoadModelsFromDir(dir); err != nil {
		return fmt.Errorf("load error: %w", err)
	}
	if err := LinkModelRelations(); err != nil {
		return fmt.Errorf("link error: %w", err)
	}
	return nil
}

// New builds an unsaved instance of a registered model.
func New(name string, fields map[string]any) (*Instance, error) {
	m, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("model %q not registered", name)
	}
	return m.New(fields)
}

func (m *Model) GetRelation(name string) *Relation {
	if m == nil || m.Relations == nil {
		return nil
	}
	return m.Relations[name]
}
