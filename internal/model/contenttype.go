package model

import "fmt"

// Generic relations store the target model as a stable type label next
// to the object id. The label is the snake_case model name, so rows
// stay readable and survive process restarts.

// ContentTypeLabel returns the label stored in type discriminator columns.
func ContentTypeLabel(m *Model) string {
	return toSnakeCase(m.Name)
}

// ModelForLabel resolves a type label back to the registered model.
func ModelForLabel(label string) (*Model, error) {
	for _, m := range Registry {
		if toSnakeCase(m.Name) == label {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no model registered for content type %q", label)
}
