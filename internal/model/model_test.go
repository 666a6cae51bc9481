package model

import "testing"

// useTestRegistry swaps in a small linked registry mirroring the
// bundled model files and restores the real one afterwards.
func useTestRegistry(t *testing.T) {
	t.Helper()
	old := Registry
	Registry = map[string]*Model{
		"Book": {
			Name:  "Book",
			Table: "books",
			Fields: []FieldDef{
				{Name: "title", Type: "string"},
				{Name: "published", Type: "date"},
			},
			Relations: map[string]*Relation{
				"authors":      {Type: RelManyToMany, Model: "Author", Through: "BookAuthor"},
				"favourite_of": {Type: RelHasMany, Model: "Author", FK: "favourite_book_id"},
				"reviews":      {Type: RelGeneric, Model: "Review"},
			},
		},
		"Author": {
			Name:   "Author",
			Table:  "authors",
			Fields: []FieldDef{{Name: "name", Type: "string"}},
			Relations: map[string]*Relation{
				"favourite_book": {Type: RelBelongsTo, Model: "Book", FK: "favourite_book_id"},
				"books":          {Type: RelManyToMany, Model: "Book", Through: "BookAuthor"},
			},
		},
		"BookAuthor": {
			Name:  "BookAuthor",
			Table: "book_authors",
			Relations: map[string]*Relation{
				"book":   {Type: RelBelongsTo, Model: "Book"},
				"author": {Type: RelBelongsTo, Model: "Author"},
			},
		},
		"Review": {
			Name:   "Review",
			Table:  "reviews",
			Fields: []FieldDef{{Name: "source", Type: "string"}},
			Relations: map[string]*Relation{
				"content_object": {
					Type:        RelBelongsTo,
					Polymorphic: true,
					FK:          "object_id",
					TypeColumn:  "content_type",
				},
			},
		},
		"Article": {
			Name:  "Article",
			Table: "articles",
			Fields: []FieldDef{
				{Name: "headline", Type: "string"},
				{Name: "published", Type: "date"},
			},
			Relations: map[string]*Relation{
				"reviews": {Type: RelGeneric, Model: "Review"},
			},
		},
	}
	t.Cleanup(func() { Registry = old })
	if err := LinkModelRelations(); err != nil {
		t.Fatalf("link test registry: %v", err)
	}
}

// savedInstance fabricates an already persisted instance for state
// logic tests that never touch a database.
func savedInstance(t *testing.T, modelName, alias string, fields map[string]any) *Instance {
	t.Helper()
	m, ok := Registry[modelName]
	if !ok {
		t.Fatalf("model %q not in test registry", modelName)
	}
	in, err := m.New(fields)
	if err != nil {
		t.Fatalf("new %s: %v", modelName, err)
	}
	in.state = State{DB: alias, Saved: true}
	return in
}
