package fixture

// Package fixture loads serialized rows into a named database so tests
// start from a known state.

import (
	"context"
	"fmt"
	"os"
	"sort"

	"MultiDB/internal/logger"
	"MultiDB/internal/model"

	"gopkg.in/yaml.v3"
)

// Entry is one serialized row: the model it belongs to and its fields.
type Entry struct {
	Model  string         `yaml:"model"`
	Fields map[string]any `yaml:"fields"`
}

// Decode parses a fixture document (a YAML list of entries).
func Decode(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("fixture parse error: %w", err)
	}
	for i, e := range entries {
		if e.Model == "" {
			return nil, fmt.Errorf("fixture entry %d has no model", i)
		}
	}
	return entries, nil
}

// Load reads a fixture file and creates every row on the named
// database, in file order.
func Load(ctx context.Context, alias, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	entries, err := Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, e := range entries {
		if _, err := model.Objects(e.Model).Using(alias).Create(ctx, e.Fields); err != nil {
			return fmt.Errorf("%s: create %s on %q: %w", path, e.Model, alias, err)
		}
	}
	logger.Info("fixture_loaded", map[string]any{
		"path":    path,
		"db":      alias,
		"entries": len(entries),
	})
	return nil
}

// LoadSet loads several fixture files per database alias. Aliases are
// processed in sorted order so runs are reproducible.
func LoadSet(ctx context.Context, set map[string][]string) error {
	aliases := make([]string, 0, len(set))
	for alias := range set {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		for _, path := range set[alias] {
			if err := Load(ctx, alias, path); err != nil {
				return err
			}
		}
	}
	return nil
}
