package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"MultiDB/internal/logger"

	"gopkg.in/yaml.v3"
)

func LoadModelsFromDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return err
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		// 1. Parse into a yaml.Node for structural validation
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return fmt.Errorf("YAML parse error in %s: %w", path, err)
		}

		// [0] is the document, its first child the root mapping
		if len(root.Content) == 0 {
			return fmt.Errorf("empty YAML in %s", path)
		}

		if err := validateYAMLNode(root.Content[0], "model"); err != nil {
			return fmt.Errorf("validation error in %s: %w", path, err)
		}

		// 2. Unmarshal into the model proper
		var model Model
		if err := root.Decode(&model); err != nil {
			return fmt.Errorf("unmarshal error in %s: %w", path, err)
		}

		// 3. Register it under the file name
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		model.Name = name
		Registry[name] = &model
		logger.Debug("model_loaded", map[string]any{
			"model":     name,
			"relations": len(model.Relations),
		})
	}
	return nil
}
