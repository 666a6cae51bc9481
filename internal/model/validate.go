package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Allowed keys per object kind
var allowedModelKeys = map[string]bool{
	"table":       true,
	"fields":      true,
	"relations":   true,
	"primary_key": true,
}

var allowedRelationKeys = map[string]bool{
	"model":       true,
	"type":        true,
	"fk":          true,
	"pk":          true,
	"through":     true,
	"polymorphic": true,
	"type_column": true,
}

var allowedFieldKeys = map[string]bool{
	"name": true,
	"type": true,
}

// Allowed values for field types
var allowedFieldTypeValues = map[string]bool{
	"int":      true,
	"string":   true,
	"bool":     true,
	"float":    true,
	"date":     true,
	"datetime": true,
	"time":     true,
	"UUID":     true,
}

func validateYAMLNode(node *yaml.Node, context string) error {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := validateYAMLNode(child, "model"); err != nil {
				return err
			}
		}

	case yaml.MappingNode:
		var allowedKeys map[string]bool
		switch context {
		case "model":
			allowedKeys = allowedModelKeys
		case "relation":
			allowedKeys = allowedRelationKeys
		case "field":
			allowedKeys = allowedFieldKeys
		default:
			allowedKeys = nil // free form
		}

		for i := 0; i < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			key := keyNode.Value

			if allowedKeys != nil && !allowedKeys[key] {
				return fmt.Errorf("unknown key '%s' in %s", key, context)
			}

			if context == "field" && key == "type" {
				if !allowedFieldTypeValues[valNode.Value] {
					return fmt.Errorf("unknown type value '%s' in field", valNode.Value)
				}
			}

			nextContext := ""
			if context == "model" && key == "relations" {
				nextContext = "relations-map"
			} else if context == "relations-map" {
				nextContext = "relation"
			} else if context == "model" && key == "fields" {
				nextContext = "fields-seq"
			} else {
				nextContext = context
			}

			if err := validateYAMLNode(valNode, nextContext); err != nil {
				return err
			}
		}

	case yaml.SequenceNode:
		if context == "fields-seq" {
			for _, item := range node.Content {
				if err := validateYAMLNode(item, "field"); err != nil {
					return err
				}
			}
		} else {
			for _, item := range node.Content {
				if err := validateYAMLNode(item, context); err != nil {
					return err
				}
			}
		}

	case yaml.ScalarNode:
		// scalars carry no keys to validate
	}

	return nil
}
