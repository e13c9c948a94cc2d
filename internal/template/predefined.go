package template

import (
	_ "embed"
	"fmt"
	"sync"

	"dirplan/internal/core"

	"gopkg.in/yaml.v3"
)

//go:embed predefined.yaml
var predefinedYAML []byte

var (
	predefinedOnce sync.Once
	predefinedDoc  Document
	predefinedErr  error
)

// Predefined returns a copy of the built-in templates.
func Predefined() (Document, error) {
	predefinedOnce.Do(func() {
		predefinedDoc, predefinedErr = decodeYAMLDocument(predefinedYAML)
	})
	if predefinedErr != nil {
		return nil, predefinedErr
	}
	out := make(Document, len(predefinedDoc))
	for name, tree := range predefinedDoc {
		out[name] = tree.Clone()
	}
	return out, nil
}

func decodeYAMLDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for name, tree := range doc {
		if err := core.ValidateTree(tree); err != nil {
			return nil, fmt.Errorf("%w: template %q: %w", ErrMalformed, name, err)
		}
	}
	return doc, nil
}
