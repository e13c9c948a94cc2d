package service

import (
	"context"
	"fmt"

	"dirplan/internal/core"
	"dirplan/internal/editor"
	"dirplan/internal/template"
)

// TemplateSummary describes one saved or predefined template.
type TemplateSummary struct {
	Name        string `json:"name"`
	Folders     int    `json:"folders"`
	Fingerprint string `json:"fingerprint"`
}

// ValidationResult reports on a structure submitted for checking.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Folders     int    `json:"folders"`
	Depth       int    `json:"depth"`
	Fingerprint string `json:"fingerprint"`
}

// Stats holds aggregate server statistics.
type Stats struct {
	Sessions            int `json:"sessions"`
	Templates           int `json:"templates"`
	PredefinedTemplates int `json:"predefined_templates"`
}

// SaveTemplate stores the session's tree under name.
func (s *StructureService) SaveTemplate(ctx context.Context, id, name string) error {
	return s.read(id, func(sess *session) error {
		return sess.editor.SaveTemplate(ctx, s.templates, name)
	})
}

// LoadTemplate replaces the session's tree with a saved template.
func (s *StructureService) LoadTemplate(ctx context.Context, id, name string) (*SessionView, error) {
	return s.edit(id, func(e *editor.Editor) error {
		return e.LoadTemplate(ctx, s.templates, name)
	})
}

// LoadPredefined replaces the session's tree with a built-in template.
func (s *StructureService) LoadPredefined(id, name string) (*SessionView, error) {
	return s.edit(id, func(e *editor.Editor) error {
		return e.LoadPredefined(name)
	})
}

// ListTemplates summarizes the saved templates, sorted by name.
func (s *StructureService) ListTemplates(ctx context.Context) ([]TemplateSummary, error) {
	doc, err := s.templates.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	return summarize(doc), nil
}

// GetTemplate returns a saved template's structure.
func (s *StructureService) GetTemplate(ctx context.Context, name string) (core.Tree, error) {
	return template.Get(ctx, s.templates, name)
}

// DeleteTemplate removes a saved template.
func (s *StructureService) DeleteTemplate(ctx context.Context, name string) error {
	return template.Remove(ctx, s.templates, name)
}

// ListPredefined summarizes the built-in templates.
func (s *StructureService) ListPredefined() ([]TemplateSummary, error) {
	doc, err := template.Predefined()
	if err != nil {
		return nil, err
	}
	return summarize(doc), nil
}

// SeedPredefined copies the built-in templates into the store without
// replacing templates that already exist, and returns the names added.
func (s *StructureService) SeedPredefined(ctx context.Context) ([]string, error) {
	doc, err := template.Predefined()
	if err != nil {
		return nil, err
	}
	return template.Seed(ctx, s.templates, doc)
}

// Validate checks a JSON structure without storing it.
func (s *StructureService) Validate(data []byte) (*ValidationResult, error) {
	_, tree, err := core.DecodeExport(data)
	if err != nil {
		return nil, err
	}
	if len(tree) == 0 {
		return nil, &core.ValidationError{Field: "structure", Cause: "folder structure is empty"}
	}

	depth := 0
	tree.Walk(func(_ *core.Node, d int, _ []*core.Node, _ int) bool {
		depth = max(depth, d+1)
		return true
	})
	return &ValidationResult{
		Valid:       true,
		Folders:     tree.Len(),
		Depth:       depth,
		Fingerprint: template.Fingerprint(tree),
	}, nil
}

// GetStats returns aggregate server statistics.
func (s *StructureService) GetStats(ctx context.Context) (*Stats, error) {
	doc, err := s.templates.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	predefined, err := template.Predefined()
	if err != nil {
		return nil, err
	}
	return &Stats{
		Sessions:            s.SessionCount(),
		Templates:           len(doc),
		PredefinedTemplates: len(predefined),
	}, nil
}

func summarize(doc template.Document) []TemplateSummary {
	out := make([]TemplateSummary, 0, len(doc))
	for _, name := range doc.Names() {
		tree := doc[name]
		out = append(out, TemplateSummary{
			Name:        name,
			Folders:     tree.Len(),
			Fingerprint: template.Fingerprint(tree),
		})
	}
	return out
}
