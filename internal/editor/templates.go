package editor

import (
	"context"
	"fmt"

	"dirplan/internal/template"
)

// SaveTemplate stores the current tree under name.
func (e *Editor) SaveTemplate(ctx context.Context, store template.Store, name string) error {
	if err := e.requirePopulated(); err != nil {
		return err
	}
	if err := template.Put(ctx, store, name, e.tree); err != nil {
		return err
	}
	e.logger.Info("template saved", "template", name, "folders", e.tree.Len())
	return nil
}

// LoadTemplate replaces the tree with the named template. A missing name
// leaves the editor unchanged and returns template.ErrNotFound.
func (e *Editor) LoadTemplate(ctx context.Context, store template.Store, name string) error {
	tree, err := template.Get(ctx, store, name)
	if err != nil {
		return err
	}
	e.tree = tree
	e.logger.Info("template loaded", "template", name, "folders", tree.Len())
	return nil
}

// LoadPredefined replaces the tree with one of the built-in templates.
func (e *Editor) LoadPredefined(name string) error {
	doc, err := template.Predefined()
	if err != nil {
		return err
	}
	tree, ok := doc[name]
	if !ok {
		return fmt.Errorf("%w: predefined %s", template.ErrNotFound, name)
	}
	e.tree = tree
	return nil
}
