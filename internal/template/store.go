// Package template persists named folder structures. A store holds every
// template in one document that is read and rewritten as a whole.
package template

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"dirplan/internal/core"

	"golang.org/x/crypto/blake2b"
)

var (
	ErrNotFound  = errors.New("template not found")
	ErrMalformed = errors.New("malformed template document")
)

// Document maps template names to their trees.
type Document map[string]core.Tree

// Store loads and saves the whole template document. Implementations return
// an empty Document when nothing has been saved yet.
//
// Update loads the document, lets fn change it in place and saves the
// result, holding the store for the whole step so concurrent updates never
// drop each other's changes. Nothing is saved when fn returns an error.
type Store interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
	Update(ctx context.Context, fn func(doc Document) error) error
}

// Put stores tree under name, replacing any template with that name.
func Put(ctx context.Context, s Store, name string, tree core.Tree) error {
	name, err := core.RequireName("template name", name)
	if err != nil {
		return err
	}
	if len(tree) == 0 {
		return &core.ValidationError{Field: "structure", Cause: "folder structure is empty"}
	}
	if err := core.ValidateTree(tree); err != nil {
		return err
	}

	fp := Fingerprint(tree)
	err = s.Update(ctx, func(doc Document) error {
		for other, existing := range doc {
			if other != name && Fingerprint(existing) == fp {
				slog.Info("duplicate structure detected",
					"template", name,
					"existing_template", other,
					"fingerprint", fp,
				)
				break
			}
		}
		doc[name] = tree.Clone()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save template %q: %w", name, err)
	}
	return nil
}

// Get returns a copy of the named template.
func Get(ctx context.Context, s Store, name string) (core.Tree, error) {
	name, err := core.RequireName("template name", name)
	if err != nil {
		return nil, err
	}
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	tree, ok := doc[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tree.Clone(), nil
}

// Names lists template names in sorted order.
func Names(ctx context.Context, s Store) ([]string, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Names(), nil
}

// Remove deletes the named template.
func Remove(ctx context.Context, s Store, name string) error {
	name, err := core.RequireName("template name", name)
	if err != nil {
		return err
	}
	return s.Update(ctx, func(doc Document) error {
		if _, ok := doc[name]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		delete(doc, name)
		return nil
	})
}

// Seed adds every entry of src that s does not already hold and returns
// the names it added.
func Seed(ctx context.Context, s Store, src Document) ([]string, error) {
	var added []string
	err := s.Update(ctx, func(doc Document) error {
		added = added[:0]
		for _, name := range src.Names() {
			if _, ok := doc[name]; ok {
				continue
			}
			doc[name] = src[name].Clone()
			added = append(added, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return nil, nil
	}
	return added, nil
}

// updateDocument runs fn on the loaded document and saves it unless fn
// left it unchanged.
func updateDocument(ctx context.Context, load func(context.Context) (Document, error), save func(context.Context, Document) error, fn func(Document) error) error {
	doc, err := load(ctx)
	if err != nil {
		return err
	}
	before := DocumentFingerprint(doc)
	if err := fn(doc); err != nil {
		return err
	}
	if DocumentFingerprint(doc) == before {
		return nil
	}
	return save(ctx, doc)
}

func (d Document) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Fingerprint hashes the canonical rendering of tree, so two trees with the
// same shape and names share a fingerprint regardless of source formatting.
func Fingerprint(tree core.Tree) string {
	sum := blake2b.Sum256([]byte(strings.Join(core.Render(tree), "\n")))
	return hex.EncodeToString(sum[:])
}

func decodeDocument(data []byte) (Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, &core.ValidationError{Field: "document", Cause: "invalid JSON format", Err: err})
	}
	doc := make(Document, len(raw))
	for name, body := range raw {
		tree, err := core.DecodeTree(body)
		if err != nil {
			return nil, fmt.Errorf("%w: template %q: %w", ErrMalformed, name, err)
		}
		doc[name] = tree
	}
	return doc, nil
}

// DocumentFingerprint hashes every template name with its tree fingerprint,
// in name order.
func DocumentFingerprint(doc Document) string {
	h, _ := blake2b.New256(nil)
	for _, name := range doc.Names() {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(Fingerprint(doc[name])))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
