package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ValidationError struct {
	Field string
	Cause string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Cause, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Cause)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// RequireName trims value and reports a ValidationError when nothing is
// left or when the name spans more than one line.
func RequireName(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if cause := nameProblem(v); cause != "" {
		return "", &ValidationError{Field: field, Cause: cause}
	}
	return v, nil
}

// nameProblem returns why name cannot label a folder, or "" if it can.
// A name must fit on one outline line.
func nameProblem(name string) string {
	switch {
	case strings.TrimSpace(name) == "":
		return "must not be empty"
	case strings.ContainsAny(name, "\r\n"):
		return "must not contain line breaks"
	}
	return ""
}

// ValidateTree checks that every folder carries a non-empty name.
func ValidateTree(tree Tree) error {
	var err error
	tree.Walk(func(n *Node, depth int, _ []*Node, index int) bool {
		if n == nil {
			err = &ValidationError{Field: "structure", Cause: fmt.Sprintf("null folder at depth %d position %d", depth, index)}
			return false
		}
		if cause := nameProblem(n.Name); cause != "" {
			err = &ValidationError{Field: "name", Cause: fmt.Sprintf("folder name %s (depth %d position %d)", cause, depth, index)}
			return false
		}
		return true
	})
	return err
}

// DecodeTree parses a JSON list of {name, children} records. The shape is
// checked before decoding so the first offending element is reported.
func DecodeTree(data []byte) (Tree, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Field: "structure", Cause: "invalid JSON format", Err: err}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &ValidationError{Field: "structure", Cause: "structure must be a list of folders"}
	}
	tree := make(Tree, 0, len(items))
	for _, item := range items {
		n, err := decodeNode(item)
		if err != nil {
			return nil, err
		}
		tree = append(tree, n)
	}
	return tree, nil
}

func decodeNode(v any) (*Node, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ValidationError{Field: "structure", Cause: "each folder must be an object"}
	}
	rawName, ok := obj["name"]
	if !ok {
		return nil, &ValidationError{Field: "name", Cause: "each folder must have a name"}
	}
	name, ok := rawName.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Cause: "folder names cannot be empty"}
	}
	if cause := nameProblem(name); cause != "" {
		return nil, &ValidationError{Field: "name", Cause: fmt.Sprintf("folder name %q %s", strings.TrimSpace(name), cause)}
	}
	n := &Node{Name: strings.TrimSpace(name)}

	rawChildren, ok := obj["children"]
	if !ok || rawChildren == nil {
		return n, nil
	}
	children, ok := rawChildren.([]any)
	if !ok {
		return nil, &ValidationError{Field: "children", Cause: fmt.Sprintf("children of %q must be a list", n.Name)}
	}
	for _, c := range children {
		child, err := decodeNode(c)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}
