package core

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sentinel is the placeholder line an empty buffer shows. It never becomes
// a node.
const Sentinel = "File Structure ."

// IndentUnit is the number of spaces per depth level when rendering.
const IndentUnit = 4

var suffixPattern = regexp.MustCompile(`\(\d+\)$`)

type frame struct {
	indent int
	node   *Node
}

// Parse builds a forest from indented lines. Indentation is compared, never
// divided: any line whose indent is <= an open ancestor's closes that
// ancestor, so irregular input still yields a tree.
func Parse(lines []string) Tree {
	var (
		tree  Tree
		stack []frame
	)
	for _, line := range lines {
		name := strings.TrimSpace(line)
		if name == "" || name == Sentinel {
			continue
		}
		indent := IndentWidth(line)
		node := &Node{Name: name}

		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1].node
			parent.Children = append(parent.Children, node)
		} else {
			tree = append(tree, node)
		}
		stack = append(stack, frame{indent: indent, node: node})
	}
	return tree
}

func ParseText(text string) Tree {
	return Parse(SplitLines(text))
}

// IndentWidth counts the leading whitespace characters of line.
func IndentWidth(line string) int {
	rest := strings.TrimLeftFunc(line, unicode.IsSpace)
	return utf8.RuneCountInString(line[:len(line)-len(rest)])
}

// Render emits one line per node, pre-order, indented IndentUnit spaces per
// depth level.
func Render(tree Tree) []string {
	return RenderIndent(tree, IndentUnit)
}

func RenderIndent(tree Tree, unit int) []string {
	if unit < 0 {
		unit = IndentUnit
	}
	lines := make([]string, 0, tree.Len())
	tree.Walk(func(n *Node, depth int, _ []*Node, _ int) bool {
		lines = append(lines, strings.Repeat(" ", unit*depth)+n.Name)
		return true
	})
	return lines
}

// RenderText joins Render output with newlines. An empty tree renders as
// the sentinel alone.
func RenderText(tree Tree) string {
	if len(tree) == 0 {
		return Sentinel
	}
	return strings.Join(Render(tree), "\n")
}

// SplitLines splits a text buffer on \n, tolerating \r\n endings.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// StripSuffix removes a trailing "(<n>)" display disambiguator.
func StripSuffix(name string) string {
	return strings.TrimSpace(suffixPattern.ReplaceAllString(strings.TrimSpace(name), ""))
}

// ExtractNames returns the sorted, de-duplicated folder names found in
// lines, with display suffixes stripped. It does not build a tree.
func ExtractNames(lines []string) []string {
	seen := make(map[string]struct{})
	names := []string{}
	for _, line := range lines {
		name := StripSuffix(line)
		if name == "" || name == Sentinel {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
