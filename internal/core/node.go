package core

import "encoding/json"

// Node is one folder. Identity is positional; two nodes with the same
// name are distinguishable only by where they sit in the tree.
type Node struct {
	Name     string  `json:"name" yaml:"name"`
	Children []*Node `json:"children" yaml:"children,omitempty"`
}

// Tree is an ordered forest of root folders.
type Tree []*Node

func NewNode(name string, children ...*Node) *Node {
	return &Node{Name: name, Children: children}
}

// MarshalJSON always emits children as a list so stored templates keep
// the {name, children: [...]} shape even for leaves.
func (n *Node) MarshalJSON() ([]byte, error) {
	type plain Node
	out := plain(*n)
	if out.Children == nil {
		out.Children = []*Node{}
	}
	return json.Marshal(out)
}

func (n *Node) Clone() *Node {
	c := &Node{Name: n.Name}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for i, n := range t {
		out[i] = n.Clone()
	}
	return out
}

// Walk visits every node in depth-first pre-order. siblings is the slice
// holding n and index is n's position in it. Returning false stops the walk.
func (t Tree) Walk(fn func(n *Node, depth int, siblings []*Node, index int) bool) {
	walkNodes(t, 0, fn)
}

func walkNodes(nodes []*Node, depth int, fn func(*Node, int, []*Node, int) bool) bool {
	for i, n := range nodes {
		if !fn(n, depth, nodes, i) {
			return false
		}
		if !walkNodes(n.Children, depth+1, fn) {
			return false
		}
	}
	return true
}

// Find returns the first node in pre-order whose name equals name.
func (t Tree) Find(name string) *Node {
	var found *Node
	t.Walk(func(n *Node, _ int, _ []*Node, _ int) bool {
		if n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found
}

// Len counts every node in the forest.
func (t Tree) Len() int {
	count := 0
	t.Walk(func(*Node, int, []*Node, int) bool {
		count++
		return true
	})
	return count
}

// FlattenTree lists nodes in pre-order.
func (t Tree) FlattenTree() []*Node {
	var out []*Node
	t.Walk(func(n *Node, _ int, _ []*Node, _ int) bool {
		out = append(out, n)
		return true
	})
	return out
}
