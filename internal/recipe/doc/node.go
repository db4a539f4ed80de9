// Package doc implements the abstract node-tree grammar spec.md §6 describes
// plus a minimal concrete syntax reader for it. A document is a list of
// top-level Nodes; the engine considers only nodes named "recipe".
package doc

// Pos is a 1-based line and column in the source, used to build ParseError
// spans.
type Pos struct {
	Line, Col int
}

// Value is either a quoted string or a bare boolean (the only entry value
// kinds the grammar needs: the `extends=bool` property, and ordinary string
// entries).
type Value struct {
	IsBool bool
	Str    string
	Bool   bool
}

// Entry is one item inside a node's body: a bare positional string, or a
// named property (`key=value`).
type Entry struct {
	Pos      Pos
	Property string // empty for a positional entry
	Value    Value
}

// Node is one element of the document tree: a name, its ordered entries, and
// an optional list of child nodes.
type Node struct {
	Pos      Pos
	Name     string
	Entries  []Entry
	Children []Node
}

// Positionals returns the node's positional (non-property) string entries in
// order.
func (n Node) Positionals() []string {
	var out []string
	for _, e := range n.Entries {
		if e.Property == "" && !e.Value.IsBool {
			out = append(out, e.Value.Str)
		}
	}
	return out
}

// BoolValue returns the node's first positional boolean entry, if it has one
// (used for `strip true` style leaf nodes). Other entries are ignored.
func (n Node) BoolValue() (bool, bool) {
	for _, e := range n.Entries {
		if e.Property == "" && e.Value.IsBool {
			return e.Value.Bool, true
		}
	}
	return false, false
}

// Property returns the value of the named property entry, if present.
func (n Node) Property(name string) (Value, bool) {
	for _, e := range n.Entries {
		if e.Property == name {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Child returns the first child node with the given name, if present.
func (n Node) Child(name string) (Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return Node{}, false
}

// ChildrenNamed returns every child node with the given name, in order.
func (n Node) ChildrenNamed(name string) []Node {
	var out []Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
