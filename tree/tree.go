// Package tree is the language-independent view of a parsed source file.
//
// A Tree is an immutable arena of nodes built once by a grammar provider.
// Node is a small value handle (tree pointer plus index) so that matchers can
// pass nodes around freely without allocating, and so that nodes can never
// outlive the tree that owns them.
package tree

import (
	"fmt"
	"strings"
)

// NodeID is the stable index of a node inside its tree.
type NodeID int32

// NoNode marks an absent parent or child.
const NoNode NodeID = -1

// Span is a [Start, End) byte range within the source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether o lies within s.
func (s Span) Contains(o Span) bool { return s.Start <= o.Start && o.End <= s.End }

// Overlaps reports whether two spans share at least one byte. Two empty spans
// at the same offset are also considered overlapping: they target the same
// insertion point.
func (s Span) Overlaps(o Span) bool {
	if s.Len() == 0 && o.Len() == 0 {
		return s.Start == o.Start
	}
	return s.Start < o.End && o.Start < s.End
}

func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// Point is a zero-based line/column position.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type node struct {
	kind     string
	field    string
	span     Span
	parent   NodeID
	children []NodeID
	named    bool
	trivia   bool
}

// Tree owns every node of one parsed file version.
type Tree struct {
	language string
	source   []byte
	nodes    []node
	root     NodeID
	lines    []int // byte offset of each line start
	kinds    map[string]int
}

// Language returns the grammar identifier that produced the tree.
func (t *Tree) Language() string { return t.language }

// Source returns the source bytes the tree was parsed from. Callers must not
// modify the returned slice.
func (t *Tree) Source() []byte { return t.source }

// Root returns the root node.
func (t *Tree) Root() Node { return Node{t: t, id: t.root} }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return Node{}
	}
	return Node{t: t, id: id}
}

// HasKind reports whether at least one node of the given kind exists.
func (t *Tree) HasKind(kind string) bool {
	return t.kinds[kind] > 0
}

// KindCount returns how many nodes of the given kind the tree holds.
func (t *Tree) KindCount(kind string) int {
	return t.kinds[kind]
}

// Position converts a byte offset into a zero-based line/column pair.
func (t *Tree) Position(offset int) Point {
	lo, hi := 0, len(t.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.lines[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return Point{Line: lo, Column: offset - t.lines[lo]}
}

// Node is a handle to one node of a Tree. The zero value is the invalid node.
type Node struct {
	t  *Tree
	id NodeID
}

// IsValid reports whether the handle refers to a node.
func (n Node) IsValid() bool { return n.t != nil && n.id >= 0 }

// ID returns the node's stable index.
func (n Node) ID() NodeID { return n.id }

// Tree returns the owning tree.
func (n Node) Tree() *Tree { return n.t }

func (n Node) data() *node { return &n.t.nodes[n.id] }

// Kind returns the grammar node type.
func (n Node) Kind() string { return n.data().kind }

// Field returns the field name under which the parent holds this node, if any.
func (n Node) Field() string { return n.data().field }

// Span returns the node's byte range.
func (n Node) Span() Span { return n.data().span }

// IsNamed reports whether the grammar considers the node named (as opposed to
// anonymous punctuation or keywords).
func (n Node) IsNamed() bool { return n.data().named }

// IsTrivia reports whether the node is a comment or other extra.
func (n Node) IsTrivia() bool { return n.data().trivia }

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return len(n.data().children) == 0 }

// Text returns the exact source text covered by the node.
func (n Node) Text() string {
	s := n.data().span
	return string(n.t.source[s.Start:s.End])
}

// Bytes returns the source bytes covered by the node without copying.
func (n Node) Bytes() []byte {
	s := n.data().span
	return n.t.source[s.Start:s.End]
}

// Parent returns the parent node, or the invalid node for the root.
func (n Node) Parent() Node {
	p := n.data().parent
	if p == NoNode {
		return Node{}
	}
	return Node{t: n.t, id: p}
}

// ChildCount returns the number of children, trivia included.
func (n Node) ChildCount() int { return len(n.data().children) }

// Child returns the i-th child.
func (n Node) Child(i int) Node { return Node{t: n.t, id: n.data().children[i]} }

// Children returns all children in source order, trivia included.
func (n Node) Children() []Node {
	ids := n.data().children
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = Node{t: n.t, id: id}
	}
	return out
}

// SignificantChildren returns the children that are not trivia.
func (n Node) SignificantChildren() []Node {
	ids := n.data().children
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if !n.t.nodes[id].trivia {
			out = append(out, Node{t: n.t, id: id})
		}
	}
	return out
}

// ChildByField returns the first child held under the given field name.
func (n Node) ChildByField(field string) (Node, bool) {
	for _, id := range n.data().children {
		if n.t.nodes[id].field == field {
			return Node{t: n.t, id: id}, true
		}
	}
	return Node{}, false
}

// LeadingTrivia returns the source between the previous sibling (or the start
// of the parent) and the node.
func (n Node) LeadingTrivia() string {
	start := n.boundaryBefore()
	return string(n.t.source[start:n.Span().Start])
}

// TrailingTrivia returns the source between the node and the next sibling (or
// the end of the parent).
func (n Node) TrailingTrivia() string {
	end := n.boundaryAfter()
	return string(n.t.source[n.Span().End:end])
}

func (n Node) boundaryBefore() int {
	p := n.Parent()
	if !p.IsValid() {
		return 0
	}
	prev := p.Span().Start
	for _, id := range p.data().children {
		if id == n.id {
			break
		}
		prev = n.t.nodes[id].span.End
	}
	return prev
}

func (n Node) boundaryAfter() int {
	p := n.Parent()
	if !p.IsValid() {
		return len(n.t.source)
	}
	ids := p.data().children
	for i, id := range ids {
		if id == n.id && i+1 < len(ids) {
			return n.t.nodes[ids[i+1]].span.Start
		}
	}
	return p.Span().End
}

// StartPoint returns the zero-based position of the node start.
func (n Node) StartPoint() Point { return n.t.Position(n.Span().Start) }

// EndPoint returns the zero-based position of the node end.
func (n Node) EndPoint() Point { return n.t.Position(n.Span().End) }

// String renders the node as an S-expression, mostly for debugging and tests.
func (n Node) String() string {
	if !n.IsValid() {
		return "<invalid>"
	}
	var sb strings.Builder
	n.writeSexp(&sb)
	return sb.String()
}

func (n Node) writeSexp(sb *strings.Builder) {
	if n.IsLeaf() {
		if n.IsNamed() {
			fmt.Fprintf(sb, "(%s %q)", n.Kind(), n.Text())
		} else {
			fmt.Fprintf(sb, "%q", n.Text())
		}
		return
	}
	sb.WriteString("(")
	sb.WriteString(n.Kind())
	for _, c := range n.Children() {
		sb.WriteString(" ")
		if f := c.Field(); f != "" {
			sb.WriteString(f)
			sb.WriteString(": ")
		}
		c.writeSexp(sb)
	}
	sb.WriteString(")")
}
