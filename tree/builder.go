package tree

import (
	"errors"
	"fmt"
)

// ErrSpanInvariant is returned when a builder is given children whose spans
// overlap, go backwards, or leave the parent span.
var ErrSpanInvariant = errors.New("span invariant violated")

// Attrs describes one node handed to a Builder.
type Attrs struct {
	Kind   string
	Field  string
	Span   Span
	Named  bool
	Trivia bool
}

// Builder assembles a Tree bottom-up or top-down. Nodes are appended with Add
// and attached to a parent id; Finish validates the span invariant and freezes
// the tree.
type Builder struct {
	t    *Tree
	done bool
}

// NewBuilder starts a tree for the given language and source.
func NewBuilder(language string, source []byte) *Builder {
	return &Builder{t: &Tree{
		language: language,
		source:   source,
		root:     NoNode,
	}}
}

// Add appends a node under parent (NoNode for the root) and returns its id.
// Children must be added in source order.
func (b *Builder) Add(parent NodeID, a Attrs) NodeID {
	id := NodeID(len(b.t.nodes))
	b.t.nodes = append(b.t.nodes, node{
		kind:   a.Kind,
		field:  a.Field,
		span:   a.Span,
		parent: parent,
		named:  a.Named,
		trivia: a.Trivia,
	})
	if parent == NoNode {
		b.t.root = id
	} else {
		p := &b.t.nodes[parent]
		p.children = append(p.children, id)
	}
	return id
}

// SetSpan adjusts the span of an already added node. Grammars that only know a
// node's extent after visiting its children use it.
func (b *Builder) SetSpan(id NodeID, s Span) {
	b.t.nodes[id].span = s
}

// Finish validates the tree and returns it. The builder must not be used
// afterwards.
func (b *Builder) Finish() (*Tree, error) {
	if b.done {
		return nil, errors.New("builder already finished")
	}
	b.done = true
	t := b.t
	if t.root == NoNode {
		return nil, errors.New("tree has no root")
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	t.indexLines()
	t.kinds = make(map[string]int)
	for i := range t.nodes {
		t.kinds[t.nodes[i].kind]++
	}
	return t, nil
}

func (t *Tree) validate() error {
	for id := range t.nodes {
		n := &t.nodes[id]
		if n.span.Start < 0 || n.span.End < n.span.Start || n.span.End > len(t.source) {
			return fmt.Errorf("%w: node %d (%s) span %s outside source of %d bytes",
				ErrSpanInvariant, id, n.kind, n.span, len(t.source))
		}
		prevEnd := n.span.Start
		for i, c := range n.children {
			cs := t.nodes[c].span
			if !n.span.Contains(cs) {
				return fmt.Errorf("%w: child %d %s not inside parent %s %s",
					ErrSpanInvariant, c, cs, n.kind, n.span)
			}
			if cs.Start < prevEnd {
				return fmt.Errorf("%w: child %d of %s starts at %d before previous end %d",
					ErrSpanInvariant, i, n.kind, cs.Start, prevEnd)
			}
			prevEnd = cs.End
		}
	}
	return nil
}

func (t *Tree) indexLines() {
	t.lines = append(t.lines[:0], 0)
	for i, c := range t.source {
		if c == '\n' {
			t.lines = append(t.lines, i+1)
		}
	}
}
