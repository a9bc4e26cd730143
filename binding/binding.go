// Package binding holds metavariable bindings produced while matching.
//
// An Env is persistent: every operation returns a new environment sharing
// structure with its parent, so alternative match branches never observe each
// other's bindings.
package binding

import (
	"slices"
	"strings"

	"github.com/termfx/structq/pattern"
	"github.com/termfx/structq/tree"
)

// Value is what a variable is bound to: a node, a list of sibling nodes, or
// plain text.
type Value interface {
	String() string
	isValue()
}

// NodeValue binds a single node.
type NodeValue struct{ Node tree.Node }

// ListValue binds a run of siblings captured by a rest.
type ListValue struct{ Nodes []tree.Node }

// TextValue binds literal text.
type TextValue struct{ Text string }

func (NodeValue) isValue() {}
func (ListValue) isValue() {}
func (TextValue) isValue() {}

func (v NodeValue) String() string { return v.Node.Text() }

func (v ListValue) String() string {
	if len(v.Nodes) == 0 {
		return ""
	}
	src := v.Nodes[0].Tree().Source()
	return string(src[v.Nodes[0].Span().Start:v.Nodes[len(v.Nodes)-1].Span().End])
}

func (v TextValue) String() string { return v.Text }

// SpanOf returns the source range a value covers. A list covers its first
// node's start to its last node's end; text and empty lists have no span.
func SpanOf(v Value) (tree.Span, bool) {
	switch v := v.(type) {
	case NodeValue:
		return v.Node.Span(), true
	case ListValue:
		if len(v.Nodes) == 0 {
			return tree.Span{}, false
		}
		return tree.Span{Start: v.Nodes[0].Span().Start, End: v.Nodes[len(v.Nodes)-1].Span().End}, true
	}
	return tree.Span{}, false
}

// Equal compares two values for back-reference checks. Nodes compare
// structurally, lists element-wise, and text against text or a node's text.
func Equal(a, b Value, triviaInsensitive bool) bool {
	switch a := a.(type) {
	case NodeValue:
		switch b := b.(type) {
		case NodeValue:
			return tree.Equal(a.Node, b.Node, triviaInsensitive)
		case ListValue:
			return len(b.Nodes) == 1 && tree.Equal(a.Node, b.Nodes[0], triviaInsensitive)
		case TextValue:
			return a.Node.Text() == b.Text
		}
	case ListValue:
		switch b := b.(type) {
		case ListValue:
			return slices.EqualFunc(a.Nodes, b.Nodes, func(x, y tree.Node) bool {
				return tree.Equal(x, y, triviaInsensitive)
			})
		case NodeValue:
			return Equal(b, a, triviaInsensitive)
		case TextValue:
			return a.String() == b.Text
		}
	case TextValue:
		if b, ok := b.(TextValue); ok {
			return a.Text == b.Text
		}
		return Equal(b, a, triviaInsensitive)
	}
	return false
}

// Effect is a rewrite recorded during a match: replace Node with the rendered
// Template.
type Effect struct {
	Node     tree.Node
	Template *pattern.Template
}

// Bindings is the materialized view of an environment.
type Bindings map[string]Value

type entry struct {
	name  string
	value Value
	next  *entry
}

type effect struct {
	Effect
	next *effect
}

type scope struct {
	head    *entry
	effects *effect
	next    *scope
}

// Env is an immutable set of bindings plus the effects recorded so far.
// The zero value is not usable; start from Empty.
type Env struct {
	head              *entry
	effects           *effect
	scopes            *scope
	triviaInsensitive bool
}

// Empty returns an environment without bindings. Back-references compare
// nodes ignoring trivia.
func Empty() *Env { return &Env{triviaInsensitive: true} }

// EmptyStrict returns an environment whose back-references compare nodes
// including comments and whitespace.
func EmptyStrict() *Env { return &Env{} }

// TriviaInsensitive reports how back-references compare nodes.
func (e *Env) TriviaInsensitive() bool { return e.triviaInsensitive }

func (e *Env) with() *Env {
	c := *e
	return &c
}

// Lookup returns the value bound to name.
func (e *Env) Lookup(name string) (Value, bool) {
	for en := e.head; en != nil; en = en.next {
		if en.name == name {
			return en.value, true
		}
	}
	return nil, false
}

// Bind binds name to v. When name is already bound the existing value must be
// equal to v; otherwise Bind reports false and the env is unusable.
func (e *Env) Bind(name string, v Value) (*Env, bool) {
	if prev, ok := e.Lookup(name); ok {
		if !Equal(prev, v, e.triviaInsensitive) {
			return nil, false
		}
		return e, true
	}
	out := e.with()
	out.head = &entry{name: name, value: v, next: e.head}
	return out, true
}

// Merge adds other's bindings and effects to e, failing on any conflicting
// binding.
func (e *Env) Merge(other *Env) (*Env, bool) {
	out := e
	var pending []*entry
	for en := other.head; en != nil; en = en.next {
		pending = append(pending, en)
	}
	for i := len(pending) - 1; i >= 0; i-- {
		var ok bool
		if out, ok = out.Bind(pending[i].name, pending[i].value); !ok {
			return nil, false
		}
	}
	for _, eff := range other.Effects() {
		out = out.WithEffect(eff)
	}
	return out, true
}

// PushScope marks the current state. Bindings and effects added afterwards
// are discarded by the matching PopScope.
func (e *Env) PushScope() *Env {
	out := e.with()
	out.scopes = &scope{head: e.head, effects: e.effects, next: e.scopes}
	return out
}

// PopScope restores the state saved by the last PushScope. Without an open
// scope it returns e.
func (e *Env) PopScope() *Env {
	if e.scopes == nil {
		return e
	}
	out := e.with()
	out.head = e.scopes.head
	out.effects = e.scopes.effects
	out.scopes = e.scopes.next
	return out
}

// Depth returns the number of open scopes.
func (e *Env) Depth() int {
	n := 0
	for s := e.scopes; s != nil; s = s.next {
		n++
	}
	return n
}

// Names returns the bound names, sorted.
func (e *Env) Names() []string {
	var names []string
	for en := e.head; en != nil; en = en.next {
		if !slices.Contains(names, en.name) {
			names = append(names, en.name)
		}
	}
	slices.Sort(names)
	return names
}

// Len returns the number of bindings.
func (e *Env) Len() int {
	n := 0
	for en := e.head; en != nil; en = en.next {
		n++
	}
	return n
}

// Materialize copies the bindings into a map.
func (e *Env) Materialize() Bindings {
	out := make(Bindings)
	for en := e.head; en != nil; en = en.next {
		if _, ok := out[en.name]; !ok {
			out[en.name] = en.value
		}
	}
	return out
}

// WithEffect records a rewrite.
func (e *Env) WithEffect(eff Effect) *Env {
	out := e.with()
	out.effects = &effect{Effect: eff, next: e.effects}
	return out
}

// Effects returns the recorded rewrites, oldest first.
func (e *Env) Effects() []Effect {
	var out []Effect
	for ef := e.effects; ef != nil; ef = ef.next {
		out = append(out, ef.Effect)
	}
	slices.Reverse(out)
	return out
}

// String renders the bindings as `{A=text, B=text}` for logs and tests.
func (e *Env) String() string {
	b := e.Materialize()
	parts := make([]string, 0, len(b))
	for _, name := range e.Names() {
		parts = append(parts, name+"="+b[name].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
