package pattern

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Node is one variant of the compiled pattern AST. The set of variants is
// closed; matchers switch on the concrete type.
type Node interface {
	String() string
	patternNode()
}

// Literal matches a node whose text equals Text and, when Kind is set, whose
// kind equals Kind.
type Literal struct {
	Text string
	Kind string
}

// Wildcard matches any single node without binding it.
type Wildcard struct{}

// Variable binds Name to the current node, or checks a back-reference when
// Name is already bound. Kinds, when non-empty, restricts the node kind.
type Variable struct {
	Name       string
	Constraint string
	Kinds      []string
}

// Sequence matches its elements against an ordered list of sibling nodes.
// At most one element is a Rest.
type Sequence struct {
	Elems []Node
}

// Rest captures zero or more siblings inside a Sequence; a named Rest binds
// them as a list.
type Rest struct {
	Name string
}

// Kind matches a node of the given kind whose significant children match
// Children. Snippets lower to Kind trees.
type Kind struct {
	Kind     string
	Children *Sequence
}

// Alternation tries branches in order.
type Alternation struct {
	Branches []Node
}

// Conjunction requires every part to match the same node, threading bindings
// from left to right.
type Conjunction struct {
	Parts []Node
}

// Negation succeeds, consuming and binding nothing, iff Inner has no match.
type Negation struct {
	Inner Node
}

// Predicate names a side condition evaluated against the current node and
// bindings. Only the fields used by the named predicate are set.
type Predicate struct {
	Name    string
	Pattern Node
	Var     string
	Str     string
	Int     int
	Kinds   []string
	Regexp  *regexp.Regexp
}

// Text matches a node by its source text. Fields must appear in order,
// separated by whitespace or by the text bound to Vars. Snippets that parse in
// none of the grammar's contexts compile to Text.
type Text struct {
	Source string
	Fields []string
	Vars   []string
	Regexp *regexp.Regexp
}

// Rewrite matches Inner and records an edit replacing the matched node with
// the rendered Template.
type Rewrite struct {
	Inner    Node
	Template *Template
}

func (*Literal) patternNode()     {}
func (*Wildcard) patternNode()    {}
func (*Variable) patternNode()    {}
func (*Sequence) patternNode()    {}
func (*Rest) patternNode()        {}
func (*Kind) patternNode()        {}
func (*Alternation) patternNode() {}
func (*Conjunction) patternNode() {}
func (*Negation) patternNode()    {}
func (*Predicate) patternNode()   {}
func (*Text) patternNode()        {}
func (*Rewrite) patternNode()     {}

func (n *Literal) String() string {
	if n.Kind == "" || n.Kind == n.Text {
		return strconv.Quote(n.Text)
	}
	return strconv.Quote(n.Text) + "@" + n.Kind
}

func (n *Wildcard) String() string { return "_" }

func (n *Variable) String() string {
	if n.Constraint != "" {
		return "$" + n.Name + ":" + n.Constraint
	}
	return "$" + n.Name
}

func (n *Sequence) String() string { return "[" + join(n.Elems) + "]" }

func (n *Rest) String() string { return "$..." + n.Name }

func (n *Kind) String() string { return n.Kind + n.Children.String() }

func (n *Alternation) String() string { return "or { " + join(n.Branches) + " }" }

func (n *Conjunction) String() string { return "and { " + join(n.Parts) + " }" }

func (n *Negation) String() string { return "not " + n.Inner.String() }

func (n *Predicate) String() string {
	switch n.Name {
	case PredMatch:
		return "$" + n.Var + " <: " + n.Pattern.String()
	case PredContains, PredWithin:
		return n.Name + "(" + n.Pattern.String() + ")"
	case PredNear:
		return n.Name + "($" + n.Var + ", " + strconv.Itoa(n.Int) + ")"
	default:
		return n.Name + "(" + strconv.Quote(n.Str) + ")"
	}
}

func (n *Text) String() string { return "text(" + strconv.Quote(n.Source) + ")" }

func (n *Rewrite) String() string { return n.Inner.String() + " => " + n.Template.String() }

func join(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

// TemplatePart is either literal text or, when Var is set, a variable
// reference.
type TemplatePart struct {
	Text string
	Var  string
}

// Template is the right-hand side of a rewrite.
type Template struct {
	Parts []TemplatePart
}

// Variables returns the variables the template references, in order of first
// use.
func (t *Template) Variables() []string {
	var vars []string
	for _, p := range t.Parts {
		if p.Var != "" && !slices.Contains(vars, p.Var) {
			vars = append(vars, p.Var)
		}
	}
	return vars
}

func (t *Template) String() string {
	var sb strings.Builder
	for _, p := range t.Parts {
		if p.Var != "" {
			sb.WriteString("${" + p.Var + "}")
			continue
		}
		sb.WriteString(strings.NewReplacer("`", "\\`", "$", "\\$").Replace(p.Text))
	}
	return "`" + sb.String() + "`"
}

// Walk calls fn for n and every node below it, depth-first. fn receives
// whether the node sits under a Negation. Returning false skips the subtree.
func Walk(n Node, fn func(n Node, negated bool) bool) {
	walk(n, false, fn)
}

func walk(n Node, negated bool, fn func(Node, bool) bool) {
	if n == nil || !fn(n, negated) {
		return
	}
	switch n := n.(type) {
	case *Sequence:
		for _, e := range n.Elems {
			walk(e, negated, fn)
		}
	case *Kind:
		walk(n.Children, negated, fn)
	case *Alternation:
		for _, b := range n.Branches {
			walk(b, negated, fn)
		}
	case *Conjunction:
		for _, p := range n.Parts {
			walk(p, negated, fn)
		}
	case *Negation:
		walk(n.Inner, true, fn)
	case *Predicate:
		if n.Pattern != nil {
			walk(n.Pattern, negated, fn)
		}
	case *Rewrite:
		walk(n.Inner, negated, fn)
	}
}
