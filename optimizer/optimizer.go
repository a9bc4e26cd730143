// Package optimizer derives cheap file-level prefilters from compiled
// patterns.
//
// A Predicate is a formula over facts that any matching file must satisfy:
// the path matches a glob, the content contains a string, the tree holds a
// node kind. Each check answers No or Maybe; No is only returned when no
// match is possible, so skipping on No never loses results.
package optimizer

import (
	"bytes"
	"slices"
	"strconv"
	"strings"

	"github.com/termfx/structq/matcher"
	"github.com/termfx/structq/pattern"
	"github.com/termfx/structq/tree"
)

// Op is the operator of a formula node.
type Op int

const (
	OpTrue Op = iota
	OpAll
	OpAny
	OpSubstring
	OpKind
	OpPathGlob
)

// Result is the answer of a check.
type Result int

const (
	No Result = iota
	Maybe
)

func (r Result) String() string {
	if r == No {
		return "no"
	}
	return "maybe"
}

// Predicate is a requirement formula.
type Predicate struct {
	Op       Op
	Text     string
	Kinds    []string
	Children []*Predicate
}

// True is the formula that never excludes anything.
func True() *Predicate { return &Predicate{Op: OpTrue} }

// Derive extracts the requirements of p from its match-side nodes. Nodes
// under a negation contribute nothing.
func Derive(p *pattern.Pattern) *Predicate {
	return simplify(derive(p.Root))
}

func derive(n pattern.Node) *Predicate {
	switch n := n.(type) {
	case *pattern.Literal:
		f := &Predicate{Op: OpSubstring, Text: n.Text}
		if n.Kind == "" {
			return f
		}
		return all(f, &Predicate{Op: OpKind, Kinds: []string{n.Kind}})
	case *pattern.Variable:
		if len(n.Kinds) == 0 {
			return True()
		}
		return &Predicate{Op: OpKind, Kinds: slices.Clone(n.Kinds)}
	case *pattern.Kind:
		parts := []*Predicate{{Op: OpKind, Kinds: []string{n.Kind}}}
		for _, e := range n.Children.Elems {
			parts = append(parts, derive(e))
		}
		return all(parts...)
	case *pattern.Sequence:
		parts := make([]*Predicate, 0, len(n.Elems))
		for _, e := range n.Elems {
			parts = append(parts, derive(e))
		}
		return all(parts...)
	case *pattern.Alternation:
		parts := make([]*Predicate, 0, len(n.Branches))
		for _, b := range n.Branches {
			parts = append(parts, derive(b))
		}
		return &Predicate{Op: OpAny, Children: parts}
	case *pattern.Conjunction:
		parts := make([]*Predicate, 0, len(n.Parts))
		for _, p := range n.Parts {
			parts = append(parts, derive(p))
		}
		return all(parts...)
	case *pattern.Text:
		parts := make([]*Predicate, 0, len(n.Fields))
		for _, f := range n.Fields {
			parts = append(parts, &Predicate{Op: OpSubstring, Text: f})
		}
		return all(parts...)
	case *pattern.Rewrite:
		return derive(n.Inner)
	case *pattern.Predicate:
		switch n.Name {
		case pattern.PredContains, pattern.PredWithin, pattern.PredMatch:
			return derive(n.Pattern)
		case pattern.PredFilename:
			return &Predicate{Op: OpPathGlob, Text: n.Str}
		case pattern.PredKind:
			return &Predicate{Op: OpKind, Kinds: slices.Clone(n.Kinds)}
		}
	}
	// Wildcard, Rest, Negation, regex and near constrain nothing at file level.
	return True()
}

func all(parts ...*Predicate) *Predicate {
	return &Predicate{Op: OpAll, Children: parts}
}

// simplify flattens nested All/Any, drops True from All, and collapses
// single-child and empty combinators.
func simplify(f *Predicate) *Predicate {
	if f.Op != OpAll && f.Op != OpAny {
		return f
	}
	var kids []*Predicate
	for _, c := range f.Children {
		c = simplify(c)
		switch {
		case c.Op == f.Op:
			kids = append(kids, c.Children...)
		case c.Op == OpTrue && f.Op == OpAll:
		case c.Op == OpTrue && f.Op == OpAny:
			return True()
		default:
			if !slices.ContainsFunc(kids, c.equal) {
				kids = append(kids, c)
			}
		}
	}
	switch len(kids) {
	case 0:
		return True()
	case 1:
		return kids[0]
	}
	return &Predicate{Op: f.Op, Children: kids}
}

func (f *Predicate) equal(o *Predicate) bool { return f.Describe() == o.Describe() }

// IsTrivial reports whether the formula can never exclude a file.
func (f *Predicate) IsTrivial() bool { return f.Op == OpTrue }

// CheckPath evaluates path globs; everything else is unknown.
func (f *Predicate) CheckPath(path string) Result {
	return f.eval(func(leaf *Predicate) Result {
		if leaf.Op == OpPathGlob {
			return answer(matcher.MatchPath(leaf.Text, path))
		}
		return Maybe
	})
}

// CheckContent evaluates path globs and substrings.
func (f *Predicate) CheckContent(path string, content []byte) Result {
	return f.eval(func(leaf *Predicate) Result {
		switch leaf.Op {
		case OpPathGlob:
			return answer(matcher.MatchPath(leaf.Text, path))
		case OpSubstring:
			return answer(bytes.Contains(content, []byte(leaf.Text)))
		}
		return Maybe
	})
}

// CheckTree evaluates node kinds and substrings against a parsed tree.
func (f *Predicate) CheckTree(t *tree.Tree) Result {
	return f.eval(func(leaf *Predicate) Result {
		switch leaf.Op {
		case OpKind:
			return answer(slices.ContainsFunc(leaf.Kinds, t.HasKind))
		case OpSubstring:
			return answer(bytes.Contains(t.Source(), []byte(leaf.Text)))
		}
		return Maybe
	})
}

func answer(ok bool) Result {
	if ok {
		return Maybe
	}
	return No
}

func (f *Predicate) eval(leaf func(*Predicate) Result) Result {
	switch f.Op {
	case OpTrue:
		return Maybe
	case OpAll:
		for _, c := range f.Children {
			if c.eval(leaf) == No {
				return No
			}
		}
		return Maybe
	case OpAny:
		for _, c := range f.Children {
			if c.eval(leaf) == Maybe {
				return Maybe
			}
		}
		return No
	}
	return leaf(f)
}

// Describe renders the formula, e.g. `all(substring("foo"), kind(call))`.
func (f *Predicate) Describe() string {
	switch f.Op {
	case OpTrue:
		return "true"
	case OpSubstring:
		return "substring(" + strconv.Quote(f.Text) + ")"
	case OpPathGlob:
		return "path(" + strconv.Quote(f.Text) + ")"
	case OpKind:
		return "kind(" + strings.Join(f.Kinds, "|") + ")"
	}
	parts := make([]string, len(f.Children))
	for i, c := range f.Children {
		parts[i] = c.Describe()
	}
	name := "all"
	if f.Op == OpAny {
		name = "any"
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

func (f *Predicate) String() string { return f.Describe() }
