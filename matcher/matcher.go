// Package matcher runs compiled patterns against syntax trees.
//
// Matching is continuation-passing: every variant calls yield once per
// environment it can produce, and stops as soon as yield returns false. The
// public API wraps this in iter.Seq so that callers can range over results
// and break early.
package matcher

import (
	"iter"
	pathpkg "path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/termfx/structq/binding"
	"github.com/termfx/structq/pattern"
	"github.com/termfx/structq/tree"
)

// Mode selects how many environments FindAll reports per candidate node.
type Mode int

const (
	// ModeFirst reports the first environment per matching node.
	ModeFirst Mode = iota
	// ModeAll reports every environment.
	ModeAll
)

func (m Mode) String() string {
	if m == ModeAll {
		return "all"
	}
	return "first"
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithPath sets the file path seen by the filename predicate.
func WithPath(path string) Option {
	return func(m *Matcher) { m.path = filepath.ToSlash(path) }
}

// TriviaInsensitive controls whether back-references ignore comments and
// whitespace. It is on by default.
func TriviaInsensitive(on bool) Option {
	return func(m *Matcher) { m.triviaInsensitive = on }
}

// Matcher matches one compiled pattern. It holds no per-match state and is
// safe for concurrent use.
type Matcher struct {
	pattern           *pattern.Pattern
	path              string
	triviaInsensitive bool
}

// New creates a Matcher for p.
func New(p *pattern.Pattern, opts ...Option) *Matcher {
	m := &Matcher{pattern: p, triviaInsensitive: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Pattern returns the compiled pattern.
func (m *Matcher) Pattern() *pattern.Pattern { return m.pattern }

// Env returns an empty environment using the matcher's equality.
func (m *Matcher) Env() *binding.Env {
	if m.triviaInsensitive {
		return binding.Empty()
	}
	return binding.EmptyStrict()
}

// Match is shorthand for New(p).Match(n, env).
func Match(p *pattern.Pattern, n tree.Node, env *binding.Env) iter.Seq[*binding.Env] {
	return New(p).Match(n, env)
}

// Match yields every environment under which the pattern matches n, extending
// env. A nil env starts empty. The sequence is lazy and may be ranged over
// more than once.
func (m *Matcher) Match(n tree.Node, env *binding.Env) iter.Seq[*binding.Env] {
	if env == nil {
		env = m.Env()
	}
	return func(yield func(*binding.Env) bool) {
		m.match(m.pattern.Root, n, env, yield)
	}
}

// Result is one match found by FindAll.
type Result struct {
	Node tree.Node
	Env  *binding.Env
}

// FindAll is shorthand for New(p, opts...).FindAll(t, mode).
func FindAll(p *pattern.Pattern, t *tree.Tree, mode Mode, opts ...Option) iter.Seq[Result] {
	return New(p, opts...).FindAll(t, mode)
}

// FindAll tries every non-trivia node of t in pre-order, left to right.
func (m *Matcher) FindAll(t *tree.Tree, mode Mode) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for n := range tree.Walk(t.Root()) {
			for env := range m.Match(n, nil) {
				if !yield(Result{Node: n, Env: env}) {
					return
				}
				if mode == ModeFirst {
					break
				}
			}
		}
	}
}

type yieldFn = func(*binding.Env) bool

// match returns false when the consumer asked to stop.
func (m *Matcher) match(pn pattern.Node, n tree.Node, env *binding.Env, yield yieldFn) bool {
	switch p := pn.(type) {
	case *pattern.Literal:
		if n.Text() != p.Text || (p.Kind != "" && n.Kind() != p.Kind) {
			return true
		}
		return yield(env)

	case *pattern.Wildcard:
		return yield(env)

	case *pattern.Variable:
		if len(p.Kinds) > 0 && !slices.Contains(p.Kinds, n.Kind()) {
			return true
		}
		if p.Name == "_" {
			return yield(env)
		}
		next, ok := env.Bind(p.Name, binding.NodeValue{Node: n})
		if !ok {
			return true
		}
		return yield(next)

	case *pattern.Kind:
		if n.Kind() != p.Kind {
			return true
		}
		return m.sequence(p.Children.Elems, n.SignificantChildren(), n, env, yield)

	case *pattern.Sequence:
		return m.sequence(p.Elems, n.SignificantChildren(), n, env, yield)

	case *pattern.Rest:
		return true

	case *pattern.Alternation:
		for _, b := range p.Branches {
			if !m.match(b, n, env, yield) {
				return false
			}
		}
		return true

	case *pattern.Conjunction:
		return m.conjunction(p.Parts, n, env, yield)

	case *pattern.Negation:
		found := false
		m.match(p.Inner, n, env.PushScope(), func(*binding.Env) bool {
			found = true
			return false
		})
		if found {
			return true
		}
		return yield(env)

	case *pattern.Predicate:
		return m.predicate(p, n, env, yield)

	case *pattern.Text:
		// Only the innermost of nodes sharing a span is tried.
		if inner, ok := tree.Innermost(n, n.Span()); ok && inner.ID() != n.ID() {
			return true
		}
		return m.text(p, n.Text(), env, yield)

	case *pattern.Rewrite:
		return m.match(p.Inner, n, env, func(e *binding.Env) bool {
			return yield(e.WithEffect(binding.Effect{Node: n, Template: p.Template}))
		})
	}
	return true
}

func (m *Matcher) conjunction(parts []pattern.Node, n tree.Node, env *binding.Env, yield yieldFn) bool {
	if len(parts) == 0 {
		return yield(env)
	}
	return m.match(parts[0], n, env, func(e *binding.Env) bool {
		return m.conjunction(parts[1:], n, e, yield)
	})
}

// sequence matches elems against sibling nodes. Negations and predicates
// consume nothing and are checked against parent. A rest takes as many
// siblings as it can, then gives them back one at a time.
func (m *Matcher) sequence(elems []pattern.Node, kids []tree.Node, parent tree.Node, env *binding.Env, yield yieldFn) bool {
	if len(elems) == 0 {
		if len(kids) == 0 {
			return yield(env)
		}
		return true
	}
	if len(kids) < minWidth(elems) {
		return true
	}

	switch e := elems[0].(type) {
	case *pattern.Negation, *pattern.Predicate:
		if !parent.IsValid() {
			return true
		}
		return m.match(e, parent, env, func(next *binding.Env) bool {
			return m.sequence(elems[1:], kids, parent, next, yield)
		})

	case *pattern.Rest:
		need := minWidth(elems[1:])
		for take := len(kids) - need; take >= 0; take-- {
			next := env
			if e.Name != "" {
				var ok bool
				next, ok = env.Bind(e.Name, binding.ListValue{Nodes: slices.Clone(kids[:take])})
				if !ok {
					continue
				}
			}
			if !m.sequence(elems[1:], kids[take:], parent, next, yield) {
				return false
			}
		}
		return true

	default:
		return m.match(e, kids[0], env, func(next *binding.Env) bool {
			return m.sequence(elems[1:], kids[1:], parent, next, yield)
		})
	}
}

// minWidth counts the siblings elems need at least.
func minWidth(elems []pattern.Node) int {
	n := 0
	for _, e := range elems {
		switch e.(type) {
		case *pattern.Rest, *pattern.Negation, *pattern.Predicate:
		default:
			n++
		}
	}
	return n
}

func (m *Matcher) predicate(p *pattern.Predicate, n tree.Node, env *binding.Env, yield yieldFn) bool {
	switch p.Name {
	case pattern.PredContains:
		for d := range tree.Walk(n) {
			if !m.match(p.Pattern, d, env, yield) {
				return false
			}
		}
		return true

	case pattern.PredWithin:
		for a := range tree.Ancestors(n) {
			if !m.match(p.Pattern, a, env, yield) {
				return false
			}
		}
		return true

	case pattern.PredFilename:
		if MatchPath(p.Str, m.path) {
			return yield(env)
		}
		return true

	case pattern.PredRegex:
		if p.Regexp.MatchString(n.Text()) {
			return yield(env)
		}
		return true

	case pattern.PredKind:
		if slices.Contains(p.Kinds, n.Kind()) {
			return yield(env)
		}
		return true

	case pattern.PredNear:
		v, ok := env.Lookup(p.Var)
		if !ok {
			return true
		}
		span, ok := binding.SpanOf(v)
		if !ok {
			return true
		}
		line := n.Tree().Position(span.Start).Line
		dist := n.StartPoint().Line - line
		if dist < 0 {
			dist = -dist
		}
		if dist <= p.Int {
			return yield(env)
		}
		return true

	case pattern.PredMatch:
		v, ok := env.Lookup(p.Var)
		if !ok {
			return true
		}
		return m.matchValue(p.Pattern, v, env, yield)
	}
	return true
}

// text matches a Text pattern against source text and binds its variables
// as text.
func (m *Matcher) text(p *pattern.Text, src string, env *binding.Env, yield yieldFn) bool {
	sub := p.Regexp.FindStringSubmatch(src)
	if sub == nil {
		return true
	}
	next := env
	for i, name := range p.Vars {
		var ok bool
		if next, ok = next.Bind(name, binding.TextValue{Text: sub[i+1]}); !ok {
			return true
		}
	}
	return yield(next)
}

// matchValue matches a pattern against a bound value.
func (m *Matcher) matchValue(pn pattern.Node, v binding.Value, env *binding.Env, yield yieldFn) bool {
	switch v := v.(type) {
	case binding.NodeValue:
		if p, ok := pn.(*pattern.Text); ok {
			return m.text(p, v.Node.Text(), env, yield)
		}
		return m.match(pn, v.Node, env, yield)
	case binding.ListValue:
		if seq, ok := pn.(*pattern.Sequence); ok {
			parent := tree.Node{}
			if len(v.Nodes) > 0 {
				parent = v.Nodes[0].Parent()
			}
			return m.sequence(seq.Elems, v.Nodes, parent, env, yield)
		}
		if len(v.Nodes) == 1 {
			return m.match(pn, v.Nodes[0], env, yield)
		}
		return true
	case binding.TextValue:
		switch p := pn.(type) {
		case *pattern.Literal:
			if p.Text == v.Text {
				return yield(env)
			}
		case *pattern.Wildcard:
			return yield(env)
		case *pattern.Text:
			return m.text(p, v.Text, env, yield)
		case *pattern.Variable:
			if len(p.Kinds) > 0 {
				return true
			}
			if p.Name == "_" {
				return yield(env)
			}
			next, ok := env.Bind(p.Name, v)
			if ok {
				return yield(next)
			}
		}
	}
	return true
}

// MatchPath matches a filename glob against the full slash-separated path,
// or against the base name when the glob has no directory part.
func MatchPath(glob, path string) bool {
	if path == "" {
		return false
	}
	target := filepath.ToSlash(path)
	if !strings.Contains(glob, "/") {
		target = pathpkg.Base(target)
	}
	ok, err := doublestar.Match(glob, target)
	return err == nil && ok
}
