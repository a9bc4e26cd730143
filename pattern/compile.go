// Package pattern compiles the structural query language into an immutable
// pattern AST.
//
// A pattern is a clause, optionally constrained with `where { ... }` and
// optionally rewritten with `=> template`:
//
//	`fmt.Println($...ARGS)` where { not contains(`err`) } => `log.Print($...ARGS)`
//
// Backtick snippets are parsed with the target grammar; `$NAME` binds a node,
// `$_` matches any node, `$...NAME` captures a run of siblings. A snippet
// that parses in several grammar contexts matches any of those parses; one
// that parses in none matches node text instead.
//
// String patterns are literal: `"a$b"` matches the text a$b. Rewrite
// templates interpolate `$NAME` and `${NAME}` whether they are written as
// snippets or strings; `\$` produces a literal dollar sign in both.
package pattern

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Predicate names.
const (
	PredContains = "contains"
	PredWithin   = "within"
	PredFilename = "filename"
	PredRegex    = "regex"
	PredNear     = "near"
	PredMatch    = "match"
	PredKind     = "kind"
)

type argKind int

const (
	argPattern argKind = iota
	argString
	argVar
	argInt
)

var predicateArgs = map[string][]argKind{
	PredContains: {argPattern},
	PredWithin:   {argPattern},
	PredFilename: {argString},
	PredRegex:    {argString},
	PredNear:     {argVar, argInt},
	PredMatch:    {argVar, argPattern},
	PredKind:     {argString},
}

// Options tune compilation.
type Options struct {
	// StrictLint turns lint warnings into compile errors.
	StrictLint bool
}

// Pattern is a compiled query. It is immutable and safe for concurrent use.
type Pattern struct {
	Root     Node
	Source   string
	Language string
	Warnings []Warning

	vars       []string
	hasRewrite bool
}

// Variables returns the names bound by the pattern outside any negation,
// sorted.
func (p *Pattern) Variables() []string { return slices.Clone(p.vars) }

// HasRewrite reports whether the pattern contains a rewrite.
func (p *Pattern) HasRewrite() bool { return p.hasRewrite }

// String returns the canonical form of the compiled pattern.
func (p *Pattern) String() string { return p.Root.String() }

// Compile compiles src. The grammar is only needed for snippets and may be
// nil for grammar-free patterns.
func Compile(src string, g SnippetGrammar, opts Options) (*Pattern, error) {
	return CompileContext(context.Background(), src, g, opts)
}

// CompileContext is Compile with a context for snippet parsing.
func CompileContext(ctx context.Context, src string, g SnippetGrammar, opts Options) (*Pattern, error) {
	syn, err := parse(src)
	if err != nil {
		return nil, err
	}

	c := &compiler{ctx: ctx, g: g, pos: make(map[Node]Position)}
	root, err := c.lower(syn)
	if err != nil {
		return nil, err
	}

	v := &validator{pos: c.pos}
	if err := v.validate(root); err != nil {
		return nil, err
	}
	warnings := append(c.warnings, v.warnings...)
	if opts.StrictLint && len(warnings) > 0 {
		w := warnings[0]
		return nil, &CompileError{Code: w.Code, Pos: w.Pos, Msg: w.Msg}
	}

	p := &Pattern{
		Root:     root,
		Source:   src,
		Warnings: warnings,
		vars:     v.boundNames(),
	}
	if g != nil {
		p.Language = g.Language()
	}
	Walk(root, func(n Node, _ bool) bool {
		if _, ok := n.(*Rewrite); ok {
			p.hasRewrite = true
		}
		return true
	})
	return p, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// package-level patterns.
func MustCompile(src string, g SnippetGrammar) *Pattern {
	p, err := Compile(src, g, Options{})
	if err != nil {
		panic(err)
	}
	return p
}

type compiler struct {
	ctx      context.Context
	g        SnippetGrammar
	pos      map[Node]Position
	warnings []Warning
}

func (c *compiler) at(n Node, pos Position) Node {
	c.pos[n] = pos
	return n
}

func (c *compiler) lower(s *syntax) (Node, error) {
	switch s.kind {
	case synSnippet:
		n, err := c.snippet(s)
		if err != nil {
			return nil, err
		}
		return c.at(n, s.pos), nil
	case synString:
		return c.at(&Literal{Text: unescape(s.text)}, s.pos), nil
	case synWildcard:
		return c.at(&Wildcard{}, s.pos), nil
	case synRest:
		return c.at(&Rest{Name: s.text}, s.pos), nil
	case synInt:
		return nil, errorf(ECSyntax, s.pos, "integer %s is only valid as a predicate argument", s.text)
	case synVar:
		return c.variable(s), nil
	case synOr, synAnd, synList, synWhere:
		parts, err := c.lowerAll(s.kids)
		if err != nil {
			return nil, err
		}
		switch s.kind {
		case synOr:
			return c.at(&Alternation{Branches: parts}, s.pos), nil
		case synList:
			return c.at(&Sequence{Elems: parts}, s.pos), nil
		default:
			return c.at(&Conjunction{Parts: parts}, s.pos), nil
		}
	case synNot:
		inner, err := c.lower(s.kids[0])
		if err != nil {
			return nil, err
		}
		return c.at(&Negation{Inner: inner}, s.pos), nil
	case synMatch:
		inner, err := c.lower(s.kids[0])
		if err != nil {
			return nil, err
		}
		return c.at(&Predicate{Name: PredMatch, Var: s.text, Pattern: inner}, s.pos), nil
	case synCall:
		return c.predicate(s)
	case synRewrite:
		inner, err := c.lower(s.kids[0])
		if err != nil {
			return nil, err
		}
		tmpl, err := parseTemplate(s.tmpl.text, s.tmpl.pos)
		if err != nil {
			return nil, err
		}
		return c.at(&Rewrite{Inner: inner, Template: tmpl}, s.pos), nil
	}
	return nil, errorf(ECSyntax, s.pos, "unsupported construct")
}

func (c *compiler) lowerAll(kids []*syntax) ([]Node, error) {
	out := make([]Node, 0, len(kids))
	for _, k := range kids {
		n, err := c.lower(k)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (c *compiler) variable(s *syntax) Node {
	if s.text == "_" && s.constraint == "" {
		return c.at(&Wildcard{}, s.pos)
	}
	v := &Variable{Name: s.text, Constraint: s.constraint}
	if s.constraint != "" {
		v.Kinds = c.resolveKind(s.constraint)
	}
	return c.at(v, s.pos)
}

func (c *compiler) resolveKind(alias string) []string {
	if c.g == nil {
		return []string{alias}
	}
	return c.g.ResolveKind(alias)
}

func (c *compiler) snippet(s *syntax) (Node, error) {
	if n, ok := exactSnippet(s.text); ok {
		return n, nil
	}
	if c.g == nil {
		return nil, errorf(ECSnippet, s.pos, "snippets need a target language")
	}
	if strings.TrimSpace(s.text) == "" {
		return nil, errorf(ECSnippet, s.pos, "empty snippet")
	}
	ex := expandSnippet(s.text, c.g.MetavariablePrefix())
	if ex.bracketed {
		return nil, errorf(ECSnippet, s.pos, "bracketed metavariables are only allowed on the rewrite side")
	}

	nodes, err := c.g.ParseSnippet(c.ctx, ex.text)
	if err != nil {
		if ctxErr := c.ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return c.textSnippet(s, err)
	}

	var branches []Node
	seen := make(map[string]bool)
	for _, n := range nodes {
		lowered := lowerTree(n, c.g.MetavariablePrefix())
		if key := lowered.String(); !seen[key] {
			seen[key] = true
			branches = append(branches, lowered)
		}
	}
	var root Node = &Alternation{Branches: branches}
	if len(branches) == 1 {
		root = branches[0]
	}
	Walk(root, func(n Node, _ bool) bool {
		c.pos[n] = s.pos
		return true
	})
	return root, nil
}

// textSnippet lowers a snippet the grammar rejected in every context to a
// Text node and records a warning.
func (c *compiler) textSnippet(s *syntax, parseErr error) (Node, error) {
	t, err := textSnippet(s.text)
	if err != nil {
		return nil, &CompileError{Code: ECSnippet, Pos: s.pos, Msg: "snippet does not parse as " + c.g.Language() + ": " + parseErr.Error(), Err: parseErr}
	}
	c.warnings = append(c.warnings, Warning{
		Code: ECSnippet,
		Pos:  s.pos,
		Msg:  "snippet does not parse as " + c.g.Language() + ", matching node text instead: " + parseErr.Error(),
	})
	return t, nil
}

func (c *compiler) predicate(s *syntax) (Node, error) {
	sig, ok := predicateArgs[s.text]
	if !ok {
		return nil, errorf(ECSyntax, s.pos, "unknown predicate %q", s.text)
	}
	if len(s.kids) != len(sig) {
		return nil, errorf(ECPredicateArity, s.pos, "%s expects %d argument(s), got %d", s.text, len(sig), len(s.kids))
	}

	p := &Predicate{Name: s.text}
	for i, want := range sig {
		arg := s.kids[i]
		switch want {
		case argPattern:
			inner, err := c.lower(arg)
			if err != nil {
				return nil, err
			}
			p.Pattern = inner
		case argString:
			if arg.kind != synString {
				return nil, errorf(ECPredicateArgument, arg.pos, "%s argument %d must be a string", s.text, i+1)
			}
			p.Str = unescape(arg.text)
		case argVar:
			if arg.kind != synVar || arg.text == "_" || arg.constraint != "" {
				return nil, errorf(ECPredicateArgument, arg.pos, "%s argument %d must be a variable", s.text, i+1)
			}
			p.Var = arg.text
		case argInt:
			if arg.kind != synInt {
				return nil, errorf(ECPredicateArgument, arg.pos, "%s argument %d must be an integer", s.text, i+1)
			}
			n, err := strconv.Atoi(arg.text)
			if err != nil || n < 0 {
				return nil, errorf(ECPredicateArgument, arg.pos, "%s argument %d must be a non-negative integer", s.text, i+1)
			}
			p.Int = n
		}
	}

	switch p.Name {
	case PredRegex:
		re, err := regexp.Compile(p.Str)
		if err != nil {
			return nil, &CompileError{Code: ECPredicateArgument, Pos: s.pos, Msg: "invalid regex: " + err.Error(), Err: err}
		}
		p.Regexp = re
	case PredFilename:
		if !doublestar.ValidatePattern(p.Str) {
			return nil, &CompileError{Code: ECPredicateArgument, Pos: s.pos, Msg: "invalid glob " + strconv.Quote(p.Str), Err: doublestar.ErrBadPattern}
		}
	case PredKind:
		if p.Str == "" {
			return nil, errorf(ECPredicateArgument, s.pos, "kind must not be empty")
		}
		p.Kinds = c.resolveKind(p.Str)
	}
	return c.at(p, s.pos), nil
}

// unescape processes the escapes allowed in string patterns. Dollar signs
// are plain text here; templates are split by parseTemplate instead.
func unescape(raw string) string {
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 == len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case '$', '^', '`', '"', '\\':
			sb.WriteByte(raw[i])
		default:
			sb.WriteByte('\\')
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

// boundNames lists variables bound outside negations.
func (v *validator) boundNames() []string {
	names := make([]string, 0, len(v.bound))
	for name := range v.bound {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsCompileError reports whether err is a *CompileError with the given code.
func IsCompileError(err error, code ErrorCode) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Code == code
}
