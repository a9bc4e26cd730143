package base

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/structq/providers"
	"github.com/termfx/structq/tree"
)

// MetavariablePrefix replaces `$` in snippets before they reach tree-sitter.
// It is a letter in every supported grammar, so `µX` parses as an identifier.
const MetavariablePrefix = "µ"

// ErrNoSnippetContext is returned when a snippet parses cleanly in none of the
// language's snippet contexts.
var ErrNoSnippetContext = errors.New("snippet does not parse in any context")

// SnippetContext wraps a snippet so that fragments such as expressions or
// struct fields parse as part of a complete file.
type SnippetContext struct {
	Prefix string
	Suffix string
}

// LanguageConfig defines language-specific behavior that must be implemented
type LanguageConfig interface {
	// Metadata
	Language() string
	Extensions() []string
	GetLanguage() *sitter.Language

	// Snippet contexts, tried in order.
	SnippetContexts() []SnippetContext

	// KindAliases maps colloquial names used in `$X:alias` constraints to
	// grammar node types.
	KindAliases() map[string][]string
}

// Option tunes a Provider.
type Option func(*Provider)

// AllowErrors keeps trees that contain ERROR or MISSING nodes instead of
// failing with a *providers.SyntaxError.
func AllowErrors(allow bool) Option {
	return func(p *Provider) { p.allowErrors = allow }
}

// Provider provides common functionality for all tree-sitter grammars
type Provider struct {
	config      LanguageConfig
	lang        *sitter.Language
	pool        sync.Pool
	allowErrors bool

	borrowed atomic.Int64
	returned atomic.Int64
	parses   atomic.Int64
}

// New creates a base provider with language-specific config
func New(config LanguageConfig, opts ...Option) *Provider {
	lang := config.GetLanguage()
	if lang == nil {
		panic(fmt.Sprintf("Failed to load %s language for tree-sitter", config.Language()))
	}

	p := &Provider{config: config, lang: lang}
	p.pool.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(lang)
		return parser
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns language identifier
func (p *Provider) Language() string {
	return p.config.Language()
}

// Extensions returns supported file extensions
func (p *Provider) Extensions() []string {
	return p.config.Extensions()
}

// MetavariablePrefix returns the identifier prefix snippets use for `$`.
func (p *Provider) MetavariablePrefix() string {
	return MetavariablePrefix
}

// ResolveKind expands a kind alias to grammar node types.
func (p *Provider) ResolveKind(alias string) []string {
	if kinds, ok := p.config.KindAliases()[alias]; ok {
		return kinds
	}
	return []string{alias}
}

// Stats reports parser pool usage.
func (p *Provider) Stats() providers.Stats {
	b, r := p.borrowed.Load(), p.returned.Load()
	return providers.Stats{
		BorrowCount: b,
		ReturnCount: r,
		Active:      b - r,
		Parses:      p.parses.Load(),
	}
}

// sitter.Parser is not safe for concurrent use, so each parse borrows one.
func (p *Provider) borrow() *sitter.Parser {
	p.borrowed.Add(1)
	return p.pool.Get().(*sitter.Parser)
}

func (p *Provider) giveBack(parser *sitter.Parser) {
	parser.Reset()
	p.pool.Put(parser)
	p.returned.Add(1)
}

// Parse parses src and copies the result into an immutable tree.
func (p *Provider) Parse(ctx context.Context, src []byte) (*tree.Tree, error) {
	return p.parse(ctx, src, p.allowErrors)
}

func (p *Provider) parse(ctx context.Context, src []byte, allowErrors bool) (*tree.Tree, error) {
	parser := p.borrow()
	defer p.giveBack(parser)

	st, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s source: %w", p.Language(), err)
	}
	if st == nil {
		return nil, fmt.Errorf("failed to parse %s source", p.Language())
	}
	defer st.Close()
	p.parses.Add(1)

	root := st.RootNode()
	if !allowErrors && root.HasError() {
		if serr := p.findError(root); serr != nil {
			return nil, serr
		}
		return nil, &providers.SyntaxError{Language: p.Language(), Line: 1, Column: 1, Kind: "ERROR"}
	}

	b := tree.NewBuilder(p.Language(), src)
	copyNode(b, tree.NoNode, root, "")
	t, err := b.Finish()
	if err != nil {
		return nil, fmt.Errorf("%s tree: %w", p.Language(), err)
	}
	return t, nil
}

func copyNode(b *tree.Builder, parent tree.NodeID, n *sitter.Node, field string) {
	id := b.Add(parent, tree.Attrs{
		Kind:   n.Type(),
		Field:  field,
		Span:   tree.Span{Start: int(n.StartByte()), End: int(n.EndByte())},
		Named:  n.IsNamed(),
		Trivia: n.IsExtra(),
	})
	for i := 0; i < int(n.ChildCount()); i++ {
		copyNode(b, id, n.Child(i), n.FieldNameForChild(i))
	}
}

// findError returns the first ERROR or MISSING node in source order.
func (p *Provider) findError(node *sitter.Node) *providers.SyntaxError {
	if node.Type() == "ERROR" || node.IsMissing() {
		kind := "ERROR"
		if node.IsMissing() {
			kind = "MISSING"
		}
		return &providers.SyntaxError{
			Language: p.Language(),
			Line:     int(node.StartPoint().Row) + 1,
			Column:   int(node.StartPoint().Column) + 1,
			Kind:     kind,
		}
	}
	if !node.HasError() {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if err := p.findError(node.Child(i)); err != nil {
			return err
		}
	}
	return nil
}

// ParseSnippet parses a snippet whose metavariables were already replaced by
// MetavariablePrefix. Every snippet context is tried in order; from each one
// that parses without errors, the innermost node spanning exactly the snippet
// is kept unless an earlier context already produced a node of that kind.
func (p *Provider) ParseSnippet(ctx context.Context, snippet string) ([]tree.Node, error) {
	body := strings.TrimSpace(snippet)
	if body == "" {
		return nil, fmt.Errorf("%s: empty snippet", p.Language())
	}
	var nodes []tree.Node
	kinds := make(map[string]bool)
	for _, sc := range p.config.SnippetContexts() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src := sc.Prefix + body + sc.Suffix
		t, err := p.parse(ctx, []byte(src), false)
		if err != nil {
			continue
		}
		span := tree.Span{Start: len(sc.Prefix), End: len(sc.Prefix) + len(body)}
		if n, ok := tree.Innermost(t.Root(), span); ok && !kinds[n.Kind()] {
			kinds[n.Kind()] = true
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w: %q", p.Language(), ErrNoSnippetContext, body)
	}
	return nodes, nil
}
