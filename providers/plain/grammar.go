// Package plain is a dependency-free grammar for configuration and text files.
//
// It knows nothing about any particular language: source is split into words,
// numbers, strings, punctuation and comments, brackets nest into groups, and
// separators (`,` `;`, and newlines at the top level or inside braces) split
// groups into items. An item holding a single token collapses into that token.
//
//	listen(80, 443)  =>  (document (item (word) (group "(" (number) "," (number) ")")))
package plain

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/termfx/structq/providers"
	"github.com/termfx/structq/tree"
)

// Node kinds produced by the grammar.
const (
	KindDocument = "document"
	KindItem     = "item"
	KindGroup    = "group"
	KindWord     = "word"
	KindNumber   = "number"
	KindString   = "string"
	KindPunct    = "punct"
	KindComment  = "comment"
)

// Language is the grammar identifier.
const Language = "plain"

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// Grammar implements providers.Grammar.
type Grammar struct {
	extensions []string
	parses     atomic.Int64
}

// New creates the plain grammar. Without extensions it claims the usual
// configuration and text file suffixes.
func New(extensions ...string) *Grammar {
	if len(extensions) == 0 {
		extensions = []string{".conf", ".cfg", ".ini", ".txt", ".properties", ".env"}
	}
	return &Grammar{extensions: extensions}
}

// Language returns language identifier
func (g *Grammar) Language() string { return Language }

// Extensions returns supported file extensions
func (g *Grammar) Extensions() []string { return g.extensions }

// MetavariablePrefix is `$`: words may start with it, so snippets need no
// substitution.
func (g *Grammar) MetavariablePrefix() string { return "$" }

// ResolveKind returns the kind unchanged; the grammar has no aliases.
func (g *Grammar) ResolveKind(alias string) []string { return []string{alias} }

// Stats reports the number of parses. The grammar has no parser pool.
func (g *Grammar) Stats() providers.Stats {
	return providers.Stats{Parses: g.parses.Load()}
}

// Parse builds the tree for src.
func (g *Grammar) Parse(ctx context.Context, src []byte) (*tree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.parses.Add(1)

	tokens, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Language, err)
	}

	p := &parser{src: src, tokens: tokens}
	body, err := p.body(nil, true)
	if err != nil {
		return nil, err
	}

	doc := &pnode{kind: KindDocument, named: true, span: tree.Span{Start: 0, End: len(src)}, kids: body}
	b := tree.NewBuilder(Language, src)
	doc.emit(b, tree.NoNode)
	return b.Finish()
}

// ParseSnippet parses a snippet as a document and returns the innermost node
// spanning the trimmed snippet. The grammar has a single context.
func (g *Grammar) ParseSnippet(ctx context.Context, snippet string) ([]tree.Node, error) {
	body := strings.TrimSpace(snippet)
	if body == "" {
		return nil, fmt.Errorf("plain: empty snippet")
	}
	t, err := g.Parse(ctx, []byte(body))
	if err != nil {
		return nil, err
	}
	n, ok := tree.Innermost(t.Root(), tree.Span{Start: 0, End: len(body)})
	if !ok {
		return nil, fmt.Errorf("plain: no node spans snippet %q", body)
	}
	return []tree.Node{n}, nil
}

type pnode struct {
	kind   string
	span   tree.Span
	named  bool
	trivia bool
	kids   []*pnode
}

func (n *pnode) emit(b *tree.Builder, parent tree.NodeID) {
	id := b.Add(parent, tree.Attrs{Kind: n.kind, Span: n.span, Named: n.named, Trivia: n.trivia})
	for _, k := range n.kids {
		k.emit(b, id)
	}
}

type parser struct {
	src    []byte
	tokens []token
	pos    int
}

func (p *parser) at(tok token) byte { return p.src[tok.span.Start] }

func (p *parser) syntaxError(tok token, msg string) error {
	return &providers.SyntaxError{Language: Language, Line: tok.line, Column: tok.col, Kind: msg}
}

// body parses tokens up to the bracket closing open (nil at the top level) and
// returns the container's children.
func (p *parser) body(open *token, splitLines bool) ([]*pnode, error) {
	var out, cur []*pnode

	flush := func() {
		significant := 0
		for _, n := range cur {
			if !n.trivia {
				significant++
			}
		}
		if significant <= 1 {
			out = append(out, cur...)
		} else {
			out = append(out, &pnode{
				kind:  KindItem,
				named: true,
				span:  tree.Span{Start: cur[0].span.Start, End: cur[len(cur)-1].span.End},
				kids:  cur,
			})
		}
		cur = nil
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		switch tok.typ {
		case tokenClose:
			if open == nil {
				return nil, p.syntaxError(tok, "unbalanced closing bracket")
			}
			flush()
			return out, nil
		case tokenNewline:
			p.pos++
			if splitLines {
				flush()
			}
		case tokenSeparator:
			p.pos++
			flush()
			out = append(out, leaf(KindPunct, tok, false))
		case tokenOpen:
			p.pos++
			group, err := p.group(tok)
			if err != nil {
				return nil, err
			}
			cur = append(cur, group)
		case tokenComment:
			p.pos++
			c := leaf(KindComment, tok, true)
			c.trivia = true
			cur = append(cur, c)
		case tokenWord:
			p.pos++
			cur = append(cur, leaf(KindWord, tok, true))
		case tokenNumber:
			p.pos++
			cur = append(cur, leaf(KindNumber, tok, true))
		case tokenString:
			p.pos++
			cur = append(cur, leaf(KindString, tok, true))
		default:
			p.pos++
			cur = append(cur, leaf(KindPunct, tok, false))
		}
	}
	if open != nil {
		return nil, p.syntaxError(*open, "unclosed bracket")
	}
	flush()
	return out, nil
}

func (p *parser) group(open token) (*pnode, error) {
	opener := p.at(open)
	kids, err := p.body(&open, opener == '{')
	if err != nil {
		return nil, err
	}
	closeTok := p.tokens[p.pos]
	if p.at(closeTok) != closers[opener] {
		return nil, p.syntaxError(closeTok, "mismatched closing bracket")
	}
	p.pos++

	all := make([]*pnode, 0, len(kids)+2)
	all = append(all, leaf(KindPunct, open, false))
	all = append(all, kids...)
	all = append(all, leaf(KindPunct, closeTok, false))
	return &pnode{
		kind:  KindGroup,
		named: true,
		span:  tree.Span{Start: open.span.Start, End: closeTok.span.End},
		kids:  all,
	}, nil
}

func leaf(kind string, tok token, named bool) *pnode {
	return &pnode{kind: kind, span: tok.span, named: named}
}
