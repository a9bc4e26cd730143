package pattern

// synKind tags the concrete syntax produced by the parser before lowering.
type synKind int

const (
	synSnippet synKind = iota
	synString
	synVar
	synRest
	synWildcard
	synInt
	synOr
	synAnd
	synNot
	synList
	synCall
	synMatch
	synWhere
	synRewrite
)

// syntax is one node of the concrete syntax tree.
type syntax struct {
	kind       synKind
	pos        Position
	text       string
	constraint string
	kids       []*syntax
	tmpl       *syntax
}

type parser struct {
	tokens []Token
	pos    int
}

// parse turns pattern source into concrete syntax.
func parse(src string) (*syntax, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.clause()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenEOF); err != nil {
		return nil, err
	}
	return root, nil
}

func (p *parser) peek() Token { return p.tokens[p.pos] }

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ TokenType) (Token, error) {
	tok := p.next()
	if tok.Type != typ {
		return tok, unexpected(tok, typ.String())
	}
	return tok, nil
}

func unexpected(tok Token, want string) *CompileError {
	got := tok.Type.String()
	if tok.Value != "" && tok.Type != TokenSnippet && tok.Type != TokenString {
		got += " " + tok.Value
	}
	return errorf(ECSyntax, tok.Pos, "expected %s, found %s", want, got)
}

// clause := primary ( "where" "{" clause,... "}" )? ( "=>" template )?
func (p *parser) clause() (*syntax, error) {
	prim, err := p.primary()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.Type == TokenIdent && tok.Value == "where" {
		p.next()
		if _, err := p.expect(TokenLBrace); err != nil {
			return nil, err
		}
		conds, err := p.list(TokenRBrace, false)
		if err != nil {
			return nil, err
		}
		prim = &syntax{kind: synWhere, pos: tok.Pos, kids: append([]*syntax{prim}, conds...)}
	}

	if tok := p.peek(); tok.Type == TokenArrow {
		p.next()
		tmpl, err := p.template()
		if err != nil {
			return nil, err
		}
		prim = &syntax{kind: synRewrite, pos: tok.Pos, kids: []*syntax{prim}, tmpl: tmpl}
	}
	return prim, nil
}

// list parses comma separated clauses up to and including closer. A trailing
// comma is accepted.
func (p *parser) list(closer TokenType, allowEmpty bool) ([]*syntax, error) {
	var items []*syntax
	for {
		if p.peek().Type == closer {
			tok := p.next()
			if len(items) == 0 && !allowEmpty {
				return nil, errorf(ECSyntax, tok.Pos, "empty list")
			}
			return items, nil
		}
		item, err := p.clause()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		switch tok := p.peek(); tok.Type {
		case TokenComma:
			p.next()
		case closer:
		default:
			return nil, unexpected(tok, "',' or "+closer.String())
		}
	}
}

func (p *parser) template() (*syntax, error) {
	tok := p.next()
	switch tok.Type {
	case TokenSnippet:
		return &syntax{kind: synSnippet, pos: tok.Pos, text: tok.Value}, nil
	case TokenString:
		return &syntax{kind: synString, pos: tok.Pos, text: tok.Value}, nil
	default:
		return nil, unexpected(tok, "rewrite template")
	}
}

func (p *parser) primary() (*syntax, error) {
	tok := p.next()
	switch tok.Type {
	case TokenSnippet:
		return &syntax{kind: synSnippet, pos: tok.Pos, text: tok.Value}, nil
	case TokenString:
		return &syntax{kind: synString, pos: tok.Pos, text: tok.Value}, nil
	case TokenRest:
		return &syntax{kind: synRest, pos: tok.Pos, text: tok.Value}, nil
	case TokenInt:
		return &syntax{kind: synInt, pos: tok.Pos, text: tok.Value}, nil
	case TokenVar:
		return p.variable(tok)
	case TokenLBracket:
		elems, err := p.list(TokenRBracket, true)
		if err != nil {
			return nil, err
		}
		return &syntax{kind: synList, pos: tok.Pos, kids: elems}, nil
	case TokenLParen:
		inner, err := p.clause()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenIdent:
		return p.keyword(tok)
	default:
		return nil, unexpected(tok, "pattern")
	}
}

func (p *parser) variable(tok Token) (*syntax, error) {
	v := &syntax{kind: synVar, pos: tok.Pos, text: tok.Value}
	if p.peek().Type == TokenColon {
		p.next()
		kind, err := p.expect(TokenIdent)
		if err != nil {
			return nil, err
		}
		v.constraint = kind.Value
	}
	if p.peek().Type == TokenMatch {
		op := p.next()
		if v.constraint != "" {
			return nil, errorf(ECSyntax, op.Pos, "a constrained variable cannot be the subject of '<:'")
		}
		inner, err := p.primary()
		if err != nil {
			return nil, err
		}
		return &syntax{kind: synMatch, pos: tok.Pos, text: tok.Value, kids: []*syntax{inner}}, nil
	}
	return v, nil
}

func (p *parser) keyword(tok Token) (*syntax, error) {
	switch tok.Value {
	case "_":
		return &syntax{kind: synWildcard, pos: tok.Pos}, nil
	case "or", "and":
		if _, err := p.expect(TokenLBrace); err != nil {
			return nil, err
		}
		items, err := p.list(TokenRBrace, false)
		if err != nil {
			return nil, err
		}
		kind := synOr
		if tok.Value == "and" {
			kind = synAnd
		}
		return &syntax{kind: kind, pos: tok.Pos, kids: items}, nil
	case "not":
		inner, err := p.primary()
		if err != nil {
			return nil, err
		}
		return &syntax{kind: synNot, pos: tok.Pos, kids: []*syntax{inner}}, nil
	}

	if p.peek().Type != TokenLParen {
		return nil, errorf(ECSyntax, tok.Pos, "unexpected identifier %q", tok.Value)
	}
	p.next()
	args, err := p.list(TokenRParen, true)
	if err != nil {
		return nil, err
	}
	return &syntax{kind: synCall, pos: tok.Pos, text: tok.Value, kids: args}, nil
}
