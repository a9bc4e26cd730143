package pattern

import (
	"fmt"
	"strings"
)

// TokenType defines the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenSnippet
	TokenString
	TokenVar
	TokenRest
	TokenIdent
	TokenInt
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenLParen
	TokenRParen
	TokenComma
	TokenColon
	TokenArrow
	TokenMatch
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenSnippet:
		return "snippet"
	case TokenString:
		return "string"
	case TokenVar:
		return "variable"
	case TokenRest:
		return "rest"
	case TokenIdent:
		return "identifier"
	case TokenInt:
		return "integer"
	case TokenLBrace:
		return "'{'"
	case TokenRBrace:
		return "'}'"
	case TokenLBracket:
		return "'['"
	case TokenRBracket:
		return "']'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenComma:
		return "','"
	case TokenColon:
		return "':'"
	case TokenArrow:
		return "'=>'"
	case TokenMatch:
		return "'<:'"
	default:
		return "unknown"
	}
}

// Token represents a lexical token. For snippets and strings Value is the raw
// body between the delimiters, escapes untouched; for variables and rests it
// is the name without `$` or `$...`.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lex performs lexical analysis on the pattern source and returns a sequence
// of tokens ending with TokenEOF.
func Lex(input string) ([]Token, error) {
	var tokens []Token
	line, col := 1, 1
	i := 0

	pos := func() Position { return Position{Offset: i, Line: line, Col: col} }
	advance := func(n int) {
		for k := 0; k < n && i < len(input); k++ {
			if input[i] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			i++
		}
	}
	emit := func(typ TokenType, value string, at Position) {
		tokens = append(tokens, Token{Type: typ, Value: value, Pos: at})
	}

	for i < len(input) {
		c := input[i]
		start := pos()

		switch {
		case isWhitespace(c):
			advance(1)
		case c == '/' && i+1 < len(input) && input[i+1] == '/':
			for i < len(input) && input[i] != '\n' {
				advance(1)
			}
		case c == '`' || c == '"':
			advance(1)
			bodyStart := i
			for i < len(input) && input[i] != c {
				if input[i] == '\\' {
					if i+1 >= len(input) {
						return nil, lexError(pos(), "'\\' escape is at the end of input")
					}
					advance(1)
				}
				advance(1)
			}
			if i >= len(input) {
				return nil, lexError(start, "unterminated %s", map[byte]string{'`': "snippet", '"': "string"}[c])
			}
			body := input[bodyStart:i]
			advance(1)
			if c == '`' {
				emit(TokenSnippet, body, start)
			} else {
				emit(TokenString, body, start)
			}
		case c == '$':
			advance(1)
			if strings.HasPrefix(input[i:], "...") {
				advance(3)
				emit(TokenRest, readIdent(input, &i, &col), start)
				continue
			}
			if i >= len(input) || !isIdentifierStart(input[i]) {
				return nil, lexError(start, "'$' must be followed by a variable name or '...'")
			}
			emit(TokenVar, readIdent(input, &i, &col), start)
		case isIdentifierStart(c):
			emit(TokenIdent, readIdent(input, &i, &col), start)
		case isDigit(c) || (c == '-' && i+1 < len(input) && isDigit(input[i+1])):
			j := i + 1
			for j < len(input) && isDigit(input[j]) {
				j++
			}
			value := input[i:j]
			advance(j - i)
			emit(TokenInt, value, start)
		case c == '=' && i+1 < len(input) && input[i+1] == '>':
			advance(2)
			emit(TokenArrow, "=>", start)
		case c == '<' && i+1 < len(input) && input[i+1] == ':':
			advance(2)
			emit(TokenMatch, "<:", start)
		default:
			typ, ok := punctuation[c]
			if !ok {
				return nil, lexError(start, "unexpected character %q", c)
			}
			advance(1)
			emit(typ, string(c), start)
		}
	}

	emit(TokenEOF, "", pos())
	return tokens, nil
}

var punctuation = map[byte]TokenType{
	'{': TokenLBrace,
	'}': TokenRBrace,
	'[': TokenLBracket,
	']': TokenRBracket,
	'(': TokenLParen,
	')': TokenRParen,
	',': TokenComma,
	':': TokenColon,
}

func readIdent(input string, i *int, col *int) string {
	start := *i
	for *i < len(input) && isIdentifierChar(input[*i]) {
		*i++
		*col++
	}
	return input[start:*i]
}

func lexError(pos Position, format string, args ...any) *CompileError {
	return &CompileError{Code: ECSyntax, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentifierStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentifierChar(c byte) bool {
	return isIdentifierStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
