package plain

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/termfx/structq/tree"
)

type tokenType int

const (
	tokenWord tokenType = iota
	tokenNumber
	tokenString
	tokenPunct
	tokenOpen
	tokenClose
	tokenSeparator
	tokenNewline
	tokenComment
)

type token struct {
	typ  tokenType
	span tree.Span
	line int
	col  int
}

// lex splits src into tokens. Whitespace other than newlines is dropped; its
// bytes remain recoverable through the gaps between spans.
func lex(src []byte) ([]token, error) {
	var tokens []token
	line, col := 1, 1
	i := 0

	emit := func(typ tokenType, start, end int) {
		tokens = append(tokens, token{typ: typ, span: tree.Span{Start: start, End: end}, line: line, col: col})
		col += utf8.RuneCount(src[start:end])
		i = end
	}

	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			emit(tokenNewline, i, i+1)
			line++
			col = 1
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
			col++
		case c == '#' || (c == '/' && i+1 < len(src) && src[i+1] == '/'):
			end := i
			for end < len(src) && src[end] != '\n' {
				end++
			}
			emit(tokenComment, i, end)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := i + 2
			for end+1 < len(src) && !(src[end] == '*' && src[end+1] == '/') {
				end++
			}
			if end+1 >= len(src) {
				return nil, fmt.Errorf("line %d col %d: unterminated block comment", line, col)
			}
			startLine, startCol := line, col
			for _, b := range src[i : end+2] {
				if b == '\n' {
					line++
				}
			}
			tokens = append(tokens, token{typ: tokenComment, span: tree.Span{Start: i, End: end + 2}, line: startLine, col: startCol})
			col = startCol + (end + 2 - i)
			i = end + 2
		case c == '"' || c == '\'' || c == '`':
			end := i + 1
			for end < len(src) && src[end] != c {
				if src[end] == '\\' {
					end++
				}
				if end < len(src) && src[end] == '\n' && c != '`' {
					return nil, fmt.Errorf("line %d col %d: newline in string literal", line, col)
				}
				end++
			}
			if end >= len(src) {
				return nil, fmt.Errorf("line %d col %d: unterminated string literal", line, col)
			}
			emit(tokenString, i, end+1)
		case c == '(' || c == '[' || c == '{':
			emit(tokenOpen, i, i+1)
		case c == ')' || c == ']' || c == '}':
			emit(tokenClose, i, i+1)
		case c == ',' || c == ';':
			emit(tokenSeparator, i, i+1)
		case c >= '0' && c <= '9':
			end := i
			for end < len(src) && (isWordByte(src[end]) || src[end] == '.') {
				end++
			}
			emit(tokenNumber, i, end)
		case c == '$' && i+3 < len(src) && string(src[i+1:i+4]) == "...":
			end := i + 4
			for end < len(src) && isWordByte(src[end]) {
				end++
			}
			emit(tokenWord, i, end)
		case isWordStart(src[i:]):
			end := i
			for end < len(src) && (isWordByte(src[end]) || src[end] >= utf8.RuneSelf) {
				end++
			}
			emit(tokenWord, i, end)
		case isOperator(c):
			end := i
			for end < len(src) && isOperator(src[end]) {
				end++
			}
			emit(tokenPunct, i, end)
		default:
			_, size := utf8.DecodeRune(src[i:])
			emit(tokenPunct, i, i+size)
		}
	}
	return tokens, nil
}

func isWordStart(b []byte) bool {
	c := b[0]
	if c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	if c < utf8.RuneSelf {
		return false
	}
	r, _ := utf8.DecodeRune(b)
	return unicode.IsLetter(r)
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isOperator(c byte) bool {
	switch c {
	case '=', '+', '-', '*', '/', '<', '>', '!', '&', '|', '%', '^', '~', '?', ':', '.', '@':
		return true
	}
	return false
}
