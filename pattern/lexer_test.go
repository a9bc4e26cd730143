package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLex(t *testing.T) {
	tokens, err := Lex("`f($X)` where { $Y:call <: \"a\\\"b\", near($Y, -2), $...R } => `x`")
	require.NoError(t, err)

	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokenSnippet, TokenIdent, TokenLBrace,
		TokenVar, TokenColon, TokenIdent, TokenMatch, TokenString, TokenComma,
		TokenIdent, TokenLParen, TokenVar, TokenComma, TokenInt, TokenRParen, TokenComma,
		TokenRest, TokenRBrace, TokenArrow, TokenSnippet, TokenEOF,
	}, types)

	assert.Equal(t, "f($X)", tokens[0].Value)
	assert.Equal(t, "Y", tokens[3].Value)
	assert.Equal(t, `a\"b`, tokens[7].Value)
	assert.Equal(t, "-2", tokens[13].Value)
	assert.Equal(t, "R", tokens[16].Value)
}

func TestLexPositions(t *testing.T) {
	tokens, err := Lex("$A\n  `b`")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, Position{Offset: 0, Line: 1, Col: 1}, tokens[0].Pos)
	assert.Equal(t, Position{Offset: 5, Line: 2, Col: 3}, tokens[1].Pos)
}

func TestLexErrors(t *testing.T) {
	for _, src := range []string{"`open", `"open`, "$", "$ X", "#", "`a\\"} {
		_, err := Lex(src)
		assert.True(t, IsCompileError(err, ECSyntax), "input %q", src)
	}
}
