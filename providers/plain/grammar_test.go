package plain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termfx/structq/providers"
	"github.com/termfx/structq/tree"
)

func parse(t *testing.T, src string) *tree.Tree {
	t.Helper()
	tr, err := New().Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return tr
}

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "call",
			src:  "foo(bar)",
			want: `(document (item (word "foo") (group "(" (word "bar") ")")))`,
		},
		{
			name: "arguments split by comma",
			src:  "listen(80, 443)",
			want: `(document (item (word "listen") (group "(" (number "80") "," (number "443") ")")))`,
		},
		{
			name: "lines split items",
			src:  "a = 1\nb = \"x\"\n",
			want: `(document (item (word "a") "=" (number "1")) (item (word "b") "=" (string "\"x\"")))`,
		},
		{
			name: "braces split lines, parens do not",
			src:  "server {\n  port 80\n}\nf(a\n b)",
			want: `(document (item (word "server") (group "{" (item (word "port") (number "80")) "}")) (item (word "f") (group "(" (item (word "a") (word "b")) ")")))`,
		},
		{
			name: "operators are grouped",
			src:  "a >= b",
			want: `(document (item (word "a") ">=" (word "b")))`,
		},
		{
			name: "metavariables are words",
			src:  "foo($X, $...REST)",
			want: `(document (item (word "foo") (group "(" (word "$X") "," (word "$...REST") ")")))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parse(t, tt.src).Root().String())
		})
	}
}

func TestCommentsAreTrivia(t *testing.T) {
	tr := parse(t, "# header\nkey = value // trailing\n/* block */")
	root := tr.Root()
	assert.Equal(t, "document", root.Kind())

	var comments int
	for _, c := range root.Children() {
		if c.Kind() == KindComment {
			comments++
			assert.True(t, c.IsTrivia())
		}
	}
	assert.Equal(t, 2, comments)

	item := root.SignificantChildren()[0]
	assert.Equal(t, KindItem, item.Kind())
	assert.Len(t, item.SignificantChildren(), 3)
	assert.Len(t, item.Children(), 4)
}

func TestDocumentSpansWholeSource(t *testing.T) {
	src := "  a b  \n"
	tr := parse(t, src)
	assert.Equal(t, tree.Span{Start: 0, End: len(src)}, tr.Root().Span())
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"foo(bar", "foo)", "a(b]", `x = "open`, "/* never closed"} {
		t.Run(src, func(t *testing.T) {
			_, err := New().Parse(context.Background(), []byte(src))
			require.Error(t, err)
		})
	}

	_, err := New().Parse(context.Background(), []byte("a\nfoo(bar"))
	var serr *providers.SyntaxError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 2, serr.Line)
	assert.Equal(t, 4, serr.Column)
}

func TestParseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Parse(ctx, []byte("a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSnippet(t *testing.T) {
	g := New()
	nodes, err := g.ParseSnippet(context.Background(), "  foo($X)  ")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, KindItem, nodes[0].Kind())
	assert.Equal(t, "foo($X)", nodes[0].Text())

	nodes, err = g.ParseSnippet(context.Background(), "bar")
	require.NoError(t, err)
	assert.Equal(t, KindWord, nodes[0].Kind())

	_, err = g.ParseSnippet(context.Background(), "   ")
	assert.Error(t, err)
}

func TestGrammarMetadata(t *testing.T) {
	g := New()
	assert.Equal(t, "plain", g.Language())
	assert.Contains(t, g.Extensions(), ".conf")
	assert.Equal(t, "$", g.MetavariablePrefix())
	assert.Equal(t, []string{"word"}, g.ResolveKind("word"))
	assert.Equal(t, []string{".x"}, New(".x").Extensions())

	_ = parse(t, "a")
	assert.Equal(t, int64(0), g.Stats().Parses)
	parseWith(t, g, "a")
	assert.Equal(t, int64(1), g.Stats().Parses)
}

func parseWith(t *testing.T, g *Grammar, src string) {
	t.Helper()
	_, err := g.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
}
