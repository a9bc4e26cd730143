package golang

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termfx/structq/providers"
	"github.com/termfx/structq/providers/base"
	"github.com/termfx/structq/tree"
)

func TestParseProducesArenaTree(t *testing.T) {
	p := New()
	src := []byte("package main\n\n// greet\nfunc main() {\n\tfoo(bar)\n}\n")

	tr, err := p.Parse(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "go", tr.Language())
	assert.Equal(t, "source_file", tr.Root().Kind())
	assert.True(t, tr.HasKind("call_expression"))

	var comments, calls int
	for n := range tree.Walk(tr.Root()) {
		if n.Kind() == "call_expression" {
			calls++
			assert.Equal(t, "foo(bar)", n.Text())
			fn, ok := n.ChildByField("function")
			require.True(t, ok)
			assert.Equal(t, "foo", fn.Text())
		}
		if n.Kind() == "comment" {
			comments++
		}
	}
	assert.Equal(t, 1, calls)
	assert.Zero(t, comments, "comments are trivia and skipped by Walk")
	assert.Equal(t, 1, tr.KindCount("comment"))
}

func TestParseRejectsSyntaxErrors(t *testing.T) {
	p := New()
	_, err := p.Parse(context.Background(), []byte("package main\nfunc main( {\n"))
	require.Error(t, err)

	var serr *providers.SyntaxError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "go", serr.Language)
	assert.GreaterOrEqual(t, serr.Line, 1)
}

func TestParseAllowErrors(t *testing.T) {
	p := New(base.AllowErrors(true))
	tr, err := p.Parse(context.Background(), []byte("package main\nfunc main( {\n"))
	require.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestParseSnippet(t *testing.T) {
	p := New()
	tests := []struct {
		snippet string
		kind    string
	}{
		{"foo(µX)", "call_expression"},
		{"x := 1", "short_var_declaration"},
		{"func f() {}", "function_declaration"},
		{"a + b", "binary_expression"},
		{"name string", "parameter_declaration"},
	}

	for _, tt := range tests {
		t.Run(tt.snippet, func(t *testing.T) {
			nodes, err := p.ParseSnippet(context.Background(), tt.snippet)
			require.NoError(t, err)
			require.NotEmpty(t, nodes)
			assert.Equal(t, tt.kind, nodes[0].Kind())
			assert.Equal(t, tt.snippet, nodes[0].Text())
		})
	}
}

func TestParseSnippetKeepsEveryContext(t *testing.T) {
	nodes, err := New().ParseSnippet(context.Background(), "string")
	require.NoError(t, err)

	var kinds []string
	for _, n := range nodes {
		assert.Equal(t, "string", n.Text())
		kinds = append(kinds, n.Kind())
	}
	assert.Contains(t, kinds, "identifier")
	assert.Contains(t, kinds, "type_identifier")
	assert.Len(t, kinds, len(nodes), "one node per kind")
}

func TestParseSnippetFailure(t *testing.T) {
	_, err := New().ParseSnippet(context.Background(), "func (((")
	assert.ErrorIs(t, err, base.ErrNoSnippetContext)
}

func TestResolveKind(t *testing.T) {
	p := New()
	assert.Equal(t, []string{"call_expression"}, p.ResolveKind("call"))
	assert.Equal(t, []string{"binary_expression"}, p.ResolveKind("binary_expression"))
}

func TestParserPoolStats(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Parse(context.Background(), []byte("package main\n"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, int64(8), stats.BorrowCount)
	assert.Equal(t, int64(8), stats.ReturnCount)
	assert.Zero(t, stats.Active)
	assert.Equal(t, int64(8), stats.Parses)
}
