package typescript

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMetadata(t *testing.T) {
	c := &Config{}
	assert.Equal(t, "typescript", c.Language())
	assert.Equal(t, []string{".ts", ".mts", ".cts"}, c.Extensions())
	assert.NotNil(t, c.GetLanguage())
	assert.Contains(t, c.KindAliases()["function"], "arrow_function")
}

func TestParseTypedSource(t *testing.T) {
	p := New()
	tr, err := p.Parse(context.Background(), []byte("interface User { name: string }\nconst u: User = load(id);\n"))
	require.NoError(t, err)
	assert.Equal(t, "program", tr.Root().Kind())
	assert.True(t, tr.HasKind("interface_declaration"))
	assert.True(t, tr.HasKind("call_expression"))
}

func TestParseSnippetExpression(t *testing.T) {
	nodes, err := New().ParseSnippet(context.Background(), "load(µID)")
	require.NoError(t, err)
	assert.Equal(t, "call_expression", nodes[0].Kind())
	assert.Equal(t, "load(µID)", nodes[0].Text())
}
