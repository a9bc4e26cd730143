package php

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMetadata(t *testing.T) {
	c := &Config{}
	assert.Equal(t, "php", c.Language())
	assert.Contains(t, c.Extensions(), ".php")
	assert.NotNil(t, c.GetLanguage())
	assert.Contains(t, c.KindAliases()["call"], "member_call_expression")
}

func TestParseClass(t *testing.T) {
	p := New()
	tr, err := p.Parse(context.Background(), []byte("<?php\nclass User {\n  public function name() { return $this->name; }\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, "program", tr.Root().Kind())
	assert.True(t, tr.HasKind("class_declaration"))
	assert.True(t, tr.HasKind("method_declaration"))
}

func TestParseSnippetCall(t *testing.T) {
	nodes, err := New().ParseSnippet(context.Background(), "strlen(µS)")
	require.NoError(t, err)
	assert.Equal(t, "function_call_expression", nodes[0].Kind())
}
