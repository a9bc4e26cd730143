package php

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"github.com/termfx/structq/providers/base"
)

// Config implements LanguageConfig for PHP
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "php"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".php", ".phtml", ".php4", ".php5", ".phps"}
}

// GetLanguage returns tree-sitter language for PHP
func (c *Config) GetLanguage() *sitter.Language {
	return php.GetLanguage()
}

// SnippetContexts for PHP. PHP variables collide with metavariables, so
// snippets write them as `\$name`.
func (c *Config) SnippetContexts() []base.SnippetContext {
	return []base.SnippetContext{
		{Prefix: "<?php ", Suffix: ""},
		{Prefix: "<?php ", Suffix: ";"},
		{Prefix: "<?php class _ {\n", Suffix: "\n}"},
		{Prefix: "<?php function _(", Suffix: ") {}"},
	}
}

// KindAliases maps colloquial names to PHP node types
func (c *Config) KindAliases() map[string][]string {
	return map[string][]string{
		"function":  {"function_definition", "method_declaration", "anonymous_function_creation_expression", "arrow_function"},
		"method":    {"method_declaration"},
		"class":     {"class_declaration"},
		"interface": {"interface_declaration"},
		"trait":     {"trait_declaration"},
		"call":      {"function_call_expression", "member_call_expression", "scoped_call_expression"},
		"variable":  {"variable_name"},
		"use":       {"namespace_use_declaration"},
		"string":    {"string", "encapsed_string"},
		"comment":   {"comment"},
	}
}
