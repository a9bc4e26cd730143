package golang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/termfx/structq/providers/base"
)

// Config implements LanguageConfig for Go
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "go"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".go"}
}

// GetLanguage returns tree-sitter language for Go
func (c *Config) GetLanguage() *sitter.Language {
	return golang.GetLanguage()
}

// SnippetContexts lets statements, expressions, declarations, parameters and
// struct fields be written as snippets.
func (c *Config) SnippetContexts() []base.SnippetContext {
	return []base.SnippetContext{
		{Prefix: "", Suffix: ""},
		{Prefix: "package p\n", Suffix: ""},
		{Prefix: "package p\nfunc _() {\n", Suffix: "\n}"},
		{Prefix: "package p\nvar _ = ", Suffix: ""},
		{Prefix: "package p\nfunc _(", Suffix: ") {}"},
		{Prefix: "package p\ntype _ ", Suffix: ""},
		{Prefix: "package p\ntype _ struct {\n", Suffix: "\n}"},
		{Prefix: "package p\ntype _ interface {\n", Suffix: "\n}"},
	}
}

// KindAliases maps colloquial names to Go node types
func (c *Config) KindAliases() map[string][]string {
	return map[string][]string{
		"function":  {"function_declaration", "method_declaration", "func_literal"},
		"func":      {"function_declaration", "method_declaration", "func_literal"},
		"method":    {"method_declaration"},
		"call":      {"call_expression"},
		"struct":    {"struct_type"},
		"interface": {"interface_type"},
		"type":      {"type_declaration", "type_spec"},
		"variable":  {"var_declaration", "short_var_declaration"},
		"var":       {"var_declaration", "short_var_declaration"},
		"constant":  {"const_declaration"},
		"const":     {"const_declaration"},
		"import":    {"import_declaration"},
		"field":     {"field_declaration"},
		"string":    {"interpreted_string_literal", "raw_string_literal"},
		"comment":   {"comment"},
		"statement": {"expression_statement", "return_statement", "if_statement", "for_statement", "go_statement", "defer_statement", "assignment_statement", "short_var_declaration"},
	}
}
