package javascript

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/termfx/structq/providers/base"
)

// Config implements LanguageConfig for JavaScript
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "javascript"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

// GetLanguage returns tree-sitter language for JavaScript
func (c *Config) GetLanguage() *sitter.Language {
	return javascript.GetLanguage()
}

// SnippetContexts for JavaScript
func (c *Config) SnippetContexts() []base.SnippetContext {
	return []base.SnippetContext{
		{Prefix: "", Suffix: ""},
		{Prefix: "(", Suffix: ")"},
		{Prefix: "class _ {\n", Suffix: "\n}"},
		{Prefix: "function _(", Suffix: ") {}"},
		{Prefix: "({", Suffix: "})"},
	}
}

// KindAliases maps colloquial names to JavaScript node types
func (c *Config) KindAliases() map[string][]string {
	return map[string][]string{
		"function": {"function_declaration", "function_expression", "arrow_function", "method_definition", "generator_function_declaration"},
		"func":     {"function_declaration", "function_expression", "arrow_function", "method_definition", "generator_function_declaration"},
		"class":    {"class_declaration", "class"},
		"method":   {"method_definition"},
		"call":     {"call_expression"},
		"variable": {"variable_declaration", "lexical_declaration"},
		"var":      {"variable_declaration", "lexical_declaration"},
		"import":   {"import_statement"},
		"export":   {"export_statement"},
		"string":   {"string", "template_string"},
		"jsx":      {"jsx_element", "jsx_self_closing_element"},
		"comment":  {"comment"},
	}
}
