package typescript

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/termfx/structq/providers/base"
)

// Config implements LanguageConfig for TypeScript
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "typescript"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".ts", ".mts", ".cts"}
}

// GetLanguage returns tree-sitter language for TypeScript
func (c *Config) GetLanguage() *sitter.Language {
	return typescript.GetLanguage()
}

// SnippetContexts for TypeScript
func (c *Config) SnippetContexts() []base.SnippetContext {
	return []base.SnippetContext{
		{Prefix: "", Suffix: ""},
		{Prefix: "(", Suffix: ")"},
		{Prefix: "class _ {\n", Suffix: "\n}"},
		{Prefix: "function _(", Suffix: ") {}"},
		{Prefix: "interface _ {\n", Suffix: "\n}"},
		{Prefix: "({", Suffix: "})"},
	}
}

// KindAliases maps colloquial names to TypeScript node types
func (c *Config) KindAliases() map[string][]string {
	return map[string][]string{
		"function":  {"function_declaration", "function_expression", "arrow_function", "method_definition"},
		"func":      {"function_declaration", "function_expression", "arrow_function", "method_definition"},
		"class":     {"class_declaration"},
		"interface": {"interface_declaration"},
		"type":      {"type_alias_declaration"},
		"enum":      {"enum_declaration"},
		"call":      {"call_expression"},
		"variable":  {"variable_declaration", "lexical_declaration"},
		"var":       {"variable_declaration", "lexical_declaration"},
		"import":    {"import_statement"},
		"export":    {"export_statement"},
		"string":    {"string", "template_string"},
		"comment":   {"comment"},
	}
}
