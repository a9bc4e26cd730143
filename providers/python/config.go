package python

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/termfx/structq/providers/base"
)

// Config implements LanguageConfig for Python
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "python"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".py", ".pyw", ".pyi"}
}

// GetLanguage returns tree-sitter language for Python
func (c *Config) GetLanguage() *sitter.Language {
	return python.GetLanguage()
}

// SnippetContexts for Python. Indentation is significant, so wrappers only
// ever add a prefix on the snippet's first line.
func (c *Config) SnippetContexts() []base.SnippetContext {
	return []base.SnippetContext{
		{Prefix: "", Suffix: ""},
		{Prefix: "_ = ", Suffix: ""},
		{Prefix: "def _(", Suffix: "): pass"},
		{Prefix: "_ = {", Suffix: "}"},
	}
}

// KindAliases maps colloquial names to Python node types
func (c *Config) KindAliases() map[string][]string {
	return map[string][]string{
		"function": {"function_definition", "lambda"},
		"func":     {"function_definition", "lambda"},
		"class":    {"class_definition"},
		"call":     {"call"},
		"variable": {"assignment", "augmented_assignment"},
		"var":      {"assignment", "augmented_assignment"},
		"import":   {"import_statement", "import_from_statement"},
		"string":   {"string"},
		"comment":  {"comment"},
	}
}
