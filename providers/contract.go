package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/termfx/structq/providers/catalog"
	"github.com/termfx/structq/tree"
)

// Grammar is the black-box parser for one target language. Implementations
// must be deterministic and safe for concurrent use.
type Grammar interface {
	// Metadata
	Language() string
	Extensions() []string

	// Parse builds an immutable tree for src or fails with a *SyntaxError.
	Parse(ctx context.Context, src []byte) (*tree.Tree, error)

	// Snippet support for the pattern compiler. ParseSnippet returns the
	// distinct parses of a snippet in snippet-context order.
	MetavariablePrefix() string
	ParseSnippet(ctx context.Context, snippet string) ([]tree.Node, error)
	ResolveKind(alias string) []string

	// Observability
	Stats() Stats
}

// SyntaxError reports source text the grammar could not parse.
type SyntaxError struct {
	Language string
	Line     int // 1-based
	Column   int // 1-based
	Kind     string
}

func (e *SyntaxError) Error() string {
	switch e.Kind {
	case "MISSING":
		return fmt.Sprintf("%s: missing token at line %d, column %d", e.Language, e.Line, e.Column)
	case "", "ERROR":
		return fmt.Sprintf("%s: syntax error at line %d, column %d", e.Language, e.Line, e.Column)
	default:
		return fmt.Sprintf("%s: %s at line %d, column %d", e.Language, e.Kind, e.Line, e.Column)
	}
}

// Registry manages all grammars
type Registry struct {
	mu       sync.RWMutex
	grammars map[string]Grammar
}

// NewRegistry creates grammar registry
func NewRegistry() *Registry {
	return &Registry{
		grammars: make(map[string]Grammar),
	}
}

// Register adds a grammar and publishes its extensions to the catalog.
func (r *Registry) Register(g Grammar) {
	r.mu.Lock()
	r.grammars[strings.ToLower(g.Language())] = g
	r.mu.Unlock()
	catalog.Register(catalog.LanguageInfo{
		ID:         g.Language(),
		Extensions: g.Extensions(),
	})
}

// Get retrieves a grammar by language id.
func (r *Registry) Get(language string) (Grammar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grammars[strings.ToLower(language)]
	return g, ok
}

// ForPath picks the grammar registered for the file's extension.
func (r *Registry) ForPath(path string) (Grammar, bool) {
	info, ok := catalog.LookupByPath(path)
	if !ok {
		return nil, false
	}
	return r.Get(info.ID)
}

// Languages returns all registered language identifiers, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.grammars))
	for k := range r.grammars {
		langs = append(langs, k)
	}
	sort.Strings(langs)
	return langs
}

// Stats captures parser-pool level metrics exposed by grammars.
type Stats struct {
	BorrowCount int64 `json:"borrow_count"`
	ReturnCount int64 `json:"return_count"`
	Active      int64 `json:"active"`
	Parses      int64 `json:"parses"`
}
