package catalog

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LanguageInfo captures metadata about a grammar.
type LanguageInfo struct {
	ID         string
	Extensions []string
}

var (
	mu     sync.RWMutex
	byLang = make(map[string]LanguageInfo)
	byExt  = make(map[string]LanguageInfo)
)

// Register stores language metadata for extension lookups. Subsequent
// registrations for the same language overwrite prior data to keep the catalog
// in sync with the latest grammar definition.
func Register(info LanguageInfo) {
	if info.ID == "" {
		return
	}

	normalized := uniqueExtensions(info.Extensions)
	info.Extensions = normalized

	mu.Lock()
	defer mu.Unlock()

	byLang[strings.ToLower(info.ID)] = info
	for _, ext := range normalized {
		byExt[ext] = info
	}
}

// LookupByExtension returns the language info associated with a file extension.
func LookupByExtension(ext string) (LanguageInfo, bool) {
	mu.RLock()
	defer mu.RUnlock()
	info, ok := byExt[normalizeExt(ext)]
	return info, ok
}

// LookupByPath resolves a path by its longest registered suffix, so that
// ".d.ts" wins over ".ts".
func LookupByPath(path string) (LanguageInfo, bool) {
	base := strings.ToLower(filepath.Base(path))
	mu.RLock()
	defer mu.RUnlock()
	for i := 0; i < len(base); i++ {
		if base[i] != '.' {
			continue
		}
		if info, ok := byExt[base[i:]]; ok {
			return info, true
		}
	}
	return LanguageInfo{}, false
}

// Lookup returns the language info registered under id.
func Lookup(id string) (LanguageInfo, bool) {
	mu.RLock()
	defer mu.RUnlock()
	info, ok := byLang[strings.ToLower(id)]
	return info, ok
}

// Languages returns all registered language infos sorted by language ID.
func Languages() []LanguageInfo {
	mu.RLock()
	defer mu.RUnlock()

	infos := make([]LanguageInfo, 0, len(byLang))
	for _, info := range byLang {
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

func normalizeExt(ext string) string {
	normalized := strings.ToLower(strings.TrimSpace(ext))
	if normalized != "" && !strings.HasPrefix(normalized, ".") {
		normalized = "." + normalized
	}
	return normalized
}

func uniqueExtensions(exts []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(exts))
	for _, ext := range exts {
		normalized := normalizeExt(ext)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
