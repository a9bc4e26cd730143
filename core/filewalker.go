package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/termfx/structq/providers/catalog"
)

// Scope defines which files a FileWalker enumerates.
type Scope struct {
	Root           string   `json:"root"`
	Include        []string `json:"include,omitempty"`   // globs relative to Root
	Exclude        []string `json:"exclude,omitempty"`   // globs relative to Root
	MaxDepth       int      `json:"max_depth,omitempty"` // 0 = unlimited
	MaxFiles       int      `json:"max_files,omitempty"` // 0 = unlimited
	FollowSymlinks bool     `json:"follow_symlinks"`
	// Language keeps only files whose extension the catalog maps to it. It
	// applies when Include is empty.
	Language string `json:"language,omitempty"`
}

// FileWalker enumerates files under a root directory in lexical order.
type FileWalker struct {
	scope Scope
}

// NewFileWalker creates a walker for scope.
func NewFileWalker(scope Scope) *FileWalker {
	return &FileWalker{scope: scope}
}

// Files implements Enumerator. A root that is a regular file enumerates
// itself.
func (fw *FileWalker) Files(ctx context.Context) ([]string, error) {
	if err := fw.validateScope(); err != nil {
		return nil, err
	}

	info, err := os.Stat(fw.scope.Root)
	if err != nil {
		return nil, fmt.Errorf("cannot access path %s: %w", fw.scope.Root, err)
	}
	if !info.IsDir() {
		return []string{fw.scope.Root}, nil
	}

	var files []string
	var visited map[string]struct{}
	if fw.scope.FollowSymlinks {
		visited = make(map[string]struct{})
		if resolved, err := filepath.EvalSymlinks(fw.scope.Root); err == nil {
			visited[resolved] = struct{}{}
		}
	}
	if err := fw.scanDirectory(ctx, fw.scope.Root, 0, &files, visited); err != nil {
		return nil, err
	}
	return files, nil
}

// scanDirectory appends matching files below dirPath. os.ReadDir sorts
// entries, so the result is deterministic.
func (fw *FileWalker) scanDirectory(
	ctx context.Context,
	dirPath string,
	depth int,
	files *[]string,
	visited map[string]struct{},
) error {
	if fw.full(*files) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fw.scope.MaxDepth > 0 && depth > fw.scope.MaxDepth {
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		// Unreadable directories are skipped, except the root.
		if depth == 0 {
			return fmt.Errorf("read %s: %w", dirPath, err)
		}
		return nil
	}

	for _, entry := range entries {
		if fw.full(*files) {
			return nil
		}
		fullPath := filepath.Join(dirPath, entry.Name())
		rel := fw.relative(fullPath)

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if !fw.scope.FollowSymlinks {
				continue
			}
			info, err := os.Stat(fullPath)
			if err != nil {
				continue
			}
			isDir = info.IsDir()
		}

		if isDir {
			if fw.isExcluded(rel) || fw.isExcluded(rel+"/") {
				continue
			}
			if visited != nil {
				realPath := fullPath
				if resolved, err := filepath.EvalSymlinks(fullPath); err == nil {
					realPath = resolved
				}
				if _, seen := visited[realPath]; seen {
					continue
				}
				visited[realPath] = struct{}{}
			}
			if err := fw.scanDirectory(ctx, fullPath, depth+1, files, visited); err != nil {
				return err
			}
			continue
		}

		if fw.isExcluded(rel) || !fw.isIncluded(rel) {
			continue
		}
		*files = append(*files, fullPath)
	}
	return nil
}

func (fw *FileWalker) full(files []string) bool {
	return fw.scope.MaxFiles > 0 && len(files) >= fw.scope.MaxFiles
}

func (fw *FileWalker) relative(path string) string {
	rel, err := filepath.Rel(fw.scope.Root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

func (fw *FileWalker) isIncluded(rel string) bool {
	if len(fw.scope.Include) == 0 {
		return fw.scope.Language == "" || detectLanguage(rel) == strings.ToLower(fw.scope.Language)
	}
	for _, pattern := range fw.scope.Include {
		if matchPattern(rel, pattern) {
			return true
		}
	}
	return false
}

func (fw *FileWalker) isExcluded(rel string) bool {
	for _, pattern := range fw.scope.Exclude {
		if matchPattern(rel, pattern) {
			return true
		}
	}
	return false
}

// matchPattern matches a slash-separated relative path. Patterns without a
// separator also match the base name.
func matchPattern(rel, pattern string) bool {
	if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, err := doublestar.Match(pattern, filepath.Base(rel)); err == nil && ok {
			return true
		}
	}
	return false
}

// detectLanguage returns the catalog language of path, or "unknown".
func detectLanguage(path string) string {
	if info, ok := catalog.LookupByPath(path); ok {
		return strings.ToLower(info.ID)
	}
	return "unknown"
}

func (fw *FileWalker) validateScope() error {
	if fw.scope.Root == "" {
		return fmt.Errorf("path is required")
	}
	for _, p := range append(append([]string(nil), fw.scope.Include...), fw.scope.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob %q", p)
		}
	}
	if fw.scope.MaxDepth < 0 || fw.scope.MaxFiles < 0 {
		return fmt.Errorf("max depth and max files must not be negative")
	}
	return nil
}
