// Package loader reads and parses files lazily, at most once per run.
//
// A Cache hands out one *File per path. Metadata, content and tree are each
// computed on first use and memoized; concurrent callers wait for the same
// computation instead of repeating it.
package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/termfx/structq/tree"
)

// Parser turns source bytes into a tree. providers.Grammar satisfies it.
type Parser interface {
	Language() string
	Parse(ctx context.Context, src []byte) (*tree.Tree, error)
}

// IOError reports a file that could not be stat'ed or read.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports a file the grammar rejected.
type ParseError struct {
	Path     string
	Language string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s as %s: %v", e.Path, e.Language, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Stats counts the expensive operations a cache performed.
type Stats struct {
	Files  int64 `json:"files"`
	Stats  int64 `json:"stats"`
	Reads  int64 `json:"reads"`
	Parses int64 `json:"parses"`
}

// Cache memoizes files for the duration of one run. It is the only shared
// mutable state of a run and is safe for concurrent use.
type Cache struct {
	src    Source
	parser Parser

	mu    sync.Mutex
	files map[string]*File

	stats, reads, parses atomic.Int64
}

// New creates a cache reading through src and parsing with p.
func New(src Source, p Parser) *Cache {
	return &Cache{src: src, parser: p, files: make(map[string]*File)}
}

// Open returns the entry for path, creating it on first use. Open does no
// I/O.
func (c *Cache) Open(path string) *File {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.files[path]; ok {
		return f
	}
	f := &File{path: path, cache: c}
	c.files[path] = f
	return f
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	files := len(c.files)
	c.mu.Unlock()
	return Stats{
		Files:  int64(files),
		Stats:  c.stats.Load(),
		Reads:  c.reads.Load(),
		Parses: c.parses.Load(),
	}
}

// File is a lazily loaded file.
type File struct {
	path  string
	cache *Cache

	metaOnce sync.Once
	meta     Metadata
	metaErr  error

	contentOnce sync.Once
	content     []byte
	contentErr  error

	treeOnce sync.Once
	tree     *tree.Tree
	treeErr  error
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// Metadata stats the file once.
func (f *File) Metadata() (Metadata, error) {
	f.metaOnce.Do(func() {
		f.cache.stats.Add(1)
		md, err := f.cache.src.Stat(f.path)
		if err != nil {
			f.metaErr = &IOError{Path: f.path, Op: "stat", Err: err}
			return
		}
		f.meta = md
	})
	return f.meta, f.metaErr
}

// Content reads the file once. The returned slice must not be modified.
func (f *File) Content() ([]byte, error) {
	f.contentOnce.Do(func() {
		f.cache.reads.Add(1)
		data, err := f.cache.src.ReadFile(f.path)
		if err != nil {
			f.contentErr = &IOError{Path: f.path, Op: "read", Err: err}
			return
		}
		f.content = data
	})
	return f.content, f.contentErr
}

// Tree parses the file once. A context that is already done fails fast
// without touching the cache; once started, the parse runs to completion so
// that no caller can observe a half-built entry.
func (f *File) Tree(ctx context.Context) (*tree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.treeOnce.Do(func() {
		content, err := f.Content()
		if err != nil {
			f.treeErr = err
			return
		}
		f.cache.parses.Add(1)
		t, err := f.cache.parser.Parse(context.WithoutCancel(ctx), content)
		if err != nil {
			f.treeErr = &ParseError{Path: f.path, Language: f.cache.parser.Language(), Err: err}
			return
		}
		f.tree = t
	})
	return f.tree, f.treeErr
}
