package core

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termfx/structq/providers"
	"github.com/termfx/structq/providers/plain"
)

// makeTree creates files (with parent directories) under a temp root.
func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))
	}
	return root
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestFileWalker_SortedAndFiltered(t *testing.T) {
	root := makeTree(t,
		"b.conf", "a.conf", "notes.md",
		"sub/z.conf", "sub/deep/y.conf",
		".git/config.conf", "node_modules/pkg/p.conf",
	)
	files, err := NewFileWalker(Scope{
		Root:    root,
		Include: []string{"*.conf"},
		Exclude: []string{"**/.git/**", "node_modules"},
	}).Files(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.conf", "b.conf", "sub/deep/y.conf", "sub/z.conf"}, relAll(t, root, files))
}

func TestFileWalker_IncludeWithDirectories(t *testing.T) {
	root := makeTree(t, "a.conf", "etc/app.conf", "etc/nginx/site.conf")
	files, err := NewFileWalker(Scope{Root: root, Include: []string{"etc/**/*.conf"}}).Files(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"etc/app.conf", "etc/nginx/site.conf"}, relAll(t, root, files))
}

func TestFileWalker_MaxDepthLimit(t *testing.T) {
	root := makeTree(t, "l0.conf", "a/l1.conf", "a/b/l2.conf", "a/b/c/l3.conf")

	files, err := NewFileWalker(Scope{Root: root, MaxDepth: 1}).Files(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/l1.conf", "l0.conf"}, relAll(t, root, files))

	files, err = NewFileWalker(Scope{Root: root}).Files(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 4)
}

func TestFileWalker_MaxFilesLimit(t *testing.T) {
	root := makeTree(t, "1.conf", "2.conf", "3.conf", "d/4.conf")
	files, err := NewFileWalker(Scope{Root: root, MaxFiles: 2}).Files(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.conf", "2.conf"}, relAll(t, root, files))
}

func TestFileWalker_LanguageFilter(t *testing.T) {
	providers.NewRegistry().Register(plain.New())
	root := makeTree(t, "a.conf", "b.go", "c.ini", "d.unknownext")

	files, err := NewFileWalker(Scope{Root: root, Language: plain.Language}).Files(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.conf", "c.ini"}, relAll(t, root, files))

	assert.Equal(t, "plain", detectLanguage("x/y.conf"))
	assert.Equal(t, "unknown", detectLanguage("noext"))
}

func TestFileWalker_SingleFileRoot(t *testing.T) {
	root := makeTree(t, "only.conf")
	path := filepath.Join(root, "only.conf")
	files, err := NewFileWalker(Scope{Root: path}).Files(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestFileWalker_ValidateScope(t *testing.T) {
	cases := map[string]Scope{
		"empty root":   {},
		"missing root": {Root: filepath.Join(t.TempDir(), "nope")},
		"bad glob":     {Root: t.TempDir(), Include: []string{"[a-"}},
		"negative":     {Root: t.TempDir(), MaxFiles: -1},
	}
	for name, scope := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewFileWalker(scope).Files(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestFileWalker_CancelledContext(t *testing.T) {
	root := makeTree(t, "a.conf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileWalker(Scope{Root: root}).Files(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileWalker_SymlinkHandling(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := makeTree(t, "real/a.conf")
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")))

	files, err := NewFileWalker(Scope{Root: root}).Files(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"real/a.conf"}, relAll(t, root, files))

	// The target is visited once even though two names lead to it.
	files, err = NewFileWalker(Scope{Root: root, FollowSymlinks: true}).Files(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		rel, pattern string
		want         bool
	}{
		{"a/b/c.go", "**/*.go", true},
		{"c.go", "**/*.go", true},
		{"a/b/c.go", "*.go", true},
		{"a/b/c.go", "a/*.go", false},
		{"a/b/c.go", "a/**", true},
		{"src/x.ts", "src/*.{ts,js}", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchPattern(tt.rel, tt.pattern), "%s ~ %s", tt.rel, tt.pattern)
	}
}

func TestEngineOverFileWalker(t *testing.T) {
	root := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	write("app.conf", "listen(80)\nlisten(443)\n")
	write("README.txt", "listen(1)\n")
	write("other.conf", "server_name example\n")

	req := Request{
		Source:  "`listen($PORT)` where { filename(\"*.conf\") }",
		Grammar: plain.New(),
		Files:   NewFileWalker(Scope{Root: root}),
	}
	report, err := NewEngine().Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, report.Matches, 2)
	assert.Equal(t, "80", report.Matches[0].Bindings["PORT"])
	assert.Equal(t, "443", report.Matches[1].Bindings["PORT"])
	assert.Equal(t, 3, report.Stats.Files)
	assert.Equal(t, 1, report.Stats.SkippedPath, "README.txt is never read")
	assert.Equal(t, 1, report.Stats.SkippedContent, "other.conf has no listen")
	assert.EqualValues(t, 2, report.Stats.Loader.Stats, "README.txt is never stat'ed")
	assert.EqualValues(t, 2, report.Stats.Loader.Reads)
	assert.EqualValues(t, 1, report.Stats.Loader.Parses)
}
