//go:build stress

package stress

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termfx/structq/core"
	"github.com/termfx/structq/providers"
	golang "github.com/termfx/structq/providers/golang"
)

const fileCount = 200

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for i := range fileCount {
		src := fmt.Sprintf("package p%d\n\nimport \"fmt\"\n\nfunc Hello() {\n\tfmt.Println(\"world\")\n\tfmt.Println(%d, \"x\")\n}\n", i, i)
		sub := filepath.Join(dir, fmt.Sprintf("pkg%03d", i%20))
		require.NoError(t, os.MkdirAll(sub, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(sub, fmt.Sprintf("f%03d.go", i)), []byte(src), 0o644))
	}
	return dir
}

func TestStressEngine(t *testing.T) {
	dir := writeCorpus(t)

	registry := providers.NewRegistry()
	registry.Register(golang.New())
	g, ok := registry.Get("go")
	require.True(t, ok)

	files := core.NewFileWalker(core.Scope{Root: dir, Include: []string{"**/*.go"}})
	ctx := context.Background()

	var baseline []string
	for i := range 20 {
		engine := core.NewEngine(core.WithWorkers(1 + i%16))
		report, err := engine.Run(ctx, core.Request{
			Source:  "`fmt.Println($...ARGS)`",
			Grammar: g,
			Files:   files,
		})
		require.NoError(t, err, "iteration %d", i)
		require.Equal(t, 2*fileCount, report.Stats.Matches, "iteration %d", i)
		require.Empty(t, report.Errors)

		var got []string
		for _, m := range report.Matches {
			got = append(got, fmt.Sprintf("%s:%d:%d", m.Path, m.Start.Line, m.Start.Column))
		}
		if baseline == nil {
			baseline = got
		}
		require.Equal(t, baseline, got, "iteration %d: order must not depend on workers", i)
	}

	report, err := core.NewEngine(core.WithWorkers(16)).Run(ctx, core.Request{
		Source:  "`fmt.Println($X)` => `log.Println($X)`",
		Grammar: g,
		Files:   files,
		Mode:    core.ModeRewrite,
	})
	require.NoError(t, err)
	assert.Equal(t, fileCount, report.Stats.Rewritten)

	stats := g.Stats()
	assert.Zero(t, stats.Active, "parser pool must drain")
	assert.Equal(t, stats.BorrowCount, stats.ReturnCount)
}
