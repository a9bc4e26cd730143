package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termfx/structq/providers"
	"github.com/termfx/structq/providers/plain"
)

func TestLazyAndMemoized(t *testing.T) {
	c := New(Memory{"a.conf": "listen 80\n"}, plain.New())

	f := c.Open("a.conf")
	assert.Same(t, f, c.Open("a.conf"))
	assert.Equal(t, Stats{Files: 1}, c.Stats(), "Open does no I/O")

	content, err := f.Content()
	require.NoError(t, err)
	assert.Equal(t, "listen 80\n", string(content))

	tr, err := f.Tree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "document", tr.Root().Kind())

	again, err := f.Tree(context.Background())
	require.NoError(t, err)
	assert.Same(t, tr, again)

	md, err := f.Metadata()
	require.NoError(t, err)
	assert.EqualValues(t, 10, md.Size)

	assert.Equal(t, Stats{Files: 1, Stats: 1, Reads: 1, Parses: 1}, c.Stats())
}

func TestConcurrentCallersCoalesce(t *testing.T) {
	g := plain.New()
	c := New(Memory{"a.conf": "a = 1\nb = 2\n"}, g)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := c.Open("a.conf").Tree(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, tr)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, c.Stats().Reads)
	assert.EqualValues(t, 1, c.Stats().Parses)
	assert.EqualValues(t, 1, g.Stats().Parses)
}

func TestReadError(t *testing.T) {
	c := New(Memory{}, plain.New())
	f := c.Open("missing.conf")

	_, err := f.Content()
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = f.Tree(context.Background())
	assert.ErrorAs(t, err, &ioErr, "tree reports the read failure")

	_, err = f.Metadata()
	assert.ErrorAs(t, err, &ioErr)
	assert.EqualValues(t, 1, c.Stats().Reads)
	assert.EqualValues(t, 0, c.Stats().Parses)
}

func TestParseError(t *testing.T) {
	c := New(Memory{"bad.conf": "server {\n"}, plain.New())

	_, err := c.Open("bad.conf").Tree(context.Background())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, plain.Language, parseErr.Language)
	assert.Equal(t, "bad.conf", parseErr.Path)

	var syntaxErr *providers.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestCanceledContext(t *testing.T) {
	c := New(Memory{"a.conf": "x\n"}, plain.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Open("a.conf").Tree(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.EqualValues(t, 0, c.Stats().Parses)

	tr, err := c.Open("a.conf").Tree(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestOSSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.conf")
	require.NoError(t, os.WriteFile(path, []byte("port 80\n"), 0o644))

	md, err := OS{}.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 8, md.Size)

	data, err := OS{}.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "port 80\n", string(data))

	_, err = OS{}.Stat(dir)
	assert.ErrorIs(t, err, fs.ErrInvalid)

	_, err = OS{}.ReadFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
