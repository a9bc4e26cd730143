package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, ".structq.tmp", config.TempSuffix)
	assert.False(t, config.Backup)
	assert.False(t, config.Fsync)
	assert.Equal(t, 5*time.Second, config.LockTimeout)

	w := New(Config{})
	assert.Equal(t, ".structq.tmp", w.config.TempSuffix)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.conf")
	w := New(DefaultConfig())

	backup, err := w.WriteFile(path, []byte("listen 80\n"))
	require.NoError(t, err)
	assert.Empty(t, backup)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "listen 80\n", string(data))

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "lock released")
	_, err = os.Stat(path + ".structq.tmp")
	assert.True(t, os.IsNotExist(err), "temp file renamed")
}

func TestWriteFileBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	config := DefaultConfig()
	config.Backup = true
	config.Fsync = true
	backup, err := New(config).WriteFile(path, []byte("new"))
	require.NoError(t, err)
	require.NotEmpty(t, backup)
	assert.True(t, strings.HasPrefix(backup, path+".bak."))

	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "mode preserved")
}

func TestWriteFileInvalidPath(t *testing.T) {
	_, err := New(DefaultConfig()).WriteFile(filepath.Join(t.TempDir(), "missing", "f.txt"), []byte("x"))
	assert.Error(t, err)
}

func TestStaleLockIsBroken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.txt")
	require.NoError(t, os.WriteFile(path+".lock", []byte("not-a-pid"), 0o644))

	_, err := New(DefaultConfig()).WriteFile(path, []byte("content"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestLiveLockTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.txt")
	require.NoError(t, os.WriteFile(path+".lock", fmt.Appendf(nil, "%d\n", os.Getpid()), 0o644))

	config := DefaultConfig()
	config.LockTimeout = 20 * time.Millisecond
	_, err := New(config).WriteFile(path, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestIsLockStale(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "x.lock")
	assert.True(t, isLockStale(lockPath), "missing lock")

	require.NoError(t, os.WriteFile(lockPath, fmt.Appendf(nil, "%d", os.Getpid()), 0o644))
	assert.False(t, isLockStale(lockPath), "our own pid")
}

func TestIsProcessAlive(t *testing.T) {
	if !isProcessAlive(os.Getpid()) {
		t.Errorf("current process (PID %d) should be alive", os.Getpid())
	}
	for _, pid := range []int{-1, 0, 999999999} {
		if isProcessAlive(pid) {
			t.Errorf("PID %d should be reported as dead", pid)
		}
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	files := []File{
		{Path: filepath.Join(dir, "a.txt"), Content: []byte("a")},
		{Path: filepath.Join(dir, "nope", "b.txt"), Content: []byte("b")},
		{Path: filepath.Join(dir, "c.txt"), Content: []byte("c")},
	}
	written, err := New(DefaultConfig()).WriteAll(files)
	assert.Equal(t, 2, written)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.txt")

	data, err := os.ReadFile(files[2].Path)
	require.NoError(t, err)
	assert.Equal(t, "c", string(data))
}

func TestConcurrentWritersOnDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	w := New(DefaultConfig())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.WriteFile(filepath.Join(dir, fmt.Sprintf("f%d.txt", i)), []byte("ok"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestCleanupReleasesLocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "held.txt")
	w := New(DefaultConfig())
	require.NoError(t, w.acquireLock(path))
	_, err := os.Stat(path + ".lock")
	require.NoError(t, err)

	w.Cleanup()
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, w.locks)
}
