// Package writer writes rewritten files to disk atomically.
package writer

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// fileLock is an exclusive lock held through a sibling ".lock" file.
type fileLock struct {
	file *os.File
	path string
}

// Config controls how files are written.
type Config struct {
	Fsync       bool          // sync the temp file before renaming
	LockTimeout time.Duration // max wait for another process's lock
	TempSuffix  string
	Backup      bool // keep a timestamped copy of the original
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		Fsync:       false,
		LockTimeout: 5 * time.Second,
		TempSuffix:  ".structq.tmp",
		Backup:      false,
	}
}

// AtomicWriter replaces files by writing a temp file and renaming it over
// the original, holding a lock file for the duration.
type AtomicWriter struct {
	config Config
	locks  map[string]*fileLock
	mu     sync.Mutex
}

// File is one file to write.
type File struct {
	Path    string
	Content []byte
}

// New creates a writer.
func New(config Config) *AtomicWriter {
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultConfig().TempSuffix
	}
	return &AtomicWriter{
		config: config,
		locks:  make(map[string]*fileLock),
	}
}

// WriteFile atomically replaces path with content, keeping the original
// file mode. It returns the backup path when a backup was made.
func (aw *AtomicWriter) WriteFile(path string, content []byte) (string, error) {
	if err := aw.acquireLock(path); err != nil {
		return "", fmt.Errorf("lock %s: %w", path, err)
	}
	defer aw.releaseLock(path)

	var mode os.FileMode = 0o644
	info, statErr := os.Stat(path)
	if statErr == nil {
		mode = info.Mode().Perm()
	}

	var backupPath string
	if aw.config.Backup && statErr == nil {
		var err error
		if backupPath, err = aw.createBackup(path, mode); err != nil {
			return "", fmt.Errorf("backup %s: %w", path, err)
		}
	}

	tempPath := path + aw.config.TempSuffix
	tmp, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("write %s: %w", tempPath, err)
	}
	if aw.config.Fsync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			os.Remove(tempPath)
			return "", fmt.Errorf("sync %s: %w", tempPath, err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("close %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename %s: %w", tempPath, err)
	}
	return backupPath, nil
}

// WriteAll writes every file and returns how many succeeded. Failures do not
// stop later files; their errors are joined.
func (aw *AtomicWriter) WriteAll(files []File) (int, error) {
	var errs []error
	written := 0
	for _, f := range files {
		if _, err := aw.WriteFile(f.Path, f.Content); err != nil {
			errs = append(errs, err)
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// acquireLock creates path's lock file, waiting while a live process holds
// it.
func (aw *AtomicWriter) acquireLock(path string) error {
	lockPath := path + ".lock"
	deadline := time.Now().Add(aw.config.LockTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			// PID lets other processes detect a stale lock.
			fmt.Fprintf(f, "%d\n", os.Getpid())
			aw.mu.Lock()
			aw.locks[path] = &fileLock{file: f, path: lockPath}
			aw.mu.Unlock()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock file: %w", err)
		}
		if isLockStale(lockPath) {
			os.Remove(lockPath)
			continue
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("timeout waiting for lock on %s", path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (aw *AtomicWriter) releaseLock(path string) {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	aw.releaseLocked(path)
}

// releaseLocked requires aw.mu.
func (aw *AtomicWriter) releaseLocked(path string) {
	lock, ok := aw.locks[path]
	if !ok {
		return
	}
	lock.file.Close()
	os.Remove(lock.path)
	delete(aw.locks, path)
}

// isLockStale reports whether the lock file names a process that is gone.
func isLockStale(lockPath string) bool {
	content, err := os.ReadFile(lockPath)
	if err != nil {
		return true
	}
	var pid int
	if _, err := fmt.Sscanf(string(content), "%d", &pid); err != nil {
		return true
	}
	return !isProcessAlive(pid)
}

func (aw *AtomicWriter) createBackup(path string, mode os.FileMode) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	backupPath := fmt.Sprintf("%s.bak.%s", path, time.Now().Format("20060102-150405.000000000"))
	return backupPath, os.WriteFile(backupPath, content, mode)
}

// Cleanup releases every lock still held.
func (aw *AtomicWriter) Cleanup() {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	for path := range aw.locks {
		aw.releaseLocked(path)
	}
}
