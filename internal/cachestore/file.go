package cachestore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

const (
	entryFileExt    = ".json"
	maxNameSegment  = 80
	lockFileName    = ".lock"
	tempFilePattern = ".entry-*.tmp"
)

// FileBackend stores one JSON file per (key, scope) in a directory. Files are
// replaced by rename so readers never observe a partial write. Writers take
// an exclusive lock file, which lets several server processes share the
// directory.
type FileBackend struct {
	dir  string
	mu   sync.RWMutex
	lock *flock.Flock
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates dir if needed and returns a backend rooted there.
func NewFileBackend(dir string) (*FileBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileBackend{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

func (f *FileBackend) Name() string { return "file" }

// Dir returns the directory holding the entry files.
func (f *FileBackend) Dir() string { return f.dir }

func (f *FileBackend) Find(_ context.Context, key, scope string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	e, err := readEntryFile(f.entryPath(key, scope))
	if err != nil {
		return nil, err
	}
	if e.CacheKey != key || e.Scope != scope {
		return nil, ErrNotFound
	}
	return e, nil
}

func (f *FileBackend) Upsert(_ context.Context, e Entry) error {
	if e.CacheKey == "" {
		return ErrInvalidKey
	}
	unlock, err := f.exclusive()
	if err != nil {
		return err
	}
	defer unlock()

	path := f.entryPath(e.CacheKey, e.Scope)
	if prev, err := readEntryFile(path); err == nil && prev.CacheKey == e.CacheKey && prev.Scope == e.Scope {
		e.CreatedAt = prev.CreatedAt
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return writeFileAtomic(f.dir, path, data)
}

func (f *FileBackend) DeleteWhere(_ context.Context, key, scopePrefix, excludeScope string) (int, error) {
	if key == "" {
		return 0, ErrInvalidKey
	}
	unlock, err := f.exclusive()
	if err != nil {
		return 0, err
	}
	defer unlock()

	entries, paths, err := f.scan(key)
	if err != nil {
		return 0, err
	}
	n := 0
	for i, e := range entries {
		if e.Scope == excludeScope || !strings.HasPrefix(e.Scope, scopePrefix) {
			continue
		}
		if err := os.Remove(paths[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, fmt.Errorf("remove cache file: %w", err)
		}
		n++
	}
	return n, nil
}

func (f *FileBackend) Delete(_ context.Context, key, scope string) error {
	if key == "" {
		return ErrInvalidKey
	}
	unlock, err := f.exclusive()
	if err != nil {
		return err
	}
	defer unlock()

	err = os.Remove(f.entryPath(key, scope))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

func (f *FileBackend) List(_ context.Context, key string) ([]Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, _, err := f.scan(key)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func (f *FileBackend) Close() error {
	return f.lock.Close()
}

func (f *FileBackend) exclusive() (func(), error) {
	f.mu.Lock()
	if err := f.lock.Lock(); err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("lock cache directory: %w", err)
	}
	return func() {
		_ = f.lock.Unlock()
		f.mu.Unlock()
	}, nil
}

// scan reads the entry files of key, or all entry files when key is empty.
// Unreadable files are skipped.
func (f *FileBackend) scan(key string) ([]Entry, []string, error) {
	dirEntries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read cache directory: %w", err)
	}
	prefix := ""
	if key != "" {
		prefix = keyFilePrefix(key)
	}
	var (
		entries []Entry
		paths   []string
	)
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || filepath.Ext(name) != entryFileExt || !strings.HasPrefix(name, prefix) {
			continue
		}
		path := filepath.Join(f.dir, name)
		e, err := readEntryFile(path)
		if err != nil {
			continue
		}
		if key != "" && e.CacheKey != key {
			continue
		}
		entries = append(entries, *e)
		paths = append(paths, path)
	}
	return entries, paths, nil
}

func (f *FileBackend) entryPath(key, scope string) string {
	sum := sha1.Sum([]byte(key + "\x00" + scope))
	name := keyFilePrefix(key) + safeSegment(scope) + "-" + hex.EncodeToString(sum[:6]) + entryFileExt
	return filepath.Join(f.dir, name)
}

func keyFilePrefix(key string) string {
	return safeSegment(key) + "@"
}

// safeSegment maps s onto characters that are safe in file names on every
// platform. Collisions are resolved by the hash suffix and the stored key.
func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxNameSegment {
			break
		}
	}
	return b.String()
}

func readEntryFile(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, filepath.Base(path), err)
	}
	return &e, nil
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
