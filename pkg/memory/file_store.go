package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists entries as JSON lines in a file. Writes append; on read
// the last line for each key wins.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a file-backed memory store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

// Write appends a JSON-encoded entry to the file.
func (f *FileStore) Write(_ context.Context, entry Entry) error {
	entry = normalize(entry)

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	return enc.Encode(entry)
}

// ReadByKey implements Store.
func (f *FileStore) ReadByKey(_ context.Context, key string) (Entry, bool, error) {
	entries, err := f.load()
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := entries[key]
	return entry, ok, nil
}

// ReadRecent implements Store.
func (f *FileStore) ReadRecent(_ context.Context, limit int) ([]Entry, error) {
	out, err := f.list(func(Entry) bool { return true })
	if err != nil {
		return nil, err
	}
	return Truncate(out, limit), nil
}

// SearchByTag implements Store.
func (f *FileStore) SearchByTag(_ context.Context, tag string) ([]Entry, error) {
	return f.list(func(e Entry) bool { return e.HasTag(tag) })
}

func (f *FileStore) list(match func(Entry) bool) ([]Entry, error) {
	entries, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if match(e) {
			out = append(out, e)
		}
	}
	SortRecent(out)
	return out, nil
}

func (f *FileStore) load() (map[string]Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries := make(map[string]Entry)
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("memory: %s line %d: %w", f.path, line, err)
		}
		entries[entry.Key] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
