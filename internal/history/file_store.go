package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps the log in memory and rewrites a JSON array file after
// every mutation.
type FileStore struct {
	path     string
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	records []Record
}

// NewFileStore loads path if it exists. A corrupt file is logged and treated
// as empty; it is overwritten on the next mutation.
func NewFileStore(path string, capacity int) *FileStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	f := &FileStore{
		path:     path,
		capacity: capacity,
		now:      time.Now,
	}

	recs, err := f.load()
	if err != nil {
		log.Warn("Failed to load conversation history, starting empty", "path", path, "err", err)
	}
	f.records = tail(recs, capacity)

	return f
}

func (f *FileStore) Append(_ context.Context, userInput, response string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = append(f.records, pair(f.now(), userInput, response)...)
	if len(f.records) > f.capacity {
		f.records = tail(f.records, f.capacity)
	}

	return f.save()
}

func (f *FileStore) Recent(_ context.Context, k int) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return tail(f.records, k), nil
}

func (f *FileStore) Len(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = nil
	return f.save()
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) load() ([]Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return recs, nil
}

func (f *FileStore) save() error {
	recs := f.records
	if recs == nil {
		recs = []Record{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return writeFileAtomic(f.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
