package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coastline/webextract/internal/logger"
	"go.uber.org/zap"
)

// Stats tracks the write behavior of a FileStore for observability.
type Stats struct {
	SaveRequests   int64
	ActualWrites   int64
	DebouncedSkips int64
	FailedWrites   int64
	LastWriteTime  int64
	LastError      string
}

// FileStore is a debounced, atomically-written JSON key/value store. Every
// Set schedules a write; writes within the debounce window collapse into
// one, and the file is replaced via temp-file-then-rename so a reader never
// observes a partial write.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	data     map[string]json.RawMessage
	debounce time.Duration

	writeMu   sync.Mutex
	pending   bool
	timer     *time.Timer
	closed    bool
	statsMu   sync.Mutex
	stats     Stats
}

// NewFileStore opens (or creates) the JSON store at path, loading any
// existing contents into memory.
func NewFileStore(path string, debounce time.Duration) (*FileStore, error) {
	fs := &FileStore{
		path:     path,
		data:     make(map[string]json.RawMessage),
		debounce: debounce,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create directory: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("persistence: read store file: %w", err)
	}
	if len(raw) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		return nil, fmt.Errorf("persistence: decode store file: %w", err)
	}
	return fs, nil
}

func (s *FileStore) Get(_ context.Context, key string, out interface{}) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("persistence: decode value for %q: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("persistence: encode value for %q: %w", key, err)
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	s.scheduleWrite()
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	s.scheduleWrite()
	return nil
}

func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *FileStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, ok := s.data[key]
	s.mu.RUnlock()
	return ok, nil
}

func (s *FileStore) Count(_ context.Context, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if prefix == "" {
		return len(s.data), nil
	}
	n := 0
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}

func (s *FileStore) Clear(_ context.Context, prefix string) error {
	s.mu.Lock()
	if prefix == "" {
		s.data = make(map[string]json.RawMessage)
	} else {
		for k := range s.data {
			if strings.HasPrefix(k, prefix) {
				delete(s.data, k)
			}
		}
	}
	s.mu.Unlock()
	s.scheduleWrite()
	return nil
}

// Transaction holds the store's write lock for the duration of fn, so no
// other Get/Set/Delete on this store can interleave with it. fn must not
// call this store's methods itself: they take the same lock and would
// deadlock. No write is scheduled on fn's behalf.
func (s *FileStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(ctx); err != nil {
		return err
	}
	return nil
}

// Flush drains any pending debounced write synchronously, per § 4.1's
// flush() operation. It is a no-op when no write is pending.
func (s *FileStore) Flush() error {
	s.writeMu.Lock()
	if !s.pending {
		s.writeMu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = false
	s.writeMu.Unlock()

	return s.flushNow()
}

// Cancel discards any pending debounced write without persisting it, per
// § 4.1's cancel() operation. The in-memory data is untouched; only the
// scheduled rename is dropped.
func (s *FileStore) Cancel() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = false
}

// SaveImmediate sets key to value and writes the store to disk synchronously,
// bypassing the debounce window and invalidating any write already pending,
// per § 4.1's saveImmediate() operation.
func (s *FileStore) SaveImmediate(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("persistence: encode value for %q: %w", key, err)
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()

	s.statsMu.Lock()
	s.stats.SaveRequests++
	s.statsMu.Unlock()

	s.writeMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = false
	s.writeMu.Unlock()

	return s.flushNow()
}

func (s *FileStore) scheduleWrite() {
	s.statsMu.Lock()
	s.stats.SaveRequests++
	s.statsMu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return
	}
	if s.pending {
		s.statsMu.Lock()
		s.stats.DebouncedSkips++
		s.statsMu.Unlock()
		return
	}
	s.pending = true
	s.timer = time.AfterFunc(s.debounce, s.flush)
}

// flush is the debounce timer callback: it clears the pending flag, then
// performs the write, logging and recording any failure.
func (s *FileStore) flush() {
	s.writeMu.Lock()
	s.pending = false
	s.writeMu.Unlock()

	_ = s.flushNow()
}

// flushNow serializes the current data and atomically renames it over path,
// independent of the pending/timer bookkeeping, which callers manage
// themselves.
func (s *FileStore) flushNow() error {
	s.mu.RLock()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		s.recordFailure(err)
		return err
	}

	if err := atomicWrite(s.path, raw); err != nil {
		s.recordFailure(err)
		return err
	}

	s.statsMu.Lock()
	s.stats.ActualWrites++
	s.stats.LastWriteTime = time.Now().UnixMilli()
	s.stats.LastError = ""
	s.statsMu.Unlock()
	return nil
}

func (s *FileStore) recordFailure(err error) {
	logger.Error("persistence: flush failed", zap.String("path", s.path), zap.Error(err))
	s.statsMu.Lock()
	s.stats.FailedWrites++
	s.stats.LastError = err.Error()
	s.statsMu.Unlock()
}

// Stats returns a snapshot of the store's write activity.
func (s *FileStore) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Close flushes any pending write synchronously and stops the timer.
func (s *FileStore) Close() error {
	s.writeMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	pending := s.pending
	s.pending = false
	s.closed = true
	s.writeMu.Unlock()

	if pending {
		return s.flushNow()
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persistence: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("persistence: rename temp file: %w", err)
	}
	return nil
}
