package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreSetGet(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "store.json"), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	type record struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name string
		key  string
		val  record
	}{
		{name: "simple key", key: "pattern:github.com", val: record{Name: "github"}},
		{name: "nested prefix key", key: "antipattern:reddit.com:rate_limited", val: record{Name: "reddit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := fs.Set(ctx, tt.key, tt.val); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			var got record
			ok, err := fs.Get(ctx, tt.key, &got)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !ok {
				t.Fatalf("Get() found = false, want true")
			}
			if got.Name != tt.val.Name {
				t.Errorf("Get() = %+v, want %+v", got, tt.val)
			}
		})
	}
}

func TestFileStoreDeleteAndCount(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "store.json"), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	_ = fs.Set(ctx, "pattern:a", "1")
	_ = fs.Set(ctx, "pattern:b", "2")
	_ = fs.Set(ctx, "other:c", "3")

	n, err := fs.Count(ctx, "pattern:")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	if err := fs.Delete(ctx, "pattern:a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := fs.Has(ctx, "pattern:a"); ok {
		t.Error("Has() = true after Delete(), want false")
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	ctx := context.Background()

	fs, err := NewFileStore(path, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := fs.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewFileStore(path, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileStore() reopen error = %v", err)
	}
	var got string
	ok, err := reopened.Get(ctx, "k", &got)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || got != "v" {
		t.Errorf("Get() = (%q, %v), want (\"v\", true)", got, ok)
	}
}

func TestFileStoreFlushDrainsPendingWrite(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "store.json"), time.Hour)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	_ = fs.Set(ctx, "a", "1")
	_ = fs.Set(ctx, "b", "2")
	_ = fs.Set(ctx, "c", "3")
	if stats := fs.Stats(); stats.SaveRequests != 3 || stats.ActualWrites != 0 {
		t.Fatalf("Stats() before Flush() = %+v, want SaveRequests=3 ActualWrites=0", stats)
	}

	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	stats := fs.Stats()
	if stats.ActualWrites != 1 {
		t.Errorf("ActualWrites after Flush() = %d, want 1", stats.ActualWrites)
	}
	if stats.DebouncedSkips != 2 {
		t.Errorf("DebouncedSkips = %d, want 2", stats.DebouncedSkips)
	}

	var got string
	if ok, err := fs.Get(ctx, "c", &got); err != nil || !ok || got != "3" {
		t.Errorf("Get(c) = (%q, %v, %v), want (\"3\", true, nil)", got, ok, err)
	}
}

func TestFileStoreCancelDiscardsPendingWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	fs, err := NewFileStore(path, time.Hour)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	_ = fs.Set(ctx, "k", "v")
	fs.Cancel()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("store file exists after Cancel(), want no write to have happened")
	}
	if stats := fs.Stats(); stats.ActualWrites != 0 {
		t.Errorf("ActualWrites after Cancel() = %d, want 0", stats.ActualWrites)
	}
}

func TestFileStoreSaveImmediateBypassesDebounce(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "store.json"), time.Hour)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	if err := fs.SaveImmediate(ctx, "k", "first"); err != nil {
		t.Fatalf("SaveImmediate() error = %v", err)
	}
	var got string
	if ok, err := fs.Get(ctx, "k", &got); err != nil || !ok || got != "first" {
		t.Fatalf("Get(k) = (%q, %v, %v), want (\"first\", true, nil)", got, ok, err)
	}
	if stats := fs.Stats(); stats.ActualWrites != 1 {
		t.Errorf("ActualWrites after SaveImmediate() = %d, want 1", stats.ActualWrites)
	}

	// A pending debounced write from Set should be invalidated by the
	// immediate save that follows it.
	_ = fs.Set(ctx, "k", "queued")
	if err := fs.SaveImmediate(ctx, "k", "final"); err != nil {
		t.Fatalf("SaveImmediate() error = %v", err)
	}
	if ok, err := fs.Get(ctx, "k", &got); err != nil || !ok || got != "final" {
		t.Fatalf("Get(k) = (%q, %v, %v), want (\"final\", true, nil)", got, ok, err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if stats := fs.Stats(); stats.ActualWrites != 2 {
		t.Errorf("ActualWrites after Close() = %d, want 2 (debounced Set should not add a third)", stats.ActualWrites)
	}
}

func TestFileStoreDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "store.json"), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := fs.Set(ctx, "k", i); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	stats := fs.Stats()
	if stats.SaveRequests != 10 {
		t.Errorf("SaveRequests = %d, want 10", stats.SaveRequests)
	}
	if stats.ActualWrites != 0 {
		t.Errorf("ActualWrites = %d before debounce window elapses, want 0", stats.ActualWrites)
	}

	if err := fs.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if fs.Stats().ActualWrites != 1 {
		t.Errorf("ActualWrites after Close() = %d, want 1", fs.Stats().ActualWrites)
	}
}
