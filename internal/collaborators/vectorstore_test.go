package collaborators

import (
	"context"
	"testing"
)

func TestVectorStoreQueryRanksBySimilarity(t *testing.T) {
	s := NewVectorStore()
	ctx := context.Background()

	_ = s.Upsert(ctx, "a", []float32{1, 0, 0}, nil)
	_ = s.Upsert(ctx, "b", []float32{0, 1, 0}, nil)
	_ = s.Upsert(ctx, "c", []float32{0.9, 0.1, 0}, nil)

	ids, err := s.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Query() len = %d, want 2", len(ids))
	}
	if ids[0] != "a" {
		t.Errorf("Query()[0] = %q, want a (exact match)", ids[0])
	}
	if ids[1] != "c" {
		t.Errorf("Query()[1] = %q, want c (next closest)", ids[1])
	}
}

func TestSessionStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSessionStore(dir + "/sessions.db")
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if _, found, err := s.Load(ctx, "example.com"); err != nil || found {
		t.Fatalf("Load() before Save() = (found=%v, err=%v), want (false, nil)", found, err)
	}

	if err := s.Save(ctx, "example.com", []byte("cookie-jar-bytes")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, found, err := s.Load(ctx, "example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("Load() found = false, want true")
	}
	if string(data) != "cookie-jar-bytes" {
		t.Errorf("Load() = %q, want cookie-jar-bytes", data)
	}
}
