package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

// storeFactories lets every behavioural test run against each local backend.
var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(*testing.T) Store { return NewMemoryStore() },
	"local": func(t *testing.T) Store {
		s, err := NewLocalStore(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to create local store: %v", err)
		}
		return s
	},
}

// TestStoreBehaviour tests the contract shared by all Store implementations
func TestStoreBehaviour(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Run("missing blob", func(t *testing.T) {
				store := newStore(t)

				_, err := store.Get(ctx, "songs.json")
				if !IsNotFound(err) {
					t.Errorf("Expected not-found error, got %v", err)
				}
			})

			t.Run("put and get", func(t *testing.T) {
				store := newStore(t)

				if err := store.Put(ctx, "songs.json", []byte("[]")); err != nil {
					t.Fatalf("Failed to put blob: %v", err)
				}

				data, err := store.Get(ctx, "songs.json")
				if err != nil {
					t.Fatalf("Failed to get blob: %v", err)
				}
				if !bytes.Equal(data, []byte("[]")) {
					t.Errorf("Expected '[]', got %s", string(data))
				}
			})

			t.Run("put replaces previous content", func(t *testing.T) {
				store := newStore(t)

				_ = store.Put(ctx, "songs.json", []byte(`[{"id":1},{"id":2}]`))
				if err := store.Put(ctx, "songs.json", []byte(`[]`)); err != nil {
					t.Fatalf("Failed to overwrite blob: %v", err)
				}

				data, _ := store.Get(ctx, "songs.json")
				if string(data) != "[]" {
					t.Errorf("Expected shorter content to fully replace the blob, got %s", string(data))
				}
			})

			t.Run("delete", func(t *testing.T) {
				store := newStore(t)

				_ = store.Put(ctx, "songs.json", []byte("x"))
				if err := store.Delete(ctx, "songs.json"); err != nil {
					t.Fatalf("Failed to delete blob: %v", err)
				}
				if _, err := store.Get(ctx, "songs.json"); !IsNotFound(err) {
					t.Errorf("Expected not-found after delete, got %v", err)
				}
				if err := store.Delete(ctx, "songs.json"); err != nil {
					t.Errorf("Delete of missing blob should not error, got %v", err)
				}
			})

			t.Run("list by prefix", func(t *testing.T) {
				store := newStore(t)

				for _, n := range []string{"songs.json", "songs.json.zst", "other.json"} {
					_ = store.Put(ctx, n, []byte("x"))
				}

				names, err := store.List(ctx, "songs")
				if err != nil {
					t.Fatalf("Failed to list: %v", err)
				}
				sort.Strings(names)
				if len(names) != 2 || names[0] != "songs.json" || names[1] != "songs.json.zst" {
					t.Errorf("Unexpected listing %v", names)
				}
			})

			t.Run("concurrent puts leave one complete value", func(t *testing.T) {
				store := newStore(t)

				var wg sync.WaitGroup
				for i := 0; i < 20; i++ {
					wg.Add(1)
					go func(n int) {
						defer wg.Done()
						payload := bytes.Repeat([]byte(fmt.Sprintf("%02d", n)), 512)
						if err := store.Put(ctx, "songs.json", payload); err != nil {
							t.Errorf("Put %d failed: %v", n, err)
						}
					}(i)
				}
				wg.Wait()

				data, err := store.Get(ctx, "songs.json")
				if err != nil {
					t.Fatalf("Failed to get blob: %v", err)
				}
				if len(data) != 1024 || !bytes.Equal(data, bytes.Repeat(data[:2], 512)) {
					t.Errorf("Blob is a mix of concurrent writes")
				}
			})
		})
	}
}

// TestLocalStoreLeavesNoTempFiles tests the temp-then-rename write path
func TestLocalStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.Put(context.Background(), "songs.json", []byte(fmt.Sprint(i))); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "songs.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only songs.json, found %v", names)
	}
}

// TestMemoryStoreCopies tests that stored blobs are isolated from callers
func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	payload := []byte("123")
	_ = store.Put(ctx, "a", payload)
	payload[0] = 'x'

	data, _ := store.Get(ctx, "a")
	if string(data) != "123" {
		t.Errorf("Put kept the caller's buffer")
	}

	data[0] = 'x'
	again, _ := store.Get(ctx, "a")
	if string(again) != "123" {
		t.Errorf("Get returned a shared buffer")
	}
}

// TestLocalStoreListsTempFiles tests that leftovers of an interrupted Put are visible to List
func TestLocalStoreListsTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".songs.json.tmp-123"), []byte("partial"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	_ = store.Put(context.Background(), "songs.json", []byte("[]"))

	names, err := store.List(context.Background(), ".songs.json.tmp-")
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(names) != 1 || names[0] != ".songs.json.tmp-123" {
		t.Errorf("Unexpected listing %v", names)
	}
}
