package fetch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIndex_PutGetDrop(t *testing.T) {
	ix, err := OpenIndex(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := ix.Get("go"); ok || err != nil {
		t.Fatalf("Get on empty index: ok=%v err=%v", ok, err)
	}

	rec := Record{
		Name:      "go",
		Repo:      "https://example.com/go",
		Rev:       "abc123",
		Entries:   4,
		FetchedAt: time.Now().UTC(),
	}
	if err := ix.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := ix.Get("go")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Repo != rec.Repo || got.Rev != rec.Rev || got.Entries != 4 {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.Schema != indexSchemaVersion {
		t.Errorf("Schema = %d, want %d", got.Schema, indexSchemaVersion)
	}

	if err := ix.Drop("go"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, ok, _ := ix.Get("go"); ok {
		t.Error("record should be gone after Drop")
	}
	if err := ix.Drop("go"); err != nil {
		t.Errorf("Drop should be idempotent: %v", err)
	}
}

func TestIndex_IgnoresGarbageRecords(t *testing.T) {
	cache := t.TempDir()
	ix, err := OpenIndex(cache)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cache, ".index", "bad.mp")
	if err := os.WriteFile(path, []byte("not msgpack"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := ix.Get("bad"); ok || err != nil {
		t.Errorf("garbage record should read as absent: ok=%v err=%v", ok, err)
	}
}

func TestIndex_NilSafe(t *testing.T) {
	var ix *Index
	if err := ix.Put(Record{Name: "x"}); err != nil {
		t.Errorf("nil Put: %v", err)
	}
	if _, ok, err := ix.Get("x"); ok || err != nil {
		t.Errorf("nil Get: ok=%v err=%v", ok, err)
	}
	if err := ix.Drop("x"); err != nil {
		t.Errorf("nil Drop: %v", err)
	}
}
