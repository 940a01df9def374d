package fetch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when Record format changes
const indexSchemaVersion uint16 = 1

// Record describes one completed fetch. Records are diagnostic metadata
// (surfaced by summaries and verbose logging); cache-hit decisions are
// made from the checkout directory itself, never from the index.
type Record struct {
	Schema uint16

	Name   string
	Repo   string
	Rev    string
	Branch string

	// Shallow marks depth-1 clones (no pinned revision).
	Shallow bool
	// Entries is the number of top-level entries in the checkout at
	// fetch time, excluding VCS metadata.
	Entries uint32

	FetchedAt time.Time
}

// Index persists fetch records under <cache>/.index, one msgpack file per
// grammar. Thread-safe for concurrent workers.
type Index struct {
	mu  sync.Mutex
	dir string
}

// OpenIndex initializes the index directory inside the grammar cache.
func OpenIndex(cacheDir string) (*Index, error) {
	dir := filepath.Join(cacheDir, ".index")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create fetch index: %w", err)
	}
	return &Index{dir: dir}, nil
}

func (ix *Index) pathFor(name string) string {
	return filepath.Join(ix.dir, name+".mp")
}

// Put serializes and atomically replaces the record for rec.Name.
func (ix *Index) Put(rec Record) error {
	if ix == nil {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec.Schema = indexSchemaVersion
	p := ix.pathFor(rec.Name)
	f, err := os.CreateTemp(ix.dir, "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if err := msgpack.NewEncoder(f).Encode(&rec); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads the record for name. Missing or stale-schema records report
// ok=false without error, matching cache semantics.
func (ix *Index) Get(name string) (Record, bool, error) {
	if ix == nil {
		return Record{}, false, nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	data, err := os.ReadFile(ix.pathFor(name)) // #nosec G304 -- path is cache-internal
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Record{}, false, nil
	}
	if rec.Schema != indexSchemaVersion {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Drop removes the record for name, if any.
func (ix *Index) Drop(name string) error {
	if ix == nil {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	err := os.Remove(ix.pathFor(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
