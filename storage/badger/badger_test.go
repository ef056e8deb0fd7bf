package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/catvol/storage"

	"github.com/twinj/uuid"
)

func TestInMemoryStore(t *testing.T) {
	store, created, err := Engine{}.NewStore(storage.Config{InMemory: true})
	if err != nil {
		t.Fatalf("Couldn't open in-memory badger: %v\n", err)
	}
	defer store.Close()
	if !created {
		t.Errorf("Expected in-memory store to be reported as created\n")
	}
	storage.TestStoreBasics(t, store)
}

func TestPersistentStore(t *testing.T) {
	path := filepath.Join(os.TempDir(), "catvol-test-badger-"+uuid.NewV4().String())
	defer os.RemoveAll(path)

	e, err := storage.GetEngine("badger")
	if err != nil {
		t.Fatalf("badger engine not registered: %v\n", err)
	}
	store, created, err := e.NewStore(storage.Config{Path: path})
	if err != nil {
		t.Fatalf("Couldn't open badger @ %s: %v\n", path, err)
	}
	if !created {
		t.Errorf("Expected new directory to be created at %s\n", path)
	}
	ctx := storage.NewContext("7_1")
	if err := store.Put(ctx, "manifest", []byte("v1")); err != nil {
		t.Fatalf("Couldn't put: %v\n", err)
	}
	store.Close()

	store, created, err = e.NewStore(storage.Config{Path: path})
	if err != nil {
		t.Fatalf("Couldn't reopen badger @ %s: %v\n", path, err)
	}
	defer store.Close()
	if created {
		t.Errorf("Reopened store should not be reported as created\n")
	}
	v, err := store.Get(ctx, "manifest")
	if err != nil {
		t.Fatalf("Couldn't get after reopen: %v\n", err)
	}
	if string(v) != "v1" {
		t.Fatalf("Expected persisted value %q, got %q\n", "v1", v)
	}
}

func TestMissingPath(t *testing.T) {
	if _, _, err := (Engine{}).NewStore(storage.Config{}); err == nil {
		t.Fatalf("Expected error when no path is given\n")
	}
}
