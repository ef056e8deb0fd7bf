/*
	Package storage provides a unified interface to the key-value engines that hold
	catvol's image-like data: component trees, segmentation volumes and raw/label
	image volumes.

	Each engine registers itself via RegisterEngine() in an init() so that importing
	the engine package makes it available by name:

		import _ "github.com/janelia-flyem/catvol/storage/badger"

	Keys are paths within a volume namespace (see Context), mirroring the group and
	dataset layout of the HDF5 files the volumes were originally kept in, e.g.
	"scale/0/section/12/components".  Values are simply []byte at this level.  We
	assume serialization and compression occur above the storage level.
*/
package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/blang/semver"
)

// Engine is a storage engine that can create a Store from a configuration.
type Engine interface {
	GetName() string
	GetDescription() string
	GetSemVer() semver.Version

	// NewStore returns a new store and whether it was newly created.
	NewStore(Config) (Store, bool, error)
}

// Config is the [store] section of the server TOML.
type Config struct {
	Engine string
	Path   string // directory for local engines
	Bucket string // bucket URL for the blob engine, e.g. "gs://mybucket", "mem://"

	// InMemory requests a non-persistent store, used for testing.
	InMemory bool
}

// Store is a key-value store holding many volume namespaces.
type Store interface {
	fmt.Stringer

	// Get returns the value at the path or nil if there is no such key.
	Get(ctx Context, path string) ([]byte, error)

	Put(ctx Context, path string, value []byte) error

	// Delete removes the path.  Deleting a missing key is not an error.
	Delete(ctx Context, path string) error

	// Keys returns the sorted paths within the namespace that begin with prefix.
	Keys(ctx Context, prefix string) ([]string, error)

	// DeletePrefix removes every path within the namespace that begins with prefix.
	DeletePrefix(ctx Context, prefix string) error

	// NewBatch returns a batch of mutations applied on Commit().
	NewBatch(ctx Context) Batch

	Close()
}

// Batch groups puts and deletes within one namespace.
type Batch interface {
	Put(path string, value []byte)
	Delete(path string)
	Commit() error
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// RegisterEngine makes a storage engine available by name.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[e.GetName()] = e
}

// GetEngine returns the registered engine with the given name.
func GetEngine(name string) (Engine, error) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	e, found := engines[name]
	if !found {
		return nil, fmt.Errorf("no storage engine %q available (have %v)", name, engineNames())
	}
	return e, nil
}

// EnginesAvailable returns a description of each registered engine.
func EnginesAvailable() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	var out []string
	for _, name := range engineNames() {
		e := engines[name]
		out = append(out, fmt.Sprintf("%s [%s]: %s", name, e.GetSemVer(), e.GetDescription()))
	}
	return out
}

func engineNames() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns a store for the configuration using the named engine.
func Open(c Config) (Store, error) {
	if c.Engine == "" {
		c.Engine = "badger"
	}
	e, err := GetEngine(c.Engine)
	if err != nil {
		return nil, err
	}
	store, created, err := e.NewStore(c)
	if err != nil {
		return nil, catvol.StoreErr("open "+c.Engine, err)
	}
	if created {
		catvol.Infof("Created new %s store: %s\n", c.Engine, store)
	} else {
		catvol.Infof("Opened existing %s store: %s\n", c.Engine, store)
	}
	return store, nil
}
