package badger

import (
	"fmt"
	"os"
	"time"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/storage"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"
)

const (
	// DefaultValueThreshold is the size of values in bytes that if exceeded get stored in
	// value log instead of the LSM tree.  Section planes are large so keep the tree lean.
	DefaultValueThreshold = 1 * catvol.Kilo

	// flushEvery is the number of mutations in a write batch before an intermediate flush.
	flushEvery = 10000
)

func init() {
	ver, err := semver.Make("0.1.0")
	if err != nil {
		catvol.Errorf("Unable to make semver in badger: %v\n", err)
	}
	e := Engine{"badger", "BadgerDB", ver}
	storage.RegisterEngine(e)
}

// --- Engine Implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// NewStore returns a badger store.  The passed Config must contain a Path unless
// InMemory is set.
func (e Engine) NewStore(config storage.Config) (storage.Store, bool, error) {
	return e.newDB(config)
}

func getOptions(config storage.Config) badger.Options {
	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(config.Path)
	}
	return opts.
		WithNumVersionsToKeep(1).
		WithSyncWrites(false).
		WithValueThreshold(DefaultValueThreshold).
		WithLogger(nil)
}

// Periodically sync to prevent too many writes from being buffered
// if server crashes.
func syncPeriodically(db *BadgerDB) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopSyncCh:
			catvol.Infof("Stopping sync goroutine for badger @ %s\n", db.directory)
			return
		case <-ticker.C:
			if err := db.bdp.Sync(); err != nil {
				catvol.Errorf("Sync of badger @ %s failed: %v\n", db.directory, err)
			}
		}
	}
}

// newDB returns a Badger backend, creating one at path if it doesn't exist.
func (e Engine) newDB(config storage.Config) (*BadgerDB, bool, error) {
	var created bool
	if !config.InMemory {
		if config.Path == "" {
			return nil, false, fmt.Errorf("%q must be specified for BadgerDB configuration", "path")
		}
		if _, err := os.Stat(config.Path); os.IsNotExist(err) {
			catvol.Infof("Database not already at path (%s). Creating directory...\n", config.Path)
			created = true
			if err := os.MkdirAll(config.Path, 0744); err != nil {
				return nil, true, fmt.Errorf("Can't make directory at %s: %v", config.Path, err)
			}
		}
	} else {
		created = true
	}

	opts := getOptions(config)
	db := &BadgerDB{
		directory: config.Path,
		inMemory:  config.InMemory,
	}
	timedLog := catvol.NewTimeLog()
	bdp, err := badger.Open(opts)
	if err != nil {
		return nil, false, err
	}
	db.bdp = bdp
	timedLog.Debugf("Opened %s", db)

	if !config.InMemory {
		db.stopSyncCh = make(chan bool)
		go syncPeriodically(db)
	}
	return db, created, nil
}

// BadgerDB satisfies the storage.Store interface.
type BadgerDB struct {
	directory string
	inMemory  bool

	bdp *badger.DB

	// stopSyncCh is used to signal the sync goroutine to stop.
	stopSyncCh chan bool
}

func (db *BadgerDB) String() string {
	if db.inMemory {
		return "badger in memory"
	}
	return fmt.Sprintf("badger @ %s", db.directory)
}

// Close closes the BadgerDB
func (db *BadgerDB) Close() {
	if db != nil && db.bdp != nil {
		if db.stopSyncCh != nil {
			db.stopSyncCh <- true
		}
		if err := db.bdp.Close(); err != nil {
			catvol.Errorf("Error closing %s: %v\n", db, err)
		}
		catvol.Infof("Closed %s\n", db)
		db.bdp = nil
	}
}

// Get returns a value given a key or nil if the key isn't present.
func (db *BadgerDB) Get(ctx storage.Context, path string) ([]byte, error) {
	if db == nil || db.bdp == nil {
		return nil, fmt.Errorf("Can't call GET on closed BadgerDB")
	}
	key := ctx.ConstructKey(path)
	var v []byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	return v, err
}

// Put writes a value with given key.
func (db *BadgerDB) Put(ctx storage.Context, path string, v []byte) error {
	if db == nil || db.bdp == nil {
		return fmt.Errorf("Can't call PUT on closed BadgerDB")
	}
	key := ctx.ConstructKey(path)
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set(key, v)
	})
}

// Delete removes a value with given key.
func (db *BadgerDB) Delete(ctx storage.Context, path string) error {
	if db == nil || db.bdp == nil {
		return fmt.Errorf("Can't call DELETE on closed BadgerDB")
	}
	key := ctx.ConstructKey(path)
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (db *BadgerDB) rawKeys(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // key only
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// Keys returns all paths in the namespace with the given prefix, sorted.
func (db *BadgerDB) Keys(ctx storage.Context, prefix string) ([]string, error) {
	if db == nil || db.bdp == nil {
		return nil, fmt.Errorf("Can't call Keys on closed BadgerDB")
	}
	keys, err := db.rawKeys(ctx.ConstructKey(prefix))
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		path, err := ctx.PathFromKey(k)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// DeletePrefix removes all keys in the namespace beginning with prefix.
func (db *BadgerDB) DeletePrefix(ctx storage.Context, prefix string) error {
	if db == nil || db.bdp == nil {
		return fmt.Errorf("Can't call DeletePrefix on closed BadgerDB")
	}
	keys, err := db.rawKeys(ctx.ConstructKey(prefix))
	if err != nil {
		return err
	}
	wb := db.bdp.NewWriteBatch()
	defer wb.Cancel()
	for i, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
		if (i+1)%flushEvery == 0 {
			if err := wb.Flush(); err != nil {
				return fmt.Errorf("Error on flush of DeletePrefix at key %d: %v", i, err)
			}
			wb = db.bdp.NewWriteBatch()
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("Error on last flush of DeletePrefix: %v", err)
	}
	catvol.Debugf("Deleted %d keys with prefix %q in %s\n", len(keys), prefix, ctx)
	return nil
}

// --- Batch implementation ---

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

type goBatch struct {
	db  *BadgerDB
	ctx storage.Context
	ops []batchOp
}

// NewBatch returns an implementation that allows batch writes
func (db *BadgerDB) NewBatch(ctx storage.Context) storage.Batch {
	return &goBatch{db: db, ctx: ctx}
}

func (batch *goBatch) Delete(path string) {
	batch.ops = append(batch.ops, batchOp{key: batch.ctx.ConstructKey(path), delete: true})
}

func (batch *goBatch) Put(path string, v []byte) {
	batch.ops = append(batch.ops, batchOp{key: batch.ctx.ConstructKey(path), value: v})
}

func (batch *goBatch) Commit() error {
	if batch.db == nil || batch.db.bdp == nil {
		return fmt.Errorf("Can't commit batch on closed BadgerDB")
	}
	wb := batch.db.bdp.NewWriteBatch()
	defer wb.Cancel()
	var size int
	for _, op := range batch.ops {
		var err error
		if op.delete {
			err = wb.Delete(op.key)
		} else {
			err = wb.Set(op.key, op.value)
			size += len(op.value)
		}
		if err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}
	catvol.Debugf("Committed batch of %d ops (%d value bytes) to %s\n", len(batch.ops), size, batch.ctx)
	batch.ops = nil
	return nil
}
