/*
	Package blobstore implements a storage engine on top of a gocloud.dev blob bucket,
	letting volumes live in Google Cloud Storage, S3, a local directory, or memory.
	Each key becomes one object named "<volume>/<path>".
*/
package blobstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/storage"

	"github.com/blang/semver"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

func init() {
	ver, err := semver.Make("0.1.0")
	if err != nil {
		catvol.Errorf("Unable to make semver in blobstore: %v\n", err)
	}
	storage.RegisterEngine(Engine{"blob", "gocloud.dev blob bucket", ver})
}

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

// NewStore opens the bucket in config.Bucket.  A blob store is never reported as
// newly created since buckets are provisioned outside catvol.
func (e Engine) NewStore(config storage.Config) (storage.Store, bool, error) {
	ref := config.Bucket
	if ref == "" && config.InMemory {
		ref = "mem://"
	}
	if ref == "" {
		return nil, false, fmt.Errorf("%q must be specified for blob store configuration", "bucket")
	}
	bucket, err := storage.OpenBucket(ref)
	if err != nil {
		return nil, false, err
	}
	return &Store{ref: ref, bucket: bucket}, false, nil
}

// Store satisfies storage.Store with one object per key.
type Store struct {
	ref    string
	bucket *blob.Bucket
}

// New wraps an already opened bucket.
func New(ref string, bucket *blob.Bucket) *Store {
	return &Store{ref: ref, bucket: bucket}
}

func (s *Store) String() string {
	return fmt.Sprintf("blob bucket @ %s", s.ref)
}

func objectName(ctx storage.Context, path string) string {
	return ctx.Volume + "/" + path
}

func (s *Store) Get(ctx storage.Context, path string) ([]byte, error) {
	data, err := s.bucket.ReadAll(context.Background(), objectName(ctx, path))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (s *Store) Put(ctx storage.Context, path string, value []byte) error {
	return s.bucket.WriteAll(context.Background(), objectName(ctx, path), value, nil)
}

func (s *Store) Delete(ctx storage.Context, path string) error {
	err := s.bucket.Delete(context.Background(), objectName(ctx, path))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return err
	}
	return nil
}

func (s *Store) Keys(ctx storage.Context, prefix string) ([]string, error) {
	nsPrefix := objectName(ctx, "")
	iter := s.bucket.List(&blob.ListOptions{Prefix: nsPrefix + prefix})
	var paths []string
	for {
		obj, err := iter.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		paths = append(paths, strings.TrimPrefix(obj.Key, nsPrefix))
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) DeletePrefix(ctx storage.Context, prefix string) error {
	paths, err := s.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := s.Delete(ctx, path); err != nil {
			return err
		}
	}
	catvol.Debugf("Deleted %d objects with prefix %q in %s\n", len(paths), prefix, ctx)
	return nil
}

func (s *Store) Close() {
	if err := s.bucket.Close(); err != nil {
		catvol.Errorf("Error closing %s: %v\n", s, err)
	}
}

type op struct {
	path   string
	value  []byte
	delete bool
}

type batch struct {
	s   *Store
	ctx storage.Context
	ops []op
}

func (s *Store) NewBatch(ctx storage.Context) storage.Batch {
	return &batch{s: s, ctx: ctx}
}

func (b *batch) Put(path string, value []byte) {
	b.ops = append(b.ops, op{path: path, value: value})
}

func (b *batch) Delete(path string) {
	b.ops = append(b.ops, op{path: path, delete: true})
}

// Commit applies the operations in order.  Buckets have no multi-object transactions,
// so a failure leaves earlier operations applied.
func (b *batch) Commit() error {
	for i, o := range b.ops {
		var err error
		if o.delete {
			err = b.s.Delete(b.ctx, o.path)
		} else {
			err = b.s.Put(b.ctx, o.path, o.value)
		}
		if err != nil {
			return fmt.Errorf("batch op %d of %d on %q failed: %v", i+1, len(b.ops), o.path, err)
		}
	}
	b.ops = nil
	return nil
}
