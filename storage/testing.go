/*
	This file contains functions useful for testing storage engines in other packages.
	They are exported so each engine's tests can run the same checks.
*/

package storage

import (
	"bytes"
	"fmt"
	"testing"
)

// TestStoreBasics exercises the Store interface against an open store.
func TestStoreBasics(t *testing.T, store Store) {
	ctx := NewContext("1_2_segmentation")
	other := NewContext("1_2")

	if v, err := store.Get(ctx, "scale/0/section/0/components"); err != nil || v != nil {
		t.Fatalf("Expected nil value for missing key, got %v (err %v)\n", v, err)
	}
	if err := store.Put(ctx, "scale/0/section/0/components", []byte("plane0")); err != nil {
		t.Fatalf("Couldn't put: %v\n", err)
	}
	if err := store.Put(other, "scale/0/section/0/components", []byte("other")); err != nil {
		t.Fatalf("Couldn't put in other namespace: %v\n", err)
	}
	v, err := store.Get(ctx, "scale/0/section/0/components")
	if err != nil {
		t.Fatalf("Couldn't get: %v\n", err)
	}
	if !bytes.Equal(v, []byte("plane0")) {
		t.Fatalf("Got back %q, expected %q\n", v, "plane0")
	}

	batch := store.NewBatch(ctx)
	for z := 1; z < 4; z++ {
		batch.Put(fmt.Sprintf("scale/0/section/%d/components", z), []byte{byte(z)})
	}
	batch.Put("scale/1/section/0/components", []byte("scale1"))
	batch.Delete("scale/0/section/0/components")
	if err := batch.Commit(); err != nil {
		t.Fatalf("Couldn't commit batch: %v\n", err)
	}

	keys, err := store.Keys(ctx, "scale/0/")
	if err != nil {
		t.Fatalf("Couldn't list keys: %v\n", err)
	}
	expected := []string{"scale/0/section/1/components", "scale/0/section/2/components", "scale/0/section/3/components"}
	if len(keys) != len(expected) {
		t.Fatalf("Expected keys %v, got %v\n", expected, keys)
	}
	for i, k := range keys {
		if k != expected[i] {
			t.Fatalf("Expected key %d to be %q, got %q\n", i, expected[i], k)
		}
	}

	if err := store.DeletePrefix(ctx, "scale/"); err != nil {
		t.Fatalf("Couldn't delete prefix: %v\n", err)
	}
	keys, err = store.Keys(ctx, "")
	if err != nil {
		t.Fatalf("Couldn't list keys: %v\n", err)
	}
	if len(keys) != 0 {
		t.Fatalf("Expected no keys after DeletePrefix, got %v\n", keys)
	}
	v, err = store.Get(other, "scale/0/section/0/components")
	if err != nil {
		t.Fatalf("Couldn't get from other namespace: %v\n", err)
	}
	if !bytes.Equal(v, []byte("other")) {
		t.Fatalf("DeletePrefix leaked into other namespace, got %q\n", v)
	}
	if err := store.Delete(other, "scale/0/section/0/components"); err != nil {
		t.Fatalf("Couldn't delete: %v\n", err)
	}
	if err := store.Delete(other, "never/written"); err != nil {
		t.Fatalf("Delete of missing key should not fail: %v\n", err)
	}
}
