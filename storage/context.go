package storage

import (
	"bytes"
	"fmt"
)

// namespaceSep separates the volume namespace from the path within a key.  Volume
// names never contain it.
const namespaceSep = 0x00

// Context scopes keys to one volume namespace, the equivalent of one HDF5 file,
// e.g. "3_1_componenttree".
type Context struct {
	Volume string
}

// NewContext returns the context for a volume namespace.
func NewContext(volume string) Context {
	return Context{Volume: volume}
}

func (ctx Context) String() string {
	return fmt.Sprintf("volume %q", ctx.Volume)
}

// ConstructKey returns the full key for a path in this namespace.
func (ctx Context) ConstructKey(path string) []byte {
	key := make([]byte, 0, len(ctx.Volume)+1+len(path))
	key = append(key, ctx.Volume...)
	key = append(key, namespaceSep)
	return append(key, path...)
}

// PathFromKey strips the namespace from a full key.
func (ctx Context) PathFromKey(key []byte) (string, error) {
	prefix := ctx.ConstructKey("")
	if !bytes.HasPrefix(key, prefix) {
		return "", fmt.Errorf("key %q is not within %s", key, ctx)
	}
	return string(key[len(prefix):]), nil
}
