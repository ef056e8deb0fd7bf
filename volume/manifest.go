package volume

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/storage"

	"github.com/blang/semver"
	"github.com/twinj/uuid"
)

// ManifestPath is the key of a volume's manifest within its namespace.
const ManifestPath = "manifest"

// FormatVersion is the layout version written by this package.  Volumes with a
// different major version are refused.
var FormatVersion = semver.MustParse("0.1.0")

// Manifest describes the state of a volume.  Generation changes whenever any plane of
// the volume is rewritten.
type Manifest struct {
	FormatVersion string    `json:"format_version"`
	Generation    string    `json:"generation"`
	Scales        []int     `json:"scales,omitempty"`
	Sections      []int32   `json:"sections,omitempty"`
	BuiltAt       time.Time `json:"built_at"`
	SkeletonID    *int64    `json:"skeleton_id,omitempty"`
}

// NewGeneration returns a fresh generation id.
func NewGeneration() string {
	return uuid.NewV4().String()
}

// ReadManifest returns the manifest of a volume or a NotFoundError if it has none.
func ReadManifest(store storage.Store, ctx storage.Context) (*Manifest, error) {
	data, err := store.Get(ctx, ManifestPath)
	if err != nil {
		return nil, catvol.StoreErr("get manifest of "+ctx.Volume, err)
	}
	if data == nil {
		return nil, catvol.NotFound("manifest of volume %s", ctx.Volume)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, catvol.StoreErr("decode manifest of "+ctx.Volume, err)
	}
	v, err := semver.Parse(m.FormatVersion)
	if err != nil {
		return nil, catvol.StoreErr("decode manifest of "+ctx.Volume, err)
	}
	if v.Major != FormatVersion.Major {
		return nil, catvol.StoreErr("read "+ctx.Volume,
			fmt.Errorf("volume format %s incompatible with %s", v, FormatVersion))
	}
	return &m, nil
}

// Generation returns the current generation of a volume, or "" if it has no manifest.
func Generation(store storage.Store, ctx storage.Context) (string, error) {
	m, err := ReadManifest(store, ctx)
	if catvol.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Generation, nil
}

// WriteManifest stores m, stamping the current format version.
func WriteManifest(store storage.Store, ctx storage.Context, m *Manifest) error {
	m.FormatVersion = FormatVersion.String()
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return catvol.StoreErr("put manifest of "+ctx.Volume, store.Put(ctx, ManifestPath, data))
}

// Touch gives a volume a new generation, creating its manifest if needed.  Scale and z
// of the written plane are recorded.
func Touch(store storage.Store, ctx storage.Context, scale int, z int32) (*Manifest, error) {
	m, err := ReadManifest(store, ctx)
	if catvol.IsNotFound(err) {
		m, err = &Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	m.Generation = NewGeneration()
	m.Scales = addInt(m.Scales, scale)
	m.Sections = addInt32(m.Sections, z)
	if err := WriteManifest(store, ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func addInt(vals []int, v int) []int {
	for i, x := range vals {
		if x == v {
			return vals
		}
		if x > v {
			return append(vals[:i], append([]int{v}, vals[i:]...)...)
		}
	}
	return append(vals, v)
}

func addInt32(vals []int32, v int32) []int32 {
	for i, x := range vals {
		if x == v {
			return vals
		}
		if x > v {
			return append(vals[:i], append([]int32{v}, vals[i:]...)...)
		}
	}
	return append(vals, v)
}
