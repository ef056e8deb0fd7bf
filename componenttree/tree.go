/*
	Package componenttree holds the precomputed connected-component index of a stack.
	For each section z, the store keeps parallel per-component tables and one flattened
	pixel list, laid out as in the original HDF5 component-tree files:

		connected_components/<z>/begin_indices
		connected_components/<z>/end_indices
		connected_components/<z>/min_x, min_y, max_x, max_y
		connected_components/<z>/values         (thresholds)
		connected_components/<z>/pixel_list_0

	Component i owns pixel_list_0[begin_indices[i]:end_indices[i]].  Bounding boxes are
	only as good as the producer that wrote them; Import recomputes them from pixels.
*/
package componenttree

import (
	"fmt"
	"sync"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/storage"

	"github.com/golang/groupcache/lru"
)

// Field names within a section group.
const (
	FieldBegin  = "begin_indices"
	FieldEnd    = "end_indices"
	FieldMinX   = "min_x"
	FieldMinY   = "min_y"
	FieldMaxX   = "max_x"
	FieldMaxY   = "max_y"
	FieldValues = "values"
	FieldPixels = "pixel_list_0"
)

// DefaultCachedSections is the number of decoded sections kept per process.
const DefaultCachedSections = 64

// SectionPath returns the key of a field for section z.
func SectionPath(z int32, field string) string {
	return fmt.Sprintf("connected_components/%d/%s", z, field)
}

// Section is the decoded component table for one z.
type Section struct {
	Z      int32
	Begin  []int64
	End    []int64
	MinX   []int32
	MinY   []int32
	MaxX   []int32
	MaxY   []int32
	Values []float64
	Pixels []catvol.Pixel
}

// NumComponents returns the number of components on the section.
func (s *Section) NumComponents() int {
	return len(s.Values)
}

// Bounds returns the stored bounding box of component id.
func (s *Section) Bounds(id int) catvol.Rect {
	return catvol.Rect{MinX: s.MinX[id], MinY: s.MinY[id], MaxX: s.MaxX[id], MaxY: s.MaxY[id]}
}

// PixelsOf returns the slice of the pixel list owned by component id.
func (s *Section) PixelsOf(id int) []catvol.Pixel {
	return s.Pixels[s.Begin[id]:s.End[id]]
}

// Validate checks that all tables have one entry per component and that every
// pixel range lies within the pixel list.
func (s *Section) Validate() error {
	n := len(s.Values)
	for name, l := range map[string]int{
		FieldBegin: len(s.Begin), FieldEnd: len(s.End),
		FieldMinX: len(s.MinX), FieldMinY: len(s.MinY),
		FieldMaxX: len(s.MaxX), FieldMaxY: len(s.MaxY),
	} {
		if l != n {
			return fmt.Errorf("section %d: %s has %d entries, expected %d", s.Z, name, l, n)
		}
	}
	for i := 0; i < n; i++ {
		if s.Begin[i] < 0 || s.Begin[i] > s.End[i] || s.End[i] > int64(len(s.Pixels)) {
			return fmt.Errorf("section %d: component %d has bad pixel range [%d:%d] for %d pixels",
				s.Z, i, s.Begin[i], s.End[i], len(s.Pixels))
		}
	}
	return nil
}

// Tree is the component-tree store of one project/stack.
type Tree struct {
	store storage.Store
	ctx   storage.Context
}

// New returns the component tree of a project/stack in the given store.
func New(store storage.Store, projectID, stackID int64) *Tree {
	return &Tree{
		store: store,
		ctx:   storage.NewContext(catvol.VolumeName(projectID, stackID, "componenttree")),
	}
}

func (t *Tree) String() string {
	return fmt.Sprintf("component tree %s", t.ctx.Volume)
}

type sectionKey struct {
	volume string
	z      int32
}

var (
	sectionCacheMu sync.Mutex
	sectionCaches  = make(map[storage.Store]*lru.Cache)
)

// sectionCache returns the decoded-section cache of the tree's store.  Caller must
// hold sectionCacheMu.
func (t *Tree) sectionCache() *lru.Cache {
	c, found := sectionCaches[t.store]
	if !found {
		c = lru.New(DefaultCachedSections)
		sectionCaches[t.store] = c
	}
	return c
}

func (t *Tree) invalidate(z int32) {
	sectionCacheMu.Lock()
	t.sectionCache().Remove(sectionKey{t.ctx.Volume, z})
	sectionCacheMu.Unlock()
}

// ForgetStore drops all cached sections read from the store, e.g. after it is closed.
func ForgetStore(store storage.Store) {
	sectionCacheMu.Lock()
	delete(sectionCaches, store)
	sectionCacheMu.Unlock()
}

// Section returns the decoded tables of section z, or a NotFoundError if the
// component tree has no such section.
func (t *Tree) Section(z int32) (*Section, error) {
	key := sectionKey{t.ctx.Volume, z}
	sectionCacheMu.Lock()
	cached, found := t.sectionCache().Get(key)
	sectionCacheMu.Unlock()
	if found {
		return cached.(*Section), nil
	}

	s := &Section{Z: z}
	var err error
	if s.Values, err = t.getFloat64s(z, FieldValues); err != nil {
		return nil, err
	}
	if s.Begin, err = t.getInt64s(z, FieldBegin); err != nil {
		return nil, err
	}
	if s.End, err = t.getInt64s(z, FieldEnd); err != nil {
		return nil, err
	}
	for field, dst := range map[string]*[]int32{
		FieldMinX: &s.MinX, FieldMinY: &s.MinY, FieldMaxX: &s.MaxX, FieldMaxY: &s.MaxY,
	} {
		if *dst, err = t.getInt32s(z, field); err != nil {
			return nil, err
		}
	}
	data, err := t.get(z, FieldPixels)
	if err != nil {
		return nil, err
	}
	if s.Pixels, err = decodePixels(data); err != nil {
		return nil, catvol.StoreErr("decode "+SectionPath(z, FieldPixels), err)
	}
	if err := s.Validate(); err != nil {
		return nil, catvol.StoreErr("load "+t.String(), err)
	}

	sectionCacheMu.Lock()
	t.sectionCache().Add(key, s)
	sectionCacheMu.Unlock()
	return s, nil
}

func (t *Tree) get(z int32, field string) ([]byte, error) {
	path := SectionPath(z, field)
	data, err := t.store.Get(t.ctx, path)
	if err != nil {
		return nil, catvol.StoreErr("get "+path, err)
	}
	if data == nil {
		return nil, catvol.NotFound("dataset %q in %s", path, t.ctx.Volume)
	}
	return data, nil
}

func (t *Tree) getInt64s(z int32, field string) ([]int64, error) {
	data, err := t.get(z, field)
	if err != nil {
		return nil, err
	}
	vals, err := decodeInt64s(data)
	if err != nil {
		return nil, catvol.StoreErr("decode "+SectionPath(z, field), err)
	}
	return vals, nil
}

func (t *Tree) getInt32s(z int32, field string) ([]int32, error) {
	data, err := t.get(z, field)
	if err != nil {
		return nil, err
	}
	vals, err := decodeInt32s(data)
	if err != nil {
		return nil, catvol.StoreErr("decode "+SectionPath(z, field), err)
	}
	return vals, nil
}

func (t *Tree) getFloat64s(z int32, field string) ([]float64, error) {
	data, err := t.get(z, field)
	if err != nil {
		return nil, err
	}
	vals, err := decodeFloat64s(data)
	if err != nil {
		return nil, catvol.StoreErr("decode "+SectionPath(z, field), err)
	}
	return vals, nil
}

// WriteSection stores the tables exactly as given, replacing any previous section z.
func (t *Tree) WriteSection(s *Section) error {
	if err := s.Validate(); err != nil {
		return catvol.Invalid("section", "%v", err)
	}
	batch := t.store.NewBatch(t.ctx)
	batch.Put(SectionPath(s.Z, FieldBegin), encodeInt64s(s.Begin))
	batch.Put(SectionPath(s.Z, FieldEnd), encodeInt64s(s.End))
	batch.Put(SectionPath(s.Z, FieldMinX), encodeInt32s(s.MinX))
	batch.Put(SectionPath(s.Z, FieldMinY), encodeInt32s(s.MinY))
	batch.Put(SectionPath(s.Z, FieldMaxX), encodeInt32s(s.MaxX))
	batch.Put(SectionPath(s.Z, FieldMaxY), encodeInt32s(s.MaxY))
	batch.Put(SectionPath(s.Z, FieldValues), encodeFloat64s(s.Values))
	batch.Put(SectionPath(s.Z, FieldPixels), encodePixels(s.Pixels))
	err := batch.Commit()
	t.invalidate(s.Z)
	return catvol.StoreErr("write "+t.String(), err)
}
