package componenttree

import (
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"
)

// DefaultLimit is the number of components returned for a location if unspecified.
const DefaultLimit = 10

// Match is a component containing a queried pixel.
type Match struct {
	ID        int64   `json:"-"`
	MinX      int32   `json:"minX"`
	MinY      int32   `json:"minY"`
	MaxX      int32   `json:"maxX"`
	MaxY      int32   `json:"maxY"`
	Threshold float64 `json:"threshold"`
}

// Bounds returns the match's bounding box.
func (m Match) Bounds() catvol.Rect {
	return catvol.Rect{MinX: m.MinX, MinY: m.MinY, MaxX: m.MaxX, MaxY: m.MaxY}
}

// Matches are ordered by ascending threshold.
type Matches []Match

// AsMap returns the matches keyed by component id.
func (ms Matches) AsMap() map[int64]Match {
	out := make(map[int64]Match, len(ms))
	for _, m := range ms {
		out[m.ID] = m
	}
	return out
}

// IDs returns the component ids in match order.
func (ms Matches) IDs() []int64 {
	ids := make([]int64, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}

// candidates narrows ids by one bound, keeping order.
func candidates(ids []int, keep func(int) bool) []int {
	out := ids[:0]
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

// FindComponentsAt returns up to limit components on section z whose pixel set
// contains (x,y), lowest threshold first.
func (t *Tree) FindComponentsAt(x, y, z int32, limit int) (Matches, error) {
	if limit <= 0 {
		return nil, catvol.Invalid("limit", "must be positive, got %d", limit)
	}
	timedLog := catvol.NewTimeLog()
	s, err := t.Section(z)
	if err != nil {
		return nil, err
	}

	ids := make([]int, s.NumComponents())
	for i := range ids {
		ids[i] = i
	}
	ids = candidates(ids, func(i int) bool { return s.MinX[i] <= x })
	if len(ids) > 0 {
		ids = candidates(ids, func(i int) bool { return s.MaxX[i] >= x })
	}
	if len(ids) > 0 {
		ids = candidates(ids, func(i int) bool { return s.MinY[i] <= y })
	}
	if len(ids) > 0 {
		ids = candidates(ids, func(i int) bool { return s.MaxY[i] >= y })
	}
	sort.SliceStable(ids, func(a, b int) bool { return s.Values[ids[a]] < s.Values[ids[b]] })

	var matches Matches
	for _, i := range ids {
		if len(matches) >= limit {
			break
		}
		if !containsPixel(s.PixelsOf(i), x, y) {
			continue
		}
		matches = append(matches, Match{
			ID:        int64(i),
			MinX:      s.MinX[i],
			MinY:      s.MinY[i],
			MaxX:      s.MaxX[i],
			MaxY:      s.MaxY[i],
			Threshold: s.Values[i],
		})
	}
	timedLog.Debugf("found %d of %d bbox candidates at (%d,%d,%d) in %s", len(matches), len(ids), x, y, z, t)
	return matches, nil
}

func containsPixel(pixels []catvol.Pixel, x, y int32) bool {
	for _, p := range pixels {
		if p.X == x && p.Y == y {
			return true
		}
	}
	return false
}

func (t *Tree) component(id int64, z int32) (*Section, int, error) {
	s, err := t.Section(z)
	if err != nil {
		return nil, 0, err
	}
	if id < 0 || id >= int64(s.NumComponents()) {
		return nil, 0, catvol.NotFound("component %d on section %d of %s", id, z, t.ctx.Volume)
	}
	return s, int(id), nil
}

// ExtractMask materializes component id of section z as a mask sized to its stored
// bounding box.  Pixels outside the stored box are skipped.
func (t *Tree) ExtractMask(id int64, z int32) (*catvol.Mask, error) {
	s, i, err := t.component(id, z)
	if err != nil {
		return nil, err
	}
	bounds := s.Bounds(i)
	if !bounds.Valid() {
		return nil, catvol.StoreErr("extract mask", catvol.Invalid("bbox", "component %d on section %d has inverted box %s", id, z, bounds))
	}
	mask := &catvol.Mask{Bounds: bounds, Gray8: *catvol.NewGray8(bounds.Width(), bounds.Height())}
	var skipped int
	for _, p := range s.PixelsOf(i) {
		if !bounds.Contains(p.X, p.Y) {
			skipped++
			continue
		}
		mask.Set(int(p.X-bounds.MinX), int(p.Y-bounds.MinY), 1)
	}
	if skipped > 0 {
		catvol.Warningf("Skipped %d pixels of component %d on section %d lying outside stored box %s\n",
			skipped, id, z, bounds)
	}
	return mask, nil
}

// ComponentImage returns the component's mask painted in the given color.
func (t *Tree) ComponentImage(id int64, z int32, c color.NRGBA) ([]byte, error) {
	mask, err := t.ExtractMask(id, z)
	if err != nil {
		return nil, err
	}
	return catvol.PNGBytes(catvol.MaskImage(mask, c))
}

// Component is the pixel set and threshold of one component to import.
type Component struct {
	Threshold float64
	Pixels    []catvol.Pixel
}

// ImportSection replaces section z with the given components, whose ids become their
// index in comps.  Bounding boxes are derived from the pixels.
func (t *Tree) ImportSection(z int32, comps []Component) error {
	n := len(comps)
	s := &Section{
		Z:      z,
		Begin:  make([]int64, n),
		End:    make([]int64, n),
		MinX:   make([]int32, n),
		MinY:   make([]int32, n),
		MaxX:   make([]int32, n),
		MaxY:   make([]int32, n),
		Values: make([]float64, n),
	}
	for i, c := range comps {
		bounds, ok := catvol.BoundsOf(c.Pixels)
		if !ok {
			return catvol.Invalid("pixels", "component %d on section %d has no pixels", i, z)
		}
		s.Begin[i] = int64(len(s.Pixels))
		s.Pixels = append(s.Pixels, c.Pixels...)
		s.End[i] = int64(len(s.Pixels))
		s.MinX[i], s.MinY[i], s.MaxX[i], s.MaxY[i] = bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY
		s.Values[i] = c.Threshold
	}
	return t.WriteSection(s)
}

// Sections returns the z of every section present in the tree, ascending.
func (t *Tree) Sections() ([]int32, error) {
	paths, err := t.store.Keys(t.ctx, "connected_components/")
	if err != nil {
		return nil, catvol.StoreErr("list "+t.String(), err)
	}
	var zs []int32
	for _, p := range paths {
		parts := strings.Split(p, "/")
		if len(parts) != 3 || parts[2] != FieldValues {
			continue
		}
		z, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			catvol.Warningf("Ignoring unparsable section key %q in %s\n", p, t)
			continue
		}
		zs = append(zs, int32(z))
	}
	sort.Slice(zs, func(i, j int) bool { return zs[i] < zs[j] })
	return zs, nil
}
