package catvol

// Stack is an image stack of a project: its pixel extent, the world size of a pixel and
// the sections known to be unusable.
type Stack struct {
	ID           int64      `json:"sid"`
	ProjectID    int64      `json:"pid"`
	Title        string     `json:"stitle"`
	Dimension    Dims3d     `json:"dimension"`
	Resolution   Resolution `json:"resolution"`
	BrokenSlices []int32    `json:"broken_slices"`
}

// Broken returns true if section z is on the stack's skip list.
func (s *Stack) Broken(z int32) bool {
	for _, b := range s.BrokenSlices {
		if b == z {
			return true
		}
	}
	return false
}

// Sections returns every non-broken z in [0, Dimension.Z), ascending.
func (s *Stack) Sections() []int32 {
	broken := make(map[int32]struct{}, len(s.BrokenSlices))
	for _, b := range s.BrokenSlices {
		broken[b] = struct{}{}
	}
	zs := make([]int32, 0, s.Dimension.Z)
	for z := int32(0); z < s.Dimension.Z; z++ {
		if _, found := broken[z]; !found {
			zs = append(zs, z)
		}
	}
	return zs
}
