package catvol

import (
	"fmt"
	"math"
)

// Rect is an inclusive pixel bounding box on a section.
type Rect struct {
	MinX, MinY, MaxX, MaxY int32
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.MinX, r.MinY, r.MaxX, r.MaxY)
}

// Width is the number of pixel columns covered.
func (r Rect) Width() int {
	return int(r.MaxX) - int(r.MinX) + 1
}

// Height is the number of pixel rows covered.
func (r Rect) Height() int {
	return int(r.MaxY) - int(r.MinY) + 1
}

// Contains returns true if the pixel is inside the box, borders included.
func (r Rect) Contains(x, y int32) bool {
	return r.MinX <= x && x <= r.MaxX && r.MinY <= y && y <= r.MaxY
}

// Valid returns true if the minimum corner does not exceed the maximum corner.
func (r Rect) Valid() bool {
	return r.MinX <= r.MaxX && r.MinY <= r.MaxY
}

// Pixel is a single (x,y) coordinate on a section.
type Pixel struct {
	X, Y int32
}

// BoundsOf recomputes the bounding box of a pixel set.  The second return is false for
// an empty set.
func BoundsOf(pixels []Pixel) (Rect, bool) {
	if len(pixels) == 0 {
		return Rect{}, false
	}
	r := Rect{math.MaxInt32, math.MaxInt32, math.MinInt32, math.MinInt32}
	for _, p := range pixels {
		if p.X < r.MinX {
			r.MinX = p.X
		}
		if p.X > r.MaxX {
			r.MaxX = p.X
		}
		if p.Y < r.MinY {
			r.MinY = p.Y
		}
		if p.Y > r.MaxY {
			r.MaxY = p.Y
		}
	}
	return r, true
}

// Dims3d is the pixel extent of a stack.
type Dims3d struct {
	X, Y, Z int32
}

// Resolution is the world size of a pixel along each axis, in nanometers.
type Resolution struct {
	X, Y, Z float64
}

// Point3d is a world coordinate.
type Point3d struct {
	X, Y, Z float64
}

// ToPixel converts a world location to integer pixel coordinates, truncating
// toward zero.
func (res Resolution) ToPixel(p Point3d) (x, y, z int32) {
	return int32(p.X / res.X), int32(p.Y / res.Y), int32(p.Z / res.Z)
}

// DistanceSquared returns the squared euclidean distance between two points.
func (p Point3d) DistanceSquared(q Point3d) float64 {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return dx*dx + dy*dy + dz*dz
}
