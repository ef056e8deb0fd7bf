package catvol

import (
	"encoding/binary"
	"fmt"
	"image"
)

// LabelPlane is a 2d array of int64 labels for one section, stored row-major so
// that index (y, x) is Data[y*Width+x].
type LabelPlane struct {
	Width, Height int
	Data          []int64
}

// NewLabelPlane allocates a zeroed plane.
func NewLabelPlane(width, height int) *LabelPlane {
	return &LabelPlane{
		Width:  width,
		Height: height,
		Data:   make([]int64, width*height),
	}
}

func (p *LabelPlane) String() string {
	return fmt.Sprintf("label plane %d x %d", p.Width, p.Height)
}

// InBounds returns true if (x,y) indexes a pixel of the plane.
func (p *LabelPlane) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < p.Width && y < p.Height
}

func (p *LabelPlane) At(x, y int) int64 {
	return p.Data[y*p.Width+x]
}

func (p *LabelPlane) Set(x, y int, label int64) {
	p.Data[y*p.Width+x] = label
}

// NonZero returns the number of labeled pixels.
func (p *LabelPlane) NonZero() int {
	var n int
	for _, v := range p.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bytes serializes the plane as little-endian int64 values in row-major order.
func (p *LabelPlane) Bytes() []byte {
	buf := make([]byte, 8*len(p.Data))
	for i, v := range p.Data {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return buf
}

// LabelPlaneFromBytes is the inverse of Bytes.
func LabelPlaneFromBytes(width, height int, data []byte) (*LabelPlane, error) {
	if len(data) != 8*width*height {
		return nil, fmt.Errorf("expected %d bytes for %d x %d label plane, got %d", 8*width*height, width, height, len(data))
	}
	p := NewLabelPlane(width, height)
	for i := range p.Data {
		p.Data[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return p, nil
}

// Binarized returns the [y:y+height, x:x+width] crop of the plane as 8-bit values, where
// any non-zero label becomes 255.  Parts of the crop outside the plane are 0.
func (p *LabelPlane) Binarized(x, y, width, height int) *Gray8 {
	out := NewGray8(width, height)
	for row := 0; row < height; row++ {
		py := y + row
		if py < 0 || py >= p.Height {
			continue
		}
		for col := 0; col < width; col++ {
			px := x + col
			if px < 0 || px >= p.Width {
				continue
			}
			if p.Data[py*p.Width+px] > 0 {
				out.Data[row*width+col] = 255
			}
		}
	}
	return out
}

// Gray8 is a 2d array of bytes, row-major.  It holds raw image sections, rasterized
// drawing intensities and binarized tiles.
type Gray8 struct {
	Width, Height int
	Data          []uint8
}

// NewGray8 allocates a zeroed 8-bit plane.
func NewGray8(width, height int) *Gray8 {
	return &Gray8{
		Width:  width,
		Height: height,
		Data:   make([]uint8, width*height),
	}
}

func (g *Gray8) At(x, y int) uint8 {
	return g.Data[y*g.Width+x]
}

func (g *Gray8) Set(x, y int, v uint8) {
	g.Data[y*g.Width+x] = v
}

// Crop returns the [y:y+height, x:x+width] region, zero-padded outside the plane.
func (g *Gray8) Crop(x, y, width, height int) *Gray8 {
	out := NewGray8(width, height)
	for row := 0; row < height; row++ {
		py := y + row
		if py < 0 || py >= g.Height {
			continue
		}
		for col := 0; col < width; col++ {
			px := x + col
			if px < 0 || px >= g.Width {
				continue
			}
			out.Data[row*width+col] = g.Data[py*g.Width+px]
		}
	}
	return out
}

// Paste writes src into the plane with its upper-left corner at (x,y), clipping
// anything that falls outside.
func (g *Gray8) Paste(src *Gray8, x, y int) {
	for row := 0; row < src.Height; row++ {
		py := y + row
		if py < 0 || py >= g.Height {
			continue
		}
		for col := 0; col < src.Width; col++ {
			px := x + col
			if px < 0 || px >= g.Width {
				continue
			}
			g.Data[py*g.Width+px] = src.Data[row*src.Width+col]
		}
	}
}

// Image returns a gray image sharing the plane's pixels.
func (g *Gray8) Image() *image.Gray {
	return ImageGrayFromData(g.Data, g.Width, g.Height)
}

// Mask is a dense binary image of one component, sized to its bounding box.  Value 1
// marks member pixels.  Mask.At(x, y) takes bbox-relative coordinates.
type Mask struct {
	Bounds Rect
	Gray8
}

// Count returns the number of member pixels.
func (m *Mask) Count() int {
	var n int
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}
