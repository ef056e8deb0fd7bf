/*
	Package raster turns paint tool drawings into pixel intensities and stamps them into
	label planes.

	A drawing's svg path is rendered with a fixed Margin on every side so strokes that
	overflow the recorded bounding box are kept.  Pixel (0,0) of the rendered plane
	therefore corresponds to section pixel (min_x - Margin, min_y - Margin), and
	Composite must be given that offset.
*/
package raster

import (
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Margin is the number of pixels added on each side of a drawing when rendering.
const Margin = 50

var transformAttr = regexp.MustCompile(`\s*transform\s*=\s*("[^"]*"|'[^']*')`)

// pathElement extracts the first path element of a stored drawing, drops any transform
// it carried and anchors it at (Margin, Margin).
func pathElement(svg string) (string, error) {
	s := strings.TrimSpace(svg)
	start := strings.Index(s, "<path")
	if start < 0 {
		return "", catvol.Invalid("svg", "drawing has no path element")
	}
	s = s[start:]
	end := strings.Index(s, ">")
	if end < 0 {
		return "", catvol.Invalid("svg", "unterminated path element")
	}
	elem := strings.TrimSuffix(s[:end], "/")
	elem = transformAttr.ReplaceAllString(elem, "")
	return fmt.Sprintf(`%s transform="translate(%d %d)"/>`, strings.TrimSpace(elem), Margin, Margin), nil
}

// Rasterize renders the path of a drawing whose bounding box is width x height pixels.
// The returned plane is (width + 2*Margin) x (height + 2*Margin) 8-bit luminance;
// untouched pixels are 0.
func Rasterize(svg string, width, height int) (*catvol.Gray8, error) {
	if width <= 0 || height <= 0 {
		return nil, catvol.Invalid("bbox", "drawing extent %d x %d is empty", width, height)
	}
	elem, err := pathElement(svg)
	if err != nil {
		return nil, err
	}
	w, h := width+2*Margin, height+2*Margin
	doc := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">%s</svg>`,
		w, h, w, h, elem)

	icon, err := oksvg.ReadIconStream(strings.NewReader(doc))
	if err != nil {
		return nil, catvol.Invalid("svg", "unable to parse drawing: %v", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)

	return catvol.Luminance(img), nil
}

// Composite stamps id into plane wherever intensity is positive, with intensity pixel
// (0,0) placed at plane pixel (offsetX, offsetY).  Pixels falling outside the plane are
// dropped.  It returns the number of plane pixels written.
func Composite(plane *catvol.LabelPlane, intensity *catvol.Gray8, offsetX, offsetY int, id int64) int {
	var n int
	for row := 0; row < intensity.Height; row++ {
		py := offsetY + row
		if py < 0 || py >= plane.Height {
			continue
		}
		for col := 0; col < intensity.Width; col++ {
			if intensity.Data[row*intensity.Width+col] == 0 {
				continue
			}
			px := offsetX + col
			if px < 0 || px >= plane.Width {
				continue
			}
			plane.Data[py*plane.Width+px] = id
			n++
		}
	}
	return n
}

// Drawing is the geometry needed to place a rendered drawing.
type Drawing struct {
	ID                     int64
	MinX, MinY, MaxX, MaxY int32
	SVG                    string
}

// Stamp renders d and composites it into plane at its recorded position.
func Stamp(plane *catvol.LabelPlane, d Drawing) (int, error) {
	bounds := catvol.Rect{MinX: d.MinX, MinY: d.MinY, MaxX: d.MaxX, MaxY: d.MaxY}
	if !bounds.Valid() {
		return 0, catvol.Invalid("bbox", "drawing %d has inverted box %s", d.ID, bounds)
	}
	intensity, err := Rasterize(d.SVG, bounds.Width(), bounds.Height())
	if err != nil {
		return 0, fmt.Errorf("drawing %d: %w", d.ID, err)
	}
	return Composite(plane, intensity, int(d.MinX)-Margin, int(d.MinY)-Margin, d.ID), nil
}
