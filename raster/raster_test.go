package raster

import (
	"fmt"
	"testing"

	"github.com/janelia-flyem/catvol/catvol"
)

// rectDrawing is a filled rectangle covering the drawing's whole box, stored the way
// the paint tool does with its own placement transform.
func rectDrawing(width, height int) string {
	return fmt.Sprintf(`<svg><path d="M0 0 L%d 0 L%d %d L0 %d Z" fill="#ffffff" stroke="none" transform="translate(812 93)"/></svg>`,
		width, width, height, height)
}

func TestPathElement(t *testing.T) {
	tests := []struct {
		svg      string
		expected string
	}{
		{
			`<svg width="10"><path d="M0 0 L5 5" stroke="red" transform="translate(3 4)"/></svg>`,
			`<path d="M0 0 L5 5" stroke="red" transform="translate(50 50)"/>`,
		},
		{
			`<path d="M1 1" transform='matrix(1 0 0 1 0 0)' stroke-width="3" />`,
			`<path d="M1 1" stroke-width="3" transform="translate(50 50)"/>`,
		},
		{
			`<path d="M1 1">`,
			`<path d="M1 1" transform="translate(50 50)"/>`,
		},
	}
	for _, tc := range tests {
		elem, err := pathElement(tc.svg)
		if err != nil {
			t.Fatalf("Unable to extract path from %s: %v\n", tc.svg, err)
		}
		if elem != tc.expected {
			t.Errorf("Expected %s, got %s\n", tc.expected, elem)
		}
	}
	if _, err := pathElement(`<svg><circle r="3"/></svg>`); !catvol.IsValidation(err) {
		t.Errorf("Expected ValidationError for drawing without path, got %v\n", err)
	}
}

func TestRasterizeMargin(t *testing.T) {
	intensity, err := Rasterize(rectDrawing(20, 10), 21, 11)
	if err != nil {
		t.Fatalf("Couldn't rasterize: %v\n", err)
	}
	if intensity.Width != 121 || intensity.Height != 111 {
		t.Fatalf("Expected 121 x 111 surface, got %d x %d\n", intensity.Width, intensity.Height)
	}
	if intensity.At(55, 55) == 0 {
		t.Errorf("Expected painted pixel inside anchored rectangle\n")
	}
	for _, p := range [][2]int{{0, 0}, {49, 55}, {55, 49}, {75, 55}, {55, 65}} {
		if v := intensity.At(p[0], p[1]); v != 0 {
			t.Errorf("Expected margin pixel %v to be empty, got %d\n", p, v)
		}
	}
	if _, err := Rasterize(rectDrawing(1, 1), 0, 5); !catvol.IsValidation(err) {
		t.Errorf("Expected ValidationError for empty extent, got %v\n", err)
	}
}

func TestCompositeClips(t *testing.T) {
	plane := catvol.NewLabelPlane(4, 3)
	intensity := catvol.NewGray8(3, 3)
	for i := range intensity.Data {
		intensity.Data[i] = 9
	}
	intensity.Set(1, 1, 0)
	n := Composite(plane, intensity, -1, 1, 5)
	expected := []int64{
		0, 0, 0, 0,
		5, 5, 0, 0,
		0, 5, 0, 0,
	}
	for i, v := range expected {
		if plane.Data[i] != v {
			t.Fatalf("Expected plane %v, got %v\n", expected, plane.Data)
		}
	}
	if n != 3 {
		t.Errorf("Expected 3 stamped pixels, got %d\n", n)
	}
}

func TestRoundTripStaysInBox(t *testing.T) {
	tests := []Drawing{
		{ID: 11, MinX: 0, MinY: 0, MaxX: 20, MaxY: 10},
		{ID: 12, MinX: 30, MinY: 25, MaxX: 50, MaxY: 35},
		{ID: 13, MinX: 55, MinY: 35, MaxX: 75, MaxY: 45}, // runs off the frame
	}
	for _, d := range tests {
		d.SVG = rectDrawing(int(d.MaxX-d.MinX), int(d.MaxY-d.MinY))
		plane := catvol.NewLabelPlane(64, 40)
		n, err := Stamp(plane, d)
		if err != nil {
			t.Fatalf("Couldn't stamp drawing %d: %v\n", d.ID, err)
		}
		if n == 0 {
			t.Fatalf("Drawing %d stamped nothing\n", d.ID)
		}
		box := catvol.Rect{MinX: d.MinX, MinY: d.MinY, MaxX: d.MaxX, MaxY: d.MaxY}
		for y := 0; y < plane.Height; y++ {
			for x := 0; x < plane.Width; x++ {
				v := plane.At(x, y)
				if v != 0 && v != d.ID {
					t.Fatalf("Unexpected label %d at (%d,%d)\n", v, x, y)
				}
				if v == d.ID && !box.Contains(int32(x), int32(y)) {
					t.Fatalf("Drawing %d set pixel (%d,%d) outside box %s\n", d.ID, x, y, box)
				}
			}
		}
		if plane.At(int(d.MinX), int(d.MinY)) != d.ID {
			t.Errorf("Drawing %d did not cover its corner (%d,%d)\n", d.ID, d.MinX, d.MinY)
		}
	}

	bad := Drawing{ID: 1, MinX: 5, MaxX: 4, SVG: rectDrawing(1, 1)}
	if _, err := Stamp(catvol.NewLabelPlane(8, 8), bad); !catvol.IsValidation(err) {
		t.Errorf("Expected ValidationError for inverted box, got %v\n", err)
	}
}
