package catvol

import (
	"encoding/json"
	"fmt"
	"image/color"
)

// DrawingType is the closed set of paint tool annotation kinds.  The numeric codes
// match the canvas tool enum.
type DrawingType int

const (
	Mitochondria DrawingType = 300
	Membrane     DrawingType = 400
	Soma         DrawingType = 500
	Misc         DrawingType = 600
	Eraser       DrawingType = 700
)

type drawingTypeInfo struct {
	name  string
	color [3]uint8
}

var drawingTypes = map[DrawingType]drawingTypeInfo{
	Mitochondria: {"mitochondria", [3]uint8{50, 50, 255}},
	Membrane:     {"membrane", [3]uint8{150, 50, 50}},
	Soma:         {"soma", [3]uint8{255, 255, 0}},
	Misc:         {"misc", [3]uint8{255, 50, 50}},
	Eraser:       {"erasor", [3]uint8{255, 255, 255}},
}

// DrawingTypes lists every drawing type in ascending code order.
func DrawingTypes() []DrawingType {
	return []DrawingType{Mitochondria, Membrane, Soma, Misc, Eraser}
}

// ParseDrawingType validates a numeric code.
func ParseDrawingType(code int) (DrawingType, error) {
	t := DrawingType(code)
	if _, found := drawingTypes[t]; !found {
		return 0, Invalid("type", "unknown drawing type %d", code)
	}
	return t, nil
}

// Known returns true if t is one of the defined drawing types.
func (t DrawingType) Known() bool {
	_, found := drawingTypes[t]
	return found
}

// ChannelName is the name of the volume channel holding free drawings of this type.
func (t DrawingType) ChannelName() string {
	if info, found := drawingTypes[t]; found {
		return info.name
	}
	return fmt.Sprintf("type%d", int(t))
}

func (t DrawingType) String() string {
	return t.ChannelName()
}

// Color is the display color of the type.
func (t DrawingType) Color() color.NRGBA {
	info := drawingTypes[t]
	return color.NRGBA{info.color[0], info.color[1], info.color[2], 255}
}

// DrawingTypesJSON returns the enumeration keyed by channel name, in the form the paint
// tool expects: {"soma": {"value": 500, "string": "soma", "color": [255,255,0]}, ...}.
func DrawingTypesJSON() ([]byte, error) {
	type entry struct {
		Value  int      `json:"value"`
		String string   `json:"string"`
		Color  [3]uint8 `json:"color"`
	}
	out := make(map[string]entry, len(drawingTypes))
	for t, info := range drawingTypes {
		out[info.name] = entry{int(t), info.name, info.color}
	}
	return json.Marshal(out)
}
