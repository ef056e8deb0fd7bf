package segment

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const selectionItem = `{
	"type": "object",
	"required": ["id", "minX", "minY", "maxX", "maxY", "threshold"],
	"properties": {
		"id": {"type": "integer", "minimum": 0},
		"minX": {"type": "integer"},
		"minY": {"type": "integer"},
		"maxX": {"type": "integer"},
		"maxY": {"type": "integer"},
		"threshold": {"type": "number"}
	}
}`

// The paint tool sends its selection keyed by component id; lists are also accepted.
const selectionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"oneOf": [
		{"type": "object", "additionalProperties": ` + selectionItem + `},
		{"type": "array", "items": ` + selectionItem + `}
	]
}`

const drawingSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["minX", "minY", "maxX", "maxY", "svg", "type"],
	"properties": {
		"componentId": {"type": ["integer", "null"], "minimum": 0},
		"minX": {"type": "integer"},
		"minY": {"type": "integer"},
		"maxX": {"type": "integer"},
		"maxY": {"type": "integer"},
		"svg": {"type": "string", "minLength": 1},
		"type": {"type": "integer", "enum": [300, 400, 500, 600, 700]}
	}
}`

type schemaCache struct {
	once   sync.Once
	source string
	schema *jsonschema.Schema
	err    error
}

func (c *schemaCache) get(name string) (*jsonschema.Schema, error) {
	c.once.Do(func() {
		c.schema, c.err = jsonschema.CompileString(name, c.source)
	})
	return c.schema, c.err
}

var (
	selectionSchemaCache = &schemaCache{source: selectionSchema}
	drawingSchemaCache   = &schemaCache{source: drawingSchema}
)

func validate(c *schemaCache, name, field string, data []byte) error {
	sch, err := c.get(name)
	if err != nil {
		return err
	}
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return catvol.Invalid(field, "not JSON: %v", err)
	}
	if err := sch.Validate(doc); err != nil {
		return catvol.Invalid(field, "%v", err)
	}
	return nil
}

// ParseSelection decodes the components of a put request, ordered by component id.
func ParseSelection(data []byte) ([]Selection, error) {
	if err := validate(selectionSchemaCache, "selection.json", "components", data); err != nil {
		return nil, err
	}
	var selection []Selection
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		if err := json.Unmarshal(data, &selection); err != nil {
			return nil, catvol.Invalid("components", "%v", err)
		}
	} else {
		var keyed map[string]Selection
		if err := json.Unmarshal(data, &keyed); err != nil {
			return nil, catvol.Invalid("components", "%v", err)
		}
		for _, sel := range keyed {
			selection = append(selection, sel)
		}
	}
	sort.Slice(selection, func(i, j int) bool { return selection[i].ID < selection[j].ID })
	return selection, nil
}

type drawingPayload struct {
	ComponentID *int64 `json:"componentId"`
	MinX        int32  `json:"minX"`
	MinY        int32  `json:"minY"`
	MaxX        int32  `json:"maxX"`
	MaxY        int32  `json:"maxY"`
	SVG         string `json:"svg"`
	Type        int    `json:"type"`
}

// ParseDrawing decodes the drawing of a put request.  Project, stack, skeleton and z
// are sent alongside and must be filled in by the caller.
func ParseDrawing(data []byte) (*Drawing, error) {
	if err := validate(drawingSchemaCache, "drawing.json", "drawing", data); err != nil {
		return nil, err
	}
	var p drawingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, catvol.Invalid("drawing", "%v", err)
	}
	t, err := catvol.ParseDrawingType(p.Type)
	if err != nil {
		return nil, err
	}
	return &Drawing{
		ComponentID: p.ComponentID,
		MinX:        p.MinX,
		MinY:        p.MinY,
		MaxX:        p.MaxX,
		MaxY:        p.MaxY,
		SVG:         p.SVG,
		Type:        t,
	}, nil
}
