package componenttree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// importSchema describes the JSON emitted by component-tree producers:
//
//	{"sections": [{"z": 0, "components": [{"threshold": 0.5, "pixels": [[x, y], ...]}]}]}
const importSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["sections"],
	"properties": {
		"sections": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["z", "components"],
				"properties": {
					"z": {"type": "integer", "minimum": 0},
					"components": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["threshold", "pixels"],
							"properties": {
								"threshold": {"type": "number"},
								"pixels": {
									"type": "array",
									"minItems": 1,
									"items": {
										"type": "array",
										"items": {"type": "integer", "minimum": 0},
										"minItems": 2,
										"maxItems": 2
									}
								}
							}
						}
					}
				}
			}
		}
	}
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = jsonschema.CompileString("componenttree-import.json", importSchema)
	})
	return compiledSchema, compileErr
}

type importFile struct {
	Sections []struct {
		Z          int32 `json:"z"`
		Components []struct {
			Threshold float64    `json:"threshold"`
			Pixels    [][2]int32 `json:"pixels"`
		} `json:"components"`
	} `json:"sections"`
}

// ReadImport parses and validates a component-tree import document, returning the
// components of each section.
func ReadImport(r io.Reader) (map[int32][]Component, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	sch, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("bad import schema: %v", err)
	}
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, catvol.Invalid("", "import is not JSON: %v", err)
	}
	if err := sch.Validate(raw); err != nil {
		return nil, catvol.Invalid("", "import does not match schema: %v", err)
	}
	var doc importFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, catvol.Invalid("", "bad import: %v", err)
	}
	out := make(map[int32][]Component, len(doc.Sections))
	for _, sec := range doc.Sections {
		comps := make([]Component, len(sec.Components))
		for i, c := range sec.Components {
			comps[i].Threshold = c.Threshold
			comps[i].Pixels = make([]catvol.Pixel, len(c.Pixels))
			for j, p := range c.Pixels {
				comps[i].Pixels[j] = catvol.Pixel{X: p[0], Y: p[1]}
			}
		}
		out[sec.Z] = comps
	}
	return out, nil
}

// Import writes every section of an import document, returning the number of
// components written.
func (t *Tree) Import(sections map[int32][]Component) (int, error) {
	var n int
	for z, comps := range sections {
		if err := t.ImportSection(z, comps); err != nil {
			return n, fmt.Errorf("section %d: %w", z, err)
		}
		n += len(comps)
	}
	catvol.Infof("Imported %d components over %d sections into %s\n", n, len(sections), t)
	return n, nil
}
