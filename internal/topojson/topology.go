// Package topojson decodes TopoJSON topologies and converts their objects into
// standalone GeoJSON geometry built on orb types.
//
// Only the parts of the format needed for boundary data are interpreted:
// quantization transforms with delta-encoded arcs, arc stitching with reversed
// arc references, and the Point/LineString/Polygon families plus
// GeometryCollection. Object order is kept as it appears in the document so
// "the first object" is well defined.
package topojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotTopology = errors.New("topojson: not a topology")
	ErrNoObjects   = errors.New("topojson: topology has no objects")
	ErrUnknownObj  = errors.New("topojson: unknown object")
	ErrArcIndex    = errors.New("topojson: arc index out of range")
	ErrBadGeometry = errors.New("topojson: malformed geometry")
)

// Transform is the quantization transform of a topology.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

// Geometry is one TopoJSON geometry object. Arcs and Coordinates stay raw
// because their nesting depth depends on Type.
type Geometry struct {
	Type        string          `json:"type"`
	ID          any             `json:"id,omitempty"`
	Properties  map[string]any  `json:"properties,omitempty"`
	BBox        []float64       `json:"bbox,omitempty"`
	Arcs        json.RawMessage `json:"arcs,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []*Geometry     `json:"geometries,omitempty"`
}

// Object is a named top-level entry of a topology.
type Object struct {
	Name     string
	Geometry *Geometry
}

// Topology is a decoded TopoJSON document.
type Topology struct {
	Type      string
	BBox      []float64
	Transform *Transform
	Objects   []Object
	Arcs      [][][]float64
}

type rawTopology struct {
	Type      string          `json:"type"`
	BBox      []float64       `json:"bbox,omitempty"`
	Transform *Transform      `json:"transform,omitempty"`
	Objects   json.RawMessage `json:"objects"`
	Arcs      [][][]float64   `json:"arcs"`
}

// Decode parses a topology document. It fails when the document is not valid
// JSON, is not of type "Topology", or carries no objects.
func Decode(data []byte) (*Topology, error) {
	var raw rawTopology
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("topojson: decode: %w", err)
	}
	if raw.Type != "Topology" {
		return nil, fmt.Errorf("%w: type=%q", ErrNotTopology, raw.Type)
	}
	objs, err := orderedObjects(raw.Objects)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, ErrNoObjects
	}
	if raw.Transform != nil && (raw.Transform.Scale[0] == 0 || raw.Transform.Scale[1] == 0) {
		return nil, fmt.Errorf("topojson: transform scale must be non-zero")
	}
	return &Topology{
		Type:      raw.Type,
		BBox:      raw.BBox,
		Transform: raw.Transform,
		Objects:   objs,
		Arcs:      raw.Arcs,
	}, nil
}

// orderedObjects walks the objects member token by token so that document
// order survives; a plain map would lose it.
func orderedObjects(raw json.RawMessage) ([]Object, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, ErrNoObjects
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("topojson: objects: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("topojson: objects must be a JSON object")
	}
	var out []Object
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("topojson: objects: %w", err)
		}
		name, _ := tok.(string)
		var g Geometry
		if err := dec.Decode(&g); err != nil {
			return nil, fmt.Errorf("topojson: object %q: %w", name, err)
		}
		out = append(out, Object{Name: name, Geometry: &g})
	}
	return out, nil
}

// ObjectNames lists object names in document order.
func (t *Topology) ObjectNames() []string {
	names := make([]string, 0, len(t.Objects))
	for _, o := range t.Objects {
		names = append(names, o.Name)
	}
	return names
}

// Object returns the named object. An empty name selects the first object.
func (t *Topology) Object(name string) (Object, bool) {
	if len(t.Objects) == 0 {
		return Object{}, false
	}
	if name == "" {
		return t.Objects[0], true
	}
	for _, o := range t.Objects {
		if o.Name == name {
			return o, true
		}
	}
	return Object{}, false
}
