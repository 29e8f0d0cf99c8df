package starmap

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidDataset indicates the raw dataset is not an object.
	ErrInvalidDataset = errors.New("starmap: dataset is not an object")
	// ErrUnknownSystem indicates an id missing from raw.systems.
	ErrUnknownSystem = errors.New("starmap: unknown system")
)

// Trace captures which sources were consulted when resolving one field of a
// system and what each of them held.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how one source contributed to a traced path.
type Provenance struct {
	Source string `json:"source"`
	Path   string `json:"path"`
	Value  any    `json:"value,omitempty"`
	Found  bool   `json:"found"`
}

// Winner returns the first layer that held a value, which is the one
// Normalize resolves the field from.
func (t Trace) Winner() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload previously produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// TraceSystem explains how coords, grid and sector of system id are resolved
// from raw, strongest source first.
func TraceSystem(raw any, id string) ([]Trace, error) {
	root, ok := asObject(raw)
	if !ok {
		return nil, ErrInvalidDataset
	}
	records, _ := asObject(root[FieldSystems])
	record, exists := records[id]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSystem, id)
	}
	own, _ := asObject(record)

	pixels, pixelsTag := pixelSource(root)
	grid, _ := asObject(root[FieldSystemGrid])
	sectors := sectorIndex(root[FieldSectors])

	ownLayer := func(field string) Provenance {
		value := own[field]
		return Provenance{
			Source: FieldSystems,
			Path:   fmt.Sprintf("%s.%s.%s", FieldSystems, id, field),
			Value:  value,
			Found:  value != nil,
		}
	}
	tableLayer := func(source string, table map[string]any) Provenance {
		value := table[id]
		return Provenance{
			Source: source,
			Path:   fmt.Sprintf("%s.%s", source, id),
			Value:  value,
			Found:  value != nil,
		}
	}

	sectorLayer := Provenance{Source: FieldSectors, Path: FieldSectors}
	if name, ok := sectors[id]; ok {
		sectorLayer.Path = fmt.Sprintf("%s.%s", FieldSectors, name)
		sectorLayer.Value = name
		sectorLayer.Found = true
	}

	systemPath := fmt.Sprintf("%s.%s", FieldSystems, id)
	return []Trace{
		{Path: systemPath + "." + fieldCoords, Layers: []Provenance{ownLayer(fieldCoords), tableLayer(pixelsTag, pixels)}},
		{Path: systemPath + "." + fieldGrid, Layers: []Provenance{ownLayer(fieldGrid), tableLayer(FieldSystemGrid, grid)}},
		{Path: systemPath + "." + fieldSector, Layers: []Provenance{ownLayer(fieldSector), sectorLayer}},
	}, nil
}
