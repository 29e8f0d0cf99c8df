package starmap

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RawDataset is the loosely structured input handed to the normalizer.
type RawDataset = map[string]any

// Top-level dataset keys understood by the normalizer.
const (
	FieldSystems        = "systems"
	FieldSystemPixels   = "system_pixels"
	FieldEndpointPixels = "endpoint_pixels"
	FieldSystemGrid     = "system_grid"
	FieldSectors        = "sectors"
	// FieldErrors is reserved for per-entity failures in encoded output.
	FieldErrors = "_errors"
)

// Per-system keys resolved against the side tables.
const (
	fieldCoords = "coords"
	fieldGrid   = "grid"
	fieldSector = "sector"
)

// Coords is a resolved pixel coordinate pair.
type Coords [2]float64

// X returns the horizontal component.
func (c Coords) X() float64 { return c[0] }

// Y returns the vertical component.
func (c Coords) Y() float64 { return c[1] }

// System is the canonical per-entity form of one star system.
type System struct {
	ID string
	// Fields holds every base field other than coords, grid and sector.
	Fields map[string]any
	Coords Optional[Coords]
	Grid   Optional[any]
	Sector Optional[string]
	// Unparsed holds coords or sector values that won resolution but do not
	// fit their typed form, as given. The typed field is absent for them.
	Unparsed map[string]any
}

func (s *System) keepUnparsed(field string, value any) {
	if s.Unparsed == nil {
		s.Unparsed = map[string]any{}
	}
	s.Unparsed[field] = value
}

// Name returns the "name" base field when it is a string.
func (s System) Name() string {
	name, _ := s.Fields["name"].(string)
	return name
}

// Map flattens the system into a fresh map. Absent fields are omitted;
// unparsed ones appear as given.
func (s System) Map() map[string]any {
	out := make(map[string]any, len(s.Fields)+3)
	for key, value := range s.Fields {
		out[key] = value
	}
	for key, value := range s.Unparsed {
		out[key] = value
	}
	if coords, ok := s.Coords.Get(); ok {
		out[fieldCoords] = []float64{coords[0], coords[1]}
	}
	if grid, ok := s.Grid.Get(); ok {
		out[fieldGrid] = grid
	}
	if sector, ok := s.Sector.Get(); ok {
		out[fieldSector] = sector
	}
	return out
}

// MarshalJSON encodes the system in its raw record shape.
func (s System) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// EntityError records a system dropped during normalization.
type EntityError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (e EntityError) Error() string {
	return fmt.Sprintf("starmap: system %q: %s", e.ID, e.Message)
}

// Dataset is the normalized dataset. Instances handed out by the normalizer
// and the cache are shared and must be treated as read-only.
type Dataset struct {
	Systems map[string]System
	// Fields holds every other top-level raw field, shallow copied.
	Fields map[string]any
	Errors []EntityError
}

// EmptyDataset returns a dataset with no systems and no extra fields.
func EmptyDataset() *Dataset {
	return &Dataset{Systems: map[string]System{}}
}

// System looks up one canonical system.
func (d *Dataset) System(id string) (System, bool) {
	if d == nil {
		return System{}, false
	}
	system, ok := d.Systems[id]
	return system, ok
}

// Len returns the number of systems.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Systems)
}

// IDs returns the system ids in sorted order.
func (d *Dataset) IDs() []string {
	if d == nil {
		return nil
	}
	return sortedKeys(d.Systems)
}

// Field returns a pass-through top-level field.
func (d *Dataset) Field(name string) (any, bool) {
	if d == nil {
		return nil, false
	}
	value, ok := d.Fields[name]
	return value, ok
}

// HasErrors reports whether any system was dropped.
func (d *Dataset) HasErrors() bool {
	return d != nil && len(d.Errors) > 0
}

// MarshalJSON encodes the dataset in raw shape with systems replaced by their
// canonical form and the reserved errors field set only when needed.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(d.Fields)+2)
	for key, value := range d.Fields {
		out[key] = value
	}
	systems := d.Systems
	if systems == nil {
		systems = map[string]System{}
	}
	out[FieldSystems] = systems
	if len(d.Errors) > 0 {
		out[FieldErrors] = d.Errors
	}
	return json.Marshal(out)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
