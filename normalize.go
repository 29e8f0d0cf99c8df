package starmap

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/goliatone/go-starmap/diag"
)

// Normalizer consolidates a raw dataset into canonical per-system records.
// Normalize is a pure function of its input, which is what makes caching by
// content sound.
type Normalizer struct {
	diag diag.Sink
}

// NewNormalizer constructs a normalizer reporting to sink.
func NewNormalizer(sink diag.Sink) *Normalizer {
	return &Normalizer{diag: diag.OrNop(sink)}
}

// Normalize is a convenience wrapper around a normalizer without diagnostics.
func Normalize(raw any) *Dataset {
	return NewNormalizer(nil).Normalize(raw)
}

// Normalize never fails: invalid input yields an empty dataset, and a system
// whose record is not an object, or whose merge panics, is dropped and
// listed in Dataset.Errors. A coords or sector value that wins resolution but
// does not fit its typed form is kept as given in System.Unparsed and
// reported as a warning.
func (n *Normalizer) Normalize(raw any) *Dataset {
	root, ok := asObject(raw)
	if !ok {
		n.diag.Warn("normalize: dataset is not an object", "type", describeType(raw))
		return EmptyDataset()
	}
	n.checkTables(root)

	tables := newSideTables(root)
	out := &Dataset{
		Systems: map[string]System{},
		Fields:  passThrough(root),
	}

	records, _ := asObject(root[FieldSystems])
	for _, id := range sortedKeys(records) {
		system, err := tables.resolve(id, records[id])
		if err != nil {
			out.Errors = append(out.Errors, EntityError{ID: id, Message: err.Error()})
			continue
		}
		for _, field := range sortedKeys(system.Unparsed) {
			n.diag.Warn("normalize: field kept unparsed",
				"id", id, "field", field, "type", describeType(system.Unparsed[field]))
		}
		out.Systems[id] = system
	}

	if len(out.Errors) > 0 {
		n.diag.Error("normalize: systems dropped", out.Errors[0], "count", len(out.Errors))
	}
	return out
}

// checkTables warns about present top-level tables that are not objects and
// sector entries that are not lists. They are treated as empty.
func (n *Normalizer) checkTables(root map[string]any) {
	for _, field := range []string{FieldSystems, FieldSystemPixels, FieldEndpointPixels, FieldSystemGrid, FieldSectors} {
		value, present := root[field]
		if !present || value == nil {
			continue
		}
		if _, ok := asObject(value); !ok {
			n.diag.Warn("normalize: table is not an object, ignored", "field", field, "type", describeType(value))
		}
	}
	sectors, _ := asObject(root[FieldSectors])
	for _, name := range sortedKeys(sectors) {
		if !isList(sectors[name]) {
			n.diag.Warn("normalize: sector is not a list, ignored", "sector", name, "type", describeType(sectors[name]))
		}
	}
}

// sideTables holds the lookup tables resolved once per Normalize call.
type sideTables struct {
	pixels  map[string]any
	grid    map[string]any
	sectors map[string]string
}

func newSideTables(root map[string]any) sideTables {
	pixels, _ := pixelSource(root)
	grid, _ := asObject(root[FieldSystemGrid])
	return sideTables{
		pixels:  pixels,
		grid:    grid,
		sectors: sectorIndex(root[FieldSectors]),
	}
}

func (t sideTables) resolve(id string, record any) (system System, err error) {
	defer func() {
		if r := recover(); r != nil {
			system = System{}
			err = fmt.Errorf("merge panicked: %v", r)
		}
	}()

	own, ok := asObject(record)
	if !ok {
		return System{}, fmt.Errorf("record is %s, not an object", describeType(record))
	}

	system = System{
		ID:     id,
		Fields: baseFields(own),
		Grid:   optionalAny(own[fieldGrid]).Or(optionalAny(t.grid[id])),
	}

	// The first present source wins as given, parsed or not.
	coords := own[fieldCoords]
	if coords == nil {
		coords = t.pixels[id]
	}
	if coords != nil {
		if parsed, err := parseCoords(coords); err == nil {
			system.Coords = Some(parsed)
		} else {
			system.keepUnparsed(fieldCoords, coords)
		}
	}

	switch sector := own[fieldSector].(type) {
	case nil:
		if name, ok := t.sectors[id]; ok {
			system.Sector = Some(name)
		}
	case string:
		system.Sector = Some(sector)
	default:
		system.keepUnparsed(fieldSector, sector)
	}
	return system, nil
}

// pixelSource picks system_pixels when it is an object, else endpoint_pixels,
// else nothing. The returned tag names the chosen field.
func pixelSource(root map[string]any) (map[string]any, string) {
	if pixels, ok := asObject(root[FieldSystemPixels]); ok {
		return pixels, FieldSystemPixels
	}
	if pixels, ok := asObject(root[FieldEndpointPixels]); ok {
		return pixels, FieldEndpointPixels
	}
	return nil, "none"
}

// sectorIndex reverses sector name -> ids. Sector names are visited in sorted
// order and ids in list order; the first sector that lists an id wins.
func sectorIndex(value any) map[string]string {
	sectors, ok := asObject(value)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(sectors))
	for name := range sectors {
		names = append(names, name)
	}
	sort.Strings(names)

	index := map[string]string{}
	for _, name := range names {
		for _, id := range stringList(sectors[name]) {
			if _, seen := index[id]; !seen {
				index[id] = name
			}
		}
	}
	return index
}

// stringList returns the string items of any slice or array, skipping the
// rest.
func stringList(value any) []string {
	if list, ok := value.([]string); ok {
		return list
	}
	if !isList(value) {
		return nil
	}
	v := reflect.ValueOf(value)
	out := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		if item, ok := v.Index(i).Interface().(string); ok {
			out = append(out, item)
		}
	}
	return out
}

func isList(value any) bool {
	if value == nil {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

func baseFields(own map[string]any) map[string]any {
	fields := make(map[string]any, len(own))
	for key, value := range own {
		switch key {
		case fieldCoords, fieldGrid, fieldSector:
			continue
		}
		fields[key] = value
	}
	return fields
}

func passThrough(root map[string]any) map[string]any {
	fields := make(map[string]any, len(root))
	for key, value := range root {
		if key == FieldSystems {
			continue
		}
		fields[key] = value
	}
	return fields
}

func optionalAny(value any) Optional[any] {
	if value == nil {
		return None[any]()
	}
	return Some(value)
}

// parseCoords accepts any 2-item numeric slice or array and {x, y} objects.
func parseCoords(value any) (Coords, error) {
	switch typed := value.(type) {
	case Coords:
		return typed, nil
	case [2]float64:
		return Coords(typed), nil
	}
	if object, ok := asObject(value); ok {
		x, okX := toFloat(object["x"])
		y, okY := toFloat(object["y"])
		if !okX || !okY {
			return Coords{}, fmt.Errorf("expected numeric x and y")
		}
		return Coords{x, y}, nil
	}
	if !isList(value) {
		return Coords{}, fmt.Errorf("expected coordinate pair, got %s", describeType(value))
	}
	v := reflect.ValueOf(value)
	if v.Len() != 2 {
		return Coords{}, fmt.Errorf("expected 2 components, got %d", v.Len())
	}
	first, second := v.Index(0).Interface(), v.Index(1).Interface()
	x, okX := toFloat(first)
	y, okY := toFloat(second)
	if !okX || !okY {
		return Coords{}, fmt.Errorf("expected numeric pair, got [%s, %s]", describeType(first), describeType(second))
	}
	return Coords{x, y}, nil
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case nil:
		return 0, false
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

// asObject accepts any map with string keys. Maps other than map[string]any
// are copied into one.
func asObject(value any) (map[string]any, bool) {
	if m, ok := value.(map[string]any); ok {
		return m, m != nil
	}
	if value == nil {
		return nil, false
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String || v.IsNil() {
		return nil, false
	}
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func describeType(value any) string {
	if value == nil {
		return "null"
	}
	return fmt.Sprintf("%T", value)
}
