package starmap

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMode is reported when SetMode receives a value outside the
// interaction mode enumeration.
var ErrInvalidMode = errors.New("starmap: invalid mode")

// Mode is the current map interaction mode.
type Mode string

const (
	ModeView    Mode = "view"
	ModeEdit    Mode = "edit"
	ModeRoute   Mode = "route"
	ModeMeasure Mode = "measure"
)

// DefaultMode is the mode of a freshly constructed container.
const DefaultMode = ModeView

// Modes lists every valid mode.
func Modes() []Mode {
	return []Mode{ModeView, ModeEdit, ModeRoute, ModeMeasure}
}

// Valid reports whether m is one of Modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeView, ModeEdit, ModeRoute, ModeMeasure:
		return true
	}
	return false
}

// ParseMode converts value to a Mode, ignoring case and surrounding space.
func ParseMode(value string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(value)))
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, value)
	}
	return mode, nil
}

// Config is host configuration. It is fixed at construction.
type Config map[string]any

// Campaign is the active campaign document.
type Campaign map[string]any

// Access holds permission flags merged by SetAccess.
type Access map[string]any

// Selection tracks the selected system, if any.
type Selection struct {
	System Optional[string]
}

// EditorJob is a queued edit against a dataset.
type EditorJob struct {
	ID            string         `json:"id"`
	TargetDataset string         `json:"target_dataset"`
	OpType        string         `json:"op_type"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Editor is the editor sub-state. Jobs is never mutated once published.
type Editor struct {
	Enabled bool
	Jobs    []EditorJob
}

// State is an immutable snapshot of the application. Every action produces a
// new State; sub-structures that did not change are shared with the previous
// snapshot, so callers must not modify anything reachable from a State.
type State struct {
	Config    Config
	Dataset   *Dataset
	Campaign  Campaign
	Access    Access
	Selection Selection
	Mode      Mode
	Editor    Editor
}

// SelectedSystem returns the selected system from the current dataset.
func (s State) SelectedSystem() (System, bool) {
	id, ok := s.Selection.System.Get()
	if !ok {
		return System{}, false
	}
	return s.Dataset.System(id)
}
