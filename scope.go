package starmap

import "strings"

// Paths reported by the container actions.
const (
	ScopeSelection  = "selection"
	ScopeMode       = "mode"
	ScopeDataset    = "dataset"
	ScopeCampaign   = "campaign"
	ScopeAccess     = "access"
	ScopeEditor     = "editor"
	ScopeEditorJobs = "editor.jobs"
)

// Path addresses a location in State, outermost segment first.
type Path []string

// ParsePath splits a dotted path. Empty segments are dropped, so "" and "."
// both yield the empty path.
func ParsePath(value string) Path {
	var path Path
	for _, segment := range strings.Split(value, ".") {
		segment = strings.TrimSpace(segment)
		if segment != "" {
			path = append(path, segment)
		}
	}
	return path
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// IsRoot reports whether p is the empty path.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Equal reports segment-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading run of segments of p.
// "editor.jobs" has prefix "editor"; "editor" does not have prefix
// "editor.jobs"; "editors" does not have prefix "editor".
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// matchesBatch reports whether a subscription to scope should see batch.
func matchesBatch(scope Path, batch []Path) bool {
	if scope.IsRoot() {
		return len(batch) > 0
	}
	for _, changed := range batch {
		if changed.HasPrefix(scope) {
			return true
		}
	}
	return false
}
