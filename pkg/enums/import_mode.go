package enums

import "fmt"

// ImportMode selects how a bulk import reconciles against the current catalog.
type ImportMode string

const (
	// ImportModeMerge is additive: rows create or field-patch items, nothing
	// is ever deleted.
	ImportModeMerge ImportMode = "merge"
	// ImportModeReset treats the file as the complete truth: items absent
	// from the file are removed.
	ImportModeReset ImportMode = "reset"
)

var validImportModes = []ImportMode{
	ImportModeMerge,
	ImportModeReset,
}

// String implements fmt.Stringer.
func (m ImportMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ImportMode.
func (m ImportMode) IsValid() bool {
	for _, candidate := range validImportModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseImportMode converts raw input into an ImportMode.
func ParseImportMode(value string) (ImportMode, error) {
	for _, candidate := range validImportModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid import mode %q", value)
}
