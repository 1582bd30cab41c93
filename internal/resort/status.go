package resort

import (
	"fmt"
	"strings"
)

// StatusMap translates vendor status codes into canonical facility states.
// Keys are matched case-insensitively after trimming.
type StatusMap map[string]FacilityStatus

// ParseFacilityStatus validates a canonical status label.
func ParseFacilityStatus(s string) (FacilityStatus, error) {
	switch FacilityStatus(strings.ToLower(strings.TrimSpace(s))) {
	case FacilityOpen:
		return FacilityOpen, nil
	case FacilityClosed:
		return FacilityClosed, nil
	case FacilityUnknown:
		return FacilityUnknown, nil
	default:
		return FacilityUnknown, fmt.Errorf("invalid facility status %q", s)
	}
}

// NewStatusMap merges vendor defaults with per-resort overrides.
// Invalid override values are skipped; Definition.Validate reports them at load.
func NewStatusMap(defaults map[string]FacilityStatus, overrides map[string]string) StatusMap {
	m := make(StatusMap, len(defaults)+len(overrides))
	for code, st := range defaults {
		m[normalizeCode(code)] = st
	}
	for code, raw := range overrides {
		st, err := ParseFacilityStatus(raw)
		if err != nil {
			continue
		}
		m[normalizeCode(code)] = st
	}
	return m
}

// Lookup returns the canonical status for code, or unknown plus an
// UnmappedStatusError when the code is not in the table.
func (m StatusMap) Lookup(code string) (FacilityStatus, error) {
	if st, ok := m[normalizeCode(code)]; ok {
		return st, nil
	}
	return FacilityUnknown, &UnmappedStatusError{Code: code}
}

// Normalize never fails: unmapped codes resolve to unknown, never to open.
func (m StatusMap) Normalize(code string) FacilityStatus {
	st, _ := m.Lookup(code)
	return st
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
