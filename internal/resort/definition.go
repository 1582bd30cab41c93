package resort

import (
	"fmt"
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidID reports whether id can be used as a registry key and as a single
// URL path segment.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Definition is the static registry entry for one destination.
type Definition struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Kind        string            `yaml:"kind" json:"kind"`
	Vendor      string            `yaml:"vendor" json:"vendor"`
	URL         string            `yaml:"url" json:"url"`
	Lat         *float64          `yaml:"lat" json:"lat,omitempty"`
	Lon         *float64          `yaml:"lon" json:"lon,omitempty"`
	TrafficID   string            `yaml:"trafficId" json:"trafficId,omitempty"`
	Maintenance bool              `yaml:"maintenance" json:"maintenance,omitempty"`
	StatusMap   map[string]string `yaml:"statusMap" json:"-"`
	Options     map[string]string `yaml:"options" json:"-"`
}

// HasCoordinates reports whether weather enrichment can be applied.
func (d Definition) HasCoordinates() bool {
	return d.Lat != nil && d.Lon != nil
}

// Source returns the provenance string stored on records.
func (d Definition) Source() string {
	if d.URL != "" {
		return d.URL
	}
	return d.Vendor
}

// Option returns a vendor option or def when unset.
func (d Definition) Option(key, def string) string {
	if v, ok := d.Options[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Validate checks the fields every vendor relies on.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("resort id is required")
	}
	if !ValidID(d.ID) {
		return fmt.Errorf("resort id %q: want letters, digits, '-', '_' or '.', at most 64 characters", d.ID)
	}
	if d.Vendor == "" && !d.Maintenance {
		return fmt.Errorf("resort %s: vendor is required", d.ID)
	}
	if d.URL == "" && !d.Maintenance {
		return fmt.Errorf("resort %s: url is required", d.ID)
	}
	if (d.Lat == nil) != (d.Lon == nil) {
		return fmt.Errorf("resort %s: lat and lon must be set together", d.ID)
	}
	for code, status := range d.StatusMap {
		if _, err := ParseFacilityStatus(status); err != nil {
			return fmt.Errorf("resort %s: status map entry %q: %w", d.ID, code, err)
		}
	}
	return nil
}
