package resort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMap_Normalize(t *testing.T) {
	m := NewStatusMap(
		map[string]FacilityStatus{"1": FacilityOpen, "0": FacilityClosed, "OPEN": FacilityOpen},
		map[string]string{"2": "closed", "9": "bogus", "0": "unknown"},
	)

	assert.Equal(t, FacilityOpen, m.Normalize("1"))
	assert.Equal(t, FacilityOpen, m.Normalize(" open "))
	assert.Equal(t, FacilityClosed, m.Normalize("2"))
	assert.Equal(t, FacilityUnknown, m.Normalize("0"), "override wins over vendor default")
	assert.Equal(t, FacilityUnknown, m.Normalize("9"), "invalid override is skipped")
	assert.Equal(t, FacilityUnknown, m.Normalize(""))
}

func TestStatusMap_UnmappedNeverOpen(t *testing.T) {
	m := NewStatusMap(map[string]FacilityStatus{"1": FacilityOpen}, nil)

	for _, code := range []string{"2", "yes", "OPEN!", "11", "ok"} {
		st, err := m.Lookup(code)
		assert.Equal(t, FacilityUnknown, st, code)

		var ue *UnmappedStatusError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, code, ue.Code)
	}
}

func TestStatusMap_Deterministic(t *testing.T) {
	m := NewStatusMap(map[string]FacilityStatus{"OPEN": FacilityOpen, "CLOSED": FacilityClosed}, nil)
	for i := 0; i < 100; i++ {
		require.Equal(t, FacilityOpen, m.Normalize("OPEN"))
		require.Equal(t, FacilityClosed, m.Normalize("closed"))
	}
}

func TestDefinition_Validate(t *testing.T) {
	lat := 47.0
	cases := map[string]struct {
		def     Definition
		wantErr bool
	}{
		"ok":              {Definition{ID: "a", Vendor: "facilities", URL: "https://a.test"}, false},
		"maintenance":     {Definition{ID: "a", Maintenance: true}, false},
		"missing id":      {Definition{Vendor: "facilities", URL: "https://a.test"}, true},
		"underscore id":   {Definition{ID: "garmisch_classic", Vendor: "facilities", URL: "https://a.test"}, false},
		"id with space":   {Definition{ID: "garmisch classic", Vendor: "facilities", URL: "https://a.test"}, true},
		"id with slash":   {Definition{ID: "a/b", Vendor: "facilities", URL: "https://a.test"}, true},
		"missing url":     {Definition{ID: "a", Vendor: "facilities"}, true},
		"half coordinate": {Definition{ID: "a", Vendor: "facilities", URL: "https://a.test", Lat: &lat}, true},
		"bad status map":  {Definition{ID: "a", Vendor: "facilities", URL: "https://a.test", StatusMap: map[string]string{"1": "running"}}, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.def.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
