package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "FETCH_INTERVAL", "CYCLE_DEADLINE", "FETCH_TIMEOUT", "MAX_CONCURRENCY", "ANALYTICS_DRIVER", "LOG_JSON"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 25*time.Second, cfg.CycleDeadline)
	assert.Equal(t, 9*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 16, cfg.MaxConcurrency)
	assert.Equal(t, 2000, cfg.TrafficDailyBudget)
	assert.Equal(t, 48, cfg.TrafficHistorySize)
	assert.False(t, cfg.LogJSON)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FETCH_INTERVAL", "5m")
	t.Setenv("CYCLE_DEADLINE", "20s")
	t.Setenv("FETCH_TIMEOUT", "8s")
	t.Setenv("MAX_CONCURRENCY", "4")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("TRAFFIC_API_KEY", "k")
	t.Setenv("TRAFFIC_ORIGIN", "47.26,11.39")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.True(t, cfg.LogJSON)
	assert.True(t, cfg.TrafficEnabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":        {"FETCH_INTERVAL", "soon"},
		"negative int":        {"MAX_CONCURRENCY", "-1"},
		"not an int":          {"TRAFFIC_DAILY_BUDGET", "lots"},
		"bad bool":            {"LOG_JSON", "maybe"},
		"timeout too long":    {"FETCH_TIMEOUT", "30s"},
		"unknown sql driver":  {"ANALYTICS_DRIVER", "mysql"},
		"driver without dsn":  {"ANALYTICS_DRIVER", "sqlite3"},
		"deadline > interval": {"CYCLE_DEADLINE", "20m"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("ANALYTICS_DSN", "")
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadResorts_Bundled(t *testing.T) {
	defs, err := LoadResorts("")
	require.NoError(t, err)
	require.NotEmpty(t, defs)

	ids := map[string]bool{}
	for _, d := range defs {
		assert.False(t, ids[d.ID], "duplicate id %s", d.ID)
		ids[d.ID] = true
	}

	var axamer, maintenance bool
	for _, d := range defs {
		if d.ID == "axamer-lizum" {
			axamer = true
			assert.Equal(t, "open", d.StatusMap["1"])
			assert.Equal(t, "ibk-axams", d.TrafficID)
			require.True(t, d.HasCoordinates())
		}
		if d.Maintenance {
			maintenance = true
		}
	}
	assert.True(t, axamer)
	assert.True(t, maintenance)
}

func TestLoadResorts_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resorts.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
resorts:
  - id: a
    vendor: facilities
    url: https://a.test/lifts
    options:
      userAgent: browser
`), 0o644))

	defs, err := LoadResorts(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "browser", defs[0].Option("userAgent", ""))

	_, err = LoadResorts(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestParseResorts_IDRule(t *testing.T) {
	defs, err := ParseResorts([]byte("resorts:\n  - {id: garmisch_classic, vendor: facilities, url: https://a.test}\n"))
	require.NoError(t, err)
	assert.Equal(t, "garmisch_classic", defs[0].ID)

	_, err = ParseResorts([]byte("resorts:\n  - {id: \"garmisch classic\", vendor: facilities, url: https://a.test}\n"))
	assert.Error(t, err)
}

func TestParseResorts_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":          `resorts: []`,
		"not yaml":       `resorts: [`,
		"duplicate id":   "resorts:\n  - {id: a, vendor: facilities, url: https://a.test}\n  - {id: a, vendor: layers, url: https://b.test}\n",
		"unknown vendor": "resorts:\n  - {id: a, vendor: fax, url: https://a.test}\n",
		"bad status":     "resorts:\n  - {id: a, vendor: facilities, url: https://a.test, statusMap: {\"1\": running}}\n",
		"missing url":    "resorts:\n  - {id: a, vendor: facilities}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResorts([]byte(doc))
			assert.Error(t, err)
		})
	}
}
