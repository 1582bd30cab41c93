package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/common"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// RawFacility is a facility as the vendor reports it. Code is the untouched
// vendor status; interpreting it is the parser's job.
type RawFacility struct {
	Kind resort.FacilityKind
	Name string
	Code string
}

// Summary is a vendor-reported lift count without per-facility detail.
type Summary struct {
	LiftsOpen  int
	LiftsTotal int
}

// Payload is the coarse result of one adapter fetch.
type Payload struct {
	Facilities []RawFacility
	Summary    *Summary
	Snow       *resort.Snow
}

// Adapter fetches and coarsely parses one vendor's format.
type Adapter interface {
	Name() string

	// DefaultStatuses is the vendor's code table; resorts may override entries.
	DefaultStatuses() map[string]resort.FacilityStatus

	FetchRaw(ctx context.Context, def resort.Definition) (Payload, error)
}

// Vendor names accepted in the registry file.
const (
	VendorFacilities = "facilities"
	VendorLayers     = "layers"
	VendorHTMLTable  = "html-table"
	VendorScriptJSON = "script-json"
	VendorSummary    = "summary"
	VendorRendered   = "rendered"
)

// KnownVendor reports whether name is an implemented vendor format.
func KnownVendor(name string) bool {
	switch name {
	case VendorFacilities, VendorLayers, VendorHTMLTable, VendorScriptJSON, VendorSummary, VendorRendered:
		return true
	}
	return false
}

// Deps are the shared collaborators adapters are built from.
type Deps struct {
	HTTP          *transport.Client
	ChromeBin     string
	RenderTimeout time.Duration
}

// NewAdapter returns the adapter implementing vendor.
func NewAdapter(vendor string, deps Deps) (Adapter, error) {
	switch vendor {
	case VendorFacilities:
		return &FacilitiesAdapter{http: deps.HTTP}, nil
	case VendorLayers:
		return &LayersAdapter{http: deps.HTTP}, nil
	case VendorHTMLTable:
		return &HTMLTableAdapter{http: deps.HTTP}, nil
	case VendorScriptJSON:
		return &ScriptJSONAdapter{http: deps.HTTP}, nil
	case VendorSummary:
		return &SummaryAdapter{http: deps.HTTP}, nil
	case VendorRendered:
		return NewRenderedAdapter(deps.ChromeBin, deps.RenderTimeout), nil
	default:
		return nil, fmt.Errorf("unknown vendor %q", vendor)
	}
}

// BuildRegistry creates one parser per definition, in file order.
func BuildRegistry(defs []resort.Definition, deps Deps) (*resort.Registry, error) {
	parsers := make([]resort.Parser, 0, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}

		var adapter Adapter
		if def.Vendor != "" {
			a, err := NewAdapter(def.Vendor, deps)
			if err != nil {
				return nil, fmt.Errorf("resort %s: %w", def.ID, err)
			}
			adapter = a
		}
		parsers = append(parsers, NewResortParser(def, adapter))
	}
	return resort.NewRegistry(parsers...)
}

// requestHeader returns per-vendor headers. Some vendors reject requests
// that do not look like a browser.
func requestHeader(def resort.Definition) http.Header {
	h := http.Header{}
	if def.Option("userAgent", "") == "browser" {
		h.Set("User-Agent", transport.BrowserUserAgent)
		h.Set("Accept-Language", "de-AT,de;q=0.9,en;q=0.8")
	}
	return h
}

// classifyKind maps a vendor facility type label onto lift/slope/other.
// Sled runs are checked first because their names often contain "bahn".
func classifyKind(label string) resort.FacilityKind {
	switch {
	case label == "":
		return resort.KindOther
	case common.HasAny(label, "rodel", "toboggan", "sled", "luge"):
		return resort.KindSlope
	case common.HasAny(label, "lift", "gondola", "chair", "cable", "tram", "drag", "t-bar", "tbar",
		"button", "rope", "funicular", "carpet", "bahn", "sessel", "schlepp", "förderband",
		"telecabine", "telesiege", "teleski", "seggiovia", "cabinovia", "skilift"):
		return resort.KindLift
	case common.HasAny(label, "slope", "piste", "run", "trail", "abfahrt", "route", "descent"):
		return resort.KindSlope
	default:
		return resort.KindOther
	}
}

// jsonCode turns a raw JSON status value into its textual vendor code.
// Numbers are formatted canonically so 1 and 1.0 map to the same key.
func jsonCode(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			return str
		}
		return strings.Trim(s, `"`)
	}
	return anyCode(s)
}

// anyCode formats a decoded JSON value as a vendor code.
func anyCode(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil && !strings.ContainsAny(t, " \t") {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// lookupPath walks a decoded JSON tree along a dot-separated path.
func lookupPath(tree interface{}, path string) (interface{}, bool) {
	node := tree
	if strings.TrimSpace(path) == "" {
		return node, true
	}
	for _, key := range strings.Split(path, ".") {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		node, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

func floatPtr(v interface{}) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

func stringPtr(v interface{}) *string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return &s
	}
	return nil
}
