package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/i474232898/snow-status-aggregation/internal/common"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

const defaultStateMarker = "window.__INITIAL_STATE__"

var (
	errPayloadNotFound  = errors.New("embedded payload not found")
	errUnbalancedObject = errors.New("unbalanced object literal")
)

// ScriptJSONAdapter extracts the JSON state object a page assigns in an
// inline script. Options: "marker" names the assignment target, "path"
// selects the node holding "lifts" and "slopes" arrays.
type ScriptJSONAdapter struct {
	http *transport.Client
}

func (a *ScriptJSONAdapter) Name() string { return VendorScriptJSON }

func (a *ScriptJSONAdapter) DefaultStatuses() map[string]resort.FacilityStatus {
	m := htmlStatuses()
	m["true"] = resort.FacilityOpen
	m["false"] = resort.FacilityClosed
	m["2"] = resort.FacilityClosed
	return m
}

func (a *ScriptJSONAdapter) FetchRaw(ctx context.Context, def resort.Definition) (Payload, error) {
	body, err := a.http.Get(ctx, def.URL, requestHeader(def))
	if err != nil {
		return Payload{}, err
	}
	return parseScriptJSON(def, body, time.Now().UTC())
}

// A missing or malformed embedded object is a fetch failure: the page came
// back but not in a shape we can read.
func parseScriptJSON(def resort.Definition, body []byte, now time.Time) (Payload, error) {
	marker := def.Option("marker", defaultStateMarker)

	var blob string
	for _, script := range scriptBodies(body) {
		rhs, ok := assignedValue(script, marker)
		if !ok {
			continue
		}
		obj, err := objectLiteral(rhs)
		if err != nil {
			return Payload{}, &resort.FetchError{URL: def.URL, Err: err}
		}
		blob = obj
		break
	}
	if blob == "" {
		return Payload{}, &resort.FetchError{URL: def.URL, Err: errPayloadNotFound}
	}

	var tree interface{}
	if err := json.Unmarshal([]byte(blob), &tree); err != nil {
		return Payload{}, &resort.FetchError{URL: def.URL, Err: fmt.Errorf("malformed embedded payload: %w", err)}
	}

	node, ok := lookupPath(tree, def.Option("path", ""))
	obj, isObj := node.(map[string]interface{})
	if !ok || !isObj {
		return Payload{}, &resort.FetchError{URL: def.URL, Err: fmt.Errorf("%w at path %q", errPayloadNotFound, def.Option("path", ""))}
	}

	var out Payload
	out.Facilities = append(out.Facilities, scriptFacilities(obj["lifts"], resort.KindLift)...)
	out.Facilities = append(out.Facilities, scriptFacilities(obj["slopes"], resort.KindSlope)...)

	if snow, ok := obj["snow"].(map[string]interface{}); ok {
		out.Snow = &resort.Snow{
			Valley:       floatPtr(snow["valley"]),
			Mountain:     floatPtr(snow["mountain"]),
			LastSnowfall: stringPtr(snow["lastSnowfall"]),
			Source:       def.Source(),
			Timestamp:    now,
		}
	}
	return out, nil
}

func scriptFacilities(v interface{}, kind resort.FacilityKind) []RawFacility {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]RawFacility, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		title, _ := m["title"].(string)
		out = append(out, RawFacility{
			Kind: kind,
			Name: common.FirstNonEmpty(name, title),
			Code: anyCode(m["status"]),
		})
	}
	return out
}

// scriptBodies returns the text of every inline <script> element.
func scriptBodies(body []byte) []string {
	var out []string
	z := html.NewTokenizer(bytes.NewReader(body))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if inScript {
				out = append(out, string(z.Text()))
			}
		}
	}
}

// assignedValue returns what follows the first "marker =" in script.
// Other mentions of marker, such as "if (marker)", are skipped.
func assignedValue(script, marker string) (string, bool) {
	for from := 0; from < len(script); {
		idx := strings.Index(script[from:], marker)
		if idx < 0 {
			return "", false
		}
		rest := strings.TrimLeft(script[from+idx+len(marker):], " \t\r\n")
		if strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") && !strings.HasPrefix(rest, "=>") {
			return rest[1:], true
		}
		from += idx + len(marker)
	}
	return "", false
}

// objectLiteral returns the first balanced {...} in s, honouring strings.
func objectLiteral(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errPayloadNotFound
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errUnbalancedObject
}
