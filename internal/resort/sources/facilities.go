package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/common"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// FacilitiesAdapter reads a flat JSON facility list, either a top-level
// array or an object with a "facilities" array. Status is a number, string
// or bool.
type FacilitiesAdapter struct {
	http *transport.Client
}

type facilityJSON struct {
	Type     string          `json:"type"`
	Category string          `json:"category"`
	Name     string          `json:"name"`
	Title    string          `json:"title"`
	Status   json.RawMessage `json:"status"`
}

type facilitiesDoc struct {
	Facilities []facilityJSON `json:"facilities"`
	Snow       *struct {
		Valley       *float64 `json:"valley"`
		Mountain     *float64 `json:"mountain"`
		LastSnowfall *string  `json:"lastSnowfall"`
	} `json:"snow"`
}

func (a *FacilitiesAdapter) Name() string { return VendorFacilities }

func (a *FacilitiesAdapter) DefaultStatuses() map[string]resort.FacilityStatus {
	return map[string]resort.FacilityStatus{
		"1":      resort.FacilityOpen,
		"0":      resort.FacilityClosed,
		"2":      resort.FacilityClosed,
		"true":   resort.FacilityOpen,
		"false":  resort.FacilityClosed,
		"open":   resort.FacilityOpen,
		"closed": resort.FacilityClosed,
	}
}

func (a *FacilitiesAdapter) FetchRaw(ctx context.Context, def resort.Definition) (Payload, error) {
	body, err := a.http.Get(ctx, def.URL, requestHeader(def))
	if err != nil {
		return Payload{}, err
	}
	return parseFacilities(def, body, time.Now().UTC())
}

func parseFacilities(def resort.Definition, body []byte, now time.Time) (Payload, error) {
	trimmed := bytes.TrimSpace(body)

	var doc facilitiesDoc
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Facilities); err != nil {
			return Payload{}, &resort.ParseError{Source: def.URL, Reason: "decode facility list", Err: err}
		}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Payload{}, &resort.ParseError{Source: def.URL, Reason: "decode facility document", Err: err}
	}

	out := Payload{Facilities: make([]RawFacility, 0, len(doc.Facilities))}
	for _, f := range doc.Facilities {
		out.Facilities = append(out.Facilities, RawFacility{
			Kind: classifyKind(common.FirstNonEmpty(f.Type, f.Category)),
			Name: common.FirstNonEmpty(f.Name, f.Title),
			Code: jsonCode(f.Status),
		})
	}
	if doc.Snow != nil {
		out.Snow = &resort.Snow{
			Valley:       doc.Snow.Valley,
			Mountain:     doc.Snow.Mountain,
			LastSnowfall: doc.Snow.LastSnowfall,
			Source:       def.Source(),
			Timestamp:    now,
		}
	}
	return out, nil
}
