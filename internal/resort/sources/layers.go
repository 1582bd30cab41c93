package sources

import (
	"context"
	"encoding/json"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/common"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// LayersAdapter reads the map-widget format: layers of a type, each with
// groups of items carrying an upper-case state.
type LayersAdapter struct {
	http *transport.Client
}

type layersDoc struct {
	Resort struct {
		Snow *struct {
			ValleyCm     *float64 `json:"valleyCm"`
			MountainCm   *float64 `json:"mountainCm"`
			LastSnowfall *string  `json:"lastSnowfall"`
			UpdatedAt    string   `json:"updatedAt"`
		} `json:"snow"`
	} `json:"resort"`
	Layers []struct {
		Type   string `json:"type"`
		Groups []struct {
			Name  string `json:"name"`
			Items []struct {
				Name  string          `json:"name"`
				Label string          `json:"label"`
				State json.RawMessage `json:"state"`
			} `json:"items"`
		} `json:"groups"`
	} `json:"layers"`
	Summary *struct {
		LiftsOpen  *int `json:"liftsOpen"`
		LiftsTotal *int `json:"liftsTotal"`
	} `json:"summary"`
}

func (a *LayersAdapter) Name() string { return VendorLayers }

func (a *LayersAdapter) DefaultStatuses() map[string]resort.FacilityStatus {
	return map[string]resort.FacilityStatus{
		"OPEN":         resort.FacilityOpen,
		"IN_OPERATION": resort.FacilityOpen,
		"CLOSED":       resort.FacilityClosed,
		"PREPARATION":  resort.FacilityClosed,
		"ONHOLD":       resort.FacilityClosed,
		"OUT_OF_ORDER": resort.FacilityClosed,
	}
}

func (a *LayersAdapter) FetchRaw(ctx context.Context, def resort.Definition) (Payload, error) {
	var doc layersDoc
	if err := a.http.GetJSON(ctx, def.URL, requestHeader(def), &doc); err != nil {
		return Payload{}, err
	}
	return layersPayload(def, doc, time.Now().UTC()), nil
}

func layersPayload(def resort.Definition, doc layersDoc, now time.Time) Payload {
	var out Payload
	for _, layer := range doc.Layers {
		kind := classifyKind(layer.Type)
		if kind == resort.KindOther {
			continue
		}
		for _, g := range layer.Groups {
			for _, it := range g.Items {
				out.Facilities = append(out.Facilities, RawFacility{
					Kind: kind,
					Name: common.FirstNonEmpty(it.Name, it.Label),
					Code: jsonCode(it.State),
				})
			}
		}
	}

	if s := doc.Summary; s != nil && s.LiftsOpen != nil && s.LiftsTotal != nil {
		out.Summary = &Summary{LiftsOpen: *s.LiftsOpen, LiftsTotal: *s.LiftsTotal}
	}

	if s := doc.Resort.Snow; s != nil {
		ts := now
		if parsed, err := time.Parse(time.RFC3339, s.UpdatedAt); err == nil {
			ts = parsed.UTC()
		}
		out.Snow = &resort.Snow{
			Valley:       s.ValleyCm,
			Mountain:     s.MountainCm,
			LastSnowfall: s.LastSnowfall,
			Source:       def.Source(),
			Timestamp:    ts,
		}
	}
	return out
}
