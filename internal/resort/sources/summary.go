package sources

import (
	"context"
	"fmt"
	"math"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// SummaryAdapter reads vendors that only publish counts. Options
// "openField" and "totalField" are dot paths into the JSON document.
type SummaryAdapter struct {
	http *transport.Client
}

func (a *SummaryAdapter) Name() string { return VendorSummary }

func (a *SummaryAdapter) DefaultStatuses() map[string]resort.FacilityStatus { return nil }

func (a *SummaryAdapter) FetchRaw(ctx context.Context, def resort.Definition) (Payload, error) {
	var tree interface{}
	if err := a.http.GetJSON(ctx, def.URL, requestHeader(def), &tree); err != nil {
		return Payload{}, err
	}
	return summaryPayload(def, tree)
}

func summaryPayload(def resort.Definition, tree interface{}) (Payload, error) {
	open, err := countAt(def, tree, def.Option("openField", "liftsOpen"))
	if err != nil {
		return Payload{}, err
	}
	total, err := countAt(def, tree, def.Option("totalField", "liftsTotal"))
	if err != nil {
		return Payload{}, err
	}
	return Payload{Summary: &Summary{LiftsOpen: open, LiftsTotal: total}}, nil
}

func countAt(def resort.Definition, tree interface{}, path string) (int, error) {
	v, ok := lookupPath(tree, path)
	if !ok {
		return 0, &resort.ParseError{Source: def.URL, Reason: fmt.Sprintf("field %q missing", path)}
	}
	f := floatPtr(v)
	if f == nil || *f != math.Trunc(*f) {
		return 0, &resort.ParseError{Source: def.URL, Reason: fmt.Sprintf("field %q is not a whole number", path)}
	}
	return int(*f), nil
}
