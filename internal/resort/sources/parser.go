package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/logger"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

// ResortParser binds one resort definition to a vendor adapter and turns
// the adapter's payload into a canonical record.
type ResortParser struct {
	def      resort.Definition
	adapter  Adapter
	statuses resort.StatusMap
	now      func() time.Time
}

// NewResortParser creates a parser. adapter may be nil for maintenance resorts.
func NewResortParser(def resort.Definition, adapter Adapter) *ResortParser {
	var defaults map[string]resort.FacilityStatus
	if adapter != nil {
		defaults = adapter.DefaultStatuses()
	}
	return &ResortParser{
		def:      def,
		adapter:  adapter,
		statuses: resort.NewStatusMap(defaults, def.StatusMap),
		now:      time.Now,
	}
}

func (p *ResortParser) Definition() resort.Definition {
	return p.def
}

// Parse never returns an error or panics; failures become error records.
func (p *ResortParser) Parse(ctx context.Context) (rec resort.Record) {
	now := p.now().UTC()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("parser %s panicked: %v", p.def.ID, r)
			rec = resort.ErrorRecord(p.def, fmt.Errorf("parser panic: %v", r), now)
		}
	}()

	if p.def.Maintenance {
		return resort.Record{
			ResortID:  p.def.ID,
			Name:      p.def.Name,
			Status:    resort.StatusMaintenance,
			Source:    p.def.Source(),
			FetchedAt: now,
		}
	}
	if p.adapter == nil {
		return resort.ErrorRecord(p.def, fmt.Errorf("no adapter for vendor %q", p.def.Vendor), now)
	}

	payload, err := p.adapter.FetchRaw(ctx, p.def)
	if err != nil {
		logger.Warn("%s (%s): %v", p.def.ID, p.adapter.Name(), err)
		return resort.ErrorRecord(p.def, err, now)
	}

	rec, err = p.build(payload, now)
	if err != nil {
		logger.Warn("%s (%s): %v", p.def.ID, p.adapter.Name(), err)
		return resort.ErrorRecord(p.def, err, now)
	}
	return rec
}

func (p *ResortParser) build(payload Payload, now time.Time) (resort.Record, error) {
	rec := resort.Record{
		ResortID:  p.def.ID,
		Name:      p.def.Name,
		Source:    p.def.Source(),
		FetchedAt: now,
		Snow:      payload.Snow,
	}

	var lifts, slopes []resort.Facility
	for _, f := range payload.Facilities {
		st, err := p.statuses.Lookup(f.Code)
		if err != nil {
			logger.Debug("%s: %v", p.def.ID, err)
		}
		fac := resort.Facility{Name: f.Name, Status: st}

		switch f.Kind {
		case resort.KindLift:
			lifts = append(lifts, fac)
		case resort.KindSlope:
			slopes = append(slopes, fac)
		}
	}

	switch {
	case len(lifts) > 0:
		open := 0
		for _, l := range lifts {
			if l.Status == resort.FacilityOpen {
				open++
			}
		}
		total := len(lifts)
		rec.Status = resort.StatusLive
		rec.LiftsOpen = &open
		rec.LiftsTotal = &total
		rec.Lifts = lifts
		rec.Slopes = slopes
		return rec, nil

	case payload.Summary != nil:
		s := *payload.Summary
		if s.LiftsOpen < 0 || s.LiftsTotal < 0 || s.LiftsOpen > s.LiftsTotal {
			return resort.Record{}, &resort.ParseError{
				Source: p.def.Source(),
				Reason: fmt.Sprintf("inconsistent summary %d/%d", s.LiftsOpen, s.LiftsTotal),
			}
		}
		rec.Status = resort.StatusStatic
		rec.LiftsOpen = &s.LiftsOpen
		rec.LiftsTotal = &s.LiftsTotal
		return rec, nil

	case len(slopes) > 0:
		// Sledding hills and the like: slopes but no lifts.
		open, total := 0, 0
		rec.Status = resort.StatusLive
		rec.LiftsOpen = &open
		rec.LiftsTotal = &total
		rec.Slopes = slopes
		return rec, nil
	}

	return resort.Record{}, &resort.ParseError{Source: p.def.Source(), Reason: "empty payload", Err: resort.ErrNoFacilities}
}
