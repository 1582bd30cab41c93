package traffic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/snow-status-aggregation/internal/logger"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

// ErrBudgetExhausted is returned when the daily call budget is used up.
var ErrBudgetExhausted = errors.New("daily traffic budget exhausted")

// Route is one destination sampled from the shared origin.
type Route struct {
	ID   string
	Dest Point
}

// RoutesFrom returns one route per distinct traffic id, taking the
// destination from the first resort that names it.
func RoutesFrom(defs []resort.Definition) []Route {
	seen := make(map[string]bool)
	var out []Route
	for _, d := range defs {
		if d.TrafficID == "" || !d.HasCoordinates() || seen[d.TrafficID] {
			continue
		}
		seen[d.TrafficID] = true
		out = append(out, Route{ID: d.TrafficID, Dest: Point{Lat: *d.Lat, Lon: *d.Lon}})
	}
	return out
}

// Refresher samples every route on a schedule, separately from the
// aggregation cycle.
type Refresher struct {
	router Router
	store  *Store
	budget *Budget
	origin Point
	routes []Route
}

func NewRefresher(router Router, store *Store, budget *Budget, origin Point, routes []Route) *Refresher {
	if budget == nil {
		budget = NewBudget(0)
	}
	return &Refresher{router: router, store: store, budget: budget, origin: origin, routes: routes}
}

// Refresh samples all routes and returns how many succeeded. It stops early
// once the daily budget is exhausted.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	ok := 0
	for _, route := range r.routes {
		if ctx.Err() != nil {
			return ok, ctx.Err()
		}
		if !r.budget.Take(1) {
			logger.Warn("traffic budget exhausted after %d of %d routes", ok, len(r.routes))
			return ok, ErrBudgetExhausted
		}

		sample, err := r.router.Route(ctx, r.origin, route.Dest)
		if err != nil {
			logger.Warn("traffic route %s failed: %v", route.ID, err)
			continue
		}
		r.store.Record(route.ID, sample)
		ok++
	}
	logger.Debug("traffic refreshed %d/%d routes, %d calls left today", ok, len(r.routes), r.budget.Remaining())
	return ok, nil
}

// Geocode resolves a street address to a point.
type Geocode func(geocoder.Address) (geocoder.Location, error)

// ResolveOrigin parses "lat,lon" or, when coords is empty, geocodes addr.
func ResolveOrigin(coords string, addr geocoder.Address, geocode Geocode) (Point, error) {
	if strings.TrimSpace(coords) != "" {
		return parsePoint(coords)
	}
	if addr.City == "" && addr.Street == "" {
		return Point{}, fmt.Errorf("traffic origin is not configured")
	}
	if geocode == nil {
		geocode = geocoder.Geocoding
	}
	loc, err := geocode(addr)
	if err != nil {
		return Point{}, fmt.Errorf("geocode origin: %w", err)
	}
	return Point{Lat: loc.Latitude, Lon: loc.Longitude}, nil
}

func parsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("invalid coordinate %q: want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Point{}, fmt.Errorf("coordinate %q out of range", s)
	}
	return Point{Lat: lat, Lon: lon}, nil
}
