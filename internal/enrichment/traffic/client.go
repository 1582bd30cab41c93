package traffic

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) String() string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lon)
}

// Router returns the current travel time between two points.
type Router interface {
	Route(ctx context.Context, from, to Point) (resort.TrafficSample, error)
}

// TomTomRouter calls the TomTom routing API with live traffic.
type TomTomRouter struct {
	apiKey  string
	baseURL string
	http    *transport.Client
	now     func() time.Time
}

func NewTomTomRouter(client *transport.Client, apiKey string) *TomTomRouter {
	return &TomTomRouter{
		apiKey:  apiKey,
		baseURL: "https://api.tomtom.com/routing/1/calculateRoute",
		http:    client,
		now:     time.Now,
	}
}

func (r *TomTomRouter) Route(ctx context.Context, from, to Point) (resort.TrafficSample, error) {
	if r.apiKey == "" {
		return resort.TrafficSample{}, fmt.Errorf("traffic api key is not configured")
	}

	values := url.Values{}
	values.Set("key", r.apiKey)
	values.Set("traffic", "true")
	values.Set("travelMode", "car")

	var payload struct {
		Routes []struct {
			Summary struct {
				TravelTimeInSeconds   int `json:"travelTimeInSeconds"`
				TrafficDelayInSeconds int `json:"trafficDelayInSeconds"`
			} `json:"summary"`
		} `json:"routes"`
	}

	u := fmt.Sprintf("%s/%s:%s/json?%s", r.baseURL, from, to, values.Encode())
	if err := r.http.GetJSON(ctx, u, nil, &payload); err != nil {
		return resort.TrafficSample{}, err
	}
	if len(payload.Routes) == 0 {
		return resort.TrafficSample{}, &resort.ParseError{Source: r.baseURL, Reason: "no route returned"}
	}

	s := payload.Routes[0].Summary
	return resort.TrafficSample{
		Duration: s.TravelTimeInSeconds,
		Delay:    s.TrafficDelayInSeconds,
		At:       r.now().UTC(),
	}, nil
}
