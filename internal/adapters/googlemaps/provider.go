// Package googlemaps implements the commercial geocoding provider with the
// Places Nearby Search and Geocoding web services.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/pkg/geospatial"
)

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// Options configures the provider.
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Provider implements ports.GeocodingProvider for Google Maps.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates the commercial provider. Without an API key it reports itself
// unavailable.
func New(opts Options) *Provider {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://maps.googleapis.com/maps/api"
	}
	return &Provider{apiKey: opts.APIKey, baseURL: base, httpClient: client}
}

func (p *Provider) ID() domain.ProviderID { return domain.ProviderCommercial }

func (p *Provider) Available() bool { return p.apiKey != "" }

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type placesResponse struct {
	Results []struct {
		Name     string `json:"name"`
		Vicinity string `json:"vicinity"`
		Geometry struct {
			Location latLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// FindNearby searches venues of type categoryHint and returns the one
// closest to center by great-circle distance.
func (p *Provider) FindNearby(ctx context.Context, center domain.Point, radiusMeters float64, categoryHint string) (*domain.Location, error) {
	if !p.Available() {
		return nil, domain.ErrProviderUnavailable
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%.6f,%.6f", center.Lat, center.Lng))
	params.Set("radius", fmt.Sprintf("%.0f", radiusMeters))
	if categoryHint != "" {
		params.Set("type", categoryHint)
	}
	params.Set("key", p.apiKey)

	var resp placesResponse
	if err := p.get(ctx, "/place/nearbysearch/json", params, &resp); err != nil {
		return nil, fmt.Errorf("places nearby: %w", err)
	}
	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return nil, nil
	default:
		return nil, fmt.Errorf("places status: %s %s", resp.Status, resp.ErrorMessage)
	}

	var best *domain.Location
	bestDist := 0.0
	for _, r := range resp.Results {
		pt := domain.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
		if pt.Validate() != nil || r.Name == "" {
			continue
		}
		d := geospatial.Distance(center, pt)
		if best == nil || d < bestDist {
			best = &domain.Location{Lat: pt.Lat, Lng: pt.Lng, Address: venueAddress(r.Name, r.Vicinity)}
			bestDist = d
		}
	}
	return best, nil
}

func venueAddress(name, vicinity string) string {
	if vicinity == "" {
		return name
	}
	return name + ", " + vicinity
}

type geocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location latLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// ReverseGeocode returns the first formatted address for point.
func (p *Provider) ReverseGeocode(ctx context.Context, point domain.Point) (*domain.Location, error) {
	if !p.Available() {
		return nil, domain.ErrProviderUnavailable
	}

	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%.6f,%.6f", point.Lat, point.Lng))
	params.Set("key", p.apiKey)

	var resp geocodeResponse
	if err := p.get(ctx, "/geocode/json", params, &resp); err != nil {
		return nil, fmt.Errorf("geocoding: %w", err)
	}
	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return nil, nil
	default:
		return nil, fmt.Errorf("geocoding status: %s %s", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 || resp.Results[0].FormattedAddress == "" {
		return nil, nil
	}

	// The address describes the queried point; the returned geometry is the
	// matched feature's, which may be some distance away.
	loc := &domain.Location{Lat: point.Lat, Lng: point.Lng, Address: resp.Results[0].FormattedAddress}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return loc, nil
}

func (p *Provider) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// url.Error carries the request URL, key included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = p.baseURL + path
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google maps returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
