// Package osm implements the open geocoding provider on top of the Overpass
// API (venue search) and Nominatim (reverse geocoding).
package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/pkg/geospatial"
)

// Options configures the provider.
type Options struct {
	OverpassURL  string
	NominatimURL string
	UserAgent    string
	RateLimit    float64 // requests per second, shared by both endpoints
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Provider implements ports.GeocodingProvider for OpenStreetMap data.
type Provider struct {
	overpassURL  string
	nominatimURL string
	userAgent    string
	client       *http.Client
	limiter      *rate.Limiter
}

// New creates the open provider.
func New(opts Options) *Provider {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := rate.Limit(opts.RateLimit)
	if opts.RateLimit <= 0 {
		limit = rate.Inf
	}
	return &Provider{
		overpassURL:  opts.OverpassURL,
		nominatimURL: strings.TrimRight(opts.NominatimURL, "/"),
		userAgent:    opts.UserAgent,
		client:       client,
		limiter:      rate.NewLimiter(limit, 1),
	}
}

func (p *Provider) ID() domain.ProviderID { return domain.ProviderOpen }

// Available is true once both endpoints are configured.
func (p *Provider) Available() bool {
	return p.overpassURL != "" && p.nominatimURL != ""
}

// venueSelectors maps a category hint to Overpass tag filters.
var venueSelectors = map[string][]string{
	"cafe":            {`["amenity"="cafe"]`},
	"restaurant":      {`["amenity"="restaurant"]`},
	"park":            {`["leisure"="park"]`},
	"mall":            {`["shop"="mall"]`},
	"station":         {`["railway"="station"]`, `["public_transport"="station"]`},
	"transit_station": {`["railway"="station"]`, `["public_transport"="station"]`},
}

func selectorsFor(hint string) []string {
	if s, ok := venueSelectors[strings.ToLower(hint)]; ok {
		return s
	}
	return []string{
		`["amenity"~"^(cafe|restaurant)$"]`,
		`["leisure"="park"]`,
		`["shop"="mall"]`,
		`["railway"="station"]`,
		`["public_transport"="station"]`,
	}
}

// buildOverpassQuery limits the search to the bounding box of the radius,
// which Overpass answers from its spatial index, and keeps the exact circle
// with an around filter per selector.
func buildOverpassQuery(center domain.Point, radius float64, hint string) string {
	south, west, north, east := geospatial.BoundingBox(center.Lat, center.Lng, radius)
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", radius, center.Lat, center.Lng)
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:10][bbox:%.6f,%.6f,%.6f,%.6f];(", south, west, north, east)
	for _, sel := range selectorsFor(hint) {
		b.WriteString("nwr")
		b.WriteString(sel)
		b.WriteString(`["name"]`)
		b.WriteString(around)
		b.WriteString(";")
	}
	b.WriteString(");out center 25;")
	return b.String()
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string   `json:"type"`
	ID     int64    `json:"id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

func (e overpassElement) point() (domain.Point, bool) {
	switch {
	case e.Lat != nil && e.Lon != nil:
		return domain.Point{Lat: *e.Lat, Lng: *e.Lon}, true
	case e.Center != nil:
		return domain.Point{Lat: e.Center.Lat, Lng: e.Center.Lon}, true
	}
	return domain.Point{}, false
}

// FindNearby returns the named venue closest to center within radius, or
// nil when Overpass has none. Overpass lists elements by type and id, so
// "first" is taken as the nearest valid one.
func (p *Provider) FindNearby(ctx context.Context, center domain.Point, radiusMeters float64, categoryHint string) (*domain.Location, error) {
	if !p.Available() {
		return nil, nil
	}

	form := url.Values{}
	form.Set("data", buildOverpassQuery(center, radiusMeters, categoryHint))

	var resp overpassResponse
	if err := p.do(ctx, http.MethodPost, p.overpassURL, strings.NewReader(form.Encode()), &resp); err != nil {
		return nil, fmt.Errorf("overpass: %w", err)
	}

	var best *domain.Location
	bestDist := 0.0
	for _, e := range resp.Elements {
		pt, ok := e.point()
		name := strings.TrimSpace(e.Tags["name"])
		if !ok || name == "" || pt.Validate() != nil {
			continue
		}
		d := geospatial.Distance(center, pt)
		if best == nil || d < bestDist {
			best = &domain.Location{Lat: pt.Lat, Lng: pt.Lng, Address: name}
			bestDist = d
		}
	}
	return best, nil
}

type nominatimReverse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// ReverseGeocode resolves point to its Nominatim display name.
func (p *Provider) ReverseGeocode(ctx context.Context, point domain.Point) (*domain.Location, error) {
	if !p.Available() {
		return nil, nil
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%.6f", point.Lat))
	q.Set("lon", fmt.Sprintf("%.6f", point.Lng))
	q.Set("zoom", "18")
	q.Set("addressdetails", "0")

	var resp nominatimReverse
	if err := p.do(ctx, http.MethodGet, p.nominatimURL+"/reverse?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("nominatim: %w", err)
	}
	if resp.Error != "" || resp.DisplayName == "" {
		return nil, nil
	}

	lat, lng, ok := parseLatLng(resp.Lat, resp.Lon)
	if !ok {
		return nil, fmt.Errorf("nominatim: lat %q lon %q: %w", resp.Lat, resp.Lon, domain.ErrInvalidCoordinates)
	}
	loc := &domain.Location{Lat: lat, Lng: lng, Address: resp.DisplayName}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return loc, nil
}

func (p *Provider) do(ctx context.Context, method, target string, body *strings.Reader, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, target, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	}
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func parseLatLng(lat, lng string) (float64, float64, bool) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return 0, 0, false
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return 0, 0, false
	}
	return la, ln, true
}
