package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/core/ports"
	"github.com/Xombi17/MEETease/internal/core/usecases"
)

// --- Mock GeocodingProvider ---

type mockProvider struct {
	id          domain.ProviderID
	unavailable bool
	nearbyFn    func(ctx context.Context, center domain.Point, radius float64, hint string) (*domain.Location, error)
	reverseFn   func(ctx context.Context, p domain.Point) (*domain.Location, error)

	calls []string
}

func (m *mockProvider) ID() domain.ProviderID { return m.id }
func (m *mockProvider) Available() bool       { return !m.unavailable }

func (m *mockProvider) FindNearby(ctx context.Context, center domain.Point, radius float64, hint string) (*domain.Location, error) {
	m.calls = append(m.calls, "nearby:"+hint)
	if m.nearbyFn != nil {
		return m.nearbyFn(ctx, center, radius, hint)
	}
	return nil, nil
}

func (m *mockProvider) ReverseGeocode(ctx context.Context, p domain.Point) (*domain.Location, error) {
	m.calls = append(m.calls, "reverse")
	if m.reverseFn != nil {
		return m.reverseFn(ctx, p)
	}
	return nil, nil
}

func providers(ms ...*mockProvider) []ports.GeocodingProvider {
	out := make([]ports.GeocodingProvider, 0, len(ms))
	for _, m := range ms {
		out = append(out, m)
	}
	return out
}

func located(id string, lat, lng float64) domain.Participant {
	return domain.Participant{ID: id, Name: id, IsReady: true, Location: &domain.Location{Lat: lat, Lng: lng}}
}

func openFirst() []domain.ProviderID {
	return []domain.ProviderID{domain.ProviderOpen, domain.ProviderCommercial}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestResolver_OpenNearbyHitShortCircuits(t *testing.T) {
	open := &mockProvider{
		id: domain.ProviderOpen,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			if radius != 1000 {
				t.Errorf("expected radius 1000, got %v", radius)
			}
			return &domain.Location{Lat: 19.05, Lng: 72.83, Address: "Cafe Central"}, nil
		},
	}
	commercial := &mockProvider{id: domain.ProviderCommercial}

	r := usecases.NewMeetingPointResolver(providers(open, commercial), usecases.ResolverConfig{})
	loc, err := r.Resolve(context.Background(),
		[]domain.Participant{located("a", 19.0, 72.8), located("b", 19.1, 72.9)},
		nil, openFirst(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Address != "Cafe Central" {
		t.Errorf("expected Cafe Central, got %q", loc.Address)
	}
	if len(commercial.calls) != 0 {
		t.Errorf("commercial provider should not be called, got %v", commercial.calls)
	}
	if len(open.calls) != 1 {
		t.Errorf("expected a single open call, got %v", open.calls)
	}
}

func TestResolver_AllTiersFailYieldsApproximateCenter(t *testing.T) {
	fail := func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
		return nil, errors.New("boom")
	}
	failRev := func(ctx context.Context, p domain.Point) (*domain.Location, error) {
		return nil, errors.New("boom")
	}
	open := &mockProvider{id: domain.ProviderOpen, nearbyFn: fail, reverseFn: failRev}
	commercial := &mockProvider{id: domain.ProviderCommercial, nearbyFn: fail, reverseFn: failRev}

	r := usecases.NewMeetingPointResolver(providers(open, commercial), usecases.ResolverConfig{})
	loc, err := r.Resolve(context.Background(),
		[]domain.Participant{located("a", 10, 20), located("b", 12, 24)},
		nil, openFirst(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Address != domain.AddressApproximate {
		t.Errorf("expected approximate address, got %q", loc.Address)
	}
	if !near(loc.Lat, 11) || !near(loc.Lng, 22) {
		t.Errorf("expected exact center (11,22), got (%v,%v)", loc.Lat, loc.Lng)
	}

	want := []string{"nearby:", "reverse"}
	if len(open.calls) != len(want) {
		t.Fatalf("open calls = %v, want %v", open.calls, want)
	}
	wantCommercial := []string{"nearby:restaurant", "nearby:transit_station", "reverse"}
	for i, c := range wantCommercial {
		if i >= len(commercial.calls) || commercial.calls[i] != c {
			t.Fatalf("commercial calls = %v, want %v", commercial.calls, wantCommercial)
		}
	}
}

func TestResolver_InvalidAndPanickingResultsFallThrough(t *testing.T) {
	open := &mockProvider{
		id: domain.ProviderOpen,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			return &domain.Location{Lat: math.NaN(), Lng: 0, Address: "broken"}, nil
		},
		reverseFn: func(ctx context.Context, p domain.Point) (*domain.Location, error) {
			panic("malformed payload")
		},
	}
	commercial := &mockProvider{
		id: domain.ProviderCommercial,
		reverseFn: func(ctx context.Context, p domain.Point) (*domain.Location, error) {
			return &domain.Location{Lat: p.Lat, Lng: p.Lng, Address: "Main St 1"}, nil
		},
	}

	r := usecases.NewMeetingPointResolver(providers(open, commercial), usecases.ResolverConfig{})
	loc, err := r.Resolve(context.Background(), []domain.Participant{located("a", 1, 1)}, nil, openFirst(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Address != "Main St 1" {
		t.Errorf("expected commercial reverse result, got %q", loc.Address)
	}
}

func TestResolver_UnavailableProviderSkipped(t *testing.T) {
	open := &mockProvider{id: domain.ProviderOpen}
	commercial := &mockProvider{id: domain.ProviderCommercial, unavailable: true}

	r := usecases.NewMeetingPointResolver(providers(open, commercial), usecases.ResolverConfig{})
	loc, err := r.Resolve(context.Background(), []domain.Participant{located("a", 5, 5)}, nil, openFirst(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commercial.calls) != 0 {
		t.Errorf("unavailable provider was called: %v", commercial.calls)
	}
	if loc.Address != domain.AddressApproximate {
		t.Errorf("expected approximate, got %q", loc.Address)
	}
}

func TestResolver_CommercialFirstOrder(t *testing.T) {
	open := &mockProvider{
		id: domain.ProviderOpen,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			return &domain.Location{Lat: 1, Lng: 1, Address: "open venue"}, nil
		},
	}
	commercial := &mockProvider{
		id: domain.ProviderCommercial,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			if hint == "transit_station" {
				return &domain.Location{Lat: 1, Lng: 1, Address: "Central Station"}, nil
			}
			return nil, nil
		},
	}

	r := usecases.NewMeetingPointResolver(providers(open, commercial), usecases.ResolverConfig{})
	order := domain.Settings{PreferOpenProvider: false}.ProviderOrder()
	loc, err := r.Resolve(context.Background(), []domain.Participant{located("a", 1, 1)}, nil, order, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Address != "Central Station" {
		t.Errorf("expected Central Station, got %q", loc.Address)
	}
	if len(open.calls) != 0 {
		t.Errorf("open provider should not be reached, got %v", open.calls)
	}
}

func TestResolver_ProvisionalEmittedFirst(t *testing.T) {
	var events []string
	open := &mockProvider{
		id: domain.ProviderOpen,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			events = append(events, "lookup")
			return &domain.Location{Lat: c.Lat, Lng: c.Lng, Address: "Park"}, nil
		},
	}

	r := usecases.NewMeetingPointResolver(providers(open), usecases.ResolverConfig{})
	_, err := r.Resolve(context.Background(),
		[]domain.Participant{located("a", 0, 0), located("b", 2, 2)},
		nil, openFirst(),
		func(l domain.Location) {
			if l.Address != domain.AddressCalculating {
				t.Errorf("expected calculating sentinel, got %q", l.Address)
			}
			if !near(l.Lat, 1) || !near(l.Lng, 1) {
				t.Errorf("provisional should sit on the center, got (%v,%v)", l.Lat, l.Lng)
			}
			events = append(events, "provisional")
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0] != "provisional" {
		t.Errorf("expected provisional before lookup, got %v", events)
	}
}

func TestResolver_NoLocatedParticipants(t *testing.T) {
	open := &mockProvider{id: domain.ProviderOpen}
	r := usecases.NewMeetingPointResolver(providers(open), usecases.ResolverConfig{})

	called := false
	_, err := r.Resolve(context.Background(),
		[]domain.Participant{{ID: "a", Name: "a"}},
		nil, openFirst(), func(domain.Location) { called = true })
	if !errors.Is(err, domain.ErrInsufficientParticipants) {
		t.Fatalf("expected ErrInsufficientParticipants, got %v", err)
	}
	if called || len(open.calls) != 0 {
		t.Error("nothing should run without located participants")
	}
}

func TestResolver_DestinationBias(t *testing.T) {
	var got domain.Point
	open := &mockProvider{
		id: domain.ProviderOpen,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			got = c
			return nil, nil
		},
	}
	r := usecases.NewMeetingPointResolver(providers(open), usecases.ResolverConfig{})

	dest := &domain.Location{Lat: 4, Lng: 8}
	loc, err := r.Resolve(context.Background(),
		[]domain.Participant{located("a", 0, 0), located("b", 0, 0)},
		dest, openFirst(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(got.Lat, 2) || !near(got.Lng, 4) {
		t.Errorf("expected biased center (2,4), got %v", got)
	}
	if !near(loc.Lat, 2) || !near(loc.Lng, 4) {
		t.Errorf("approximate fallback should use biased center, got (%v,%v)", loc.Lat, loc.Lng)
	}
}

func TestResolver_CustomRadius(t *testing.T) {
	open := &mockProvider{
		id: domain.ProviderOpen,
		nearbyFn: func(ctx context.Context, c domain.Point, radius float64, hint string) (*domain.Location, error) {
			if radius != 250 {
				t.Errorf("expected radius 250, got %v", radius)
			}
			return nil, nil
		},
	}
	r := usecases.NewMeetingPointResolver(providers(open), usecases.ResolverConfig{RadiusMeters: 250})
	_, _ = r.Resolve(context.Background(), []domain.Participant{located("a", 0, 0)}, nil, openFirst(), nil)
}
