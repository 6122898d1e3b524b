package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/core/ports"
	"github.com/Xombi17/MEETease/internal/pkg/geospatial"
	"github.com/Xombi17/MEETease/internal/pkg/logging"
	"github.com/Xombi17/MEETease/internal/pkg/metrics"
	"github.com/Xombi17/MEETease/internal/pkg/telemetry"
)

// DefaultSearchRadius is the venue search radius around the center, in meters.
const DefaultSearchRadius = 1000.0

// DefaultCategories are the nearby-search hints tried per provider, in order.
// An empty hint lets the adapter search its whole venue set at once.
func DefaultCategories() map[domain.ProviderID][]string {
	return map[domain.ProviderID][]string{
		domain.ProviderOpen:       {""},
		domain.ProviderCommercial: {"restaurant", "transit_station"},
	}
}

// ResolverConfig tunes the fallback search.
type ResolverConfig struct {
	RadiusMeters float64
	Categories   map[domain.ProviderID][]string
}

// MeetingPointResolver turns participant locations into a named meeting point.
type MeetingPointResolver struct {
	providers  map[domain.ProviderID]ports.GeocodingProvider
	radius     float64
	categories map[domain.ProviderID][]string
	tracer     trace.Tracer
}

// NewMeetingPointResolver creates a resolver over the given adapters.
// A nil adapter is ignored; at most one adapter per ProviderID is kept.
func NewMeetingPointResolver(providers []ports.GeocodingProvider, cfg ResolverConfig) *MeetingPointResolver {
	r := &MeetingPointResolver{
		providers:  make(map[domain.ProviderID]ports.GeocodingProvider),
		radius:     cfg.RadiusMeters,
		categories: cfg.Categories,
		tracer:     telemetry.Tracer(telemetry.ScopeResolver),
	}
	for _, p := range providers {
		if p != nil {
			r.providers[p.ID()] = p
		}
	}
	if r.radius <= 0 {
		r.radius = DefaultSearchRadius
	}
	if r.categories == nil {
		r.categories = DefaultCategories()
	}
	return r
}

// Center computes the resolution candidate: the arithmetic centroid of the
// located participants, pulled halfway toward destination when one is set.
func (r *MeetingPointResolver) Center(participants []domain.Participant, destination *domain.Location) (domain.Point, error) {
	located := lo.Filter(participants, func(p domain.Participant, _ int) bool {
		return p.Location != nil
	})
	points := lo.Map(located, func(p domain.Participant, _ int) domain.Point {
		return p.Location.Point()
	})

	center, ok := geospatial.Centroid(points)
	if !ok {
		return domain.Point{}, domain.ErrInsufficientParticipants
	}
	if destination != nil {
		center = geospatial.Midpoint(center, destination.Point())
	}
	return center, nil
}

// Resolve computes the center, hands a provisional "calculating" location to
// onProvisional (may be nil), then walks the fallback tiers in providerOrder
// until one yields a valid place. It only fails with
// ErrInsufficientParticipants; every provider failure degrades to the next
// tier and finally to the raw center marked as approximate.
func (r *MeetingPointResolver) Resolve(
	ctx context.Context,
	participants []domain.Participant,
	destination *domain.Location,
	providerOrder []domain.ProviderID,
	onProvisional func(domain.Location),
) (domain.Location, error) {
	center, err := r.Center(participants, destination)
	if err != nil {
		return domain.Location{}, err
	}

	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "resolver.Resolve", trace.WithAttributes(
		attribute.Int("participants", len(participants)),
		attribute.Bool("destination", destination != nil),
		attribute.Float64("center.lat", center.Lat),
		attribute.Float64("center.lng", center.Lng),
	))
	defer span.End()

	if onProvisional != nil {
		onProvisional(domain.Location{Lat: center.Lat, Lng: center.Lng, Address: domain.AddressCalculating})
	}

	for _, t := range r.tiers(ctx, center, providerOrder) {
		if loc, ok := r.runTier(ctx, t); ok {
			metrics.ResolverDuration.WithLabelValues(t.label()).Observe(time.Since(start).Seconds())
			span.SetAttributes(attribute.String("result", t.label()))
			return loc, nil
		}
	}

	metrics.ResolverDuration.WithLabelValues("approximate").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("result", "approximate"))
	logging.FromContext(ctx).Info("all geocoding tiers exhausted, using approximate center",
		"lat", center.Lat, "lng", center.Lng)

	return domain.Location{Lat: center.Lat, Lng: center.Lng, Address: domain.AddressApproximate}, nil
}

type tier struct {
	provider domain.ProviderID
	kind     string // "nearby" | "reverse"
	hint     string
	run      func(ctx context.Context) (*domain.Location, error)
}

func (t tier) label() string {
	return string(t.provider) + "_" + t.kind
}

// tiers builds the ordered chain: per provider, nearby searches first, then
// its reverse geocode. Unknown and unavailable providers contribute nothing.
func (r *MeetingPointResolver) tiers(ctx context.Context, center domain.Point, order []domain.ProviderID) []tier {
	var out []tier
	for _, id := range lo.Uniq(order) {
		p, ok := r.providers[id]
		if !ok {
			continue
		}
		if !p.Available() {
			metrics.ResolverTiers.WithLabelValues(string(id), "all", "unavailable").Inc()
			logging.FromContext(ctx).Debug("geocoding provider skipped", "provider", id,
				"error", domain.ErrProviderUnavailable)
			continue
		}

		for _, hint := range r.categories[id] {
			out = append(out, tier{
				provider: id,
				kind:     "nearby",
				hint:     hint,
				run: func(ctx context.Context) (*domain.Location, error) {
					return p.FindNearby(ctx, center, r.radius, hint)
				},
			})
		}
		out = append(out, tier{
			provider: id,
			kind:     "reverse",
			run: func(ctx context.Context) (*domain.Location, error) {
				return p.ReverseGeocode(ctx, center)
			},
		})
	}
	return out
}

// runTier executes one tier, converting errors, empty answers, invalid
// coordinates and panics into "no result".
func (r *MeetingPointResolver) runTier(ctx context.Context, t tier) (loc domain.Location, ok bool) {
	ctx, span := r.tracer.Start(ctx, "resolver.tier", trace.WithAttributes(
		attribute.String("provider", string(t.provider)),
		attribute.String("tier", t.kind),
		attribute.String("category", t.hint),
	))
	defer span.End()

	logger := logging.FromContext(ctx).With("provider", t.provider, "tier", t.kind, "category", t.hint)

	outcome := "hit"
	defer func() {
		metrics.ResolverTiers.WithLabelValues(string(t.provider), t.kind, outcome).Inc()
		span.SetAttributes(attribute.String("outcome", outcome))
	}()

	res, err := safeCall(ctx, t.run)
	switch {
	case err != nil:
		outcome = "error"
		if errors.Is(err, domain.ErrInvalidCoordinates) {
			outcome = "invalid"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("geocoding tier failed", "error", err)
		return domain.Location{}, false
	case res == nil:
		outcome = "empty"
		logger.Debug("geocoding tier returned no result")
		return domain.Location{}, false
	}

	if err := res.Validate(); err != nil {
		outcome = "invalid"
		logger.Warn("geocoding tier returned invalid coordinates", "error", err)
		return domain.Location{}, false
	}

	logger.Debug("geocoding tier resolved", "lat", res.Lat, "lng", res.Lng, "address", res.Address)
	return *res, true
}

func safeCall(ctx context.Context, fn func(context.Context) (*domain.Location, error)) (loc *domain.Location, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			loc, err = nil, fmt.Errorf("provider panic: %v", rec)
		}
	}()
	return fn(ctx)
}
