// Package geocache wraps a geocoding provider with a read-through cache.
package geocache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmcloughlin/geohash"
	"golang.org/x/sync/singleflight"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/core/ports"
	"github.com/Xombi17/MEETease/internal/pkg/metrics"
)

// Precision 7 cells are roughly 150 m on a side.
const geohashPrecision = 7

// Provider caches non-empty lookups of the wrapped provider. Cache errors
// are ignored and fall through to the wrapped provider.
type Provider struct {
	next  ports.GeocodingProvider
	cache ports.CacheService
	ttl   int
	group singleflight.Group
}

// Wrap returns next unchanged when cache is nil or ttlSeconds is not positive.
func Wrap(next ports.GeocodingProvider, cache ports.CacheService, ttlSeconds int) ports.GeocodingProvider {
	if cache == nil || ttlSeconds <= 0 {
		return next
	}
	return &Provider{next: next, cache: cache, ttl: ttlSeconds}
}

func (p *Provider) ID() domain.ProviderID { return p.next.ID() }
func (p *Provider) Available() bool       { return p.next.Available() }

func (p *Provider) FindNearby(ctx context.Context, center domain.Point, radiusMeters float64, categoryHint string) (*domain.Location, error) {
	key := fmt.Sprintf("geo:%s:nearby:%s:%.0f:%s",
		p.next.ID(), geohash.EncodeWithPrecision(center.Lat, center.Lng, geohashPrecision), radiusMeters, categoryHint)
	return p.lookup(ctx, "nearby", key, func(ctx context.Context) (*domain.Location, error) {
		return p.next.FindNearby(ctx, center, radiusMeters, categoryHint)
	})
}

// ReverseGeocode caches the address only; the returned coordinates are
// always the queried point's.
func (p *Provider) ReverseGeocode(ctx context.Context, point domain.Point) (*domain.Location, error) {
	key := fmt.Sprintf("geo:%s:reverse:%s",
		p.next.ID(), geohash.EncodeWithPrecision(point.Lat, point.Lng, geohashPrecision))
	loc, err := p.lookup(ctx, "reverse", key, func(ctx context.Context) (*domain.Location, error) {
		return p.next.ReverseGeocode(ctx, point)
	})
	if loc == nil || err != nil {
		return loc, err
	}
	out := domain.Location{Lat: point.Lat, Lng: point.Lng, Address: loc.Address}
	return &out, nil
}

func (p *Provider) lookup(ctx context.Context, op, key string, fetch func(context.Context) (*domain.Location, error)) (*domain.Location, error) {
	if data, err := p.cache.Get(ctx, key); err == nil {
		var loc domain.Location
		if err := json.Unmarshal(data, &loc); err == nil && loc.Validate() == nil {
			metrics.CacheHits.WithLabelValues(op).Inc()
			return &loc, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(op).Inc()

	v, err, _ := p.group.Do(key, func() (any, error) {
		loc, err := fetch(ctx)
		if err != nil || loc == nil {
			return loc, err
		}
		if data, err := json.Marshal(loc); err == nil {
			_ = p.cache.Set(ctx, key, data, p.ttl)
		}
		return loc, nil
	})
	if err != nil {
		return nil, err
	}
	loc, _ := v.(*domain.Location)
	if loc == nil {
		return nil, nil
	}
	c := *loc
	return &c, nil
}
