// Package app assembles adapters and use cases from configuration. It is
// shared by the API server and the device CLI.
package app

import (
	"context"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/Xombi17/MEETease/internal/adapters/geocache"
	"github.com/Xombi17/MEETease/internal/adapters/googlemaps"
	natsadapter "github.com/Xombi17/MEETease/internal/adapters/nats"
	"github.com/Xombi17/MEETease/internal/adapters/osm"
	"github.com/Xombi17/MEETease/internal/adapters/valkey"
	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/core/ports"
	"github.com/Xombi17/MEETease/internal/core/usecases"
	"github.com/Xombi17/MEETease/internal/pkg/config"
)

// Backends holds the optional network backends. A nil field means the
// backend is disabled or could not be reached at startup.
type Backends struct {
	Valkey valkeygo.Client
	Cache  *valkey.Cache
	Docs   *valkey.SessionStore
	Feed   *natsadapter.Feed
}

// ConnectBackends dials Valkey and NATS. Failures are logged and leave the
// corresponding field nil; the service then runs local-only.
func ConnectBackends(cfg *config.Config, name string) *Backends {
	b := &Backends{}

	client, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "addr", cfg.Valkey.Addr, "error", err)
	} else {
		b.Valkey = client
		b.Cache = valkey.NewCache(client, "meetease:")
		b.Docs = valkey.NewSessionStore(client, cfg.Sync.TTL())
	}

	if cfg.Sync.Enabled {
		conn, err := natsadapter.Connect(cfg.NATS.URL, name)
		if err != nil {
			slog.Warn("nats unavailable", "url", cfg.NATS.URL, "error", err)
		} else {
			b.Feed = natsadapter.NewFeed(conn)
		}
	}
	return b
}

// Close releases every connected backend.
func (b *Backends) Close() {
	if b.Feed != nil {
		b.Feed.Close()
	}
	if b.Valkey != nil {
		b.Valkey.Close()
	}
}

// NATSConnected is a readiness probe, nil when NATS is not in use.
func (b *Backends) NATSConnected() func() bool {
	if b.Feed == nil {
		return nil
	}
	return b.Feed.Connected
}

// ValkeyPing is a readiness probe, nil when Valkey is not in use.
func (b *Backends) ValkeyPing() func(ctx context.Context) error {
	if b.Valkey == nil {
		return nil
	}
	client := b.Valkey
	return func(ctx context.Context) error { return valkey.Ping(ctx, client) }
}

// CacheService returns the geocode cache, or nil without Valkey.
func (b *Backends) CacheService() ports.CacheService {
	if b.Cache == nil {
		return nil
	}
	return b.Cache
}

// Bridge builds the sync bridge. It is disabled unless sync is enabled and
// both Valkey and NATS are connected.
func (b *Backends) Bridge(cfg *config.Config) *usecases.SyncBridge {
	if !cfg.Sync.Enabled || b.Docs == nil || b.Feed == nil {
		return usecases.NewSyncBridge(nil, nil)
	}
	return usecases.NewSyncBridge(b.Docs, b.Feed)
}

// Providers builds the open and commercial adapters, wrapped in the
// geocode cache when cache is non-nil and caching is enabled.
func Providers(cfg *config.Config, cache ports.CacheService) []ports.GeocodingProvider {
	g := cfg.Geocoding
	providers := []ports.GeocodingProvider{
		osm.New(osm.Options{
			OverpassURL:  g.OSM.OverpassURL,
			NominatimURL: g.OSM.NominatimURL,
			UserAgent:    g.OSM.UserAgent,
			RateLimit:    g.OSM.RateLimit,
			Timeout:      time.Duration(g.OSM.Timeout) * time.Second,
		}),
		googlemaps.New(googlemaps.Options{
			APIKey:  g.Google.APIKey,
			BaseURL: g.Google.BaseURL,
			Timeout: time.Duration(g.Google.Timeout) * time.Second,
		}),
	}

	for i, p := range providers {
		providers[i] = geocache.Wrap(p, cache, g.CacheTTL)
	}
	return providers
}

// Resolver builds the meeting point resolver over providers.
func Resolver(cfg *config.Config, providers []ports.GeocodingProvider) *usecases.MeetingPointResolver {
	return usecases.NewMeetingPointResolver(providers, usecases.ResolverConfig{
		RadiusMeters: cfg.Geocoding.RadiusMeters,
	})
}

// DefaultSettings derives the initial session settings from configuration.
func DefaultSettings(cfg *config.Config) domain.Settings {
	return domain.Settings{PreferOpenProvider: cfg.Geocoding.PreferOpenProvider}
}
