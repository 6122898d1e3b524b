package ports

import (
	"context"
	"time"

	"github.com/Xombi17/MEETease/internal/core/domain"
)

// GeocodingProvider is the uniform contract over a place-search backend.
// Both lookups return (nil, nil) when the provider has nothing to offer;
// a hard failure may be returned as an error. Results must carry valid
// coordinates.
type GeocodingProvider interface {
	ID() domain.ProviderID
	// Available is a synchronous capability check (configured, initialised).
	Available() bool
	FindNearby(ctx context.Context, center domain.Point, radiusMeters float64, categoryHint string) (*domain.Location, error)
	ReverseGeocode(ctx context.Context, point domain.Point) (*domain.Location, error)
}

// SessionDocumentStore persists the remote session document.
type SessionDocumentStore interface {
	Create(ctx context.Context, code string, createdAt time.Time) error
	Exists(ctx context.Context, code string) (bool, error)
	PutParticipant(ctx context.Context, code string, p domain.RemoteParticipant) error
	// RemoveParticipant drops the participant's profile and location and
	// leaves a removal marker so other replicas drop it too.
	RemoveParticipant(ctx context.Context, code, participantID string, removedAt time.Time) error
	PutLocation(ctx context.Context, code, participantID string, loc domain.Location) error
	PutMeetingPoint(ctx context.Context, code string, loc domain.Location) error
	PutDestination(ctx context.Context, code string, loc domain.Location) error
	Snapshot(ctx context.Context, code string) (*domain.SessionSnapshot, error)
}
