package domain

import "errors"

var (
	// ErrInsufficientParticipants is returned when a resolution is attempted
	// without any located participant. Callers treat it as a no-op.
	ErrInsufficientParticipants = errors.New("no participant has a location")

	// ErrProviderUnavailable means a geocoding adapter cannot be reached or
	// is not configured. The resolver skips to the next tier.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")

	// ErrInvalidCoordinates means a lat/lng pair is non-numeric or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrSyncUnreachable means the remote session backend is not configured
	// or cannot be reached. The sync bridge degrades to local-only.
	ErrSyncUnreachable = errors.New("session sync backend unreachable")

	ErrParticipantNotFound = errors.New("participant not found")
	ErrSessionNotFound     = errors.New("session not found")
)
