package domain

// Sentinel addresses shown in place of a real place name.
const (
	AddressCalculating = "Calculating optimal meeting point..."
	AddressApproximate = "Meeting Point (Approximate)"
)

// Location is an immutable position record. A new Location always replaces
// the previous one; fields are never merged.
type Location struct {
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Address       string  `json:"address,omitempty"`
	Timestamp     int64   `json:"timestamp,omitempty"` // epoch millis
	ParticipantID string  `json:"participantId,omitempty"`
}

// Point drops everything but the coordinates.
func (l Location) Point() Point {
	return Point{Lat: l.Lat, Lng: l.Lng}
}

// Validate checks the coordinate invariant.
func (l Location) Validate() error {
	return l.Point().Validate()
}

// IsSentinel reports whether the address is a placeholder rather than a place name.
func (l Location) IsSentinel() bool {
	return l.Address == AddressCalculating || l.Address == AddressApproximate
}

// LocationAt builds an unaddressed Location from a point.
func LocationAt(p Point) Location {
	return Location{Lat: p.Lat, Lng: p.Lng}
}

func cloneLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
