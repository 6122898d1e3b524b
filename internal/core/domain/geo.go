package domain

import (
	"fmt"
	"math"
)

// Point is a bare WGS 84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports ErrInvalidCoordinates for NaN, infinite or out-of-range values.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("%w: non-numeric coordinate (%v, %v)", ErrInvalidCoordinates, p.Lat, p.Lng)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: lat %v outside [-90, 90]", ErrInvalidCoordinates, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: lng %v outside [-180, 180]", ErrInvalidCoordinates, p.Lng)
	}
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
