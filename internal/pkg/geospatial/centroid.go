package geospatial

import "github.com/Xombi17/MEETease/internal/core/domain"

// Centroid is the arithmetic mean of the points' latitudes and longitudes.
// It is not geodesic: results are wrong for sets straddling the ±180°
// meridian or surrounding a pole. ok is false for an empty set.
func Centroid(points []domain.Point) (center domain.Point, ok bool) {
	if len(points) == 0 {
		return domain.Point{}, false
	}
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return domain.Point{Lat: sumLat / n, Lng: sumLng / n}, true
}

// Midpoint averages two points component-wise.
func Midpoint(a, b domain.Point) domain.Point {
	return domain.Point{
		Lat: (a.Lat + b.Lat) / 2,
		Lng: (a.Lng + b.Lng) / 2,
	}
}
