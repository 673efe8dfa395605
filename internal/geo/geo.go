// Package geo provides the small set of geographic primitives used by the
// detection engine: great-circle distance, circle and polygon containment,
// and point-to-polyline distance.
//
// Containment and polyline distances deliberately use a flat approximation of
// 111,000 meters per degree instead of true geodesic math. The tolerances
// involved (tens to hundreds of meters) make the error irrelevant, and it
// keeps results consistent with the production numbers this engine replaces.
package geo

import (
	"math"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by Haversine.
	EarthRadiusMeters = 6371000.0

	// MetersPerDegree is the flat degree-to-meter conversion used by the
	// containment and polyline distance checks.
	MetersPerDegree = 111000.0
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point has finite coordinates in range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(p1, p2 Point) float64 {
	lat1 := p1.Lat * math.Pi / 180
	lat2 := p2.Lat * math.Pi / 180
	dLat := (p2.Lat - p1.Lat) * math.Pi / 180
	dLon := (p2.Lon - p1.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// PointInCircle reports whether p lies within radiusMeters of center.
// The test compares planar degree distance against radius/MetersPerDegree.
func PointInCircle(p, center Point, radiusMeters float64) bool {
	if radiusMeters < 0 {
		return false
	}
	return planarDistance(p, center) <= radiusMeters/MetersPerDegree
}

// PointInPolygon reports whether p lies inside the polygon described by an
// exterior ring and optional hole rings. Rings are closed (first vertex
// repeated last). Boundary points count as inside, for holes as well: a point
// on a hole's ring is still part of the polygon.
func PointInPolygon(p Point, exterior []Point, holes [][]Point) bool {
	if !pointInRing(p, exterior) {
		return false
	}
	for _, hole := range holes {
		if pointOnRing(p, hole) {
			return true
		}
		if rayCast(p, hole) {
			return false
		}
	}
	return true
}

// pointInRing combines the boundary-inclusive policy with ray casting.
func pointInRing(p Point, ring []Point) bool {
	if pointOnRing(p, ring) {
		return true
	}
	return rayCast(p, ring)
}

// rayCast is the standard even-odd crossing test in the lon/lat plane.
func rayCast(p Point, ring []Point) bool {
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		pi := ring[i]
		pj := ring[j]
		if (pi.Lon > p.Lon) != (pj.Lon > p.Lon) &&
			p.Lat < (pj.Lat-pi.Lat)*(p.Lon-pi.Lon)/(pj.Lon-pi.Lon)+pi.Lat {
			inside = !inside
		}
		j = i
	}
	return inside
}

func pointOnRing(p Point, ring []Point) bool {
	for i := 0; i+1 < len(ring); i++ {
		if pointSegmentDistance(p, ring[i], ring[i+1]) < 1e-9 {
			return true
		}
	}
	return false
}

// DistanceToPolyline returns the minimum distance in meters from p to the
// polyline, taken over every consecutive vertex pair.
func DistanceToPolyline(p Point, line []Point) float64 {
	if len(line) == 0 {
		return math.MaxFloat64
	}
	if len(line) == 1 {
		return planarDistance(p, line[0]) * MetersPerDegree
	}
	min := math.MaxFloat64
	for i := 0; i+1 < len(line); i++ {
		if d := pointSegmentDistance(p, line[i], line[i+1]); d < min {
			min = d
		}
	}
	return min * MetersPerDegree
}

// ClosestVertex returns the polyline vertex nearest to p. This is the sampled
// vertex, not the true projection onto the segment; sub-segment precision has
// never been needed by the callers.
func ClosestVertex(p Point, line []Point) (Point, bool) {
	if len(line) == 0 {
		return Point{}, false
	}
	best := line[0]
	bestDist := planarDistance(p, line[0])
	for _, v := range line[1:] {
		if d := planarDistance(p, v); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best, true
}

// PolylineLength returns the length of the polyline in meters, summing
// great-circle distances between consecutive vertices.
func PolylineLength(line []Point) float64 {
	total := 0.0
	for i := 0; i+1 < len(line); i++ {
		total += Haversine(line[i], line[i+1])
	}
	return total
}

// planarDistance is the euclidean distance in degree space.
func planarDistance(a, b Point) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// pointSegmentDistance returns the degree-space distance from p to the
// segment ab, clamping the projection to the segment endpoints.
func pointSegmentDistance(p, a, b Point) float64 {
	dLat := b.Lat - a.Lat
	dLon := b.Lon - a.Lon
	lenSq := dLat*dLat + dLon*dLon
	if lenSq == 0 {
		return planarDistance(p, a)
	}
	t := ((p.Lat-a.Lat)*dLat + (p.Lon-a.Lon)*dLon) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	proj := Point{Lat: a.Lat + t*dLat, Lon: a.Lon + t*dLon}
	return planarDistance(p, proj)
}
