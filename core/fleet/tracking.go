package fleet

import "math"

const earthRadiusKm = 6371.0

// Point is a geographic coordinate reported by a location update.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid checks the coordinate ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// StartTracking enables distance accounting.
func (s *VehicleState) StartTracking() {
	s.mu.Lock()
	s.tracking = true
	s.mu.Unlock()
}

// StopTracking disables distance accounting. The last location is kept.
func (s *VehicleState) StopTracking() {
	s.mu.Lock()
	s.tracking = false
	s.mu.Unlock()
}

// Tracking reports whether distance accounting is enabled.
func (s *VehicleState) Tracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracking
}

// UpdateLocation records a new position. While tracking is enabled the
// distance from the previous known position is added to the odometer; the
// added distance is returned.
func (s *VehicleState) UpdateLocation(p Point) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var d float64
	if s.tracking && s.located {
		d = Haversine(s.location, p)
		s.distance += d
	}
	s.location = p
	s.located = true
	return d
}

// DistanceKm returns the accumulated tracked distance.
func (s *VehicleState) DistanceKm() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distance
}
