// Package geo provides great-circle distance math and the service-area
// boundary used to decide query coverage.
package geo

import "math"

// EarthRadiusKM is the mean Earth radius used for haversine distance.
const EarthRadiusKM = 6371.0

// DegreesPerKM is an approximate conversion factor for latitude degrees to
// kilometers. At mid-latitudes, 1 degree of latitude is approximately 111 km.
const DegreesPerKM = 1.0 / 111.0

// HaversineKM returns the great-circle distance between two coordinates
// in kilometers.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := radians(lat2 - lat1)
	dlon := radians(lon2 - lon1)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// BBox is a geographic bounding box.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the point lies inside the box.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// RadiusBBox returns the bounding box enclosing a circle of radiusKM around
// the point. Longitude spread widens with latitude so the box never clips
// the circle.
func RadiusBBox(lat, lon, radiusKM float64) BBox {
	latDelta := radiusKM * DegreesPerKM
	lonDelta := radiusKM / (111.0 * math.Cos(radians(lat)))
	return BBox{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
		MinLon: lon - lonDelta,
		MaxLon: lon + lonDelta,
	}
}
