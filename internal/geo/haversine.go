package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for every distance in
// this package.
const EarthRadiusMeters = 6371008.8

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func rad2deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// ValidCoordinates reports whether lat/lon are finite WGS84 degrees.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Bounds is a lat/lon box. MinLon > MaxLon means the box crosses the
// antimeridian.
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// boundingBox returns the smallest box containing every point within
// radius meters of (lat, lon). It spans every longitude when the circle
// reaches a pole.
func boundingBox(lat, lon, radius float64) Bounds {
	ang := radius / EarthRadiusMeters
	if ang >= math.Pi {
		return Bounds{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}
	}
	latR := deg2rad(lat)
	minLat := latR - ang
	maxLat := latR + ang

	if minLat <= -math.Pi/2 || maxLat >= math.Pi/2 {
		return Bounds{
			MinLat: math.Max(rad2deg(minLat), -90),
			MinLon: -180,
			MaxLat: math.Min(rad2deg(maxLat), 90),
			MaxLon: 180,
		}
	}

	ratio := math.Sin(ang) / math.Cos(latR)
	if ratio >= 1 {
		return Bounds{MinLat: rad2deg(minLat), MinLon: -180, MaxLat: rad2deg(maxLat), MaxLon: 180}
	}
	dLon := rad2deg(math.Asin(ratio))

	// small pad so float rounding never drops a point on the boundary
	const pad = 1e-9
	minLon := lon - dLon - pad
	maxLon := lon + dLon + pad
	if minLon < -180 {
		minLon += 360
	}
	if maxLon > 180 {
		maxLon -= 360
	}
	return Bounds{
		MinLat: rad2deg(minLat) - pad,
		MinLon: minLon,
		MaxLat: rad2deg(maxLat) + pad,
		MaxLon: maxLon,
	}
}
