package prayer

import "math"

// Coordinates of the Kaaba in Mecca.
const (
	KaabaLatitude  = 21.4225
	KaabaLongitude = 39.8262
)

// earthRadiusKm is the mean Earth radius used for distances.
const earthRadiusKm = 6371.0

// QiblaBearing returns the initial great-circle bearing from the point to
// the Kaaba in degrees clockwise from true north, normalized to [0, 360).
func QiblaBearing(lat, lon float64) float64 {
	phi := radians(lat)
	phiK := radians(KaabaLatitude)
	deltaLambda := radians(KaabaLongitude - lon)

	y := math.Sin(deltaLambda)
	x := math.Cos(phi)*math.Tan(phiK) - math.Sin(phi)*math.Cos(deltaLambda)

	return normalizeDegrees(degrees(math.Atan2(y, x)))
}

// DistanceToKaaba returns the haversine distance to the Kaaba in kilometres.
func DistanceToKaaba(lat, lon float64) float64 {
	phi1 := radians(lat)
	phi2 := radians(KaabaLatitude)
	dPhi := radians(KaabaLatitude - lat)
	dLambda := radians(KaabaLongitude - lon)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ValidCoordinates reports whether lat/lon are within geographic bounds.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 &&
		!math.IsNaN(lat) && !math.IsNaN(lon)
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}
