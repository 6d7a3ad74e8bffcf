package geo

import (
	"fmt"
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusKm = 6371.0   // Spherical Earth radius used by the haversine formula
	KmToNM        = 0.539957 // Conversion factor from kilometres to nautical miles
	FeetToMeters  = 0.3048   // Conversion factor from feet to metres
)

// Coordinate is a geographic position in decimal degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies inside the latitude/longitude ranges
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the great-circle distance between a and b in nautical miles.
// Coordinates outside the valid ranges are not rejected; non-finite input yields NaN.
func Distance(a, b Coordinate) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*sinLon*sinLon
	// Rounding can push h just outside [0, 1] near antipodes. NaN passes through.
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c * KmToNM
}

// InitialBearing returns the true bearing in degrees (0-360) from a towards b
func InitialBearing(a, b Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return normalizeDegrees(bearing)
}

// MagneticVariation calculates the magnetic declination at a position and time.
// Returns declination in degrees (+East, -West) and an error if the model rejects the date.
func MagneticVariation(c Coordinate, altFt float64, date time.Time) (float64, error) {
	loc := egm96.NewLocationGeodetic(c.Lat, c.Lon, altFt*FeetToMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate magnetic field: %w", err)
	}

	return mag.D(), nil
}

// MagneticBearing returns the magnetic bearing from a towards b, correcting the
// true bearing by the declination at a
func MagneticBearing(a, b Coordinate, altFt float64, date time.Time) (float64, error) {
	decl, err := MagneticVariation(a, altFt, date)
	if err != nil {
		return 0, err
	}
	return normalizeDegrees(InitialBearing(a, b) - decl), nil
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
