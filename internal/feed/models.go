package feed

import (
	"strings"
	"time"

	"github.com/yegors/flightboard/internal/geo"
	"github.com/yegors/flightboard/internal/phase"
)

// Supported source types
const (
	SourceVirtualRadar = "virtualradar"
	SourceReadsb       = "readsb"
)

// Report is one aircraft state normalized across feed formats
type Report struct {
	Hex      string          `json:"hex,omitempty"`
	Callsign string          `json:"callsign"`
	Position *geo.Coordinate `json:"position,omitempty"`
	Snapshot phase.Snapshot  `json:"snapshot"`
}

// Frame is the result of one feed poll
type Frame struct {
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Reports   []Report  `json:"reports"`
}

// VirtualRadarResponse is the AircraftList.json document served by Virtual Radar Server
type VirtualRadarResponse struct {
	TotalAircraft int                  `json:"totalAc"`
	ServerTime    int64                `json:"stm"` // Unix milliseconds
	Aircraft      []VirtualRadarTarget `json:"acList"`
}

// VirtualRadarTarget is one entry of acList. Every field may be omitted by the server.
type VirtualRadarTarget struct {
	Icao     string   `json:"Icao"`
	Call     string   `json:"Call"`
	Lat      *float64 `json:"Lat"`
	Long     *float64 `json:"Long"`
	Alt      *float64 `json:"Alt"`  // Pressure altitude, feet
	Vsi      *float64 `json:"Vsi"`  // Vertical speed, feet per minute
	Spd      *float64 `json:"Spd"`  // Ground speed, knots
	Gnd      *bool    `json:"Gnd"`  // On ground
	Trak     *float64 `json:"Trak"` // Track, degrees
	Reg      string   `json:"Reg"`
	Type     string   `json:"Type"`
	Operator string   `json:"Op"`
}

// Report converts the target into a normalized report
func (t VirtualRadarTarget) Report() Report {
	r := Report{
		Hex:      strings.ToLower(strings.TrimSpace(t.Icao)),
		Callsign: CleanCallsign(t.Call),
		Snapshot: phase.Snapshot{
			VerticalSpeed: t.Vsi,
			Altitude:      t.Alt,
			GroundSpeed:   t.Spd,
			OnGround:      t.Gnd,
		},
	}
	if t.Lat != nil && t.Long != nil {
		r.Position = &geo.Coordinate{Lat: *t.Lat, Lon: *t.Long}
	}
	return r
}

// ReadsbResponse is the aircraft.json document served by readsb, dump1090-fa and tar1090
type ReadsbResponse struct {
	Now      float64        `json:"now"`
	Messages int            `json:"messages"`
	Aircraft []ReadsbTarget `json:"aircraft"`
}

// ReadsbTarget is one entry of the aircraft array.
// alt_baro is either a number or the string "ground".
type ReadsbTarget struct {
	Hex      string        `json:"hex"`
	Flight   string        `json:"flight"`
	Lat      FlexibleField `json:"lat"`
	Lon      FlexibleField `json:"lon"`
	AltBaro  FlexibleField `json:"alt_baro"`
	AltGeom  FlexibleField `json:"alt_geom"`
	GS       FlexibleField `json:"gs"`
	BaroRate FlexibleField `json:"baro_rate"`
	GeomRate FlexibleField `json:"geom_rate"`
	Track    FlexibleField `json:"track"`
	Squawk   string        `json:"squawk"`
}

// Report converts the target into a normalized report
func (t ReadsbTarget) Report() Report {
	r := Report{
		Hex:      strings.ToLower(strings.TrimSpace(t.Hex)),
		Callsign: CleanCallsign(t.Flight),
		Snapshot: phase.Snapshot{
			Altitude:    t.AltBaro.Number(),
			GroundSpeed: t.GS.Number(),
		},
	}

	// Prefer barometric rate, fall back to geometric
	r.Snapshot.VerticalSpeed = t.BaroRate.Number()
	if r.Snapshot.VerticalSpeed == nil {
		r.Snapshot.VerticalSpeed = t.GeomRate.Number()
	}

	if t.AltBaro.Present() {
		r.Snapshot.OnGround = phase.Bool(t.AltBaro.IsGround())
	}

	lat, lon := t.Lat.Number(), t.Lon.Number()
	if lat != nil && lon != nil {
		r.Position = &geo.Coordinate{Lat: *lat, Lon: *lon}
	}
	return r
}

// CleanCallsign trims the padding feeds put around callsigns and upper-cases them
func CleanCallsign(callsign string) string {
	return strings.ToUpper(strings.TrimSpace(callsign))
}
