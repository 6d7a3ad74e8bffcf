package routes

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yegors/flightboard/internal/geo"
	"github.com/yegors/flightboard/internal/phase"
)

// ErrNoStation is returned when a resolver is built without a station identity
var ErrNoStation = errors.New("station code or name is required")

// Route is the origin and destination assigned to a callsign.
// Origin is empty for destination-only routes.
type Route struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// Complete reports whether both ends of the route are known
func (r Route) Complete() bool {
	return r.Origin != "" && r.Destination != ""
}

// ParseRoute splits "ORIGIN-DESTINATION" on the first hyphen.
// A route without a hyphen is destination-only.
func ParseRoute(s string) Route {
	s = strings.TrimSpace(s)
	origin, destination, found := strings.Cut(s, "-")
	if !found {
		return Route{Destination: s}
	}
	return Route{
		Origin:      strings.TrimSpace(origin),
		Destination: strings.TrimSpace(destination),
	}
}

// Table maps callsigns to routes
type Table map[string]Route

// Lookup returns the route for a callsign, ignoring case and surrounding whitespace
func (t Table) Lookup(callsign string) (Route, bool) {
	r, ok := t[normalizeCallsign(callsign)]
	return r, ok
}

// normalizeCallsign matches the feed's callsign cleaning
func normalizeCallsign(callsign string) string {
	return strings.ToUpper(strings.TrimSpace(callsign))
}

// LoadRoutes reads a callsign,route CSV file. The first row is a header.
func LoadRoutes(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open routes file: %w", err)
	}
	defer file.Close()

	table, err := ReadRoutes(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file %s: %w", path, err)
	}
	return table, nil
}

// ReadRoutes parses route rows from r. The first row is a header; rows that do
// not have exactly two columns are skipped. Later rows replace earlier ones.
func ReadRoutes(r io.Reader) (Table, error) {
	reader := newReader(r)

	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, nil
		}
		return nil, err
	}

	table := make(Table)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != 2 {
			continue
		}

		callsign := normalizeCallsign(record[0])
		if callsign == "" {
			continue
		}
		table[callsign] = ParseRoute(record[1])
	}

	return table, nil
}

// Airports maps ICAO codes to airport names
type Airports map[string]string

// Name returns the airport name for an ICAO code
func (a Airports) Name(icao string) (string, bool) {
	name, ok := a[strings.ToUpper(strings.TrimSpace(icao))]
	return name, ok
}

// LoadAirports reads a headerless ICAO,name CSV file
func LoadAirports(path string) (Airports, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports file: %w", err)
	}
	defer file.Close()

	airports, err := ReadAirports(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read airports file %s: %w", path, err)
	}
	return airports, nil
}

// ReadAirports parses ICAO,name rows from r, skipping rows without exactly two columns
func ReadAirports(r io.Reader) (Airports, error) {
	reader := newReader(r)

	airports := make(Airports)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != 2 {
			continue
		}

		code := strings.ToUpper(strings.TrimSpace(record[0]))
		if code == "" {
			continue
		}
		airports[code] = strings.TrimSpace(record[1])
	}

	return airports, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // row width is checked by the caller
	reader.TrimLeadingSpace = true
	return reader
}

// Station identifies the reference airport
type Station struct {
	Code     string         `json:"code"`
	Name     string         `json:"name"`
	Position geo.Coordinate `json:"position"`
}

// DisplayName returns the station name, falling back to its code
func (s Station) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Code
}

// Is reports whether an airport reference from a route names this station
func (s Station) Is(airport string) bool {
	airport = strings.TrimSpace(airport)
	if airport == "" {
		return false
	}
	return (s.Code != "" && strings.EqualFold(airport, s.Code)) ||
		(s.Name != "" && strings.EqualFold(airport, s.Name))
}

// Resolver derives route directions relative to the station
type Resolver struct {
	station Station
}

// NewResolver creates a resolver for the given station
func NewResolver(station Station) (*Resolver, error) {
	if station.Code == "" && station.Name == "" {
		return nil, ErrNoStation
	}
	return &Resolver{station: station}, nil
}

// Station returns the station the resolver compares against
func (r *Resolver) Station() Station {
	return r.station
}

// Direction returns Inbound when the station is the route's destination and
// Outbound otherwise. Routes missing either end are not resolvable.
func (r *Resolver) Direction(route Route) (phase.Direction, bool) {
	if !route.Complete() {
		return 0, false
	}
	if r.station.Is(route.Destination) {
		return phase.Inbound, true
	}
	return phase.Outbound, true
}

// DirectionLabel returns the readout text for a route: the destination for
// inbound flights, "From <station>" for outbound ones
func (r *Resolver) DirectionLabel(route Route, d phase.Direction) string {
	if d == phase.Inbound {
		return route.Destination
	}
	return "From " + r.station.DisplayName()
}
