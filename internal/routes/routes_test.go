package routes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightboard/internal/phase"
)

const routesCSV = `callsign,route
CTN418, Zagreb - Dubrovnik
OU641,Dubrovnik-Zagreb
EZY8341,London Gatwick-Dubrovnik
BAW2726,Dubrovnik
broken row without comma
TOO,many,columns
 ,Split-Dubrovnik
LOT2713,Warsaw-Dubrovnik-Split
CTN418,Split-Dubrovnik
`

func TestReadRoutes(t *testing.T) {
	table, err := ReadRoutes(strings.NewReader(routesCSV))
	require.NoError(t, err)

	assert.Len(t, table, 5)

	r, ok := table.Lookup(" CTN418 ")
	require.True(t, ok)
	assert.Equal(t, Route{Origin: "Split", Destination: "Dubrovnik"}, r, "later rows replace earlier ones")

	r, ok = table.Lookup("BAW2726")
	require.True(t, ok)
	assert.Equal(t, Route{Origin: "", Destination: "Dubrovnik"}, r)
	assert.False(t, r.Complete())

	r, ok = table.Lookup("LOT2713")
	require.True(t, ok)
	assert.Equal(t, Route{Origin: "Warsaw", Destination: "Dubrovnik-Split"}, r)

	_, ok = table.Lookup("TOO")
	assert.False(t, ok)
}

func TestReadRoutesIgnoresCallsignCase(t *testing.T) {
	table, err := ReadRoutes(strings.NewReader("callsign,route\nctn418,Zagreb-Dubrovnik\n"))
	require.NoError(t, err)

	r, ok := table.Lookup("CTN418")
	require.True(t, ok)
	assert.Equal(t, Route{Origin: "Zagreb", Destination: "Dubrovnik"}, r)

	_, ok = table.Lookup("Ctn418")
	assert.True(t, ok)
}

func TestReadRoutesHeaderOnly(t *testing.T) {
	table, err := ReadRoutes(strings.NewReader("callsign,route\n"))
	require.NoError(t, err)
	assert.Empty(t, table)

	table, err = ReadRoutes(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestLoadRoutesMissingFile(t *testing.T) {
	_, err := LoadRoutes(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open routes file")
}

func TestLoadAirports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airports.csv")
	require.NoError(t, os.WriteFile(path, []byte("LDDU,Dubrovnik\nldza, Zagreb\nEGKK,London Gatwick,UK\n"), 0o644))

	airports, err := LoadAirports(path)
	require.NoError(t, err)
	assert.Len(t, airports, 2)

	name, ok := airports.Name("lddu")
	require.True(t, ok)
	assert.Equal(t, "Dubrovnik", name)

	name, ok = airports.Name("LDZA")
	require.True(t, ok)
	assert.Equal(t, "Zagreb", name)

	_, ok = airports.Name("EGKK")
	assert.False(t, ok)
}

func TestParseRoute(t *testing.T) {
	assert.Equal(t, Route{Origin: "LDZA", Destination: "LDDU"}, ParseRoute(" LDZA-LDDU "))
	assert.Equal(t, Route{Destination: "LDDU"}, ParseRoute("LDDU"))
	assert.Equal(t, Route{Origin: "", Destination: "LDDU"}, ParseRoute("-LDDU"))
}

func TestResolverDirection(t *testing.T) {
	_, err := NewResolver(Station{})
	require.ErrorIs(t, err, ErrNoStation)

	r, err := NewResolver(Station{Code: "LDDU", Name: "Dubrovnik"})
	require.NoError(t, err)

	cases := []struct {
		route Route
		want  phase.Direction
		ok    bool
	}{
		{Route{Origin: "Zagreb", Destination: "Dubrovnik"}, phase.Inbound, true},
		{Route{Origin: "LDZA", Destination: "lddu"}, phase.Inbound, true},
		{Route{Origin: "Dubrovnik", Destination: "Zagreb"}, phase.Outbound, true},
		{Route{Origin: "Split", Destination: "Zagreb"}, phase.Outbound, true},
		{Route{Destination: "Dubrovnik"}, 0, false},
		{Route{Origin: "Dubrovnik"}, 0, false},
	}
	for _, tc := range cases {
		got, ok := r.Direction(tc.route)
		assert.Equal(t, tc.ok, ok, "%+v", tc.route)
		if tc.ok {
			assert.Equal(t, tc.want, got, "%+v", tc.route)
		}
	}
}

func TestResolverDirectionLabel(t *testing.T) {
	r, err := NewResolver(Station{Code: "LDDU", Name: "Dubrovnik"})
	require.NoError(t, err)

	assert.Equal(t, "Dubrovnik", r.DirectionLabel(Route{Origin: "Zagreb", Destination: "Dubrovnik"}, phase.Inbound))
	assert.Equal(t, "From Dubrovnik", r.DirectionLabel(Route{Origin: "Dubrovnik", Destination: "Zagreb"}, phase.Outbound))

	codeOnly, err := NewResolver(Station{Code: "LDDU"})
	require.NoError(t, err)
	assert.Equal(t, "From LDDU", codeOnly.DirectionLabel(Route{Origin: "LDDU", Destination: "LDZA"}, phase.Outbound))
}
