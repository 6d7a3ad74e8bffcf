package phase

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is the route direction relative to the station airport
type Direction int

const (
	Inbound  Direction = iota // station is the destination
	Outbound                  // station is the origin
)

var directionCodes = map[Direction]string{
	Inbound:  "inbound",
	Outbound: "outbound",
}

func (d Direction) String() string {
	if code, ok := directionCodes[d]; ok {
		return code
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection parses "inbound" or "outbound" (case-insensitive)
func ParseDirection(s string) (Direction, error) {
	for d, code := range directionCodes {
		if strings.EqualFold(s, code) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction: %q", s)
}

// MarshalJSON encodes the direction as its lowercase code
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a direction from its code
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Label is a flight phase
type Label int

const (
	Indeterminate Label = iota
	EnRoute
	ArrivedAtGate
	Arriving
	Approaching
	Landing
	Landed
	MissedApproach
	TaxiToGate
	TaxiToRunway
	Departing
	Cruising
)

type labelInfo struct {
	code    string // stable machine code used in JSON, metrics and filters
	display string // operator readout text
}

var labels = map[Label]labelInfo{
	Indeterminate:  {"INDETERMINATE", "UNKNOWN"},
	EnRoute:        {"EN_ROUTE", "EN ROUTE"},
	ArrivedAtGate:  {"ARRIVED_AT_GATE", "ARRIVED AT THE GATE"},
	Arriving:       {"ARRIVING", "ARRIVING"},
	Approaching:    {"APPROACHING", "APPROACHING"},
	Landing:        {"LANDING", "LANDING"},
	Landed:         {"LANDED", "LANDED"},
	MissedApproach: {"MISSED_APPROACH", "MISSED APPROACH"},
	TaxiToGate:     {"TAXI_TO_GATE", "TAXI TO THE GATE"},
	TaxiToRunway:   {"TAXI_TO_RUNWAY", "TAXI TO THE RUNWAY"},
	Departing:      {"DEPARTING", "DEPARTING"},
	Cruising:       {"CRUISING", "CRUISING TO DESTINATION"},
}

// Labels returns every label in declaration order
func Labels() []Label {
	out := make([]Label, 0, len(labels))
	for l := Indeterminate; l <= Cruising; l++ {
		out = append(out, l)
	}
	return out
}

// Code returns the stable machine code, e.g. "EN_ROUTE"
func (l Label) Code() string {
	if info, ok := labels[l]; ok {
		return info.code
	}
	return labels[Indeterminate].code
}

// Display returns the operator readout text, e.g. "EN ROUTE"
func (l Label) Display() string {
	if info, ok := labels[l]; ok {
		return info.display
	}
	return labels[Indeterminate].display
}

func (l Label) String() string {
	return l.Code()
}

// Known reports whether the label carries phase information
func (l Label) Known() bool {
	return l != Indeterminate
}

// ParseLabel parses a label from its code (case-insensitive)
func ParseLabel(s string) (Label, error) {
	for l, info := range labels {
		if strings.EqualFold(s, info.code) {
			return l, nil
		}
	}
	return Indeterminate, fmt.Errorf("unknown phase: %q", s)
}

// MarshalJSON encodes the label as its code
func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Code())
}

// UnmarshalJSON decodes a label from its code
func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
