package phase

/*
FLIGHT PHASE CLASSIFICATION
===========================

A flight's phase is derived from a single kinematic snapshot and the direction
of its route relative to the station airport. There is no memory of earlier
phases: the same snapshot and direction always yield the same label.

INBOUND (station is the destination), first match wins:
   1. -300 <= vs <= 300                 EN ROUTE
   2. gs == 0 and on ground             ARRIVED AT THE GATE
   3. alt >= 10000 and gs > 0           ARRIVING
   4. 4000 <= alt < 10000 and gs > 0    APPROACHING
   5. 0 <= alt < 4000 and gs > 0        LANDING
   6. alt < 0 and gs > 30               LANDED
   7. alt < 0 and gs <= 30              MISSED APPROACH
   8. gs <= 30                          TAXI TO THE GATE

OUTBOUND (station is the origin), first match wins:
   1. gs <= 30                          TAXI TO THE RUNWAY
   2. vs >= 300                         DEPARTING
   3. -300 <= vs <= 300                 CRUISING TO DESTINATION

Anything else is UNKNOWN. The level-flight band is tested before all other
inbound rules, so an inbound aircraft at cruise altitude with a small vertical
speed is EN ROUTE, not ARRIVING.

Vertical speed and altitude are required; without either the result is UNKNOWN.
A missing ground speed fails every ground-speed comparison, and a missing
ground flag counts as airborne.
*/

// Thresholds used by the rule sets
const (
	LevelBandFPM     = 300.0   // |vertical speed| at or below this counts as level flight
	ClimbRateFPM     = 300.0   // vertical speed at or above this counts as a climb
	ArrivingAltFt    = 10000.0 // inbound aircraft at or above this are arriving
	ApproachAltFt    = 4000.0  // inbound aircraft between this and ArrivingAltFt are approaching
	TaxiMaxSpeedKts  = 30.0    // ground speed at or below this counts as taxi speed
	GroundAltitudeFt = 0.0     // altitudes below this are treated as on the runway
)

// Snapshot is the instantaneous kinematic state of one flight.
// A nil field means the feed did not report it.
type Snapshot struct {
	VerticalSpeed *float64 `json:"vertical_speed,omitempty"` // feet per minute
	Altitude      *float64 `json:"altitude,omitempty"`       // feet
	GroundSpeed   *float64 `json:"ground_speed,omitempty"`   // knots
	OnGround      *bool    `json:"on_ground,omitempty"`
}

// Float returns a pointer to v, for building snapshots
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v, for building snapshots
func Bool(v bool) *bool {
	return &v
}

// speed wraps an optional ground speed so that every comparison against a
// missing value is false
type speed struct {
	kts   float64
	known bool
}

func (s speed) eq(v float64) bool { return s.known && s.kts == v }
func (s speed) gt(v float64) bool { return s.known && s.kts > v }
func (s speed) le(v float64) bool { return s.known && s.kts <= v }

// Classify maps a snapshot and route direction to a phase label. It never fails;
// combinations that match no rule resolve to Indeterminate.
func Classify(s Snapshot, d Direction) Label {
	if s.VerticalSpeed == nil || s.Altitude == nil {
		return Indeterminate
	}

	vs := *s.VerticalSpeed
	alt := *s.Altitude
	gs := speed{}
	if s.GroundSpeed != nil {
		gs = speed{kts: *s.GroundSpeed, known: true}
	}
	onGround := s.OnGround != nil && *s.OnGround

	switch d {
	case Inbound:
		return classifyInbound(vs, alt, gs, onGround)
	case Outbound:
		return classifyOutbound(vs, gs)
	default:
		return Indeterminate
	}
}

func classifyInbound(vs, alt float64, gs speed, onGround bool) Label {
	switch {
	case levelFlight(vs):
		return EnRoute
	case gs.eq(0) && onGround:
		return ArrivedAtGate
	case alt >= ArrivingAltFt && gs.gt(0):
		return Arriving
	case alt >= ApproachAltFt && alt < ArrivingAltFt && gs.gt(0):
		return Approaching
	case alt >= GroundAltitudeFt && alt < ApproachAltFt && gs.gt(0):
		return Landing
	case alt < GroundAltitudeFt && gs.gt(TaxiMaxSpeedKts):
		return Landed
	case alt < GroundAltitudeFt && gs.le(TaxiMaxSpeedKts):
		return MissedApproach
	case gs.le(TaxiMaxSpeedKts):
		return TaxiToGate
	default:
		return Indeterminate
	}
}

func classifyOutbound(vs float64, gs speed) Label {
	switch {
	case gs.le(TaxiMaxSpeedKts):
		return TaxiToRunway
	case vs >= ClimbRateFPM:
		return Departing
	case levelFlight(vs):
		return Cruising
	default:
		return Indeterminate
	}
}

func levelFlight(vs float64) bool {
	return vs >= -LevelBandFPM && vs <= LevelBandFPM
}
