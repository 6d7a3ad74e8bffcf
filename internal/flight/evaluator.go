package flight

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/flightboard/internal/geo"
	"github.com/yegors/flightboard/internal/phase"
)

// DefaultWorkers is the batch concurrency used when none is configured
const DefaultWorkers = 8

// Input is everything needed to evaluate one flight
type Input struct {
	FlightID  string
	Snapshot  phase.Snapshot
	Position  geo.Coordinate
	Direction phase.Direction
}

// Result pairs a flight with its phase and distance to the reference point.
// Err is set only when the evaluation of this flight was abandoned.
type Result struct {
	FlightID   string          `json:"flight_id"`
	Phase      phase.Label     `json:"phase"`
	Direction  phase.Direction `json:"direction"`
	DistanceNM float64         `json:"distance_nm"`
	Position   geo.Coordinate  `json:"position"`
	Err        error           `json:"-"`
}

// Evaluator combines the distance engine and the phase classifier for a fixed reference point
type Evaluator struct {
	reference geo.Coordinate
	workers   int
	classify  func(phase.Snapshot, phase.Direction) phase.Label
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithWorkers bounds the number of flights evaluated concurrently by EvaluateBatch
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEvaluator creates an evaluator measuring distances from reference
func NewEvaluator(reference geo.Coordinate, opts ...Option) *Evaluator {
	e := &Evaluator{
		reference: reference,
		workers:   DefaultWorkers,
		classify:  phase.Classify,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reference returns the reference coordinate
func (e *Evaluator) Reference() geo.Coordinate {
	return e.reference
}

// Evaluate produces the result for one flight
func (e *Evaluator) Evaluate(id string, s phase.Snapshot, pos geo.Coordinate, d phase.Direction) Result {
	return Result{
		FlightID:   id,
		Phase:      e.classify(s, d),
		Direction:  d,
		DistanceNM: geo.Distance(pos, e.reference),
		Position:   pos,
	}
}

// EvaluateBatch evaluates every input independently and returns results in input order.
// A failure in one flight is recorded on its own result and never affects the others.
// Inputs not yet started when ctx is cancelled carry ctx.Err().
func (e *Evaluator) EvaluateBatch(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, len(inputs))

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i := range inputs {
		in := inputs[i]
		if err := ctx.Err(); err != nil {
			results[i] = abandoned(in, err)
			continue
		}
		g.Go(func() error {
			results[i] = e.evaluateIsolated(ctx, in)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Evaluator) evaluateIsolated(ctx context.Context, in Input) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = abandoned(in, fmt.Errorf("evaluation of %s panicked: %v", in.FlightID, r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return abandoned(in, err)
	}
	return e.Evaluate(in.FlightID, in.Snapshot, in.Position, in.Direction)
}

func abandoned(in Input, err error) Result {
	return Result{
		FlightID:  in.FlightID,
		Phase:     phase.Indeterminate,
		Direction: in.Direction,
		Position:  in.Position,
		Err:       err,
	}
}
