package tracker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightboard/internal/board"
	"github.com/yegors/flightboard/internal/feed"
	"github.com/yegors/flightboard/internal/flight"
	"github.com/yegors/flightboard/internal/geo"
	"github.com/yegors/flightboard/internal/metrics"
	"github.com/yegors/flightboard/internal/phase"
	"github.com/yegors/flightboard/internal/routes"
	"github.com/yegors/flightboard/internal/websocket"
	"github.com/yegors/flightboard/pkg/logger"
)

var (
	dubrovnik = geo.Coordinate{Lat: 42.5614, Lon: 18.2682}
	cycleTime = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
)

type fakeFetcher struct {
	mu     sync.Mutex
	frames []*feed.Frame
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*feed.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.frames) == 0 {
		return &feed.Frame{FetchedAt: cycleTime}, nil
	}
	frame := f.frames[0]
	if len(f.frames) > 1 {
		f.frames = f.frames[1:]
	}
	return frame, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu      sync.Mutex
	entries []board.Entry
	at      time.Time
	writes  int
}

func (f *fakeStore) ReplaceAll(ctx context.Context, entries []board.Entry, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
	f.at = at
	f.writes++
	return nil
}

func (f *fakeStore) GetAll(ctx context.Context) ([]board.Entry, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, f.at, nil
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []*websocket.Message
}

func (f *fakeBroadcaster) Broadcast(m *websocket.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
	return true
}

func sampleFrame() *feed.Frame {
	return &feed.Frame{
		Source:    feed.SourceVirtualRadar,
		FetchedAt: cycleTime,
		Reports: []feed.Report{
			{
				Callsign: "CTN418",
				Position: &geo.Coordinate{Lat: 42.5614, Lon: 19.2682},
				Snapshot: phase.Snapshot{VerticalSpeed: phase.Float(-1100), Altitude: phase.Float(7800), GroundSpeed: phase.Float(240)},
			},
			{
				Callsign: "OU641",
				Hex:      "501c8e",
				Position: &dubrovnik,
				Snapshot: phase.Snapshot{VerticalSpeed: phase.Float(0), Altitude: phase.Float(0), GroundSpeed: phase.Float(12), OnGround: phase.Bool(true)},
			},
			{Callsign: "BAW2726", Position: &geo.Coordinate{Lat: 43, Lon: 17}},
			{Position: &geo.Coordinate{Lat: 43, Lon: 17}},
			{Callsign: "XYZ123", Position: &geo.Coordinate{Lat: 43, Lon: 17}},
			{Callsign: "LOT2713"},
		},
	}
}

func sampleTable() routes.Table {
	return routes.Table{
		"CTN418":  {Origin: "Zagreb", Destination: "Dubrovnik"},
		"OU641":   {Origin: "Dubrovnik", Destination: "Zagreb"},
		"BAW2726": {Destination: "Dubrovnik"},
		"LOT2713": {Origin: "Warsaw", Destination: "Dubrovnik"},
	}
}

func newTestService(t *testing.T, fetcher Fetcher, opts ...Option) *Service {
	t.Helper()
	resolver, err := routes.NewResolver(routes.Station{Code: "LDDU", Name: "Dubrovnik", Position: dubrovnik})
	require.NoError(t, err)

	s := NewService(fetcher, sampleTable(), resolver, flight.NewEvaluator(dubrovnik, flight.WithWorkers(2)),
		board.New(), 20*time.Millisecond, logger.NewNop(), opts...)
	s.now = func() time.Time { return cycleTime }
	return s
}

func TestCyclePublishesBoard(t *testing.T) {
	var out bytes.Buffer
	reg := prometheus.NewRegistry()
	m, err := metrics.NewCollector(reg)
	require.NoError(t, err)
	store := &fakeStore{}
	ws := &fakeBroadcaster{}

	s := newTestService(t, &fakeFetcher{frames: []*feed.Frame{sampleFrame()}},
		WithPrinter(board.NewPrinter(&out)), WithStore(store), WithWebSocket(ws), WithMetrics(m))

	require.NoError(t, s.fetchAndProcess(context.Background()))

	entries := s.Board().All()
	require.Len(t, entries, 2)
	assert.Equal(t, "OU641", entries[0].Callsign)
	assert.Equal(t, phase.TaxiToRunway, entries[0].Phase)
	assert.Equal(t, "501c8e", entries[0].Hex)
	assert.Equal(t, "CTN418", entries[1].Callsign)
	assert.Equal(t, phase.Approaching, entries[1].Phase)
	assert.Equal(t, "Zagreb", entries[1].Origin)
	assert.Equal(t, cycleTime, s.Board().UpdatedAt())

	assert.Equal(t,
		"Data fetched successfully!\n"+
			"OU641, TAXI TO THE RUNWAY, From Dubrovnik, Distance: 0.00 NM\n"+
			"CTN418, APPROACHING, Dubrovnik, Distance: 44.22 NM\n",
		out.String())

	assert.Equal(t, 1, store.writes)
	assert.Len(t, store.entries, 2)

	require.Len(t, ws.messages, 1)
	assert.Equal(t, websocket.MessageTypeBoardUpdate, ws.messages[0].Type)
	assert.Equal(t, 2, ws.messages[0].Data["count"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("inbound", "APPROACHING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("outbound", "TAXI_TO_RUNWAY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedReports.WithLabelValues(metrics.SkipIncompleteRoute)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedReports.WithLabelValues(metrics.SkipNoCallsign)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedReports.WithLabelValues(metrics.SkipNoRoute)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedReports.WithLabelValues(metrics.SkipNoPosition)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TrackedFlights))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("ok")))
}

func TestCycleFetchErrorKeepsBoard(t *testing.T) {
	fetcher := &fakeFetcher{frames: []*feed.Frame{sampleFrame()}}
	s := newTestService(t, fetcher)
	require.NoError(t, s.fetchAndProcess(context.Background()))
	require.Equal(t, 2, s.Board().Len())

	fetcher.err = errors.New("unexpected status code: 502")
	err := s.fetchAndProcess(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, s.Board().Len())
}

func TestCycleCancelledKeepsPreviousBoard(t *testing.T) {
	s := newTestService(t, &fakeFetcher{frames: []*feed.Frame{sampleFrame()}})
	s.Board().Replace([]board.Entry{{Callsign: "EZY8341", Phase: phase.EnRoute}}, cycleTime.Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.fetchAndProcess(ctx), context.Canceled)
	_, ok := s.Board().Get("EZY8341")
	assert.True(t, ok)
}

func TestDuplicateCallsignUsesFirstReport(t *testing.T) {
	frame := sampleFrame()
	frame.Reports = append(frame.Reports, feed.Report{
		Callsign: "CTN418",
		Position: &geo.Coordinate{Lat: 44, Lon: 16},
		Snapshot: phase.Snapshot{VerticalSpeed: phase.Float(0), Altitude: phase.Float(36000), GroundSpeed: phase.Float(450)},
	})
	s := newTestService(t, &fakeFetcher{frames: []*feed.Frame{frame}})

	require.NoError(t, s.fetchAndProcess(context.Background()))
	e, ok := s.Board().Get("CTN418")
	require.True(t, ok)
	assert.Equal(t, phase.Approaching, e.Phase)
}

func TestStartRestoresStoredBoard(t *testing.T) {
	store := &fakeStore{
		entries: []board.Entry{{Callsign: "EZY8341", Phase: phase.EnRoute, DistanceNM: 120}},
		at:      cycleTime.Add(-time.Hour),
	}
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	s := newTestService(t, fetcher, WithStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	_, ok := s.Board().Get("EZY8341")
	assert.True(t, ok)
	_, fetchOK := s.GetStatus()
	assert.False(t, fetchOK)
}

func TestStartAndStop(t *testing.T) {
	fetcher := &fakeFetcher{frames: []*feed.Frame{sampleFrame()}}
	s := newTestService(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	last, ok := s.GetStatus()
	assert.True(t, ok)
	assert.Equal(t, cycleTime, last)

	require.Eventually(t, func() bool { return fetcher.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	calls := fetcher.Calls()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, fetcher.Calls(), "no cycles after Stop")

	assert.NotPanics(t, s.Stop)
}

// blockingFetcher answers the first call and then blocks until its context ends
type blockingFetcher struct {
	calls   int
	mu      sync.Mutex
	blocked chan struct{}
	ctxErr  chan error
}

func (f *blockingFetcher) Fetch(ctx context.Context) (*feed.Frame, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()
	if first {
		return sampleFrame(), nil
	}

	select {
	case f.blocked <- struct{}{}:
	default:
	}
	<-ctx.Done()
	select {
	case f.ctxErr <- ctx.Err():
	default:
	}
	return nil, ctx.Err()
}

func TestStopCancelsInFlightFetch(t *testing.T) {
	fetcher := &blockingFetcher{blocked: make(chan struct{}, 1), ctxErr: make(chan error, 1)}
	s := newTestService(t, fetcher)

	require.NoError(t, s.Start(context.Background()))

	select {
	case <-fetcher.blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop never reached the second fetch")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop waited on the in-flight fetch")
	}
	assert.ErrorIs(t, <-fetcher.ctxErr, context.Canceled)
	assert.Equal(t, 2, s.Board().Len(), "board from the first cycle is kept")
}

func TestBoardMessage(t *testing.T) {
	entries := []board.Entry{{Callsign: "CTN418", Phase: phase.Landing}}
	msg := BoardMessage(entries, cycleTime)

	assert.Equal(t, websocket.MessageTypeBoardUpdate, msg.Type)
	assert.Equal(t, cycleTime, msg.Data["timestamp"])
	assert.Equal(t, 1, msg.Data["count"])
	assert.Equal(t, entries, msg.Data["flights"])
}
