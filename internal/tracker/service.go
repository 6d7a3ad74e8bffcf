package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yegors/flightboard/internal/board"
	"github.com/yegors/flightboard/internal/feed"
	"github.com/yegors/flightboard/internal/flight"
	"github.com/yegors/flightboard/internal/geo"
	"github.com/yegors/flightboard/internal/metrics"
	"github.com/yegors/flightboard/internal/routes"
	"github.com/yegors/flightboard/internal/websocket"
	"github.com/yegors/flightboard/pkg/logger"
)

// Fetcher returns the current aircraft reports from the feed
type Fetcher interface {
	Fetch(ctx context.Context) (*feed.Frame, error)
}

// BoardStore mirrors the latest board outside the process
type BoardStore interface {
	ReplaceAll(ctx context.Context, entries []board.Entry, at time.Time) error
	GetAll(ctx context.Context) ([]board.Entry, time.Time, error)
}

// WebSocketServer defines the interface for a WebSocket server
type WebSocketServer interface {
	Broadcast(message *websocket.Message) bool
}

// Option configures optional collaborators of the Service
type Option func(*Service)

// WithPrinter prints each cycle's board
func WithPrinter(p *board.Printer) Option {
	return func(s *Service) { s.printer = p }
}

// WithStore mirrors each cycle's board into store
func WithStore(store BoardStore) Option {
	return func(s *Service) { s.store = store }
}

// WithWebSocket broadcasts each cycle's board
func WithWebSocket(ws WebSocketServer) Option {
	return func(s *Service) { s.wsServer = ws }
}

// WithMetrics records cycle metrics
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStationElevation sets the elevation used for magnetic bearings
func WithStationElevation(feet float64) Option {
	return func(s *Service) { s.stationElevFeet = feet }
}

// Service polls the feed, evaluates every routed flight and publishes the board
type Service struct {
	fetcher   Fetcher
	routes    routes.Table
	resolver  *routes.Resolver
	evaluator *flight.Evaluator
	board     *board.Board

	printer  *board.Printer
	store    BoardStore
	wsServer WebSocketServer
	metrics  *metrics.Collector

	fetchInterval   time.Duration
	stationElevFeet float64
	logger          *logger.Logger
	now             func() time.Time

	lastFetchTime   time.Time
	lastFetchStatus bool
	mu              sync.RWMutex

	cancel   context.CancelFunc // aborts the in-flight cycle on Stop
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a new tracker service
func NewService(
	fetcher Fetcher,
	table routes.Table,
	resolver *routes.Resolver,
	evaluator *flight.Evaluator,
	b *board.Board,
	fetchInterval time.Duration,
	log *logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		fetcher:       fetcher,
		routes:        table,
		resolver:      resolver,
		evaluator:     evaluator,
		board:         b,
		fetchInterval: fetchInterval,
		logger:        log.Named("tracker"),
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Board returns the board the service publishes to
func (s *Service) Board() *board.Board {
	return s.board
}

// Station returns the reference station
func (s *Service) Station() routes.Station {
	return s.resolver.Station()
}

// Start restores the stored board, runs the first cycle and starts the poll loop
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting tracker service",
		logger.Duration("fetch_interval", s.fetchInterval),
		logger.Int("routes", len(s.routes)),
	)

	s.restore(ctx)

	// Initial fetch
	if err := s.fetchAndProcess(ctx); err != nil {
		s.logger.Error("Failed to fetch initial feed data", logger.Error(err))
		s.setFetchStatus(false)
	} else {
		s.setFetchStatus(true)
	}

	// Start background fetching
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.fetchLoop(loopCtx)

	return nil
}

// Stop stops the poll loop, cancelling any in-flight fetch
func (s *Service) Stop() {
	s.logger.Info("Stopping tracker service")
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
	s.logger.Info("Tracker service stopped")
}

// fetchLoop runs a cycle every fetchInterval
func (s *Service) fetchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.fetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.fetchAndProcess(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("Failed to fetch feed data", logger.Error(err))
				s.setFetchStatus(false)
			} else {
				s.setFetchStatus(true)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// restore seeds an empty board from the store
func (s *Service) restore(ctx context.Context) {
	if s.store == nil || s.board.Len() > 0 {
		return
	}
	entries, at, err := s.store.GetAll(ctx)
	if err != nil {
		s.logger.Warn("Failed to restore stored board", logger.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}
	s.board.Replace(entries, at)
	s.metrics.SetTracked(len(entries))
	s.logger.Info("Restored stored board",
		logger.Int("flights", len(entries)),
		logger.Time("updated_at", at))
}

// routed is an evaluator input plus the route metadata it was built from
type routed struct {
	hex   string
	route routes.Route
}

// fetchAndProcess runs one poll cycle
func (s *Service) fetchAndProcess(ctx context.Context) error {
	start := s.now()
	frame, err := s.fetcher.Fetch(ctx)
	s.metrics.ObserveFetch(err, s.now().Sub(start))
	if err != nil {
		return err
	}

	inputs, meta := s.prepare(frame.Reports)
	results := s.evaluator.EvaluateBatch(ctx, inputs)
	if err := ctx.Err(); err != nil {
		// Keep the previous board rather than publish a partial cycle
		return err
	}

	at := frame.FetchedAt
	if at.IsZero() {
		at = s.now().UTC()
	}
	station := s.resolver.Station()

	entries := make([]board.Entry, 0, len(results))
	for i, res := range results {
		failed := res.Err != nil
		if failed {
			s.logger.Warn("Flight evaluation failed",
				logger.String("callsign", res.FlightID),
				logger.Error(res.Err))
		}
		s.metrics.ObserveEvaluation(res.Direction, res.Phase, failed)

		route := meta[i].route
		entry := board.Entry{
			Callsign:       res.FlightID,
			Hex:            meta[i].hex,
			Phase:          res.Phase,
			PhaseDisplay:   res.Phase.Display(),
			Direction:      res.Direction,
			DirectionLabel: s.resolver.DirectionLabel(route, res.Direction),
			Origin:         route.Origin,
			Destination:    route.Destination,
			DistanceNM:     res.DistanceNM,
			Position:       res.Position,
			UpdatedAt:      at,
		}
		if bearing, err := geo.MagneticBearing(station.Position, res.Position, s.stationElevFeet, at); err == nil {
			entry.BearingMag = &bearing
		}
		entries = append(entries, entry)
	}

	s.board.Replace(entries, at)
	s.metrics.SetTracked(len(entries))
	snapshot := s.board.All()

	if s.printer != nil {
		if err := s.printer.Print(snapshot); err != nil {
			s.logger.Warn("Failed to print board", logger.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.ReplaceAll(ctx, snapshot, at); err != nil {
			s.logger.Error("Failed to store board", logger.Error(err))
		}
	}

	if s.wsServer != nil {
		s.wsServer.Broadcast(BoardMessage(snapshot, at))
	}

	s.logger.Debug("Cycle complete",
		logger.Int("reports", len(frame.Reports)),
		logger.Int("flights", len(entries)),
		logger.Duration("took", s.now().Sub(start)))

	return nil
}

// prepare joins feed reports with the route table. Reports that cannot be
// evaluated are dropped and counted by reason.
func (s *Service) prepare(reports []feed.Report) ([]flight.Input, []routed) {
	inputs := make([]flight.Input, 0, len(reports))
	meta := make([]routed, 0, len(reports))
	seen := make(map[string]bool, len(reports))

	for _, r := range reports {
		if r.Callsign == "" {
			s.skip(metrics.SkipNoCallsign, r)
			continue
		}
		if seen[r.Callsign] {
			s.logger.Debug("Duplicate callsign in frame", logger.String("callsign", r.Callsign))
			continue
		}
		if r.Position == nil || !r.Position.Valid() {
			s.skip(metrics.SkipNoPosition, r)
			continue
		}
		route, ok := s.routes.Lookup(r.Callsign)
		if !ok {
			s.skip(metrics.SkipNoRoute, r)
			continue
		}
		direction, ok := s.resolver.Direction(route)
		if !ok {
			s.skip(metrics.SkipIncompleteRoute, r)
			continue
		}

		seen[r.Callsign] = true
		inputs = append(inputs, flight.Input{
			FlightID:  r.Callsign,
			Snapshot:  r.Snapshot,
			Position:  *r.Position,
			Direction: direction,
		})
		meta = append(meta, routed{hex: r.Hex, route: route})
	}

	return inputs, meta
}

func (s *Service) skip(reason string, r feed.Report) {
	s.metrics.Skipped(reason)
	s.logger.Debug("Skipping report",
		logger.String("reason", reason),
		logger.String("callsign", r.Callsign),
		logger.String("hex", r.Hex))
}

// GetStatus returns the time and outcome of the last poll
func (s *Service) GetStatus() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetchTime, s.lastFetchStatus
}

func (s *Service) setFetchStatus(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetchTime = s.now()
	s.lastFetchStatus = ok
}

// HandleMessage answers board requests from WebSocket clients
func (s *Service) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeBoardRequest:
		view := s.board.View(nil, nil)
		if !client.SendMessage(BoardMessage(view.Entries, view.UpdatedAt)) {
			return errors.New("client send buffer full")
		}
		return nil
	default:
		s.logger.Debug("Ignoring WebSocket message", logger.String("type", messageType))
		return nil
	}
}

// BoardMessage builds the board_update message for a board snapshot
func BoardMessage(entries []board.Entry, at time.Time) *websocket.Message {
	return &websocket.Message{
		Type: websocket.MessageTypeBoardUpdate,
		Data: map[string]any{
			"timestamp": at,
			"count":     len(entries),
			"flights":   entries,
		},
	}
}
