package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/flightboard/internal/api"
	"github.com/yegors/flightboard/internal/board"
	"github.com/yegors/flightboard/internal/config"
	"github.com/yegors/flightboard/internal/feed"
	"github.com/yegors/flightboard/internal/flight"
	"github.com/yegors/flightboard/internal/metrics"
	"github.com/yegors/flightboard/internal/routes"
	"github.com/yegors/flightboard/internal/storage/sqlite"
	"github.com/yegors/flightboard/internal/tracker"
	"github.com/yegors/flightboard/internal/websocket"
	"github.com/yegors/flightboard/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Fatal error", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting flightboard",
		logger.String("version", Version),
		logger.String("station", cfg.Station.AirportCode),
		logger.String("feed", cfg.Feed.SourceType))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table, err := routes.LoadRoutes(cfg.Routes.RoutesDBPath)
	if err != nil {
		return err
	}
	log.Info("Loaded routes", logger.Int("count", len(table)), logger.String("path", cfg.Routes.RoutesDBPath))

	resolver, err := routes.NewResolver(cfg.StationIdentity())
	if err != nil {
		return err
	}

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	client := feed.NewClient(
		cfg.Feed.SourceType,
		cfg.Feed.URL,
		cfg.Feed.APIKey,
		time.Duration(cfg.Feed.RequestTimeoutSeconds)*time.Second,
		log,
	)

	opts := []tracker.Option{
		tracker.WithMetrics(collector),
		tracker.WithStationElevation(float64(cfg.Station.ElevationFeet)),
	}

	if cfg.Console.Enabled {
		opts = append(opts, tracker.WithPrinter(board.NewPrinter(os.Stdout)))
	}

	if cfg.Storage.Type == "sqlite" {
		store, err := sqlite.NewBoardStorage(cfg.Storage.SQLitePath, log)
		if err != nil {
			return fmt.Errorf("failed to initialize board storage: %w", err)
		}
		defer store.Close()
		opts = append(opts, tracker.WithStore(store))
	}

	var wsServer *websocket.Server
	if cfg.WebSocket.Enabled {
		wsServer = websocket.NewServer(log)
		go wsServer.Run(ctx)
		opts = append(opts, tracker.WithWebSocket(wsServer))
	}

	service := tracker.NewService(
		client,
		table,
		resolver,
		flight.NewEvaluator(cfg.StationCoordinate(), flight.WithWorkers(cfg.Evaluator.Workers)),
		board.New(),
		time.Duration(cfg.Feed.FetchIntervalSecs)*time.Second,
		log,
		opts...,
	)
	if wsServer != nil {
		wsServer.SetMessageHandler(service)
	}

	var server *http.Server
	if cfg.Server.Enabled {
		var wsHandler http.HandlerFunc
		if wsServer != nil {
			wsHandler = wsServer.HandleConnection
		}
		router := api.NewRouter(service, collector.Handler(), wsHandler, log)

		server = &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router.Routes(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}

		go func() {
			log.Info("Starting HTTP server", logger.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
			}
		}()
	}

	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down")

	cancel()
	service.Stop()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", logger.Error(err))
		}
	}

	log.Info("Stopped")
	return nil
}
