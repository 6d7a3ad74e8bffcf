package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/yegors/flightboard/internal/geo"
	"github.com/yegors/flightboard/internal/routes"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server    ServerConfig    `toml:"server"`    // HTTP server settings
	Station   StationConfig   `toml:"station"`   // Reference airport settings
	Feed      FeedConfig      `toml:"feed"`      // Live aircraft feed settings
	Routes    RoutesConfig    `toml:"routes"`    // Route assignment table settings
	Evaluator EvaluatorConfig `toml:"evaluator"` // Per-cycle evaluation settings
	Storage   StorageConfig   `toml:"storage"`   // Latest board storage settings
	Console   ConsoleConfig   `toml:"console"`   // Line-oriented readout settings
	WebSocket WebSocketConfig `toml:"websocket"` // Board streaming settings
	Logging   LoggingConfig   `toml:"logging"`   // Application logging settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Enabled          bool   `toml:"enabled"`               // Serve the JSON API, /metrics and /ws
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	Port             int    `toml:"port"`                  // HTTP port for the server
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// StationConfig contains the reference airport that distances and directions are measured against
type StationConfig struct {
	AirportCode    string  `toml:"airport_code"`     // ICAO code of the airport (e.g., "LDDU")
	Name           string  `toml:"name"`             // Airport name as used in the routes table (e.g., "Dubrovnik"); looked up from airports_db_path when empty
	Latitude       float64 `toml:"latitude"`         // Latitude of the airport reference point in decimal degrees
	Longitude      float64 `toml:"longitude"`        // Longitude of the airport reference point in decimal degrees
	ElevationFeet  int     `toml:"elevation_feet"`   // Elevation of the airport in feet, used for magnetic bearings
	AirportsDBPath string  `toml:"airports_db_path"` // Path to a two-column ICAO,name CSV file (optional)
}

// FeedConfig contains live aircraft feed configuration
type FeedConfig struct {
	// Source selection
	// Allowed values:
	// - "virtualradar": Virtual Radar Server AircraftList.json
	// - "readsb": readsb / dump1090 / tar1090 aircraft.json
	SourceType            string `toml:"source_type"`
	URL                   string `toml:"url"`                     // Feed URL
	APIKey                string `toml:"api_key"`                 // Optional API key sent as the "api-auth" header
	FetchIntervalSecs     int    `toml:"fetch_interval_seconds"`  // Delay between poll cycles (in seconds, default: 10)
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP timeout for one feed request (default: 10)
}

// RoutesConfig contains the route assignment table location
type RoutesConfig struct {
	RoutesDBPath string `toml:"routes_db_path"` // Path to the callsign,route CSV file (first row is a header)
}

// EvaluatorConfig contains per-cycle evaluation settings
type EvaluatorConfig struct {
	Workers int `toml:"workers"` // Maximum number of flights evaluated concurrently (default: 8)
}

// StorageConfig contains latest-board storage configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // "memory" (default) or "sqlite"
	SQLitePath string `toml:"sqlite_path"` // Database file used when type = "sqlite"; only the latest cycle is kept
}

// ConsoleConfig contains settings for the line-oriented readout
type ConsoleConfig struct {
	Enabled bool `toml:"enabled"` // Print one line per flight each cycle to stdout
}

// WebSocketConfig contains settings for board streaming
type WebSocketConfig struct {
	Enabled bool `toml:"enabled"` // Broadcast each cycle's board on /ws
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional log file, rotated by size
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate the log file after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Number of rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
	Compress   bool   `toml:"compress"`     // Gzip rotated files
}

// Default returns a configuration with every default applied
func Default() *Config {
	c := &Config{
		Server:  ServerConfig{Enabled: true},
		Console: ConsoleConfig{Enabled: true},
	}
	c.applyDefaults()
	return c
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(string(data))
}

// Parse decodes a TOML document on top of the defaults
func Parse(data string) (*Config, error) {
	config := Default()

	if _, err := toml.Decode(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	config.applyDefaults()

	// Resolve the station name from the airports table
	if err := config.loadStationName(); err != nil {
		return nil, fmt.Errorf("failed to load station details: %w", err)
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}
	if c.Feed.SourceType == "" {
		c.Feed.SourceType = "virtualradar"
	}
	if c.Feed.FetchIntervalSecs == 0 {
		c.Feed.FetchIntervalSecs = 10
	}
	if c.Feed.RequestTimeoutSeconds == 0 {
		c.Feed.RequestTimeoutSeconds = 10
	}
	if c.Evaluator.Workers == 0 {
		c.Evaluator.Workers = 8
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 32
	}
}

// loadStationName fills in the station name from the airports table when it is not configured
func (c *Config) loadStationName() error {
	if c.Station.Name != "" || c.Station.AirportsDBPath == "" {
		return nil
	}
	if c.Station.AirportCode == "" {
		return fmt.Errorf("airport_code is required to look up the station name")
	}

	airports, err := routes.LoadAirports(c.Station.AirportsDBPath)
	if err != nil {
		return err
	}

	name, ok := airports.Name(c.Station.AirportCode)
	if !ok {
		return fmt.Errorf("airport code %s not found in %s", c.Station.AirportCode, c.Station.AirportsDBPath)
	}
	c.Station.Name = name

	return nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate station config
	if c.Station.AirportCode == "" && c.Station.Name == "" {
		return fmt.Errorf("station.airport_code or station.name is required")
	}
	if !c.StationCoordinate().Valid() {
		return fmt.Errorf("invalid station coordinates: %s", c.StationCoordinate())
	}

	// Validate feed config
	switch c.Feed.SourceType {
	case "virtualradar", "readsb":
	default:
		return fmt.Errorf("invalid feed.source_type: %q (must be \"virtualradar\" or \"readsb\")", c.Feed.SourceType)
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Feed.FetchIntervalSecs < 1 {
		return fmt.Errorf("invalid fetch_interval_seconds: %d (must be >= 1)", c.Feed.FetchIntervalSecs)
	}
	if c.Feed.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("invalid request_timeout_seconds: %d (must be >= 1)", c.Feed.RequestTimeoutSeconds)
	}

	// Validate routes config
	if c.Routes.RoutesDBPath == "" {
		return fmt.Errorf("routes.routes_db_path is required")
	}

	if c.Evaluator.Workers < 1 {
		return fmt.Errorf("invalid evaluator.workers: %d (must be >= 1)", c.Evaluator.Workers)
	}

	// Validate storage config
	switch c.Storage.Type {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required when storage.type = \"sqlite\"")
		}
	default:
		return fmt.Errorf("invalid storage.type: %q (must be \"memory\" or \"sqlite\")", c.Storage.Type)
	}

	// Validate server config
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.WebSocket.Enabled && !c.Server.Enabled {
		return fmt.Errorf("websocket.enabled requires server.enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	return nil
}

// StationCoordinate returns the configured reference point
func (c *Config) StationCoordinate() geo.Coordinate {
	return geo.Coordinate{Lat: c.Station.Latitude, Lon: c.Station.Longitude}
}

// StationIdentity returns the station as used by route resolution
func (c *Config) StationIdentity() routes.Station {
	return routes.Station{
		Code:     strings.ToUpper(c.Station.AirportCode),
		Name:     c.Station.Name,
		Position: c.StationCoordinate(),
	}
}
