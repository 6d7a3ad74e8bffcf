package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/flightboard/internal/board"
	"github.com/yegors/flightboard/internal/geo"
	"github.com/yegors/flightboard/internal/phase"
	"github.com/yegors/flightboard/pkg/logger"
	_ "modernc.org/sqlite"
)

// BoardStorage mirrors the latest board into SQLite.
// Each cycle replaces the table contents; no history is kept.
type BoardStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewBoardStorage opens (or creates) the database at dbPath
func NewBoardStorage(dbPath string, log *logger.Logger) (*BoardStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &BoardStorage{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *BoardStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Debug("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS board_entries (
			callsign TEXT PRIMARY KEY,
			hex TEXT,
			phase TEXT NOT NULL,
			direction TEXT NOT NULL,
			direction_label TEXT,
			origin TEXT,
			destination TEXT,
			distance_nm REAL NOT NULL,
			bearing_mag REAL,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create board_entries table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_board_entries_distance ON board_entries(distance_nm)`)
	if err != nil {
		return fmt.Errorf("failed to create board_entries index: %w", err)
	}

	return nil
}

// ReplaceAll swaps the stored board for entries in a single transaction
func (s *BoardStorage) ReplaceAll(ctx context.Context, entries []board.Entry, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM board_entries`); err != nil {
		return fmt.Errorf("failed to clear board: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO board_entries (
			callsign, hex, phase, direction, direction_label, origin, destination,
			distance_nm, bearing_mag, lat, lon, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	stamp := at.UTC().Format(time.RFC3339Nano)
	for _, e := range entries {
		var bearing sql.NullFloat64
		if e.BearingMag != nil {
			bearing = sql.NullFloat64{Float64: *e.BearingMag, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			e.Callsign, e.Hex, e.Phase.Code(), e.Direction.String(), e.DirectionLabel,
			e.Origin, e.Destination, e.DistanceNM, bearing,
			e.Position.Lat, e.Position.Lon, stamp,
		); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.Callsign, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit board: %w", err)
	}

	s.logger.Debug("Board stored", logger.Int("entries", len(entries)))
	return nil
}

// GetAll returns the stored board, nearest first, and the time of the cycle that wrote it
func (s *BoardStorage) GetAll(ctx context.Context) ([]board.Entry, time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT callsign, hex, phase, direction, direction_label, origin, destination,
			distance_nm, bearing_mag, lat, lon, updated_at
		FROM board_entries
		ORDER BY distance_nm ASC
	`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query board: %w", err)
	}
	defer rows.Close()

	var (
		entries []board.Entry
		latest  time.Time
	)
	for rows.Next() {
		var (
			e                  board.Entry
			hex, label, origin sql.NullString
			destination        sql.NullString
			phaseCode, dirCode string
			bearing            sql.NullFloat64
			lat, lon           float64
			stamp              string
		)
		if err := rows.Scan(&e.Callsign, &hex, &phaseCode, &dirCode, &label, &origin, &destination,
			&e.DistanceNM, &bearing, &lat, &lon, &stamp); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan board row: %w", err)
		}

		if e.Phase, err = phase.ParseLabel(phaseCode); err != nil {
			return nil, time.Time{}, fmt.Errorf("row %s: %w", e.Callsign, err)
		}
		if e.Direction, err = phase.ParseDirection(dirCode); err != nil {
			return nil, time.Time{}, fmt.Errorf("row %s: %w", e.Callsign, err)
		}
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, time.Time{}, fmt.Errorf("row %s: invalid updated_at: %w", e.Callsign, err)
		}

		e.Hex = hex.String
		e.PhaseDisplay = e.Phase.Display()
		e.DirectionLabel = label.String
		e.Origin = origin.String
		e.Destination = destination.String
		e.Position = geo.Coordinate{Lat: lat, Lon: lon}
		if bearing.Valid {
			v := bearing.Float64
			e.BearingMag = &v
		}
		if e.UpdatedAt.After(latest) {
			latest = e.UpdatedAt
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to iterate board rows: %w", err)
	}

	return entries, latest, nil
}
