// Package store is the SQLite parcel and zoning catalog the engine reads
// its inputs from.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/ChicagoDave/siteplanner/pkg/geo"
	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

// ErrNotFound is returned when a parcel or zone code is not in the
// catalog.
var ErrNotFound = errors.New("not found in catalog")

const schema = `
CREATE TABLE IF NOT EXISTS zoning (
	zone_code TEXT PRIMARY KEY,
	record    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS parcels (
	id        TEXT PRIMARY KEY,
	zone_code TEXT NOT NULL,
	geometry  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS parcels_zone ON parcels(zone_code);
`

// Store is a parcel/zoning catalog backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the catalog at path. ":memory:" opens a private
// in-memory catalog.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	logger.Debug("catalog opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PutZoning inserts or replaces a zoning record.
func (s *Store) PutZoning(ctx context.Context, rec spec.ZoningRecord) error {
	return putZoning(ctx, s.db, rec)
}

func putZoning(ctx context.Context, db execer, rec spec.ZoningRecord) error {
	if rec.ZoneCode == "" {
		return errors.New("zoning record has no zone code")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding zoning %s: %w", rec.ZoneCode, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO zoning (zone_code, record) VALUES (?, ?)
		 ON CONFLICT(zone_code) DO UPDATE SET record = excluded.record`,
		rec.ZoneCode, string(data))
	if err != nil {
		return fmt.Errorf("storing zoning %s: %w", rec.ZoneCode, err)
	}
	return nil
}

// Zoning returns the record for a zone code.
func (s *Store) Zoning(ctx context.Context, zoneCode string) (spec.ZoningRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM zoning WHERE zone_code = ?`, zoneCode).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return spec.ZoningRecord{}, fmt.Errorf("zone %s: %w", zoneCode, ErrNotFound)
	}
	if err != nil {
		return spec.ZoningRecord{}, fmt.Errorf("reading zone %s: %w", zoneCode, err)
	}
	var rec spec.ZoningRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return spec.ZoningRecord{}, fmt.Errorf("decoding zone %s: %w", zoneCode, err)
	}
	return rec, nil
}

// PutParcel inserts or replaces a parcel. The geometry must decode as
// GeoJSON.
func (s *Store) PutParcel(ctx context.Context, p spec.ParcelDef) error {
	return putParcel(ctx, s.db, p)
}

func putParcel(ctx context.Context, db execer, p spec.ParcelDef) error {
	if p.ID == "" {
		return errors.New("parcel has no id")
	}
	if _, err := geo.Decode(p.Geometry); err != nil {
		return fmt.Errorf("parcel %s: %w", p.ID, err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO parcels (id, zone_code, geometry) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET zone_code = excluded.zone_code, geometry = excluded.geometry`,
		p.ID, p.ZoneCode, string(p.Geometry))
	if err != nil {
		return fmt.Errorf("storing parcel %s: %w", p.ID, err)
	}
	return nil
}

// Parcel returns a parcel by id.
func (s *Store) Parcel(ctx context.Context, id string) (spec.ParcelDef, error) {
	var p spec.ParcelDef
	var geometry string
	err := s.db.QueryRowContext(ctx, `SELECT id, zone_code, geometry FROM parcels WHERE id = ?`, id).
		Scan(&p.ID, &p.ZoneCode, &geometry)
	if errors.Is(err, sql.ErrNoRows) {
		return spec.ParcelDef{}, fmt.Errorf("parcel %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return spec.ParcelDef{}, fmt.Errorf("reading parcel %s: %w", id, err)
	}
	p.Geometry = json.RawMessage(geometry)
	return p, nil
}

// ParcelIDs lists every parcel id in order.
func (s *Store) ParcelIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM parcels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing parcels: %w", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listing parcels: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SelectedParcels loads parcels with their zoning for planning. A parcel
// whose zone is missing from the catalog comes back with nil Zoning so
// the engine reports itself unavailable.
func (s *Store) SelectedParcels(ctx context.Context, ids ...string) ([]siteplan.Parcel, error) {
	out := make([]siteplan.Parcel, 0, len(ids))
	for _, id := range ids {
		def, err := s.Parcel(ctx, id)
		if err != nil {
			return nil, err
		}
		g, err := geo.Decode(def.Geometry)
		if err != nil {
			return nil, fmt.Errorf("parcel %s: %w", id, err)
		}
		sp := siteplan.Parcel{ID: def.ID, Geometry: g}
		rec, err := s.Zoning(ctx, def.ZoneCode)
		switch {
		case err == nil:
			sp.Zoning = &rec
		case errors.Is(err, ErrNotFound):
			s.logger.Warn("parcel zone not in catalog", "parcel", id, "zone", def.ZoneCode)
		default:
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// ImportProject writes a project's zoning and parcels in one
// transaction.
func (s *Store) ImportProject(ctx context.Context, p *spec.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting import: %w", err)
	}
	defer tx.Rollback()

	for code, rec := range p.Zoning {
		rec.ZoneCode = code
		if err := putZoning(ctx, tx, rec); err != nil {
			return err
		}
	}
	for _, parcel := range p.Parcels {
		if err := putParcel(ctx, tx, parcel); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	s.logger.Info("project imported", "project", p.Name, "zones", len(p.Zoning), "parcels", len(p.Parcels))
	return nil
}
