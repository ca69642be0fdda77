// Package store persists facility records. SQLite is the production backend;
// Memory serves tests and one-shot tooling.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/facility-names/pkg/facility"
)

// ErrNotFound is returned when a facility id is unknown.
var ErrNotFound = errors.New("facility not found")

const schema = `
CREATE TABLE IF NOT EXISTS facilities (
	facility_id      TEXT PRIMARY KEY,
	country_iso3     TEXT NOT NULL,
	raw_name         TEXT NOT NULL,
	operator_display TEXT NOT NULL DEFAULT '',
	town             TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	primary_type     TEXT NOT NULL DEFAULT '',
	commodities      TEXT NOT NULL DEFAULT '[]',
	aliases          TEXT NOT NULL DEFAULT '[]',
	lat              REAL,
	lon              REAL,
	coord_precision  TEXT NOT NULL DEFAULT '',
	canonical_name   TEXT NOT NULL DEFAULT '',
	slug             TEXT,
	base_slug        TEXT NOT NULL DEFAULT '',
	confidence       REAL NOT NULL DEFAULT 0,
	notes            TEXT NOT NULL DEFAULT '',
	sources          TEXT NOT NULL DEFAULT '[]',
	generated_at     INTEGER,
	updated_at       INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS facilities_slug ON facilities(slug) WHERE slug IS NOT NULL;
CREATE INDEX IF NOT EXISTS facilities_country ON facilities(country_iso3, facility_id);
`

const selectCols = `facility_id, country_iso3, raw_name, operator_display, town, region,
	primary_type, commodities, aliases, lat, lon, coord_precision,
	canonical_name, slug, base_slug, confidence, notes, sources, generated_at`

// SQLite is a facility.Store backed by a single SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ facility.Store = (*SQLite)(nil)

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open facility db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create facilities schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// migrate adds columns missing from databases created by older versions.
func migrate(db *sql.DB) error {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('facilities') WHERE name = 'base_slug'`).Scan(&n); err != nil {
		return fmt.Errorf("inspect facilities schema: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE facilities ADD COLUMN base_slug TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("add base_slug column: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// All returns every facility ordered by country then id.
func (s *SQLite) All(ctx context.Context) ([]facility.Facility, error) {
	return s.query(ctx, `SELECT `+selectCols+` FROM facilities ORDER BY country_iso3, facility_id`)
}

// ByCountry returns the facilities of the given countries ordered by country then id.
func (s *SQLite) ByCountry(ctx context.Context, countries ...string) ([]facility.Facility, error) {
	if len(countries) == 0 {
		return nil, nil
	}
	args := make([]any, len(countries))
	for i, c := range countries {
		args[i] = facility.NormalizeCountry(c)
	}
	q := `SELECT ` + selectCols + ` FROM facilities WHERE country_iso3 IN (?` +
		strings.Repeat(",?", len(countries)-1) + `) ORDER BY country_iso3, facility_id`
	return s.query(ctx, q, args...)
}

// Get returns one facility.
func (s *SQLite) Get(ctx context.Context, id string) (facility.Facility, error) {
	fs, err := s.query(ctx, `SELECT `+selectCols+` FROM facilities WHERE facility_id = ?`, id)
	if err != nil {
		return facility.Facility{}, err
	}
	if len(fs) == 0 {
		return facility.Facility{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return fs[0], nil
}

// BySlug returns the facility owning slug.
func (s *SQLite) BySlug(ctx context.Context, slug string) (facility.Facility, error) {
	fs, err := s.query(ctx, `SELECT `+selectCols+` FROM facilities WHERE slug = ?`, slug)
	if err != nil {
		return facility.Facility{}, err
	}
	if len(fs) == 0 {
		return facility.Facility{}, fmt.Errorf("slug %s: %w", slug, ErrNotFound)
	}
	return fs[0], nil
}

// Upsert inserts or updates the source attributes of the given facilities in a
// single transaction. Derived attributes of existing rows are left untouched.
func (s *SQLite) Upsert(ctx context.Context, fs []facility.Facility) error {
	const q = `INSERT INTO facilities
		(facility_id, country_iso3, raw_name, operator_display, town, region, primary_type,
		 commodities, aliases, lat, lon, coord_precision, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(facility_id) DO UPDATE SET
			country_iso3 = excluded.country_iso3,
			raw_name = excluded.raw_name,
			operator_display = excluded.operator_display,
			town = excluded.town,
			region = excluded.region,
			primary_type = excluded.primary_type,
			commodities = excluded.commodities,
			aliases = excluded.aliases,
			lat = excluded.lat,
			lon = excluded.lon,
			coord_precision = excluded.coord_precision,
			updated_at = excluded.updated_at`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, f := range fs {
		if err := f.Validate(); err != nil {
			return err
		}
		var lat, lon sql.NullFloat64
		var precision string
		if f.Coordinates != nil {
			lat = sql.NullFloat64{Float64: f.Coordinates.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: f.Coordinates.Lon, Valid: true}
			precision = string(f.Coordinates.Precision)
		}
		if _, err := stmt.ExecContext(ctx,
			f.ID, facility.NormalizeCountry(f.CountryISO3), f.RawName, f.OperatorDisplay,
			f.Town, f.Region, f.PrimaryType, encodeList(f.Commodities), encodeList(f.Aliases),
			lat, lon, precision, now,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// ApplyDerived writes derived attributes in one transaction. Slugs of the
// affected rows are cleared first so that two facilities may swap slugs
// without tripping the unique index mid-batch.
func (s *SQLite) ApplyDerived(ctx context.Context, updates []facility.Update) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback()

	clearSlug, err := tx.PrepareContext(ctx, `UPDATE facilities SET slug = NULL WHERE facility_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare clear: %w", err)
	}
	defer clearSlug.Close()
	for _, u := range updates {
		res, err := clearSlug.ExecContext(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("clear slug %s: %w", u.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("apply %s: %w", u.ID, ErrNotFound)
		}
	}

	set, err := tx.PrepareContext(ctx, `UPDATE facilities SET
		canonical_name = ?, slug = ?, base_slug = ?, confidence = ?, notes = ?, sources = ?, generated_at = ?, updated_at = ?
		WHERE facility_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare apply: %w", err)
	}
	defer set.Close()

	now := time.Now().Unix()
	for _, u := range updates {
		var slugVal, genAt any
		if u.Derived.Slug != "" {
			slugVal = u.Derived.Slug
		}
		if !u.Verification.GeneratedAt.IsZero() {
			genAt = u.Verification.GeneratedAt.Unix()
		}
		if _, err := set.ExecContext(ctx,
			u.Derived.CanonicalName, slugVal, u.Derived.BaseSlug, u.Derived.Confidence,
			u.Verification.Notes, encodeList(u.Verification.Sources), genAt, now, u.ID,
		); err != nil {
			return fmt.Errorf("apply %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored facilities.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facilities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count facilities: %w", err)
	}
	return n, nil
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]facility.Facility, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query facilities: %w", err)
	}
	defer rows.Close()

	var out []facility.Facility
	for rows.Next() {
		var (
			f                          facility.Facility
			commodities, aliases, srcs string
			lat, lon                   sql.NullFloat64
			precision                  string
			slugVal                    sql.NullString
			genAt                      sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.CountryISO3, &f.RawName, &f.OperatorDisplay, &f.Town,
			&f.Region, &f.PrimaryType, &commodities, &aliases, &lat, &lon, &precision,
			&f.CanonicalName, &slugVal, &f.BaseSlug, &f.Confidence, &f.Verification.Notes, &srcs, &genAt); err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		f.Commodities = decodeList(commodities)
		f.Aliases = decodeList(aliases)
		f.Verification.Sources = decodeList(srcs)
		if lat.Valid && lon.Valid {
			f.Coordinates = &facility.Coordinates{Lat: lat.Float64, Lon: lon.Float64, Precision: facility.ParsePrecision(precision)}
		}
		f.Slug = slugVal.String
		if genAt.Valid {
			f.Verification.GeneratedAt = time.Unix(genAt.Int64, 0).UTC()
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string) []string {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil || len(v) == 0 {
		return nil
	}
	return v
}
