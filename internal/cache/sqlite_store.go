package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/papapumpkin/cbgm/internal/apparatus"
	"github.com/papapumpkin/cbgm/internal/bitmap"
	"github.com/papapumpkin/cbgm/internal/genealogy"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrSchemaVersion is returned by Open when an existing database's
// SCHEMA_VERSION row does not match the compiled-in SchemaVersion.
var ErrSchemaVersion = errors.New("cache: schema version mismatch")

// SQLiteStore implements Store using a local SQLite database in WAL mode.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath, enables WAL mode and
// a busy timeout, creates the schema if absent, and checks SCHEMA_VERSION.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	// SQLite supports only one writer; a single connection avoids
	// SQLITE_BUSY contention between pooled connections that would each
	// need their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}

	if err := checkOrSetSchemaVersion(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func checkOrSetSchemaVersion(ctx context.Context, db *sql.DB) error {
	var version int
	err := db.QueryRowContext(ctx, "SELECT version FROM SCHEMA_VERSION LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := db.ExecContext(ctx, "INSERT INTO SCHEMA_VERSION (version) VALUES (?)", SchemaVersion); err != nil {
			return fmt.Errorf("cache: initialize schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("%w: database has %d, binary wants %d", ErrSchemaVersion, version, SchemaVersion)
	}
	return nil
}

// WriteApparatus persists the full collation model, replacing any
// previously stored one, in a single transaction.
func (s *SQLiteStore) WriteApparatus(ctx context.Context, app *apparatus.Apparatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin tx for apparatus: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, table := range []string{"WITNESSES", "VARIATION_UNITS", "READINGS", "READING_RELATIONS", "READING_SUPPORT"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("cache: clear %s: %w", table, err)
		}
	}

	witStmt, err := tx.PrepareContext(ctx, "INSERT INTO WITNESSES (witness) VALUES (?)")
	if err != nil {
		return fmt.Errorf("cache: prepare witness insert: %w", err)
	}
	defer witStmt.Close()
	for _, w := range app.Witnesses() {
		if _, err := witStmt.ExecContext(ctx, w); err != nil {
			return fmt.Errorf("cache: insert witness %q: %w", w, err)
		}
	}

	unitStmt, err := tx.PrepareContext(ctx, "INSERT INTO VARIATION_UNITS (variation_unit, label, connectivity) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("cache: prepare unit insert: %w", err)
	}
	defer unitStmt.Close()

	readingStmt, err := tx.PrepareContext(ctx, "INSERT INTO READINGS (variation_unit, reading) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("cache: prepare reading insert: %w", err)
	}
	defer readingStmt.Close()

	relationStmt, err := tx.PrepareContext(ctx, "INSERT INTO READING_RELATIONS (variation_unit, prior, posterior, weight, unclear) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("cache: prepare relation insert: %w", err)
	}
	defer relationStmt.Close()

	supportStmt, err := tx.PrepareContext(ctx, "INSERT INTO READING_SUPPORT (variation_unit, witness, reading) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("cache: prepare support insert: %w", err)
	}
	defer supportStmt.Close()

	for _, u := range app.Units() {
		if _, err := unitStmt.ExecContext(ctx, u.ID, u.Label, u.Connectivity); err != nil {
			return fmt.Errorf("cache: insert unit %q: %w", u.ID, err)
		}
		for _, r := range u.ReadingIDs {
			if _, err := readingStmt.ExecContext(ctx, u.ID, r); err != nil {
				return fmt.Errorf("cache: insert reading %q/%q: %w", u.ID, r, err)
			}
		}
		for _, e := range u.Edges {
			if _, err := relationStmt.ExecContext(ctx, u.ID, e.PriorID, e.PosteriorID, e.Weight, boolToInt(e.Unclear)); err != nil {
				return fmt.Errorf("cache: insert relation %q/%q->%q: %w", u.ID, e.PriorID, e.PosteriorID, err)
			}
		}
		for _, w := range app.Witnesses() {
			if r, ok := app.ReadingAt(w, u.ID); ok {
				if _, err := supportStmt.ExecContext(ctx, u.ID, w, r); err != nil {
					return fmt.Errorf("cache: insert support %q/%q: %w", u.ID, w, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: commit apparatus: %w", err)
	}
	return nil
}

// LoadApparatus reconstructs an Apparatus from the persisted WITNESSES,
// VARIATION_UNITS, READINGS, READING_RELATIONS, and READING_SUPPORT tables.
func (s *SQLiteStore) LoadApparatus(ctx context.Context) (*apparatus.Apparatus, error) {
	witnesses, err := s.Witnesses(ctx)
	if err != nil {
		return nil, err
	}
	units, err := s.VariationUnits(ctx)
	if err != nil {
		return nil, err
	}

	raw := apparatus.RawCollation{WitnessIDs: witnesses}
	for _, u := range units {
		readings, err := s.readingsFor(ctx, u.VariationUnit)
		if err != nil {
			return nil, err
		}
		edges, err := s.relationsFor(ctx, u.VariationUnit)
		if err != nil {
			return nil, err
		}
		support, err := s.supportFor(ctx, u.VariationUnit)
		if err != nil {
			return nil, err
		}

		rawReadings := make([]apparatus.RawReading, len(readings))
		for i, r := range readings {
			rawReadings[i] = apparatus.RawReading{ID: r}
		}

		raw.Units = append(raw.Units, apparatus.RawUnit{
			ID:           u.VariationUnit,
			Label:        u.Label,
			Connectivity: u.Connectivity,
			Readings:     rawReadings,
			Support:      support,
			Edges:        edges,
		})
	}

	app, err := apparatus.Build(raw, apparatus.Options{})
	if err != nil {
		return nil, fmt.Errorf("cache: reconstruct apparatus: %w", err)
	}
	return app, nil
}

func (s *SQLiteStore) readingsFor(ctx context.Context, unitID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT reading FROM READINGS WHERE variation_unit = ? ORDER BY row_id", unitID)
	if err != nil {
		return nil, fmt.Errorf("cache: query readings for %q: %w", unitID, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("cache: scan reading: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) relationsFor(ctx context.Context, unitID string) ([]apparatus.RawEdge, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT prior, posterior, weight, unclear FROM READING_RELATIONS WHERE variation_unit = ? ORDER BY row_id", unitID)
	if err != nil {
		return nil, fmt.Errorf("cache: query relations for %q: %w", unitID, err)
	}
	defer rows.Close()
	var out []apparatus.RawEdge
	for rows.Next() {
		var e apparatus.RawEdge
		var unclear int
		if err := rows.Scan(&e.PriorID, &e.PosteriorID, &e.Weight, &unclear); err != nil {
			return nil, fmt.Errorf("cache: scan relation: %w", err)
		}
		e.Unclear = unclear != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) supportFor(ctx context.Context, unitID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT witness, reading FROM READING_SUPPORT WHERE variation_unit = ?", unitID)
	if err != nil {
		return nil, fmt.Errorf("cache: query support for %q: %w", unitID, err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var w, r string
		if err := rows.Scan(&w, &r); err != nil {
			return nil, fmt.Errorf("cache: scan support: %w", err)
		}
		out[w] = r
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// WriteComparisons persists comparisons, upserting on (primary_wit,
// secondary_wit), in a single transaction.
func (s *SQLiteStore) WriteComparisons(ctx context.Context, comparisons map[string]genealogy.Comparison) error {
	if len(comparisons) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin tx for comparisons: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const q = `
		INSERT INTO GENEALOGICAL_COMPARISONS
			(primary_wit, secondary_wit, extant, agreements, prior, posterior, norel, unclear, explained, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(primary_wit, secondary_wit) DO UPDATE SET
			extant = excluded.extant, agreements = excluded.agreements, prior = excluded.prior,
			posterior = excluded.posterior, norel = excluded.norel, unclear = excluded.unclear,
			explained = excluded.explained, cost = excluded.cost`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("cache: prepare comparison upsert: %w", err)
	}
	defer stmt.Close()

	for secondary, c := range comparisons {
		blobs, err := marshalComparisonBlobs(c)
		if err != nil {
			return fmt.Errorf("cache: marshal comparison %s/%s: %w", c.Primary, secondary, err)
		}
		if _, err := stmt.ExecContext(ctx, c.Primary, secondary,
			blobs.extant, blobs.agreements, blobs.prior, blobs.posterior,
			blobs.norel, blobs.unclear, blobs.explained, c.Cost); err != nil {
			return fmt.Errorf("cache: upsert comparison %s/%s: %w", c.Primary, secondary, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: commit comparisons: %w", err)
	}
	return nil
}

type comparisonBlobs struct {
	extant, agreements, prior, posterior, norel, unclear, explained []byte
}

func marshalComparisonBlobs(c genealogy.Comparison) (comparisonBlobs, error) {
	var b comparisonBlobs
	var err error
	if b.extant, err = c.Extant.MarshalBinary(); err != nil {
		return b, err
	}
	if b.agreements, err = c.Agreements.MarshalBinary(); err != nil {
		return b, err
	}
	if b.prior, err = c.Prior.MarshalBinary(); err != nil {
		return b, err
	}
	if b.posterior, err = c.Posterior.MarshalBinary(); err != nil {
		return b, err
	}
	if b.norel, err = c.Norel.MarshalBinary(); err != nil {
		return b, err
	}
	if b.unclear, err = c.Unclear.MarshalBinary(); err != nil {
		return b, err
	}
	if b.explained, err = c.Explained.MarshalBinary(); err != nil {
		return b, err
	}
	return b, nil
}

// Witnesses returns the persisted witness list in row_id order.
func (s *SQLiteStore) Witnesses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT witness FROM WITNESSES ORDER BY row_id")
	if err != nil {
		return nil, fmt.Errorf("cache: query witnesses: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("cache: scan witness: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// VariationUnits returns the persisted unit summaries in row_id order.
func (s *SQLiteStore) VariationUnits(ctx context.Context) ([]UnitRow, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT variation_unit, label, connectivity FROM VARIATION_UNITS ORDER BY row_id")
	if err != nil {
		return nil, fmt.Errorf("cache: query variation units: %w", err)
	}
	defer rows.Close()

	var out []UnitRow
	for rows.Next() {
		var u UnitRow
		if err := rows.Scan(&u.VariationUnit, &u.Label, &u.Connectivity); err != nil {
			return nil, fmt.Errorf("cache: scan variation unit: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Comparison returns the persisted comparison for (primary, secondary).
func (s *SQLiteStore) Comparison(ctx context.Context, primary, secondary string) (genealogy.Comparison, bool, error) {
	const q = `SELECT extant, agreements, prior, posterior, norel, unclear, explained, cost
		FROM GENEALOGICAL_COMPARISONS WHERE primary_wit = ? AND secondary_wit = ?`
	row := s.db.QueryRowContext(ctx, q, primary, secondary)
	c, err := scanComparison(row, primary, secondary)
	if errors.Is(err, sql.ErrNoRows) {
		return genealogy.Comparison{}, false, nil
	}
	if err != nil {
		return genealogy.Comparison{}, false, fmt.Errorf("cache: comparison %s/%s: %w", primary, secondary, err)
	}
	return c, true, nil
}

// ComparisonsFor returns every persisted comparison with the given primary
// witness, keyed by secondary witness ID. Rows are read in ROW_ID order
// (the original_source optimizer's `ORDER BY ROW_ID` query shape), but the
// returned map carries no order.
func (s *SQLiteStore) ComparisonsFor(ctx context.Context, primary string) (map[string]genealogy.Comparison, error) {
	const q = `SELECT secondary_wit, extant, agreements, prior, posterior, norel, unclear, explained, cost
		FROM GENEALOGICAL_COMPARISONS WHERE primary_wit = ? ORDER BY row_id`
	rows, err := s.db.QueryContext(ctx, q, primary)
	if err != nil {
		return nil, fmt.Errorf("cache: query comparisons for %q: %w", primary, err)
	}
	defer rows.Close()

	out := make(map[string]genealogy.Comparison)
	for rows.Next() {
		var secondary string
		var extantB, agreeB, priorB, postB, norelB, unclearB, explB []byte
		var cost float64
		if err := rows.Scan(&secondary, &extantB, &agreeB, &priorB, &postB, &norelB, &unclearB, &explB, &cost); err != nil {
			return nil, fmt.Errorf("cache: scan comparison row: %w", err)
		}
		c, err := unmarshalComparison(primary, secondary, extantB, agreeB, priorB, postB, norelB, unclearB, explB, cost)
		if err != nil {
			return nil, fmt.Errorf("cache: unmarshal comparison %s/%s: %w", primary, secondary, err)
		}
		out[secondary] = c
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComparison(row rowScanner, primary, secondary string) (genealogy.Comparison, error) {
	var extantB, agreeB, priorB, postB, norelB, unclearB, explB []byte
	var cost float64
	if err := row.Scan(&extantB, &agreeB, &priorB, &postB, &norelB, &unclearB, &explB, &cost); err != nil {
		return genealogy.Comparison{}, err
	}
	return unmarshalComparison(primary, secondary, extantB, agreeB, priorB, postB, norelB, unclearB, explB, cost)
}

func unmarshalComparison(primary, secondary string, extantB, agreeB, priorB, postB, norelB, unclearB, explB []byte, cost float64) (genealogy.Comparison, error) {
	c := genealogy.Comparison{Primary: primary, Secondary: secondary, Cost: cost}
	fields := []struct {
		dst  **bitmap.Bitmap
		data []byte
	}{
		{&c.Extant, extantB},
		{&c.Agreements, agreeB},
		{&c.Prior, priorB},
		{&c.Posterior, postB},
		{&c.Norel, norelB},
		{&c.Unclear, unclearB},
		{&c.Explained, explB},
	}
	for _, f := range fields {
		bm := bitmap.New()
		if err := bm.UnmarshalBinary(f.data); err != nil {
			return genealogy.Comparison{}, err
		}
		*f.dst = bm
	}
	return c, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
