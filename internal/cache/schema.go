package cache

// SchemaVersion is the compiled-in schema version. Open refuses to work
// with a database whose SCHEMA_VERSION row does not match this value.
const SchemaVersion = 1

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS SCHEMA_VERSION (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS WITNESSES (
    row_id   INTEGER PRIMARY KEY AUTOINCREMENT,
    witness  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS VARIATION_UNITS (
    row_id         INTEGER PRIMARY KEY AUTOINCREMENT,
    variation_unit TEXT NOT NULL UNIQUE,
    label          TEXT NOT NULL DEFAULT '',
    connectivity   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS READINGS (
    row_id         INTEGER PRIMARY KEY AUTOINCREMENT,
    variation_unit TEXT NOT NULL,
    reading        TEXT NOT NULL,
    UNIQUE(variation_unit, reading)
);
CREATE INDEX IF NOT EXISTS idx_readings_unit ON READINGS(variation_unit, reading);

CREATE TABLE IF NOT EXISTS READING_RELATIONS (
    row_id         INTEGER PRIMARY KEY AUTOINCREMENT,
    variation_unit TEXT NOT NULL,
    prior          TEXT NOT NULL,
    posterior      TEXT NOT NULL,
    weight         REAL NOT NULL,
    unclear        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_relations_unit ON READING_RELATIONS(variation_unit, prior, posterior);

CREATE TABLE IF NOT EXISTS READING_SUPPORT (
    row_id         INTEGER PRIMARY KEY AUTOINCREMENT,
    variation_unit TEXT NOT NULL,
    witness        TEXT NOT NULL,
    reading        TEXT NOT NULL,
    UNIQUE(variation_unit, witness)
);
CREATE INDEX IF NOT EXISTS idx_support_unit ON READING_SUPPORT(variation_unit, witness);

CREATE TABLE IF NOT EXISTS GENEALOGICAL_COMPARISONS (
    row_id       INTEGER PRIMARY KEY AUTOINCREMENT,
    primary_wit  TEXT NOT NULL,
    secondary_wit TEXT NOT NULL,
    extant       BLOB NOT NULL,
    agreements   BLOB NOT NULL,
    prior        BLOB NOT NULL,
    posterior    BLOB NOT NULL,
    norel        BLOB NOT NULL,
    unclear      BLOB NOT NULL,
    explained    BLOB NOT NULL,
    cost         REAL NOT NULL,
    UNIQUE(primary_wit, secondary_wit)
);
CREATE INDEX IF NOT EXISTS idx_comparisons_primary ON GENEALOGICAL_COMPARISONS(primary_wit, secondary_wit);
`
