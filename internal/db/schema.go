package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// A location's occupant is not stored on the location: it is the copybook
// whose location_id points at it. The partial unique index keeps a slot to
// at most one copy.
const schema = `
CREATE TABLE IF NOT EXISTS employees (
    id   INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    employee_id   INTEGER REFERENCES employees(id),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS readers (
    id   INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS editions (
    id    INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    isbn  TEXT,
    year  INTEGER
);

CREATE TABLE IF NOT EXISTS edition_covers (
    edition_id INTEGER PRIMARY KEY REFERENCES editions(id) ON DELETE CASCADE,
    data       BLOB NOT NULL,
    mime       TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cabinets (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT
);

CREATE TABLE IF NOT EXISTS shelves (
    id         INTEGER PRIMARY KEY,
    code       TEXT NOT NULL,
    cabinet_id INTEGER NOT NULL REFERENCES cabinets(id)
);

CREATE TABLE IF NOT EXISTS locations (
    id       INTEGER PRIMARY KEY,
    shelf_id INTEGER NOT NULL REFERENCES shelves(id)
);

CREATE INDEX IF NOT EXISTS idx_locations_shelf ON locations(shelf_id);

CREATE TABLE IF NOT EXISTS copybooks (
    id          INTEGER PRIMARY KEY,
    edition_id  INTEGER NOT NULL REFERENCES editions(id),
    status      TEXT NOT NULL DEFAULT 'available',
    location_id INTEGER REFERENCES locations(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_copybooks_location
    ON copybooks(location_id) WHERE location_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS lendings (
    id                  INTEGER PRIMARY KEY,
    reader_id           INTEGER NOT NULL REFERENCES readers(id),
    employee_id         INTEGER NOT NULL REFERENCES employees(id),
    date_lending        TEXT NOT NULL,
    date_return_planned TEXT NOT NULL,
    date_return         TEXT,
    CHECK (date_return_planned >= date_lending),
    CHECK (date_return IS NULL OR date_return >= date_lending)
);

CREATE TABLE IF NOT EXISTS lending_items (
    lending_id  INTEGER NOT NULL REFERENCES lendings(id),
    copybook_id INTEGER NOT NULL REFERENCES copybooks(id),
    PRIMARY KEY (lending_id, copybook_id)
);

CREATE INDEX IF NOT EXISTS idx_lending_items_copybook ON lending_items(copybook_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
