package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// schemaVersion tracks the on-disk schema shape. Bump it, and add a
// migration, whenever the table layout below changes incompatibly.
const schemaVersion = "1.0.0"

const migrationUp = `
CREATE TABLE IF NOT EXISTS schema_meta (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	version TEXT NOT NULL,
	dimension INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	content TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	chunk_type TEXT NOT NULL,
	vector BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);
`

// applyMigrations creates the schema if absent and checks the stored
// schema version against schemaVersion using semantic version comparison,
// so an old on-disk database from an incompatible schema major version
// fails loudly at open instead of being read as if it matched.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, migrationUp); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	row := db.QueryRowContext(ctx, `SELECT version FROM schema_meta WHERE id = 0`)
	var stored string
	switch err := row.Scan(&stored); err {
	case sql.ErrNoRows:
		return nil // dimension/version row is written by the first open/create
	case nil:
		return checkVersionCompatible(stored)
	default:
		return fmt.Errorf("read schema_meta: %w", err)
	}
}

func checkVersionCompatible(stored string) error {
	storedVer, err := semver.NewVersion(stored)
	if err != nil {
		return fmt.Errorf("%w: unparseable stored schema version %q", ErrOpen, stored)
	}
	currentVer := semver.MustParse(schemaVersion)
	if storedVer.Major() != currentVer.Major() {
		return fmt.Errorf("%w: schema version %s is incompatible with %s", ErrOpen, stored, schemaVersion)
	}
	return nil
}
