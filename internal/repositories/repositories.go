// package repositories provides the persistence layer over SQLite.
//
// Each repository owns one aggregate (users, playlists with their songs and
// shares, connections, jobs with their per-song progress, notifications) and
// handles CRUD, soft deletes, and sequence generation.
package repositories

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NextSequence atomically increments and returns the next sequence number for
// the given table.
//
// Sequence numbers provide human-readable ordering for entities. They are not
// exposed over the API but used internally for sorting and debugging.
func NextSequence(db *sqlx.DB, table string) (int, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	if _, err := tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	if err := tx.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}
