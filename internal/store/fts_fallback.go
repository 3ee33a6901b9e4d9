//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"

	"github.com/starford/ignite/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on thoughts.content.
	return nil
}

func ftsInsert(_ context.Context, _ *sql.Tx, _ int64, _ string) error { return nil }

func ftsDelete(_ context.Context, _ *sql.Tx, _ int64) error { return nil }

// Search performs a LIKE-based search, newest first.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]models.Thought, error) {
	if limit <= 0 {
		limit = 20
	}
	return db.query(ctx, "search", `
		SELECT id, content, timestamp, synced, last_modified
		FROM thoughts
		WHERE content LIKE ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, "%"+query+"%", limit)
}
