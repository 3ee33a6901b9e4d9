//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/ignite/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS thoughts_fts USING fts5(
			id UNINDEXED,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(ctx context.Context, tx *sql.Tx, id int64, content string) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO thoughts_fts (id, content) VALUES (?, ?)`, id, content); err != nil {
		return fmt.Errorf("insert fts %d: %w", id, err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM thoughts_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete fts %d: %w", id, err)
	}
	return nil
}

// Search performs an FTS5 full-text search ranked by relevance.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]models.Thought, error) {
	if limit <= 0 {
		limit = 20
	}
	return db.query(ctx, "search", `
		SELECT t.id, t.content, t.timestamp, t.synced, t.last_modified
		FROM thoughts_fts f
		JOIN thoughts t ON t.id = f.id
		WHERE thoughts_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
}
