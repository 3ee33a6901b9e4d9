package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/ignite/internal/apperr"
	"github.com/starford/ignite/internal/models"
)

// Action describes how a remote thought was absorbed by UpsertFromRemote.
type Action string

const (
	ActionAdopted   Action = "adopted"   // no local record at the key; remote inserted
	ActionMarked    Action = "marked"    // same content locally; flipped to synced
	ActionUnchanged Action = "unchanged" // same content, already synced
	ActionRelocated Action = "relocated" // collision; local moved to a later key
)

// Outcome reports the effect of UpsertFromRemote on one key.
type Outcome struct {
	Action Action
	ID     int64
	// RelocatedTo is the new key of the displaced local thought when Action
	// is ActionRelocated.
	RelocatedTo int64
}

const thoughtColumns = `id, content, timestamp, synced, last_modified`

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanThought(row interface{ Scan(...any) error }) (models.Thought, error) {
	var t models.Thought
	var synced int
	if err := row.Scan(&t.ID, &t.Content, &t.Timestamp, &synced, &t.LastModified); err != nil {
		return models.Thought{}, err
	}
	t.SyncedToDrive = synced != 0
	return t, nil
}

func getThought(ctx context.Context, q rowQueryer, id int64) (*models.Thought, error) {
	t, err := scanThought(q.QueryRowContext(ctx, `SELECT `+thoughtColumns+` FROM thoughts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nextFreeID returns the first key >= from that holds no record.
func nextFreeID(ctx context.Context, tx *sql.Tx, from int64) (int64, error) {
	id := from
	for {
		existing, err := getThought(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if existing == nil {
			return id, nil
		}
		id++
	}
}

// insertThought adds t at its key. The primary key makes this fail if the
// key is already taken, so records are never overwritten in place.
func insertThought(ctx context.Context, tx *sql.Tx, t models.Thought) error {
	synced := 0
	if t.SyncedToDrive {
		synced = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO thoughts (`+thoughtColumns+`) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Content, t.ID, synced, t.LastModified,
	); err != nil {
		return fmt.Errorf("insert thought %d: %w", t.ID, err)
	}
	return ftsInsert(ctx, tx, t.ID, t.Content)
}

func deleteThought(ctx context.Context, tx *sql.Tx, id int64) error {
	if err := ftsDelete(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM thoughts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete thought %d: %w", id, err)
	}
	return nil
}

// inTx runs fn in a write transaction and classifies any failure as a local fault.
func (db *DB) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindLocal, op, fmt.Errorf("store: begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return apperr.Wrap(apperr.KindLocal, op, fmt.Errorf("store: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindLocal, op, fmt.Errorf("store: commit: %w", err))
	}
	return nil
}

// Save stores new content under a fresh key derived from the current
// millisecond, probing forward while the key is taken. The new thought is
// unsynced. Content is normalized to a single line first.
func (db *DB) Save(ctx context.Context, content string) (int64, error) {
	content = models.NormalizeContent(content)
	if content == "" {
		return 0, apperr.ErrEmptyContent
	}
	var id int64
	err := db.inTx(ctx, "save", func(tx *sql.Tx) error {
		free, err := nextFreeID(ctx, tx, db.now().UnixMilli())
		if err != nil {
			return err
		}
		id = free
		return insertThought(ctx, tx, models.Thought{
			ID:           id,
			Content:      content,
			Timestamp:    id,
			LastModified: id,
		})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get returns the thought at id or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id int64) (*models.Thought, error) {
	t, err := getThought(ctx, db.conn, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindLocal, "get", fmt.Errorf("store: get %d: %w", id, err))
	}
	if t == nil {
		return nil, apperr.ErrNotFound
	}
	return t, nil
}

// List returns up to limit thoughts newest first. limit <= 0 returns all.
func (db *DB) List(ctx context.Context, limit int) ([]models.Thought, error) {
	query := `SELECT ` + thoughtColumns + ` FROM thoughts ORDER BY timestamp DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.query(ctx, "list", query, args...)
}

// All returns every thought newest first.
func (db *DB) All(ctx context.Context) ([]models.Thought, error) {
	return db.List(ctx, 0)
}

// Unsynced returns thoughts not yet reflected in the remote file, oldest first.
func (db *DB) Unsynced(ctx context.Context) ([]models.Thought, error) {
	return db.query(ctx, "unsynced",
		`SELECT `+thoughtColumns+` FROM thoughts WHERE synced = 0 ORDER BY timestamp ASC`)
}

// MarkSynced flags id as synced and refreshes last_modified. Absent ids are a no-op.
func (db *DB) MarkSynced(ctx context.Context, id int64) error {
	return db.MarkAllSynced(ctx, []int64{id})
}

// MarkAllSynced flags every id as synced in one transaction.
func (db *DB) MarkAllSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return db.inTx(ctx, "mark synced", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE thoughts SET synced = 1, last_modified = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare mark synced: %w", err)
		}
		defer stmt.Close()
		now := db.now().UnixMilli()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, now, id); err != nil {
				return fmt.Errorf("mark synced %d: %w", id, err)
			}
		}
		return nil
	})
}

// UpsertFromRemote absorbs one remote thought. The remote owns its key:
//   - free key: the remote thought is inserted as synced
//   - same content: the local thought is flipped to synced
//   - different content: the local thought moves to the next free key above
//     its own, unsynced, and the remote thought takes the original key
//
// Each call is one transaction, so the store never holds two records at a
// key and never loses one, and re-applying the same remote thought is a no-op.
func (db *DB) UpsertFromRemote(ctx context.Context, r models.Thought) (Outcome, error) {
	r.Timestamp = r.ID
	r.SyncedToDrive = true
	if r.LastModified == 0 {
		r.LastModified = r.ID
	}

	out := Outcome{ID: r.ID}
	err := db.inTx(ctx, "upsert remote", func(tx *sql.Tx) error {
		existing, err := getThought(ctx, tx, r.ID)
		if err != nil {
			return err
		}

		switch {
		case existing == nil:
			out.Action = ActionAdopted
			return insertThought(ctx, tx, r)

		case existing.Content == r.Content:
			if existing.SyncedToDrive {
				out.Action = ActionUnchanged
				return nil
			}
			out.Action = ActionMarked
			_, err := tx.ExecContext(ctx,
				`UPDATE thoughts SET synced = 1, last_modified = ? WHERE id = ?`,
				db.now().UnixMilli(), r.ID)
			return err

		default:
			newID, err := nextFreeID(ctx, tx, existing.ID+1)
			if err != nil {
				return err
			}
			if err := deleteThought(ctx, tx, existing.ID); err != nil {
				return err
			}
			moved := *existing
			moved.ID = newID
			moved.Timestamp = newID
			moved.SyncedToDrive = false
			moved.LastModified = db.now().UnixMilli()
			if err := insertThought(ctx, tx, moved); err != nil {
				return err
			}
			out.Action = ActionRelocated
			out.RelocatedTo = newID
			return insertThought(ctx, tx, r)
		}
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// Stats returns total, synced and unsynced counts.
func (db *DB) Stats(ctx context.Context) (models.Stats, error) {
	var s models.Stats
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(synced), 0) FROM thoughts`).Scan(&s.Total, &s.Synced)
	if err != nil {
		return models.Stats{}, apperr.Wrap(apperr.KindLocal, "stats", fmt.Errorf("store: stats: %w", err))
	}
	s.Unsynced = s.Total - s.Synced
	return s, nil
}

func (db *DB) query(ctx context.Context, op, query string, args ...any) ([]models.Thought, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindLocal, op, fmt.Errorf("store: %s: %w", op, err))
	}
	defer rows.Close()

	out := []models.Thought{}
	for rows.Next() {
		t, err := scanThought(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindLocal, op, fmt.Errorf("store: %s: scan: %w", op, err))
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindLocal, op, fmt.Errorf("store: %s: %w", op, err))
	}
	return out, nil
}
