//go:build sqlite_fts5

package store

import (
	"context"
	"testing"
	"time"

	"github.com/starford/ignite/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM thoughts_fts`).Scan(&count); err != nil {
		t.Fatalf("thoughts_fts table missing: %v", err)
	}
}

func TestFTS5_FollowsRelocation(t *testing.T) {
	ctx := context.Background()
	db := testDB(t, WithClock(func() time.Time { return time.UnixMilli(1000) }))
	if _, err := db.Save(ctx, "relocated local words"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertFromRemote(ctx, models.Thought{ID: 1000, Content: "remote words"}); err != nil {
		t.Fatal(err)
	}

	results, err := db.Search(ctx, "relocated", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 1001 {
		t.Errorf("search results = %+v, want relocated thought at 1001", results)
	}

	var n int
	_ = db.conn.QueryRow(`SELECT count(*) FROM thoughts_fts`).Scan(&n)
	if n != 2 {
		t.Errorf("fts rows = %d, want 2", n)
	}
}
