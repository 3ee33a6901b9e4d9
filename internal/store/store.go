package store

import (
	"context"

	"github.com/starford/ignite/internal/models"
)

// ThoughtStore defines the local durable store of thoughts.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type ThoughtStore interface {
	Save(ctx context.Context, content string) (int64, error)
	Get(ctx context.Context, id int64) (*models.Thought, error)
	List(ctx context.Context, limit int) ([]models.Thought, error)
	All(ctx context.Context) ([]models.Thought, error)
	Unsynced(ctx context.Context) ([]models.Thought, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkAllSynced(ctx context.Context, ids []int64) error
	UpsertFromRemote(ctx context.Context, r models.Thought) (Outcome, error)
	Stats(ctx context.Context) (models.Stats, error)
	Search(ctx context.Context, query string, limit int) ([]models.Thought, error)
	Close() error
}

// Verify *DB satisfies ThoughtStore at compile time.
var _ ThoughtStore = (*DB)(nil)
