// Package thoughtservice is the surface-facing facade shared by the HTTP API,
// the MCP server and the CLI.
package thoughtservice

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ignite/internal/merge"
	"github.com/starford/ignite/internal/models"
	"github.com/starford/ignite/internal/store"
	"github.com/starford/ignite/internal/syncer"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Service coordinates the store and the sync orchestrator.
type Service struct {
	store store.ThoughtStore
	sync  *syncer.Orchestrator
}

// New creates a new thought service.
func New(st store.ThoughtStore, orch *syncer.Orchestrator) *Service {
	return &Service{store: st, sync: orch}
}

// SearchQuery is a validated search request.
type SearchQuery struct {
	Query string
	Limit int
}

// Validate implements validation.Validatable.
func (q SearchQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Query, validation.Required, validation.Length(1, 200)),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(MaxListLimit)),
	)
}

// Save stores a new thought; see syncer.Orchestrator.Save.
func (s *Service) Save(ctx context.Context, content string) (*models.Thought, error) {
	return s.sync.Save(ctx, content)
}

// Get returns one thought by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Thought, error) {
	return s.store.Get(ctx, id)
}

// List returns the newest thoughts. A non-positive limit uses the default.
func (s *Service) List(ctx context.Context, limit int) ([]models.Thought, error) {
	return s.store.List(ctx, clampLimit(limit))
}

// Unsynced returns thoughts the remote has not seen yet, oldest first.
func (s *Service) Unsynced(ctx context.Context) ([]models.Thought, error) {
	return s.store.Unsynced(ctx)
}

// Search matches thought content.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]models.Thought, error) {
	q.Query = strings.TrimSpace(q.Query)
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.store.Search(ctx, q.Query, q.Limit)
}

// Stats returns aggregate counts.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	return s.store.Stats(ctx)
}

// Sync runs a full merge now.
func (s *Service) Sync(ctx context.Context) (*merge.Result, error) {
	return s.sync.PullAndMerge(ctx, syncer.ReasonManual)
}

// Status returns the session snapshot.
func (s *Service) Status(ctx context.Context) (syncer.Status, error) {
	return s.sync.Status(ctx)
}

// ClearSyncError resets the recorded sync failure.
func (s *Service) ClearSyncError() { s.sync.ClearSyncError() }

// Lifecycle applies a client lifecycle event: online, offline or visible.
func (s *Service) Lifecycle(event string) bool {
	switch event {
	case "online":
		s.sync.SetOnline(true)
	case "offline":
		s.sync.SetOnline(false)
	case "visible":
		s.sync.Visible()
	default:
		return false
	}
	return true
}

// SignOut discards the sync credential.
func (s *Service) SignOut(ctx context.Context) error {
	return s.sync.SignOut(ctx)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
