// Package merge reconciles the local store with the shared remote file.
//
// The remote owns every key it holds. A local thought whose key collides with
// a different remote thought is moved to the next free key above its own, so
// nothing is lost. Local thoughts the remote has not seen are pushed back with
// a full-file replace.
package merge

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/starford/ignite/internal/apperr"
	"github.com/starford/ignite/internal/models"
	"github.com/starford/ignite/internal/parser"
	"github.com/starford/ignite/internal/remote"
	"github.com/starford/ignite/internal/store"
)

// Relocation records a local thought displaced by a remote one.
type Relocation struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Result summarizes one PullAndMerge.
type Result struct {
	Fetched     int          `json:"fetched"`
	Adopted     int          `json:"adopted"`
	Marked      int          `json:"marked"`
	Relocations []Relocation `json:"relocations,omitempty"`
	Pushed      int          `json:"pushed"`
	Stats       models.Stats `json:"stats"`
}

// Engine runs merges. It holds no lock of its own; callers serialize merges.
type Engine struct {
	store  store.ThoughtStore
	remote remote.Transport
	logger *slog.Logger
}

// New returns an Engine over st and rt.
func New(st store.ThoughtStore, rt remote.Transport, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, remote: rt, logger: logger}
}

// PullAndMerge fetches the remote file, absorbs every remote thought, then
// pushes the local thoughts the remote lacks. A remote failure aborts the
// merge; thoughts absorbed before it stay committed and unsynced thoughts
// stay unsynced, so the merge can simply be run again.
func (e *Engine) PullAndMerge(ctx context.Context, token string) (*Result, error) {
	text, err := e.remote.FetchText(ctx, token)
	if err != nil {
		return nil, remoteFault("fetch", err)
	}
	theirs := parser.Decode(text)
	res := &Result{Fetched: len(theirs)}

	for _, r := range theirs {
		out, err := e.store.UpsertFromRemote(ctx, r)
		if err != nil {
			return res, err
		}
		switch out.Action {
		case store.ActionAdopted:
			res.Adopted++
		case store.ActionMarked:
			res.Marked++
		case store.ActionRelocated:
			res.Relocations = append(res.Relocations, Relocation{From: out.ID, To: out.RelocatedTo})
			e.logger.Info("merge: relocated local thought",
				slog.Int64("from", out.ID), slog.Int64("to", out.RelocatedTo))
		}
	}

	pushed, err := e.push(ctx, token)
	if err != nil {
		return res, err
	}
	res.Pushed = pushed

	stats, err := e.store.Stats(ctx)
	if err != nil {
		return res, err
	}
	res.Stats = stats

	e.logger.Info("merge: completed",
		slog.Int("fetched", res.Fetched),
		slog.Int("adopted", res.Adopted),
		slog.Int("marked", res.Marked),
		slog.Int("relocated", len(res.Relocations)),
		slog.Int("pushed", res.Pushed))
	return res, nil
}

// push replaces the remote file with the union of its current thoughts and
// every unsynced local thought, then marks those synced.
func (e *Engine) push(ctx context.Context, token string) (int, error) {
	unsynced, err := e.store.Unsynced(ctx)
	if err != nil {
		return 0, err
	}
	if len(unsynced) == 0 {
		return 0, nil
	}

	text, err := e.remote.FetchText(ctx, token)
	if err != nil {
		return 0, remoteFault("refetch", err)
	}
	merged := Union(parser.Decode(text), unsynced)
	if err := e.remote.ReplaceText(ctx, token, parser.EncodeAll(merged)); err != nil {
		return 0, remoteFault("replace", err)
	}

	ids := make([]int64, len(unsynced))
	for i, t := range unsynced {
		ids[i] = t.ID
	}
	if err := e.store.MarkAllSynced(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// PushOne appends a single freshly saved thought to the remote file and marks
// it synced. It skips reconciliation, which is safe only for a thought that
// no merge has seen yet: if the stored copy is already synced (a merge pushed
// it first) or gone from its key, nothing is written and pushed is false.
// Callers must serialize PushOne with PullAndMerge.
func (e *Engine) PushOne(ctx context.Context, token string, t models.Thought) (pushed bool, err error) {
	cur, err := e.store.Get(ctx, t.ID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	case cur.SyncedToDrive || cur.Content != t.Content:
		e.logger.Debug("merge: append skipped, already merged", slog.Int64("id", t.ID))
		return false, nil
	}
	if err := e.remote.AppendLine(ctx, token, parser.EncodeOne(*cur)); err != nil {
		return false, remoteFault("append", err)
	}
	if err := e.store.MarkSynced(ctx, t.ID); err != nil {
		return false, err
	}
	return true, nil
}

// Union merges remote and local thoughts by key, ordered by key. Local wins a
// shared key; among duplicate remote keys the later line wins.
func Union(remoteSet, local []models.Thought) []models.Thought {
	byID := make(map[int64]models.Thought, len(remoteSet)+len(local))
	for _, t := range remoteSet {
		byID[t.ID] = t
	}
	for _, t := range local {
		byID[t.ID] = t
	}
	out := make([]models.Thought, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// remoteFault classifies a transport error as permission or transient.
func remoteFault(op string, err error) error {
	if remote.IsPermission(err) {
		return apperr.Wrap(apperr.KindPermission, op, err)
	}
	return apperr.Wrap(apperr.KindTransient, op, err)
}
