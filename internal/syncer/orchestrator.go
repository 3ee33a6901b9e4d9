// Package syncer sequences local saves, background pushes and full merges for
// one session. At most one merge runs at a time; a merge requested while
// another is running is dropped.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/ignite/internal/apperr"
	"github.com/starford/ignite/internal/auth"
	"github.com/starford/ignite/internal/merge"
	"github.com/starford/ignite/internal/models"
	"github.com/starford/ignite/internal/sse"
	"github.com/starford/ignite/internal/store"
)

// Trigger reasons.
const (
	ReasonStartup    = "startup"
	ReasonOnline     = "online"
	ReasonVisible    = "visible"
	ReasonTimer      = "timer"
	ReasonCredential = "credential"
	ReasonRemote     = "remote-change"
	ReasonManual     = "manual"
)

const (
	DefaultInterval    = 5 * time.Minute
	DefaultRefreshLead = time.Minute
	pushTimeout        = 30 * time.Second
	refreshRetry       = time.Minute
)

// Publisher receives session events. *sse.Broker implements it.
type Publisher interface {
	Publish(event sse.Event)
	PublishChange(event sse.Event, stats models.Stats)
}

type nopPublisher struct{}

func (nopPublisher) Publish(sse.Event)                     {}
func (nopPublisher) PublishChange(sse.Event, models.Stats) {}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInterval sets the periodic merge interval. Zero disables the timer.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.interval = d }
}

// WithRefreshLead sets how long before expiry the credential is refreshed.
func WithRefreshLead(d time.Duration) Option {
	return func(o *Orchestrator) { o.refreshLead = d }
}

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.events = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithStartupMerge controls whether Run merges immediately.
func WithStartupMerge(on bool) Option {
	return func(o *Orchestrator) { o.startupMerge = on }
}

// WithOnline sets the initial connectivity state.
func WithOnline(on bool) Option {
	return func(o *Orchestrator) { o.online = on }
}

// Orchestrator owns the session: credential refresh, the merge gate and the
// status snapshot.
type Orchestrator struct {
	store  store.ThoughtStore
	engine *merge.Engine
	creds  auth.Source
	events Publisher
	logger *slog.Logger

	interval     time.Duration
	refreshLead  time.Duration
	startupMerge bool

	merging atomic.Bool
	saving  atomic.Int32
	// remoteMu serializes remote writers so a light append cannot be
	// overwritten by a concurrent full replace.
	remoteMu sync.Mutex
	bg       sync.WaitGroup
	refresh  scheduledTask

	mu         sync.Mutex
	base       context.Context
	closing    bool
	online     bool
	lastSaved  time.Time
	lastSync   time.Time
	lastResult *merge.Result
	syncErr    error
}

// New returns an Orchestrator. It is online by default.
func New(st store.ThoughtStore, engine *merge.Engine, creds auth.Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        st,
		engine:       engine,
		creds:        creds,
		events:       nopPublisher{},
		logger:       slog.Default(),
		interval:     DefaultInterval,
		refreshLead:  DefaultRefreshLead,
		startupMerge: true,
		online:       true,
		base:         context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Save stores content as a new unsynced thought and, when a credential is
// valid and the session is online, appends it to the remote in the
// background. Only local-store failures are returned.
func (o *Orchestrator) Save(ctx context.Context, content string) (*models.Thought, error) {
	content = models.NormalizeContent(content)
	if content == "" {
		return nil, apperr.ErrEmptyContent
	}

	o.saving.Add(1)
	defer o.saving.Add(-1)

	id, err := o.store.Save(ctx, content)
	if err != nil {
		return nil, err
	}
	t, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.lastSaved = time.Now()
	online := o.online
	o.mu.Unlock()

	o.publishChange(ctx, sse.Event{Type: sse.EventThoughtSaved, Data: t})

	if cred, ok := o.creds.Current(); ok && online {
		o.goBackground(func() { o.pushOne(cred.Token, *t) })
	}
	return t, nil
}

func (o *Orchestrator) pushOne(token string, t models.Thought) {
	ctx, cancel := context.WithTimeout(o.baseContext(), pushTimeout)
	defer cancel()

	o.remoteMu.Lock()
	pushed, err := o.engine.PushOne(ctx, token, t)
	o.remoteMu.Unlock()
	if err != nil {
		o.logger.Warn("syncer: background push failed", slog.Int64("id", t.ID), slog.String("error", err.Error()))
		o.recordFailure(err)
		o.events.Publish(sse.Event{Type: sse.EventSyncFailed, Data: failurePayload(err)})
		return
	}
	if !pushed {
		return
	}
	o.logger.Debug("syncer: pushed thought", slog.Int64("id", t.ID))
	o.publishChange(ctx, sse.Event{Type: sse.EventSyncCompleted, Data: map[string]any{"pushed": 1, "id": t.ID}})
}

// PullAndMerge runs one full merge now. It returns ErrMergeInProgress when
// another merge holds the gate, and an auth fault when no credential is valid.
func (o *Orchestrator) PullAndMerge(ctx context.Context, reason string) (*merge.Result, error) {
	if !o.merging.CompareAndSwap(false, true) {
		return nil, apperr.ErrMergeInProgress
	}
	defer o.merging.Store(false)

	o.mu.Lock()
	online := o.online
	o.mu.Unlock()
	if !online {
		return nil, apperr.Wrap(apperr.KindTransient, "merge", apperr.ErrOffline)
	}
	cred, ok := o.creds.Current()
	if !ok {
		return nil, apperr.Wrap(apperr.KindAuth, "merge", apperr.ErrNotAuthenticated)
	}

	o.logger.Info("syncer: merge started", slog.String("reason", reason))
	o.events.Publish(sse.Event{Type: sse.EventSyncStarted, Data: map[string]string{"reason": reason}})

	o.remoteMu.Lock()
	res, err := o.engine.PullAndMerge(ctx, cred.Token)
	o.remoteMu.Unlock()
	if err != nil {
		o.logger.Warn("syncer: merge failed",
			slog.String("reason", reason),
			slog.String("kind", string(apperr.KindOf(err))),
			slog.String("error", err.Error()))
		o.recordFailure(err)
		o.events.Publish(sse.Event{Type: sse.EventSyncFailed, Data: failurePayload(err)})
		return res, err
	}

	o.mu.Lock()
	o.lastSync = time.Now()
	o.lastResult = res
	o.syncErr = nil
	o.mu.Unlock()
	o.events.PublishChange(sse.Event{Type: sse.EventSyncCompleted, Data: res}, res.Stats)
	return res, nil
}

// Trigger starts a merge in the background. Dropped and skipped merges are
// logged, not reported.
func (o *Orchestrator) Trigger(reason string) {
	started := o.goBackground(func() {
		_, err := o.PullAndMerge(o.baseContext(), reason)
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrMergeInProgress):
			o.logger.Debug("syncer: merge dropped, one in flight", slog.String("reason", reason))
		case errors.Is(err, apperr.ErrOffline), errors.Is(err, apperr.ErrNotAuthenticated):
			o.logger.Debug("syncer: merge skipped", slog.String("reason", reason), slog.String("error", err.Error()))
		}
	})
	if !started {
		o.logger.Debug("syncer: merge not started, shutting down", slog.String("reason", reason))
	}
}

// goBackground runs fn tracked by bg. Once Run has begun shutting down, fn is
// dropped so bg.Add never races bg.Wait; unsynced thoughts wait for the next
// session's merge.
func (o *Orchestrator) goBackground(fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closing {
		return false
	}
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		fn()
	}()
	return true
}

// SetOnline records connectivity. Coming back online triggers a merge.
func (o *Orchestrator) SetOnline(online bool) {
	o.mu.Lock()
	was := o.online
	o.online = online
	o.mu.Unlock()
	if online && !was {
		o.Trigger(ReasonOnline)
	}
}

// Visible is called when the client regains focus.
func (o *Orchestrator) Visible() { o.Trigger(ReasonVisible) }

// RemoteChanged is the watcher callback for external edits to the remote file.
func (o *Orchestrator) RemoteChanged([]byte) { o.Trigger(ReasonRemote) }

// ClearSyncError resets the recorded sync failure.
func (o *Orchestrator) ClearSyncError() {
	o.mu.Lock()
	o.syncErr = nil
	o.mu.Unlock()
}

// SignOut cancels the refresh task and discards the credential. Local
// thoughts are kept.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	o.refresh.Cancel()
	err := o.creds.SignOut(ctx)
	o.ClearSyncError()
	o.logger.Info("syncer: signed out")
	o.publishChange(ctx, sse.Event{Type: sse.EventSignedOut, Data: map[string]bool{"signed_in": false}})
	return err
}

// Status returns the current session snapshot.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	stats, err := o.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	_, signedIn := o.creds.Current()

	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		Saving:     o.saving.Load() > 0,
		Syncing:    o.merging.Load(),
		Online:     o.online,
		SignedIn:   signedIn,
		LastSaved:  timePtr(o.lastSaved),
		LastSync:   timePtr(o.lastSync),
		LastResult: o.lastResult,
		RefreshDue: timePtr(o.refresh.Due()),
		Stats:      stats,
	}
	if o.syncErr != nil {
		st.SyncError = o.syncErr.Error()
		st.PermissionError = apperr.IsPermission(o.syncErr)
	}
	return st, nil
}

// Run drives the session until ctx is cancelled: credential refresh, the
// startup merge and the periodic timer. Background work is awaited before
// it returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	o.base = ctx
	o.mu.Unlock()

	if _, ok := o.creds.Current(); !ok {
		o.refreshCredential(ctx)
	} else {
		o.scheduleRefresh(ctx)
	}
	if o.startupMerge {
		o.Trigger(ReasonStartup)
	}

	var tick <-chan time.Time
	if o.interval > 0 {
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			o.mu.Lock()
			o.closing = true
			o.mu.Unlock()
			o.refresh.Cancel()
			o.bg.Wait()
			o.logger.Info("syncer: stopped")
			return nil
		case <-tick:
			o.Trigger(ReasonTimer)
		}
	}
}

// Wait blocks until background pushes and triggered merges finish.
func (o *Orchestrator) Wait() { o.bg.Wait() }

// refreshCredential asks the source for a new credential and schedules the
// next refresh. A credential that turns valid triggers a merge.
func (o *Orchestrator) refreshCredential(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, wasValid := o.creds.Current()
	if _, err := o.creds.Refresh(ctx); err != nil {
		if apperr.KindOf(err) == apperr.KindAuth {
			o.logger.Info("syncer: no session, sync paused", slog.String("error", err.Error()))
			return
		}
		o.logger.Warn("syncer: credential refresh failed", slog.String("error", err.Error()))
		o.refresh.Schedule(refreshRetry, func() { o.refreshCredential(ctx) })
		return
	}
	o.scheduleRefresh(ctx)
	if _, ok := o.creds.Current(); ok && !wasValid {
		o.logger.Info("syncer: credential valid")
		o.Trigger(ReasonCredential)
	}
}

// scheduleRefresh arms the refresh task refreshLead before expiry. Credentials
// without an expiry need none.
func (o *Orchestrator) scheduleRefresh(ctx context.Context) {
	cred, ok := o.creds.Current()
	if !ok || cred.ExpiresAt.IsZero() {
		return
	}
	delay := time.Until(cred.ExpiresAt) - o.refreshLead
	o.refresh.Schedule(delay, func() { o.refreshCredential(ctx) })
}

func (o *Orchestrator) baseContext() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.base
}

func (o *Orchestrator) recordFailure(err error) {
	o.mu.Lock()
	o.syncErr = err
	o.mu.Unlock()
}

func (o *Orchestrator) publishChange(ctx context.Context, event sse.Event) {
	stats, err := o.store.Stats(ctx)
	if err != nil {
		o.events.Publish(event)
		return
	}
	o.events.PublishChange(event, stats)
}

func failurePayload(err error) map[string]any {
	return map[string]any{
		"error":      err.Error(),
		"kind":       string(apperr.KindOf(err)),
		"permission": apperr.IsPermission(err),
	}
}
