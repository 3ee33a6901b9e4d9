package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/ignite/internal/apperr"
	"github.com/starford/ignite/internal/auth"
	"github.com/starford/ignite/internal/merge"
	"github.com/starford/ignite/internal/models"
	"github.com/starford/ignite/internal/remote"
	"github.com/starford/ignite/internal/sse"
	"github.com/starford/ignite/internal/store"
	"github.com/starford/ignite/internal/testutil"
)

// toggleSource is an auth.Source whose validity the test controls.
type toggleSource struct {
	mu        sync.Mutex
	cred      auth.Credential
	valid     bool
	next      auth.Credential // handed out by Refresh
	refreshes int
}

func (s *toggleSource) Current() (auth.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred, s.valid
}

func (s *toggleSource) Refresh(context.Context) (auth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.next.Token == "" {
		return auth.Credential{}, auth.ErrSignedOut
	}
	s.cred, s.valid = s.next, true
	return s.cred, nil
}

func (s *toggleSource) SignOut(context.Context) error {
	s.mu.Lock()
	s.cred, s.valid, s.next = auth.Credential{}, false, auth.Credential{}
	s.mu.Unlock()
	return nil
}

func (s *toggleSource) set(token string) {
	s.mu.Lock()
	s.cred, s.valid = auth.Credential{Token: token}, token != ""
	s.mu.Unlock()
}

// recorder captures published event types.
type recorder struct {
	mu    sync.Mutex
	types []string
}

func (r *recorder) Publish(e sse.Event) {
	r.mu.Lock()
	r.types = append(r.types, e.Type)
	r.mu.Unlock()
}

func (r *recorder) PublishChange(e sse.Event, _ models.Stats) { r.Publish(e) }

func (r *recorder) seen(typ string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.types {
		if t == typ {
			return true
		}
	}
	return false
}

type fixture struct {
	orch   *Orchestrator
	db     *store.DB
	remote *testutil.MemRemote
	creds  *toggleSource
	events *recorder
}

func newFixture(t *testing.T, rt remote.Transport, opts ...Option) *fixture {
	t.Helper()
	db := testutil.TestStore(t)
	mem, _ := rt.(*testutil.MemRemote)
	if rt == nil {
		mem = &testutil.MemRemote{}
		rt = mem
	}
	f := &fixture{db: db, remote: mem, creds: &toggleSource{}, events: &recorder{}}
	opts = append([]Option{WithLogger(testutil.Logger()), WithPublisher(f.events)}, opts...)
	f.orch = New(db, merge.New(db, rt, testutil.Logger()), f.creds, opts...)
	return f
}

func TestSaveOfflineThenMergeUploads(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	th, err := f.orch.Save(ctx, "buy milk")
	require.NoError(t, err)
	f.orch.Wait()

	require.False(t, th.SyncedToDrive)
	fetches, replaces, appends := f.remote.Counts()
	require.Zero(t, fetches+replaces+appends, "no remote call without a credential")

	st, err := f.orch.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, models.Stats{Total: 1, Unsynced: 1}, st.Stats)
	require.False(t, st.SignedIn)

	_, err = f.orch.PullAndMerge(ctx, ReasonManual)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	f.creds.set("tok")
	res, err := f.orch.PullAndMerge(ctx, ReasonCredential)
	require.NoError(t, err)
	require.Equal(t, 1, res.Pushed)
	require.True(t, strings.HasSuffix(f.remote.Snapshot(), " buy milk\n"))

	got, err := f.db.Get(ctx, th.ID)
	require.NoError(t, err)
	require.True(t, got.SyncedToDrive)
}

func TestSaveOnlinePushesInBackground(t *testing.T) {
	f := newFixture(t, nil)
	f.creds.set("tok")
	ctx := context.Background()

	th, err := f.orch.Save(ctx, "  call mom \r\n about sunday  ")
	require.NoError(t, err)
	require.Equal(t, "call mom about sunday", th.Content)
	f.orch.Wait()

	_, _, appends := f.remote.Counts()
	require.Equal(t, 1, appends)
	got, err := f.db.Get(ctx, th.ID)
	require.NoError(t, err)
	require.True(t, got.SyncedToDrive)
	require.True(t, f.events.seen(sse.EventThoughtSaved))
	require.True(t, f.events.seen(sse.EventSyncCompleted))
}

func TestSaveRejectsBlank(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.orch.Save(context.Background(), " \n\t ")
	require.ErrorIs(t, err, apperr.ErrEmptyContent)
}

func TestBackgroundPushFailureRecorded(t *testing.T) {
	f := newFixture(t, nil)
	f.creds.set("tok")
	f.remote.Fail(&remote.Error{Kind: remote.KindPermissionDenied, Op: "write", Status: 401, Err: errors.New("unauthorized")})
	ctx := context.Background()

	th, err := f.orch.Save(ctx, "still saved")
	require.NoError(t, err, "remote failure must not fail the save")
	f.orch.Wait()

	st, err := f.orch.Status(ctx)
	require.NoError(t, err)
	require.True(t, st.PermissionError)
	require.NotEmpty(t, st.SyncError)

	got, err := f.db.Get(ctx, th.ID)
	require.NoError(t, err)
	require.False(t, got.SyncedToDrive)

	f.orch.ClearSyncError()
	st, _ = f.orch.Status(ctx)
	require.False(t, st.PermissionError)
	require.Empty(t, st.SyncError)
}

func TestMergePermissionFaultInStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.creds.set("tok")
	f.remote.Fail(&remote.Error{Kind: remote.KindPermissionDenied, Op: "read", Status: 403, Err: errors.New("forbidden")})
	ctx := context.Background()

	_, err := f.orch.PullAndMerge(ctx, ReasonManual)
	require.True(t, apperr.IsPermission(err))
	require.True(t, f.events.seen(sse.EventSyncFailed))

	st, _ := f.orch.Status(ctx)
	require.True(t, st.PermissionError)

	f.remote.Fail(nil)
	_, err = f.orch.PullAndMerge(ctx, ReasonManual)
	require.NoError(t, err)
	st, _ = f.orch.Status(ctx)
	require.False(t, st.PermissionError, "a successful merge clears the error")
	require.NotNil(t, st.LastSync)
}

// blockingRemote holds the first fetch until released.
type blockingRemote struct {
	*testutil.MemRemote
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRemote) FetchText(ctx context.Context, token string) (string, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.MemRemote.FetchText(ctx, token)
}

func TestConcurrentMergeDropped(t *testing.T) {
	br := &blockingRemote{MemRemote: &testutil.MemRemote{}, entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, br)
	f.creds.set("tok")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.PullAndMerge(ctx, ReasonTimer)
		done <- err
	}()
	<-br.entered

	st, err := f.orch.Status(ctx)
	require.NoError(t, err)
	require.True(t, st.Syncing)

	_, err = f.orch.PullAndMerge(ctx, ReasonVisible)
	require.ErrorIs(t, err, apperr.ErrMergeInProgress)

	close(br.release)
	require.NoError(t, <-done)

	_, err = f.orch.PullAndMerge(ctx, ReasonManual)
	require.NoError(t, err, "gate reopens after the merge")
}

func TestOfflineSkipsAndOnlineTriggers(t *testing.T) {
	f := newFixture(t, nil, WithOnline(false))
	f.creds.set("tok")
	ctx := context.Background()

	th, err := f.orch.Save(ctx, "on the train")
	require.NoError(t, err)
	f.orch.Wait()
	_, _, appends := f.remote.Counts()
	require.Zero(t, appends)

	_, err = f.orch.PullAndMerge(ctx, ReasonManual)
	require.ErrorIs(t, err, apperr.ErrOffline)

	f.orch.SetOnline(true)
	f.orch.Wait()

	got, err := f.db.Get(ctx, th.ID)
	require.NoError(t, err)
	require.True(t, got.SyncedToDrive)
}

func TestRunRefreshesAndMerges(t *testing.T) {
	f := newFixture(t, nil, WithInterval(0), WithRefreshLead(time.Minute))
	f.creds.next = auth.Credential{Token: "fresh", ExpiresAt: time.Now().Add(time.Hour)}
	ctx, cancel := context.WithCancel(context.Background())

	_, err := f.db.Save(ctx, "queued while signed out")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()

	testutil.Eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		st, err := f.orch.Status(context.Background())
		return err == nil && st.Stats.Unsynced == 0 && st.Stats.Total == 1
	}, "startup merge did not upload the queued thought")

	st, err := f.orch.Status(context.Background())
	require.NoError(t, err)
	require.True(t, st.SignedIn)
	require.NotNil(t, st.RefreshDue)
	require.WithinDuration(t, time.Now().Add(59*time.Minute), *st.RefreshDue, 5*time.Second)

	cancel()
	require.NoError(t, <-done)
	require.Contains(t, f.remote.Tokens, "fresh")
}

func TestSignOutCancelsRefresh(t *testing.T) {
	f := newFixture(t, nil, WithInterval(0), WithStartupMerge(false))
	f.creds.next = auth.Credential{Token: "fresh", ExpiresAt: time.Now().Add(time.Hour)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = f.orch.Run(ctx) }()
	testutil.Eventually(t, time.Second, 10*time.Millisecond, func() bool {
		st, _ := f.orch.Status(context.Background())
		return st.RefreshDue != nil
	}, "refresh not scheduled")

	require.NoError(t, f.orch.SignOut(context.Background()))
	st, err := f.orch.Status(context.Background())
	require.NoError(t, err)
	require.False(t, st.SignedIn)
	require.Nil(t, st.RefreshDue)
	require.True(t, f.events.seen(sse.EventSignedOut))
}

func TestScheduledTaskReplaces(t *testing.T) {
	var task scheduledTask
	var mu sync.Mutex
	var fired []string
	record := func(s string) func() {
		return func() {
			mu.Lock()
			fired = append(fired, s)
			mu.Unlock()
		}
	}
	task.Schedule(30*time.Millisecond, record("first"))
	task.Schedule(40*time.Millisecond, record("second"))
	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	require.Equal(t, []string{"second"}, fired)
	mu.Unlock()

	task.Schedule(20*time.Millisecond, record("third"))
	task.Cancel()
	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	require.Equal(t, []string{"second"}, fired)
	mu.Unlock()
	require.True(t, task.Due().IsZero())
}

func TestScheduledTaskClearsDueWhenFired(t *testing.T) {
	var task scheduledTask
	dueInside := make(chan time.Time, 1)
	task.Schedule(10*time.Millisecond, func() { dueInside <- task.Due() })
	require.False(t, task.Due().IsZero())

	select {
	case due := <-dueInside:
		require.True(t, due.IsZero(), "due still set while the run executes")
	case <-time.After(time.Second):
		t.Fatal("task did not fire")
	}
	require.True(t, task.Due().IsZero())
}

func TestSaveDuringMergeWritesLineOnce(t *testing.T) {
	br := &blockingRemote{MemRemote: &testutil.MemRemote{}, entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, br)
	f.creds.set("tok")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.PullAndMerge(ctx, ReasonTimer)
		done <- err
	}()
	<-br.entered

	th, err := f.orch.Save(ctx, "buy milk")
	require.NoError(t, err)

	close(br.release)
	require.NoError(t, <-done)
	f.orch.Wait()

	text := br.MemRemote.Snapshot()
	require.Equal(t, 1, strings.Count(text, "buy milk"), "remote = %q", text)
	got, err := f.db.Get(ctx, th.ID)
	require.NoError(t, err)
	require.True(t, got.SyncedToDrive)
	_, _, appends := br.MemRemote.Counts()
	require.Zero(t, appends)
}

func TestTriggerAfterShutdownIsDropped(t *testing.T) {
	f := newFixture(t, nil, WithInterval(0), WithStartupMerge(false))
	f.creds.set("tok")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	f.orch.Trigger(ReasonRemote)
	f.orch.SetOnline(false)
	f.orch.SetOnline(true)
	th, err := f.orch.Save(context.Background(), "after shutdown")
	require.NoError(t, err)
	f.orch.Wait()

	fetches, _, appends := f.remote.Counts()
	require.Zero(t, fetches)
	require.Zero(t, appends)
	got, err := f.db.Get(context.Background(), th.ID)
	require.NoError(t, err)
	require.False(t, got.SyncedToDrive, "left for the next session's merge")
}
