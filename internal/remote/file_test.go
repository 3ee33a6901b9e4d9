package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// memBackend is a Backend keyed by locator with injectable failures.
type memBackend struct {
	mu      sync.Mutex
	files   map[string][]byte
	finds   int
	creates int
	stats   int
	failAll error
}

func newMemBackend() *memBackend { return &memBackend{files: map[string][]byte{}} }

func (m *memBackend) Find(_ context.Context, _, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.failAll != nil {
		return "", false, m.failAll
	}
	for loc := range m.files {
		if loc == "id-"+name {
			return loc, true, nil
		}
	}
	return "", false, nil
}

func (m *memBackend) Create(_ context.Context, _, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.failAll != nil {
		return "", m.failAll
	}
	loc := "id-" + name
	m.files[loc] = nil
	return loc, nil
}

func (m *memBackend) Stat(_ context.Context, _, loc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats++
	if m.failAll != nil {
		return m.failAll
	}
	if _, ok := m.files[loc]; !ok {
		return &Error{Kind: KindNotFound, Op: "stat", Status: 404, Err: errors.New("missing")}
	}
	return nil
}

func (m *memBackend) Read(_ context.Context, _, loc string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	data, ok := m.files[loc]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Op: "read", Status: 404, Err: errors.New("missing")}
	}
	return append([]byte(nil), data...), nil
}

func (m *memBackend) Write(_ context.Context, _, loc string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.files[loc] = append([]byte(nil), data...)
	return nil
}

func TestFetchCreatesEmptyFile(t *testing.T) {
	b := newMemBackend()
	f := NewFile("t.md", b, nil, quietLogger())

	text, err := f.FetchText(context.Background(), "tok")
	require.NoError(t, err)
	require.Empty(t, text)
	require.Equal(t, 1, b.creates)
	require.Contains(t, b.files, "id-t.md")
}

func TestLocatorCachedBetweenCalls(t *testing.T) {
	b := newMemBackend()
	b.files["id-t.md"] = []byte("x\n")
	f := NewFile("t.md", b, nil, quietLogger())
	ctx := context.Background()

	_, err := f.FetchText(ctx, "tok")
	require.NoError(t, err)
	_, err = f.FetchText(ctx, "tok")
	require.NoError(t, err)

	require.Equal(t, 1, b.finds, "second call should use the cached locator")
	require.Equal(t, 1, b.stats)
}

func TestStaleLocatorSearchesAgain(t *testing.T) {
	b := newMemBackend()
	cache := &MemoryLocator{}
	require.NoError(t, cache.Store(context.Background(), "id-deleted"))
	b.files["id-t.md"] = []byte("line\n")
	f := NewFile("t.md", b, cache, quietLogger())

	text, err := f.FetchText(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "line\n", text)

	loc, _ := cache.Load(context.Background())
	require.Equal(t, "id-t.md", loc)
}

func TestPermissionKeepsLocator(t *testing.T) {
	b := newMemBackend()
	b.files["id-t.md"] = nil
	cache := &MemoryLocator{}
	f := NewFile("t.md", b, cache, quietLogger())
	ctx := context.Background()

	_, err := f.FetchText(ctx, "tok")
	require.NoError(t, err)

	b.failAll = &Error{Kind: KindPermissionDenied, Op: "read", Status: 403, Err: errors.New("denied")}
	_, err = f.FetchText(ctx, "tok")
	require.True(t, IsPermission(err))

	loc, _ := cache.Load(ctx)
	require.Equal(t, "id-t.md", loc, "permission failures keep the cached locator")
}

func TestTransientClearsLocator(t *testing.T) {
	b := newMemBackend()
	b.files["id-t.md"] = nil
	cache := &MemoryLocator{}
	f := NewFile("t.md", b, cache, quietLogger())
	ctx := context.Background()

	require.NoError(t, f.ReplaceText(ctx, "tok", "a\n"))

	b.mu.Lock()
	b.failAll = &Error{Kind: KindTransient, Op: "write", Status: 503, Err: errors.New("unavailable")}
	b.mu.Unlock()
	require.Error(t, f.ReplaceText(ctx, "tok", "b\n"))

	loc, _ := cache.Load(ctx)
	require.Empty(t, loc)
}

func TestAppendLine(t *testing.T) {
	b := newMemBackend()
	b.files["id-t.md"] = []byte("2024-01-01T00:00:00.000Z first")
	f := NewFile("t.md", b, nil, quietLogger())

	require.NoError(t, f.AppendLine(context.Background(), "tok", "2024-01-02T00:00:00.000Z second"))
	require.Equal(t, "2024-01-01T00:00:00.000Z first\n2024-01-02T00:00:00.000Z second\n", string(b.files["id-t.md"]))
}

func TestKnownTracksLastText(t *testing.T) {
	b := newMemBackend()
	f := NewFile("t.md", b, nil, quietLogger())
	ctx := context.Background()

	require.False(t, f.Known([]byte("")), "nothing read yet")
	require.NoError(t, f.ReplaceText(ctx, "tok", "a\n"))
	require.True(t, f.Known([]byte("a\n")))
	require.False(t, f.Known([]byte("b\n")))
}

func TestDefaultFileName(t *testing.T) {
	f := NewFile("", newMemBackend(), nil, nil)
	require.Equal(t, DefaultFileName, f.Name())
}
