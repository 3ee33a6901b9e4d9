// Package testutil provides shared test helpers for stores and remote files.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/ignite/internal/remote"
	"github.com/starford/ignite/internal/store"
)

// TestStore creates a temporary SQLite store that is automatically cleaned up.
func TestStore(t *testing.T, opts ...store.Option) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ignite-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRemoteDir creates a temporary directory with an FS-backed remote file.
func TestRemoteDir(t *testing.T) (string, *remote.File) {
	t.Helper()
	dir := t.TempDir()
	backend, err := remote.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, remote.NewFile(remote.DefaultFileName, backend, nil, Logger())
}

// Logger discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// MemRemote is an in-memory remote.Transport. Set the *Err fields to make
// the matching call fail.
type MemRemote struct {
	mu sync.Mutex

	Text       string
	FetchErr   error
	ReplaceErr error
	AppendErr  error

	Fetches  int
	Replaces int
	Appends  int
	Tokens   []string
}

var _ remote.Transport = (*MemRemote)(nil)

func (m *MemRemote) FetchText(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetches++
	m.Tokens = append(m.Tokens, token)
	if m.FetchErr != nil {
		return "", m.FetchErr
	}
	return m.Text, nil
}

func (m *MemRemote) ReplaceText(_ context.Context, token, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replaces++
	m.Tokens = append(m.Tokens, token)
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.Text = text
	return nil
}

func (m *MemRemote) AppendLine(_ context.Context, token, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Appends++
	m.Tokens = append(m.Tokens, token)
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if m.Text != "" && !strings.HasSuffix(m.Text, "\n") {
		m.Text += "\n"
	}
	m.Text += line + "\n"
	return nil
}

// Snapshot returns the current text.
func (m *MemRemote) Snapshot() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Text
}

// SetText replaces the text, as another device would.
func (m *MemRemote) SetText(text string) {
	m.mu.Lock()
	m.Text = text
	m.mu.Unlock()
}

// Fail sets every error field at once; pass nil to clear.
func (m *MemRemote) Fail(err error) {
	m.mu.Lock()
	m.FetchErr, m.ReplaceErr, m.AppendErr = err, err, err
	m.mu.Unlock()
}

// Counts returns fetch, replace, and append call counts.
func (m *MemRemote) Counts() (fetches, replaces, appends int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Fetches, m.Replaces, m.Appends
}
