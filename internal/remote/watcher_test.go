package remote

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
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

func TestWatchExternalChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.md")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	go Watch(ctx, path, nil, quietLogger(), func(data []byte) {
		mu.Lock()
		seen = append(seen, string(data))
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("2024-01-01T00:00:00.000Z hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == "2024-01-01T00:00:00.000Z hi\n"
	}, "external write not observed")
}

func TestWatchSkipsOwnWrites(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	f := NewFile("t.md", backend, nil, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := f.FetchText(ctx, ""); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	calls := 0
	go Watch(ctx, filepath.Join(dir, "t.md"), f.Known, quietLogger(), func([]byte) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	if err := f.ReplaceText(ctx, "", "2024-01-01T00:00:00.000Z mine\n"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	if calls != 0 {
		t.Errorf("own write triggered %d callbacks", calls)
	}
	mu.Unlock()

	if err := os.WriteFile(filepath.Join(dir, "t.md"), []byte("2024-01-02T00:00:00.000Z theirs\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, "external write not observed")
}
