// Package remote owns the single shared thoughts file: locating it on a
// backend, caching the locator, and reading or rewriting its text.
package remote

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/ignite/internal/checksum"
)

// DefaultFileName is the name of the shared file when none is configured.
const DefaultFileName = "ignite-thoughts.md"

// Transport is what the merge engine needs from the remote side.
type Transport interface {
	// FetchText returns the whole file text, creating an empty file if none exists.
	FetchText(ctx context.Context, token string) (string, error)
	// ReplaceText overwrites the file with text.
	ReplaceText(ctx context.Context, token, text string) error
	// AppendLine adds one encoded line to the end of the file.
	AppendLine(ctx context.Context, token, line string) error
}

// Backend is a store that can hold the shared file. A locator is the
// backend-specific handle returned by Find or Create.
type Backend interface {
	Find(ctx context.Context, token, name string) (loc string, found bool, err error)
	Create(ctx context.Context, token, name string) (loc string, err error)
	Stat(ctx context.Context, token, loc string) error
	Read(ctx context.Context, token, loc string) ([]byte, error)
	Write(ctx context.Context, token, loc string, data []byte) error
}

// File implements Transport over a Backend.
type File struct {
	name     string
	backend  Backend
	locators LocatorCache
	logger   *slog.Logger

	mu      sync.Mutex
	lastSum string // checksum of the last text read or written
}

var _ Transport = (*File)(nil)

// NewFile returns a File for name on backend. A nil cache keeps the locator
// in memory only.
func NewFile(name string, backend Backend, locators LocatorCache, logger *slog.Logger) *File {
	if name == "" {
		name = DefaultFileName
	}
	if locators == nil {
		locators = &MemoryLocator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &File{name: name, backend: backend, locators: locators, logger: logger}
}

// Name returns the shared file name.
func (f *File) Name() string { return f.name }

// Known reports whether data is exactly what this File last read or wrote.
// The watcher uses it to ignore its own writes.
func (f *File) Known(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return checksum.Equal(data, f.lastSum)
}

func (f *File) remember(data []byte) {
	f.mu.Lock()
	f.lastSum = checksum.Sum(data)
	f.mu.Unlock()
}

// FetchText implements Transport.
func (f *File) FetchText(ctx context.Context, token string) (string, error) {
	loc, err := f.resolve(ctx, token)
	if err != nil {
		return "", err
	}
	data, err := f.backend.Read(ctx, token, loc)
	if err != nil {
		f.forget(ctx, err)
		return "", err
	}
	f.remember(data)
	return string(data), nil
}

// ReplaceText implements Transport.
func (f *File) ReplaceText(ctx context.Context, token, text string) error {
	loc, err := f.resolve(ctx, token)
	if err != nil {
		return err
	}
	return f.write(ctx, token, loc, []byte(text))
}

// AppendLine implements Transport. The backends have no append primitive, so
// this reads the current text and writes it back with line added.
func (f *File) AppendLine(ctx context.Context, token, line string) error {
	loc, err := f.resolve(ctx, token)
	if err != nil {
		return err
	}
	data, err := f.backend.Read(ctx, token, loc)
	if err != nil {
		f.forget(ctx, err)
		return err
	}
	var b strings.Builder
	b.Grow(len(data) + len(line) + 2)
	b.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(strings.TrimRight(line, "\n"))
	b.WriteByte('\n')
	return f.write(ctx, token, loc, []byte(b.String()))
}

func (f *File) write(ctx context.Context, token, loc string, data []byte) error {
	if err := f.backend.Write(ctx, token, loc, data); err != nil {
		f.forget(ctx, err)
		return err
	}
	f.remember(data)
	return nil
}

// resolve returns the locator of the shared file: the cached one if it is
// still valid, else the first file matching the name, else a new empty file.
func (f *File) resolve(ctx context.Context, token string) (string, error) {
	loc, err := f.locators.Load(ctx)
	if err != nil {
		f.logger.Warn("remote: locator cache load failed", slog.String("error", err.Error()))
	}
	if loc != "" {
		statErr := f.backend.Stat(ctx, token, loc)
		if statErr == nil {
			return loc, nil
		}
		if IsPermission(statErr) {
			return "", statErr
		}
		f.logger.Info("remote: cached locator invalid", slog.String("locator", loc), slog.String("error", statErr.Error()))
		f.clear(ctx)
	}

	loc, found, err := f.backend.Find(ctx, token, f.name)
	if err != nil {
		return "", err
	}
	if !found {
		loc, err = f.backend.Create(ctx, token, f.name)
		if err != nil {
			return "", err
		}
		f.logger.Info("remote: created file", slog.String("name", f.name), slog.String("locator", loc))
	}
	if err := f.locators.Store(ctx, loc); err != nil {
		f.logger.Warn("remote: locator cache store failed", slog.String("error", err.Error()))
	}
	return loc, nil
}

// forget drops the cached locator after any failure that is not a refused
// credential, so the next call searches again.
func (f *File) forget(ctx context.Context, err error) {
	if IsPermission(err) {
		return
	}
	f.clear(ctx)
}

func (f *File) clear(ctx context.Context) {
	if err := f.locators.Clear(ctx); err != nil {
		f.logger.Warn("remote: locator cache clear failed", slog.String("error", err.Error()))
	}
}
