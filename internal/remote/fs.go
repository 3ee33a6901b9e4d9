package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FS is a Backend over a local directory, typically one mounted from a
// shared drive. The token is ignored and locators are paths relative to root.
type FS struct {
	root string
}

var _ Backend = (*FS)(nil)

// NewFS returns an FS rooted at root. The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("remote: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("remote: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("remote: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Path returns the absolute path behind a locator.
func (f *FS) Path(loc string) (string, error) { return f.safePath(loc) }

// safePath rejects locators that escape root.
func (f *FS) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if rel == "" || cleaned == "." {
		return "", fmt.Errorf("remote: empty path")
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("remote: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("remote: path escapes root: %s", rel)
	}
	return abs, nil
}

func (f *FS) Find(_ context.Context, _, name string) (string, bool, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", false, nil
	case err != nil:
		return "", false, fsError("find", err)
	case info.IsDir():
		return "", false, nil
	}
	return filepath.Clean(name), true, nil
}

func (f *FS) Create(_ context.Context, _, name string) (string, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return "", err
	}
	fh, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return "", fsError("create", err)
	}
	if fh != nil {
		_ = fh.Close()
	}
	return filepath.Clean(name), nil
}

func (f *FS) Stat(_ context.Context, _, loc string) error {
	abs, err := f.safePath(loc)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fsError("stat", err)
	}
	if info.IsDir() {
		return &Error{Kind: KindNotFound, Op: "stat", Status: http.StatusNotFound, Err: fmt.Errorf("%s is a directory", loc)}
	}
	return nil
}

func (f *FS) Read(_ context.Context, _, loc string) ([]byte, error) {
	abs, err := f.safePath(loc)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fsError("read", err)
	}
	return data, nil
}

// Write replaces the file atomically: tmp file, fsync, rename.
func (f *FS) Write(_ context.Context, _, loc string, data []byte) error {
	abs, err := f.safePath(loc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fsError("mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".ignite-tmp-*")
	if err != nil {
		return fsError("create temp", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fsError("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return fsError("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return fsError("close temp", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fsError("rename", err)
	}
	success = true
	return nil
}

func fsError(op string, err error) *Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Error{Kind: KindNotFound, Op: op, Status: http.StatusNotFound, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &Error{Kind: KindPermissionDenied, Op: op, Status: http.StatusForbidden, Err: err}
	}
	return &Error{Kind: KindTransient, Op: op, Err: err}
}
