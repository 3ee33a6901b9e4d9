// Package apperr defines the error taxonomy shared by the store, the merge
// engine and the surfaces above them.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyContent     = errors.New("thought cannot be empty")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMergeInProgress  = errors.New("merge already in progress")
	ErrOffline          = errors.New("offline")
)

// Kind classifies a failure for propagation and display.
type Kind string

const (
	KindNone       Kind = ""
	KindLocal      Kind = "local"      // local store fault; fatal to the triggering action
	KindAuth       Kind = "auth"       // no valid credential
	KindPermission Kind = "permission" // remote refused the credential; reauthorize
	KindTransient  Kind = "transient"  // any other remote failure; retry later
)

// Error is a classified failure raised by a sync or store operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err under kind. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err, or KindNone when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return KindAuth
	}
	return KindNone
}

// IsPermission reports whether err should send the user to reauthorize.
func IsPermission(err error) bool {
	return KindOf(err) == KindPermission
}
