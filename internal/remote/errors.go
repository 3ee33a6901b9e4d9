package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the transport-level failure taxonomy.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound         Kind = "not_found"
	KindTransient        Kind = "transient"
)

// Error is a failure reported by a Backend.
type Error struct {
	Kind   Kind
	Op     string
	Status int // HTTP-equivalent status when the backend reports one
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote: %s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("remote: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps a status code and error message onto a Kind. 401 and 403, or
// a message mentioning permission or authorization, mean the credential was
// refused.
func Classify(status int, err error) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindPermissionDenied
	case http.StatusNotFound:
		return KindNotFound
	}
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "permission") || strings.Contains(msg, "unauthorized") {
			return KindPermissionDenied
		}
	}
	return KindTransient
}

func newError(op string, status int, err error) *Error {
	return &Error{Kind: Classify(status, err), Op: op, Status: status, Err: err}
}

// KindOf returns the Kind of err. Unclassified errors are classified by message.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Classify(0, err)
}

// IsPermission reports whether err is a refused credential.
func IsPermission(err error) bool {
	return err != nil && KindOf(err) == KindPermissionDenied
}

// IsNotFound reports whether err means the remote file is missing.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}
