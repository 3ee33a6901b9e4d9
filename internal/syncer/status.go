package syncer

import (
	"time"

	"github.com/starford/ignite/internal/merge"
	"github.com/starford/ignite/internal/models"
)

// Status is a point-in-time view of the session.
type Status struct {
	Saving          bool          `json:"saving"`
	Syncing         bool          `json:"syncing"`
	Online          bool          `json:"online"`
	SignedIn        bool          `json:"signed_in"`
	LastSaved       *time.Time    `json:"last_saved,omitempty"`
	LastSync        *time.Time    `json:"last_sync,omitempty"`
	LastResult      *merge.Result `json:"last_result,omitempty"`
	SyncError       string        `json:"sync_error,omitempty"`
	PermissionError bool          `json:"permission_error"`
	RefreshDue      *time.Time    `json:"refresh_due,omitempty"`
	Stats           models.Stats  `json:"stats"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
