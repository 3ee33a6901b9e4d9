// Package models defines the domain types for Ignite.
package models

import (
	"strings"
	"time"
)

// Thought is a single user-authored note keyed by its creation instant.
//
// ID is milliseconds since the Unix epoch and Timestamp always equals ID.
type Thought struct {
	ID            int64  `json:"id"`
	Content       string `json:"content"`
	Timestamp     int64  `json:"timestamp"`
	SyncedToDrive bool   `json:"synced_to_drive"`
	LastModified  int64  `json:"last_modified"`
}

// CreatedAt returns the creation instant in UTC.
func (t Thought) CreatedAt() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

// Stats is the aggregate sync state of the local store.
type Stats struct {
	Total    int `json:"total"`
	Synced   int `json:"synced"`
	Unsynced int `json:"unsynced"`
}

// NormalizeContent trims content and folds internal line breaks into single
// spaces so the result is safe for the one-line remote encoding.
func NormalizeContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	parts := strings.Split(s, "\n")
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
