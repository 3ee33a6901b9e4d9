package api

import (
	"github.com/starford/ignite/internal/models"
)

// SaveThoughtRequest is the request body for saving a thought.
type SaveThoughtRequest struct {
	Content string `json:"content" example:"buy milk" validate:"required"`
}

// ThoughtListResponse wraps thought listings.
type ThoughtListResponse struct {
	Thoughts []models.Thought `json:"thoughts" validate:"required"`
	Stats    models.Stats     `json:"stats"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.Thought `json:"results" validate:"required"`
}
