package domain

import "time"

// Collection groups products under a handle. The empty handle is the "All" collection.
type Collection struct {
	Handle      string    `json:"handle"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Path        string    `json:"path"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Article struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Summary   string    `json:"summary,omitempty"`
	Tags      []string  `json:"tags"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
