package course

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrEmptyTitle    = errors.New("course title cannot be empty")
	ErrEmptySlug     = errors.New("course slug cannot be empty")
	ErrNegativePrice = errors.New("course price cannot be negative")
)

// Course is the catalogue entry a schedule belongs to. The scheduling
// engine only reads it.
type Course struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Price int64  `json:"price"` // whole currency units
}

// Validate checks if the Course has valid data.
// PRE: Course struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Course) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(c.Slug) == "" {
		return ErrEmptySlug
	}
	if c.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}
