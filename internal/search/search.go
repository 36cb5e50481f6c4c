// Package search drives the cursor-based person search: one session per
// query, pages appended in order, at most one page request in flight.
package search

import (
	"context"
	"slices"

	"github.com/hpungsan/intake/internal/person"
)

// Cursor is the opaque, ordered resume token returned by the search service
// (its search_after values). A nil cursor marks the last page.
type Cursor []string

// Hit is one person returned by the search service.
type Hit struct {
	ID               string                   `json:"id,omitempty"`
	LegacyDescriptor *person.LegacyDescriptor `json:"legacy_descriptor,omitempty"`
	person.Names
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Sensitive   bool   `json:"sensitive,omitempty"`
	Sealed      bool   `json:"sealed,omitempty"`
}

// Page is one page of search results.
type Page struct {
	Hits   []Hit  `json:"hits"`
	Total  int    `json:"total"`
	Cursor Cursor `json:"search_after,omitempty"`
}

// Searcher is the external person search service.
type Searcher interface {
	SearchPeople(ctx context.Context, query string, after Cursor, size int) (*Page, error)
}

// Session is the accumulated result of one query.
type Session struct {
	ID     string `json:"id"`
	Query  string `json:"query"`
	Hits   []Hit  `json:"hits"`
	Total  int    `json:"total"`
	Cursor Cursor `json:"cursor,omitempty"`
	Pages  int    `json:"pages"`
}

// HasMore reports whether another page can be requested.
func (s *Session) HasMore() bool {
	return s != nil && s.Cursor != nil
}

// clone returns a copy that shares nothing mutable with s.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Hits = slices.Clone(s.Hits)
	if c.Hits == nil {
		c.Hits = []Hit{}
	}
	c.Cursor = cloneCursor(s.Cursor)
	return &c
}

// cloneCursor copies a cursor, mapping empty cursors to nil (end of results).
func cloneCursor(c Cursor) Cursor {
	if len(c) == 0 {
		return nil
	}
	return slices.Clone(c)
}
