package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/person"
	"github.com/hpungsan/intake/internal/search"
)

// History scopes accepted by FetchHistoryOfInvolvements.
const (
	ScopeScreenings = "screenings"
	ScopeSnapshots  = "snapshots"
)

type participantEnvelope struct {
	Participant person.Participant `json:"participant"`
}

// CreatePerson posts a new participant and returns the record assigned by
// the participant service.
func (c *Client) CreatePerson(ctx context.Context, p person.Participant) (*person.Participant, error) {
	var created person.Participant
	if err := c.do(ctx, http.MethodPost, "/api/v1/participants", nil, participantEnvelope{Participant: p}, &created); err != nil {
		return nil, err
	}
	if created.CaseID == "" {
		created.CaseID = p.CaseID
	}
	return &created, nil
}

// DeletePerson removes a participant from a screening.
func (c *Client) DeletePerson(ctx context.Context, caseID, personID string) error {
	path, err := joinPath("/api/v1/screenings", caseID, "participants", personID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// FetchRelationships returns the relationship snapshot for the given client
// ids. No request is made for an empty id list.
func (c *Client) FetchRelationships(ctx context.Context, clientIDs []string) ([]person.FocusPerson, error) {
	if len(clientIDs) == 0 {
		return []person.FocusPerson{}, nil
	}
	query := url.Values{"clientIds": {strings.Join(clientIDs, ",")}}

	people := []person.FocusPerson{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/relationships", query, nil, &people); err != nil {
		return nil, err
	}
	return people, nil
}

// FetchHistoryOfInvolvements returns the involvement history for a screening
// or snapshot. The payload is passed through undecoded.
func (c *Client) FetchHistoryOfInvolvements(ctx context.Context, scope, caseID string) (json.RawMessage, error) {
	switch scope {
	case "":
		scope = ScopeScreenings
	case ScopeScreenings, ScopeSnapshots:
	default:
		return nil, errors.NewInvalidRequest("unknown history scope: " + scope)
	}

	path, err := joinPath("/api/v1", scope, caseID, "history_of_involvements")
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// FetchAllegations returns the screening's allegations, undecoded.
func (c *Client) FetchAllegations(ctx context.Context, caseID string) (json.RawMessage, error) {
	path, err := joinPath("/api/v1/screenings", caseID, "allegations")
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// joinPath appends escaped segments to an already escaped prefix. Empty and
// dot segments are refused so an id can never address another endpoint.
func joinPath(prefix string, segments ...string) (string, error) {
	var b strings.Builder
	b.WriteString(prefix)
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path segment %q", seg))
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String(), nil
}

// SaveRelationship posts a relationship edit.
func (c *Client) SaveRelationship(ctx context.Context, edit person.RelationshipEdit) error {
	return c.do(ctx, http.MethodPost, "/api/v1/screening_relationships", nil, edit, nil)
}

type searchHit struct {
	search.Hit
	Sort []string `json:"sort,omitempty"`
}

type searchResponse struct {
	Total       int         `json:"total"`
	Hits        []searchHit `json:"hits"`
	SearchAfter []string    `json:"search_after,omitempty"`
}

// SearchPeople requests one page of person search results.
//
// The resume cursor is the response's search_after when present, otherwise
// the sort values of the last hit of a full page. A short page ends the
// result set.
func (c *Client) SearchPeople(ctx context.Context, query string, after search.Cursor, size int) (*search.Page, error) {
	q := url.Values{"search_term": {query}}
	for _, v := range after {
		q.Add("search_after", v)
	}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/api/v2/people_search", q, nil, &resp); err != nil {
		return nil, err
	}

	page := &search.Page{
		Hits:  make([]search.Hit, 0, len(resp.Hits)),
		Total: resp.Total,
	}
	for _, h := range resp.Hits {
		page.Hits = append(page.Hits, h.Hit)
	}

	switch {
	case len(resp.SearchAfter) > 0:
		page.Cursor = search.Cursor(resp.SearchAfter)
	case len(resp.Hits) > 0 && size > 0 && len(resp.Hits) >= size:
		page.Cursor = search.Cursor(resp.Hits[len(resp.Hits)-1].Sort)
	}
	if len(page.Cursor) == 0 {
		page.Cursor = nil
	}
	return page, nil
}
