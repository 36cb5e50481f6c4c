package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/ops"
	"github.com/hpungsan/intake/internal/person"
	"github.com/hpungsan/intake/internal/search"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps   ops.Deps
	search *search.Manager
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps ops.Deps, searches *search.Manager) *Handlers {
	return &Handlers{deps: deps, search: searches}
}

// Request types for each tool

// CreateRequest represents the arguments for participant_create.
type CreateRequest struct {
	CaseID          string   `json:"case_id"`
	Scope           string   `json:"scope,omitempty"`
	LegacyID        string   `json:"legacy_id,omitempty"`
	LegacyTableName string   `json:"legacy_table_name,omitempty"`
	Sealed          bool     `json:"sealed,omitempty"`
	Sensitive       bool     `json:"sensitive,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	FirstName       string   `json:"first_name,omitempty"`
	MiddleName      string   `json:"middle_name,omitempty"`
	LastName        string   `json:"last_name,omitempty"`
	NameSuffix      string   `json:"name_suffix,omitempty"`
}

// ParticipantRequest identifies a participant within a case.
type ParticipantRequest struct {
	CaseID        string `json:"case_id"`
	ParticipantID string `json:"participant_id"`
	Scope         string `json:"scope,omitempty"`
}

// CaseRequest identifies a case.
type CaseRequest struct {
	CaseID string `json:"case_id"`
}

// SaveRelationshipRequest represents the arguments for relationship_save.
type SaveRelationshipRequest struct {
	CaseID                string `json:"case_id"`
	ID                    string `json:"id,omitempty"`
	ClientID              string `json:"client_id"`
	RelativeID            string `json:"relative_id"`
	RelationshipType      string `json:"relationship_type"`
	AbsentParentIndicator bool   `json:"absent_parent_indicator,omitempty"`
	SameHomeStatus        string `json:"same_home_status,omitempty"`
}

// SearchRequest represents the arguments for people_search.
type SearchRequest struct {
	Query string `json:"query"`
}

// HandleCreate handles the participant_create tool.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	input := ops.CreateInput{
		CaseID:    r.CaseID,
		Scope:     r.Scope,
		Sealed:    r.Sealed,
		Sensitive: r.Sensitive,
		Roles:     r.Roles,
		Names: person.Names{
			FirstName:  r.FirstName,
			MiddleName: r.MiddleName,
			LastName:   r.LastName,
			NameSuffix: r.NameSuffix,
		},
	}
	if r.LegacyID != "" || r.LegacyTableName != "" {
		input.LegacyDescriptor = &person.LegacyDescriptor{
			LegacyID:          r.LegacyID,
			LegacySourceTable: r.LegacyTableName,
		}
	}

	out, err := ops.CreatePerson(ctx, h.deps, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleDelete handles the participant_delete tool.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[ParticipantRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	out, err := ops.DeletePerson(ctx, h.deps, ops.DeleteInput{
		CaseID:        r.CaseID,
		ParticipantID: r.ParticipantID,
		Scope:         r.Scope,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleConfirm handles the participant_confirm tool.
func (h *Handlers) HandleConfirm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[ParticipantRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	out, err := ops.ConfirmPerson(ctx, h.deps.Store, ops.ConfirmInput{
		CaseID:        r.CaseID,
		ParticipantID: r.ParticipantID,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleView handles the relationship_view tool.
func (h *Handlers) HandleView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[CaseRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if r.CaseID == "" {
		return errorResult(errors.NewInvalidRequest("case_id is required")), nil
	}

	people, err := ops.DisplayPeople(ctx, h.deps.Store, h.deps.Lookup, r.CaseID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"case_id": r.CaseID,
		"people":  people,
	})
}

// HandleRefresh handles the relationship_refresh tool.
func (h *Handlers) HandleRefresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[CaseRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	out, err := ops.RefreshRelationships(ctx, h.deps, r.CaseID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleSaveRelationship handles the relationship_save tool.
func (h *Handlers) HandleSaveRelationship(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[SaveRelationshipRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	out, err := ops.SaveRelationship(ctx, h.deps, ops.SaveRelationshipInput{
		CaseID: r.CaseID,
		Edit: person.RelationshipEdit{
			ID:                    r.ID,
			ClientID:              r.ClientID,
			RelativeID:            r.RelativeID,
			RelationshipType:      r.RelationshipType,
			AbsentParentIndicator: r.AbsentParentIndicator,
			SameHomeStatus:        r.SameHomeStatus,
		},
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleSearch handles the people_search tool.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	session, err := h.search.StartSearch(ctx, r.Query)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(searchOutput(session, false))
}

// HandleMore handles the people_more tool. Running out of pages is not an
// error: the current session is returned with no_more_results set.
func (h *Handlers) HandleMore(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := h.search.LoadNextPage(ctx)
	if errors.Is(err, errors.ErrNoMoreResults) {
		return successResult(searchOutput(h.search.Session(), true))
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(searchOutput(session, false))
}

// HandleReset handles the people_reset tool.
func (h *Handlers) HandleReset(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.search.Reset()
	return successResult(map[string]any{"reset": true})
}

// HandleClear handles the case_clear tool.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[CaseRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	out, err := ops.ClearCase(ctx, h.deps.Store, h.deps.Logger, r.CaseID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// SearchOutput is the people_search and people_more result.
type SearchOutput struct {
	*search.Session
	HasMore       bool `json:"has_more"`
	NoMoreResults bool `json:"no_more_results,omitempty"`
}

func searchOutput(s *search.Session, exhausted bool) SearchOutput {
	if s == nil {
		s = &search.Session{Hits: []search.Hit{}}
	}
	return SearchOutput{
		Session:       s,
		HasMore:       s.HasMore(),
		NoMoreResults: exhausted,
	}
}

// errorResult creates an MCP error result from an error.
// Context added by wrapping is kept in front of the message.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if iErr, ok := errors.As(err); ok {
		message := iErr.Message
		if prefix := strings.TrimSuffix(err.Error(), iErr.Error()); prefix != err.Error() && prefix != "" {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    iErr.Code,
			"message": message,
			"status":  iErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// upstream bodies or SQL errors
		if iErr.Code != errors.ErrInternal && iErr.Details != nil {
			errorObj["details"] = iErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
