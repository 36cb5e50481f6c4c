package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/intake/internal/casefile"
	"github.com/hpungsan/intake/internal/config"
	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/ops"
	"github.com/hpungsan/intake/internal/person"
	"github.com/hpungsan/intake/internal/relationships"
	"github.com/hpungsan/intake/internal/search"
)

// fakeServices implements the participant, relationship, case and search
// services in memory.
type fakeServices struct {
	mu        sync.Mutex
	nextID    int
	createErr error
	deleteErr error
	people    []person.FocusPerson
	saved     []person.RelationshipEdit
	pages     []*search.Page
	queries   []string
}

func (f *fakeServices) CreatePerson(_ context.Context, p person.Participant) (*person.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	p.ID = fmt.Sprintf("p%d", f.nextID)
	return &p, nil
}

func (f *fakeServices) DeletePerson(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErr
}

func (f *fakeServices) FetchRelationships(context.Context, []string) ([]person.FocusPerson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.people, nil
}

func (f *fakeServices) SaveRelationship(_ context.Context, edit person.RelationshipEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, edit)
	return nil
}

func (f *fakeServices) FetchHistoryOfInvolvements(context.Context, string, string) (json.RawMessage, error) {
	return json.RawMessage(`{"cases":[]}`), nil
}

func (f *fakeServices) FetchAllegations(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeServices) SearchPeople(_ context.Context, query string, _ search.Cursor, _ int) (*search.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if len(f.pages) == 0 {
		return &search.Page{}, nil
	}
	p := f.pages[0]
	f.pages = f.pages[1:]
	return p, nil
}

// testSetup creates in-memory dependencies and a default config for testing.
func testSetup(t *testing.T) (ops.Deps, *fakeServices, *config.Config) {
	t.Helper()

	svc := &fakeServices{}
	deps := ops.Deps{
		Store:     casefile.NewMemory(),
		People:    svc,
		Relations: svc,
		Cases:     svc,
		Lookup:    relationships.MapLookup{"190": "Father"},
		Notifier:  ops.NopNotifier{},
		Logger:    zaptest.NewLogger(t),
	}
	return deps, svc, config.DefaultConfig()
}

// testHandlers builds Handlers the same way NewServer does.
func testHandlers(t *testing.T) (*Handlers, *fakeServices) {
	t.Helper()
	deps, svc, cfg := testSetup(t)
	return NewHandlers(deps, search.NewManager(svc, deps.Logger, nil, cfg.SearchPageSize)), svc
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleCreate(t *testing.T) {
	h, _ := testHandlers(t)
	ctx := context.Background()

	t.Run("creates provisional participant", func(t *testing.T) {
		result, err := h.HandleCreate(ctx, makeRequest(map[string]any{
			"case_id":    "s1",
			"legacy_id":  "L1",
			"first_name": "Ada",
			"roles":      []any{"Victim"},
		}))
		if err != nil {
			t.Fatalf("HandleCreate error: %v", err)
		}

		output := parseOutput(t, result)
		if output["state"] != string(ops.StateSucceeded) {
			t.Errorf("state = %v, want succeeded", output["state"])
		}
		p := output["participant"].(map[string]any)
		if p["id"] != "p1" {
			t.Errorf("participant id = %v, want p1", p["id"])
		}
		if p["newly_created_person"] != true {
			t.Errorf("newly_created_person = %v, want true", p["newly_created_person"])
		}
		desc := p["legacy_descriptor"].(map[string]any)
		if desc["legacy_id"] != "L1" {
			t.Errorf("legacy_id = %v, want L1", desc["legacy_id"])
		}
	})

	t.Run("missing case_id", func(t *testing.T) {
		result, _ := h.HandleCreate(ctx, makeRequest(map[string]any{"first_name": "Ada"}))
		if !result.IsError {
			t.Fatal("expected error for missing case_id")
		}
		assertErrorCode(t, result, "INVALID_REQUEST")
	})

	t.Run("unknown scope", func(t *testing.T) {
		result, _ := h.HandleCreate(ctx, makeRequest(map[string]any{"case_id": "s1", "scope": "referrals"}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleCreate_Forbidden(t *testing.T) {
	h, svc := testHandlers(t)
	svc.createErr = errors.NewForbidden("")

	result, _ := h.HandleCreate(context.Background(), makeRequest(map[string]any{"case_id": "s1"}))
	if !result.IsError {
		t.Fatal("expected error result")
	}
	assertErrorCode(t, result, "FORBIDDEN")
	if msg := extractErrorMessage(result); !strings.Contains(msg, errors.ForbiddenNotice) {
		t.Errorf("message = %s, want forbidden notice", msg)
	}
}

func TestHandleDelete(t *testing.T) {
	h, _ := testHandlers(t)
	ctx := context.Background()

	created := parseOutput(t, mustCall(t, h.HandleCreate, map[string]any{"case_id": "s1", "legacy_id": "L1"}))
	id := created["participant"].(map[string]any)["id"].(string)

	t.Run("deletes participant", func(t *testing.T) {
		result, err := h.HandleDelete(ctx, makeRequest(map[string]any{"case_id": "s1", "participant_id": id}))
		if err != nil {
			t.Fatalf("HandleDelete error: %v", err)
		}
		output := parseOutput(t, result)
		if output["deleted"] != true {
			t.Errorf("deleted = %v, want true", output["deleted"])
		}
		if output["participant_id"] != id {
			t.Errorf("participant_id = %v, want %s", output["participant_id"], id)
		}
	})

	t.Run("unknown participant", func(t *testing.T) {
		result, _ := h.HandleDelete(ctx, makeRequest(map[string]any{"case_id": "s1", "participant_id": id}))
		assertErrorCode(t, result, "NOT_FOUND")
	})

	t.Run("missing participant_id", func(t *testing.T) {
		result, _ := h.HandleDelete(ctx, makeRequest(map[string]any{"case_id": "s1"}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleConfirm(t *testing.T) {
	h, _ := testHandlers(t)
	ctx := context.Background()

	created := parseOutput(t, mustCall(t, h.HandleCreate, map[string]any{"case_id": "s1"}))
	id := created["participant"].(map[string]any)["id"].(string)

	result, _ := h.HandleConfirm(ctx, makeRequest(map[string]any{"case_id": "s1", "participant_id": id}))
	output := parseOutput(t, result)
	if output["changed"] != true {
		t.Errorf("changed = %v, want true", output["changed"])
	}
	p := output["participant"].(map[string]any)
	if _, ok := p["newly_created_person"]; ok {
		t.Errorf("newly_created_person should be cleared, got %v", p["newly_created_person"])
	}

	// Second confirm is a no-op
	result, _ = h.HandleConfirm(ctx, makeRequest(map[string]any{"case_id": "s1", "participant_id": id}))
	if output := parseOutput(t, result); output["changed"] != false {
		t.Errorf("changed = %v, want false", output["changed"])
	}
}

func TestHandleView(t *testing.T) {
	h, svc := testHandlers(t)
	ctx := context.Background()

	svc.people = []person.FocusPerson{{
		Names:            person.Names{FirstName: "Ada", LastName: "Lovelace"},
		LegacyDescriptor: &person.LegacyDescriptor{LegacyID: "L1"},
		Relationships: []person.Relationship{{
			RelatedPersonFirstName:    "George",
			RelatedPersonLastName:     "Byron",
			IndexedPersonRelationship: "190",
			LegacyDescriptor:          &person.LegacyDescriptor{LegacyID: "L2"},
		}},
	}}
	mustCall(t, h.HandleCreate, map[string]any{"case_id": "s1", "legacy_id": "L1"})

	result, err := h.HandleView(ctx, makeRequest(map[string]any{"case_id": "s1"}))
	if err != nil {
		t.Fatalf("HandleView error: %v", err)
	}
	output := parseOutput(t, result)
	people := output["people"].([]any)
	if len(people) != 1 {
		t.Fatalf("people = %d, want 1", len(people))
	}
	ada := people[0].(map[string]any)
	if ada["name"] != "Ada Lovelace" {
		t.Errorf("name = %v, want Ada Lovelace", ada["name"])
	}
	rels := ada["relationships"].([]any)
	rel := rels[0].(map[string]any)
	if rel["type"] != "Father" {
		t.Errorf("type = %v, want Father", rel["type"])
	}
	if rel["person_card_exists"] != false {
		t.Errorf("person_card_exists = %v, want false for a related person not in the case", rel["person_card_exists"])
	}

	t.Run("missing case_id", func(t *testing.T) {
		result, _ := h.HandleView(ctx, makeRequest(map[string]any{}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleSaveRelationship(t *testing.T) {
	h, svc := testHandlers(t)
	ctx := context.Background()

	result, _ := h.HandleSaveRelationship(ctx, makeRequest(map[string]any{
		"case_id":           "s1",
		"client_id":         "L1",
		"relative_id":       "L2",
		"relationship_type": "190",
		"same_home_status":  "Y",
	}))
	output := parseOutput(t, result)
	if output["case_id"] != "s1" {
		t.Errorf("case_id = %v, want s1", output["case_id"])
	}
	if len(svc.saved) != 1 || svc.saved[0].RelativeID != "L2" {
		t.Errorf("saved = %+v, want one edit for L2", svc.saved)
	}

	t.Run("missing relationship_type", func(t *testing.T) {
		result, _ := h.HandleSaveRelationship(ctx, makeRequest(map[string]any{
			"case_id":     "s1",
			"client_id":   "L1",
			"relative_id": "L2",
		}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleSearchAndMore(t *testing.T) {
	h, svc := testHandlers(t)
	ctx := context.Background()

	svc.pages = []*search.Page{
		{Hits: []search.Hit{{ID: "a"}, {ID: "b"}}, Total: 3, Cursor: search.Cursor{"b"}},
		{Hits: []search.Hit{{ID: "c"}}, Total: 3},
	}

	result, _ := h.HandleSearch(ctx, makeRequest(map[string]any{"query": "ada"}))
	output := parseOutput(t, result)
	if hits := output["hits"].([]any); len(hits) != 2 {
		t.Errorf("hits = %d, want 2", len(hits))
	}
	if output["has_more"] != true {
		t.Errorf("has_more = %v, want true", output["has_more"])
	}

	result, _ = h.HandleMore(ctx, makeRequest(nil))
	output = parseOutput(t, result)
	if hits := output["hits"].([]any); len(hits) != 3 {
		t.Errorf("hits = %d, want 3", len(hits))
	}
	if output["has_more"] != false {
		t.Errorf("has_more = %v, want false", output["has_more"])
	}

	result, _ = h.HandleMore(ctx, makeRequest(nil))
	output = parseOutput(t, result)
	if output["no_more_results"] != true {
		t.Errorf("no_more_results = %v, want true", output["no_more_results"])
	}
	if hits := output["hits"].([]any); len(hits) != 3 {
		t.Errorf("hits after exhaustion = %d, want 3", len(hits))
	}
}

func TestHandleMore_WithoutSearch(t *testing.T) {
	h, _ := testHandlers(t)
	result, _ := h.HandleMore(context.Background(), makeRequest(nil))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleSearch_EmptyQuery(t *testing.T) {
	h, _ := testHandlers(t)
	result, _ := h.HandleSearch(context.Background(), makeRequest(map[string]any{"query": "  "}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleReset(t *testing.T) {
	h, svc := testHandlers(t)
	ctx := context.Background()

	svc.pages = []*search.Page{
		{Hits: []search.Hit{{ID: "a"}}, Total: 2, Cursor: search.Cursor{"a"}},
	}
	mustCall(t, h.HandleSearch, map[string]any{"query": "ada"})

	output := parseOutput(t, mustCall(t, h.HandleReset, nil))
	if output["reset"] != true {
		t.Errorf("reset = %v, want true", output["reset"])
	}
	if s := h.search.Session(); s != nil {
		t.Errorf("session after reset = %+v, want nil", s)
	}

	result, _ := h.HandleMore(ctx, makeRequest(nil))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleClear(t *testing.T) {
	h, _ := testHandlers(t)
	ctx := context.Background()

	mustCall(t, h.HandleCreate, map[string]any{"case_id": "s1", "legacy_id": "L1", "first_name": "Ada"})
	mustCall(t, h.HandleCreate, map[string]any{"case_id": "s1", "first_name": "Grace"})

	output := parseOutput(t, mustCall(t, h.HandleClear, map[string]any{"case_id": "s1"}))
	if output["participants"] != float64(2) {
		t.Errorf("participants = %v, want 2", output["participants"])
	}

	ps, err := h.deps.Store.Participants(ctx, "s1")
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if len(ps) != 0 {
		t.Errorf("participants after clear = %d, want 0", len(ps))
	}

	output = parseOutput(t, mustCall(t, h.HandleView, map[string]any{"case_id": "s1"}))
	if people := output["people"].([]any); len(people) != 0 {
		t.Errorf("people after clear = %d, want 0", len(people))
	}

	result, _ := h.HandleClear(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	deps, svc, cfg := testSetup(t)

	s := NewServer(deps, svc, cfg, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"participant_create",
		"participant_delete",
		"participant_confirm",
		"relationship_view",
		"relationship_refresh",
		"relationship_save",
		"people_search",
		"people_more",
		"people_reset",
		"case_clear",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	deps, svc, cfg := testSetup(t)

	cfg.DisabledTools = []string{"participant_delete", "relationship_save"}
	s := NewServer(deps, svc, cfg, "test")
	tools := s.ListTools()

	if len(tools) != 8 {
		t.Errorf("registered tool count = %d, want 8", len(tools))
	}
	for _, name := range cfg.DisabledTools {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	deps, svc, cfg := testSetup(t)

	cfg.DisabledTypes = []string{"people"}
	s := NewServer(deps, svc, cfg, "test")
	tools := s.ListTools()

	if len(tools) != 7 {
		t.Errorf("registered tool count = %d, want 7", len(tools))
	}
	for _, name := range []string{"people_search", "people_more", "people_reset"} {
		if _, ok := tools[name]; ok {
			t.Errorf("tool %q of disabled type should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	deps, svc, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(deps, svc, cfg, "test")
	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestToolDefinitionsMatchRegistry(t *testing.T) {
	for name, entry := range toolRegistry {
		if entry.def.Name != name {
			t.Errorf("registry key %q has tool definition named %q", name, entry.def.Name)
		}
		if !containsString(KnownTypes, GetTypeForTool(name)) {
			t.Errorf("tool %q has unknown type %q", name, GetTypeForTool(name))
		}
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{name: "all valid", input: []string{"people_more", "participant_delete"}, wantLen: 0},
		{name: "one unknown", input: []string{"people_more", "fake_tool"}, wantLen: 1},
		{name: "all unknown", input: []string{"foo", "bar", "baz"}, wantLen: 3},
		{name: "empty list", input: []string{}, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	if unknown := ValidateDisabledTypes([]string{"participant", "capsule"}); len(unknown) != 1 || unknown[0] != "capsule" {
		t.Errorf("ValidateDisabledTypes() = %v, want [capsule]", unknown)
	}
}

func TestExpandTypesToTools(t *testing.T) {
	tools := ExpandTypesToTools([]string{"relationship"})
	if len(tools) != 3 {
		t.Errorf("ExpandTypesToTools(relationship) = %v, want 3 tools", tools)
	}
	if ExpandTypesToTools(nil) != nil {
		t.Error("ExpandTypesToTools(nil) should be nil")
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	iErr := errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied"))
	iErr.Details = map[string]any{"path": "/tmp/secret.db"}
	r := errorResult(iErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("relationships for s1: %w", errors.NewRequestFailed(500, "upstream down", nil))

	r := errorResult(wrappedErr)
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrRequestFailed) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrRequestFailed)
	}
	msg := errObj["message"].(string)
	if !strings.Contains(msg, "relationships for s1") || !strings.Contains(msg, "upstream down") {
		t.Errorf("message should keep wrapper context and cause, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("abc"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	assertErrorCode(t, r, "INTERNAL")
	if strings.Contains(extractErrorMessage(r), "boom") {
		t.Error("plain errors should not leak their message")
	}
}

// Helper functions

func mustCall(t *testing.T, handler server.ToolHandlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	return result
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
