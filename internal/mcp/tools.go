package mcp

import "github.com/mark3labs/mcp-go/mcp"

var participantCreateToolDef = mcp.NewTool(
	"participant_create",
	mcp.WithDescription("Add a person to a screening or snapshot. The new participant is marked as newly created "+
		"until confirmed. Relationships and involvement history are refreshed afterwards."),
	mcp.WithString("case_id", mcp.Required(), mcp.Description("Screening or snapshot id")),
	mcp.WithString("scope", mcp.Description("History scope: screenings (default) or snapshots"), mcp.Enum("screenings", "snapshots")),
	mcp.WithString("legacy_id", mcp.Description("Legacy system id of an existing person; omit for a brand-new person")),
	mcp.WithString("legacy_table_name", mcp.Description("Legacy table the person came from")),
	mcp.WithBoolean("sealed", mcp.Description("Person record is sealed")),
	mcp.WithBoolean("sensitive", mcp.Description("Person record is sensitive")),
	mcp.WithArray("roles", mcp.Description("Participant roles"), mcp.WithStringItems()),
	mcp.WithString("first_name"),
	mcp.WithString("middle_name"),
	mcp.WithString("last_name"),
	mcp.WithString("name_suffix"),
)

var participantDeleteToolDef = mcp.NewTool(
	"participant_delete",
	mcp.WithDescription("Remove a participant. Allegations, relationships and involvement history are refreshed afterwards."),
	mcp.WithString("case_id", mcp.Required(), mcp.Description("Screening or snapshot id")),
	mcp.WithString("participant_id", mcp.Required(), mcp.Description("Participant id")),
	mcp.WithString("scope", mcp.Description("History scope: screenings (default) or snapshots"), mcp.Enum("screenings", "snapshots")),
)

var participantConfirmToolDef = mcp.NewTool(
	"participant_confirm",
	mcp.WithDescription("Clear the newly-created marker on a participant"),
	mcp.WithString("case_id", mcp.Required(), mcp.Description("Screening or snapshot id")),
	mcp.WithString("participant_id", mcp.Required(), mcp.Description("Participant id")),
)

var relationshipViewToolDef = mcp.NewTool(
	"relationship_view",
	mcp.WithDescription("Show each person's relationships, flagging related people already shown as participants"),
	mcp.WithString("case_id", mcp.Required(), mcp.Description("Screening or snapshot id")),
)

var relationshipRefreshToolDef = mcp.NewTool(
	"relationship_refresh",
	mcp.WithDescription("Fetch relationships for every participant with a legacy id and show the result"),
	mcp.WithString("case_id", mcp.Required(), mcp.Description("Screening or snapshot id")),
)

var relationshipSaveToolDef = mcp.NewTool(
	"relationship_save",
	mcp.WithDescription("Save a relationship between two people, then refresh relationships"),
	mcp.WithString("case_id", mcp.Required(), mcp.Description("Screening or snapshot id")),
	mcp.WithString("id", mcp.Description("Existing relationship id, when editing")),
	mcp.WithString("client_id", mcp.Required(), mcp.Description("Legacy id of the focus person")),
	mcp.WithString("relative_id", mcp.Required(), mcp.Description("Legacy id of the related person")),
	mcp.WithString("relationship_type", mcp.Required(), mcp.Description("Relationship type code")),
	mcp.WithBoolean("absent_parent_indicator"),
	mcp.WithString("same_home_status", mcp.Enum("Y", "N", "U")),
)

var peopleSearchToolDef = mcp.NewTool(
	"people_search",
	mcp.WithDescription("Start a person search, replacing any previous search, and return the first page"),
	mcp.WithString("query", mcp.Required(), mcp.Description("Search term")),
)

var peopleMoreToolDef = mcp.NewTool(
	"people_more",
	mcp.WithDescription("Load the next page of the current person search"),
)

var peopleResetToolDef = mcp.NewTool(
	"people_reset",
	mcp.WithDescription("Discard the current person search and cancel any page request still in flight"),
)

var caseClearToolDef = mcp.NewTool(
	"case_clear",
	mcp.WithDescription("Tear down a case view: drop its participants and relationship snapshot from the local store"),
	mcp.WithString("case_id", mcp.Required(), mcp.Description("Screening or snapshot id")),
)
