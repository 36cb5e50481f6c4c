package mcp

import (
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/intake/internal/config"
	"github.com/hpungsan/intake/internal/ops"
	"github.com/hpungsan/intake/internal/search"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"participant", "relationship", "people", "case"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"participant_create": {
		def:     participantCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreate },
	},
	"participant_delete": {
		def:     participantDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"participant_confirm": {
		def:     participantConfirmToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConfirm },
	},
	"relationship_view": {
		def:     relationshipViewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleView },
	},
	"relationship_refresh": {
		def:     relationshipRefreshToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRefresh },
	},
	"relationship_save": {
		def:     relationshipSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSaveRelationship },
	},
	"people_search": {
		def:     peopleSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"people_more": {
		def:     peopleMoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMore },
	},
	"people_reset": {
		def:     peopleResetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReset },
	},
	"case_clear": {
		def:     caseClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClear },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "participant_create" → "participant").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if slices.Contains(types, GetTypeForTool(name)) {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the intake tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration. Workflow alerts and outcomes are also
// sent to the calling client as log notifications.
func NewServer(deps ops.Deps, searcher search.Searcher, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"intake",
		version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	notifiers := ops.Notifiers{&clientNotifier{srv: s, logger: deps.Logger}}
	if deps.Notifier != nil {
		notifiers = append(ops.Notifiers{deps.Notifier}, notifiers...)
	}
	deps.Notifier = notifiers

	h := NewHandlers(deps, search.NewManager(searcher, deps.Logger, deps.Metrics, cfg.SearchPageSize))

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps ops.Deps, searcher search.Searcher, cfg *config.Config, version string) error {
	s := NewServer(deps, searcher, cfg, version)
	return server.ServeStdio(s)
}
