package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/intake/internal/logging"
	"github.com/hpungsan/intake/internal/ops"
)

// clientNotifier forwards workflow alerts and outcomes to the calling
// client as log message notifications.
type clientNotifier struct {
	srv    *server.MCPServer
	logger *zap.Logger
}

func (n *clientNotifier) Alert(ctx context.Context, message string) {
	n.send(ctx, mcp.LoggingLevelWarning, map[string]any{"alert": message})
}

func (n *clientNotifier) Emit(ctx context.Context, o ops.Outcome) {
	data := map[string]any{
		"workflow":   o.Workflow,
		"attempt_id": o.AttemptID,
		"state":      o.State,
		"case_id":    o.CaseID,
	}
	if o.ParticipantID != "" {
		data["participant_id"] = o.ParticipantID
	}
	level := mcp.LoggingLevelInfo
	if o.Error != nil {
		data["error"] = o.Error.Error()
		level = mcp.LoggingLevelError
	}
	n.send(ctx, level, data)
}

func (n *clientNotifier) send(ctx context.Context, level mcp.LoggingLevel, data map[string]any) {
	err := n.srv.SendNotificationToClient(ctx, "notifications/message", map[string]any{
		"level":  level,
		"logger": "intake",
		"data":   data,
	})
	if err != nil {
		// no client session, e.g. direct handler calls
		logging.OrNop(n.logger).Debug("client notification dropped", zap.Error(err))
	}
}
