package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/services"
)

// StatsToolDeps contains dependencies for the stats tool.
type StatsToolDeps struct {
	StatsService services.StatsService
	Logger       *zap.Logger
}

// RegisterStatsTools registers the dashboard aggregate tool.
func RegisterStatsTools(s *server.MCPServer, deps *StatsToolDeps) {
	tool := mcp.NewTool(
		"get_delegation_stats",
		mcp.WithDescription(
			"Get aggregate delegation counts by effective status, the number "+
				"expiring within seven days, and cumulative usage totals.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := deps.StatsService.GetStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get delegation stats: %w", err)
		}
		return marshalResult(stats)
	})
}
