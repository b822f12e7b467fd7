package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/apperrors"
	"github.com/chantierhq/delegation-engine/pkg/services"
)

// AuditToolDeps contains dependencies for audit tools.
type AuditToolDeps struct {
	AuditService services.AuditService
	Logger       *zap.Logger
}

// RegisterAuditTools registers the audit trail and chain verification tools.
func RegisterAuditTools(s *server.MCPServer, deps *AuditToolDeps) {
	registerGetAuditTrailTool(s, deps)
	registerVerifyAuditChainTool(s, deps)
}

func registerGetAuditTrailTool(s *server.MCPServer, deps *AuditToolDeps) {
	tool := mcp.NewTool(
		"get_audit_trail",
		mcp.WithDescription(
			"Get the full hash-chained audit trail of a delegation in "+
				"sequence order: creation, evaluations, uses, lifecycle "+
				"transitions, extensions and corrections.",
		),
		mcp.WithString(
			"delegation_id",
			mcp.Required(),
			mcp.Description("UUID of the delegation"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireDelegationID(req)
		if errResult != nil {
			return errResult, nil
		}

		events, err := deps.AuditService.GetTrail(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return NewErrorResult("delegation_not_found", fmt.Sprintf("no delegation with id %s", id)), nil
			}
			return nil, fmt.Errorf("failed to get audit trail: %w", err)
		}

		result := struct {
			Events any `json:"events"`
			Count  int `json:"count"`
		}{Events: events, Count: len(events)}

		return marshalResult(result)
	})
}

func registerVerifyAuditChainTool(s *server.MCPServer, deps *AuditToolDeps) {
	tool := mcp.NewTool(
		"verify_audit_chain",
		mcp.WithDescription(
			"Recompute a delegation's audit hash chain from its genesis and "+
				"compare against the stored hashes and head anchor. A detected "+
				"break halts the delegation's ledger.",
		),
		mcp.WithString(
			"delegation_id",
			mcp.Required(),
			mcp.Description("UUID of the delegation"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireDelegationID(req)
		if errResult != nil {
			return errResult, nil
		}

		result, err := deps.AuditService.VerifyIntegrity(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return NewErrorResult("delegation_not_found", fmt.Sprintf("no delegation with id %s", id)), nil
			}
			return nil, fmt.Errorf("failed to verify audit chain: %w", err)
		}

		return marshalResult(result)
	})
}
