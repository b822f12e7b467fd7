// Package tools provides MCP tool implementations for delegation-engine.
// All tools are read-only: simulate_action runs a dry-run evaluation and
// records nothing.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/apperrors"
	"github.com/chantierhq/delegation-engine/pkg/authz"
	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/services"
)

// DelegationToolDeps contains dependencies for delegation tools.
type DelegationToolDeps struct {
	DelegationService services.DelegationService
	EvaluationService services.EvaluationService
	Logger            *zap.Logger
}

// RegisterDelegationTools registers delegation lookup and simulation tools.
func RegisterDelegationTools(s *server.MCPServer, deps *DelegationToolDeps) {
	registerListDelegationsTool(s, deps)
	registerGetDelegationTool(s, deps)
	registerSimulateActionTool(s, deps)
}

func registerListDelegationsTool(s *server.MCPServer, deps *DelegationToolDeps) {
	tool := mcp.NewTool(
		"list_delegations",
		mcp.WithDescription(
			"List delegations of authority. "+
				"Optionally filter by stored status (active, suspended, expired, revoked). "+
				"Use get_delegation for the full record of a single delegation.",
		),
		mcp.WithString(
			"status",
			mcp.Description("Stored status filter; omit to list all delegations"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var status models.DelegationStatus
		if args, ok := req.Params.Arguments.(map[string]any); ok {
			if v, ok := args["status"].(string); ok {
				status = models.DelegationStatus(v)
			}
		}

		delegations, err := deps.DelegationService.List(ctx, status)
		if err != nil {
			if errors.Is(err, apperrors.ErrValidation) {
				return NewErrorResult("invalid_status", err.Error()), nil
			}
			return nil, fmt.Errorf("failed to list delegations: %w", err)
		}

		now := time.Now().UTC()
		summaries := make([]delegationSummary, 0, len(delegations))
		for _, d := range delegations {
			summaries = append(summaries, toDelegationSummary(d, now))
		}

		result := struct {
			Delegations []delegationSummary `json:"delegations"`
			Count       int                 `json:"count"`
		}{Delegations: summaries, Count: len(summaries)}

		return marshalResult(result)
	})
}

func registerGetDelegationTool(s *server.MCPServer, deps *DelegationToolDeps) {
	tool := mcp.NewTool(
		"get_delegation",
		mcp.WithDescription(
			"Get the full record of one delegation: actors, scope, limits, "+
				"controls, extension policy and usage counters.",
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

		d, err := deps.DelegationService.Get(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return NewErrorResult("delegation_not_found", fmt.Sprintf("no delegation with id %s", id)), nil
			}
			return nil, fmt.Errorf("failed to get delegation: %w", err)
		}

		return marshalResult(d)
	})
}

func registerSimulateActionTool(s *server.MCPServer, deps *DelegationToolDeps) {
	tool := mcp.NewTool(
		"simulate_action",
		mcp.WithDescription(
			"Dry-run an action against a delegation's policies, scope, limits "+
				"and controls. Returns the verdict with every denial reason "+
				"collected. Nothing is consumed or recorded.",
		),
		mcp.WithString(
			"delegation_id",
			mcp.Required(),
			mcp.Description("UUID of the delegation"),
		),
		mcp.WithString(
			"action",
			mcp.Required(),
			mcp.Description("Action to simulate, e.g. APPROVE_PAYMENT or SIGN_CONTRACT"),
		),
		mcp.WithString("project_id", mcp.Description("Target project identifier")),
		mcp.WithString("bureau_id", mcp.Description("Target bureau identifier")),
		mcp.WithString("supplier_id", mcp.Description("Target supplier identifier")),
		mcp.WithString("category_id", mcp.Description("Target expense category code")),
		mcp.WithNumber("amount", mcp.Description("Amount in minor units; omit for non-financial actions")),
		mcp.WithString("currency", mcp.Description("ISO currency code for the amount")),
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

		action, err := req.RequireString("action")
		if err != nil {
			return NewErrorResult("missing_action", "action parameter is required"), nil
		}

		evalCtx := models.EvaluationContext{}
		if args, ok := req.Params.Arguments.(map[string]any); ok {
			evalCtx.ProjectID, _ = args["project_id"].(string)
			evalCtx.BureauID, _ = args["bureau_id"].(string)
			evalCtx.SupplierID, _ = args["supplier_id"].(string)
			evalCtx.CategoryID, _ = args["category_id"].(string)
			evalCtx.Currency, _ = args["currency"].(string)
			if v, ok := args["amount"].(float64); ok {
				amount := int64(v)
				evalCtx.Amount = &amount
			}
		}

		result, err := deps.EvaluationService.Evaluate(ctx, id, models.DelegationAction(action), evalCtx, models.Evidence{})
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrNotFound):
				return NewErrorResult("delegation_not_found", fmt.Sprintf("no delegation with id %s", id)), nil
			case errors.Is(err, apperrors.ErrUnknownAction):
				return NewErrorResult("unknown_action", fmt.Sprintf("unknown action %q", action)), nil
			case errors.Is(err, apperrors.ErrCurrencyMismatch), errors.Is(err, apperrors.ErrValidation):
				return NewErrorResult("invalid_request", err.Error()), nil
			}
			return nil, fmt.Errorf("failed to evaluate action: %w", err)
		}

		return marshalResult(result)
	})
}

// delegationSummary is the lightweight list view returned by
// list_delegations; full records come from get_delegation.
type delegationSummary struct {
	ID              uuid.UUID               `json:"id"`
	Title           string                  `json:"title"`
	Kind            models.DelegationKind   `json:"kind"`
	Status          models.DelegationStatus `json:"status"`
	EffectiveStatus models.DelegationStatus `json:"effective_status"`
	StartsAt        time.Time               `json:"starts_at"`
	EndsAt          time.Time               `json:"ends_at"`
	UsageCount      int                     `json:"usage_count"`
}

func toDelegationSummary(d *models.Delegation, now time.Time) delegationSummary {
	return delegationSummary{
		ID:              d.ID,
		Title:           d.Title,
		Kind:            d.Kind,
		Status:          d.Status,
		EffectiveStatus: authz.EffectiveStatus(d.Status, d.EndsAt, now),
		StartsAt:        d.StartsAt,
		EndsAt:          d.EndsAt,
		UsageCount:      d.UsageCount,
	}
}

func requireDelegationID(req mcp.CallToolRequest) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString("delegation_id")
	if err != nil {
		return uuid.Nil, NewErrorResult("missing_delegation_id", "delegation_id parameter is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_delegation_id", fmt.Sprintf("%q is not a valid UUID", raw))
	}
	return id, nil
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
