// Package authz is the pure decision core of the delegation engine:
// scope matching, limit checking, control resolution, the lifecycle state
// machine and the policy evaluator. Nothing in this package performs I/O
// or reads the clock; time and usage counts arrive as arguments, so every
// function is a deterministic, concurrency-safe function of its inputs.
package authz

import (
	"fmt"

	"github.com/chantierhq/delegation-engine/pkg/models"
)

// ScopeMatches resolves whether a candidate id falls inside one scope
// declaration. ALL matches everything, INCLUDE matches ids on the list,
// EXCLUDE matches ids off the list. An INCLUDE with an empty list matches
// nothing; an EXCLUDE with an empty list matches everything.
func ScopeMatches(decl models.ScopeDeclaration, candidateID string) bool {
	switch decl.Mode {
	case models.ScopeModeAll:
		return true
	case models.ScopeModeInclude:
		return contains(decl.List, candidateID)
	case models.ScopeModeExclude:
		return !contains(decl.List, candidateID)
	default:
		// Unknown mode fails closed.
		return false
	}
}

// ScopeViolations checks the action target against all four scope
// dimensions and returns one OUT_OF_SCOPE reason per failing dimension.
// The action is in scope only when every dimension matches. A category
// declaration with an empty list is treated as ALL regardless of mode.
func ScopeViolations(scope models.Scope, evalCtx models.EvaluationContext) []models.Reason {
	var reasons []models.Reason

	check := func(dimension string, decl models.ScopeDeclaration, id string) {
		if !ScopeMatches(decl, id) {
			reasons = append(reasons, models.Reason{
				Code:   models.ReasonOutOfScope,
				Detail: fmt.Sprintf("%s %q outside delegation scope", dimension, id),
			})
		}
	}

	check("project", scope.Project, evalCtx.ProjectID)
	check("bureau", scope.Bureau, evalCtx.BureauID)
	check("supplier", scope.Supplier, evalCtx.SupplierID)

	category := scope.Category
	if len(category.List) == 0 {
		category.Mode = models.ScopeModeAll
	}
	check("category", category, evalCtx.CategoryID)

	return reasons
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
