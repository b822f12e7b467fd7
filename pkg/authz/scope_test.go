package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chantierhq/delegation-engine/pkg/models"
)

func TestScopeMatches(t *testing.T) {
	tests := []struct {
		name      string
		decl      models.ScopeDeclaration
		candidate string
		want      bool
	}{
		{"all matches anything", models.ScopeDeclaration{Mode: models.ScopeModeAll}, "P-77", true},
		{"all matches empty id", models.ScopeDeclaration{Mode: models.ScopeModeAll}, "", true},
		{"include hit", models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: []string{"P-1", "P-2"}}, "P-2", true},
		{"include miss", models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: []string{"P-1", "P-2"}}, "P-3", false},
		{"include empty list matches nothing", models.ScopeDeclaration{Mode: models.ScopeModeInclude}, "P-1", false},
		{"exclude hit", models.ScopeDeclaration{Mode: models.ScopeModeExclude, List: []string{"P-1"}}, "P-1", false},
		{"exclude miss", models.ScopeDeclaration{Mode: models.ScopeModeExclude, List: []string{"P-1"}}, "P-2", true},
		{"exclude empty list matches everything", models.ScopeDeclaration{Mode: models.ScopeModeExclude}, "P-1", true},
		{"unknown mode fails closed", models.ScopeDeclaration{Mode: "WILDCARD"}, "P-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopeMatches(tt.decl, tt.candidate))
		})
	}
}

func TestIncludeExcludeComplementary(t *testing.T) {
	list := []string{"B-10", "B-20"}
	include := models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: list}
	exclude := models.ScopeDeclaration{Mode: models.ScopeModeExclude, List: list}

	for _, id := range []string{"B-10", "B-20", "B-30", ""} {
		assert.NotEqual(t, ScopeMatches(include, id), ScopeMatches(exclude, id), "id %q", id)
	}
}

func TestScopeViolationsAllDimensionsMustMatch(t *testing.T) {
	scope := models.Scope{
		Project:  models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: []string{"P-1"}},
		Bureau:   models.ScopeDeclaration{Mode: models.ScopeModeAll},
		Supplier: models.ScopeDeclaration{Mode: models.ScopeModeExclude, List: []string{"S-BLOCKED"}},
		Category: models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: []string{"C-WORKS"}},
	}

	inScope := models.EvaluationContext{ProjectID: "P-1", BureauID: "B-7", SupplierID: "S-OK", CategoryID: "C-WORKS"}
	assert.Empty(t, ScopeViolations(scope, inScope))

	wrongProject := inScope
	wrongProject.ProjectID = "P-2"
	reasons := ScopeViolations(scope, wrongProject)
	assert.Len(t, reasons, 1)
	assert.Equal(t, models.ReasonOutOfScope, reasons[0].Code)
	assert.Contains(t, reasons[0].Detail, "project")

	blockedSupplier := inScope
	blockedSupplier.SupplierID = "S-BLOCKED"
	reasons = ScopeViolations(scope, blockedSupplier)
	assert.Len(t, reasons, 1)
	assert.Contains(t, reasons[0].Detail, "supplier")
}

func TestScopeViolationsCategoryEmptyListDefaultsToAll(t *testing.T) {
	scope := models.Scope{
		Project:  models.ScopeDeclaration{Mode: models.ScopeModeAll},
		Bureau:   models.ScopeDeclaration{Mode: models.ScopeModeAll},
		Supplier: models.ScopeDeclaration{Mode: models.ScopeModeAll},
		// INCLUDE with an empty list would normally match nothing, but
		// the category dimension defaults to ALL when its list is empty.
		Category: models.ScopeDeclaration{Mode: models.ScopeModeInclude},
	}

	evalCtx := models.EvaluationContext{ProjectID: "P-1", BureauID: "B-1", SupplierID: "S-1", CategoryID: "C-ANY"}
	assert.Empty(t, ScopeViolations(scope, evalCtx))
}

func TestScopeViolationsCollectsEveryDimension(t *testing.T) {
	scope := models.Scope{
		Project:  models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: []string{"P-1"}},
		Bureau:   models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: []string{"B-1"}},
		Supplier: models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: []string{"S-1"}},
		Category: models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: []string{"C-1"}},
	}

	evalCtx := models.EvaluationContext{ProjectID: "x", BureauID: "x", SupplierID: "x", CategoryID: "x"}
	assert.Len(t, ScopeViolations(scope, evalCtx), 4)
}
