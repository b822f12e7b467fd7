package models

import (
	"github.com/google/uuid"
)

// ActorRole classifies a party attached to a delegation (RACI-style).
type ActorRole string

const (
	RoleGrantor    ActorRole = "GRANTOR"
	RoleDelegate   ActorRole = "DELEGATE"
	RoleCoApprover ActorRole = "CO_APPROVER"
	RoleController ActorRole = "CONTROLLER"
	RoleAuditor    ActorRole = "AUDITOR"
	RoleWitness    ActorRole = "WITNESS"
	RoleBackup     ActorRole = "BACKUP"
	RoleImpacted   ActorRole = "IMPACTED"
)

// ValidActorRoles is the closed set of accepted roles.
var ValidActorRoles = map[ActorRole]bool{
	RoleGrantor:    true,
	RoleDelegate:   true,
	RoleCoApprover: true,
	RoleController: true,
	RoleAuditor:    true,
	RoleWitness:    true,
	RoleBackup:     true,
	RoleImpacted:   true,
}

// Actor is a party attached to a delegation. Actors exist only in the
// context of their delegation; exactly one GRANTOR and one DELEGATE are
// required, the other roles are optional and repeatable.
type Actor struct {
	ID           uuid.UUID `json:"id"`
	DelegationID uuid.UUID `json:"delegation_id"`
	Role         ActorRole `json:"role"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	// ExternalRef links the actor to the identity provider subject
	// (JWT sub) when known.
	ExternalRef string `json:"external_ref,omitempty"`
}
