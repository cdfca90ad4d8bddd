// Package permission maps a user's role to the fixed set of capabilities
// the rest of the system checks before acting.
package permission

import (
	"fmt"
	"strings"
)

// Role is one of the fixed organisational roles.
type Role string

const (
	RoleCEO            Role = "ceo"
	RoleProjectManager Role = "projectManager"
	RoleHR             Role = "hr"
	RoleTeamMember     Role = "teamMember"
)

// AllRoles returns every valid role, most privileged first.
func AllRoles() []Role {
	return []Role{RoleCEO, RoleProjectManager, RoleHR, RoleTeamMember}
}

// Capabilities is the set of permission flags derived from a role.
type Capabilities struct {
	CanAssignTasksDirectly     bool `json:"canAssignTasksDirectly"`
	CanAssignTasksWithApproval bool `json:"canAssignTasksWithApproval"`
	CanPostNotices             bool `json:"canPostNotices"`
	CanApproveTaskAssignments  bool `json:"canApproveTaskAssignments"`
	CanViewAllTasks            bool `json:"canViewAllTasks"`
	CanManageTeams             bool `json:"canManageTeams"`
}

var capabilityTable = map[Role]Capabilities{
	RoleCEO: {
		CanAssignTasksDirectly:    true,
		CanPostNotices:            true,
		CanApproveTaskAssignments: true,
		CanViewAllTasks:           true,
		CanManageTeams:            true,
	},
	RoleProjectManager: {
		CanAssignTasksDirectly:    true,
		CanApproveTaskAssignments: true,
		CanViewAllTasks:           true,
		CanManageTeams:            true,
	},
	RoleHR: {
		CanAssignTasksWithApproval: true,
		CanPostNotices:             true,
	},
	RoleTeamMember: {
		CanAssignTasksWithApproval: true,
	},
}

var displayNames = map[Role]string{
	RoleCEO:            "CEO",
	RoleProjectManager: "Project Manager",
	RoleHR:             "HR",
	RoleTeamMember:     "Team Member",
}

// For returns the capabilities granted to role. Unknown roles get none.
func For(role Role) Capabilities {
	return capabilityTable[role]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := capabilityTable[r]
	return ok
}

// DisplayName is the human readable role label.
func (r Role) DisplayName() string {
	if name, ok := displayNames[r]; ok {
		return name
	}
	return "Unknown"
}

// CanAssign reports whether the role may hand a task to another user in any form.
func (c Capabilities) CanAssign() bool {
	return c.CanAssignTasksDirectly || c.CanAssignTasksWithApproval
}

// ParseRole validates raw against the role enum. Matching is exact apart from
// surrounding whitespace; unknown values are rejected, never downgraded.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(raw))
	if !role.Valid() {
		return "", fmt.Errorf("invalid role %q", raw)
	}
	return role, nil
}
