package models

import "time"

// UserRole identifies a portal user's role
type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleTenant UserRole = "tenant"
	RoleAgent  UserRole = "agent"
	RoleAdmin  UserRole = "admin"
)

// User is a portal user (owner, tenant, technician agent or admin)
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// permissions granted to each portal role; api clients carry explicit
// permission lists instead
var rolePermissions = map[UserRole][]string{
	RoleOwner:  {"tickets:read", "tickets:write", "quotes:read", "leases:read", "leases:write", "catalog:read"},
	RoleTenant: {"tickets:read", "tickets:write", "catalog:read"},
	RoleAgent:  {"tickets:read", "tickets:write", "quotes:read", "quotes:write", "catalog:read"},
	RoleAdmin:  {"*"},
}

// Permissions returns the permission strings implied by the user role
func (u *User) Permissions() []string {
	return rolePermissions[u.Role]
}
