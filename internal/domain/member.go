// Package domain holds the application's view model: members, ledger entries,
// reimbursement requests, community messages, settings and notifications.
package domain

import "strings"

// Role is the authorization discriminant carried by every member.
type Role string

const (
	// RoleAdminPrimary is the association president.
	RoleAdminPrimary Role = "Président"
	// RoleAdminSecondary is the treasurer.
	RoleAdminSecondary Role = "Trésorier"
	// RoleRegular is an ordinary member.
	RoleRegular Role = "Membre"
)

// IsAdmin reports whether the role may approve entries and edit settings.
func (r Role) IsAdmin() bool {
	return r == RoleAdminPrimary || r == RoleAdminSecondary
}

// CanManageRoles reports whether the role may change other members' roles.
func (r Role) CanManageRoles() bool {
	return r == RoleAdminPrimary
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdminPrimary, RoleAdminSecondary, RoleRegular:
		return true
	}
	return false
}

// MemberStatus tells whether a member is still part of the association.
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

// Member is a roster entry. The authenticated identity is a Member too.
type Member struct {
	ID         string       `json:"id"`
	Email      string       `json:"email"`
	FirstName  string       `json:"firstName"`
	LastName   string       `json:"lastName"`
	Role       Role         `json:"role"`
	Status     MemberStatus `json:"status"`
	Phone      string       `json:"phone,omitempty"`
	Identifier string       `json:"identifier,omitempty"`
	Program    string       `json:"program,omitempty"`
	Level      string       `json:"level,omitempty"`
	AvatarURL  string       `json:"avatarUrl,omitempty"`
}

// FullName returns "First Last" without stray spaces.
func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// IsAdmin is shorthand for m.Role.IsAdmin().
func (m Member) IsAdmin() bool {
	return m.Role.IsAdmin()
}

// MemberPatch lists the member fields an update may change. Empty fields are left untouched.
type MemberPatch struct {
	FirstName  string
	LastName   string
	Role       Role
	Status     MemberStatus
	Phone      string
	Identifier string
	Program    string
	Level      string
	AvatarURL  string
}

// Empty reports whether the patch changes nothing.
func (p MemberPatch) Empty() bool {
	return p == MemberPatch{}
}
